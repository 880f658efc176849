package amqp

import (
	"fmt"
	"maps"
)

// ErrorCondition describes why an endpoint was closed.
type ErrorCondition struct {
	Name        Symbol
	Description string
	Info        map[Symbol]any
}

// NewCondition returns a condition with the given name and description.
func NewCondition(name Symbol, description string) *ErrorCondition {
	return &ErrorCondition{Name: name, Description: description}
}

// String returns "name: description", or just the name when no description is set.
func (condition *ErrorCondition) String() string {
	if condition == nil {
		return "<nil>"
	}
	if condition.Description == "" {
		return string(condition.Name)
	}
	return fmt.Sprintf("%s: %s", condition.Name, condition.Description)
}

func (condition *ErrorCondition) clone() *ErrorCondition {
	if condition == nil {
		return nil
	}
	copied := *condition
	copied.Info = maps.Clone(condition.Info)
	return &copied
}

// ConditionError carries a condition through the failure branch of a
// completion handler.
type ConditionError struct {
	Condition *ErrorCondition
}

func (err *ConditionError) Error() string {
	return NewError(RemoteConditionError, err.Condition.String()).Error()
}

// Is reports a match for any *Error with code RemoteConditionError.
func (err *ConditionError) Is(target error) bool {
	coded, ok := target.(*Error)
	return ok && coded.Code == RemoteConditionError
}

func conditionError(condition *ErrorCondition) error {
	if condition == nil {
		return nil
	}
	return &ConditionError{Condition: condition}
}
