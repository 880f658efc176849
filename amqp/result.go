package amqp

// AsyncResult is handed to completion handlers. It carries either the entity
// or the cause of the failure, never both.
type AsyncResult[T any] struct {
	value T
	cause error
}

func succeeded[T any](value T) AsyncResult[T] {
	return AsyncResult[T]{value: value}
}

func failed[T any](cause error) AsyncResult[T] {
	return AsyncResult[T]{cause: cause}
}

// Succeeded reports whether the operation completed without a failure.
func (result AsyncResult[T]) Succeeded() bool { return result.cause == nil }

// Failed reports whether the operation completed with a failure.
func (result AsyncResult[T]) Failed() bool { return result.cause != nil }

// Value returns the entity on success and the zero value on failure.
func (result AsyncResult[T]) Value() T { return result.value }

// Cause returns the failure, or nil on success.
func (result AsyncResult[T]) Cause() error { return result.cause }

// Condition extracts the error condition from a failed result when the
// failure was signaled by the peer (or by a local close before remote open).
func (result AsyncResult[T]) Condition() *ErrorCondition {
	if conditionErr, ok := result.cause.(*ConditionError); ok {
		return conditionErr.Condition
	}
	return nil
}
