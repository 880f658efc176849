package amqp

import "fmt"

const (
	ConnectionError = iota

	DisconnectedError

	IllegalStateError

	ProtocolError

	RemoteConditionError
)

// Error is a coded error. Two errors match under errors.Is when their codes match.
type Error struct {
	Code    int
	Message string
}

func (err *Error) Error() string {
	if err.Message == "" {
		return errorName(err.Code)
	}
	return fmt.Sprintf("%s: %s", errorName(err.Code), err.Message)
}

// Is matches any *Error carrying the same code.
func (err *Error) Is(target error) bool {
	coded, ok := target.(*Error)
	return ok && coded.Code == err.Code
}

func errorName(errorCode int) string {
	switch errorCode {
	case ConnectionError:
		return "ConnectionError"
	case DisconnectedError:
		return "DisconnectedError"
	case IllegalStateError:
		return "IllegalStateError"
	case ProtocolError:
		return "ProtocolError"
	case RemoteConditionError:
		return "RemoteConditionError"
	default:
		return "UnknownError"
	}
}

// NewError returns a coded error. The optional first message argument is
// formatted with %v.
func NewError(errorCode int, message ...interface{}) error {
	err := &Error{Code: errorCode}
	if len(message) > 0 {
		err.Message = fmt.Sprint(message[0])
	}
	return err
}

// Sentinels for errors.Is checks.
var (
	ErrDisconnected    = &Error{Code: DisconnectedError}
	ErrConnection      = &Error{Code: ConnectionError}
	ErrRemoteCondition = &Error{Code: RemoteConditionError}
)
