package errdefs

import "errors"

type ErrorType int

const (
	ErrTypeNotLinux ErrorType = iota
	ErrTypeValidation
	ErrTypeLaunch
	ErrTypeRuntimeFailure
	ErrTypeUserCancellation
	ErrTypeBusy
	ErrTypeGeneric
)

func (t ErrorType) String() string {
	switch t {
	case ErrTypeNotLinux:
		return "not-linux"
	case ErrTypeValidation:
		return "validation"
	case ErrTypeLaunch:
		return "launch"
	case ErrTypeRuntimeFailure:
		return "runtime-failure"
	case ErrTypeUserCancellation:
		return "user-cancellation"
	case ErrTypeBusy:
		return "busy"
	default:
		return "generic"
	}
}

type CustomError struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *CustomError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *CustomError) Unwrap() error {
	return e.Err
}

func NewCustomError(errType ErrorType, message string) error {
	return &CustomError{
		Type:    errType,
		Message: message,
	}
}

// WrapCustomError attaches a type and message to an underlying cause.
func WrapCustomError(errType ErrorType, message string, err error) error {
	return &CustomError{
		Type:    errType,
		Message: message,
		Err:     err,
	}
}

// IsType reports whether any CustomError in err's chain has the given type.
func IsType(err error, errType ErrorType) bool {
	var ce *CustomError
	if !errors.As(err, &ce) {
		return false
	}
	return ce.Type == errType
}

var (
	ErrRunActive       = NewCustomError(ErrTypeBusy, "an installation is already in progress")
	ErrUserCancelled   = NewCustomError(ErrTypeUserCancellation, "installation cancelled by user")
	ErrNotConfirmed    = NewCustomError(ErrTypeLaunch, "installation has not been confirmed")
	ErrNothingToCancel = NewCustomError(ErrTypeGeneric, "no installation is running")
)
