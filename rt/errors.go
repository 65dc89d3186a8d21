package rt

import "fmt"

// Result is a named backend error code.
type Result int

const (
	OK Result = iota
	ErrOutOfMemory
	ErrInvalidValue
	ErrInvalidDevicePtr
	ErrInvalidModule
	ErrInvalidProgramGroup
	ErrInvalidPipeline
	ErrLaunchFailure
	ErrNotSupported
	ErrUnknown
)

var resultNames = map[Result]string{
	OK:                     "OK",
	ErrOutOfMemory:         "OUT_OF_MEMORY",
	ErrInvalidValue:        "INVALID_VALUE",
	ErrInvalidDevicePtr:    "INVALID_DEVICE_PTR",
	ErrInvalidModule:       "INVALID_MODULE",
	ErrInvalidProgramGroup: "INVALID_PROGRAM_GROUP",
	ErrInvalidPipeline:     "INVALID_PIPELINE",
	ErrLaunchFailure:       "LAUNCH_FAILURE",
	ErrNotSupported:        "NOT_SUPPORTED",
	ErrUnknown:             "UNKNOWN",
}

// Name returns the symbolic name for a result code.
func (r Result) Name() string {
	if name, exists := resultNames[r]; exists {
		return name
	}
	return fmt.Sprintf("UNKNOWN_RESULT (%d)", int(r))
}

// Error describes a failed backend operation.
type Error struct {
	Op     string
	Code   Result
	Detail string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Code.Name(), e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Code.Name())
}

// NewError creates a backend error with a detail message.
func NewError(op string, code Result, format string, args ...interface{}) *Error {
	return &Error{Op: op, Code: code, Detail: fmt.Sprintf(format, args...)}
}
