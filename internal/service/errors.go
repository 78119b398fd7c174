package service

import "fmt"

// Error codes for privileged service operations.
const (
	ErrCodeExecutableNotFound = "EXECUTABLE_NOT_FOUND" // no backend binary at any candidate path
	ErrCodeElevationDenied    = "ELEVATION_DENIED"     // privileged execution refused
	ErrCodeElevationFailed    = "ELEVATION_FAILED"     // elevated request could not be issued
	ErrCodeStatusPollTimeout  = "STATUS_POLL_TIMEOUT"  // expected end state not reached in time
	ErrCodeScriptFailed       = "SCRIPT_FAILED"        // operation script could not be prepared
	ErrCodeQueryFailed        = "QUERY_FAILED"         // service status query failed
)

// Error is a service-operation error with a code.
type Error struct {
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func newError(code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}
