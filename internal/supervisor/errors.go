package supervisor

import (
	"fmt"
	"strings"

	"github.com/zerobyte/warden/internal/logging"
)

// Error codes for supervision failures.
const (
	ErrCodeLaunchFailed     = "LAUNCH_FAILED"     // executable missing or spawn error
	ErrCodeReadinessTimeout = "READINESS_TIMEOUT" // started but never became healthy
	ErrCodeInvalidState     = "INVALID_STATE"     // operation not valid in current state
)

// Error is a supervision error with a code and the diagnostic log tail
// captured at failure time, so the failure is actionable without
// re-running the operation.
type Error struct {
	Code    string
	Message string
	Cause   error
	LogTail []string
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
		LogTail: captureLogTail(10),
	}
}

// captureLogTail renders the most recent log entries for error context.
func captureLogTail(n int) []string {
	buffer := logging.GetBuffer()
	if buffer == nil {
		return nil
	}
	entries := buffer.Tail(n)
	lines := make([]string, 0, len(entries))
	for _, entry := range entries {
		var sb strings.Builder
		sb.WriteString(entry.Level)
		sb.WriteString(" [")
		sb.WriteString(entry.Module)
		sb.WriteString("] ")
		sb.WriteString(entry.Message)
		lines = append(lines, sb.String())
	}
	return lines
}
