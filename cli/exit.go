package cli

import (
	"errors"
	"fmt"
)

// Process exit codes for uptimeprobe. Any other failure exits 1.
const (
	ExitConfig = 1 // settings, case files or tracing setup unusable
	ExitStore  = 2 // request_logs database could not be opened or read
)

// ExitError tags a command failure with the uptimeprobe exit code it maps to.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string {
	return e.Message
}

func exitError(code int, format string, args ...any) *ExitError {
	return &ExitError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// ExitCode maps the error returned by Execute to a process status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return 1
}
