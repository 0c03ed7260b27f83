package main

import (
	"errors"
	"fmt"
)

// Exit codes.
const (
	ExitSuccess    = 0
	ExitFailure    = 1 // a scenario produced the wrong outcome
	ExitSetupError = 2 // configuration, connectivity or infrastructure failure
)

// ExitError carries the process exit code of a failed command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func setupError(message string, err error) *ExitError {
	return &ExitError{Code: ExitSetupError, Message: "setup error: " + message, Err: err}
}

// exitCode maps err to a process exit code. Errors that are not ExitErrors
// come from flag parsing or wiring and count as setup errors.
func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitSetupError
}
