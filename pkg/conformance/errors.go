package conformance

import "fmt"

// AssertionError means a scenario produced the wrong outcome.
type AssertionError struct {
	Scenario string
	Expected string
	Actual   string
	Err      error
}

func (e *AssertionError) Error() string {
	msg := fmt.Sprintf("scenario %s: expected %s, got %s", e.Scenario, e.Expected, e.Actual)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AssertionError) Unwrap() error {
	return e.Err
}

// SetupError means a scenario could not be evaluated because the client or
// its environment failed before the API gave a domain answer.
type SetupError struct {
	Scenario string
	Err      error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("setup error in scenario %s: %v", e.Scenario, e.Err)
}

func (e *SetupError) Unwrap() error {
	return e.Err
}
