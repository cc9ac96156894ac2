package cmd

import "fmt"

// Process exit codes
const (
	ExitCodeHelp    = 0 // usage was requested and printed
	ExitCodeFailure = 1
	ExitCodeUsage   = 2
)

// ArgumentError reports malformed or missing command-line input
type ArgumentError struct {
	Err error
}

func (e *ArgumentError) Error() string {
	return e.Err.Error()
}

func (e *ArgumentError) Unwrap() error {
	return e.Err
}

// ExitError carries the exit code main should terminate with
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d: %v", e.Code, e.Err)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}
