package cli

// Process exit codes returned through ExitError.
const (
	ExitOK         = 0
	ExitUsage      = 1
	ExitSourceLoad = 2
	ExitDispatch   = 3
	ExitFailures   = 4
)

// ExitError carries the process exit code for a failed command.
// It is used to communicate the exit code from the command to main.
type ExitError struct {
	Code   int
	Reason string
	Err    error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return e.Reason
	}
	if e.Reason == "" {
		return e.Err.Error()
	}
	return e.Reason + ": " + e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func usageError(err error) error {
	return &ExitError{Code: ExitUsage, Reason: "invalid configuration", Err: err}
}
