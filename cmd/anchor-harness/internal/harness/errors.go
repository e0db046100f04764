package harness

import "fmt"

// The three failure kinds of a harness run. Each stage fails with exactly
// one of them and aborts the run; nothing is retried.

// ConfigurationError means the environment is not configured for
// execution: missing endpoint or wallet, an unreadable wallet file, or a
// node that fails the setup gate.
type ConfigurationError struct {
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("environment is not configured for execution: %v", e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// ResolutionError means the program handle could not be resolved from the
// workspace registry.
type ResolutionError struct {
	Program string
	Err     error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("could not resolve program %q: %v", e.Program, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// RemoteExecutionError means the ledger rejected the call or did not
// confirm it in time.
type RemoteExecutionError struct {
	Err error
}

func (e *RemoteExecutionError) Error() string {
	return fmt.Sprintf("remote execution failed: %v", e.Err)
}

func (e *RemoteExecutionError) Unwrap() error { return e.Err }
