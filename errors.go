package svcdeploy

import (
	"errors"
	"fmt"
)

// Common errors returned by deployment operations
var (
	// ErrNotSupervised indicates the service directory lacks a supervise subdirectory
	ErrNotSupervised = errors.New("svcdeploy: supervise dir missing")

	// ErrControlNotReady indicates the control socket/FIFO is not accepting connections
	ErrControlNotReady = errors.New("svcdeploy: control not accepting connections")

	// ErrDecode indicates the status file could not be decoded
	ErrDecode = errors.New("svcdeploy: status decode")

	// ErrDeployFailed indicates a previous install in the same run failed;
	// further installs are skipped until the failure context is reset
	ErrDeployFailed = errors.New("svcdeploy: earlier install failed, skipping")
)

// ConfigError is a fatal configuration problem: an OS version that does
// not resolve to a topology, or a service source directory that cannot
// be found. It aborts the current service's install.
type ConfigError struct {
	// Reason describes what was misconfigured
	Reason string
	// Err is the underlying error, if any
	Err error
}

// Error returns a formatted error message
func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("svcdeploy config: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("svcdeploy config: %s", e.Reason)
}

// Unwrap returns the underlying error for error chain inspection
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// OpError represents an error from a supervise control operation
type OpError struct {
	// Op is the operation that failed
	Op Operation
	// Path is the file path involved in the operation
	Path string
	// Err is the underlying error
	Err error
}

// Error returns a formatted error message
func (e *OpError) Error() string {
	return fmt.Sprintf("svcdeploy %s %q: %v", e.Op.String(), e.Path, e.Err)
}

// Unwrap returns the underlying error for error chain inspection
func (e *OpError) Unwrap() error {
	return e.Err
}

// MultiError aggregates multiple errors from best-effort bulk operations
type MultiError struct {
	// Errors contains all accumulated errors
	Errors []error
}

// Error returns a summary of the accumulated errors
func (m *MultiError) Error() string {
	if len(m.Errors) == 0 {
		return "no errors"
	}
	if len(m.Errors) == 1 {
		return m.Errors[0].Error()
	}
	return fmt.Sprintf("%d errors occurred", len(m.Errors))
}

// Add appends an error to the collection if it's not nil
func (m *MultiError) Add(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

// Err returns nil if no errors occurred, otherwise returns the MultiError itself
func (m *MultiError) Err() error {
	if len(m.Errors) == 0 {
		return nil
	}
	return m
}
