package tools

import (
	"errors"
	"fmt"
)

var (
	// ErrRegistryUnavailable indicates the registry could not be
	// queried (network, auth, or CLI failure).
	ErrRegistryUnavailable = errors.New("registry unavailable")

	// ErrImageNotFound indicates the registry does not know the
	// requested repository.
	ErrImageNotFound = errors.New("image not found in registry")

	// ErrVMNotFound indicates the virtualization layer has no
	// distribution with the given identifier. Callers that need
	// idempotent deletes treat this as success.
	ErrVMNotFound = errors.New("vm not found")

	// ErrVMBusy indicates the distribution is in use and was not
	// forcibly terminated.
	ErrVMBusy = errors.New("vm is in use")
)

// Materialization step names. Each names the external command that
// failed so the engine can decide whether partial artifacts need
// cleanup before a retry.
const (
	StepPull   = "pull"
	StepCreate = "create"
	StepExport = "export"
	StepImport = "import"
)

// MaterializeError reports which materialization step failed.
type MaterializeError struct {
	Step string
	Err  error
}

func (e *MaterializeError) Error() string {
	return fmt.Sprintf("materialize step %q failed: %v", e.Step, e.Err)
}

func (e *MaterializeError) Unwrap() error {
	return e.Err
}

// materializeErr wraps err with the failing step name.
func materializeErr(step string, err error) error {
	return &MaterializeError{Step: step, Err: err}
}
