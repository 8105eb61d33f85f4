package entity

import (
	"errors"
	"fmt"
)

// ModuleError is an error a balance module reports for a single network.
// Retryable errors are connectivity failures that leave balances stale.
type ModuleError struct {
	Source    string
	Network   NetworkRef
	Retryable bool
	Err       error
}

func (e *ModuleError) Error() string {
	return fmt.Sprintf("%s on %s: %v", e.Source, e.Network, e.Err)
}

func (e *ModuleError) Unwrap() error {
	return e.Err
}

// AsModuleError extracts a scoped ModuleError from err, if any.
func AsModuleError(err error) (*ModuleError, bool) {
	var scoped *ModuleError
	if errors.As(err, &scoped) && !scoped.Network.IsZero() {
		return scoped, true
	}
	return nil, false
}
