package domain

import (
	"errors"
	"fmt"
)

// BackendError wraps a failed call to a search backend.
type BackendError struct {
	Backend string
	Method  Method
	Err     error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend %s %s: %v", e.Backend, e.Method, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// ConfigurationError reports missing or inconsistent backend descriptors.
// It is fatal at startup.
type ConfigurationError struct {
	Problems []string
}

func (e *ConfigurationError) Error() string {
	if len(e.Problems) == 1 {
		return "configuration: " + e.Problems[0]
	}
	return fmt.Sprintf("configuration: %d problems: %v", len(e.Problems), e.Problems)
}

// IsBackendError reports whether err came from a search backend.
func IsBackendError(err error) bool {
	var be *BackendError
	return errors.As(err, &be)
}
