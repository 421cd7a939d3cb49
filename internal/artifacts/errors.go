package artifacts

import (
	"fmt"
	"strings"
)

// IntegrityError is returned when a built bundle references a file it does
// not contain.
type IntegrityError struct {
	// Missing lists the dangling references as "source -> target".
	Missing []string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("bundle integrity check failed: %s", strings.Join(e.Missing, ", "))
}

// BuildError wraps a fatal failure while assembling the bundle.
type BuildError struct {
	Message string
	Cause   error
}

func (e *BuildError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("build error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("build error: %s", e.Message)
}

func (e *BuildError) Unwrap() error {
	return e.Cause
}
