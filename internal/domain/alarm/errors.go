package alarm

import (
	"errors"
	"fmt"
)

// ErrMissingHost is returned when a trigger carries no usable host metadata.
var ErrMissingHost = errors.New("missing host or host id")

// ValidationError reports a trigger that cannot be processed.
type ValidationError struct {
	// TriggerID is the offending trigger.
	TriggerID string
	// Err is the underlying reason.
	Err error
}

// Error implements error.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid trigger %s: %v", e.TriggerID, e.Err)
}

// Unwrap returns the underlying reason.
func (e *ValidationError) Unwrap() error {
	return e.Err
}
