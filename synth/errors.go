package synth

import (
	"errors"
	"fmt"
)

// Sentinel errors for expected failure modes
var (
	ErrDeviceUnavailable = errors.New("audio output unavailable")
	ErrInactive          = errors.New("engine not started")
)

// InitError reports a failed output start. The engine stays inert and Start
// may be retried.
type InitError struct {
	Output string
	Cause  error
}

func (e *InitError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("start %s output: %v", e.Output, e.Cause)
	}
	return fmt.Sprintf("start %s output: %v", e.Output, ErrDeviceUnavailable)
}

// Unwrap exposes both ErrDeviceUnavailable and the underlying cause.
func (e *InitError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrDeviceUnavailable}
	}
	return []error{ErrDeviceUnavailable, e.Cause}
}
