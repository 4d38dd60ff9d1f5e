package wizard

import (
	"errors"
	"fmt"
)

var (
	ErrSubmitInFlight  = errors.New("a step save is already in flight")
	ErrNotEditing      = errors.New("session is not editing")
	ErrNotSubmitting   = errors.New("session is not submitting")
	ErrAlreadyLoaded   = errors.New("session already loaded")
	ErrStepOutOfRange  = errors.New("step out of range")
	ErrStepLocked      = errors.New("step is not reachable")
	ErrCancelRequested = errors.New("back requested on the first step")
	ErrDisposed        = errors.New("session disposed")
	ErrUploadMissing   = errors.New("gateway returned no URL for staged upload")
)

// StepError is a persistence or upload failure of one step. It is surfaced
// as a single message for the step, never per field.
type StepError struct {
	Step  int
	Label string
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("save step %d (%s): %v", e.Step, e.Label, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
