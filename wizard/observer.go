package wizard

import "time"

type Outcome string

const (
	OutcomeInvalid   Outcome = "invalid"
	OutcomeSaved     Outcome = "saved"
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeDropped   Outcome = "dropped"
)

// Observer receives session events. Implementations must not block.
type Observer interface {
	AdvanceFinished(step int, outcome Outcome, elapsed time.Duration)
	UploadStaged(key string)
	DraftReconciled(adopted, kept int, err error)
}

type nopObserver struct{}

func (nopObserver) AdvanceFinished(int, Outcome, time.Duration) {}
func (nopObserver) UploadStaged(string)                         {}
func (nopObserver) DraftReconciled(int, int, error)             {}
