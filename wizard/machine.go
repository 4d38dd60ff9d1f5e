package wizard

import (
	"fmt"

	"github.com/tbxark/stepform/types"
)

// State is the tagged state of the step machine. Step is meaningful for the
// editing and submitting phases and holds the last step once completed.
type State struct {
	Phase types.Phase `json:"phase"`
	Step  int         `json:"step"`
}

func (s State) String() string {
	switch s.Phase {
	case types.PhaseEditing, types.PhaseSubmitting:
		return fmt.Sprintf("%s(%d)", s.Phase, s.Step)
	default:
		return string(s.Phase)
	}
}

// EventKind names the inputs that drive Machine.Transition.
type EventKind int

const (
	EventLoaded EventKind = iota
	EventAdvance
	EventSaveSucceeded
	EventSaveFailed
	EventBack
	EventJump
)

func (k EventKind) String() string {
	switch k {
	case EventLoaded:
		return "loaded"
	case EventAdvance:
		return "advance"
	case EventSaveSucceeded:
		return "save_succeeded"
	case EventSaveFailed:
		return "save_failed"
	case EventBack:
		return "back"
	case EventJump:
		return "jump"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is one input to Machine.Transition.
type Event struct {
	Kind EventKind
	// Step is the resume step for EventLoaded and the target for EventJump.
	Step int
	// Valid reports whether validation of the active step passed (EventAdvance).
	Valid bool
}

// Machine holds the transition rules for a wizard of a fixed number of steps.
// Transition is pure; callers own the state value.
type Machine struct {
	Steps int
}

func (m Machine) Transition(s State, ev Event, saved []bool) (State, error) {
	switch ev.Kind {
	case EventLoaded:
		if s.Phase != types.PhaseIdle {
			return s, ErrAlreadyLoaded
		}
		if !m.inRange(ev.Step) {
			return s, fmt.Errorf("%w: resume step %d", ErrStepOutOfRange, ev.Step)
		}
		return State{Phase: types.PhaseEditing, Step: ev.Step}, nil

	case EventAdvance:
		if err := m.requireEditing(s); err != nil {
			return s, err
		}
		if !ev.Valid {
			return s, nil
		}
		return State{Phase: types.PhaseSubmitting, Step: s.Step}, nil

	case EventSaveSucceeded:
		if s.Phase != types.PhaseSubmitting {
			return s, fmt.Errorf("%w: save result in %s", ErrNotSubmitting, s)
		}
		if s.Step == m.Steps-1 {
			return State{Phase: types.PhaseCompleted, Step: s.Step}, nil
		}
		return State{Phase: types.PhaseEditing, Step: s.Step + 1}, nil

	case EventSaveFailed:
		if s.Phase != types.PhaseSubmitting {
			return s, fmt.Errorf("%w: save result in %s", ErrNotSubmitting, s)
		}
		return State{Phase: types.PhaseEditing, Step: s.Step}, nil

	case EventBack:
		if err := m.requireEditing(s); err != nil {
			return s, err
		}
		if s.Step == 0 {
			return s, ErrCancelRequested
		}
		return State{Phase: types.PhaseEditing, Step: s.Step - 1}, nil

	case EventJump:
		if err := m.requireEditing(s); err != nil {
			return s, err
		}
		if !m.inRange(ev.Step) {
			return s, fmt.Errorf("%w: %d", ErrStepOutOfRange, ev.Step)
		}
		if ev.Step != s.Step && (ev.Step >= len(saved) || !saved[ev.Step]) {
			return s, fmt.Errorf("%w: step %d has not been saved", ErrStepLocked, ev.Step)
		}
		return State{Phase: types.PhaseEditing, Step: ev.Step}, nil
	}
	return s, fmt.Errorf("unknown event %s", ev.Kind)
}

func (m Machine) requireEditing(s State) error {
	switch s.Phase {
	case types.PhaseEditing:
		return nil
	case types.PhaseSubmitting:
		return ErrSubmitInFlight
	default:
		return fmt.Errorf("%w: %s", ErrNotEditing, s)
	}
}

func (m Machine) inRange(step int) bool {
	return step >= 0 && step < m.Steps
}
