package wizard

import "github.com/tbxark/stepform/types"

// Progress derives the completion percentage (0-100) of a state.
func Progress(s State, total int) float64 {
	if total <= 0 {
		return 0
	}
	switch s.Phase {
	case types.PhaseIdle:
		return 0
	case types.PhaseCompleted:
		return 100
	}
	return float64(s.Step+1) / float64(total) * 100
}
