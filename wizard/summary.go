package wizard

import (
	"strings"

	"github.com/tbxark/stepform/draft"
	"github.com/tbxark/stepform/types"
)

// SummaryRow is one field in the review of a session.
type SummaryRow struct {
	Step  int
	Label string
	Field string
	Value string
	Saved bool
}

// Summary lists every field of every step with its display value, for a
// review step or a terminal rendering.
func (s *Session) Summary() []SummaryRow {
	status := s.Status()
	snapshot := s.Snapshot()
	var rows []SummaryRow
	for _, step := range s.steps {
		for _, f := range step.Fields {
			name := f.Label
			if name == "" {
				name = f.Key
			}
			rows = append(rows, SummaryRow{
				Step:  step.Index,
				Label: step.Label,
				Field: name,
				Value: DisplayValue(snapshot, f.Key),
				Saved: status.Saved[step.Index],
			})
		}
	}
	return rows
}

// DisplayValue renders a draft value as a single line.
func DisplayValue(snapshot draft.Snapshot, key string) string {
	switch snapshot.Kind(key) {
	case types.KindList:
		return strings.Join(snapshot.List(key), ", ")
	case types.KindFile:
		ref := snapshot.File(key)
		if ref.Staged() {
			return "(pending upload)"
		}
		return ref.URL
	default:
		return snapshot.Text(key)
	}
}
