package types

import "errors"

// Phase is the coarse state of a wizard session.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseEditing    Phase = "editing"
	PhaseSubmitting Phase = "submitting"
	PhaseCompleted  Phase = "completed"
)

// FieldKind decides how a field value is normalised and when it counts as empty.
type FieldKind string

const (
	KindText FieldKind = "text"
	KindList FieldKind = "list"
	KindFile FieldKind = "file"
)

// ErrDraftNotFound is returned by a gateway when no draft exists yet.
var ErrDraftNotFound = errors.New("draft not found")

// FileRef is the draft value of a file field. URL is the persisted location,
// Preview the local handle of a staged upload that has not been stored yet.
type FileRef struct {
	URL     string `json:"url,omitempty"`
	Preview string `json:"preview,omitempty"`
}

func (f FileRef) IsZero() bool {
	return f.URL == "" && f.Preview == ""
}

// Staged reports whether the reference points at a local, unsaved file.
func (f FileRef) Staged() bool {
	return f.Preview != ""
}

// File is a locally selected binary payload.
type File struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"-"`
}

// FieldErrors maps a field key to a human readable message.
type FieldErrors map[string]string

func (e FieldErrors) Clone() FieldErrors {
	out := make(FieldErrors, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}
