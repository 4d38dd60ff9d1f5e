package types

// Draft is the server side view of a wizard session.
type Draft struct {
	Fields     map[string]any `json:"fields"`
	SavedSteps []int          `json:"saved_steps,omitempty"`
}

// StagedFile is an upload travelling with a step save.
type StagedFile struct {
	Key  string `json:"key"`
	File File   `json:"file"`
}

type SaveStepRequest struct {
	Step    int            `json:"step"`
	Fields  map[string]any `json:"fields"`
	Uploads []StagedFile   `json:"-"`
}

type SaveStepResult struct {
	UploadedURLs map[string]string `json:"uploaded_urls,omitempty"`
}
