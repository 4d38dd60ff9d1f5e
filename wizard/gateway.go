package wizard

import (
	"context"

	"github.com/tbxark/stepform/types"
)

// Gateway is the persistence collaborator of a session.
//
// SaveStep must be idempotent: repeating it with identical fields and no new
// uploads leaves the persisted state unchanged. FetchDraft returns
// types.ErrDraftNotFound when nothing has been saved yet.
type Gateway interface {
	FetchDraft(ctx context.Context) (*types.Draft, error)
	SaveStep(ctx context.Context, req *types.SaveStepRequest) (*types.SaveStepResult, error)
	Finalize(ctx context.Context, fields map[string]any) error
}
