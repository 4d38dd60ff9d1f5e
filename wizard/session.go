package wizard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tbxark/stepform/draft"
	"github.com/tbxark/stepform/reconcile"
	"github.com/tbxark/stepform/types"
	"github.com/tbxark/stepform/upload"
	"github.com/tbxark/stepform/validate"
)

// Session is one user's run through a stepped form, from load to completion
// or abandonment.
type Session struct {
	id       string
	steps    []validate.StepDefinition
	machine  Machine
	store    *draft.Store
	uploads  *upload.Manager
	gateway  Gateway
	logger   *slog.Logger
	observer Observer

	mu       sync.Mutex
	state    State
	saved    []bool
	loading  bool
	disposed bool
	stepErr  *StepError

	// errors is guarded by errMu alone so field edits can clear entries
	// without taking mu. Lock order is mu then errMu.
	errMu  sync.Mutex
	errors types.FieldErrors

	ctx    context.Context
	cancel context.CancelFunc
}

// Option configures a Session at construction.
type Option func(*sessionOptions)

type sessionOptions struct {
	id        string
	logger    *slog.Logger
	observer  Observer
	allocator upload.PreviewAllocator
}

// WithID sets the session id used in logs. A random UUID is used otherwise.
func WithID(id string) Option {
	return func(o *sessionOptions) {
		o.id = id
	}
}

// WithLogger sets the logger; slog.Default() is used otherwise.
func WithLogger(logger *slog.Logger) Option {
	return func(o *sessionOptions) {
		o.logger = logger
	}
}

// WithObserver reports session activity to observer, e.g. for metrics.
func WithObserver(observer Observer) Option {
	return func(o *sessionOptions) {
		o.observer = observer
	}
}

// WithPreviewAllocator sets where staged files get their preview handles.
func WithPreviewAllocator(allocator upload.PreviewAllocator) Option {
	return func(o *sessionOptions) {
		o.allocator = allocator
	}
}

// NewSession validates the step table and returns an idle session.
func NewSession(steps []validate.StepDefinition, gateway Gateway, opts ...Option) (*Session, error) {
	kinds, err := validate.CheckTable(steps)
	if err != nil {
		return nil, fmt.Errorf("invalid step table: %w", err)
	}
	if gateway == nil {
		return nil, errors.New("gateway is required")
	}
	o := &sessionOptions{}
	for _, opt := range opts {
		opt(o)
	}
	if o.id == "" {
		o.id = uuid.NewString()
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.observer == nil {
		o.observer = nopObserver{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:       o.id,
		steps:    slices.Clone(steps),
		machine:  Machine{Steps: len(steps)},
		gateway:  gateway,
		logger:   o.logger.With("session", o.id),
		observer: o.observer,
		state:    State{Phase: types.PhaseIdle},
		saved:    make([]bool, len(steps)),
		errors:   types.FieldErrors{},
		ctx:      ctx,
		cancel:   cancel,
	}
	s.store = draft.NewStore(kinds, draft.WithOnSet(s.clearError))
	s.uploads = upload.NewManager(o.allocator, binder{store: s.store}, func(key string) bool {
		kind, ok := kinds[key]
		return ok && kind == types.KindFile
	})
	return s, nil
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Steps() []validate.StepDefinition {
	return slices.Clone(s.steps)
}

// Load fetches the server draft once and merges it into the local draft.
// A failed fetch is logged and the session starts from an empty draft.
func (s *Session) Load(ctx context.Context) error {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return ErrDisposed
	}
	if s.loading || s.state.Phase != types.PhaseIdle {
		s.mu.Unlock()
		return ErrAlreadyLoaded
	}
	s.loading = true
	s.mu.Unlock()

	ctx, stop := s.bind(ctx)
	defer stop()
	remote, fetchErr := s.gateway.FetchDraft(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		s.logger.Warn("Dropping draft fetched after dispose")
		return ErrDisposed
	}

	resume := 0
	adopted, kept := 0, 0
	switch {
	case errors.Is(fetchErr, types.ErrDraftNotFound):
		s.logger.Debug("No server draft, starting empty")
		fetchErr = nil
	case fetchErr != nil:
		s.logger.Warn("Draft fetch failed, starting empty", "error", fetchErr)
	case remote != nil:
		res := reconcile.Merge(remote.Fields, s.store.Snapshot())
		for _, key := range res.Adopted {
			ok, err := s.store.Adopt(key, res.Fields[key])
			if err != nil {
				return fmt.Errorf("adopt %q: %w", key, err)
			}
			if ok {
				adopted++
			} else {
				kept++
			}
		}
		kept += len(res.Kept)
		if len(res.Unknown) > 0 || len(res.Rejected) > 0 {
			s.logger.Debug("Ignored server fields", "unknown", res.Unknown, "rejected", res.Rejected)
		}
		for _, step := range remote.SavedSteps {
			if step >= 0 && step < len(s.saved) {
				s.saved[step] = true
				resume = max(resume, step)
			}
		}
	}
	s.observer.DraftReconciled(adopted, kept, fetchErr)

	next, err := s.machine.Transition(s.state, Event{Kind: EventLoaded, Step: resume}, s.saved)
	if err != nil {
		return err
	}
	s.state = next
	s.logger.Debug("Session loaded", "state", s.state.String(), "adopted", adopted, "kept", kept)
	return nil
}

func (s *Session) Get(key string) (any, bool) {
	return s.store.Get(key)
}

// Set records a user edit. Edits are never queued behind a pending save.
func (s *Session) Set(key string, value any) error {
	return s.SetMany(map[string]any{key: value})
}

func (s *Session) SetMany(partial map[string]any) error {
	if s.Disposed() {
		return ErrDisposed
	}
	for key := range partial {
		if kind, ok := s.store.Kind(key); ok && kind == types.KindFile {
			return fmt.Errorf("field %q: %w", key, errFileViaStage)
		}
	}
	if err := s.store.SetMany(partial); err != nil {
		return err
	}
	s.logger.Debug("Fields edited", "count", len(partial))
	return nil
}

var errFileViaStage = errors.New("file fields are changed with Stage")

// Stage selects a local file for a file field and returns its preview handle.
func (s *Session) Stage(key string, file types.File) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return "", ErrDisposed
	}
	current := s.store.Snapshot().File(key)
	preview, err := s.uploads.Stage(key, file, current.URL)
	if err != nil {
		return "", err
	}
	s.observer.UploadStaged(key)
	s.logger.Debug("Upload staged", "field", key, "file", file.Name, "size", len(file.Data))
	return preview, nil
}

// DiscardUpload drops the staged file for key and restores its stored URL.
func (s *Session) DiscardUpload(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return ErrDisposed
	}
	return s.uploads.Discard(key)
}

// PendingUploads lists staged files not yet persisted.
func (s *Session) PendingUploads() []upload.Task {
	return s.uploads.Pending()
}

// AdvanceResult describes a completed advance attempt. Validation failures
// are reported here, never as an error.
type AdvanceResult struct {
	Step      int
	Errors    types.FieldErrors
	Saved     bool
	Completed bool
	State     State
}

// Advance validates the active step and, when it is valid, saves it through
// the gateway. A second call while a save is in flight returns
// ErrSubmitInFlight without side effects. Persistence failures return a
// *StepError and leave the session editing the same step; they are retried
// only by calling Advance again.
func (s *Session) Advance(ctx context.Context) (AdvanceResult, error) {
	started := time.Now()
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return AdvanceResult{}, ErrDisposed
	}
	if s.state.Phase == types.PhaseSubmitting {
		step := s.state.Step
		s.mu.Unlock()
		s.logger.Debug("Advance ignored, save in flight", "step", step)
		s.observer.AdvanceFinished(step, OutcomeIgnored, 0)
		return AdvanceResult{Step: step, State: State{Phase: types.PhaseSubmitting, Step: step}}, ErrSubmitInFlight
	}
	if s.state.Phase != types.PhaseEditing {
		state := s.state
		s.mu.Unlock()
		return AdvanceResult{State: state}, fmt.Errorf("%w: %s", ErrNotEditing, state)
	}

	i := s.state.Step
	step := s.steps[i]
	snapshot := s.store.Snapshot()
	errs := validate.Validate(step, snapshot)
	s.errMu.Lock()
	s.errors = errs
	s.errMu.Unlock()

	next, err := s.machine.Transition(s.state, Event{Kind: EventAdvance, Valid: len(errs) == 0}, s.saved)
	if err != nil {
		s.mu.Unlock()
		return AdvanceResult{Step: i}, err
	}
	if len(errs) > 0 {
		state := s.state
		s.mu.Unlock()
		s.logger.Debug("Step invalid", "step", i, "errors", errs)
		s.observer.AdvanceFinished(i, OutcomeInvalid, time.Since(started))
		return AdvanceResult{Step: i, Errors: errs.Clone(), State: state}, nil
	}

	s.state = next
	s.stepErr = nil
	tasks := s.uploads.Pending(step.Keys()...)
	req := &types.SaveStepRequest{Step: i, Fields: snapshot.Wire(step.Keys()...)}
	for _, t := range tasks {
		req.Uploads = append(req.Uploads, types.StagedFile{Key: t.Key, File: t.File})
	}
	last := i == len(s.steps)-1
	s.mu.Unlock()

	ctx, stop := s.bind(ctx)
	defer stop()

	saveErr := s.save(ctx, req, tasks, last)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		s.logger.Warn("Dropping save result for disposed session", "step", i, "error", saveErr)
		s.observer.AdvanceFinished(i, OutcomeDropped, time.Since(started))
		return AdvanceResult{Step: i}, ErrDisposed
	}
	if saveErr != nil {
		s.state, _ = s.machine.Transition(s.state, Event{Kind: EventSaveFailed}, s.saved)
		s.stepErr = &StepError{Step: i, Label: step.Label, Err: saveErr}
		s.logger.Warn("Step save failed", "step", i, "error", saveErr)
		s.observer.AdvanceFinished(i, OutcomeFailed, time.Since(started))
		return AdvanceResult{Step: i, State: s.state}, s.stepErr
	}

	s.state, err = s.machine.Transition(s.state, Event{Kind: EventSaveSucceeded}, s.saved)
	if err != nil {
		return AdvanceResult{Step: i}, err
	}
	res := AdvanceResult{Step: i, Saved: true, State: s.state}
	outcome := OutcomeSaved
	if s.state.Phase == types.PhaseCompleted {
		res.Completed = true
		outcome = OutcomeCompleted
		s.logger.Info("Wizard completed", "steps", len(s.steps))
	} else {
		s.logger.Info("Step saved", "step", i, "label", step.Label, "next", s.state.Step)
	}
	s.observer.AdvanceFinished(i, outcome, time.Since(started))
	return res, nil
}

// save persists one step, resolves its uploads and, for the last step,
// finalizes the wizard. It runs without holding mu except while committing.
func (s *Session) save(ctx context.Context, req *types.SaveStepRequest, tasks []upload.Task, last bool) error {
	res, err := s.gateway.SaveStep(ctx, req)
	if err != nil {
		return err
	}
	urls := map[string]string{}
	if res != nil && res.UploadedURLs != nil {
		urls = res.UploadedURLs
	}
	for _, t := range tasks {
		if urls[t.Key] == "" {
			return fmt.Errorf("%w: %q", ErrUploadMissing, t.Key)
		}
	}

	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return ErrDisposed
	}
	for _, t := range tasks {
		resolved, rErr := s.uploads.ResolveIf(t.Key, t.Preview, urls[t.Key])
		if rErr != nil {
			s.mu.Unlock()
			return fmt.Errorf("resolve upload %q: %w", t.Key, rErr)
		}
		if !resolved {
			s.logger.Debug("Upload superseded during save", "field", t.Key)
			if rErr := s.uploads.Rebase(t.Key, urls[t.Key]); rErr != nil {
				s.mu.Unlock()
				return fmt.Errorf("rebase upload %q: %w", t.Key, rErr)
			}
		}
	}
	s.saved[req.Step] = true
	var all map[string]any
	if last {
		all = s.store.Snapshot().Wire()
	}
	s.mu.Unlock()

	if !last {
		return nil
	}
	if err := s.gateway.Finalize(ctx, all); err != nil {
		return fmt.Errorf("finalize: %w", err)
	}
	return nil
}

// Back moves to the previous step. On the first step it changes nothing and
// returns cancel=true so the caller can abandon the wizard.
func (s *Session) Back() (cancel bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return false, ErrDisposed
	}
	next, err := s.machine.Transition(s.state, Event{Kind: EventBack}, s.saved)
	if errors.Is(err, ErrCancelRequested) {
		s.logger.Debug("Back on first step, cancel requested")
		return true, nil
	}
	if err != nil {
		return false, err
	}
	s.moveTo(next)
	return false, nil
}

// Jump moves to a step that has already been saved, or stays on the active one.
func (s *Session) Jump(step int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return ErrDisposed
	}
	next, err := s.machine.Transition(s.state, Event{Kind: EventJump, Step: step}, s.saved)
	if err != nil {
		return err
	}
	s.moveTo(next)
	return nil
}

func (s *Session) moveTo(next State) {
	if next.Step != s.state.Step {
		s.errMu.Lock()
		s.errors = types.FieldErrors{}
		s.errMu.Unlock()
		s.stepErr = nil
	}
	s.logger.Debug("Step changed", "from", s.state.String(), "to", next.String())
	s.state = next
}

// Status is a point-in-time view of the session.
type Status struct {
	State    State
	Label    string
	Saved    []bool
	Errors   types.FieldErrors
	StepErr  error
	Progress float64
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		State:    s.state,
		Saved:    slices.Clone(s.saved),
		Errors:   s.Errors(),
		Progress: Progress(s.state, len(s.steps)),
	}
	if s.state.Phase != types.PhaseIdle {
		st.Label = s.steps[s.state.Step].Label
	}
	if s.stepErr != nil {
		st.StepErr = s.stepErr
	}
	return st
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Errors returns the field errors of the last validation pass, minus the
// fields edited since.
func (s *Session) Errors() types.FieldErrors {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.errors.Clone()
}

// StepErr returns the persistence failure of the last advance, if any.
func (s *Session) StepErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stepErr == nil {
		return nil
	}
	return s.stepErr
}

func (s *Session) Progress() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Progress(s.state, len(s.steps))
}

func (s *Session) Snapshot() draft.Snapshot {
	return s.store.Snapshot()
}

// Dispose tears the session down. In-flight gateway calls are cancelled and
// their results are not applied. Staged previews are released.
func (s *Session) Dispose() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.disposed = true
	s.mu.Unlock()
	s.cancel()
	s.uploads.ReleaseAll()
	s.logger.Debug("Session disposed")
}

func (s *Session) Disposed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disposed
}

func (s *Session) clearError(key string) {
	s.errMu.Lock()
	delete(s.errors, key)
	s.errMu.Unlock()
}

// bind derives a context that is also cancelled when the session is disposed.
func (s *Session) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// binder keeps draft placeholders consistent with staged uploads.
type binder struct {
	store *draft.Store
}

func (b binder) Placeholder(key, preview, previousURL string) error {
	return b.store.Set(key, types.FileRef{URL: previousURL, Preview: preview})
}

func (b binder) Persisted(key, url string) error {
	return b.store.Replace(key, types.FileRef{URL: url})
}

func (b binder) Restore(key, previousURL string) error {
	return b.store.Replace(key, types.FileRef{URL: previousURL})
}
