package workflow

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// State is a read-only view of the orchestrator: the mirrored snapshot plus
// the transient client state that is never persisted.
type State struct {
	Snapshot   Snapshot
	Loading    bool
	Err        string
	Generating map[string]bool
	// PublishTriggered is the one-shot publish latch.
	PublishTriggered bool
}

// View returns the active view for the current step.
func (s State) View() View {
	return ViewFor(s.Snapshot.CurrentStep)
}

// ShowCompletionBanner reports whether the publish view should announce
// that the workflow finished.
func (s State) ShowCompletionBanner() bool {
	return s.Snapshot.CurrentStep == StepCompleted
}

// CanRejectCaption reports whether the caption reject intent is available.
func (s State) CanRejectCaption() bool {
	return !s.Loading && captionCycle.canReject(s.Snapshot)
}

// CanRejectImage reports whether the image reject intent is available.
func (s State) CanRejectImage() bool {
	return !s.Loading && imageCycle.canReject(s.Snapshot)
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger used for intent and transition logs.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithListener registers fn to be called with a fresh State after every
// change. Listeners run on the goroutine that caused the change.
func WithListener(fn func(State)) Option {
	return func(o *Orchestrator) {
		if fn != nil {
			o.listeners = append(o.listeners, fn)
		}
	}
}

// Orchestrator owns the workflow snapshot and the transient client state.
// All intents go through it. Lifecycle intents are mutually exclusive:
// while one remote call is in flight, others fail with ErrBusy. Caption
// generation is tracked per platform and may overlap.
type Orchestrator struct {
	gw        Gateway
	logger    *zap.Logger
	listeners []func(State)

	mu             sync.Mutex
	snap           Snapshot
	loading        bool
	errMsg         string
	// generating maps a platform to the token of its in-flight generation.
	generating     map[string]uint64
	genSeq         uint64
	publishLatched bool
}

// NewOrchestrator returns an Orchestrator holding the initial empty
// snapshot. Call Resync to pick up the server's state.
func NewOrchestrator(gw Gateway, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		gw:         gw,
		logger:     zap.NewNop(),
		snap:       NewSnapshot(),
		generating: make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// State returns a deep copy of the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stateLocked()
}

// Snapshot returns a copy of the mirrored snapshot.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snap.Clone()
}

// View returns the active view for the mirrored snapshot.
func (o *Orchestrator) View() View {
	o.mu.Lock()
	defer o.mu.Unlock()
	return ViewFor(o.snap.CurrentStep)
}

// Start begins a new workflow from a natural-language prompt. The previous
// workflow, its counters, its publish latch and its pending generations are
// discarded on success.
func (o *Orchestrator) Start(ctx context.Context, prompt string) error {
	if _, err := o.begin("start", func(Snapshot) error {
		if strings.TrimSpace(prompt) == "" {
			return ErrBlankPrompt
		}
		return nil
	}); err != nil {
		return err
	}
	next, err := o.gw.Start(ctx, prompt)
	return o.finish("start", next, err, func() {
		o.publishLatched = false
		o.generating = make(map[string]uint64)
	})
}

// Resync replaces the local snapshot with the server's last confirmed one.
// When the server is waiting in the publish step and nothing was delivered
// yet, the automatic publish fires.
func (o *Orchestrator) Resync(ctx context.Context) error {
	if _, err := o.begin("resync", nil); err != nil {
		return err
	}
	next, err := o.gw.Fetch(ctx)
	if err := o.finish("resync", next, err, nil); err != nil {
		return err
	}
	o.autoPublish(ctx)
	return nil
}

// ReviewCaption accepts or rejects the captions. On accept, edited holds the
// locally changed captions; they are laid over the snapshot's captions, so
// platforms missing from edited keep their current caption.
func (o *Orchestrator) ReviewCaption(ctx context.Context, accepted bool, feedback string, edited map[string]string) error {
	snap, err := o.begin("review_caption", func(s Snapshot) error {
		if err := captionCycle.check(s, accepted, feedback); err != nil {
			return err
		}
		for p := range edited {
			if !s.HasPlatform(p) {
				return fmt.Errorf("%w: %s", ErrUnknownPlatform, p)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	req := CaptionReview{Accepted: accepted}
	if accepted {
		req.Captions = make(map[string]string, len(snap.Captions)+len(edited))
		for p, c := range snap.Captions {
			req.Captions[p] = c
		}
		for p, c := range edited {
			req.Captions[p] = c
		}
	} else {
		req.Feedback = strings.TrimSpace(feedback)
		req.Captions = map[string]string{}
	}
	next, err := o.gw.ReviewCaption(ctx, req)
	return o.finish("review_caption", next, err, nil)
}

// ReviewImage accepts or rejects the image. On accept, replacement is the
// chosen image reference; empty keeps the image the server suggested.
func (o *Orchestrator) ReviewImage(ctx context.Context, accepted bool, feedback string, replacement string) error {
	snap, err := o.begin("review_image", func(s Snapshot) error {
		return imageCycle.check(s, accepted, feedback)
	})
	if err != nil {
		return err
	}

	req := ImageReview{Accepted: accepted}
	if accepted {
		req.ImagePath = strings.TrimSpace(replacement)
		if req.ImagePath == "" {
			req.ImagePath = snap.ImagePath
		}
	} else {
		req.Feedback = strings.TrimSpace(feedback)
	}
	next, err := o.gw.ReviewImage(ctx, req)
	return o.finish("review_image", next, err, nil)
}

// Schedule fixes the publish time. Entering the publish step triggers the
// automatic publish exactly once; its outcome is reported through State.
func (o *Orchestrator) Schedule(ctx context.Context, at time.Time) error {
	if _, err := o.begin("schedule", func(s Snapshot) error {
		if s.CurrentStep != StepSchedule {
			return fmt.Errorf("%w: schedule requires %s, workflow is at %s", ErrWrongStep, StepSchedule, s.CurrentStep)
		}
		if at.IsZero() {
			return ErrMissingScheduleTime
		}
		return nil
	}); err != nil {
		return err
	}
	next, err := o.gw.Schedule(ctx, at)
	if err := o.finish("schedule", next, err, nil); err != nil {
		return err
	}
	o.autoPublish(ctx)
	return nil
}

// Publish delivers the workflow to its platforms. It is guarded by a
// one-shot latch: a second call fails with ErrAlreadyPublished and makes no
// remote call, even if some platforms failed.
func (o *Orchestrator) Publish(ctx context.Context) error {
	if _, err := o.begin("publish", func(s Snapshot) error {
		if s.CurrentStep != StepPublish {
			return fmt.Errorf("%w: publish requires %s, workflow is at %s", ErrWrongStep, StepPublish, s.CurrentStep)
		}
		if o.publishLatched {
			return ErrAlreadyPublished
		}
		o.publishLatched = true
		return nil
	}); err != nil {
		return err
	}
	next, err := o.gw.Publish(ctx)
	return o.finish("publish", next, err, nil)
}

// GenerateCaption requests candidate captions for a single platform. It does
// not take the lifecycle lock, so several platforms can generate at once.
// The result only touches that platform's options and caption, and is
// dropped if the workflow moved on meanwhile.
func (o *Orchestrator) GenerateCaption(ctx context.Context, platform string) error {
	o.mu.Lock()
	var checkErr error
	switch {
	case o.snap.CurrentStep != StepReviewCaption:
		checkErr = fmt.Errorf("%w: caption generation requires %s, workflow is at %s", ErrWrongStep, StepReviewCaption, o.snap.CurrentStep)
	case !o.snap.HasPlatform(platform):
		checkErr = fmt.Errorf("%w: %s", ErrUnknownPlatform, platform)
	case o.generating[platform] != 0:
		checkErr = fmt.Errorf("%w: %s", ErrGenerationInFlight, platform)
	}
	if checkErr != nil {
		o.errMsg = checkErr.Error()
		st := o.stateLocked()
		o.mu.Unlock()
		o.notify(st)
		return checkErr
	}
	o.genSeq++
	token := o.genSeq
	o.generating[platform] = token
	workflowID := o.snap.ID
	topic := o.snap.Topic
	st := o.stateLocked()
	o.mu.Unlock()
	o.notify(st)

	o.logger.Debug("generating captions", zap.String("platform", platform))
	cands, err := o.gw.GenerateCaption(ctx, CaptionRequest{Platform: platform, Topic: topic})

	o.mu.Lock()
	if o.generating[platform] == token {
		delete(o.generating, platform)
	}
	switch {
	case err != nil:
		o.errMsg = err.Error()
		o.logger.Warn("caption generation failed", zap.String("platform", platform), zap.Error(err))
	case o.snap.ID != workflowID || o.snap.CurrentStep != StepReviewCaption:
		o.logger.Debug("dropping stale caption candidates", zap.String("platform", platform))
	default:
		o.snap.CaptionOptions[platform] = append([]string{}, cands.Options...)
		caption := cands.Caption
		if caption == "" && len(cands.Options) > 0 {
			caption = cands.Options[0]
		}
		if caption != "" {
			o.snap.Captions[platform] = caption
		}
	}
	st = o.stateLocked()
	o.mu.Unlock()
	o.notify(st)
	return err
}

// begin runs check under the lock and marks a lifecycle call as in flight.
// It returns the snapshot the call was validated against.
func (o *Orchestrator) begin(intent string, check func(Snapshot) error) (Snapshot, error) {
	o.mu.Lock()
	if o.loading {
		o.mu.Unlock()
		o.logger.Debug("intent refused while busy", zap.String("intent", intent))
		return Snapshot{}, ErrBusy
	}
	if check != nil {
		if err := check(o.snap); err != nil {
			o.errMsg = err.Error()
			st := o.stateLocked()
			o.mu.Unlock()
			o.logger.Info("intent rejected locally", zap.String("intent", intent), zap.Error(err))
			o.notify(st)
			return Snapshot{}, err
		}
	}
	o.loading = true
	o.errMsg = ""
	snap := o.snap.Clone()
	st := o.stateLocked()
	o.mu.Unlock()
	o.notify(st)
	return snap, nil
}

// finish clears the in-flight flag and either replaces the snapshot
// wholesale or records the remote error, keeping the last good snapshot.
func (o *Orchestrator) finish(intent string, next Snapshot, err error, onSuccess func()) error {
	o.mu.Lock()
	o.loading = false
	prev := o.snap.CurrentStep
	if err != nil {
		o.errMsg = err.Error()
	} else {
		o.snap = next.Normalized()
		if onSuccess != nil {
			onSuccess()
		}
	}
	st := o.stateLocked()
	o.mu.Unlock()

	step := st.Snapshot.CurrentStep
	switch {
	case err != nil:
		o.logger.Warn("remote call failed", zap.String("intent", intent), zap.Error(err))
	case !step.Valid():
		o.logger.Warn("server reported an unknown step",
			zap.String("intent", intent),
			zap.String("step", string(step)))
	case intent != "start" && step.Before(prev):
		// only a new workflow may restart the lifecycle
		o.logger.Warn("workflow step moved backwards",
			zap.String("intent", intent),
			zap.String("from", string(prev)),
			zap.String("to", string(step)))
	case prev != step:
		o.logger.Info("workflow step changed",
			zap.String("intent", intent),
			zap.String("from", string(prev)),
			zap.String("to", string(step)))
	}
	o.notify(st)
	return err
}

func (o *Orchestrator) autoPublish(ctx context.Context) {
	o.mu.Lock()
	fire := o.snap.CurrentStep == StepPublish && !o.publishLatched && len(o.snap.PublishStatus) == 0
	o.mu.Unlock()
	if !fire {
		return
	}
	if err := o.Publish(ctx); err != nil {
		o.logger.Warn("automatic publish failed", zap.Error(err))
	}
}

func (o *Orchestrator) stateLocked() State {
	gen := make(map[string]bool, len(o.generating))
	for k := range o.generating {
		gen[k] = true
	}
	return State{
		Snapshot:         o.snap.Clone(),
		Loading:          o.loading,
		Err:              o.errMsg,
		Generating:       gen,
		PublishTriggered: o.publishLatched,
	}
}

func (o *Orchestrator) notify(st State) {
	for _, fn := range o.listeners {
		fn(st)
	}
}
