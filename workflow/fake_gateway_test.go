package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// fakeGateway mimics the server: it keeps its own snapshot, applies the same
// transitions and counts every call.
type fakeGateway struct {
	mu    sync.Mutex
	snap  Snapshot
	calls map[string]int

	failNext    map[string]error
	publishWire map[string]string
	// blockGenerate, when set, holds GenerateCaption until it is closed.
	blockGenerate chan struct{}
	// blockGenerateOnce makes only the next GenerateCaption wait.
	blockGenerateOnce bool
	// blockPublish, when set, holds Publish until it is closed.
	blockPublish chan struct{}
	lastCaption  CaptionReview
	lastImage    ImageReview
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		snap:     NewSnapshot(),
		calls:    make(map[string]int),
		failNext: make(map[string]error),
		publishWire: map[string]string{
			"Instagram": "Published to Instagram (id=1)",
			"Facebook":  "Published to Facebook (id=2)",
		},
	}
}

func (g *fakeGateway) count(op string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[op]
}

func (g *fakeGateway) enter(op string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls[op]++
	if err, ok := g.failNext[op]; ok {
		delete(g.failNext, op)
		return err
	}
	return nil
}

func (g *fakeGateway) Start(_ context.Context, prompt string) (Snapshot, error) {
	if err := g.enter("start"); err != nil {
		return Snapshot{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	at := time.Date(2026, 10, 18, 17, 0, 0, 0, time.UTC)
	g.snap = Snapshot{
		ID:        fmt.Sprintf("wf-%d", g.calls["start"]),
		Topic:     prompt,
		Platforms: []string{"Instagram", "Facebook"},
		Captions: map[string]string{
			"Instagram": "ig caption",
			"Facebook":  "fb caption",
		},
		CaptionOptions: map[string][]string{
			"Instagram": {"ig caption", "ig alt"},
		},
		ScheduleTime:  &at,
		PublishStatus: map[string]DeliveryStatus{},
		CurrentStep:   StepReviewCaption,
	}
	return g.snap.Clone(), nil
}

func (g *fakeGateway) Fetch(context.Context) (Snapshot, error) {
	if err := g.enter("fetch"); err != nil {
		return Snapshot{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snap.Clone(), nil
}

func (g *fakeGateway) ReviewCaption(_ context.Context, req CaptionReview) (Snapshot, error) {
	if err := g.enter("review_caption"); err != nil {
		return Snapshot{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastCaption = req
	if req.Accepted {
		for p, c := range req.Captions {
			g.snap.Captions[p] = c
		}
		g.snap.ImagePath = "https://via.placeholder.com/600x400?text=sunset"
		g.snap.CurrentStep = StepReviewImage
		return g.snap.Clone(), nil
	}
	if g.snap.RegenerateCountCaption >= MaxRegenerations {
		return Snapshot{}, errors.New("Max regeneration limit reached")
	}
	g.snap.RegenerateCountCaption++
	for p := range g.snap.Captions {
		g.snap.Captions[p] = fmt.Sprintf("%s v%d (%s)", p, g.snap.RegenerateCountCaption, req.Feedback)
	}
	return g.snap.Clone(), nil
}

func (g *fakeGateway) ReviewImage(_ context.Context, req ImageReview) (Snapshot, error) {
	if err := g.enter("review_image"); err != nil {
		return Snapshot{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastImage = req
	if req.ImagePath != "" {
		g.snap.ImagePath = req.ImagePath
	}
	if req.Accepted {
		g.snap.CurrentStep = StepSchedule
		return g.snap.Clone(), nil
	}
	if g.snap.RegenerateCountImage >= MaxRegenerations {
		return Snapshot{}, errors.New("Max regeneration limit reached")
	}
	g.snap.RegenerateCountImage++
	g.snap.ImagePath = fmt.Sprintf("https://via.placeholder.com/600x400?text=v%d", g.snap.RegenerateCountImage)
	return g.snap.Clone(), nil
}

func (g *fakeGateway) Schedule(_ context.Context, at time.Time) (Snapshot, error) {
	if err := g.enter("schedule"); err != nil {
		return Snapshot{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.snap.ScheduleTime = &at
	g.snap.CurrentStep = StepPublish
	return g.snap.Clone(), nil
}

func (g *fakeGateway) Publish(context.Context) (Snapshot, error) {
	if err := g.enter("publish"); err != nil {
		return Snapshot{}, err
	}
	g.mu.Lock()
	block := g.blockPublish
	g.mu.Unlock()
	if block != nil {
		<-block
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, p := range g.snap.Platforms {
		g.snap.PublishStatus[p] = ParseDeliveryStatus(g.publishWire[p])
	}
	if g.snap.AllPublished() {
		g.snap.CurrentStep = StepCompleted
	}
	return g.snap.Clone(), nil
}

func (g *fakeGateway) GenerateCaption(_ context.Context, req CaptionRequest) (CaptionCandidates, error) {
	g.mu.Lock()
	block := g.blockGenerate
	if g.blockGenerateOnce {
		g.blockGenerate = nil
	}
	g.mu.Unlock()
	if err := g.enter("generate:" + req.Platform); err != nil {
		return CaptionCandidates{}, err
	}
	if block != nil {
		<-block
	}
	return CaptionCandidates{
		Platform: req.Platform,
		Options:  []string{req.Platform + " option 1", req.Platform + " option 2"},
	}, nil
}

var _ Gateway = (*fakeGateway)(nil)
