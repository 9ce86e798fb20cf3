package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"auto_social_publisher/generator"
	"auto_social_publisher/publisher"
	"auto_social_publisher/store"
	"auto_social_publisher/workflow"
)

const requestTimeout = 60 * time.Second

// Publisher delivers a post; implemented by *publisher.Publisher.
type Publisher interface {
	Publish(ctx context.Context, post publisher.Post, prev map[string]workflow.DeliveryStatus) map[string]workflow.DeliveryStatus
}

// Server exposes the workflow over HTTP. It owns a single active workflow;
// every handler runs load-mutate-save under one mutex.
type Server struct {
	agent  *generator.Agent
	pub    Publisher
	store  store.Store
	logger *zap.Logger

	mu sync.Mutex
}

func New(agent *generator.Agent, pub Publisher, st store.Store, logger *zap.Logger) (*Server, error) {
	if agent == nil {
		return nil, errors.New("generator agent required")
	}
	if pub == nil {
		return nil, errors.New("publisher required")
	}
	if st == nil {
		return nil, errors.New("store required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{agent: agent, pub: pub, store: st, logger: logger}, nil
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/workflow/start", s.post(s.handleStart))
	mux.HandleFunc("/workflow/state", s.handleState)
	mux.HandleFunc("/workflow/generate-caption", s.post(s.handleGenerateCaption))
	mux.HandleFunc("/workflow/review-caption", s.post(s.handleReviewCaption))
	mux.HandleFunc("/workflow/review-image", s.post(s.handleReviewImage))
	mux.HandleFunc("/workflow/schedule", s.post(s.handleSchedule))
	mux.HandleFunc("/workflow/publish", s.post(s.handlePublish))
	return logMiddleware(s.logger, mux)
}

// --- Handlers ---

type startReq struct {
	Prompt string `json:"prompt"`
}

type generateCaptionReq struct {
	Platform string `json:"platform"`
	Topic    string `json:"topic"`
	Feedback string `json:"feedback,omitempty"`
}

type scheduleReq struct {
	ScheduleTime string `json:"schedule_time"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startReq
	if !decode(w, r, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	sess := generator.NewSession(workflow.NewSnapshot(), s.agent)
	if err := sess.Start(ctx, req.Prompt); err != nil {
		s.fail(w, "start", err)
		return
	}
	s.saveAndWrite(w, ctx, "start", sess.Snapshot())
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.load(r.Context())
	if err != nil {
		s.fail(w, "state", err)
		return
	}
	writeJSON(w, snap)
}

// handleGenerateCaption calls the model without holding s.mu, so several
// platforms can generate at once and state reads are not blocked. The
// result is applied to a freshly loaded snapshot.
func (s *Server) handleGenerateCaption(w http.ResponseWriter, r *http.Request) {
	var req generateCaptionReq
	if !decode(w, r, &req) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	creq := workflow.CaptionRequest{
		Platform: req.Platform,
		Topic:    req.Topic,
		Feedback: req.Feedback,
	}

	s.mu.Lock()
	sess, err := s.session(ctx)
	var topic, workflowID string
	if err == nil {
		topic, err = sess.CaptionTopic(creq)
		workflowID = sess.Snapshot().ID
	}
	s.mu.Unlock()
	if err != nil {
		s.fail(w, "generate_caption", err)
		return
	}

	opts, err := s.agent.CaptionOptions(ctx, topic, creq.Platform, creq.Feedback)
	if err != nil {
		s.fail(w, "generate_caption", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err = s.session(ctx)
	if err != nil {
		s.fail(w, "generate_caption", err)
		return
	}
	cands, err := sess.ApplyCaptionOptions(workflowID, creq.Platform, opts)
	if err != nil {
		s.fail(w, "generate_caption", err)
		return
	}
	if err := s.store.Save(ctx, sess.Snapshot()); err != nil {
		s.fail(w, "generate_caption", fmt.Errorf("save workflow: %w", err))
		return
	}
	writeJSON(w, cands)
}

func (s *Server) handleReviewCaption(w http.ResponseWriter, r *http.Request) {
	var req workflow.CaptionReview
	if !decode(w, r, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	sess, err := s.session(ctx)
	if err != nil {
		s.fail(w, "review_caption", err)
		return
	}
	if err := sess.ReviewCaption(ctx, req); err != nil {
		s.fail(w, "review_caption", err)
		return
	}
	s.saveAndWrite(w, ctx, "review_caption", sess.Snapshot())
}

func (s *Server) handleReviewImage(w http.ResponseWriter, r *http.Request) {
	var req workflow.ImageReview
	if !decode(w, r, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	sess, err := s.session(ctx)
	if err != nil {
		s.fail(w, "review_image", err)
		return
	}
	if err := sess.ReviewImage(ctx, req); err != nil {
		s.fail(w, "review_image", err)
		return
	}
	s.saveAndWrite(w, ctx, "review_image", sess.Snapshot())
}

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	var req scheduleReq
	if !decode(w, r, &req) {
		return
	}
	at, err := workflow.ParseScheduleTime(req.ScheduleTime, time.UTC)
	if err != nil {
		s.fail(w, "schedule", err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.load(r.Context())
	if err != nil {
		s.fail(w, "schedule", err)
		return
	}
	if err := expectStep(snap, workflow.StepSchedule); err != nil {
		s.fail(w, "schedule", err)
		return
	}
	snap.ScheduleTime = &at
	snap.CurrentStep = workflow.StepPublish
	s.saveAndWrite(w, r.Context(), "schedule", snap)
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(r.Context(), 2*requestTimeout)
	defer cancel()
	snap, err := s.load(ctx)
	if err != nil {
		s.fail(w, "publish", err)
		return
	}
	if err := expectStep(snap, workflow.StepPublish); err != nil {
		s.fail(w, "publish", err)
		return
	}
	if snap.Concluded() {
		// every platform already has an outcome; failures are not retried
		writeJSON(w, snap)
		return
	}
	snap.PublishStatus = s.pub.Publish(ctx, publisher.Post{
		Platforms:    snap.Platforms,
		Captions:     snap.Captions,
		ImagePath:    snap.ImagePath,
		ScheduleTime: snap.ScheduleTime,
	}, snap.PublishStatus)
	if snap.AllPublished() {
		snap.CurrentStep = workflow.StepCompleted
	}
	s.saveAndWrite(w, ctx, "publish", snap)
}

// --- Helpers ---

// post rejects anything but POST before calling h.
func (s *Server) post(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		h(w, r)
	}
}

// load returns the stored snapshot, or the initial one when nothing was saved.
func (s *Server) load(ctx context.Context) (workflow.Snapshot, error) {
	snap, err := s.store.Load(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return workflow.NewSnapshot(), nil
	}
	if err != nil {
		return workflow.Snapshot{}, fmt.Errorf("load workflow: %w", err)
	}
	return snap, nil
}

func (s *Server) session(ctx context.Context) (*generator.Session, error) {
	snap, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return generator.NewSession(snap, s.agent), nil
}

func (s *Server) saveAndWrite(w http.ResponseWriter, ctx context.Context, op string, snap workflow.Snapshot) {
	if err := s.store.Save(ctx, snap); err != nil {
		s.fail(w, op, fmt.Errorf("save workflow: %w", err))
		return
	}
	s.logger.Debug("workflow saved",
		zap.String("op", op),
		zap.String("workflow", snap.ID),
		zap.String("step", string(snap.CurrentStep)))
	writeJSON(w, snap)
}

func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("op", op), zap.Error(err))
	} else {
		s.logger.Info("request rejected", zap.String("op", op), zap.Error(err))
	}
	writeError(w, status, err.Error())
}

func expectStep(snap workflow.Snapshot, step workflow.Step) error {
	if snap.CurrentStep != step {
		return fmt.Errorf("%w: expected %s, workflow is at %s", workflow.ErrWrongStep, step, snap.CurrentStep)
	}
	return nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, workflow.ErrWrongStep):
		return http.StatusConflict
	case errors.Is(err, workflow.ErrBlankPrompt),
		errors.Is(err, workflow.ErrUnknownPlatform),
		errors.Is(err, workflow.ErrMissingScheduleTime),
		errors.Is(err, workflow.ErrInvalidScheduleTime),
		errors.Is(err, generator.ErrRegenerationLimit):
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func logMiddleware(logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)))
	})
}
