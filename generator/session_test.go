package generator

import (
	"context"
	"errors"
	"testing"

	"auto_social_publisher/workflow"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startedSession(t *testing.T, goal string) *Session {
	t.Helper()
	s := NewSession(workflow.NewSnapshot(), newTestAgent(t, MockLLM{}))
	require.NoError(t, s.Start(context.Background(), goal))
	return s
}

func TestSessionStart(t *testing.T) {
	s := startedSession(t, "Promote the autumn sale on Instagram and LinkedIn")
	snap := s.Snapshot()

	assert.NotEmpty(t, snap.ID)
	assert.Equal(t, workflow.StepReviewCaption, snap.CurrentStep)
	assert.Equal(t, []string{"Instagram", "LinkedIn"}, snap.Platforms)
	assert.Zero(t, snap.RegenerateCountCaption)
	assert.Zero(t, snap.RegenerateCountImage)
	for _, p := range snap.Platforms {
		require.Len(t, snap.CaptionOptions[p], CaptionOptionCount)
		assert.Equal(t, snap.CaptionOptions[p][0], snap.Captions[p])
	}

	again := startedSession(t, "Promote the autumn sale")
	assert.NotEqual(t, snap.ID, again.Snapshot().ID)
	assert.Equal(t, SupportedPlatforms, again.Snapshot().Platforms)
}

func TestSessionStart_BlankGoal(t *testing.T) {
	s := NewSession(workflow.NewSnapshot(), newTestAgent(t, MockLLM{}))
	assert.ErrorIs(t, s.Start(context.Background(), " \t"), workflow.ErrBlankPrompt)
	assert.Equal(t, workflow.StepPrompt, s.Snapshot().CurrentStep)
}

func TestSessionRejectCaption_Limit(t *testing.T) {
	s := startedSession(t, "coffee on facebook")
	ctx := context.Background()
	for i := 1; i <= workflow.MaxRegenerations; i++ {
		require.NoError(t, s.ReviewCaption(ctx, workflow.CaptionReview{Feedback: "shorter"}))
		assert.Equal(t, i, s.Snapshot().RegenerateCountCaption)
	}
	assert.Equal(t, "Caption 1 about coffee on facebook (shorter)", s.Snapshot().Captions["Facebook"])

	err := s.ReviewCaption(ctx, workflow.CaptionReview{Feedback: "again"})
	assert.ErrorIs(t, err, ErrRegenerationLimit)
	assert.Equal(t, workflow.MaxRegenerations, s.Snapshot().RegenerateCountCaption)

	// accepting is always possible
	require.NoError(t, s.ReviewCaption(ctx, workflow.CaptionReview{Accepted: true, Captions: map[string]string{"Facebook": "final"}}))
	snap := s.Snapshot()
	assert.Equal(t, workflow.StepReviewImage, snap.CurrentStep)
	assert.Equal(t, map[string]string{"Facebook": "final"}, snap.Captions)
	assert.Contains(t, snap.ImagePath, "via.placeholder.com")
}

func TestSessionAcceptCaption_PartialEditKeepsOthers(t *testing.T) {
	s := startedSession(t, "Promote the autumn sale on Instagram and LinkedIn")
	linkedIn := s.Snapshot().Captions["LinkedIn"]
	require.NotEmpty(t, linkedIn)

	require.NoError(t, s.ReviewCaption(context.Background(), workflow.CaptionReview{
		Accepted: true,
		Captions: map[string]string{"Instagram": "mine"},
	}))
	assert.Equal(t, map[string]string{"Instagram": "mine", "LinkedIn": linkedIn}, s.Snapshot().Captions)
}

func TestSessionAcceptCaption_UnknownPlatform(t *testing.T) {
	s := startedSession(t, "coffee on facebook")
	err := s.ReviewCaption(context.Background(), workflow.CaptionReview{Accepted: true, Captions: map[string]string{"TikTok": "x"}})
	assert.ErrorIs(t, err, workflow.ErrUnknownPlatform)
	assert.Equal(t, workflow.StepReviewCaption, s.Snapshot().CurrentStep)
}

func TestSessionReviewImage(t *testing.T) {
	s := startedSession(t, "coffee on facebook")
	ctx := context.Background()
	require.NoError(t, s.ReviewCaption(ctx, workflow.CaptionReview{Accepted: true, Captions: map[string]string{"Facebook": "final"}}))

	require.NoError(t, s.ReviewImage(ctx, workflow.ImageReview{Feedback: "darker"}))
	assert.Equal(t, 1, s.Snapshot().RegenerateCountImage)
	assert.Equal(t, 0, s.Snapshot().RegenerateCountCaption)

	require.NoError(t, s.ReviewImage(ctx, workflow.ImageReview{Accepted: true, ImagePath: "/tmp/mine.png"}))
	snap := s.Snapshot()
	assert.Equal(t, "/tmp/mine.png", snap.ImagePath)
	assert.Equal(t, workflow.StepSchedule, snap.CurrentStep)
}

func TestSessionReviewImage_Limit(t *testing.T) {
	s := startedSession(t, "coffee on facebook")
	ctx := context.Background()
	require.NoError(t, s.ReviewCaption(ctx, workflow.CaptionReview{Accepted: true, Captions: map[string]string{"Facebook": "final"}}))
	for i := 0; i < workflow.MaxRegenerations; i++ {
		require.NoError(t, s.ReviewImage(ctx, workflow.ImageReview{Feedback: "again"}))
	}
	before := s.Snapshot().ImagePath
	err := s.ReviewImage(ctx, workflow.ImageReview{Feedback: "again", ImagePath: "ignored.png"})
	assert.ErrorIs(t, err, ErrRegenerationLimit)
	assert.Equal(t, before, s.Snapshot().ImagePath)
}

func TestSessionWrongStep(t *testing.T) {
	s := NewSession(workflow.NewSnapshot(), newTestAgent(t, MockLLM{}))
	err := s.ReviewImage(context.Background(), workflow.ImageReview{Accepted: true})
	assert.ErrorIs(t, err, workflow.ErrWrongStep)
	_, err = s.GenerateCaption(context.Background(), workflow.CaptionRequest{Platform: "Instagram"})
	assert.ErrorIs(t, err, workflow.ErrWrongStep)
}

func TestSessionApplyCaptionOptions(t *testing.T) {
	s := startedSession(t, "coffee on instagram and facebook")
	id := s.Snapshot().ID

	topic, err := s.CaptionTopic(workflow.CaptionRequest{Platform: "Facebook"})
	require.NoError(t, err)
	assert.Equal(t, "coffee on instagram and facebook", topic)
	_, err = s.CaptionTopic(workflow.CaptionRequest{Platform: "LinkedIn"})
	assert.ErrorIs(t, err, workflow.ErrUnknownPlatform)

	_, err = s.ApplyCaptionOptions("another-workflow", "Facebook", []string{"late"})
	assert.ErrorIs(t, err, workflow.ErrWrongStep)
	assert.NotEqual(t, "late", s.Snapshot().Captions["Facebook"])

	_, err = s.ApplyCaptionOptions(id, "Facebook", nil)
	assert.Error(t, err)

	cands, err := s.ApplyCaptionOptions(id, "Facebook", []string{"one", "two"})
	require.NoError(t, err)
	assert.Equal(t, "one", cands.Caption)
	assert.Equal(t, []string{"one", "two"}, s.Snapshot().CaptionOptions["Facebook"])
}

func TestSessionGenerateCaption(t *testing.T) {
	s := startedSession(t, "coffee on instagram and facebook")
	before := s.Snapshot()

	cands, err := s.GenerateCaption(context.Background(), workflow.CaptionRequest{Platform: "Instagram", Topic: "tea", Feedback: "calmer"})
	require.NoError(t, err)
	assert.Equal(t, "Instagram", cands.Platform)
	assert.Equal(t, "Caption 1 about tea (calmer)", cands.Caption)

	after := s.Snapshot()
	assert.Equal(t, cands.Options, after.CaptionOptions["Instagram"])
	assert.Equal(t, cands.Caption, after.Captions["Instagram"])
	assert.Equal(t, before.Captions["Facebook"], after.Captions["Facebook"])
	assert.Equal(t, before.CaptionOptions["Facebook"], after.CaptionOptions["Facebook"])

	_, err = s.GenerateCaption(context.Background(), workflow.CaptionRequest{Platform: "LinkedIn"})
	assert.ErrorIs(t, err, workflow.ErrUnknownPlatform)
}

func TestSessionStart_GenerationFailureKeepsSnapshot(t *testing.T) {
	llm := &scriptedLLM{
		replies: map[string]string{TaskParse: `{"topic":"x","platforms":["Facebook"]}`},
		errs:    map[string]error{TaskCaption: errors.New("upstream down")},
	}
	s := NewSession(workflow.NewSnapshot(), newTestAgent(t, llm))
	require.Error(t, s.Start(context.Background(), "x"))
	assert.Equal(t, workflow.StepPrompt, s.Snapshot().CurrentStep)
}
