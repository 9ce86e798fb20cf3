package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"auto_social_publisher/workflow"

	"github.com/google/uuid"
)

// ErrRegenerationLimit 服务端的重新生成上限，与客户端的 MaxRegenerations 一致。
var ErrRegenerationLimit = errors.New("Max regeneration limit reached")

// Session 持有一次工作流在生成阶段的上下文，负责 start 到 review_image 的状态转换。
type Session struct {
	snap  workflow.Snapshot
	agent *Agent
}

// NewSession 基于已有快照恢复 session；空快照即尚未开始。
func NewSession(snap workflow.Snapshot, agent *Agent) *Session {
	return &Session{snap: snap.Clone().Normalized(), agent: agent}
}

// Snapshot 返回当前快照的副本。
func (s *Session) Snapshot() workflow.Snapshot {
	return s.snap.Clone()
}

// Start 解析目标并生成首轮文案。首轮生成不计入重新生成次数。
func (s *Session) Start(ctx context.Context, goal string) error {
	if strings.TrimSpace(goal) == "" {
		return workflow.ErrBlankPrompt
	}
	brief := s.agent.ParseBrief(ctx, goal)
	options, err := s.agent.CaptionsFor(ctx, brief.Topic, brief.Platforms, "")
	if err != nil {
		return err
	}

	next := workflow.NewSnapshot()
	next.ID = uuid.NewString()
	next.Topic = brief.Topic
	next.Platforms = brief.Platforms
	next.ScheduleTime = brief.ScheduleTime
	next.CaptionOptions = options
	for p, opts := range options {
		next.Captions[p] = opts[0]
	}
	next.CurrentStep = workflow.StepReviewCaption
	s.snap = next
	return nil
}

// ReviewCaption 接受时把请求中的文案覆盖到现有文案上（未提交的平台保留原文案）并生成配图；
// 拒绝时按反馈重新生成。
func (s *Session) ReviewCaption(ctx context.Context, req workflow.CaptionReview) error {
	if err := s.expect(workflow.StepReviewCaption); err != nil {
		return err
	}
	if req.Accepted {
		captions := make(map[string]string, len(s.snap.Captions)+len(req.Captions))
		for p, c := range s.snap.Captions {
			captions[p] = c
		}
		for p, c := range req.Captions {
			if !s.snap.HasPlatform(p) {
				return fmt.Errorf("%w: %s", workflow.ErrUnknownPlatform, p)
			}
			captions[p] = c
		}
		img, err := s.agent.Image(ctx, s.snap.Topic, "")
		if err != nil {
			return err
		}
		s.snap.Captions = captions
		s.snap.ImagePath = img
		s.snap.CurrentStep = workflow.StepReviewImage
		return nil
	}

	if s.snap.RegenerateCountCaption >= workflow.MaxRegenerations {
		return ErrRegenerationLimit
	}
	options, err := s.agent.CaptionsFor(ctx, s.snap.Topic, s.snap.Platforms, req.Feedback)
	if err != nil {
		return err
	}
	s.snap.CaptionOptions = options
	s.snap.Captions = make(map[string]string, len(options))
	for p, opts := range options {
		s.snap.Captions[p] = opts[0]
	}
	s.snap.RegenerateCountCaption++
	return nil
}

// ReviewImage 请求里带了 image_path 时先替换；接受后进入排期，拒绝则重新生成配图。
func (s *Session) ReviewImage(ctx context.Context, req workflow.ImageReview) error {
	if err := s.expect(workflow.StepReviewImage); err != nil {
		return err
	}
	if !req.Accepted && s.snap.RegenerateCountImage >= workflow.MaxRegenerations {
		return ErrRegenerationLimit
	}
	if p := strings.TrimSpace(req.ImagePath); p != "" {
		s.snap.ImagePath = p
	}
	if req.Accepted {
		s.snap.CurrentStep = workflow.StepSchedule
		return nil
	}
	img, err := s.agent.Image(ctx, s.snap.Topic, req.Feedback)
	if err != nil {
		return err
	}
	s.snap.ImagePath = img
	s.snap.RegenerateCountImage++
	return nil
}

// GenerateCaption 只更新单个平台的候选和文案，默认选第一条。
func (s *Session) GenerateCaption(ctx context.Context, req workflow.CaptionRequest) (workflow.CaptionCandidates, error) {
	topic, err := s.CaptionTopic(req)
	if err != nil {
		return workflow.CaptionCandidates{}, err
	}
	opts, err := s.agent.CaptionOptions(ctx, topic, req.Platform, req.Feedback)
	if err != nil {
		return workflow.CaptionCandidates{}, err
	}
	return s.ApplyCaptionOptions(s.snap.ID, req.Platform, opts)
}

// CaptionTopic 校验单平台生成请求，返回生成时使用的主题；不调用模型。
func (s *Session) CaptionTopic(req workflow.CaptionRequest) (string, error) {
	if err := s.expect(workflow.StepReviewCaption); err != nil {
		return "", err
	}
	if !s.snap.HasPlatform(req.Platform) {
		return "", fmt.Errorf("%w: %s", workflow.ErrUnknownPlatform, req.Platform)
	}
	if topic := strings.TrimSpace(req.Topic); topic != "" {
		return topic, nil
	}
	return s.snap.Topic, nil
}

// ApplyCaptionOptions 把某个工作流生成的候选写回对应平台。
// 生成期间工作流已被替换或离开文案审核时返回 ErrWrongStep，快照不变。
func (s *Session) ApplyCaptionOptions(workflowID, platform string, opts []string) (workflow.CaptionCandidates, error) {
	if err := s.expect(workflow.StepReviewCaption); err != nil {
		return workflow.CaptionCandidates{}, err
	}
	if s.snap.ID != workflowID {
		return workflow.CaptionCandidates{}, fmt.Errorf("%w: workflow %s was replaced during caption generation", workflow.ErrWrongStep, workflowID)
	}
	if !s.snap.HasPlatform(platform) {
		return workflow.CaptionCandidates{}, fmt.Errorf("%w: %s", workflow.ErrUnknownPlatform, platform)
	}
	if len(opts) == 0 {
		return workflow.CaptionCandidates{}, fmt.Errorf("no caption options for %s", platform)
	}
	s.snap.CaptionOptions[platform] = append([]string{}, opts...)
	s.snap.Captions[platform] = opts[0]
	return workflow.CaptionCandidates{
		Platform: platform,
		Options:  append([]string{}, opts...),
		Caption:  opts[0],
	}, nil
}

func (s *Session) expect(step workflow.Step) error {
	if s.snap.CurrentStep != step {
		return fmt.Errorf("%w: expected %s, workflow is at %s", workflow.ErrWrongStep, step, s.snap.CurrentStep)
	}
	return nil
}
