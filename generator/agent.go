package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Agent 负责解析用户目标、生成各平台候选文案和配图。
type Agent struct {
	llm    LLMClient
	logger *zap.Logger
}

func NewAgent(llm LLMClient, logger *zap.Logger) (*Agent, error) {
	if llm == nil {
		return nil, errors.New("llm client is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Agent{llm: llm, logger: logger}, nil
}

// ParseBrief 解析自然语言目标。模型调用或解析失败时回落到 FallbackBrief，不返回错误。
func (a *Agent) ParseBrief(ctx context.Context, goal string) Brief {
	raw, err := a.llm.Complete(ctx, BuildParsePrompt(goal))
	if err != nil {
		a.logger.Warn("prompt parsing failed, using fallback", zap.Error(err))
		return FallbackBrief(goal)
	}
	b, err := ParseBrief(raw)
	if err != nil {
		a.logger.Warn("unparseable brief, using fallback", zap.Error(err), zap.String("raw", raw))
		return FallbackBrief(goal)
	}
	return b
}

// CaptionOptions 为单个平台生成候选文案。
func (a *Agent) CaptionOptions(ctx context.Context, topic, platform, feedback string) ([]string, error) {
	raw, err := a.llm.Complete(ctx, BuildCaptionPrompt(topic, platform, feedback))
	if err != nil {
		return nil, fmt.Errorf("generate captions for %s: %w", platform, err)
	}
	opts := ParseCaptionOptions(raw)
	if len(opts) == 0 {
		return nil, fmt.Errorf("generate captions for %s: model returned no caption", platform)
	}
	if len(opts) > CaptionOptionCount {
		opts = opts[:CaptionOptionCount]
	}
	return opts, nil
}

// CaptionsFor 并发生成多个平台的候选文案，任一平台失败则整体失败。
func (a *Agent) CaptionsFor(ctx context.Context, topic string, platforms []string, feedback string) (map[string][]string, error) {
	var mu sync.Mutex
	out := make(map[string][]string, len(platforms))
	g, gctx := errgroup.WithContext(ctx)
	for _, p := range platforms {
		p := p
		g.Go(func() error {
			opts, err := a.CaptionOptions(gctx, topic, p, feedback)
			if err != nil {
				return err
			}
			mu.Lock()
			out[p] = opts
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Image 生成配图描述并转成占位图地址。
func (a *Agent) Image(ctx context.Context, topic, feedback string) (string, error) {
	raw, err := a.llm.Complete(ctx, BuildImagePrompt(topic, feedback))
	if err != nil {
		return "", fmt.Errorf("generate image: %w", err)
	}
	desc := strings.TrimSpace(StripCodeFence(raw))
	if desc == "" {
		desc = topic
	}
	a.logger.Debug("image description", zap.String("description", desc))
	return PlaceholderImageURL(desc), nil
}
