package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// MockLLM 一个简单的占位实现，便于本地调试和测试，不调用外部模型。
// 回复内容由 Prompt.Task 决定，结果是确定的。
type MockLLM struct{}

func (m MockLLM) Complete(_ context.Context, prompt Prompt) (string, error) {
	user := strings.TrimSpace(prompt.User)
	switch prompt.Task {
	case TaskParse:
		goal := strings.TrimSpace(strings.TrimPrefix(user, "Request:"))
		var platforms []string
		lower := strings.ToLower(goal)
		for _, p := range SupportedPlatforms {
			if strings.Contains(lower, strings.ToLower(p)) {
				platforms = append(platforms, strings.ToLower(p))
			}
		}
		body, err := json.Marshal(map[string]any{
			"topic":         goal,
			"platforms":     platforms,
			"schedule_time": nil,
		})
		if err != nil {
			return "", err
		}
		return "```json\n" + string(body) + "\n```", nil
	case TaskCaption:
		topic := strings.TrimSpace(strings.TrimPrefix(strings.SplitN(user, "\n", 2)[0], "Topic:"))
		suffix := ""
		for _, h := range prompt.History {
			suffix = " (" + strings.TrimPrefix(h.Content, "Feedback on the previous captions: ") + ")"
		}
		var sb strings.Builder
		for i := 1; i <= CaptionOptionCount; i++ {
			fmt.Fprintf(&sb, "%d. Caption %d about %s%s\n", i, i, topic, suffix)
		}
		return sb.String(), nil
	case TaskImage:
		topic := strings.TrimSpace(strings.TrimPrefix(strings.SplitN(user, "\n", 2)[0], "Topic:"))
		return "A bright photo of " + topic, nil
	default:
		return user, nil
	}
}
