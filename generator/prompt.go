package generator

import (
	"fmt"
	"strings"
)

// Prompt 表示发送给 LLM 的消息集合。Task 标记用途，MockLLM 依此选择回复。
type Prompt struct {
	Task    string
	System  string
	User    string
	History []Message
}

// Message 用于少量历史（可选）。
type Message struct {
	Role    string
	Content string
}

const (
	TaskParse   = "parse"
	TaskCaption = "caption"
	TaskImage   = "image"
)

// BuildParsePrompt 让模型把自然语言目标拆成 topic/platforms/schedule_time。
func BuildParsePrompt(goal string) Prompt {
	var sb strings.Builder
	sb.WriteString("You extract publishing instructions from a request.\n")
	sb.WriteString("Reply with a single JSON object and nothing else, using the keys:\n")
	sb.WriteString("- \"topic\": what the post is about.\n")
	sb.WriteString(fmt.Sprintf("- \"platforms\": a list drawn from %s. Use all of them if none are named.\n", strings.Join(SupportedPlatforms, ", ")))
	sb.WriteString("- \"schedule_time\": ISO 8601 date-time if the request names one, otherwise null.\n")

	return Prompt{
		Task:   TaskParse,
		System: sb.String(),
		User:   fmt.Sprintf("Request: %s", goal),
	}
}

// BuildCaptionPrompt 生成单个平台的候选文案提示词。
func BuildCaptionPrompt(topic, platform, feedback string) Prompt {
	var sb strings.Builder
	sb.WriteString("You are a social media copywriter.\n")
	sb.WriteString(fmt.Sprintf("Write %d alternative captions for %s.\n", CaptionOptionCount, platform))
	sb.WriteString("Number them \"1.\", \"2.\", \"3.\" and output nothing else.\n")
	switch platform {
	case "Instagram":
		sb.WriteString("- Keep it short and visual, end with a few hashtags.\n")
	case "Facebook":
		sb.WriteString("- Conversational, one or two short paragraphs.\n")
	case "LinkedIn":
		sb.WriteString("- Professional tone, no more than three hashtags.\n")
	}

	user := fmt.Sprintf("Topic: %s", topic)
	var history []Message
	if fb := strings.TrimSpace(feedback); fb != "" {
		// 反馈作为上一轮用户意见传入。
		history = append(history, Message{Role: "user", Content: "Feedback on the previous captions: " + fb})
		user += "\nApply the feedback above."
	}

	return Prompt{
		Task:    TaskCaption,
		System:  sb.String(),
		User:    user,
		History: history,
	}
}

// BuildImagePrompt 生成配图描述提示词。
func BuildImagePrompt(topic, feedback string) Prompt {
	user := fmt.Sprintf("Topic: %s", topic)
	if fb := strings.TrimSpace(feedback); fb != "" {
		user += fmt.Sprintf("\nFeedback on the previous image: %s", fb)
	}
	return Prompt{
		Task:   TaskImage,
		System: "Describe a single image for a social media post in one sentence. Output only the description.",
		User:   user,
	}
}

// Temperature 按任务返回采样温度：解析要求稳定输出，文案需要多样性。
func (p Prompt) Temperature() float64 {
	switch p.Task {
	case TaskParse:
		return 0
	case TaskCaption:
		return 0.9
	default:
		return 0.7
	}
}
