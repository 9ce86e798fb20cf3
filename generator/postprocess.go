package generator

import (
	"encoding/json"
	"errors"
	"net/url"
	"regexp"
	"strings"
	"time"
)

const placeholderImageBase = "https://via.placeholder.com/600x400?text="

var (
	fenceRe  = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")
	optionRe = regexp.MustCompile(`(?i)^\s*(?:(?:option|caption)\s*)?(\d+)\s*[.):]\s*(.*)$`)
)

// briefLayouts 依次尝试的时间格式。
var briefLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

type rawBrief struct {
	Topic        string   `json:"topic"`
	Platforms    []string `json:"platforms"`
	ScheduleTime *string  `json:"schedule_time"`
}

// StripCodeFence 去掉模型常见的 ```json 包裹。
func StripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	if m := fenceRe.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return s
}

// ParseBrief 解析模型返回的 JSON。未识别的平台被丢弃，平台为空时回落到全部平台。
func ParseBrief(raw string) (Brief, error) {
	var rb rawBrief
	if err := json.Unmarshal([]byte(StripCodeFence(raw)), &rb); err != nil {
		return Brief{}, err
	}
	topic := strings.TrimSpace(rb.Topic)
	if topic == "" {
		return Brief{}, errors.New("parsed brief has no topic")
	}
	b := Brief{Topic: topic, Platforms: NormalizePlatforms(rb.Platforms)}
	if len(b.Platforms) == 0 {
		b.Platforms = append([]string{}, SupportedPlatforms...)
	}
	if rb.ScheduleTime != nil {
		if t, ok := parseBriefTime(*rb.ScheduleTime); ok {
			b.ScheduleTime = &t
		}
	}
	return b, nil
}

// FallbackBrief 解析失败时使用：整段输入作为主题，发布到全部平台。
func FallbackBrief(goal string) Brief {
	return Brief{
		Topic:     strings.TrimSpace(goal),
		Platforms: append([]string{}, SupportedPlatforms...),
	}
}

// NormalizePlatforms 把平台名统一成标准大小写，保持固定顺序并去重。
func NormalizePlatforms(names []string) []string {
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		for _, p := range SupportedPlatforms {
			if strings.EqualFold(strings.TrimSpace(n), p) {
				seen[p] = true
			}
		}
	}
	out := make([]string, 0, len(seen))
	for _, p := range SupportedPlatforms {
		if seen[p] {
			out = append(out, p)
		}
	}
	return out
}

func parseBriefTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range briefLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseCaptionOptions 按编号拆分候选文案；没有编号时整段作为唯一候选。
func ParseCaptionOptions(raw string) []string {
	text := StripCodeFence(raw)
	var (
		options []string
		cur     []string
		open    bool
	)
	flush := func() {
		if open {
			if s := cleanOption(strings.Join(cur, "\n")); s != "" {
				options = append(options, s)
			}
		}
		cur = cur[:0]
	}
	for _, line := range strings.Split(text, "\n") {
		if m := optionRe.FindStringSubmatch(line); m != nil {
			flush()
			open = true
			cur = append(cur, m[2])
			continue
		}
		if open {
			cur = append(cur, line)
		}
	}
	flush()
	if len(options) == 0 {
		if s := cleanOption(text); s != "" {
			options = []string{s}
		}
	}
	return options
}

func cleanOption(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "\"“”")
	s = strings.TrimPrefix(s, "**")
	return strings.TrimSpace(s)
}

// PlaceholderImageURL 用描述的前 20 个字符生成占位图地址。
func PlaceholderImageURL(description string) string {
	desc := strings.TrimSpace(description)
	if r := []rune(desc); len(r) > 20 {
		desc = strings.TrimSpace(string(r[:20]))
	}
	return placeholderImageBase + url.PathEscape(desc)
}
