package workflow

import (
	"encoding/json"
	"strings"
	"time"
)

// Step is the position of a workflow in its fixed lifecycle.
type Step string

const (
	StepPrompt        Step = "prompt"
	StepReviewCaption Step = "review_caption"
	StepReviewImage   Step = "review_image"
	StepSchedule      Step = "schedule"
	StepPublish       Step = "publish"
	StepCompleted     Step = "completed"
)

var stepOrder = map[Step]int{
	StepPrompt:        0,
	StepReviewCaption: 1,
	StepReviewImage:   2,
	StepSchedule:      3,
	StepPublish:       4,
	StepCompleted:     5,
}

// Valid reports whether s is one of the known steps.
func (s Step) Valid() bool {
	_, ok := stepOrder[s]
	return ok
}

// Before reports whether s comes strictly before other in the lifecycle.
// Unknown steps sort before everything.
func (s Step) Before(other Step) bool {
	a, ok := stepOrder[s]
	if !ok {
		a = -1
	}
	b, ok := stepOrder[other]
	if !ok {
		b = -1
	}
	return a < b
}

// DeliveryState classifies a per-platform publish outcome.
type DeliveryState int

const (
	DeliveryPending DeliveryState = iota
	DeliverySuccess
	DeliveryFailed
)

func (d DeliveryState) String() string {
	switch d {
	case DeliverySuccess:
		return "success"
	case DeliveryFailed:
		return "failed"
	default:
		return "pending"
	}
}

// DeliveryStatus is the tagged form of the free-form status token the
// publishing service reports for one platform. Detail keeps the original
// wire text; Reason is set for failures.
type DeliveryStatus struct {
	State  DeliveryState
	Reason string
	Detail string
}

// ParseDeliveryStatus classifies a wire status token. A token containing
// "Published" is a success, one containing "Failed" is a failure, anything
// else is still pending.
func ParseDeliveryStatus(wire string) DeliveryStatus {
	st := DeliveryStatus{State: DeliveryPending, Detail: wire}
	switch {
	case strings.Contains(wire, "Published"):
		st.State = DeliverySuccess
	case strings.Contains(wire, "Failed"):
		st.State = DeliveryFailed
		st.Reason = wire
		if _, after, ok := strings.Cut(wire, ":"); ok && strings.TrimSpace(after) != "" {
			st.Reason = strings.TrimSpace(after)
		}
	}
	return st
}

// Concluded reports whether delivery reached a terminal outcome.
func (d DeliveryStatus) Concluded() bool {
	return d.State == DeliverySuccess || d.State == DeliveryFailed
}

func (d DeliveryStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Detail)
}

func (d *DeliveryStatus) UnmarshalJSON(data []byte) error {
	var wire string
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*d = ParseDeliveryStatus(wire)
	return nil
}

// Snapshot is the complete server-authoritative workflow state. The client
// replaces it wholesale after every round trip and never merges fields.
type Snapshot struct {
	ID                     string                    `json:"id,omitempty"`
	Topic                  string                    `json:"topic"`
	Platforms              []string                  `json:"platforms"`
	Captions               map[string]string         `json:"captions"`
	CaptionOptions         map[string][]string       `json:"caption_options"`
	ImagePath              string                    `json:"image_path,omitempty"`
	ScheduleTime           *time.Time                `json:"schedule_time,omitempty"`
	PublishStatus          map[string]DeliveryStatus `json:"publish_status"`
	RegenerateCountCaption int                       `json:"regenerate_count_caption"`
	RegenerateCountImage   int                       `json:"regenerate_count_image"`
	CurrentStep            Step                      `json:"current_step"`
}

// NewSnapshot returns the initial empty snapshot of a workflow that has not
// been started.
func NewSnapshot() Snapshot {
	return Snapshot{
		Platforms:      []string{},
		Captions:       map[string]string{},
		CaptionOptions: map[string][]string{},
		PublishStatus:  map[string]DeliveryStatus{},
		CurrentStep:    StepPrompt,
	}
}

// HasPlatform reports whether platform belongs to the workflow.
func (s Snapshot) HasPlatform(platform string) bool {
	for _, p := range s.Platforms {
		if p == platform {
			return true
		}
	}
	return false
}

// Concluded reports whether every platform has a terminal delivery outcome.
func (s Snapshot) Concluded() bool {
	if len(s.Platforms) == 0 {
		return false
	}
	for _, p := range s.Platforms {
		st, ok := s.PublishStatus[p]
		if !ok || !st.Concluded() {
			return false
		}
	}
	return true
}

// AllPublished reports whether every platform was delivered successfully.
func (s Snapshot) AllPublished() bool {
	if len(s.Platforms) == 0 {
		return false
	}
	for _, p := range s.Platforms {
		if s.PublishStatus[p].State != DeliverySuccess {
			return false
		}
	}
	return true
}

// Clone returns a deep copy so callers can hold a snapshot without sharing
// maps with the orchestrator.
func (s Snapshot) Clone() Snapshot {
	out := s
	out.Platforms = append([]string{}, s.Platforms...)
	out.Captions = make(map[string]string, len(s.Captions))
	for k, v := range s.Captions {
		out.Captions[k] = v
	}
	out.CaptionOptions = make(map[string][]string, len(s.CaptionOptions))
	for k, v := range s.CaptionOptions {
		out.CaptionOptions[k] = append([]string{}, v...)
	}
	out.PublishStatus = make(map[string]DeliveryStatus, len(s.PublishStatus))
	for k, v := range s.PublishStatus {
		out.PublishStatus[k] = v
	}
	if s.ScheduleTime != nil {
		t := *s.ScheduleTime
		out.ScheduleTime = &t
	}
	return out
}

// normalize fills nil maps so a decoded snapshot behaves like NewSnapshot.
func (s *Snapshot) normalize() {
	if s.Platforms == nil {
		s.Platforms = []string{}
	}
	if s.Captions == nil {
		s.Captions = map[string]string{}
	}
	if s.CaptionOptions == nil {
		s.CaptionOptions = map[string][]string{}
	}
	if s.PublishStatus == nil {
		s.PublishStatus = map[string]DeliveryStatus{}
	}
	if s.CurrentStep == "" {
		s.CurrentStep = StepPrompt
	}
}

// Normalized returns s with nil collections replaced by empty ones.
func (s Snapshot) Normalized() Snapshot {
	s.normalize()
	return s
}
