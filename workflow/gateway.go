package workflow

import (
	"context"
	"time"
)

// CaptionReview is the payload of a caption review round trip.
type CaptionReview struct {
	Accepted bool              `json:"accepted"`
	Feedback string            `json:"feedback,omitempty"`
	Captions map[string]string `json:"captions"`
}

// ImageReview is the payload of an image review round trip.
type ImageReview struct {
	Accepted  bool   `json:"accepted"`
	Feedback  string `json:"feedback,omitempty"`
	ImagePath string `json:"image_path,omitempty"`
}

// CaptionRequest asks for candidate captions for one platform.
type CaptionRequest struct {
	Platform string `json:"platform"`
	Topic    string `json:"topic"`
	Feedback string `json:"feedback,omitempty"`
}

// CaptionCandidates is the platform-scoped answer to a CaptionRequest.
type CaptionCandidates struct {
	Platform string   `json:"platform"`
	Options  []string `json:"options"`
	Caption  string   `json:"caption,omitempty"`
}

// Gateway performs the remote operations of the workflow. Every lifecycle
// operation returns the full replacement snapshot.
type Gateway interface {
	Start(ctx context.Context, prompt string) (Snapshot, error)
	Fetch(ctx context.Context) (Snapshot, error)
	ReviewCaption(ctx context.Context, req CaptionReview) (Snapshot, error)
	ReviewImage(ctx context.Context, req ImageReview) (Snapshot, error)
	Schedule(ctx context.Context, at time.Time) (Snapshot, error)
	Publish(ctx context.Context) (Snapshot, error)
	GenerateCaption(ctx context.Context, req CaptionRequest) (CaptionCandidates, error)
}
