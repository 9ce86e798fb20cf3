package publisher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"auto_social_publisher/config"
	"auto_social_publisher/workflow"
)

// Platforms in delivery order.
var Platforms = []string{"Instagram", "Facebook", "LinkedIn"}

// Post describes the content to be published.
type Post struct {
	Platforms    []string
	Captions     map[string]string
	ImagePath    string
	ScheduleTime *time.Time
}

// missingCredential marks a configuration gap; it is reported as
// "Failed: Missing <ENV>".
type missingCredential string

func (m missingCredential) Error() string { return "Missing " + string(m) }

var errNoImage = errors.New("an image is required")

// Publisher delivers a post to each platform in turn over the platforms'
// HTTP APIs.
type Publisher struct {
	cfg    config.Config
	client *http.Client
	logger *zap.Logger
	now    func() time.Time
}

// New creates a Publisher. A nil client gets a 60s timeout.
func New(cfg config.Config, client *http.Client, logger *zap.Logger) *Publisher {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{cfg: cfg, client: client, logger: logger, now: time.Now}
}

// Publish delivers post to every platform that has no status in prev yet,
// in the fixed order Instagram, Facebook, LinkedIn. Platforms already in
// prev are never re-sent, whatever their outcome. It returns prev merged
// with the new outcomes.
func (p *Publisher) Publish(ctx context.Context, post Post, prev map[string]workflow.DeliveryStatus) map[string]workflow.DeliveryStatus {
	out := make(map[string]workflow.DeliveryStatus, len(post.Platforms))
	for k, v := range prev {
		out[k] = v
	}
	want := make(map[string]bool, len(post.Platforms))
	for _, name := range post.Platforms {
		want[name] = true
	}

	img := &imageRef{path: post.ImagePath}
	for _, name := range Platforms {
		if !want[name] {
			continue
		}
		if _, done := out[name]; done {
			p.logger.Debug("skipping platform with a recorded outcome", zap.String("platform", name))
			continue
		}
		if err := ctx.Err(); err != nil {
			out[name] = workflow.ParseDeliveryStatus("Failed: " + err.Error())
			continue
		}
		caption := PlainCaption(post.Captions[name])
		id, err := p.deliver(ctx, name, caption, img, post.ScheduleTime)
		var wire string
		if err != nil {
			wire = "Failed: " + err.Error()
			p.logger.Warn("publish failed", zap.String("platform", name), zap.Error(err))
		} else {
			wire = fmt.Sprintf("Published to %s (%s)", name, id)
			p.logger.Info("published", zap.String("platform", name), zap.String("post", id))
		}
		out[name] = workflow.ParseDeliveryStatus(wire)
	}
	return out
}

func (p *Publisher) deliver(ctx context.Context, name, caption string, img *imageRef, at *time.Time) (string, error) {
	switch name {
	case "Instagram":
		ig := p.cfg.Platforms.Instagram
		if ig.AccessToken == "" {
			return "", missingCredential("INSTAGRAM_ACCESS_TOKEN")
		}
		if ig.AccountID == "" {
			return "", missingCredential("INSTAGRAM_ACCOUNT_ID")
		}
		if p.cfg.DryRun {
			return "Simulated", nil
		}
		url, err := p.resolveImage(ctx, img)
		if err != nil {
			return "", err
		}
		if url == "" {
			return "", fmt.Errorf("instagram: %w", errNoImage)
		}
		id, err := p.publishInstagram(ctx, ig, url, caption)
		return idLabel(id), err
	case "Facebook":
		fb := p.cfg.Platforms.Facebook
		if fb.AccessToken == "" {
			return "", missingCredential("FACEBOOK_ACCESS_TOKEN")
		}
		if fb.PageID == "" {
			return "", missingCredential("FACEBOOK_PAGE_ID")
		}
		if p.cfg.DryRun {
			return "Simulated", nil
		}
		url, err := p.resolveImage(ctx, img)
		if err != nil {
			return "", err
		}
		id, err := p.publishFacebook(ctx, fb, url, caption, at)
		return idLabel(id), err
	case "LinkedIn":
		li := p.cfg.Platforms.LinkedIn
		if li.AccessToken == "" {
			return "", missingCredential("LINKEDIN_ACCESS_TOKEN")
		}
		if li.AuthorURN == "" {
			return "", missingCredential("LINKEDIN_AUTHOR_URN")
		}
		if p.cfg.DryRun {
			return "Simulated", nil
		}
		id, err := p.publishLinkedIn(ctx, li, caption)
		return idLabel(id), err
	default:
		return "", fmt.Errorf("unsupported platform %q", name)
	}
}

func idLabel(id string) string {
	return "id=" + id
}

// imageRef resolves a local image to a public URL at most once per Publish.
type imageRef struct {
	path     string
	resolved bool
	url      string
	err      error
}

func (p *Publisher) resolveImage(ctx context.Context, img *imageRef) (string, error) {
	if img.resolved {
		return img.url, img.err
	}
	img.resolved = true
	path := strings.TrimSpace(img.path)
	switch {
	case path == "":
	case strings.HasPrefix(path, "http://"), strings.HasPrefix(path, "https://"):
		img.url = path
	default:
		img.url, img.err = p.uploadImage(ctx, path)
		if img.err == nil {
			p.logger.Info("uploaded image", zap.String("path", path), zap.String("url", img.url))
		}
	}
	return img.url, img.err
}
