// Package client implements workflow.Gateway against the backend's HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"auto_social_publisher/workflow"
)

// DefaultTimeout bounds a single round trip. Generation and publishing can
// take a while on the server side.
const DefaultTimeout = 3 * time.Minute

// APIError is a non-2xx response. Its message is the server's detail, or
// the status text when the body carried none.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	return e.Detail
}

// Gateway talks to the backend over HTTP.
type Gateway struct {
	baseURL string
	http    *http.Client
}

var _ workflow.Gateway = (*Gateway)(nil)

// New returns a Gateway for baseURL, e.g. "http://localhost:8000". A nil
// httpClient gets DefaultTimeout.
func New(baseURL string, httpClient *http.Client) *Gateway {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Gateway{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

func (g *Gateway) Start(ctx context.Context, prompt string) (workflow.Snapshot, error) {
	return g.snapshot(ctx, http.MethodPost, "/workflow/start", map[string]string{"prompt": prompt})
}

func (g *Gateway) Fetch(ctx context.Context) (workflow.Snapshot, error) {
	return g.snapshot(ctx, http.MethodGet, "/workflow/state", nil)
}

func (g *Gateway) ReviewCaption(ctx context.Context, req workflow.CaptionReview) (workflow.Snapshot, error) {
	if req.Captions == nil {
		req.Captions = map[string]string{}
	}
	return g.snapshot(ctx, http.MethodPost, "/workflow/review-caption", req)
}

func (g *Gateway) ReviewImage(ctx context.Context, req workflow.ImageReview) (workflow.Snapshot, error) {
	return g.snapshot(ctx, http.MethodPost, "/workflow/review-image", req)
}

func (g *Gateway) Schedule(ctx context.Context, at time.Time) (workflow.Snapshot, error) {
	return g.snapshot(ctx, http.MethodPost, "/workflow/schedule", map[string]string{
		"schedule_time": at.Format(time.RFC3339),
	})
}

func (g *Gateway) Publish(ctx context.Context) (workflow.Snapshot, error) {
	return g.snapshot(ctx, http.MethodPost, "/workflow/publish", struct{}{})
}

func (g *Gateway) GenerateCaption(ctx context.Context, req workflow.CaptionRequest) (workflow.CaptionCandidates, error) {
	var out workflow.CaptionCandidates
	err := g.do(ctx, http.MethodPost, "/workflow/generate-caption", req, &out)
	return out, err
}

func (g *Gateway) snapshot(ctx context.Context, method, path string, body any) (workflow.Snapshot, error) {
	var snap workflow.Snapshot
	if err := g.do(ctx, method, path, body, &snap); err != nil {
		return workflow.Snapshot{}, err
	}
	return snap.Normalized(), nil
}

func (g *Gateway) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return decodeError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode, Detail: http.StatusText(resp.StatusCode)}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if json.Unmarshal(data, &body) == nil && len(body.Detail) > 0 {
		var s string
		if json.Unmarshal(body.Detail, &s) == nil {
			if s != "" {
				apiErr.Detail = s
			}
		} else {
			// structured details (validation lists) are passed through as JSON
			apiErr.Detail = string(body.Detail)
		}
	}
	return apiErr
}
