package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"auto_social_publisher/config"
)

// Facebook only accepts scheduled posts at least ten minutes ahead.
const minScheduleLead = 10 * time.Minute

type graphResp struct {
	ID     string `json:"id"`
	PostID string `json:"post_id"`
	Error  *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// publishInstagram creates a media container, then publishes it.
func (p *Publisher) publishInstagram(ctx context.Context, ig config.InstagramConfig, imageURL, caption string) (string, error) {
	container, err := p.graphPost(ctx, ig.AccountID+"/media", url.Values{
		"image_url":    {imageURL},
		"caption":      {caption},
		"access_token": {ig.AccessToken},
	})
	if err != nil {
		return "", fmt.Errorf("instagram media: %w", err)
	}
	published, err := p.graphPost(ctx, ig.AccountID+"/media_publish", url.Values{
		"creation_id":  {container.ID},
		"access_token": {ig.AccessToken},
	})
	if err != nil {
		return "", fmt.Errorf("instagram media_publish: %w", err)
	}
	return published.ID, nil
}

// publishFacebook posts a page photo, or a text post when there is no image.
func (p *Publisher) publishFacebook(ctx context.Context, fb config.FacebookConfig, imageURL, caption string, at *time.Time) (string, error) {
	form := url.Values{"access_token": {fb.AccessToken}}
	edge := fb.PageID + "/feed"
	if imageURL != "" {
		edge = fb.PageID + "/photos"
		form.Set("url", imageURL)
		form.Set("caption", caption)
	} else {
		form.Set("message", caption)
	}
	if at != nil && at.After(p.now().Add(minScheduleLead)) {
		form.Set("published", "false")
		form.Set("scheduled_publish_time", strconv.FormatInt(at.Unix(), 10))
	}
	resp, err := p.graphPost(ctx, edge, form)
	if err != nil {
		return "", fmt.Errorf("facebook: %w", err)
	}
	if resp.PostID != "" {
		return resp.PostID, nil
	}
	return resp.ID, nil
}

func (p *Publisher) graphPost(ctx context.Context, path string, form url.Values) (graphResp, error) {
	endpoint := strings.TrimRight(p.cfg.GraphBaseURL, "/") + "/" + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return graphResp{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return graphResp{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return graphResp{}, err
	}
	var data graphResp
	if err := json.Unmarshal(body, &data); err != nil {
		return graphResp{}, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if data.Error != nil {
		return graphResp{}, errors.New(data.Error.Message)
	}
	if resp.StatusCode/100 != 2 {
		return graphResp{}, fmt.Errorf("status %d", resp.StatusCode)
	}
	if data.ID == "" && data.PostID == "" {
		return graphResp{}, errors.New("response has no id")
	}
	return data, nil
}
