package publisher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auto_social_publisher/config"
	"auto_social_publisher/workflow"
)

// fakePlatforms serves the Graph, LinkedIn and image host endpoints and
// records what it received.
type fakePlatforms struct {
	mu       sync.Mutex
	paths    []string
	forms    map[string]map[string]string
	ugc      map[string]any
	failEdge map[string]string
}

func newFakePlatforms(t *testing.T) (*fakePlatforms, *httptest.Server) {
	f := &fakePlatforms{forms: map[string]map[string]string{}, failEdge: map[string]string{}}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakePlatforms) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paths = append(f.paths, r.URL.Path)

	if r.URL.Path == "/linkedin/ugcPosts" {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.ugc = body
		if r.Header.Get("Authorization") != "Bearer li-token" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"Invalid access token"}`))
			return
		}
		w.Header().Set("X-Restli-Id", "urn:li:share:99")
		w.WriteHeader(http.StatusCreated)
		return
	}

	if err := r.ParseMultipartForm(1 << 20); err != nil {
		_ = r.ParseForm()
	}
	form := map[string]string{}
	for k, v := range r.Form {
		form[k] = v[0]
	}
	f.forms[r.URL.Path] = form

	if msg, ok := f.failEdge[r.URL.Path]; ok {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": msg, "code": 100}})
		return
	}
	switch r.URL.Path {
	case "/upload":
		_ = json.NewEncoder(w).Encode(map[string]any{"status_code": 200, "image": map[string]string{"url": "https://iili.io/cat.png"}})
	case "/graph/1784/media":
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "container-1"})
	case "/graph/1784/media_publish":
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "ig-post-1"})
	case "/graph/page-7/photos":
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "photo-1", "post_id": "page-7_55"})
	case "/graph/page-7/feed":
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "page-7_56"})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakePlatforms) form(path string) map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.forms[path]
}

func (f *fakePlatforms) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.paths...)
}

func testConfig(base string) config.Config {
	cfg := config.Default()
	cfg.GraphBaseURL = base + "/graph"
	cfg.LinkedInBaseURL = base + "/linkedin"
	cfg.ImageHost = config.ImageHostConfig{APIKey: "img-key", UploadURL: base + "/upload"}
	cfg.Platforms = config.PlatformsConfig{
		Instagram: config.InstagramConfig{AccessToken: "ig-token", AccountID: "1784"},
		Facebook:  config.FacebookConfig{AccessToken: "fb-token", PageID: "page-7"},
		LinkedIn:  config.LinkedInConfig{AccessToken: "li-token", AuthorURN: "urn:li:person:abc"},
	}
	return cfg
}

func allPlatformsPost() Post {
	return Post{
		Platforms: []string{"LinkedIn", "Facebook", "Instagram"},
		Captions: map[string]string{
			"Instagram": "**Autumn** is here #cozy",
			"Facebook":  "Autumn menu",
			"LinkedIn":  "We launched [our menu](https://example.com).",
		},
		ImagePath: "https://example.com/autumn.png",
	}
}

func TestPublish_AllPlatformsInOrder(t *testing.T) {
	f, srv := newFakePlatforms(t)
	p := New(testConfig(srv.URL), srv.Client(), nil)

	got := p.Publish(context.Background(), allPlatformsPost(), nil)

	assert.Equal(t, []string{"/graph/1784/media", "/graph/1784/media_publish", "/graph/page-7/photos", "/linkedin/ugcPosts"}, f.calls())
	assert.Equal(t, "Published to Instagram (id=ig-post-1)", got["Instagram"].Detail)
	assert.Equal(t, "Published to Facebook (id=page-7_55)", got["Facebook"].Detail)
	assert.Equal(t, "Published to LinkedIn (id=urn:li:share:99)", got["LinkedIn"].Detail)
	for _, st := range got {
		assert.Equal(t, workflow.DeliverySuccess, st.State)
	}

	media := f.form("/graph/1784/media")
	assert.Equal(t, "Autumn is here #cozy", media["caption"])
	assert.Equal(t, "https://example.com/autumn.png", media["image_url"])
	assert.Equal(t, "container-1", f.form("/graph/1784/media_publish")["creation_id"])

	share := f.ugc["specificContent"].(map[string]any)["com.linkedin.ugc.ShareContent"].(map[string]any)
	assert.Equal(t, "We launched our menu.", share["shareCommentary"].(map[string]any)["text"])
	assert.Equal(t, "urn:li:person:abc", f.ugc["author"])
}

func TestPublish_MissingCredentials(t *testing.T) {
	f, srv := newFakePlatforms(t)
	cfg := testConfig(srv.URL)
	cfg.Platforms.Instagram.AccessToken = ""
	cfg.Platforms.LinkedIn.AuthorURN = ""
	p := New(cfg, srv.Client(), nil)

	got := p.Publish(context.Background(), allPlatformsPost(), nil)

	assert.Equal(t, "Failed: Missing INSTAGRAM_ACCESS_TOKEN", got["Instagram"].Detail)
	assert.Equal(t, "Missing INSTAGRAM_ACCESS_TOKEN", got["Instagram"].Reason)
	assert.Equal(t, workflow.DeliverySuccess, got["Facebook"].State)
	assert.Equal(t, "Failed: Missing LINKEDIN_AUTHOR_URN", got["LinkedIn"].Detail)
	assert.Equal(t, []string{"/graph/page-7/photos"}, f.calls())
}

func TestPublish_SkipsPlatformsWithOutcome(t *testing.T) {
	f, srv := newFakePlatforms(t)
	p := New(testConfig(srv.URL), srv.Client(), nil)
	prev := map[string]workflow.DeliveryStatus{
		"Instagram": workflow.ParseDeliveryStatus("Failed: quota"),
		"Facebook":  workflow.ParseDeliveryStatus("Published to Facebook (id=1)"),
	}

	got := p.Publish(context.Background(), allPlatformsPost(), prev)

	assert.Equal(t, []string{"/linkedin/ugcPosts"}, f.calls())
	assert.Equal(t, prev["Instagram"], got["Instagram"])
	assert.Equal(t, prev["Facebook"], got["Facebook"])
	assert.Equal(t, workflow.DeliverySuccess, got["LinkedIn"].State)
	assert.Len(t, prev, 2, "input map must not be modified")
}

func TestPublish_GraphErrorIsReported(t *testing.T) {
	f, srv := newFakePlatforms(t)
	f.failEdge["/graph/1784/media"] = "Invalid OAuth access token"
	p := New(testConfig(srv.URL), srv.Client(), nil)

	post := allPlatformsPost()
	post.Platforms = []string{"Instagram"}
	got := p.Publish(context.Background(), post, nil)

	assert.Equal(t, workflow.DeliveryFailed, got["Instagram"].State)
	assert.Equal(t, "instagram media: Invalid OAuth access token", got["Instagram"].Reason)
	assert.NotContains(t, f.calls(), "/graph/1784/media_publish")
}

func TestPublish_LocalImageUploadedOnce(t *testing.T) {
	f, srv := newFakePlatforms(t)
	p := New(testConfig(srv.URL), srv.Client(), nil)

	path := filepath.Join(t.TempDir(), "cat.png")
	require.NoError(t, os.WriteFile(path, []byte("png-bytes"), 0o600))
	post := allPlatformsPost()
	post.ImagePath = path
	post.Platforms = []string{"Instagram", "Facebook"}

	got := p.Publish(context.Background(), post, nil)

	assert.Equal(t, workflow.DeliverySuccess, got["Instagram"].State)
	assert.Equal(t, workflow.DeliverySuccess, got["Facebook"].State)
	upload := f.form("/upload")
	assert.Equal(t, "img-key", upload["key"])
	assert.Equal(t, "upload", upload["action"])
	assert.Equal(t, "json", upload["format"])
	assert.Equal(t, "cG5nLWJ5dGVz", upload["source"])
	assert.Equal(t, "https://iili.io/cat.png", f.form("/graph/1784/media")["image_url"])
	assert.Equal(t, "https://iili.io/cat.png", f.form("/graph/page-7/photos")["url"])

	n := 0
	for _, c := range f.calls() {
		if c == "/upload" {
			n++
		}
	}
	assert.Equal(t, 1, n)
}

func TestPublish_FacebookScheduling(t *testing.T) {
	f, srv := newFakePlatforms(t)
	p := New(testConfig(srv.URL), srv.Client(), nil)
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }

	post := allPlatformsPost()
	post.Platforms = []string{"Facebook"}
	post.ImagePath = ""

	soon := now.Add(5 * time.Minute)
	post.ScheduleTime = &soon
	p.Publish(context.Background(), post, nil)
	form := f.form("/graph/page-7/feed")
	assert.Equal(t, "Autumn menu", form["message"])
	assert.NotContains(t, form, "scheduled_publish_time")

	later := now.Add(2 * time.Hour)
	post.ScheduleTime = &later
	p.Publish(context.Background(), post, nil)
	form = f.form("/graph/page-7/feed")
	assert.Equal(t, "false", form["published"])
	assert.Equal(t, "1792245600", form["scheduled_publish_time"])
}

func TestPublish_InstagramNeedsImage(t *testing.T) {
	_, srv := newFakePlatforms(t)
	p := New(testConfig(srv.URL), srv.Client(), nil)
	post := allPlatformsPost()
	post.Platforms = []string{"Instagram"}
	post.ImagePath = ""

	got := p.Publish(context.Background(), post, nil)
	assert.Equal(t, "Failed: instagram: an image is required", got["Instagram"].Detail)
}

func TestPublish_UploadWithoutKey(t *testing.T) {
	_, srv := newFakePlatforms(t)
	cfg := testConfig(srv.URL)
	cfg.ImageHost.APIKey = ""
	p := New(cfg, srv.Client(), nil)
	post := allPlatformsPost()
	post.Platforms = []string{"Instagram", "Facebook"}
	post.ImagePath = "/does/not/matter.png"

	got := p.Publish(context.Background(), post, nil)
	assert.Equal(t, "Failed: Missing FREEIMAGE_API_KEY", got["Instagram"].Detail)
	assert.Equal(t, "Failed: Missing FREEIMAGE_API_KEY", got["Facebook"].Detail)
}

func TestPublish_DryRun(t *testing.T) {
	f, srv := newFakePlatforms(t)
	cfg := testConfig(srv.URL)
	cfg.DryRun = true
	cfg.Platforms.Facebook.AccessToken = ""
	p := New(cfg, srv.Client(), nil)

	got := p.Publish(context.Background(), allPlatformsPost(), nil)
	assert.Equal(t, "Published to Instagram (Simulated)", got["Instagram"].Detail)
	assert.Equal(t, "Failed: Missing FACEBOOK_ACCESS_TOKEN", got["Facebook"].Detail)
	assert.Equal(t, "Published to LinkedIn (Simulated)", got["LinkedIn"].Detail)
	assert.Empty(t, f.calls())
}

func TestPublish_LinkedInError(t *testing.T) {
	_, srv := newFakePlatforms(t)
	cfg := testConfig(srv.URL)
	cfg.Platforms.LinkedIn.AccessToken = "expired"
	p := New(cfg, srv.Client(), nil)
	post := allPlatformsPost()
	post.Platforms = []string{"LinkedIn"}

	got := p.Publish(context.Background(), post, nil)
	assert.Equal(t, "Failed: linkedin: Invalid access token", got["LinkedIn"].Detail)
}
