package publisher

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"os"
)

type uploadImageResp struct {
	StatusCode int `json:"status_code"`
	Image      struct {
		URL string `json:"url"`
	} `json:"image"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// uploadImage pushes a local file to the image host and returns its public
// URL. Instagram and Facebook only accept images they can fetch.
func (p *Publisher) uploadImage(ctx context.Context, imagePath string) (string, error) {
	if p.cfg.ImageHost.APIKey == "" {
		return "", missingCredential("FREEIMAGE_API_KEY")
	}
	raw, err := os.ReadFile(imagePath)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	fields := [][2]string{
		{"key", p.cfg.ImageHost.APIKey},
		{"action", "upload"},
		{"source", base64.StdEncoding.EncodeToString(raw)},
		{"format", "json"},
	}
	for _, f := range fields {
		if err := writer.WriteField(f[0], f[1]); err != nil {
			return "", err
		}
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.ImageHost.UploadURL, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("image upload: %w", err)
	}
	defer resp.Body.Close()

	var data uploadImageResp
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return "", fmt.Errorf("image upload: status %d", resp.StatusCode)
	}
	if data.Image.URL == "" {
		msg := fmt.Sprintf("status %d", resp.StatusCode)
		if data.Error != nil && data.Error.Message != "" {
			msg = data.Error.Message
		}
		return "", fmt.Errorf("image upload: %s", msg)
	}
	return data.Image.URL, nil
}
