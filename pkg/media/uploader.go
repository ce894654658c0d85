package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/pixloom-ai/pixloom-engine/pkg/config"
)

// Uploader stores image bytes on the external media service and returns the
// public filename.
type Uploader interface {
	Upload(ctx context.Context, filename string, data []byte, contentType string) (string, error)
}

// Client implements Uploader over the media service's multipart upload API.
type Client struct {
	uploadURL string
	apiKey    string
	http      *http.Client
	logger    *zap.Logger
}

// NewClient creates a media upload client from configuration.
func NewClient(cfg *config.MediaConfig, logger *zap.Logger) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		uploadURL: cfg.UploadURL,
		apiKey:    cfg.APIKey,
		http:      &http.Client{Timeout: timeout},
		logger:    logger.Named("media"),
	}
}

type uploadResponse struct {
	Filename string `json:"filename"`
	URL      string `json:"url"`
}

// Upload implements Uploader.
func (c *Client) Upload(ctx context.Context, filename string, data []byte, contentType string) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("write form file: %w", err)
	}
	if err := writer.WriteField("contentType", contentType); err != nil {
		return "", fmt.Errorf("write content type field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uploadURL, &body)
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("media service returned %d: %s", resp.StatusCode, string(errBody))
	}

	var uploaded uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&uploaded); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}

	public := uploaded.Filename
	if public == "" {
		public = uploaded.URL
	}
	if public == "" {
		return "", fmt.Errorf("media service returned no filename")
	}

	c.logger.Debug("Uploaded media",
		zap.String("filename", public),
		zap.Int("bytes", len(data)),
		zap.Duration("elapsed", time.Since(start)))

	return public, nil
}

// Ensure Client implements Uploader at compile time.
var _ Uploader = (*Client)(nil)
