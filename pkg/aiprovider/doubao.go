package aiprovider

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/pixloom-ai/pixloom-engine/pkg/config"
)

// DoubaoClient invokes Doubao (Volcengine Ark) image models through the
// OpenAI-compatible images endpoint. Unlike Gemini, output arrives on the
// dedicated image-generation API as base64 JSON, and reference images are
// passed as URL lines appended to the prompt.
type DoubaoClient struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// NewDoubaoClient creates a Doubao provider client.
func NewDoubaoClient(cfg *config.ProviderEndpoint, model string, logger *zap.Logger) (*DoubaoClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("doubao base URL is required")
	}
	if model == "" {
		model = cfg.DefaultModel
	}
	if model == "" {
		return nil, fmt.Errorf("doubao model is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")

	return &DoubaoClient{
		client: openai.NewClientWithConfig(clientConfig),
		model:  model,
		logger: logger.Named("doubao"),
	}, nil
}

// Invoke implements Provider.
func (c *DoubaoClient) Invoke(ctx context.Context, req *InvokeRequest) (*InvokeResult, error) {
	prompt := req.Prompt
	if len(req.Images) > 0 {
		var sb strings.Builder
		sb.WriteString(prompt)
		sb.WriteString("\n\nReference images:\n")
		for _, img := range req.Images {
			sb.WriteString(img)
			sb.WriteString("\n")
		}
		prompt = sb.String()
	}

	model := req.Model
	if model == "" {
		model = c.model
	}

	c.logger.Debug("Doubao request",
		zap.String("model", model),
		zap.Int("prompt_len", len(prompt)))

	start := time.Now()
	resp, err := c.client.CreateImage(ctx, openai.ImageRequest{
		Model:          model,
		Prompt:         prompt,
		N:              1,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		c.logger.Error("Doubao request failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return nil, classifyError(ModelTypeDoubao, err)
	}

	if len(resp.Data) == 0 {
		return nil, NewError(ModelTypeDoubao, ErrorTypeEmptyResponse, "no image data in response", nil)
	}

	images := make([]GeneratedImage, 0, len(resp.Data))
	for _, d := range resp.Data {
		if d.B64JSON == "" {
			continue
		}
		data, err := base64.StdEncoding.DecodeString(d.B64JSON)
		if err != nil {
			return nil, NewError(ModelTypeDoubao, ErrorTypeUnknown, "invalid base64 image payload", err)
		}
		images = append(images, GeneratedImage{Data: data, MimeType: "image/png"})
	}
	if len(images) == 0 {
		return nil, NewError(ModelTypeDoubao, ErrorTypeEmptyResponse, "response contained no decodable images", nil)
	}

	c.logger.Info("Doubao request completed",
		zap.Int("images", len(images)),
		zap.Duration("elapsed", time.Since(start)))

	return &InvokeResult{Images: images, Model: model}, nil
}

// Name implements Provider.
func (c *DoubaoClient) Name() ModelType { return ModelTypeDoubao }

// Model implements Provider.
func (c *DoubaoClient) Model() string { return c.model }

// Ensure DoubaoClient implements Provider at compile time.
var _ Provider = (*DoubaoClient)(nil)
