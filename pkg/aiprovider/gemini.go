package aiprovider

import (
	"context"
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/pixloom-ai/pixloom-engine/pkg/config"
)

// dataURIPattern matches inline base64 image payloads in chat responses.
var dataURIPattern = regexp.MustCompile(`data:(image/(?:png|jpeg|webp));base64,([A-Za-z0-9+/=]+)`)

// GeminiClient invokes Gemini image models through the OpenAI-compatible
// chat endpoint. Reference images go in as multimodal message parts; the
// generated image comes back as an inline base64 data URI.
type GeminiClient struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// NewGeminiClient creates a Gemini provider client.
func NewGeminiClient(cfg *config.ProviderEndpoint, model string, logger *zap.Logger) (*GeminiClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("gemini base URL is required")
	}
	if model == "" {
		model = cfg.DefaultModel
	}
	if model == "" {
		return nil, fmt.Errorf("gemini model is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")

	return &GeminiClient{
		client: openai.NewClientWithConfig(clientConfig),
		model:  model,
		logger: logger.Named("gemini"),
	}, nil
}

// Invoke implements Provider.
func (c *GeminiClient) Invoke(ctx context.Context, req *InvokeRequest) (*InvokeResult, error) {
	parts := []openai.ChatMessagePart{
		{Type: openai.ChatMessagePartTypeText, Text: req.Prompt},
	}
	for _, img := range req.Images {
		parts = append(parts, openai.ChatMessagePart{
			Type:     openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{URL: img},
		})
	}

	model := req.Model
	if model == "" {
		model = c.model
	}

	c.logger.Debug("Gemini request",
		zap.String("model", model),
		zap.Int("prompt_len", len(req.Prompt)),
		zap.Int("images", len(req.Images)))

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, MultiContent: parts},
		},
	})
	if err != nil {
		c.logger.Error("Gemini request failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return nil, classifyError(ModelTypeGemini, err)
	}

	if len(resp.Choices) == 0 {
		return nil, NewError(ModelTypeGemini, ErrorTypeEmptyResponse, "no choices in response", nil)
	}

	images, err := extractInlineImages(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	c.logger.Info("Gemini request completed",
		zap.Int("images", len(images)),
		zap.Duration("elapsed", time.Since(start)))

	return &InvokeResult{Images: images, Model: model}, nil
}

// extractInlineImages decodes every data URI found in the response content.
func extractInlineImages(content string) ([]GeneratedImage, error) {
	matches := dataURIPattern.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return nil, NewError(ModelTypeGemini, ErrorTypeEmptyResponse, "no image in response content", nil)
	}

	images := make([]GeneratedImage, 0, len(matches))
	for _, m := range matches {
		data, err := base64.StdEncoding.DecodeString(m[2])
		if err != nil {
			return nil, NewError(ModelTypeGemini, ErrorTypeUnknown, "invalid base64 image payload", err)
		}
		images = append(images, GeneratedImage{Data: data, MimeType: m[1]})
	}
	return images, nil
}

// Name implements Provider.
func (c *GeminiClient) Name() ModelType { return ModelTypeGemini }

// Model implements Provider.
func (c *GeminiClient) Model() string { return c.model }

// Ensure GeminiClient implements Provider at compile time.
var _ Provider = (*GeminiClient)(nil)
