// Package aiprovider provides clients for the external AI image-generation
// providers. Both supported providers expose OpenAI-compatible APIs and are
// reached through a single SDK; request and response shapes differ per
// provider and stay inside each client.
package aiprovider

import (
	"context"
)

// ModelType discriminates the supported providers.
type ModelType string

const (
	ModelTypeGemini ModelType = "gemini"
	ModelTypeDoubao ModelType = "doubao"
)

// ValidModelType reports whether s names a supported provider.
func ValidModelType(s string) bool {
	switch ModelType(s) {
	case ModelTypeGemini, ModelTypeDoubao:
		return true
	}
	return false
}

// InvokeRequest is one generation request: the fully resolved prompt plus the
// user's reference images as public URLs.
type InvokeRequest struct {
	Prompt string
	Images []string
	Model  string
}

// GeneratedImage is one output image, decoded to raw bytes.
type GeneratedImage struct {
	Data     []byte
	MimeType string
}

// InvokeResult is the provider's output for one generation.
type InvokeResult struct {
	Images []GeneratedImage
	Model  string
}

// Provider defines the interface for AI image generation.
// Use this interface for dependency injection to enable mocking in tests.
// Calls are single-attempt: a failure is terminal for that generation and
// the caller handles compensation.
type Provider interface {
	// Invoke sends one generation request and returns the produced images.
	Invoke(ctx context.Context, req *InvokeRequest) (*InvokeResult, error)

	// Name returns the provider discriminator.
	Name() ModelType

	// Model returns the configured model name.
	Model() string
}
