package aiprovider

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/pixloom-ai/pixloom-engine/pkg/config"
)

// Factory creates provider clients from configuration.
type Factory struct {
	cfg    *config.ProvidersConfig
	logger *zap.Logger
}

// NewFactory creates a provider factory.
func NewFactory(cfg *config.ProvidersConfig, logger *zap.Logger) *Factory {
	return &Factory{cfg: cfg, logger: logger}
}

// Create returns a client for the requested provider. An empty model falls
// back to the provider's configured default.
func (f *Factory) Create(modelType ModelType, model string) (Provider, error) {
	switch modelType {
	case ModelTypeGemini:
		return NewGeminiClient(&f.cfg.Gemini, model, f.logger)
	case ModelTypeDoubao:
		return NewDoubaoClient(&f.cfg.Doubao, model, f.logger)
	default:
		return nil, fmt.Errorf("unsupported model type: %q", modelType)
	}
}
