package services

import (
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/pixloom-ai/pixloom-engine/pkg/aiprovider"
)

// CatalogModel is one entry in the model catalog.
type CatalogModel struct {
	Type        string `yaml:"type" json:"type"`
	Name        string `yaml:"name" json:"name"`
	Label       string `yaml:"label" json:"label"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Default     bool   `yaml:"default,omitempty" json:"default,omitempty"`
}

type catalogFile struct {
	Models []CatalogModel `yaml:"models"`
}

// ModelCatalog is the explicitly constructed, refreshable list of models the
// API exposes. It is loaded once at startup and re-read only through Refresh.
type ModelCatalog struct {
	path   string
	logger *zap.Logger

	mu     sync.RWMutex
	models []CatalogModel
}

// NewModelCatalog loads the catalog from a YAML file. A missing path yields
// an empty catalog rather than an error so deployments without a catalog file
// still start.
func NewModelCatalog(path string, logger *zap.Logger) (*ModelCatalog, error) {
	c := &ModelCatalog{path: path, logger: logger.Named("catalog")}
	if path == "" {
		return c, nil
	}
	if err := c.Refresh(); err != nil {
		if os.IsNotExist(err) {
			logger.Warn("Model catalog file not found, starting empty", zap.String("path", path))
			return c, nil
		}
		return nil, err
	}
	return c, nil
}

// Refresh re-reads the catalog file and swaps the in-memory list atomically.
func (c *ModelCatalog) Refresh() error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return err
	}

	var parsed catalogFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("parse model catalog: %w", err)
	}
	for _, m := range parsed.Models {
		if !aiprovider.ValidModelType(m.Type) {
			return fmt.Errorf("model catalog entry %q has unsupported type %q", m.Name, m.Type)
		}
	}

	c.mu.Lock()
	c.models = parsed.Models
	c.mu.Unlock()

	c.logger.Info("Model catalog loaded",
		zap.String("path", c.path),
		zap.Int("models", len(parsed.Models)))
	return nil
}

// Models returns a copy of the catalog entries.
func (c *ModelCatalog) Models() []CatalogModel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]CatalogModel, len(c.models))
	copy(out, c.models)
	return out
}

// DefaultModel returns the default model name for a provider, or "" when the
// catalog has none; callers fall back to the provider's configured default.
func (c *ModelCatalog) DefaultModel(modelType aiprovider.ModelType) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, m := range c.models {
		if m.Type == string(modelType) && m.Default {
			return m.Name
		}
	}
	return ""
}
