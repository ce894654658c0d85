package services

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/pixloom-ai/pixloom-engine/pkg/aiprovider"
)

func writeCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "models.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	return path
}

func TestModelCatalogLoad(t *testing.T) {
	path := writeCatalog(t, `
models:
  - type: gemini
    name: gemini-2.5-flash-image
    label: Gemini Flash Image
    default: true
  - type: doubao
    name: doubao-seedream-4-0
    label: Doubao Seedream
`)

	catalog, err := NewModelCatalog(path, zap.NewNop())
	if err != nil {
		t.Fatalf("NewModelCatalog: %v", err)
	}

	models := catalog.Models()
	if len(models) != 2 {
		t.Fatalf("got %d models", len(models))
	}
	if got := catalog.DefaultModel(aiprovider.ModelTypeGemini); got != "gemini-2.5-flash-image" {
		t.Errorf("gemini default = %q", got)
	}
	if got := catalog.DefaultModel(aiprovider.ModelTypeDoubao); got != "" {
		t.Errorf("doubao has no default, got %q", got)
	}
}

func TestModelCatalogRefresh(t *testing.T) {
	path := writeCatalog(t, "models:\n  - type: gemini\n    name: old\n    label: Old\n")

	catalog, err := NewModelCatalog(path, zap.NewNop())
	if err != nil {
		t.Fatalf("NewModelCatalog: %v", err)
	}

	if err := os.WriteFile(path, []byte("models:\n  - type: gemini\n    name: new\n    label: New\n"), 0o644); err != nil {
		t.Fatalf("rewrite catalog: %v", err)
	}
	if err := catalog.Refresh(); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if models := catalog.Models(); len(models) != 1 || models[0].Name != "new" {
		t.Errorf("refreshed models = %+v", models)
	}
}

func TestModelCatalogRejectsUnknownType(t *testing.T) {
	path := writeCatalog(t, "models:\n  - type: dalle\n    name: dalle-3\n    label: DALL-E\n")
	if _, err := NewModelCatalog(path, zap.NewNop()); err == nil {
		t.Fatal("expected unsupported type error")
	}
}

func TestModelCatalogMissingFile(t *testing.T) {
	catalog, err := NewModelCatalog(filepath.Join(t.TempDir(), "absent.yaml"), zap.NewNop())
	if err != nil {
		t.Fatalf("missing file should not be fatal: %v", err)
	}
	if len(catalog.Models()) != 0 {
		t.Error("expected empty catalog")
	}
}
