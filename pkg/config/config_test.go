package config

import (
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("AUTH_ENABLE_VERIFICATION", "false")

	cfg, err := Load("test-version")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Version != "test-version" {
		t.Errorf("Version = %q, want %q", cfg.Version, "test-version")
	}
	if cfg.Port != "3030" {
		t.Errorf("Port = %q, want %q", cfg.Port, "3030")
	}
	if cfg.GenerationCost != "1" {
		t.Errorf("GenerationCost = %q, want %q", cfg.GenerationCost, "1")
	}
	if cfg.BaseURL != "http://localhost:3030" {
		t.Errorf("BaseURL = %q, want %q", cfg.BaseURL, "http://localhost:3030")
	}
	if cfg.Media.OutputFormat != "webp" {
		t.Errorf("Media.OutputFormat = %q, want %q", cfg.Media.OutputFormat, "webp")
	}
	if cfg.Providers.Gemini.BaseURL == "" || cfg.Providers.Doubao.BaseURL == "" {
		t.Error("expected provider base URLs to have defaults")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("AUTH_ENABLE_VERIFICATION", "false")
	t.Setenv("PORT", "8080")
	t.Setenv("GENERATION_COST", "2.5")
	t.Setenv("GEMINI_API_KEY", "secret-key")

	cfg, err := Load("dev")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want %q", cfg.Port, "8080")
	}
	if cfg.GenerationCost != "2.5" {
		t.Errorf("GenerationCost = %q, want %q", cfg.GenerationCost, "2.5")
	}
	if cfg.Providers.Gemini.APIKey != "secret-key" {
		t.Errorf("Gemini.APIKey not propagated from environment")
	}
}

func TestLoadRejectsBadOutputFormat(t *testing.T) {
	t.Setenv("AUTH_ENABLE_VERIFICATION", "false")
	t.Setenv("MEDIA_OUTPUT_FORMAT", "bmp")

	if _, err := Load("dev"); err == nil {
		t.Fatal("Load() expected error for unsupported output format")
	}
}

func TestLoadRequiresJWKSWhenVerifying(t *testing.T) {
	t.Setenv("AUTH_ENABLE_VERIFICATION", "true")
	t.Setenv("AUTH_JWKS_URL", "")

	if _, err := Load("dev"); err == nil {
		t.Fatal("Load() expected error when verification enabled without JWKS URL")
	}
}
