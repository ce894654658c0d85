package config

import (
	"fmt"
	"net/url"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for pixloom-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"3030"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	BaseURL  string `yaml:"base_url" env:"BASE_URL" env-default:""` // Auto-derived from Port if empty
	Version  string `yaml:"-"`                                      // Set at load time, not from config

	// AppName is the caller-supplied default used when a project has no
	// localized display text at all.
	AppName string `yaml:"app_name" env:"APP_NAME" env-default:"PixLoom"`

	// Authentication configuration
	Auth AuthConfig `yaml:"auth"`

	// Database configuration (PostgreSQL)
	Database DatabaseConfig `yaml:"database"`

	// Redis cache configuration (optional)
	Redis RedisConfig `yaml:"redis"`

	// External payment/credit ledger service
	Payment PaymentConfig `yaml:"payment"`

	// External media storage service
	Media MediaConfig `yaml:"media"`

	// AI provider endpoints
	Providers ProvidersConfig `yaml:"providers"`

	// Credits charged per generation. Opaque decimal string, compared
	// against the ledger balance before a generation is allowed.
	GenerationCost string `yaml:"generation_cost" env:"GENERATION_COST" env-default:"1"`

	// Path to the YAML model catalog file.
	ModelCatalogPath string `yaml:"model_catalog_path" env:"MODEL_CATALOG_PATH" env-default:"models.yaml"`

	// MigrationsPath is the directory containing SQL migration files.
	MigrationsPath string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"migrations"`
}

// AuthConfig holds authentication-related configuration.
type AuthConfig struct {
	// EnableVerification controls whether JWT signatures are validated.
	// Set to false for local development without an auth server.
	EnableVerification bool `yaml:"enable_verification" env:"AUTH_ENABLE_VERIFICATION" env-default:"true"`

	// JWKSURL is the JWKS endpoint of the token issuer.
	JWKSURL string `yaml:"jwks_url" env:"AUTH_JWKS_URL" env-default:""`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"pixloom"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"pixloom_engine"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// RedisConfig holds Redis cache configuration.
// Leave Host empty to run without a cache.
type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:""`
	Port     int    `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
	// ResolvedTTLSeconds is how long resolved project configurations are cached.
	ResolvedTTLSeconds int `yaml:"resolved_ttl_seconds" env:"REDIS_RESOLVED_TTL_SECONDS" env-default:"300"`
}

// PaymentConfig holds the external credit-ledger service settings.
type PaymentConfig struct {
	BaseURL        string `yaml:"base_url" env:"PAYMENT_BASE_URL" env-default:""`
	APIKey         string `yaml:"-" env:"PAYMENT_API_KEY"` // Secret - not in YAML
	TimeoutSeconds int    `yaml:"timeout_seconds" env:"PAYMENT_TIMEOUT_SECONDS" env-default:"15"`
	// MeterName identifies the generation meter on the ledger side.
	MeterName string `yaml:"meter_name" env:"PAYMENT_METER_NAME" env-default:"image_generation"`
}

// MediaConfig holds the external media storage service settings.
type MediaConfig struct {
	UploadURL      string `yaml:"upload_url" env:"MEDIA_UPLOAD_URL" env-default:""`
	APIKey         string `yaml:"-" env:"MEDIA_API_KEY"` // Secret - not in YAML
	TimeoutSeconds int    `yaml:"timeout_seconds" env:"MEDIA_TIMEOUT_SECONDS" env-default:"60"`
	// OutputFormat is the format generated images are converted to before
	// upload: webp, jpeg or png.
	OutputFormat string `yaml:"output_format" env:"MEDIA_OUTPUT_FORMAT" env-default:"webp"`
}

// ProviderEndpoint holds one AI provider's endpoint settings.
type ProviderEndpoint struct {
	BaseURL      string `yaml:"base_url" env-default:""`
	APIKey       string `yaml:"-"` // Secret - set via env in ProvidersConfig
	DefaultModel string `yaml:"default_model" env-default:""`
}

// ProvidersConfig holds endpoints for the supported AI providers.
type ProvidersConfig struct {
	Gemini ProviderEndpoint `yaml:"gemini"`
	Doubao ProviderEndpoint `yaml:"doubao"`

	// Secrets come from the environment only.
	GeminiAPIKey string `yaml:"-" env:"GEMINI_API_KEY"`
	DoubaoAPIKey string `yaml:"-" env:"DOUBAO_API_KEY"`
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
// Secrets (PGPASSWORD, PAYMENT_API_KEY, provider keys) must come from
// environment variables (yaml:"-" fields).
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if _, err := os.Stat("config.yaml"); err == nil {
		if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	cfg.Providers.Gemini.APIKey = cfg.Providers.GeminiAPIKey
	cfg.Providers.Doubao.APIKey = cfg.Providers.DoubaoAPIKey

	if cfg.Providers.Gemini.BaseURL == "" {
		cfg.Providers.Gemini.BaseURL = "https://generativelanguage.googleapis.com/v1beta/openai"
	}
	if cfg.Providers.Doubao.BaseURL == "" {
		cfg.Providers.Doubao.BaseURL = "https://ark.cn-beijing.volces.com/api/v3"
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Auto-derive BaseURL from Port if not explicitly set
	if cfg.BaseURL == "" {
		cfg.BaseURL = (&url.URL{
			Scheme: "http",
			Host:   "localhost:" + cfg.Port,
		}).String()
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Media.OutputFormat {
	case "webp", "jpeg", "png":
	default:
		return fmt.Errorf("unsupported media output format %q", c.Media.OutputFormat)
	}
	if c.Auth.EnableVerification && c.Auth.JWKSURL == "" {
		return fmt.Errorf("auth verification enabled but AUTH_JWKS_URL is not set")
	}
	return nil
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
