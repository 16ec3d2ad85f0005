package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/tournevent/sendparcel/pkg/parcel"
	"go.opentelemetry.io/otel/attribute"
)

// Config holds all configuration for the service.
type Config struct {
	// Server
	Port     int    `envconfig:"PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Status polling sweep
	PollSchedule    string `envconfig:"POLL_SCHEDULE" default:"@every 1m"`
	PollConcurrency int    `envconfig:"POLL_CONCURRENCY" default:"4"`

	// Dummy provider (local/dev reference)
	DummyEnabled       bool   `envconfig:"DUMMY_ENABLED" default:"true"`
	DummyCallbackToken string `envconfig:"DUMMY_CALLBACK_TOKEN" default:"dummy-token"`
	DummyLabelBaseURL  string `envconfig:"DUMMY_LABEL_BASE_URL" default:"https://dummy.local/labels"`

	// PakPost
	PakPostAPIKey  string `envconfig:"PAKPOST_API_KEY"`
	PakPostBaseURL string `envconfig:"PAKPOST_BASE_URL" default:"https://api.pakpost.example/v1"`
	PakPostEnabled bool   `envconfig:"PAKPOST_ENABLED" default:"true"`
	PakPostUseMock bool   `envconfig:"PAKPOST_USE_MOCK" default:"false"`
	PakPostService string `envconfig:"PAKPOST_SERVICE" default:"standard"`

	// Telemetry
	OTELEnabled  bool   `envconfig:"OTEL_ENABLED" default:"true"`
	OTELEndpoint string `envconfig:"OTEL_ENDPOINT" default:"http://localhost:4318"`
	ServiceName  string `envconfig:"SERVICE_NAME" default:"sendparcel"`
	Version      string `envconfig:"SERVICE_VERSION" default:"0.0.1"`
}

// Load reads configuration from a .env file, when present, and the
// environment.
func Load() (*Config, error) {
	_ = godotenv.Load() // missing .env is fine

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return &cfg, nil
}

// ProviderSettings assembles the per-slug settings maps handed to
// provider instances at instantiation time.
func (c *Config) ProviderSettings() map[string]parcel.Settings {
	return map[string]parcel.Settings{
		"dummy": {
			"callback_token": c.DummyCallbackToken,
			"label_base_url": c.DummyLabelBaseURL,
		},
		"pakpost": {
			"service": c.PakPostService,
		},
	}
}

// Attributes returns OpenTelemetry attributes for this configuration.
func (c *Config) Attributes() []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("service.name", c.ServiceName),
		attribute.String("service.version", c.Version),
		attribute.Bool("dummy.enabled", c.DummyEnabled),
		attribute.Bool("pakpost.enabled", c.PakPostEnabled),
	}
}
