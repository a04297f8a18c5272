package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the transcription gateway
type Config struct {
	// Server configuration
	Port string `envconfig:"PORT" default:"8080"`

	// Model configuration
	ModelDir          string   `envconfig:"MODEL_DIR" default:"./models/whisper-base"`
	ModelFiles        []string `envconfig:"MODEL_FILES" default:"ggml-model-q8_0.bin"`
	ModelSourceURL    string   `envconfig:"MODEL_SOURCE_URL" default:""`
	ModelQuantization string   `envconfig:"MODEL_QUANTIZATION" default:"int8"` // int8, fp32

	// Streaming transcription configuration
	UpdateIntervalSeconds  float64 `envconfig:"UPDATE_INTERVAL_SECONDS" default:"2.0"`   // Windowing cadence
	SilenceRMSThreshold    float64 `envconfig:"SILENCE_RMS_THRESHOLD" default:"0.002"`   // RMS gate below which windows are skipped
	OverlapRetainedSeconds float64 `envconfig:"OVERLAP_RETAINED_SECONDS" default:"3.0"`  // Trailing audio kept between windows
	BoundaryMarginSeconds  float64 `envconfig:"BOUNDARY_MARGIN_SECONDS" default:"0.05"`  // Dedup tolerance for boundary jitter
	LoadWaitTimeoutSeconds float64 `envconfig:"LOAD_WAIT_TIMEOUT_SECONDS" default:"120"` // Bound on waiting for another caller's load
	AudioLevelIntervalMs   int     `envconfig:"AUDIO_LEVEL_INTERVAL_MS" default:"50"`    // Audio level notification throttle

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values the core subsystems cannot run with
func (c *Config) Validate() error {
	if c.ModelDir == "" {
		return fmt.Errorf("MODEL_DIR is required")
	}
	if c.ModelQuantization != "int8" && c.ModelQuantization != "fp32" {
		return fmt.Errorf("MODEL_QUANTIZATION must be int8 or fp32, got %q", c.ModelQuantization)
	}
	if c.UpdateIntervalSeconds <= 0 {
		return fmt.Errorf("UPDATE_INTERVAL_SECONDS must be positive")
	}
	if c.OverlapRetainedSeconds < 0 {
		return fmt.Errorf("OVERLAP_RETAINED_SECONDS must not be negative")
	}
	if c.LoadWaitTimeoutSeconds <= 0 {
		return fmt.Errorf("LOAD_WAIT_TIMEOUT_SECONDS must be positive")
	}
	return nil
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
