package config

import (
	"errors"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the funnel-backend service.
type Config struct {
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`
	Language  string `envconfig:"CHAT_LANGUAGE" default:"de"`
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	AI        AIConfig
	Leads     LeadsConfig
	Maps      MapsConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host      string `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port      string `envconfig:"SERVER_PORT" default:"8080"`
	JWTSecret string `envconfig:"JWT_SECRET" required:"true"`
}

// DatabaseConfig holds PostgreSQL configuration for the lead archive.
// An empty DSN disables archiving; submitted leads are then only forwarded.
type DatabaseConfig struct {
	DSN string `envconfig:"DATABASE_DSN"`
}

// RedisConfig holds Redis configuration for conversation snapshots and the
// service-catalog cache.
type RedisConfig struct {
	URI         string        `envconfig:"REDIS_URI" required:"true"`
	SnapshotTTL time.Duration `envconfig:"SNAPSHOT_TTL" default:"4h"`
}

// AIConfig holds configuration for the OpenAI-compatible completion provider.
// An empty APIKey is allowed: the chat funnel then degrades to a static
// "AI unavailable" notice instead of failing hard.
type AIConfig struct {
	APIKey         string        `envconfig:"AI_API_KEY"`
	BaseURL        string        `envconfig:"AI_BASE_URL" default:"https://openrouter.ai/api/v1"`
	Model          string        `envconfig:"AI_MODEL" default:"mistralai/mistral-small-3.2-24b-instruct"`
	VisionModel    string        `envconfig:"AI_VISION_MODEL" default:"mistralai/pixtral-12b"`
	MaxAttempts    int           `envconfig:"AI_MAX_ATTEMPTS" default:"3"`
	InitialDelay   time.Duration `envconfig:"AI_RETRY_INITIAL_DELAY" default:"1s"`
	RequestTimeout time.Duration `envconfig:"AI_REQUEST_TIMEOUT" default:"60s"`
}

// LeadsConfig holds configuration for the lead-submission backend.
type LeadsConfig struct {
	BaseURL string `envconfig:"LEADS_BASE_URL" required:"true"`
}

// MapsConfig holds configuration for the static satellite-imagery endpoint.
// ZoomLevels are tried strictly in order during roof analysis; the first image
// that passes the AI validity check wins.
type MapsConfig struct {
	BaseURL    string `envconfig:"MAPS_BASE_URL" default:"https://maps.googleapis.com/maps/api/staticmap"`
	APIKey     string `envconfig:"MAPS_API_KEY"`
	ZoomLevels []int  `envconfig:"MAPS_ZOOM_LEVELS" default:"19,20,18"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks configuration for logical errors beyond required fields.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.AI.MaxAttempts < 1 {
		return errors.New("AI_MAX_ATTEMPTS must be at least 1")
	}
	if c.AI.InitialDelay <= 0 {
		return errors.New("AI_RETRY_INITIAL_DELAY must be positive")
	}
	if len(c.Maps.ZoomLevels) == 0 {
		return errors.New("MAPS_ZOOM_LEVELS must not be empty")
	}
	return nil
}
