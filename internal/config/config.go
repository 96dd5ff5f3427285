// Package config provides the configuration structure for the Stepfun
// text-to-speech integration.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"

	"github.com/book-expert/stepfun-tts/internal/objectstore"
	"github.com/book-expert/stepfun-tts/internal/stepfun"
)

// Defaults applied to fields left empty by the file and the environment.
const (
	DefaultBaseURL          = stepfun.DefaultBaseURL
	DefaultTimeoutSeconds   = int(stepfun.DefaultTimeout / time.Second)
	DefaultUserAgent        = stepfun.DefaultUserAgent
	DefaultSourceTag        = stepfun.DefaultSourceTag
	DefaultNATSURL          = "nats://127.0.0.1:4222"
	DefaultSubject          = "text.processed"
	DefaultAudioBucket      = "AUDIO_FILES"
	DefaultGatewayAddr      = ":8080"
	DefaultGatewayPublicURL = objectstore.DefaultPublicURL
	defaultEnvFile          = ".env"
)

// ErrAPIKeyMissing is returned by Validate when no API key is configured.
var ErrAPIKeyMissing = errors.New("stepfun api key is not configured (set stepfun.api_key or STEPFUN_API_KEY)")

// StepfunConfig holds the upstream API settings.
type StepfunConfig struct {
	BaseURL        string `toml:"base_url"        env:"STEPFUN_BASE_URL"`
	APIKey         string `toml:"api_key"         env:"STEPFUN_API_KEY"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	UserAgent      string `toml:"user_agent"`
	SourceTag      string `toml:"source_tag"`
}

// NATSConfig holds the configuration for NATS.
type NATSConfig struct {
	URL                    string `toml:"url"                       env:"NATS_URL"`
	TextProcessedSubject   string `toml:"text_processed_subject"`
	AudioObjectStoreBucket string `toml:"audio_object_store_bucket"`
}

// GatewayConfig holds the HTTP listener serving stored audio and metrics.
type GatewayConfig struct {
	Addr      string `toml:"addr"       env:"TTS_HTTP_ADDR"`
	PublicURL string `toml:"public_url" env:"TTS_PUBLIC_URL"`
}

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	BaseLogsDir string `toml:"base_logs_dir"`
}

// Config is the root configuration structure.
type Config struct {
	Stepfun StepfunConfig `toml:"stepfun"`
	NATS    NATSConfig    `toml:"nats"`
	Gateway GatewayConfig `toml:"gateway"`
	Paths   PathsConfig   `toml:"paths"`
}

// Load loads project.toml through the central configurator, overlays
// environment variables (including an optional .env file) and fills defaults.
func Load(log *logger.Logger) (*Config, error) {
	var cfg Config

	err := configurator.Load(&cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from configurator: %w", err)
	}

	err = ApplyEnv(&cfg)
	if err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()

	return &cfg, nil
}

// ApplyEnv overlays environment variables onto cfg. A missing .env file is
// not an error.
func ApplyEnv(cfg *Config) error {
	_ = godotenv.Load(defaultEnvFile)

	err := env.Parse(cfg)
	if err != nil {
		return fmt.Errorf("failed to parse environment overrides: %w", err)
	}

	return nil
}

// ApplyDefaults fills every empty field with its default.
func (c *Config) ApplyDefaults() {
	setDefault(&c.Stepfun.BaseURL, DefaultBaseURL)
	setDefault(&c.Stepfun.UserAgent, DefaultUserAgent)
	setDefault(&c.Stepfun.SourceTag, DefaultSourceTag)
	setDefault(&c.NATS.URL, DefaultNATSURL)
	setDefault(&c.NATS.TextProcessedSubject, DefaultSubject)
	setDefault(&c.NATS.AudioObjectStoreBucket, DefaultAudioBucket)
	setDefault(&c.Gateway.Addr, DefaultGatewayAddr)
	setDefault(&c.Gateway.PublicURL, DefaultGatewayPublicURL)

	if c.Stepfun.TimeoutSeconds <= 0 {
		c.Stepfun.TimeoutSeconds = DefaultTimeoutSeconds
	}
}

// Validate checks the settings the service cannot run without.
func (c *Config) Validate() error {
	if c.Stepfun.APIKey == "" {
		return ErrAPIKeyMissing
	}

	return nil
}

// Timeout returns the upstream request timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Stepfun.TimeoutSeconds) * time.Second
}

func setDefault(field *string, value string) {
	if *field == "" {
		*field = value
	}
}
