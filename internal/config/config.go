// Package config provides application configuration loading from environment variables and .env files.
// It uses viper for flexible configuration management with sensible defaults.
package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/Tapico/go-posthog-openfeature/pkg/provider"
)

// Config holds all application configuration loaded from environment variables or .env file.
// Configuration priority: environment variables > .env file > defaults.
type Config struct {
	APIKey           string        // PostHog project API key (phc_...)
	PersonalAPIKey   string        // PostHog personal API key (phx_...)
	Host             string        // PostHog host
	EvaluateLocally  bool          // Only evaluate flags with the locally cached rule set
	PollInterval     time.Duration // Rule set refresh interval
	SendFlagEvents   bool          // Emit $feature_flag_called after each lookup
	LogLevel         string        // zerolog level name (debug, info, warn, error)
	LogFormat        string        // Log output format (json or console)
	HTTPAddr         string        // HTTP server bind address (e.g., ":8080")
	MetricsAddr      string        // Metrics server bind address
	OTLPEndpoint     string        // OTLP/HTTP endpoint for traces and metrics, empty disables both
	ServerAPIKeyHash string        // bcrypt hash of the key accepted by the HTTP API
	RateLimitPerIP   int           // Requests per minute allowed per client IP
	ShutdownTimeout  time.Duration // Grace period for in-flight requests on shutdown
	// ContextAttributes are added to every evaluation context the server
	// sees, unless the request sets them. Read from CONTEXT_ATTRIBUTES as
	// a JSON object of strings.
	ContextAttributes map[string]string

	contextAttributesErr error
}

const (
	defaultHost         = "https://us.i.posthog.com"
	defaultPollInterval = 30 * time.Second
)

// Load reads configuration from environment variables and .env file (if present).
// Environment variables take precedence over .env file values.
//
// Load does not validate the result; call Validate before using it.
func Load() (*Config, error) {
	viperInstance := viper.New()
	viperInstance.SetConfigFile(".env") // Optional; silently ignored if file doesn't exist
	_ = viperInstance.ReadInConfig()
	viperInstance.AutomaticEnv()

	setConfigDefaults(viperInstance)

	cfg := &Config{
		APIKey:           viperInstance.GetString("POSTHOG_API_KEY"),
		PersonalAPIKey:   viperInstance.GetString("POSTHOG_PERSONAL_API_KEY"),
		Host:             viperInstance.GetString("POSTHOG_HOST"),
		EvaluateLocally:  viperInstance.GetBool("POSTHOG_EVALUATE_LOCALLY"),
		PollInterval:     viperInstance.GetDuration("POSTHOG_POLL_INTERVAL"),
		SendFlagEvents:   viperInstance.GetBool("POSTHOG_SEND_FLAG_EVENTS"),
		LogLevel:         strings.ToLower(viperInstance.GetString("LOG_LEVEL")),
		LogFormat:        strings.ToLower(viperInstance.GetString("LOG_FORMAT")),
		HTTPAddr:         viperInstance.GetString("APP_HTTP_ADDR"),
		MetricsAddr:      viperInstance.GetString("METRICS_ADDR"),
		OTLPEndpoint:     viperInstance.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
		ServerAPIKeyHash: viperInstance.GetString("SERVER_API_KEY_HASH"),
		RateLimitPerIP:   viperInstance.GetInt("RATE_LIMIT_PER_IP"),
		ShutdownTimeout:  viperInstance.GetDuration("SHUTDOWN_TIMEOUT"),
	}
	cfg.ContextAttributes, cfg.contextAttributesErr = parseContextAttributes(viperInstance.GetString("CONTEXT_ATTRIBUTES"))

	return cfg, nil
}

// parseContextAttributes decodes a JSON object of strings. An empty value
// yields no attributes.
func parseContextAttributes(raw string) (map[string]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var attrs map[string]string
	if err := json.Unmarshal([]byte(raw), &attrs); err != nil {
		return nil, err
	}
	return attrs, nil
}

// setConfigDefaults sets default values for all configuration options.
// These defaults are suitable for local development.
func setConfigDefaults(v *viper.Viper) {
	v.SetDefault("POSTHOG_HOST", defaultHost)
	v.SetDefault("POSTHOG_EVALUATE_LOCALLY", false)
	v.SetDefault("POSTHOG_POLL_INTERVAL", defaultPollInterval)
	v.SetDefault("POSTHOG_SEND_FLAG_EVENTS", true)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("APP_HTTP_ADDR", ":8080")
	v.SetDefault("METRICS_ADDR", ":9090")
	v.SetDefault("RATE_LIMIT_PER_IP", 100)
	v.SetDefault("SHUTDOWN_TIMEOUT", 10*time.Second)
}

// ValidationError represents a configuration validation error with details about what failed.
type ValidationError struct {
	Field   string // Name of the configuration field
	Message string // Human-readable error message
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation failed [%s]: %s", e.Field, e.Message)
}

// Validate checks that the configuration can build a provider.
//
// Validation Rules:
//  1. POSTHOG_API_KEY and POSTHOG_PERSONAL_API_KEY must be set
//  2. POSTHOG_HOST must be an http(s) URL
//  3. POSTHOG_POLL_INTERVAL must be positive
//  4. LOG_LEVEL must be a zerolog level, LOG_FORMAT json or console
//  5. RATE_LIMIT_PER_IP must be positive
//  6. CONTEXT_ATTRIBUTES, when set, must be a JSON object of strings
//
// Returns:
//   - nil if configuration is valid
//   - ValidationError describing the first validation failure
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ValidationError{Field: "POSTHOG_API_KEY", Message: "project API key is required"}
	}
	if c.PersonalAPIKey == "" {
		return ValidationError{Field: "POSTHOG_PERSONAL_API_KEY", Message: "personal API key is required"}
	}

	if !strings.HasPrefix(c.Host, "http://") && !strings.HasPrefix(c.Host, "https://") {
		return ValidationError{
			Field:   "POSTHOG_HOST",
			Message: fmt.Sprintf("must be an http(s) URL, got '%s'", c.Host),
		}
	}

	if c.PollInterval <= 0 {
		return ValidationError{Field: "POSTHOG_POLL_INTERVAL", Message: "must be a positive duration"}
	}

	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil || c.LogLevel == "" {
		return ValidationError{
			Field:   "LOG_LEVEL",
			Message: fmt.Sprintf("unknown log level '%s'", c.LogLevel),
		}
	}
	if c.LogFormat != "json" && c.LogFormat != "console" {
		return ValidationError{
			Field:   "LOG_FORMAT",
			Message: fmt.Sprintf("must be 'json' or 'console', got '%s'", c.LogFormat),
		}
	}

	if c.RateLimitPerIP <= 0 {
		return ValidationError{Field: "RATE_LIMIT_PER_IP", Message: "must be greater than zero"}
	}

	if c.contextAttributesErr != nil {
		return ValidationError{
			Field:   "CONTEXT_ATTRIBUTES",
			Message: fmt.Sprintf("must be a JSON object of strings: %v", c.contextAttributesErr),
		}
	}

	return nil
}

// ProviderConfiguration returns the provider source described by c.
func (c *Config) ProviderConfiguration() provider.Configuration {
	return provider.Configuration{
		APIKey:                c.APIKey,
		PersonalAPIKey:        c.PersonalAPIKey,
		Host:                  c.Host,
		EvaluateLocally:       c.EvaluateLocally,
		PollInterval:          c.PollInterval,
		SendFeatureFlagEvents: c.SendFlagEvents,
	}
}
