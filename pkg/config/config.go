// Package config handles application configuration.
//
// It provides:
//   - Flag parsing with CLI arguments
//   - Environment variable support (with CLI override)
//   - Optional .env file loading for local development
//   - Configuration validation
//   - Precedence: CLI flags > environment variables > .env file > defaults
//
// Supported environment variables:
//   - ACTRON_USERNAME: ActronAir Neo account username (required)
//   - ACTRON_PASSWORD: ActronAir Neo account password (required)
//   - ACTRON_API_URL: Base URL of the Neo cloud API
//   - ACTRON_SERIAL: Filter to a specific AC system serial
//   - ACTRON_PORT: HTTP server port
//   - ACTRON_POLL_INTERVAL: Refresh interval (seconds)
//   - ACTRON_REQUEST_TIMEOUT: Timeout for API requests (seconds)
//   - ACTRON_MAX_BACKOFF: Maximum retry backoff (seconds)
//   - ACTRON_FAILURE_THRESHOLD: Consecutive transient failures before escalation
//   - ACTRON_MIN_REQUEST_SPACING: Minimum spacing between outbound calls (seconds)
//   - ACTRON_MQTT_BROKER: MQTT broker URL (optional; MQTT disabled when empty)
//   - ACTRON_MQTT_PREFIX: MQTT topic prefix
//   - ACTRON_MQTT_USERNAME / ACTRON_MQTT_PASSWORD: MQTT credentials
//   - ACTRON_LOG_LEVEL: Logging level (debug, info, warn, error)
//   - ACTRON_LOG_FORMAT: Logging format (json, text)
package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration
type Config struct {
	// Neo cloud account
	Username string
	Password string
	BaseURL  string
	Serial   string

	// Server configuration
	Port int

	// Coordinator configuration
	PollInterval     int
	RequestTimeout   int
	MaxBackoff       int
	FailureThreshold int

	// Client configuration
	MinRequestSpacing int

	// MQTT fan-out (optional)
	MQTTBroker   string
	MQTTPrefix   string
	MQTTUsername string
	MQTTPassword string

	// Logging
	LogLevel  string
	LogFormat string
}

// Load parses environment variables and command-line flags and returns a Config
// Precedence: CLI flags > environment variables > .env file > defaults
func Load() *Config {
	// Best effort: a missing .env file is the normal case outside development
	_ = godotenv.Load()
	return LoadWithArgs(os.Args[1:])
}

// LoadWithArgs loads configuration with explicit arguments (useful for testing)
func LoadWithArgs(args []string) *Config {
	cfg := &Config{}

	fs := flag.NewFlagSet("config", flag.ContinueOnError)

	fs.StringVar(&cfg.Username, "username", os.Getenv("ACTRON_USERNAME"), "ActronAir Neo account username (env: ACTRON_USERNAME, required)")
	fs.StringVar(&cfg.Password, "password", os.Getenv("ACTRON_PASSWORD"), "ActronAir Neo account password (env: ACTRON_PASSWORD, required)")
	fs.StringVar(&cfg.BaseURL, "api-url", envString("ACTRON_API_URL", "https://nimbus.actronair.com.au"), "Base URL of the Neo cloud API (env: ACTRON_API_URL)")
	fs.StringVar(&cfg.Serial, "serial", os.Getenv("ACTRON_SERIAL"), "AC system serial to bridge (env: ACTRON_SERIAL, optional when the account has one system)")

	fs.IntVar(&cfg.Port, "port", envInt("ACTRON_PORT", 8095), "HTTP server listen port (env: ACTRON_PORT)")

	fs.IntVar(&cfg.PollInterval, "poll-interval", envInt("ACTRON_POLL_INTERVAL", 30), "Seconds between refresh cycles (env: ACTRON_POLL_INTERVAL)")
	fs.IntVar(&cfg.RequestTimeout, "request-timeout", envInt("ACTRON_REQUEST_TIMEOUT", 30), "Maximum time in seconds to wait for an API response (env: ACTRON_REQUEST_TIMEOUT)")
	fs.IntVar(&cfg.MaxBackoff, "max-backoff", envInt("ACTRON_MAX_BACKOFF", 300), "Maximum retry backoff in seconds after transient failures (env: ACTRON_MAX_BACKOFF)")
	fs.IntVar(&cfg.FailureThreshold, "failure-threshold", envInt("ACTRON_FAILURE_THRESHOLD", 5), "Consecutive transient failures before the bridge reports a persistent failure (env: ACTRON_FAILURE_THRESHOLD)")
	fs.IntVar(&cfg.MinRequestSpacing, "min-request-spacing", envInt("ACTRON_MIN_REQUEST_SPACING", 3), "Minimum seconds between outbound API calls (env: ACTRON_MIN_REQUEST_SPACING)")

	fs.StringVar(&cfg.MQTTBroker, "mqtt-broker", os.Getenv("ACTRON_MQTT_BROKER"), "MQTT broker URL, e.g. tcp://localhost:1883 (env: ACTRON_MQTT_BROKER, optional)")
	fs.StringVar(&cfg.MQTTPrefix, "mqtt-prefix", envString("ACTRON_MQTT_PREFIX", "actron"), "MQTT topic prefix (env: ACTRON_MQTT_PREFIX)")
	fs.StringVar(&cfg.MQTTUsername, "mqtt-username", os.Getenv("ACTRON_MQTT_USERNAME"), "MQTT username (env: ACTRON_MQTT_USERNAME)")
	fs.StringVar(&cfg.MQTTPassword, "mqtt-password", os.Getenv("ACTRON_MQTT_PASSWORD"), "MQTT password (env: ACTRON_MQTT_PASSWORD)")

	fs.StringVar(&cfg.LogLevel, "log-level", envString("ACTRON_LOG_LEVEL", "info"), "Logging verbosity: debug, info, warn, error (env: ACTRON_LOG_LEVEL)")
	fs.StringVar(&cfg.LogFormat, "log-format", envString("ACTRON_LOG_FORMAT", "text"), "Logging format: json, text (env: ACTRON_LOG_FORMAT)")

	// FlagSet is configured with ContinueOnError, so parse errors are handled gracefully
	_ = fs.Parse(args)

	return cfg
}

// envString returns the environment variable value, or the default when unset
func envString(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

// envInt parses an environment variable as an integer, returning default if invalid
func envInt(key string, defaultValue int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	var result int
	if _, err := fmt.Sscanf(v, "%d", &result); err != nil {
		return defaultValue
	}
	return result
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Username == "" {
		return fmt.Errorf("username is required (use -username flag or ACTRON_USERNAME env var)")
	}
	if c.Password == "" {
		return fmt.Errorf("password is required (use -password flag or ACTRON_PASSWORD env var)")
	}
	if c.BaseURL == "" {
		return fmt.Errorf("api-url must not be empty")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d (must be between 1 and 65535)", c.Port)
	}
	if c.PollInterval < 1 {
		return fmt.Errorf("invalid poll-interval: %d (must be at least 1 second)", c.PollInterval)
	}
	if c.RequestTimeout < 1 {
		return fmt.Errorf("invalid request-timeout: %d (must be at least 1 second)", c.RequestTimeout)
	}
	if c.MaxBackoff < c.PollInterval {
		return fmt.Errorf("invalid max-backoff: %d (must be at least the poll interval)", c.MaxBackoff)
	}
	if c.FailureThreshold < 1 {
		return fmt.Errorf("invalid failure-threshold: %d (must be at least 1)", c.FailureThreshold)
	}
	if c.MinRequestSpacing < 0 {
		return fmt.Errorf("invalid min-request-spacing: %d (must not be negative)", c.MinRequestSpacing)
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log-level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return fmt.Errorf("invalid log-format: %s (must be 'json' or 'text')", c.LogFormat)
	}

	return nil
}

// PollIntervalDuration returns the poll interval as a time.Duration
func (c *Config) PollIntervalDuration() time.Duration {
	return time.Duration(c.PollInterval) * time.Second
}

// RequestTimeoutDuration returns the request timeout as a time.Duration
func (c *Config) RequestTimeoutDuration() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

// MaxBackoffDuration returns the maximum backoff as a time.Duration
func (c *Config) MaxBackoffDuration() time.Duration {
	return time.Duration(c.MaxBackoff) * time.Second
}

// MinRequestSpacingDuration returns the outbound call spacing as a time.Duration
func (c *Config) MinRequestSpacingDuration() time.Duration {
	return time.Duration(c.MinRequestSpacing) * time.Second
}

// MQTTEnabled reports whether an MQTT broker has been configured
func (c *Config) MQTTEnabled() bool {
	return c.MQTTBroker != ""
}

// String returns a string representation of the config (without sensitive data)
func (c *Config) String() string {
	return fmt.Sprintf("Config{Username: %s, BaseURL: %s, Serial: %s, Port: %d, PollInterval: %ds, RequestTimeout: %ds, MaxBackoff: %ds, FailureThreshold: %d, MQTTBroker: %s, LogLevel: %s}",
		c.Username, c.BaseURL, c.Serial, c.Port, c.PollInterval, c.RequestTimeout, c.MaxBackoff, c.FailureThreshold, c.MQTTBroker, c.LogLevel)
}
