// Package config manages the bridge configuration. Precedence is
// environment variables over the config file over built-in defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/vedfolnir/wsbridge/internal/recovery"
	"github.com/vedfolnir/wsbridge/internal/transport"
)

// Config is the full application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Recovery   RecoveryConfig   `mapstructure:"recovery"`
	Transports TransportsConfig `mapstructure:"transports"`
	Suspension SuspensionConfig `mapstructure:"suspension"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

// ServerConfig is the server connection configuration.
type ServerConfig struct {
	// URL is the WebSocket server address (ws:// or wss://).
	URL string `mapstructure:"url"`
	// TimeoutSeconds is the per-attempt dial timeout in seconds.
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
	// HeartbeatSeconds is the heartbeat send interval in seconds.
	HeartbeatSeconds int `mapstructure:"heartbeat_seconds"`
}

// AuthConfig is the authentication configuration.
type AuthConfig struct {
	// TokenFile is the path to the session token file. Tokens are never
	// stored inside the config file itself.
	TokenFile string `mapstructure:"token_file"`
	// TokenEnv is the environment variable consulted before TokenFile.
	TokenEnv string `mapstructure:"token_env"`
}

// LoggingConfig is the logging configuration.
type LoggingConfig struct {
	// Level is the log level (debug, info, warn, error).
	Level string `mapstructure:"level"`
	// Format is the log format (json, text).
	Format string `mapstructure:"format"`
	// File is the log file path; empty means stdout.
	File string `mapstructure:"file"`
}

// RecoveryConfig is the retry policy configuration.
type RecoveryConfig struct {
	// MaxRetries is the number of scheduled retries before escalation.
	MaxRetries int `mapstructure:"max_retries"`
	// InitialDelayMs is the base retry delay in milliseconds.
	InitialDelayMs int `mapstructure:"initial_delay_ms"`
	// MaxDelayMs caps the backoff in milliseconds.
	MaxDelayMs int `mapstructure:"max_delay_ms"`
	// BackoffMultiplier is the exponential backoff factor.
	BackoffMultiplier float64 `mapstructure:"backoff_multiplier"`
	// JitterFactor is the symmetric jitter fraction (0.2 means ±10%).
	JitterFactor float64 `mapstructure:"jitter_factor"`
	// ResetThresholdSeconds resets the retry counter after this much quiet
	// time, in seconds.
	ResetThresholdSeconds int `mapstructure:"reset_threshold_seconds"`
	// ErrorDelaysMs maps an error category to a flat retry delay in
	// milliseconds, overriding the backoff for that category.
	ErrorDelaysMs map[string]int `mapstructure:"error_delays_ms"`
}

// TransportsConfig is the transport selection configuration.
type TransportsConfig struct {
	// Allowed is the ordered transport preference (websocket, polling).
	Allowed []string `mapstructure:"allowed"`
	// Fallback enables dropping to the fallback set on cors/transport
	// failures.
	Fallback bool `mapstructure:"fallback"`
	// FallbackSet is the transport set used when falling back.
	FallbackSet []string `mapstructure:"fallback_set"`
	// FallbackDelayMs is the settle time after a switch, in milliseconds.
	FallbackDelayMs int `mapstructure:"fallback_delay_ms"`
}

// SuspensionConfig is the suspension detector configuration.
type SuspensionConfig struct {
	// Enabled turns the activity-gap detector on.
	Enabled bool `mapstructure:"enabled"`
	// ThresholdSeconds is the activity gap treated as a suspension.
	ThresholdSeconds int `mapstructure:"threshold_seconds"`
	// CheckIntervalSeconds is how often the gap is checked.
	CheckIntervalSeconds int `mapstructure:"check_interval_seconds"`
	// PollingModeTimeoutSeconds bounds degraded polling mode.
	PollingModeTimeoutSeconds int `mapstructure:"polling_mode_timeout_seconds"`
}

// MetricsConfig is the metrics endpoint configuration.
type MetricsConfig struct {
	// Enabled turns the Prometheus endpoint on.
	Enabled bool `mapstructure:"enabled"`
	// Listen is the address the metrics server binds to.
	Listen string `mapstructure:"listen"`
}

// Load parses the configuration bound in viper into a Config.
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.Auth.TokenFile = expandPath(cfg.Auth.TokenFile)
	cfg.Logging.File = expandPath(cfg.Logging.File)

	return &cfg, nil
}

// Validate checks the configuration for values the bridge cannot run with.
func (c *Config) Validate() error {
	if c.Server.URL == "" {
		return fmt.Errorf("server.url is required")
	}
	if _, err := transport.ParseNames(c.Transports.Allowed); err != nil {
		return fmt.Errorf("transports.allowed: %w", err)
	}
	if len(c.Transports.FallbackSet) > 0 {
		if _, err := transport.ParseNames(c.Transports.FallbackSet); err != nil {
			return fmt.Errorf("transports.fallback_set: %w", err)
		}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level %q (one of debug, info, warn, error)", c.Logging.Level)
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format %q (one of json, text)", c.Logging.Format)
	}

	if c.Recovery.MaxRetries < 0 {
		return fmt.Errorf("recovery.max_retries must be >= 0")
	}
	if c.Recovery.BackoffMultiplier < 0 {
		return fmt.Errorf("recovery.backoff_multiplier must be >= 0")
	}
	for name := range c.Recovery.ErrorDelaysMs {
		if !validCategory(name) {
			return fmt.Errorf("recovery.error_delays_ms: unknown category %q", name)
		}
	}

	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		return fmt.Errorf("metrics.listen is required when metrics are enabled")
	}

	return nil
}

func validCategory(name string) bool {
	switch recovery.Category(name) {
	case recovery.CategoryCORS, recovery.CategoryTimeout, recovery.CategoryTransport,
		recovery.CategoryAuth, recovery.CategoryRateLimit, recovery.CategoryServer,
		recovery.CategoryNetwork, recovery.CategoryUnknown:
		return true
	}
	return false
}

// ToRecoveryConfig translates the file representation into the recovery
// policy. Zero values fall through to the recovery package defaults.
func (c *Config) ToRecoveryConfig() recovery.Config {
	rc := recovery.Config{
		InitialDelay:            time.Duration(c.Recovery.InitialDelayMs) * time.Millisecond,
		MaxDelay:                time.Duration(c.Recovery.MaxDelayMs) * time.Millisecond,
		Multiplier:              c.Recovery.BackoffMultiplier,
		JitterFactor:            c.Recovery.JitterFactor,
		MaxRetries:              c.Recovery.MaxRetries,
		ResetThreshold:          time.Duration(c.Recovery.ResetThresholdSeconds) * time.Second,
		TransportFallback:       c.Transports.Fallback,
		FallbackDelay:           time.Duration(c.Transports.FallbackDelayMs) * time.Millisecond,
		SuspensionDetection:     c.Suspension.Enabled,
		SuspensionThreshold:     time.Duration(c.Suspension.ThresholdSeconds) * time.Second,
		SuspensionCheckInterval: time.Duration(c.Suspension.CheckIntervalSeconds) * time.Second,
		PollingModeTimeout:      time.Duration(c.Suspension.PollingModeTimeoutSeconds) * time.Second,
	}

	if names, err := transport.ParseNames(c.Transports.FallbackSet); err == nil && len(names) > 0 {
		rc.FallbackTransports = names
	}

	if len(c.Recovery.ErrorDelaysMs) > 0 {
		rc.ErrorDelays = make(map[recovery.Category]time.Duration, len(c.Recovery.ErrorDelaysMs))
		for name, ms := range c.Recovery.ErrorDelaysMs {
			rc.ErrorDelays[recovery.Category(name)] = time.Duration(ms) * time.Millisecond
		}
	}

	return rc
}

// AllowedTransports returns the configured transport preference.
func (c *Config) AllowedTransports() []transport.Name {
	names, err := transport.ParseNames(c.Transports.Allowed)
	if err != nil || len(names) == 0 {
		return []transport.Name{transport.NameWebSocket, transport.NamePolling}
	}
	return names
}

// DialTimeout returns the per-attempt dial timeout.
func (c *Config) DialTimeout() time.Duration {
	if c.Server.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Server.TimeoutSeconds) * time.Second
}

// HeartbeatInterval returns the heartbeat send interval.
func (c *Config) HeartbeatInterval() time.Duration {
	if c.Server.HeartbeatSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Server.HeartbeatSeconds) * time.Second
}

// Token resolves the session token: the environment variable wins over the
// token file. Returns "" when neither is set.
func (c *Config) Token() string {
	if c.Auth.TokenEnv != "" {
		if v := os.Getenv(c.Auth.TokenEnv); v != "" {
			return v
		}
	}
	if c.Auth.TokenFile != "" {
		if data, err := os.ReadFile(c.Auth.TokenFile); err == nil {
			return strings.TrimSpace(string(data))
		}
	}
	return ""
}

// expandPath expands a leading ~ to the home directory.
func expandPath(path string) string {
	if path == "" {
		return ""
	}
	if path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}

// EnsureConfigDir creates the config directory if it does not exist.
func EnsureConfigDir() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("resolve home directory: %w", err)
	}

	configDir := filepath.Join(home, ".config", "wsbridge")
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	return nil
}

// DefaultConfigPath returns the default config file location.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "wsbridge", "config.yaml")
}
