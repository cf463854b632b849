package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vedfolnir/wsbridge/internal/recovery"
	"github.com/vedfolnir/wsbridge/internal/transport"
)

// validConfig returns a configuration that passes Validate.
func validConfig() *Config {
	return &Config{
		Server: ServerConfig{
			URL:              "wss://vedfolnir.example.org/ws",
			TimeoutSeconds:   10,
			HeartbeatSeconds: 30,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Recovery: RecoveryConfig{
			MaxRetries:            10,
			InitialDelayMs:        1000,
			MaxDelayMs:            30000,
			BackoffMultiplier:     2.0,
			JitterFactor:          0.2,
			ResetThresholdSeconds: 300,
		},
		Transports: TransportsConfig{
			Allowed:         []string{"websocket", "polling"},
			Fallback:        true,
			FallbackSet:     []string{"polling"},
			FallbackDelayMs: 2000,
		},
		Suspension: SuspensionConfig{
			Enabled:                   true,
			ThresholdSeconds:          60,
			CheckIntervalSeconds:      30,
			PollingModeTimeoutSeconds: 300,
		},
	}
}

func TestValidate_OK(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing server URL", func(c *Config) { c.Server.URL = "" }},
		{"unknown transport", func(c *Config) { c.Transports.Allowed = []string{"carrier-pigeon"} }},
		{"unknown fallback transport", func(c *Config) { c.Transports.FallbackSet = []string{"smoke-signal"} }},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"negative max retries", func(c *Config) { c.Recovery.MaxRetries = -1 }},
		{"negative multiplier", func(c *Config) { c.Recovery.BackoffMultiplier = -0.5 }},
		{"unknown error category", func(c *Config) {
			c.Recovery.ErrorDelaysMs = map[string]int{"gremlins": 1000}
		}},
		{"metrics without listen address", func(c *Config) {
			c.Metrics.Enabled = true
			c.Metrics.Listen = ""
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

func TestValidate_KnownErrorCategories(t *testing.T) {
	cfg := validConfig()
	cfg.Recovery.ErrorDelaysMs = map[string]int{
		"cors":       1000,
		"timeout":    1000,
		"transport":  1000,
		"auth":       5000,
		"rate_limit": 30000,
		"server":     1000,
		"network":    1000,
		"unknown":    1000,
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil for all known categories", err)
	}
}

func TestToRecoveryConfig_Conversions(t *testing.T) {
	cfg := validConfig()
	cfg.Recovery.ErrorDelaysMs = map[string]int{"rate_limit": 30000}

	rc := cfg.ToRecoveryConfig()

	if rc.InitialDelay != time.Second {
		t.Errorf("InitialDelay = %v, want 1s", rc.InitialDelay)
	}
	if rc.MaxDelay != 30*time.Second {
		t.Errorf("MaxDelay = %v, want 30s", rc.MaxDelay)
	}
	if rc.Multiplier != 2.0 {
		t.Errorf("Multiplier = %v, want 2.0", rc.Multiplier)
	}
	if rc.JitterFactor != 0.2 {
		t.Errorf("JitterFactor = %v, want 0.2", rc.JitterFactor)
	}
	if rc.MaxRetries != 10 {
		t.Errorf("MaxRetries = %d, want 10", rc.MaxRetries)
	}
	if rc.ResetThreshold != 5*time.Minute {
		t.Errorf("ResetThreshold = %v, want 5m", rc.ResetThreshold)
	}
	if !rc.TransportFallback {
		t.Error("TransportFallback = false, want true")
	}
	if rc.FallbackDelay != 2*time.Second {
		t.Errorf("FallbackDelay = %v, want 2s", rc.FallbackDelay)
	}
	if len(rc.FallbackTransports) != 1 || rc.FallbackTransports[0] != transport.NamePolling {
		t.Errorf("FallbackTransports = %v, want [polling]", rc.FallbackTransports)
	}
	if !rc.SuspensionDetection {
		t.Error("SuspensionDetection = false, want true")
	}
	if rc.SuspensionThreshold != time.Minute {
		t.Errorf("SuspensionThreshold = %v, want 1m", rc.SuspensionThreshold)
	}
	if rc.PollingModeTimeout != 5*time.Minute {
		t.Errorf("PollingModeTimeout = %v, want 5m", rc.PollingModeTimeout)
	}
	if got := rc.ErrorDelays[recovery.CategoryRateLimit]; got != 30*time.Second {
		t.Errorf("ErrorDelays[rate_limit] = %v, want 30s", got)
	}
}

func TestToRecoveryConfig_ZeroValuesOmitted(t *testing.T) {
	cfg := &Config{}
	rc := cfg.ToRecoveryConfig()

	if rc.InitialDelay != 0 {
		t.Errorf("InitialDelay = %v, want 0 (defaults applied later)", rc.InitialDelay)
	}
	if rc.ErrorDelays != nil {
		t.Errorf("ErrorDelays = %v, want nil", rc.ErrorDelays)
	}
	if rc.FallbackTransports != nil {
		t.Errorf("FallbackTransports = %v, want nil", rc.FallbackTransports)
	}
}

func TestAllowedTransports(t *testing.T) {
	cfg := validConfig()
	names := cfg.AllowedTransports()
	if len(names) != 2 || names[0] != transport.NameWebSocket || names[1] != transport.NamePolling {
		t.Errorf("AllowedTransports() = %v, want [websocket polling]", names)
	}

	// Empty and invalid configs fall back to the default pair.
	cfg.Transports.Allowed = nil
	names = cfg.AllowedTransports()
	if len(names) != 2 {
		t.Errorf("AllowedTransports() with empty config = %v, want default pair", names)
	}

	cfg.Transports.Allowed = []string{"bogus"}
	names = cfg.AllowedTransports()
	if len(names) != 2 {
		t.Errorf("AllowedTransports() with invalid config = %v, want default pair", names)
	}
}

func TestDialTimeoutDefault(t *testing.T) {
	cfg := &Config{}
	if got := cfg.DialTimeout(); got != 10*time.Second {
		t.Errorf("DialTimeout() = %v, want 10s default", got)
	}

	cfg.Server.TimeoutSeconds = 25
	if got := cfg.DialTimeout(); got != 25*time.Second {
		t.Errorf("DialTimeout() = %v, want 25s", got)
	}
}

func TestHeartbeatIntervalDefault(t *testing.T) {
	cfg := &Config{}
	if got := cfg.HeartbeatInterval(); got != 30*time.Second {
		t.Errorf("HeartbeatInterval() = %v, want 30s default", got)
	}

	cfg.Server.HeartbeatSeconds = 15
	if got := cfg.HeartbeatInterval(); got != 15*time.Second {
		t.Errorf("HeartbeatInterval() = %v, want 15s", got)
	}
}

func TestToken_EnvWinsOverFile(t *testing.T) {
	dir := t.TempDir()
	tokenFile := filepath.Join(dir, "token")
	if err := os.WriteFile(tokenFile, []byte("file-token\n"), 0600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("WSBRIDGE_TEST_TOKEN", "env-token")

	cfg := &Config{Auth: AuthConfig{
		TokenEnv:  "WSBRIDGE_TEST_TOKEN",
		TokenFile: tokenFile,
	}}

	if got := cfg.Token(); got != "env-token" {
		t.Errorf("Token() = %q, want env-token", got)
	}
}

func TestToken_FileFallbackTrimsWhitespace(t *testing.T) {
	dir := t.TempDir()
	tokenFile := filepath.Join(dir, "token")
	if err := os.WriteFile(tokenFile, []byte("  file-token\n"), 0600); err != nil {
		t.Fatal(err)
	}

	cfg := &Config{Auth: AuthConfig{
		TokenEnv:  "WSBRIDGE_UNSET_TOKEN_VAR",
		TokenFile: tokenFile,
	}}

	if got := cfg.Token(); got != "file-token" {
		t.Errorf("Token() = %q, want file-token", got)
	}
}

func TestToken_MissingEverywhere(t *testing.T) {
	cfg := &Config{Auth: AuthConfig{
		TokenEnv:  "WSBRIDGE_UNSET_TOKEN_VAR",
		TokenFile: filepath.Join(t.TempDir(), "nope"),
	}}

	if got := cfg.Token(); got != "" {
		t.Errorf("Token() = %q, want empty", got)
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"/abs/path", "/abs/path"},
		{"relative/path", "relative/path"},
		{"~/token", filepath.Join(home, "token")},
	}

	for _, tt := range tests {
		if got := expandPath(tt.in); got != tt.want {
			t.Errorf("expandPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
