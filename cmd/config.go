// config.go implements the configuration management commands.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/vedfolnir/wsbridge/internal/config"
)

// configCmd is the parent command for configuration management.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration",
	Long: `Reads and writes values in the configuration file.

Config file location: ~/.config/wsbridge/config.yaml

Note: the session token is never stored in the config file. Set the
VEDFOLNIR_TOKEN environment variable or write it to auth.token_file.`,
}

// configSetCmd stores a configuration value.
var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Store a configuration value",
	Long: `Writes a value into the configuration file.

Keys are dot-separated paths. Examples:
  wsbridge config set server.url wss://vedfolnir.example.org/ws
  wsbridge config set logging.level debug
  wsbridge config set recovery.max_retries 5

Supported keys:
  server.url                      - WebSocket server URL
  server.timeout_seconds          - per-attempt dial timeout (seconds)
  server.heartbeat_seconds        - heartbeat interval (seconds)
  auth.token_file                 - session token file path
  logging.level                   - log level (debug, info, warn, error)
  logging.format                  - log format (json, text)
  logging.file                    - log file path (empty means stdout)
  recovery.max_retries            - retries before escalation
  recovery.initial_delay_ms       - base retry delay (milliseconds)
  recovery.max_delay_ms           - backoff cap (milliseconds)
  recovery.backoff_multiplier     - exponential backoff factor
  recovery.jitter_factor          - symmetric jitter fraction
  recovery.reset_threshold_seconds - quiet time before the counter resets
  transports.fallback             - enable polling fallback
  transports.fallback_delay_ms    - settle time after a transport switch
  suspension.enabled              - enable suspension detection
  suspension.threshold_seconds    - activity gap treated as suspension
  metrics.enabled                 - enable the Prometheus endpoint
  metrics.listen                  - metrics listen address`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

// configGetCmd reads a configuration value.
var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Read a configuration value",
	Long: `Reads a single key from the configuration.

Keys are dot-separated paths. Examples:
  wsbridge config get server.url
  wsbridge config get logging.level`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigGet,
}

// configListCmd prints the full effective configuration.
var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the full configuration",
	Long: `Prints the effective configuration as YAML, including defaults.

The token environment variable status is shown alongside; the token value
itself is masked.`,
	RunE: runConfigList,
}

// configPathCmd prints the config file path.
var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file path",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(config.DefaultConfigPath())
		return nil
	},
}

// configInitCmd writes a default config file.
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long: `Creates a default config file at ~/.config/wsbridge/config.yaml.

An existing file is not overwritten unless --force is given.`,
	RunE: runConfigInit,
}

var forceInit bool

func init() {
	rootCmd.AddCommand(configCmd)

	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configInitCmd)

	configInitCmd.Flags().BoolVar(&forceInit, "force", false, "overwrite an existing file")
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := args[0]
	value := args[1]

	if !isValidConfigKey(key) {
		return fmt.Errorf("unknown config key: %s", key)
	}

	parsedValue := parseConfigValue(value)
	viper.Set(key, parsedValue)

	if err := config.EnsureConfigDir(); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	configPath := config.DefaultConfigPath()
	if err := viper.WriteConfigAs(configPath); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	fmt.Printf("%s = %v\n", key, parsedValue)
	fmt.Printf("saved: %s\n", configPath)
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	key := args[0]

	value := viper.Get(key)
	if value == nil {
		return fmt.Errorf("config key not found: %s", key)
	}

	fmt.Printf("%s = %v\n", key, value)
	return nil
}

func runConfigList(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	configFile := viper.ConfigFileUsed()
	if configFile != "" {
		fmt.Printf("# config file: %s\n", configFile)
	} else {
		fmt.Printf("# config file: (defaults in effect)\n")
	}
	fmt.Println()

	yamlData, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	fmt.Println(string(yamlData))

	fmt.Println("# token status:")
	printTokenStatus(cfg)

	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath := config.DefaultConfigPath()

	if !forceInit {
		if _, err := os.Stat(configPath); err == nil {
			return fmt.Errorf("config file already exists: %s\nuse --force to overwrite", configPath)
		}
	}

	if err := config.EnsureConfigDir(); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	defaultConfig := `# Vedfolnir bridge configuration
# generated by: wsbridge config init

server:
  url: ""                  # e.g. wss://vedfolnir.example.org/ws
  timeout_seconds: 10
  heartbeat_seconds: 30

auth:
  # The token is read from the environment variable first, then this file.
  token_env: "VEDFOLNIR_TOKEN"
  token_file: "~/.config/wsbridge/token"

logging:
  level: "info"    # debug, info, warn, error
  format: "json"   # json, text
  file: ""         # empty means stdout

recovery:
  max_retries: 10
  initial_delay_ms: 1000
  max_delay_ms: 30000
  backoff_multiplier: 2.0
  jitter_factor: 0.2
  reset_threshold_seconds: 300
  error_delays_ms:
    rate_limit: 30000
    auth: 5000

transports:
  allowed: ["websocket", "polling"]
  fallback: true
  fallback_set: ["polling"]
  fallback_delay_ms: 2000

suspension:
  enabled: true
  threshold_seconds: 60
  check_interval_seconds: 30
  polling_mode_timeout_seconds: 300

metrics:
  enabled: false
  listen: "127.0.0.1:9464"
`

	if err := os.WriteFile(configPath, []byte(defaultConfig), 0600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	fmt.Printf("config file created: %s\n", configPath)
	fmt.Println("\nset the server URL and token:")
	fmt.Println("  wsbridge config set server.url wss://vedfolnir.example.org/ws")
	fmt.Println("  export VEDFOLNIR_TOKEN=<your-session-token>")
	return nil
}

// isValidConfigKey reports whether the key may be written with config set.
func isValidConfigKey(key string) bool {
	validKeys := map[string]bool{
		"server.url":                              true,
		"server.timeout_seconds":                  true,
		"server.heartbeat_seconds":                true,
		"auth.token_file":                         true,
		"auth.token_env":                          true,
		"logging.level":                           true,
		"logging.format":                          true,
		"logging.file":                            true,
		"recovery.max_retries":                    true,
		"recovery.initial_delay_ms":               true,
		"recovery.max_delay_ms":                   true,
		"recovery.backoff_multiplier":             true,
		"recovery.jitter_factor":                  true,
		"recovery.reset_threshold_seconds":        true,
		"transports.fallback":                     true,
		"transports.fallback_delay_ms":            true,
		"suspension.enabled":                      true,
		"suspension.threshold_seconds":            true,
		"suspension.check_interval_seconds":       true,
		"suspension.polling_mode_timeout_seconds": true,
		"metrics.enabled":                         true,
		"metrics.listen":                          true,
	}
	return validKeys[key]
}

// parseConfigValue converts a string value to a matching Go type.
func parseConfigValue(value string) interface{} {
	if value == "true" {
		return true
	}
	if value == "false" {
		return false
	}

	var intVal int
	if _, err := fmt.Sscanf(value, "%d", &intVal); err == nil {
		if !strings.Contains(value, ".") {
			return intVal
		}
	}

	var floatVal float64
	if _, err := fmt.Sscanf(value, "%f", &floatVal); err == nil {
		return floatVal
	}

	return value
}

// maskSensitiveValue masks a secret, keeping only the edges.
func maskSensitiveValue(value string) string {
	if len(value) <= 8 {
		return "***"
	}
	return value[:4] + "***" + value[len(value)-4:]
}

// printTokenStatus reports whether a token is available, masked.
func printTokenStatus(cfg *config.Config) {
	envVar := cfg.Auth.TokenEnv
	if envVar == "" {
		envVar = "VEDFOLNIR_TOKEN"
	}
	if v := os.Getenv(envVar); v != "" {
		fmt.Printf("  %s: set (%s)\n", envVar, maskSensitiveValue(v))
		return
	}
	if cfg.Auth.TokenFile != "" {
		if _, err := os.Stat(cfg.Auth.TokenFile); err == nil {
			fmt.Printf("  token file: present (%s)\n", cfg.Auth.TokenFile)
			return
		}
	}
	fmt.Println("  token: not set")
}
