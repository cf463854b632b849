// Package cmd defines the Vedfolnir bridge CLI commands.
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vedfolnir/wsbridge/internal/logger"
)

var (
	// Global flags.
	cfgFile string
	verbose bool

	// Version info injected from main.
	appVersion   string
	appCommit    string
	appBuildDate string
)

// rootCmd is the CLI root command.
var rootCmd = &cobra.Command{
	Use:   "wsbridge",
	Short: "Vedfolnir WebSocket bridge",
	Long: `wsbridge maintains a resilient WebSocket connection to a Vedfolnir
server. When the connection drops it classifies the failure, retries with
jittered exponential backoff, falls back to HTTP long-polling when the
WebSocket transport itself is the problem, and detects host suspension to
recover quickly after a laptop wakes up.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initLogger()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersionInfo stores the build-time version info.
func SetVersionInfo(version, commit, buildDate string) {
	appVersion = version
	appCommit = commit
	appBuildDate = buildDate
}

// GetVersionInfo returns the build-time version info.
func GetVersionInfo() (version, commit, buildDate string) {
	return appVersion, appCommit, appBuildDate
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file path (default: ~/.config/wsbridge/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"verbose output (debug level)")
}

// initConfig initializes viper. Precedence: environment variables over the
// config file over defaults.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "cannot resolve home directory: %v\n", err)
			os.Exit(1)
		}

		configDir := filepath.Join(home, ".config", "wsbridge")
		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	// Environment variables use the VEDFOLNIR_ prefix.
	viper.SetEnvPrefix("VEDFOLNIR")
	viper.AutomaticEnv()

	setDefaults()

	// A missing config file is fine; defaults apply.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "failed to read config file: %v\n", err)
		}
	}
}

// setDefaults defines the built-in configuration defaults.
func setDefaults() {
	// Server.
	viper.SetDefault("server.url", "")
	viper.SetDefault("server.timeout_seconds", 10)
	viper.SetDefault("server.heartbeat_seconds", 30)

	// Auth.
	home, _ := os.UserHomeDir()
	viper.SetDefault("auth.token_file", filepath.Join(home, ".config", "wsbridge", "token"))
	viper.SetDefault("auth.token_env", "VEDFOLNIR_TOKEN")

	// Logging.
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.file", "")

	// Recovery policy.
	viper.SetDefault("recovery.max_retries", 10)
	viper.SetDefault("recovery.initial_delay_ms", 1000)
	viper.SetDefault("recovery.max_delay_ms", 30000)
	viper.SetDefault("recovery.backoff_multiplier", 2.0)
	viper.SetDefault("recovery.jitter_factor", 0.2)
	viper.SetDefault("recovery.reset_threshold_seconds", 300)
	viper.SetDefault("recovery.error_delays_ms", map[string]int{
		"rate_limit": 30000,
		"auth":       5000,
	})

	// Transports.
	viper.SetDefault("transports.allowed", []string{"websocket", "polling"})
	viper.SetDefault("transports.fallback", true)
	viper.SetDefault("transports.fallback_set", []string{"polling"})
	viper.SetDefault("transports.fallback_delay_ms", 2000)

	// Suspension detection.
	viper.SetDefault("suspension.enabled", true)
	viper.SetDefault("suspension.threshold_seconds", 60)
	viper.SetDefault("suspension.check_interval_seconds", 30)
	viper.SetDefault("suspension.polling_mode_timeout_seconds", 300)

	// Metrics endpoint.
	viper.SetDefault("metrics.enabled", false)
	viper.SetDefault("metrics.listen", "127.0.0.1:9464")
}

// initLogger configures the global logger from the loaded config.
func initLogger() error {
	level := viper.GetString("logging.level")
	if verbose {
		level = "debug"
	}

	logger.Setup(logger.Options{
		Level:  level,
		Format: viper.GetString("logging.format"),
		File:   viper.GetString("logging.file"),
	})
	return nil
}
