// status.go implements the connection status command. It reads the status
// file the connect command keeps up to date.
package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vedfolnir/wsbridge/internal/config"
	"github.com/vedfolnir/wsbridge/internal/metrics"
	"github.com/vedfolnir/wsbridge/internal/recovery"
)

// StatusInfo is the on-disk record of the running bridge.
type StatusInfo struct {
	// ServerURL is the configured server address.
	ServerURL string `json:"server_url,omitempty"`
	// StartTime is when the bridge process connected.
	StartTime *time.Time `json:"start_time,omitempty"`
	// Uptime is derived from StartTime, never stored.
	Uptime string `json:"uptime,omitempty"`
	// PID is the bridge process ID.
	PID int `json:"pid,omitempty"`

	// State is the last recovery snapshot.
	State recovery.Snapshot `json:"state"`
	// Counters is the last metrics snapshot.
	Counters metrics.Snapshot `json:"counters"`
}

// statusCmd shows the current connection state.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current connection state",
	Long: `Shows the bridge connection state and recovery statistics.

Displayed:
  - connection state (connected, recovering, polling mode, offline)
  - server URL and active transport
  - retry count and classified error counters
  - uptime

The information comes from the status file the connect command maintains.`,
	RunE: runStatus,
}

var (
	statusJSON   bool
	statusSimple bool
)

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "print JSON")
	statusCmd.Flags().BoolVarP(&statusSimple, "simple", "s", false, "print a single word")
}

func runStatus(cmd *cobra.Command, args []string) error {
	status, err := collectStatus()
	if err != nil {
		return fmt.Errorf("collect status: %w", err)
	}

	if statusJSON {
		return printStatusJSON(status)
	}
	if statusSimple {
		return printStatusSimple(status)
	}
	return printStatusFull(status)
}

// collectStatus reads the status file and reconciles it with reality.
func collectStatus() (*StatusInfo, error) {
	status := &StatusInfo{}

	statusFile := getStatusFilePath()
	if data, err := os.ReadFile(statusFile); err == nil {
		var fileStatus StatusInfo
		if err := json.Unmarshal(data, &fileStatus); err == nil {
			status = &fileStatus

			// A stale file from a dead process must not report connected.
			if status.PID > 0 && !isProcessRunning(status.PID) {
				status.State = recovery.Snapshot{}
				status.PID = 0
			}

			if status.State.Connected && status.StartTime != nil {
				status.Uptime = formatUptime(time.Since(*status.StartTime))
			}
		}
	}

	if status.ServerURL == "" {
		if cfg, err := config.Load(); err == nil {
			status.ServerURL = cfg.Server.URL
		}
	}

	return status, nil
}

func printStatusJSON(status *StatusInfo) error {
	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func printStatusSimple(status *StatusInfo) error {
	fmt.Println(stateWord(status.State))
	return nil
}

// stateWord reduces a snapshot to a single machine-friendly word.
func stateWord(st recovery.Snapshot) string {
	switch {
	case st.Offline:
		return "offline"
	case st.Suspended:
		return "suspended"
	case st.PollingMode:
		return "polling"
	case st.Recovering:
		return "recovering"
	case st.Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

func printStatusFull(status *StatusInfo) error {
	fmt.Println("Vedfolnir Bridge Status")
	fmt.Println("=======================")
	fmt.Println()

	fmt.Printf("State:       %s\n", stateWord(status.State))
	if status.PID > 0 {
		fmt.Printf("PID:         %d\n", status.PID)
	}
	if status.ServerURL != "" {
		fmt.Printf("Server:      %s\n", status.ServerURL)
	}
	if status.State.CurrentTransport != "" {
		fmt.Printf("Transport:   %s\n", status.State.CurrentTransport)
	}
	if status.State.Connected && status.Uptime != "" {
		fmt.Printf("Uptime:      %s\n", status.Uptime)
	}

	fmt.Println()
	fmt.Println("Recovery")
	fmt.Println("--------")
	fmt.Printf("Retries:     %d\n", status.State.RetryCount)
	fmt.Printf("Attempts:    %d\n", status.Counters.ConnectionAttempts)
	fmt.Printf("Cycles:      %d\n", status.Counters.RecoveryCycles)
	fmt.Printf("Failures:    %d\n", status.Counters.ConnectionFailures)
	if status.State.LastError != "" {
		fmt.Printf("Last error:  [%s] %s\n", status.State.LastErrorType, status.State.LastError)
	}
	if len(status.Counters.ErrorsByCategory) > 0 {
		fmt.Println()
		fmt.Println("Errors by category")
		fmt.Println("------------------")
		for cat, n := range status.Counters.ErrorsByCategory {
			fmt.Printf("  %-12s %d\n", cat, n)
		}
	}

	if !status.State.Connected {
		fmt.Println()
		fmt.Println("To connect:")
		fmt.Println("  wsbridge connect --server wss://example.org/ws")
	}

	return nil
}

// getStatusFilePath returns the status file location.
func getStatusFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "wsbridge", "status.json")
}

// isProcessRunning checks whether the given PID is alive (signal 0).
func isProcessRunning(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}

// formatUptime renders a duration the way humans read it.
func formatUptime(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}

// SaveStatus writes the current status to the status file. Used by the
// connect command.
func SaveStatus(status *StatusInfo) error {
	statusFile := getStatusFilePath()
	if statusFile == "" {
		return fmt.Errorf("cannot resolve status file path")
	}

	if err := config.EnsureConfigDir(); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}

	if err := os.WriteFile(statusFile, data, 0600); err != nil {
		return fmt.Errorf("write status file: %w", err)
	}

	return nil
}

// ClearStatus removes the status file on disconnect.
func ClearStatus() error {
	statusFile := getStatusFilePath()
	if statusFile == "" {
		return nil
	}
	err := os.Remove(statusFile)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
