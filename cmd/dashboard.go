// dashboard.go implements the TUI dashboard command.
package cmd

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/vedfolnir/wsbridge/internal/tui"
)

// dashboardCmd opens the interactive TUI dashboard.
var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Open TUI dashboard for monitoring",
	Long: `Opens an interactive TUI dashboard showing the connection state,
recent classified errors and recovery counters in real-time.

Panels:
  - Connection: state, server URL, transport, retries, uptime
  - Errors: bounded history of classified connection errors
  - Counters: attempts, successes, recovery cycles, suspensions

Keyboard shortcuts:
  q          quit dashboard
  r          manual refresh
  tab        switch between panels
  up/down    scroll error history

The dashboard reads the status file the connect command maintains, so it can
run next to an already running bridge.`,
	RunE: runDashboard,
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
}

// statusFileProvider feeds the dashboard from the status file.
type statusFileProvider struct{}

func (statusFileProvider) FetchData() tui.DashboardData {
	data := tui.DashboardData{}

	status, err := collectStatus()
	if err != nil || status == nil {
		return data
	}

	data.ServerURL = status.ServerURL
	if status.StartTime != nil {
		data.StartTime = *status.StartTime
	}
	data.State = status.State
	data.Counters = status.Counters
	return data
}

// runDashboard initializes and runs the Bubble Tea TUI program.
func runDashboard(cmd *cobra.Command, args []string) error {
	model := tui.NewModel(statusFileProvider{})

	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("dashboard error: %w", err)
	}

	return nil
}
