// styles.go defines lipgloss styles for the dashboard panels and status
// indicators.
package tui

import "github.com/charmbracelet/lipgloss"

// Panel border and title styles.
var (
	// panelStyle defines the base panel with a rounded border.
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#52525B")).
			Padding(0, 1)

	// activePanelStyle highlights the currently focused panel.
	activePanelStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("#8B5CF6")).
				Padding(0, 1)

	// titleStyle formats panel titles.
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#4C1D95")).
			Padding(0, 1)
)

// Status color styles for connection states.
var (
	// statusConnected renders ocean teal text for the Connected state.
	statusConnected = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#14B8A6")).
			Bold(true)

	// statusDisconnected renders deep coral text for the Disconnected state.
	statusDisconnected = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#E11D48")).
				Bold(true)

	// statusRecovering renders primary purple text while a recovery cycle
	// is running.
	statusRecovering = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#8B5CF6")).
				Bold(true)

	// statusDegraded renders dark teal text for polling mode and suspension.
	statusDegraded = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#0D9488")).
			Bold(true)

	// statusOffline renders muted gray text while the network is gone.
	statusOffline = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#71717A")).
			Bold(true)
)

// Table formatting styles.
var (
	// headerStyle formats table column headers.
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			BorderBottom(true).
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("#6D28D9"))

	// selectedRowStyle highlights the currently selected table row.
	selectedRowStyle = lipgloss.NewStyle().
				Background(lipgloss.Color("#4C1D95")).
				Foreground(lipgloss.Color("#FFFFFF"))

	// normalRowStyle formats a normal (unselected) table row.
	normalRowStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A1A1AA"))
)

// Label and value styles for key-value pairs.
var (
	// labelStyle formats labels in key-value displays.
	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A1A1AA")).
			Width(16)

	// valueStyle formats values in key-value displays.
	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF"))
)

// Error category indicator styles.
var (
	// categoryHardStyle renders deep coral text for network and server errors.
	categoryHardStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#E11D48"))

	// categorySoftStyle renders primary purple text for timeout and
	// rate-limit errors.
	categorySoftStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#8B5CF6"))
)

// Footer and help styles.
var (
	// helpStyle renders keyboard shortcut hints in the footer.
	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#71717A"))

	// helpKeyStyle renders keyboard shortcut keys.
	helpKeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#14B8A6")).
			Bold(true)
)
