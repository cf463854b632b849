// Package tui provides the Bubble Tea dashboard for the bridge: a
// connection panel, a scrollable error history panel, and a counters panel.
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vedfolnir/wsbridge/internal/metrics"
	"github.com/vedfolnir/wsbridge/internal/recovery"
)

// Panel identifies which dashboard panel is focused.
type Panel int

const (
	// PanelConnection is the connection status panel (top).
	PanelConnection Panel = iota
	// PanelErrors is the error history panel (middle).
	PanelErrors
	// PanelCounters is the counters panel (bottom).
	PanelCounters

	panelCount = 3
)

// DashboardData holds everything the dashboard renders. It is populated by
// a DataProvider so the TUI stays decoupled from the live manager.
type DashboardData struct {
	ServerURL string
	StartTime time.Time

	State    recovery.Snapshot
	Counters metrics.Snapshot
}

// DataProvider fetches a fresh dashboard snapshot on every refresh tick.
type DataProvider interface {
	FetchData() DashboardData
}

// tickMsg signals a periodic data refresh.
type tickMsg time.Time

// Model is the Bubble Tea model for the dashboard.
type Model struct {
	data     DashboardData
	provider DataProvider

	activePanel   Panel
	selectedError int
	errorScroll   int

	width    int
	height   int
	quitting bool
}

// NewModel creates a dashboard Model backed by the given provider.
func NewModel(provider DataProvider) Model {
	return Model{
		data:        provider.FetchData(),
		provider:    provider,
		activePanel: PanelConnection,
	}
}

// Init starts the auto-refresh ticker.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

func tickCmd() tea.Cmd {
	return tea.Tick(2*time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update processes messages and updates state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		m.data = m.provider.FetchData()
		m.clampSelection()
		return m, tickCmd()
	}

	return m, nil
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "r":
		m.data = m.provider.FetchData()
		m.clampSelection()
		return m, nil

	case "tab":
		m.activePanel = (m.activePanel + 1) % panelCount
		return m, nil

	case "shift+tab":
		m.activePanel = (m.activePanel - 1 + panelCount) % panelCount
		return m, nil

	case "up", "k":
		if m.activePanel == PanelErrors && len(m.data.State.ErrorHistory) > 0 {
			if m.selectedError > 0 {
				m.selectedError--
			}
			if m.selectedError < m.errorScroll {
				m.errorScroll = m.selectedError
			}
		}
		return m, nil

	case "down", "j":
		if m.activePanel == PanelErrors && len(m.data.State.ErrorHistory) > 0 {
			if m.selectedError < len(m.data.State.ErrorHistory)-1 {
				m.selectedError++
			}
			maxVisible := 5
			if m.selectedError >= m.errorScroll+maxVisible {
				m.errorScroll = m.selectedError - maxVisible + 1
			}
		}
		return m, nil
	}

	return m, nil
}

// clampSelection keeps the error cursor valid after a refresh trimmed the
// history.
func (m *Model) clampSelection() {
	n := len(m.data.State.ErrorHistory)
	if n == 0 {
		m.selectedError = 0
		m.errorScroll = 0
		return
	}
	if m.selectedError >= n {
		m.selectedError = n - 1
	}
	if m.errorScroll > m.selectedError {
		m.errorScroll = m.selectedError
	}
}

// View renders the dashboard.
func (m Model) View() string {
	if m.quitting {
		return "Vedfolnir Bridge Dashboard closed.\n"
	}

	w := m.width
	if w == 0 {
		w = 80
	}
	contentWidth := w - 2
	if contentWidth < 40 {
		contentWidth = 40
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		m.renderHeader(contentWidth),
		m.renderConnectionPanel(contentWidth),
		m.renderErrorPanel(contentWidth),
		m.renderCountersPanel(contentWidth),
		m.renderFooter(contentWidth),
	)
}

func (m Model) renderHeader(width int) string {
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(lipgloss.Color("#4C1D95")).
		Padding(0, 1).
		Width(width).
		Render("Vedfolnir Bridge Dashboard")
}

func (m Model) renderFooter(width int) string {
	keys := []struct {
		key  string
		desc string
	}{
		{"q", "quit"},
		{"r", "refresh"},
		{"tab", "switch panel"},
		{"up/down", "scroll errors"},
	}

	var parts []string
	for _, k := range keys {
		parts = append(parts,
			helpKeyStyle.Render(k.key)+" "+helpStyle.Render(k.desc),
		)
	}

	help := strings.Join(parts, helpStyle.Render("  |  "))
	return lipgloss.NewStyle().Width(width).Align(lipgloss.Center).Render(help)
}

func (m Model) renderConnectionPanel(width int) string {
	st := m.data.State

	var uptimeStr string
	if !m.data.StartTime.IsZero() {
		uptimeStr = formatDuration(time.Since(m.data.StartTime))
	} else {
		uptimeStr = "--"
	}

	transport := string(st.CurrentTransport)
	if transport == "" {
		transport = "--"
	}

	retries := fmt.Sprintf("%d", st.RetryCount)
	if st.Recovering {
		retries += " (recovering)"
	}

	lines := []string{
		labelStyle.Render("Status:") + " " + m.formatState(),
		labelStyle.Render("Server:") + " " + valueStyle.Render(m.data.ServerURL),
		labelStyle.Render("Transport:") + " " + valueStyle.Render(transport),
		labelStyle.Render("Retries:") + " " + valueStyle.Render(retries),
		labelStyle.Render("Uptime:") + " " + valueStyle.Render(uptimeStr),
	}
	content := strings.Join(lines, "\n")

	style := m.getPanelStyle(PanelConnection, width)
	title := titleStyle.Render(" Connection ")
	return title + "\n" + style.Render(content)
}

func (m Model) renderErrorPanel(width int) string {
	colTime := 10
	colCategory := 12
	colMessage := 44

	header := headerStyle.Render(
		fmt.Sprintf("%-*s %-*s %-*s",
			colTime, "Time",
			colCategory, "Category",
			colMessage, "Message",
		),
	)

	rows := []string{header}
	errs := m.data.State.ErrorHistory

	if len(errs) == 0 {
		rows = append(rows, normalRowStyle.Render("  No errors recorded"))
	} else {
		maxVisible := 5
		end := m.errorScroll + maxVisible
		if end > len(errs) {
			end = len(errs)
		}

		for i := m.errorScroll; i < end; i++ {
			rec := errs[i]
			row := fmt.Sprintf("%-*s %-*s %-*s",
				colTime, rec.Time.Format("15:04:05"),
				colCategory, m.formatCategory(rec.Category),
				colMessage, truncate(rec.Message, colMessage),
			)

			if i == m.selectedError && m.activePanel == PanelErrors {
				rows = append(rows, selectedRowStyle.Render(row))
			} else {
				rows = append(rows, normalRowStyle.Render(row))
			}
		}

		if len(errs) > maxVisible {
			indicator := fmt.Sprintf("  [%d/%d errors]", m.selectedError+1, len(errs))
			rows = append(rows, helpStyle.Render(indicator))
		}
	}

	content := strings.Join(rows, "\n")
	style := m.getPanelStyle(PanelErrors, width)
	title := titleStyle.Render(" Errors ")
	return title + "\n" + style.Render(content)
}

func (m Model) renderCountersPanel(width int) string {
	c := m.data.Counters
	lines := []string{
		labelStyle.Render("Attempts:") + " " + valueStyle.Render(fmt.Sprintf("%d", c.ConnectionAttempts)),
		labelStyle.Render("Successes:") + " " + valueStyle.Render(fmt.Sprintf("%d", c.ConnectionSuccesses)),
		labelStyle.Render("Failures:") + " " + valueStyle.Render(fmt.Sprintf("%d", c.ConnectionFailures)),
		labelStyle.Render("Recoveries:") + " " + valueStyle.Render(fmt.Sprintf("%d", c.RecoveryCycles)),
		labelStyle.Render("Suspensions:") + " " + valueStyle.Render(fmt.Sprintf("%d", c.Suspensions)),
	}
	content := strings.Join(lines, "\n")

	style := m.getPanelStyle(PanelCounters, width)
	title := titleStyle.Render(" Counters ")
	return title + "\n" + style.Render(content)
}

func (m Model) getPanelStyle(panel Panel, width int) lipgloss.Style {
	if m.activePanel == panel {
		return activePanelStyle.Width(width - 2)
	}
	return panelStyle.Width(width - 2)
}

// formatState returns the color-coded connection state label.
func (m Model) formatState() string {
	st := m.data.State
	switch {
	case st.Offline:
		return statusOffline.Render("Offline")
	case st.Suspended:
		return statusDegraded.Render("Suspended")
	case st.PollingMode:
		return statusDegraded.Render("Polling Mode")
	case st.Recovering:
		return statusRecovering.Render("Recovering...")
	case st.Connected:
		return statusConnected.Render("Connected")
	default:
		return statusDisconnected.Render("Disconnected")
	}
}

func (m Model) formatCategory(cat recovery.Category) string {
	switch cat {
	case recovery.CategoryNetwork, recovery.CategoryServer:
		return categoryHardStyle.Render(string(cat))
	case recovery.CategoryTimeout, recovery.CategoryRateLimit:
		return categorySoftStyle.Render(string(cat))
	default:
		return string(cat)
	}
}

// formatDuration formats a duration into a human-readable string.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}

	totalSeconds := int(d.Seconds())
	days := totalSeconds / 86400
	hours := (totalSeconds % 86400) / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60

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

// truncate shortens a string to maxLen, adding an ellipsis if needed.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
