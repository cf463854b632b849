package tui

import (
	"fmt"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vedfolnir/wsbridge/internal/metrics"
	"github.com/vedfolnir/wsbridge/internal/recovery"
	"github.com/vedfolnir/wsbridge/internal/transport"
)

// staticDataProvider returns fixed data for deterministic tests.
type staticDataProvider struct {
	data DashboardData
}

func (s *staticDataProvider) FetchData() DashboardData {
	return s.data
}

func newTestProvider() *staticDataProvider {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return &staticDataProvider{
		data: DashboardData{
			ServerURL: "wss://test.example.com/ws",
			StartTime: base,
			State: recovery.Snapshot{
				Connected:        true,
				CurrentTransport: transport.NameWebSocket,
				RetryCount:       2,
				ErrorHistory: []recovery.ErrorRecord{
					{Time: base.Add(5 * time.Second), Category: recovery.CategoryNetwork, Message: "connection refused"},
					{Time: base.Add(10 * time.Second), Category: recovery.CategoryTimeout, Message: "dial timed out"},
					{Time: base.Add(15 * time.Second), Category: recovery.CategoryServer, Message: "internal server error"},
				},
			},
			Counters: metrics.Snapshot{
				ConnectionAttempts:  7,
				ConnectionSuccesses: 4,
				ConnectionFailures:  3,
				RecoveryCycles:      2,
				Suspensions:         1,
			},
		},
	}
}

func TestNewModel_InitialState(t *testing.T) {
	provider := newTestProvider()
	m := NewModel(provider)

	if m.activePanel != PanelConnection {
		t.Errorf("expected initial panel to be PanelConnection, got %d", m.activePanel)
	}
	if m.selectedError != 0 {
		t.Errorf("expected initial selectedError to be 0, got %d", m.selectedError)
	}
	if m.quitting {
		t.Error("expected quitting to be false initially")
	}
	if !m.data.State.Connected {
		t.Error("expected initial data to report Connected")
	}
	if len(m.data.State.ErrorHistory) != 3 {
		t.Errorf("expected 3 error records, got %d", len(m.data.State.ErrorHistory))
	}
}

func TestKeyBinding_QuitQ(t *testing.T) {
	provider := newTestProvider()
	m := NewModel(provider)

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	model := updated.(Model)

	if !model.quitting {
		t.Error("expected quitting to be true after pressing 'q'")
	}
	if cmd == nil {
		t.Error("expected a tea.Quit command, got nil")
	}
}

func TestKeyBinding_QuitCtrlC(t *testing.T) {
	provider := newTestProvider()
	m := NewModel(provider)

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	model := updated.(Model)

	if !model.quitting {
		t.Error("expected quitting to be true after pressing ctrl+c")
	}
	if cmd == nil {
		t.Error("expected a tea.Quit command, got nil")
	}
}

func TestKeyBinding_Refresh(t *testing.T) {
	provider := newTestProvider()
	m := NewModel(provider)

	// Modify provider data after model creation.
	provider.data.Counters.ConnectionAttempts = 42

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	model := updated.(Model)

	if model.data.Counters.ConnectionAttempts != 42 {
		t.Errorf("expected ConnectionAttempts=42 after refresh, got %d", model.data.Counters.ConnectionAttempts)
	}
}

func TestKeyBinding_TabSwitchPanel(t *testing.T) {
	provider := newTestProvider()
	m := NewModel(provider)

	if m.activePanel != PanelConnection {
		t.Errorf("expected PanelConnection, got %d", m.activePanel)
	}

	// Tab forward through all panels.
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	model := updated.(Model)
	if model.activePanel != PanelErrors {
		t.Errorf("expected PanelErrors after first tab, got %d", model.activePanel)
	}

	updated, _ = model.Update(tea.KeyMsg{Type: tea.KeyTab})
	model = updated.(Model)
	if model.activePanel != PanelCounters {
		t.Errorf("expected PanelCounters after second tab, got %d", model.activePanel)
	}

	updated, _ = model.Update(tea.KeyMsg{Type: tea.KeyTab})
	model = updated.(Model)
	if model.activePanel != PanelConnection {
		t.Errorf("expected PanelConnection after third tab (wrap around), got %d", model.activePanel)
	}
}

func TestKeyBinding_ShiftTabSwitchPanel(t *testing.T) {
	provider := newTestProvider()
	m := NewModel(provider)

	// Shift+Tab should go backwards.
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	model := updated.(Model)
	if model.activePanel != PanelCounters {
		t.Errorf("expected PanelCounters after shift+tab from Connection, got %d", model.activePanel)
	}
}

func TestKeyBinding_ArrowNavigation(t *testing.T) {
	provider := newTestProvider()
	m := NewModel(provider)

	// Switch to the error panel first.
	m.activePanel = PanelErrors

	if m.selectedError != 0 {
		t.Errorf("expected selectedError=0, got %d", m.selectedError)
	}

	// Move down.
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyDown})
	model := updated.(Model)
	if model.selectedError != 1 {
		t.Errorf("expected selectedError=1 after down, got %d", model.selectedError)
	}

	// Move down again.
	updated, _ = model.Update(tea.KeyMsg{Type: tea.KeyDown})
	model = updated.(Model)
	if model.selectedError != 2 {
		t.Errorf("expected selectedError=2 after second down, got %d", model.selectedError)
	}

	// Move down at bottom should stay at 2 (3 records, index 0-2).
	updated, _ = model.Update(tea.KeyMsg{Type: tea.KeyDown})
	model = updated.(Model)
	if model.selectedError != 2 {
		t.Errorf("expected selectedError=2 at bottom boundary, got %d", model.selectedError)
	}

	// Move up.
	updated, _ = model.Update(tea.KeyMsg{Type: tea.KeyUp})
	model = updated.(Model)
	if model.selectedError != 1 {
		t.Errorf("expected selectedError=1 after up, got %d", model.selectedError)
	}

	// Move up to top.
	updated, _ = model.Update(tea.KeyMsg{Type: tea.KeyUp})
	model = updated.(Model)
	if model.selectedError != 0 {
		t.Errorf("expected selectedError=0 after up to top, got %d", model.selectedError)
	}

	// Move up at top should stay at 0.
	updated, _ = model.Update(tea.KeyMsg{Type: tea.KeyUp})
	model = updated.(Model)
	if model.selectedError != 0 {
		t.Errorf("expected selectedError=0 at top boundary, got %d", model.selectedError)
	}
}

func TestKeyBinding_VimNavigation(t *testing.T) {
	provider := newTestProvider()
	m := NewModel(provider)
	m.activePanel = PanelErrors

	// 'j' moves down.
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("j")})
	model := updated.(Model)
	if model.selectedError != 1 {
		t.Errorf("expected selectedError=1 after 'j', got %d", model.selectedError)
	}

	// 'k' moves up.
	updated, _ = model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("k")})
	model = updated.(Model)
	if model.selectedError != 0 {
		t.Errorf("expected selectedError=0 after 'k', got %d", model.selectedError)
	}
}

func TestKeyBinding_ArrowsIgnoredOutsideErrorPanel(t *testing.T) {
	provider := newTestProvider()
	m := NewModel(provider)

	// On PanelConnection, arrow keys should not change selectedError.
	m.activePanel = PanelConnection

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyDown})
	model := updated.(Model)
	if model.selectedError != 0 {
		t.Errorf("expected selectedError=0 on non-error panel, got %d", model.selectedError)
	}
}

func TestErrorScroll_FollowsSelection(t *testing.T) {
	provider := newTestProvider()

	var history []recovery.ErrorRecord
	for i := 0; i < 8; i++ {
		history = append(history, recovery.ErrorRecord{
			Time:     time.Now(),
			Category: recovery.CategoryNetwork,
			Message:  fmt.Sprintf("err %d", i),
		})
	}
	provider.data.State.ErrorHistory = history

	m := NewModel(provider)
	m.activePanel = PanelErrors

	// Walk to the bottom; the window should follow.
	model := m
	for i := 0; i < 7; i++ {
		updated, _ := model.Update(tea.KeyMsg{Type: tea.KeyDown})
		model = updated.(Model)
	}
	if model.selectedError != 7 {
		t.Fatalf("expected selectedError=7, got %d", model.selectedError)
	}
	if model.errorScroll != 3 {
		t.Errorf("expected errorScroll=3 (window of 5 ending at 7), got %d", model.errorScroll)
	}
}

func TestTickRefresh_ClampsSelection(t *testing.T) {
	provider := newTestProvider()
	m := NewModel(provider)
	m.activePanel = PanelErrors
	m.selectedError = 2

	// The next refresh shrinks the history.
	provider.data.State.ErrorHistory = provider.data.State.ErrorHistory[:1]

	updated, cmd := m.Update(tickMsg(time.Now()))
	model := updated.(Model)

	if model.selectedError != 0 {
		t.Errorf("expected selectedError clamped to 0, got %d", model.selectedError)
	}
	if cmd == nil {
		t.Error("expected tickCmd to be returned after tick, got nil")
	}
}

func TestWindowSizeMsg(t *testing.T) {
	provider := newTestProvider()
	m := NewModel(provider)

	updated, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	model := updated.(Model)

	if model.width != 120 {
		t.Errorf("expected width=120, got %d", model.width)
	}
	if model.height != 40 {
		t.Errorf("expected height=40, got %d", model.height)
	}
}

func TestFormatState(t *testing.T) {
	tests := []struct {
		name     string
		state    recovery.Snapshot
		expected string
	}{
		{"offline", recovery.Snapshot{Offline: true, Recovering: true}, "Offline"},
		{"suspended", recovery.Snapshot{Suspended: true, PollingMode: true}, "Suspended"},
		{"polling", recovery.Snapshot{PollingMode: true, Recovering: true}, "Polling Mode"},
		{"recovering", recovery.Snapshot{Recovering: true}, "Recovering..."},
		{"connected", recovery.Snapshot{Connected: true}, "Connected"},
		{"disconnected", recovery.Snapshot{}, "Disconnected"},
	}

	for _, tc := range tests {
		m := Model{data: DashboardData{State: tc.state}}
		if got := m.formatState(); !strings.Contains(got, tc.expected) {
			t.Errorf("%s: formatState() = %q, want it to contain %q", tc.name, got, tc.expected)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d        time.Duration
		expected string
	}{
		{500 * time.Millisecond, "500ms"},
		{5 * time.Second, "5s"},
		{90 * time.Second, "1m 30s"},
		{3661 * time.Second, "1h 1m 1s"},
		{90061 * time.Second, "1d 1h 1m"},
	}

	for _, tc := range tests {
		result := formatDuration(tc.d)
		if result != tc.expected {
			t.Errorf("formatDuration(%v) = %q, want %q", tc.d, result, tc.expected)
		}
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		input    string
		maxLen   int
		expected string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is a long string", 10, "this is..."},
		{"ab", 2, "ab"},
		{"abc", 2, "ab"},
	}

	for _, tc := range tests {
		result := truncate(tc.input, tc.maxLen)
		if result != tc.expected {
			t.Errorf("truncate(%q, %d) = %q, want %q", tc.input, tc.maxLen, result, tc.expected)
		}
	}
}

func TestView_ContainsPanelTitles(t *testing.T) {
	provider := newTestProvider()
	m := NewModel(provider)
	m.width = 80
	m.height = 24

	view := m.View()

	if !strings.Contains(view, "Connection") {
		t.Error("expected view to contain 'Connection' panel title")
	}
	if !strings.Contains(view, "Errors") {
		t.Error("expected view to contain 'Errors' panel title")
	}
	if !strings.Contains(view, "Counters") {
		t.Error("expected view to contain 'Counters' panel title")
	}
}

func TestView_ContainsServerURL(t *testing.T) {
	provider := newTestProvider()
	m := NewModel(provider)
	m.width = 80
	m.height = 24

	view := m.View()

	if !strings.Contains(view, "wss://test.example.com/ws") {
		t.Error("expected view to contain server URL")
	}
}

func TestView_ContainsErrorRows(t *testing.T) {
	provider := newTestProvider()
	m := NewModel(provider)
	m.width = 100
	m.height = 30

	view := m.View()

	if !strings.Contains(view, "connection refused") {
		t.Error("expected view to contain the first error message")
	}
	if !strings.Contains(view, "timeout") {
		t.Error("expected view to contain the timeout category")
	}
}

func TestView_EmptyErrorHistory(t *testing.T) {
	provider := newTestProvider()
	provider.data.State.ErrorHistory = nil
	m := NewModel(provider)
	m.width = 80
	m.height = 24

	view := m.View()

	if !strings.Contains(view, "No errors recorded") {
		t.Error("expected view to contain the empty-history placeholder")
	}
}

func TestView_QuittingMessage(t *testing.T) {
	provider := newTestProvider()
	m := NewModel(provider)
	m.quitting = true

	view := m.View()

	if view != "Vedfolnir Bridge Dashboard closed.\n" {
		t.Errorf("expected quitting view to be 'Vedfolnir Bridge Dashboard closed.\\n', got %q", view)
	}
}

func TestView_ContainsKeyboardHelp(t *testing.T) {
	provider := newTestProvider()
	m := NewModel(provider)
	m.width = 120
	m.height = 30

	view := m.View()

	if !strings.Contains(view, "quit") {
		t.Error("expected view to contain 'quit' help text")
	}
	if !strings.Contains(view, "refresh") {
		t.Error("expected view to contain 'refresh' help text")
	}
}

func TestInit_ReturnsTickCmd(t *testing.T) {
	provider := newTestProvider()
	m := NewModel(provider)

	cmd := m.Init()
	if cmd == nil {
		t.Error("expected Init() to return a tick command, got nil")
	}
}
