package recovery

import "github.com/vedfolnir/wsbridge/internal/transport"

// Transport control for the Manager. These helpers mutate recovery state
// under the Manager's lock but return the client-facing side effect as a
// deferred func: the client may fire callbacks synchronously from
// SetAllowedTransports (a transport change can force a re-handshake), so the
// call must happen with the Manager's lock released.

// switchTransportsLocked records the original transport set on first switch,
// marks the fallback active, and returns the func that applies the new set
// to the client.
func (m *Manager) switchTransportsLocked(names []transport.Name) func() {
	if m.st.originalTransports == nil {
		m.st.originalTransports = m.client.AllowedTransports()
	}
	m.st.transportFallbackActive = true

	set := append([]transport.Name(nil), names...)
	return func() {
		m.client.SetAllowedTransports(set)
	}
}

// restoreTransportsLocked reinstates the captured transport set. Returns nil
// when nothing was captured.
func (m *Manager) restoreTransportsLocked() func() {
	if m.st.originalTransports == nil {
		return nil
	}

	set := m.st.originalTransports
	m.st.originalTransports = nil
	m.st.transportFallbackActive = false

	return func() {
		m.client.SetAllowedTransports(set)
	}
}

// currentTransportLocked resolves the transport name for diagnostics: the
// live client value when connected, else the last recorded one, else
// unknown.
func (m *Manager) currentTransportLocked() transport.Name {
	if m.client.Connected() {
		if name := m.client.ActiveTransport(); name != transport.NameUnknown {
			return name
		}
	}
	if m.st.currentTransport != "" {
		return m.st.currentTransport
	}
	return transport.NameUnknown
}
