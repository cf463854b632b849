// Package transport implements the connection layer of the Vedfolnir bridge:
// a client that maintains a single logical connection to the server over one
// of several interchangeable transports (WebSocket, HTTP long-polling).
//
// The recovery subsystem consumes this package only through the Client
// interface so it never depends on a concrete transport implementation.
package transport

import (
	"fmt"
	"time"
)

// Name identifies a transport mechanism.
type Name string

const (
	// NameWebSocket is the persistent WebSocket transport.
	NameWebSocket Name = "websocket"
	// NamePolling is the HTTP long-polling transport.
	NamePolling Name = "polling"
	// NameUnknown is reported when no transport is active or recorded.
	NameUnknown Name = "unknown"
)

// ParseNames converts configured transport names, preserving order.
func ParseNames(raw []string) ([]Name, error) {
	out := make([]Name, 0, len(raw))
	for _, s := range raw {
		switch Name(s) {
		case NameWebSocket, NamePolling:
			out = append(out, Name(s))
		default:
			return nil, fmt.Errorf("unknown transport %q", s)
		}
	}
	return out, nil
}

// DisconnectReason describes why a connection ended.
type DisconnectReason string

const (
	// ReasonClientDisconnect is a deliberate local disconnect.
	ReasonClientDisconnect DisconnectReason = "client disconnect"
	// ReasonServerDisconnect is a deliberate close initiated by the server.
	ReasonServerDisconnect DisconnectReason = "server disconnect"
	// ReasonTransportClose is an unexpected close of the underlying transport.
	ReasonTransportClose DisconnectReason = "transport close"
	// ReasonTransportError is a read or write failure on the transport.
	ReasonTransportError DisconnectReason = "transport error"
	// ReasonPingTimeout means the server stopped answering heartbeats.
	ReasonPingTimeout DisconnectReason = "ping timeout"
)

// Intentional reports whether the disconnect was deliberate on either side.
// Deliberate disconnects must not start recovery.
func (r DisconnectReason) Intentional() bool {
	return r == ReasonClientDisconnect || r == ReasonServerDisconnect
}

// Client is the narrow capability surface the recovery manager drives.
// Connect is fire-and-forget: the outcome arrives later through a registered
// callback, never as a return value.
type Client interface {
	// Connect starts a connection attempt using the allowed transports.
	Connect()
	// Disconnect deliberately closes the connection.
	Disconnect()
	// Connected reports whether a transport is currently established.
	Connected() bool

	// SetAllowedTransports replaces the ordered list of transports the
	// client may dial. Changing the list while connected forces a fresh
	// handshake.
	SetAllowedTransports(names []Name)
	// AllowedTransports returns a copy of the current allowed list.
	AllowedTransports() []Name
	// ActiveTransport returns the transport carrying the live connection,
	// or NameUnknown when disconnected.
	ActiveTransport() Name

	// SetDialTimeout adjusts the per-attempt dial timeout.
	SetDialTimeout(d time.Duration)
	// DialTimeout returns the current per-attempt dial timeout.
	DialTimeout() time.Duration

	// Callback registration. Each returns an unsubscribe func; handlers are
	// invoked from the client's internal goroutines.
	OnConnect(fn func()) (remove func())
	OnDisconnect(fn func(reason DisconnectReason)) (remove func())
	OnConnectError(fn func(err error)) (remove func())
	OnReconnectFailed(fn func()) (remove func())
}
