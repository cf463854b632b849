package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Default timing values for a Socket.
const (
	// DefaultDialTimeout bounds a single transport dial.
	DefaultDialTimeout = 10 * time.Second
	// DefaultHeartbeatInterval is how often a heartbeat is sent.
	DefaultHeartbeatInterval = 30 * time.Second
	// DefaultHeartbeatTimeout is how long the server may stay silent before
	// the connection is declared dead.
	DefaultHeartbeatTimeout = 60 * time.Second
)

// ErrNotConnected is returned by Send when no transport is established.
var ErrNotConnected = errors.New("not connected")

// Socket maintains one logical connection to the server over the first
// transport in its allowed list that dials successfully. It implements the
// Client interface consumed by the recovery manager.
//
// Connect is fire-and-forget; outcomes surface through registered callbacks.
// The socket never schedules its own retries beyond a single dial pass; the
// recovery layer owns retry timing.
type Socket struct {
	serverURL string
	dialers   map[Name]Dialer
	strategy  *DialStrategy

	heartbeatInterval time.Duration
	heartbeatTimeout  time.Duration

	mu          sync.RWMutex
	allowed     []Name
	dialTimeout time.Duration
	conn        Conn
	active      Name

	connected atomic.Bool
	dialing   atomic.Bool

	heartbeatMu     sync.Mutex
	heartbeatCancel context.CancelFunc

	lastHeartbeatMu sync.RWMutex
	lastHeartbeat   time.Time

	cbMu              sync.Mutex
	cbNextID          int
	onConnect         map[int]func()
	onDisconnect      map[int]func(DisconnectReason)
	onConnectError    map[int]func(error)
	onReconnectFailed map[int]func()
	onMessage         map[int]func(Message)
}

// SocketOption configures a Socket.
type SocketOption func(*Socket)

// WithAllowedTransports sets the initial ordered transport list.
func WithAllowedTransports(names []Name) SocketOption {
	return func(s *Socket) {
		s.allowed = append([]Name(nil), names...)
	}
}

// WithDialer overrides the dialer for a transport. Tests inject fakes here.
func WithDialer(name Name, d Dialer) SocketOption {
	return func(s *Socket) {
		s.dialers[name] = d
	}
}

// WithDialStrategy sets the internal dial budget.
func WithDialStrategy(strategy *DialStrategy) SocketOption {
	return func(s *Socket) {
		s.strategy = strategy
	}
}

// WithHeartbeat overrides the heartbeat interval and timeout.
func WithHeartbeat(interval, timeout time.Duration) SocketOption {
	return func(s *Socket) {
		s.heartbeatInterval = interval
		s.heartbeatTimeout = timeout
	}
}

// NewSocket creates a disconnected socket for the given server URL.
func NewSocket(serverURL string, opts ...SocketOption) *Socket {
	s := &Socket{
		serverURL: serverURL,
		dialers: map[Name]Dialer{
			NameWebSocket: DialWebSocket,
			NamePolling:   DialPolling,
		},
		strategy:          NewDialStrategy(DefaultDialAttempts),
		heartbeatInterval: DefaultHeartbeatInterval,
		heartbeatTimeout:  DefaultHeartbeatTimeout,
		allowed:           []Name{NameWebSocket, NamePolling},
		dialTimeout:       DefaultDialTimeout,
		onConnect:         make(map[int]func()),
		onDisconnect:      make(map[int]func(DisconnectReason)),
		onConnectError:    make(map[int]func(error)),
		onReconnectFailed: make(map[int]func()),
		onMessage:         make(map[int]func(Message)),
	}

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connect starts one dial pass over the allowed transports in a background
// goroutine. A pass already in flight or an established connection makes
// this a no-op.
func (s *Socket) Connect() {
	if s.connected.Load() {
		return
	}
	if !s.dialing.CompareAndSwap(false, true) {
		return
	}
	go s.dial()
}

// dial tries each allowed transport once, in order.
func (s *Socket) dial() {
	defer s.dialing.Store(false)

	s.mu.RLock()
	names := append([]Name(nil), s.allowed...)
	timeout := s.dialTimeout
	s.mu.RUnlock()

	var lastErr error
	for _, name := range names {
		d, ok := s.dialers[name]
		if !ok {
			continue
		}

		conn, err := d(s.serverURL, timeout)
		if err != nil {
			lastErr = err
			continue
		}

		s.establish(conn, name)
		return
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no usable transport in %v", names)
	}

	canRetry := s.strategy.RecordFailure()
	s.fireConnectError(lastErr)
	if !canRetry {
		// Budget exhausted: hand the problem up and start fresh so a later
		// recovery cycle gets a full budget again.
		s.strategy.Reset()
		s.fireReconnectFailed()
	}
}

// establish installs a freshly dialed connection and starts its loops.
func (s *Socket) establish(conn Conn, name Name) {
	s.mu.Lock()
	s.conn = conn
	s.active = name
	s.mu.Unlock()

	s.lastHeartbeatMu.Lock()
	s.lastHeartbeat = time.Now()
	s.lastHeartbeatMu.Unlock()

	s.connected.Store(true)
	s.strategy.Reset()
	s.fireConnect()

	go s.readLoop(conn)
	s.startHeartbeat()
}

// teardown moves the socket to disconnected exactly once and reports the
// reason. Returns false if another goroutine already tore the connection
// down.
func (s *Socket) teardown(reason DisconnectReason) bool {
	if !s.connected.CompareAndSwap(true, false) {
		return false
	}

	s.stopHeartbeat()

	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}

	s.fireDisconnect(reason)
	return true
}

// Disconnect deliberately closes the connection. Safe to call when already
// disconnected.
func (s *Socket) Disconnect() {
	s.teardown(ReasonClientDisconnect)
}

// Connected reports whether a transport is established.
func (s *Socket) Connected() bool {
	return s.connected.Load()
}

// SetAllowedTransports replaces the transport list. A live connection over a
// transport no longer in the list is closed, since switching requires a fresh
// handshake; the close is reported as a client disconnect so it does not
// itself trigger recovery. A connection already on an allowed transport is
// left alone.
func (s *Socket) SetAllowedTransports(names []Name) {
	s.mu.Lock()
	s.allowed = append([]Name(nil), names...)
	active := s.active
	s.mu.Unlock()

	if !s.connected.Load() {
		return
	}
	for _, name := range names {
		if name == active {
			return
		}
	}
	s.teardown(ReasonClientDisconnect)
}

// AllowedTransports returns a copy of the allowed transport list.
func (s *Socket) AllowedTransports() []Name {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Name(nil), s.allowed...)
}

// ActiveTransport returns the live transport name, or NameUnknown when
// disconnected.
func (s *Socket) ActiveTransport() Name {
	if !s.connected.Load() {
		return NameUnknown
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// SetDialTimeout adjusts the per-attempt dial timeout.
func (s *Socket) SetDialTimeout(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d > 0 {
		s.dialTimeout = d
	}
}

// DialTimeout returns the per-attempt dial timeout.
func (s *Socket) DialTimeout() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dialTimeout
}

// Send delivers a message over the live transport.
func (s *Socket) Send(msg Message) error {
	if !s.connected.Load() {
		return ErrNotConnected
	}

	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	return conn.Write(data)
}

// readLoop receives frames until the connection dies.
func (s *Socket) readLoop(conn Conn) {
	for {
		data, err := conn.Read()
		if err != nil {
			reason := ReasonTransportError
			if IsServerClose(err) {
				reason = ReasonServerDisconnect
			}
			s.teardown(reason)
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		if msg.Type == MsgHeartbeat {
			s.lastHeartbeatMu.Lock()
			s.lastHeartbeat = time.Now()
			s.lastHeartbeatMu.Unlock()
			continue
		}

		s.fireMessage(msg)
	}
}

// startHeartbeat launches the heartbeat loop for the current connection.
func (s *Socket) startHeartbeat() {
	s.heartbeatMu.Lock()
	if s.heartbeatCancel != nil {
		s.heartbeatCancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.heartbeatCancel = cancel
	s.heartbeatMu.Unlock()

	go s.heartbeatLoop(ctx)
}

func (s *Socket) stopHeartbeat() {
	s.heartbeatMu.Lock()
	defer s.heartbeatMu.Unlock()

	if s.heartbeatCancel != nil {
		s.heartbeatCancel()
		s.heartbeatCancel = nil
	}
}

// heartbeatLoop sends periodic heartbeats and declares the connection dead
// when the server stays silent past the timeout. The server echoes heartbeat
// messages, which readLoop records as liveness.
func (s *Socket) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(s.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.connected.Load() {
				return
			}

			s.lastHeartbeatMu.RLock()
			last := s.lastHeartbeat
			s.lastHeartbeatMu.RUnlock()

			if !last.IsZero() && time.Since(last) > s.heartbeatTimeout {
				s.teardown(ReasonPingTimeout)
				return
			}

			msg, err := NewMessage(MsgHeartbeat, map[string]any{"timestamp": time.Now()})
			if err == nil {
				err = s.Send(msg)
			}
			if err != nil && !errors.Is(err, ErrNotConnected) {
				s.teardown(ReasonTransportError)
				return
			}
		}
	}
}

// Callback registration. Each returns an unsubscribe func.

func (s *Socket) OnConnect(fn func()) func() {
	s.cbMu.Lock()
	defer s.cbMu.Unlock()
	id := s.cbNextID
	s.cbNextID++
	s.onConnect[id] = fn
	return func() {
		s.cbMu.Lock()
		defer s.cbMu.Unlock()
		delete(s.onConnect, id)
	}
}

func (s *Socket) OnDisconnect(fn func(DisconnectReason)) func() {
	s.cbMu.Lock()
	defer s.cbMu.Unlock()
	id := s.cbNextID
	s.cbNextID++
	s.onDisconnect[id] = fn
	return func() {
		s.cbMu.Lock()
		defer s.cbMu.Unlock()
		delete(s.onDisconnect, id)
	}
}

func (s *Socket) OnConnectError(fn func(error)) func() {
	s.cbMu.Lock()
	defer s.cbMu.Unlock()
	id := s.cbNextID
	s.cbNextID++
	s.onConnectError[id] = fn
	return func() {
		s.cbMu.Lock()
		defer s.cbMu.Unlock()
		delete(s.onConnectError, id)
	}
}

func (s *Socket) OnReconnectFailed(fn func()) func() {
	s.cbMu.Lock()
	defer s.cbMu.Unlock()
	id := s.cbNextID
	s.cbNextID++
	s.onReconnectFailed[id] = fn
	return func() {
		s.cbMu.Lock()
		defer s.cbMu.Unlock()
		delete(s.onReconnectFailed, id)
	}
}

// OnMessage registers a handler for inbound non-heartbeat messages.
func (s *Socket) OnMessage(fn func(Message)) func() {
	s.cbMu.Lock()
	defer s.cbMu.Unlock()
	id := s.cbNextID
	s.cbNextID++
	s.onMessage[id] = fn
	return func() {
		s.cbMu.Lock()
		defer s.cbMu.Unlock()
		delete(s.onMessage, id)
	}
}

func (s *Socket) fireConnect() {
	for _, fn := range s.snapshotConnect() {
		fn()
	}
}

func (s *Socket) fireDisconnect(reason DisconnectReason) {
	s.cbMu.Lock()
	fns := make([]func(DisconnectReason), 0, len(s.onDisconnect))
	for _, fn := range s.onDisconnect {
		fns = append(fns, fn)
	}
	s.cbMu.Unlock()
	for _, fn := range fns {
		fn(reason)
	}
}

func (s *Socket) fireConnectError(err error) {
	s.cbMu.Lock()
	fns := make([]func(error), 0, len(s.onConnectError))
	for _, fn := range s.onConnectError {
		fns = append(fns, fn)
	}
	s.cbMu.Unlock()
	for _, fn := range fns {
		fn(err)
	}
}

func (s *Socket) fireReconnectFailed() {
	s.cbMu.Lock()
	fns := make([]func(), 0, len(s.onReconnectFailed))
	for _, fn := range s.onReconnectFailed {
		fns = append(fns, fn)
	}
	s.cbMu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (s *Socket) fireMessage(msg Message) {
	s.cbMu.Lock()
	fns := make([]func(Message), 0, len(s.onMessage))
	for _, fn := range s.onMessage {
		fns = append(fns, fn)
	}
	s.cbMu.Unlock()
	for _, fn := range fns {
		fn(msg)
	}
}

func (s *Socket) snapshotConnect() []func() {
	s.cbMu.Lock()
	defer s.cbMu.Unlock()
	fns := make([]func(), 0, len(s.onConnect))
	for _, fn := range s.onConnect {
		fns = append(fns, fn)
	}
	return fns
}
