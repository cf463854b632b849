package recovery

import (
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vedfolnir/wsbridge/internal/logger"
	"github.com/vedfolnir/wsbridge/internal/transport"
)

// Timing constants for the orchestrator.
const (
	// timeoutWidenCap bounds the temporarily widened dial timeout.
	timeoutWidenCap = 60 * time.Second
	// timeoutRestoreAfter is how long a widened dial timeout lasts.
	timeoutRestoreAfter = 30 * time.Second
	// pollingModeConnectDelay is the pause before the connect attempt that
	// follows entering polling mode.
	pollingModeConnectDelay = 2 * time.Second
)

// Manager is the recovery orchestrator. It owns the recovery state machine:
// Idle (connected, nothing pending) → Recovering (retry scheduled) →
// PollingMode (degraded long-lived fallback) → back to Idle on success.
//
// The manager reacts to the transport client's lifecycle callbacks and to
// its own timers. All state mutation happens under one mutex; client calls
// that can fire callbacks and event emission always happen with the lock
// released, so handlers and the client may call back in without deadlock.
//
// The manager never throws: every outcome, including terminal failure, is
// an emitted event.
type Manager struct {
	client  transport.Client
	clock   Clock
	backoff *Backoff
	emitter *Emitter

	mu        sync.Mutex
	cfg       Config
	st        state
	destroyed bool
	pending   []Event

	// Named timer slots; one pending callback per slot, ever.
	retrySlot   timerSlot
	attemptSlot timerSlot
	pollingSlot timerSlot
	restoreSlot timerSlot

	// savedDialTimeout is non-zero while the dial timeout is widened.
	savedDialTimeout time.Duration

	suspension *suspensionDetector

	removeCallbacks []func()
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock injects a clock; tests use a fake one.
func WithClock(clock Clock) Option {
	return func(m *Manager) {
		m.clock = clock
	}
}

// WithRand injects the random source used for backoff jitter.
func WithRand(rng *rand.Rand) Option {
	return func(m *Manager) {
		m.backoff = NewBackoff(rng)
	}
}

// New creates a Manager driving the given client and attaches to its
// lifecycle callbacks. The client and config are explicit dependencies;
// there is no ambient discovery.
func New(client transport.Client, cfg Config, opts ...Option) *Manager {
	m := &Manager{
		client:  client,
		clock:   realClock{},
		emitter: NewEmitter(),
		cfg:     cfg.withDefaults(),
	}

	for _, opt := range opts {
		opt(m)
	}
	if m.backoff == nil {
		m.backoff = NewBackoff(nil)
	}

	m.st.connected = client.Connected()
	m.st.lastActivity = m.clock.Now()

	m.suspension = newSuspensionDetector(
		m.clock,
		m.cfg.SuspensionCheckInterval,
		m.cfg.SuspensionThreshold,
		client.Connected,
		m.handleSuspension,
	)
	if m.cfg.SuspensionDetection {
		m.suspension.start()
	}

	m.removeCallbacks = []func(){
		client.OnConnect(m.handleConnect),
		client.OnDisconnect(m.handleDisconnect),
		client.OnConnectError(m.handleConnectError),
		client.OnReconnectFailed(m.handleReconnectFailed),
	}

	return m
}

// Subscribe registers a lifecycle event handler.
func (m *Manager) Subscribe(fn func(Event)) func() {
	return m.emitter.Subscribe(fn)
}

// Stats returns the current state and configuration for diagnostics.
type Stats struct {
	State  Snapshot `json:"state"`
	Config Config   `json:"config"`
}

// GetStats returns a snapshot of the recovery state plus the live config.
func (m *Manager) GetStats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.currentTransport = m.currentTransportLocked()
	return Stats{State: m.st.snapshot(), Config: m.cfg.clone()}
}

// handleConnect reacts to a successful connection from any state: counters
// reset, timers clear, polling mode exits with transports restored.
func (m *Manager) handleConnect() {
	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return
	}

	m.retrySlot.cancel()
	m.attemptSlot.cancel()
	m.pollingSlot.cancel()

	wasPolling := m.st.pollingMode
	m.st.connected = true
	m.st.recovering = false
	m.st.suspended = false
	m.st.offline = false
	m.st.retryCount = 0
	m.st.consecutiveErrors = 0
	m.st.lastSuccess = m.clock.Now()
	m.st.lastActivity = m.clock.Now()
	m.st.recoveryStart = time.Time{}
	m.st.currentTransport = m.client.ActiveTransport()

	var apply []func()
	if fn := m.unwidenTimeoutLocked(); fn != nil {
		apply = append(apply, fn)
	}
	if wasPolling {
		m.st.pollingMode = false
		if fn := m.restoreTransportsLocked(); fn != nil {
			apply = append(apply, fn)
		}
		m.queueLocked(EventPollingModeExited, map[string]any{"reason": "connected"})
	} else if m.st.transportFallbackActive {
		// A plain transport fallback also ends on success.
		if fn := m.restoreTransportsLocked(); fn != nil {
			apply = append(apply, fn)
		}
	}
	m.queueLocked(EventRecoverySuccess, map[string]any{
		"transport": string(m.st.currentTransport),
	})
	m.mu.Unlock()

	for _, fn := range apply {
		fn()
	}
	m.suspension.activity()
	m.flush()

	logger.Info().
		Str("transport", string(m.client.ActiveTransport())).
		Msg("connection established, recovery state reset")
}

// handleDisconnect reacts to the client losing its connection. Deliberate
// disconnects on either side never start recovery.
func (m *Manager) handleDisconnect(reason transport.DisconnectReason) {
	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return
	}

	m.st.connected = false

	if reason.Intentional() {
		m.mu.Unlock()
		logger.Debug().Str("reason", string(reason)).Msg("deliberate disconnect, no recovery")
		return
	}

	logger.Warn().Str("reason", string(reason)).Msg("connection lost")

	category := ClassifyMessage(string(reason))
	m.maybeStartRecoveryLocked(category, string(reason))
	m.mu.Unlock()
	m.flush()
}

// handleConnectError records the failure and schedules a retry unless one is
// already pending or recovery is paused.
func (m *Manager) handleConnectError(err error) {
	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return
	}

	category := Classify(err)
	m.st.recordError(m.clock.Now(), category, err.Error())

	// This error answers any in-flight connect attempt.
	m.attemptSlot.cancel()

	m.maybeStartRecoveryLocked(category, err.Error())
	m.mu.Unlock()
	m.flush()
}

// handleReconnectFailed reacts to the client exhausting its internal dial
// budget: try the transport fallback once, otherwise report failure.
func (m *Manager) handleReconnectFailed() {
	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return
	}

	var apply []func()
	if m.cfg.TransportFallback && !m.st.transportFallbackActive {
		logger.Warn().Msg("client dial budget exhausted, switching to fallback transports")
		if !m.st.recovering {
			m.st.recovering = true
			m.st.recoveryStart = m.clock.Now()
			m.queueLocked(EventRecoveryStart, map[string]any{"reason": "reconnect_failed"})
		}
		apply = append(apply, m.switchTransportsLocked(m.cfg.FallbackTransports))
		m.retrySlot.arm(m.clock, m.cfg.FallbackDelay, func() {
			m.connectAttempt(CategoryTransport)
		})
	} else {
		m.st.recovering = false
		m.queueLocked(EventRecoveryFailed, map[string]any{"reason": "reconnect_failed"})
	}
	m.mu.Unlock()

	for _, fn := range apply {
		fn()
	}
	m.flush()
}

// maybeStartRecoveryLocked enters Recovering and schedules one retry. Guards
// keep retries single: nothing happens while offline or while a retry timer
// is already pending.
func (m *Manager) maybeStartRecoveryLocked(category Category, reason string) {
	if m.st.offline {
		return
	}
	if m.retrySlot.isArmed() {
		return
	}

	if !m.st.recovering {
		m.st.recovering = true
		m.st.recoveryStart = m.clock.Now()
		m.queueLocked(EventRecoveryStart, map[string]any{
			"reason":   reason,
			"category": string(category),
		})
	}
	m.scheduleRetryLocked(category)
}

// scheduleRetryLocked arms the retry timer with the category's delay.
func (m *Manager) scheduleRetryLocked(category Category) {
	now := m.clock.Now()

	// A long quiet period means this failure is unrelated to the previous
	// burst; start the backoff over.
	if !m.st.lastRetry.IsZero() && now.Sub(m.st.lastRetry) > m.cfg.ResetThreshold {
		m.st.retryCount = 0
	}

	delay := m.backoff.Delay(m.cfg, category, m.st.retryCount)
	m.st.lastRetry = now

	logger.Debug().
		Str("category", string(category)).
		Int("retry_count", m.st.retryCount).
		Dur("delay", delay).
		Msg("retry scheduled")

	m.retrySlot.arm(m.clock, delay, func() {
		m.onRetryTimer(category)
	})
}

// onRetryTimer fires when the scheduled retry is due. Exceeding the retry
// budget escalates; otherwise the attempt is dispatched per category.
func (m *Manager) onRetryTimer(category Category) {
	m.mu.Lock()
	if m.destroyed || m.st.offline {
		m.mu.Unlock()
		return
	}

	m.st.retryCount++
	m.st.connectionAttempts++

	if m.st.retryCount > m.cfg.MaxRetries {
		apply := m.exceedMaxRetriesLocked()
		m.mu.Unlock()
		for _, fn := range apply {
			fn()
		}
		m.flush()
		return
	}

	m.queueLocked(EventRecoveryAttempt, map[string]any{
		"attempt":  m.st.retryCount,
		"category": string(category),
	})

	var apply []func()
	connect := true

	switch category {
	case CategoryCORS, CategoryTransport:
		if m.cfg.TransportFallback && !m.st.transportFallbackActive {
			// Switch transports, let the new set settle, then dial.
			apply = append(apply, m.switchTransportsLocked(m.cfg.FallbackTransports))
			m.retrySlot.arm(m.clock, m.cfg.FallbackDelay, func() {
				m.connectAttempt(category)
			})
			connect = false
		}
	case CategoryTimeout, CategoryNetwork:
		if fn := m.widenTimeoutLocked(); fn != nil {
			apply = append(apply, fn)
		}
	}

	if connect {
		m.armAttemptTimeoutLocked()
	}
	m.mu.Unlock()

	for _, fn := range apply {
		fn()
	}
	if connect {
		m.client.Connect()
	}
	m.flush()
}

// connectAttempt issues a connect call guarded by the per-attempt timeout.
func (m *Manager) connectAttempt(category Category) {
	m.mu.Lock()
	if m.destroyed || m.st.offline {
		m.mu.Unlock()
		return
	}
	_ = category
	m.armAttemptTimeoutLocked()
	m.mu.Unlock()

	m.client.Connect()
}

// armAttemptTimeoutLocked arms the watchdog for one connect attempt. An
// attempt that neither succeeds nor errors within the window is treated as
// a timeout failure.
func (m *Manager) armAttemptTimeoutLocked() {
	m.attemptSlot.arm(m.clock, m.cfg.attemptTimeout(), m.onAttemptTimeout)
}

// onAttemptTimeout fires when a connect attempt went unanswered.
func (m *Manager) onAttemptTimeout() {
	m.mu.Lock()
	if m.destroyed || m.st.connected {
		m.mu.Unlock()
		return
	}

	const msg = "connection attempt timed out"
	m.st.recordError(m.clock.Now(), CategoryTimeout, msg)
	m.maybeStartRecoveryLocked(CategoryTimeout, msg)
	m.mu.Unlock()
	m.flush()
}

// widenTimeoutLocked temporarily doubles the client's dial timeout (capped)
// for timeout/network failures and arms its restoration. Returns the client
// side effect, or nil when already widened.
func (m *Manager) widenTimeoutLocked() func() {
	if m.savedDialTimeout > 0 {
		return nil
	}

	saved := m.client.DialTimeout()
	if saved <= 0 {
		return nil
	}
	m.savedDialTimeout = saved

	widened := saved * 2
	if widened > timeoutWidenCap {
		widened = timeoutWidenCap
	}

	m.restoreSlot.arm(m.clock, timeoutRestoreAfter, m.restoreDialTimeout)

	return func() {
		m.client.SetDialTimeout(widened)
	}
}

// unwidenTimeoutLocked cancels a pending widen and returns the restoring
// side effect, or nil when the timeout is not widened.
func (m *Manager) unwidenTimeoutLocked() func() {
	if m.savedDialTimeout == 0 {
		return nil
	}
	saved := m.savedDialTimeout
	m.savedDialTimeout = 0
	m.restoreSlot.cancel()

	return func() {
		m.client.SetDialTimeout(saved)
	}
}

// restoreDialTimeout is the restore timer callback.
func (m *Manager) restoreDialTimeout() {
	m.mu.Lock()
	fn := m.unwidenTimeoutLocked()
	m.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// exceedMaxRetriesLocked handles retry exhaustion: either degrade to
// polling mode or report terminal failure.
func (m *Manager) exceedMaxRetriesLocked() []func() {
	m.retrySlot.cancel()
	m.attemptSlot.cancel()
	m.st.recovering = false

	if m.cfg.SuspensionDetection && !m.st.pollingMode {
		logger.Warn().
			Int("retries", m.st.retryCount).
			Msg("retry budget exhausted, degrading to polling mode")
		return m.enterPollingModeLocked("max_retries")
	}

	logger.Error().
		Int("retries", m.st.retryCount).
		Msg("recovery failed")
	m.queueLocked(EventRecoveryFailed, map[string]any{"reason": "max_retries_exceeded"})
	return nil
}

// enterPollingModeLocked switches to the most tolerant transport, bounds the
// degraded mode with a timer, and schedules a connect attempt shortly after
// the switch settles.
func (m *Manager) enterPollingModeLocked(trigger string) []func() {
	var apply []func()

	m.st.pollingMode = true
	apply = append(apply, m.switchTransportsLocked([]transport.Name{transport.NamePolling}))

	m.pollingSlot.arm(m.clock, m.cfg.PollingModeTimeout, m.onPollingModeTimeout)
	m.retrySlot.arm(m.clock, pollingModeConnectDelay, func() {
		m.connectAttempt(CategoryUnknown)
	})

	m.queueLocked(EventPollingModeEntered, map[string]any{"trigger": trigger})
	return apply
}

// onPollingModeTimeout exits polling mode when its window expires. The exit
// always restores the original transports; if the connection is still down,
// the normal failure path restarts recovery from scratch.
func (m *Manager) onPollingModeTimeout() {
	m.mu.Lock()
	if m.destroyed || !m.st.pollingMode {
		m.mu.Unlock()
		return
	}

	m.st.pollingMode = false
	fn := m.restoreTransportsLocked()
	m.queueLocked(EventPollingModeExited, map[string]any{"reason": "timeout"})
	m.mu.Unlock()

	if fn != nil {
		fn()
	}
	m.flush()
}

// handleSuspension reacts to the suspension detector: the one transition
// that enters polling mode straight from Idle.
func (m *Manager) handleSuspension() {
	m.mu.Lock()
	if m.destroyed || m.st.pollingMode {
		m.mu.Unlock()
		return
	}

	logger.Warn().Msg("environment suspension detected, entering polling mode")

	m.st.suspended = true
	m.queueLocked(EventSuspensionDetected, nil)
	apply := m.enterPollingModeLocked("suspension")
	m.mu.Unlock()

	for _, fn := range apply {
		fn()
	}
	m.flush()
}

// NotifyOffline pauses recovery while the network is down: pending retries
// are cancelled but the retry counter and history survive the pause.
func (m *Manager) NotifyOffline() {
	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return
	}

	m.st.offline = true
	m.retrySlot.cancel()
	m.attemptSlot.cancel()
	m.st.recovering = false
	m.queueLocked(EventRecoveryPaused, map[string]any{"reason": "network_offline"})
	m.mu.Unlock()
	m.flush()

	logger.Info().Msg("network offline, recovery paused")
}

// NotifyOnline resumes recovery after an offline pause if the connection is
// still down.
func (m *Manager) NotifyOnline() {
	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return
	}

	m.st.offline = false
	if !m.st.connected && !m.st.recovering {
		m.maybeStartRecoveryLocked(CategoryNetwork, "network_online")
	}
	m.mu.Unlock()
	m.flush()

	logger.Info().Msg("network online")
}

// NotifyActivity is the advisory activity signal from the embedding layer.
func (m *Manager) NotifyActivity() {
	m.mu.Lock()
	if !m.destroyed {
		m.st.lastActivity = m.clock.Now()
	}
	m.mu.Unlock()
	m.suspension.activity()
}

// NotifyHidden is the advisory signal that the embedder went hidden.
func (m *Manager) NotifyHidden() {
	m.suspension.notifyHidden()
}

// NotifyVisible is the advisory signal that the embedder became visible.
func (m *Manager) NotifyVisible() {
	m.suspension.notifyVisible()
}

// ForceRecovery is the manual override: timers cleared, retry counter
// reset, recovery started immediately regardless of current state.
func (m *Manager) ForceRecovery() {
	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return
	}

	m.retrySlot.cancel()
	m.attemptSlot.cancel()
	m.st.retryCount = 0
	m.st.recovering = false
	m.st.offline = false
	m.maybeStartRecoveryLocked(CategoryUnknown, "forced")
	m.mu.Unlock()
	m.flush()

	logger.Info().Msg("recovery forced")
}

// UpdateConfig merges a partial configuration at runtime.
func (m *Manager) UpdateConfig(p Patch) {
	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return
	}

	oldSuspension := m.cfg.SuspensionDetection
	m.cfg = m.cfg.Apply(p).withDefaults()
	newSuspension := m.cfg.SuspensionDetection
	m.mu.Unlock()

	if oldSuspension != newSuspension {
		if newSuspension {
			m.suspension.start()
		} else {
			m.suspension.stop()
		}
	}
}

// Destroy is the terminal teardown: every timer cancelled, every client
// listener detached, transports restored if a fallback was live. Safe to
// call more than once.
func (m *Manager) Destroy() {
	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return
	}
	m.destroyed = true

	m.retrySlot.cancel()
	m.attemptSlot.cancel()
	m.pollingSlot.cancel()
	m.restoreSlot.cancel()

	removes := m.removeCallbacks
	m.removeCallbacks = nil

	var apply []func()
	if fn := m.unwidenTimeoutLocked(); fn != nil {
		apply = append(apply, fn)
	}
	if m.st.transportFallbackActive {
		if fn := m.restoreTransportsLocked(); fn != nil {
			apply = append(apply, fn)
		}
	}
	m.mu.Unlock()

	m.suspension.stop()
	for _, remove := range removes {
		remove()
	}
	for _, fn := range apply {
		fn()
	}

	logger.Debug().Msg("recovery manager destroyed")
}

// queueLocked stages an event for emission after the lock is released.
func (m *Manager) queueLocked(t EventType, data map[string]any) {
	m.pending = append(m.pending, Event{
		Type:      t,
		ID:        uuid.New().String(),
		Timestamp: m.clock.Now(),
		State:     m.st.snapshot(),
		Data:      data,
	})
}

// flush emits staged events outside the lock.
func (m *Manager) flush() {
	m.mu.Lock()
	events := m.pending
	m.pending = nil
	m.mu.Unlock()

	for _, ev := range events {
		m.emitter.Emit(ev)
	}
}
