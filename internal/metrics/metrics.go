// Package metrics tracks operational metrics for the bridge: connection
// outcomes, recovery cycles, degraded-mode transitions and error categories.
// Counters are exposed both as a JSON snapshot (status file, dashboard) and
// through a Prometheus registry.
package metrics

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vedfolnir/wsbridge/internal/recovery"
)

// Metrics tracks bridge counters. All fields are safe for concurrent use.
type Metrics struct {
	ConnectionAttempts  atomic.Int64
	ConnectionSuccesses atomic.Int64
	ConnectionFailures  atomic.Int64

	RecoveryCycles     atomic.Int64
	RecoveryFailures   atomic.Int64
	RecoveryPauses     atomic.Int64
	Suspensions        atomic.Int64
	PollingModeEntries atomic.Int64

	MessagesSent     atomic.Int64
	MessagesReceived atomic.Int64

	startTime   time.Time
	lastSuccess atomic.Value // time.Time

	errMu            sync.Mutex
	errorsByCategory map[recovery.Category]int64

	registry *prometheus.Registry
	promVars promCollectors
}

type promCollectors struct {
	attempts   prometheus.Counter
	successes  prometheus.Counter
	failures   prometheus.Counter
	cycles     prometheus.Counter
	suspended  prometheus.Counter
	polling    prometheus.Counter
	errorsByCt *prometheus.CounterVec
	connected  prometheus.Gauge
}

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	Timestamp           time.Time        `json:"timestamp"`
	Uptime              string           `json:"uptime"`
	ConnectionAttempts  int64            `json:"connection_attempts"`
	ConnectionSuccesses int64            `json:"connection_successes"`
	ConnectionFailures  int64            `json:"connection_failures"`
	RecoveryCycles      int64            `json:"recovery_cycles"`
	RecoveryFailures    int64            `json:"recovery_failures"`
	RecoveryPauses      int64            `json:"recovery_pauses"`
	Suspensions         int64            `json:"suspensions"`
	PollingModeEntries  int64            `json:"polling_mode_entries"`
	MessagesSent        int64            `json:"messages_sent"`
	MessagesReceived    int64            `json:"messages_received"`
	ErrorsByCategory    map[string]int64 `json:"errors_by_category,omitempty"`
	LastSuccess         string           `json:"last_success,omitempty"`
}

// New creates a Metrics instance with its own Prometheus registry.
func New() *Metrics {
	m := &Metrics{
		startTime:        time.Now(),
		errorsByCategory: make(map[recovery.Category]int64),
		registry:         prometheus.NewRegistry(),
	}

	m.promVars = promCollectors{
		attempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wsbridge", Name: "connection_attempts_total",
			Help: "Connection attempts issued by the recovery layer.",
		}),
		successes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wsbridge", Name: "connection_successes_total",
			Help: "Successful connections.",
		}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wsbridge", Name: "recovery_failures_total",
			Help: "Recovery cycles that ended in terminal failure.",
		}),
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wsbridge", Name: "recovery_cycles_total",
			Help: "Recovery cycles started.",
		}),
		suspended: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wsbridge", Name: "suspensions_total",
			Help: "Host suspension events detected.",
		}),
		polling: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wsbridge", Name: "polling_mode_entries_total",
			Help: "Transitions into degraded polling mode.",
		}),
		errorsByCt: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wsbridge", Name: "connection_errors_total",
			Help: "Classified connection errors.",
		}, []string{"category"}),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "wsbridge", Name: "connected",
			Help: "1 while a transport is established.",
		}),
	}

	m.registry.MustRegister(
		m.promVars.attempts,
		m.promVars.successes,
		m.promVars.failures,
		m.promVars.cycles,
		m.promVars.suspended,
		m.promVars.polling,
		m.promVars.errorsByCt,
		m.promVars.connected,
	)

	return m
}

// Observe is a recovery event subscriber: wire it with manager.Subscribe.
func (m *Metrics) Observe(ev recovery.Event) {
	switch ev.Type {
	case recovery.EventRecoveryStart:
		m.RecoveryCycles.Add(1)
		m.promVars.cycles.Inc()
	case recovery.EventRecoveryAttempt:
		m.ConnectionAttempts.Add(1)
		m.promVars.attempts.Inc()
	case recovery.EventRecoverySuccess:
		m.ConnectionSuccesses.Add(1)
		m.promVars.successes.Inc()
		m.lastSuccess.Store(ev.Timestamp)
		m.promVars.connected.Set(1)
	case recovery.EventRecoveryFailed:
		m.RecoveryFailures.Add(1)
		m.promVars.failures.Inc()
	case recovery.EventRecoveryPaused:
		m.RecoveryPauses.Add(1)
	case recovery.EventSuspensionDetected:
		m.Suspensions.Add(1)
		m.promVars.suspended.Inc()
	case recovery.EventPollingModeEntered:
		m.PollingModeEntries.Add(1)
		m.promVars.polling.Inc()
	}

	if !ev.State.Connected {
		m.promVars.connected.Set(0)
	}
}

// RecordError counts one classified connection failure.
func (m *Metrics) RecordError(category recovery.Category) {
	m.ConnectionFailures.Add(1)

	m.errMu.Lock()
	m.errorsByCategory[category]++
	m.errMu.Unlock()

	m.promVars.errorsByCt.WithLabelValues(string(category)).Inc()
}

// Uptime returns the time since the metrics instance was created.
func (m *Metrics) Uptime() time.Duration {
	return time.Since(m.startTime)
}

// Handler serves the Prometheus exposition format for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Snapshot returns a point-in-time copy of all counters.
func (m *Metrics) Snapshot() Snapshot {
	snap := Snapshot{
		Timestamp:           time.Now(),
		Uptime:              m.Uptime().Round(time.Millisecond).String(),
		ConnectionAttempts:  m.ConnectionAttempts.Load(),
		ConnectionSuccesses: m.ConnectionSuccesses.Load(),
		ConnectionFailures:  m.ConnectionFailures.Load(),
		RecoveryCycles:      m.RecoveryCycles.Load(),
		RecoveryFailures:    m.RecoveryFailures.Load(),
		RecoveryPauses:      m.RecoveryPauses.Load(),
		Suspensions:         m.Suspensions.Load(),
		PollingModeEntries:  m.PollingModeEntries.Load(),
		MessagesSent:        m.MessagesSent.Load(),
		MessagesReceived:    m.MessagesReceived.Load(),
	}

	m.errMu.Lock()
	if len(m.errorsByCategory) > 0 {
		snap.ErrorsByCategory = make(map[string]int64, len(m.errorsByCategory))
		for cat, n := range m.errorsByCategory {
			snap.ErrorsByCategory[string(cat)] = n
		}
	}
	m.errMu.Unlock()

	if v := m.lastSuccess.Load(); v != nil {
		if t, ok := v.(time.Time); ok && !t.IsZero() {
			snap.LastSuccess = t.Format(time.RFC3339)
		}
	}

	return snap
}

// ToJSON returns the JSON-encoded snapshot.
func (m *Metrics) ToJSON() ([]byte, error) {
	return json.Marshal(m.Snapshot())
}
