package recovery

import (
	"time"

	"github.com/vedfolnir/wsbridge/internal/transport"
)

// Error history bounds: the history never exceeds historyCap entries and is
// cut back to the most recent historyTrim on overflow.
const (
	historyCap  = 50
	historyTrim = 25
)

// ErrorRecord is one classified failure kept in the bounded history.
type ErrorRecord struct {
	Time     time.Time `json:"time"`
	Category Category  `json:"category"`
	Message  string    `json:"message"`
}

// state is the single mutable record of the recovery machine. It is owned
// exclusively by the Manager and only ever touched under its lock.
type state struct {
	connected               bool
	recovering              bool
	suspended               bool
	pollingMode             bool
	offline                 bool
	transportFallbackActive bool

	retryCount         int
	consecutiveErrors  int
	connectionAttempts int

	lastError     string
	lastErrorType Category
	errorHistory  []ErrorRecord

	currentTransport   transport.Name
	originalTransports []transport.Name

	lastActivity  time.Time
	lastSuccess   time.Time
	lastRetry     time.Time
	recoveryStart time.Time
}

// recordError appends a classified failure to the bounded history and
// updates the last-error fields.
func (st *state) recordError(now time.Time, category Category, msg string) {
	st.lastError = msg
	st.lastErrorType = category
	st.consecutiveErrors++

	st.errorHistory = append(st.errorHistory, ErrorRecord{
		Time:     now,
		Category: category,
		Message:  msg,
	})
	if len(st.errorHistory) > historyCap {
		trimmed := make([]ErrorRecord, historyTrim)
		copy(trimmed, st.errorHistory[len(st.errorHistory)-historyTrim:])
		st.errorHistory = trimmed
	}
}

// Snapshot is a copy of the recovery state safe to hand to observers.
type Snapshot struct {
	Connected               bool `json:"connected"`
	Recovering              bool `json:"recovering"`
	Suspended               bool `json:"suspended"`
	PollingMode             bool `json:"polling_mode"`
	Offline                 bool `json:"offline"`
	TransportFallbackActive bool `json:"transport_fallback_active"`

	RetryCount         int `json:"retry_count"`
	ConsecutiveErrors  int `json:"consecutive_errors"`
	ConnectionAttempts int `json:"connection_attempts"`

	LastError     string        `json:"last_error,omitempty"`
	LastErrorType Category      `json:"last_error_type,omitempty"`
	ErrorHistory  []ErrorRecord `json:"error_history,omitempty"`

	CurrentTransport   transport.Name   `json:"current_transport,omitempty"`
	OriginalTransports []transport.Name `json:"original_transports,omitempty"`

	LastActivity  time.Time `json:"last_activity,omitzero"`
	LastSuccess   time.Time `json:"last_success,omitzero"`
	LastRetry     time.Time `json:"last_retry,omitzero"`
	RecoveryStart time.Time `json:"recovery_start,omitzero"`
}

// snapshot copies the state, including the history slice.
func (st *state) snapshot() Snapshot {
	return Snapshot{
		Connected:               st.connected,
		Recovering:              st.recovering,
		Suspended:               st.suspended,
		PollingMode:             st.pollingMode,
		Offline:                 st.offline,
		TransportFallbackActive: st.transportFallbackActive,
		RetryCount:              st.retryCount,
		ConsecutiveErrors:       st.consecutiveErrors,
		ConnectionAttempts:      st.connectionAttempts,
		LastError:               st.lastError,
		LastErrorType:           st.lastErrorType,
		ErrorHistory:            append([]ErrorRecord(nil), st.errorHistory...),
		CurrentTransport:        st.currentTransport,
		OriginalTransports:      append([]transport.Name(nil), st.originalTransports...),
		LastActivity:            st.lastActivity,
		LastSuccess:             st.lastSuccess,
		LastRetry:               st.lastRetry,
		RecoveryStart:           st.recoveryStart,
	}
}
