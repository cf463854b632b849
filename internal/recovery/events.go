package recovery

import (
	"sync"
	"time"
)

// EventType names a recovery lifecycle event.
type EventType string

const (
	EventRecoveryStart      EventType = "recovery_start"
	EventRecoveryAttempt    EventType = "recovery_attempt"
	EventRecoverySuccess    EventType = "recovery_success"
	EventRecoveryFailed     EventType = "recovery_failed"
	EventRecoveryPaused     EventType = "recovery_paused"
	EventSuspensionDetected EventType = "suspension_detected"
	EventPollingModeEntered EventType = "polling_mode_entered"
	EventPollingModeExited  EventType = "polling_mode_exited"
)

// Event is one lifecycle notification. State is a snapshot taken at emission
// time; Data carries event-specific fields (reason, attempt number).
type Event struct {
	Type      EventType      `json:"type"`
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	State     Snapshot       `json:"state"`
	Data      map[string]any `json:"data,omitempty"`
}

// Emitter fans events out to subscribers. Handlers run synchronously on the
// emitting goroutine; the Manager always emits with its own lock released,
// so handlers may call back into it.
type Emitter struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]func(Event)
}

// NewEmitter creates an empty emitter.
func NewEmitter() *Emitter {
	return &Emitter{subs: make(map[int]func(Event))}
}

// Subscribe registers a handler and returns its unsubscribe func.
func (e *Emitter) Subscribe(fn func(Event)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.nextID
	e.nextID++
	e.subs[id] = fn

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.subs, id)
	}
}

// Emit delivers the event to every subscriber.
func (e *Emitter) Emit(ev Event) {
	e.mu.Lock()
	fns := make([]func(Event), 0, len(e.subs))
	for _, fn := range e.subs {
		fns = append(fns, fn)
	}
	e.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
