package recovery

import "testing"

func TestEmitterFanOut(t *testing.T) {
	e := NewEmitter()

	var a, b int
	e.Subscribe(func(Event) { a++ })
	e.Subscribe(func(Event) { b++ })

	e.Emit(Event{Type: EventRecoveryStart})
	e.Emit(Event{Type: EventRecoverySuccess})

	if a != 2 || b != 2 {
		t.Fatalf("deliveries = (%d, %d), want (2, 2)", a, b)
	}
}

func TestEmitterUnsubscribe(t *testing.T) {
	e := NewEmitter()

	var n int
	unsub := e.Subscribe(func(Event) { n++ })

	e.Emit(Event{Type: EventRecoveryStart})
	unsub()
	e.Emit(Event{Type: EventRecoveryStart})

	if n != 1 {
		t.Fatalf("deliveries = %d, want 1", n)
	}
}

func TestEmitterNoSubscribers(t *testing.T) {
	e := NewEmitter()
	// Must not panic.
	e.Emit(Event{Type: EventRecoveryFailed})
}
