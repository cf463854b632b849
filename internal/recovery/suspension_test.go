package recovery

import (
	"sync"
	"testing"
	"time"
)

type suspensionFixture struct {
	clock    *fakeClock
	detector *suspensionDetector

	mu        sync.Mutex
	triggered int
}

func newSuspensionFixture(connected bool) *suspensionFixture {
	f := &suspensionFixture{clock: newFakeClock()}
	f.detector = newSuspensionDetector(
		f.clock,
		30*time.Second,
		60*time.Second,
		func() bool { return connected },
		func() {
			f.mu.Lock()
			f.triggered++
			f.mu.Unlock()
		},
	)
	return f
}

func (f *suspensionFixture) triggers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.triggered
}

func TestSuspensionTriggersOnActivityGap(t *testing.T) {
	f := newSuspensionFixture(true)
	f.detector.start()
	defer f.detector.stop()

	// Gap still within the threshold: quiet.
	f.clock.Advance(60 * time.Second)
	if f.triggers() != 0 {
		t.Fatalf("triggered at gap <= threshold")
	}

	// The next check sees a gap past the threshold.
	f.clock.Advance(30 * time.Second)
	if f.triggers() != 1 {
		t.Fatalf("triggers = %d, want 1", f.triggers())
	}
}

// The detector is edge-triggered: one signal per gap, re-armed by activity.
func TestSuspensionEdgeTriggered(t *testing.T) {
	f := newSuspensionFixture(true)
	f.detector.start()
	defer f.detector.stop()

	f.clock.Advance(90 * time.Second)
	if f.triggers() != 1 {
		t.Fatalf("triggers = %d, want 1", f.triggers())
	}

	// The gap keeps growing but no new signal fires.
	f.clock.Advance(5 * time.Minute)
	if f.triggers() != 1 {
		t.Fatalf("triggers after continued silence = %d, want 1", f.triggers())
	}

	// Activity re-arms; a fresh gap fires again.
	f.detector.activity()
	f.clock.Advance(90 * time.Second)
	if f.triggers() != 2 {
		t.Fatalf("triggers after re-arm = %d, want 2", f.triggers())
	}
}

func TestSuspensionRequiresConnection(t *testing.T) {
	f := newSuspensionFixture(false)
	f.detector.start()
	defer f.detector.stop()

	f.clock.Advance(10 * time.Minute)
	if f.triggers() != 0 {
		t.Fatalf("triggered while disconnected")
	}
}

func TestSuspensionActivityResetsGap(t *testing.T) {
	f := newSuspensionFixture(true)
	f.detector.start()
	defer f.detector.stop()

	// Regular activity keeps the gap under the threshold indefinitely.
	for i := 0; i < 10; i++ {
		f.clock.Advance(45 * time.Second)
		f.detector.activity()
	}
	if f.triggers() != 0 {
		t.Fatalf("triggered despite regular activity")
	}
}

func TestSuspensionOnHiddenVisibleTransition(t *testing.T) {
	f := newSuspensionFixture(true)

	// Not started: the visibility path works without the periodic check,
	// mirroring an environment whose timers pause while hidden.
	f.detector.notifyHidden()
	f.clock.Advance(2 * time.Minute)
	f.detector.notifyVisible()
	if f.triggers() != 1 {
		t.Fatalf("triggers = %d, want 1", f.triggers())
	}

	// A short hidden span does not trigger.
	f.detector.notifyHidden()
	f.clock.Advance(10 * time.Second)
	f.detector.notifyVisible()
	if f.triggers() != 1 {
		t.Fatalf("triggers after short hidden span = %d, want 1", f.triggers())
	}
}

func TestSuspensionStopHaltsChecks(t *testing.T) {
	f := newSuspensionFixture(true)
	f.detector.start()
	f.detector.stop()

	f.clock.Advance(10 * time.Minute)
	if f.triggers() != 0 {
		t.Fatalf("triggered after stop")
	}
	if got := f.clock.pendingTimers(); got != 0 {
		t.Fatalf("pending timers after stop = %d, want 0", got)
	}
}
