package recovery

import (
	"sync"
	"time"
)

// suspensionDetector infers that the host environment paused execution (a
// laptop sleeping, a container frozen, a backgrounded embedder) from gaps in
// the activity timestamp. It checks the gap on a self-rearming timer while a
// connection is up, and treats a hidden→visible transition longer than the
// threshold the same way, since timers themselves may not run while hidden.
//
// The detector is edge-triggered: once it signals, it stays quiet until
// activity resets it and a fresh gap elapses.
type suspensionDetector struct {
	clock     Clock
	interval  time.Duration
	threshold time.Duration

	// connected and onSuspend are supplied by the Manager. onSuspend is
	// always invoked with the detector's lock released.
	connected func() bool
	onSuspend func()

	slot timerSlot

	mu           sync.Mutex
	running      bool
	fired        bool
	lastActivity time.Time
	hiddenAt     time.Time
}

func newSuspensionDetector(clock Clock, interval, threshold time.Duration, connected func() bool, onSuspend func()) *suspensionDetector {
	if interval <= 0 {
		interval = DefaultSuspensionInterval
	}
	if threshold <= 0 {
		threshold = DefaultSuspensionThreshold
	}
	return &suspensionDetector{
		clock:     clock,
		interval:  interval,
		threshold: threshold,
		connected: connected,
		onSuspend: onSuspend,
	}
}

// start begins periodic checking. Idempotent.
func (d *suspensionDetector) start() {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return
	}
	d.running = true
	d.lastActivity = d.clock.Now()
	d.fired = false
	d.mu.Unlock()

	d.slot.arm(d.clock, d.interval, d.check)
}

// stop halts checking. Idempotent.
func (d *suspensionDetector) stop() {
	d.mu.Lock()
	d.running = false
	d.mu.Unlock()
	d.slot.cancel()
}

// check runs once per interval while started.
func (d *suspensionDetector) check() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}

	now := d.clock.Now()
	trigger := false
	if !d.fired && d.connected() && now.Sub(d.lastActivity) > d.threshold {
		d.fired = true
		trigger = true
	}
	running := d.running
	d.mu.Unlock()

	if trigger {
		d.onSuspend()
	}
	if running {
		d.slot.arm(d.clock, d.interval, d.check)
	}
}

// activity records an advisory activity signal and re-arms the edge trigger.
func (d *suspensionDetector) activity() {
	d.mu.Lock()
	d.lastActivity = d.clock.Now()
	d.fired = false
	d.mu.Unlock()
}

// notifyHidden records the moment the embedder reported going hidden.
func (d *suspensionDetector) notifyHidden() {
	d.mu.Lock()
	d.hiddenAt = d.clock.Now()
	d.mu.Unlock()
}

// notifyVisible handles the hidden→visible transition: a hidden span longer
// than the threshold counts as a suspension even if no periodic check ran
// while hidden.
func (d *suspensionDetector) notifyVisible() {
	d.mu.Lock()
	now := d.clock.Now()
	trigger := false
	if !d.hiddenAt.IsZero() && now.Sub(d.hiddenAt) > d.threshold && !d.fired {
		d.fired = true
		trigger = true
	}
	d.hiddenAt = time.Time{}
	d.mu.Unlock()

	if trigger {
		d.onSuspend()
	}
	// Becoming visible is itself activity and opens a new detection window.
	d.activity()
}
