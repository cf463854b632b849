package netmon

import (
	"sync"
	"testing"
	"time"
)

type fakeNotifier struct {
	mu      sync.Mutex
	offline int
	online  int
	forced  int
}

func (f *fakeNotifier) NotifyOffline() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offline++
}

func (f *fakeNotifier) NotifyOnline() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.online++
}

func (f *fakeNotifier) ForceRecovery() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forced++
}

func (f *fakeNotifier) counts() (offline, online, forced int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.offline, f.online, f.forced
}

type fakeConnected bool

func (c fakeConnected) Connected() bool { return bool(c) }

// newCheckedMonitor builds a monitor whose address source and state are
// driven directly; check() is called by hand instead of via the ticker.
func newCheckedMonitor(connected bool, notifier *fakeNotifier) (*Monitor, func([]string)) {
	var mu sync.Mutex
	current := []string{"192.168.1.10/24"}

	m := New(fakeConnected(connected), notifier, time.Hour)
	m.getAddrs = func() ([]string, error) {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), current...), nil
	}
	m.lastAddrs = current
	m.offline = false

	set := func(addrs []string) {
		mu.Lock()
		current = addrs
		mu.Unlock()
	}
	return m, set
}

func TestMonitorTotalLossPausesRecovery(t *testing.T) {
	notifier := &fakeNotifier{}
	m, set := newCheckedMonitor(true, notifier)

	set(nil)
	m.check()

	offline, online, _ := notifier.counts()
	if offline != 1 {
		t.Errorf("NotifyOffline calls = %d, want 1", offline)
	}
	if online != 0 {
		t.Errorf("NotifyOnline calls = %d, want 0", online)
	}

	// Repeated empty checks stay quiet.
	m.check()
	offline, _, _ = notifier.counts()
	if offline != 1 {
		t.Errorf("NotifyOffline calls after repeat = %d, want 1", offline)
	}
}

func TestMonitorAddressReturnResumesRecovery(t *testing.T) {
	notifier := &fakeNotifier{}
	m, set := newCheckedMonitor(false, notifier)

	set(nil)
	m.check()
	set([]string{"10.0.0.5/24"})
	m.check()

	offline, online, _ := notifier.counts()
	if offline != 1 {
		t.Errorf("NotifyOffline calls = %d, want 1", offline)
	}
	if online != 1 {
		t.Errorf("NotifyOnline calls = %d, want 1", online)
	}
}

func TestMonitorChangeWhileDisconnectedForcesRecovery(t *testing.T) {
	notifier := &fakeNotifier{}
	m, set := newCheckedMonitor(false, notifier)

	set([]string{"10.0.0.9/24"})
	m.check()

	_, _, forced := notifier.counts()
	if forced != 1 {
		t.Errorf("ForceRecovery calls = %d, want 1", forced)
	}
}

func TestMonitorChangeWhileConnectedDoesNothing(t *testing.T) {
	notifier := &fakeNotifier{}
	m, set := newCheckedMonitor(true, notifier)

	set([]string{"10.0.0.9/24"})
	m.check()

	offline, online, forced := notifier.counts()
	if offline != 0 || online != 0 || forced != 0 {
		t.Errorf("notifications = (%d, %d, %d), want none", offline, online, forced)
	}
}

func TestMonitorUnchangedAddressesStayQuiet(t *testing.T) {
	notifier := &fakeNotifier{}
	m, _ := newCheckedMonitor(true, notifier)

	changes := 0
	m.onChange = func() { changes++ }

	m.check()
	m.check()

	if changes != 0 {
		t.Errorf("change callbacks = %d, want 0", changes)
	}
}

func TestEqualStrings(t *testing.T) {
	if !equalStrings(nil, nil) {
		t.Error("nil slices not equal")
	}
	if equalStrings([]string{"a"}, []string{"b"}) {
		t.Error("different slices reported equal")
	}
	if equalStrings([]string{"a"}, []string{"a", "b"}) {
		t.Error("different lengths reported equal")
	}
}
