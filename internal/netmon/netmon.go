// Package netmon watches the host's network interfaces and feeds the
// recovery manager: total address loss pauses recovery, address recovery
// resumes it, and an interface change while disconnected nudges an
// immediate reconnect.
package netmon

import (
	"context"
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vedfolnir/wsbridge/internal/logger"
)

// DefaultCheckInterval is the address polling interval.
const DefaultCheckInterval = 5 * time.Second

// Notifier is the slice of the recovery manager the monitor drives.
type Notifier interface {
	NotifyOffline()
	NotifyOnline()
	ForceRecovery()
}

// Connected reports whether a transport is currently established. Satisfied
// by transport.Client.
type Connected interface {
	Connected() bool
}

// Monitor polls net.InterfaceAddrs and translates address changes into
// recovery notifications.
type Monitor struct {
	client        Connected
	notifier      Notifier
	checkInterval time.Duration

	mu        sync.Mutex
	lastAddrs []string
	offline   bool

	// getAddrs is a function field so tests can inject address lists.
	getAddrs func() ([]string, error)

	// onChange is invoked on every detected change (tests only).
	onChange func()
}

// New creates a Monitor. interval <= 0 selects the default.
func New(client Connected, notifier Notifier, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = DefaultCheckInterval
	}
	return &Monitor{
		client:        client,
		notifier:      notifier,
		checkInterval: interval,
		getAddrs:      interfaceAddrs,
	}
}

// Start launches the monitoring goroutine. It stops when ctx is cancelled.
func (m *Monitor) Start(ctx context.Context) {
	addrs, err := m.getAddrs()
	if err != nil {
		logger.Warn().Err(err).Msg("initial network address lookup failed, starting empty")
	}

	m.mu.Lock()
	m.lastAddrs = addrs
	m.offline = len(addrs) == 0
	m.mu.Unlock()

	logger.Info().
		Int("addr_count", len(addrs)).
		Dur("interval", m.checkInterval).
		Msg("network monitor started")

	go m.loop(ctx)
}

func (m *Monitor) loop(ctx context.Context) {
	ticker := time.NewTicker(m.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Debug().Msg("network monitor stopped")
			return
		case <-ticker.C:
			m.check()
		}
	}
}

// check compares the current address set against the last observed one.
func (m *Monitor) check() {
	current, err := m.getAddrs()
	if err != nil {
		logger.Debug().Err(err).Msg("network address lookup failed, treating as unchanged")
		return
	}

	m.mu.Lock()
	changed := !equalStrings(m.lastAddrs, current)
	wasOffline := m.offline
	m.lastAddrs = current
	m.offline = len(current) == 0
	nowOffline := m.offline
	m.mu.Unlock()

	if !changed && wasOffline == nowOffline {
		return
	}

	if m.onChange != nil {
		m.onChange()
	}

	switch {
	case nowOffline && !wasOffline:
		logger.Warn().Msg("all network addresses gone, pausing recovery")
		m.notifier.NotifyOffline()
	case wasOffline && !nowOffline:
		logger.Info().Int("addr_count", len(current)).Msg("network addresses back, resuming recovery")
		m.notifier.NotifyOnline()
	case changed:
		logger.Info().Msg("network interface change detected")
		if !m.client.Connected() {
			// A changed address set while disconnected usually means the
			// old route died with the old address; retry right away.
			m.notifier.ForceRecovery()
		}
	}
}

// interfaceAddrs lists the non-loopback interface addresses, sorted for
// deterministic comparison.
func interfaceAddrs() ([]string, error) {
	ifaces, err := net.InterfaceAddrs()
	if err != nil {
		return nil, err
	}

	addrs := make([]string, 0, len(ifaces))
	for _, addr := range ifaces {
		s := addr.String()
		if strings.HasPrefix(s, "127.") || strings.HasPrefix(s, "::1") {
			continue
		}
		addrs = append(addrs, s)
	}

	sort.Strings(addrs)
	return addrs, nil
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
