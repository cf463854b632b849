package transport

import "sync"

// DefaultDialAttempts is the internal dial budget of a Socket. When this many
// consecutive connect passes fail, the socket reports reconnect_failed and
// leaves further scheduling to the recovery layer.
const DefaultDialAttempts = 5

// DialStrategy tracks consecutive failed connect passes. It is the socket's
// internal retry budget; the recovery manager owns the actual retry timing.
// A value of 0 for maxAttempts means the budget never exhausts.
type DialStrategy struct {
	maxAttempts int

	mu             sync.RWMutex
	currentAttempt int
}

// NewDialStrategy creates a strategy with the given budget.
// maxAttempts below 0 is treated as 0 (unlimited).
func NewDialStrategy(maxAttempts int) *DialStrategy {
	if maxAttempts < 0 {
		maxAttempts = 0
	}
	return &DialStrategy{maxAttempts: maxAttempts}
}

// RecordFailure counts one failed connect pass and reports whether the
// budget still allows another.
func (s *DialStrategy) RecordFailure() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.currentAttempt++
	if s.maxAttempts == 0 {
		return true
	}
	return s.currentAttempt < s.maxAttempts
}

// Reset clears the failure count. Called on every successful connection.
func (s *DialStrategy) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentAttempt = 0
}

// CurrentAttempt returns the number of consecutive failed passes.
func (s *DialStrategy) CurrentAttempt() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentAttempt
}

// MaxAttempts returns the configured budget (0 = unlimited).
func (s *DialStrategy) MaxAttempts() int {
	return s.maxAttempts
}

// RemainingAttempts returns how many failed passes remain before the budget
// exhausts, or -1 when unlimited.
func (s *DialStrategy) RemainingAttempts() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.maxAttempts == 0 {
		return -1
	}
	remaining := s.maxAttempts - s.currentAttempt
	if remaining < 0 {
		return 0
	}
	return remaining
}
