package transport

import "testing"

func TestDialStrategyBudget(t *testing.T) {
	s := NewDialStrategy(3)

	if !s.RecordFailure() {
		t.Fatal("budget exhausted after 1 failure, want 3")
	}
	if !s.RecordFailure() {
		t.Fatal("budget exhausted after 2 failures, want 3")
	}
	if s.RecordFailure() {
		t.Fatal("budget not exhausted after 3 failures")
	}
	if got := s.CurrentAttempt(); got != 3 {
		t.Errorf("CurrentAttempt = %d, want 3", got)
	}
	if got := s.RemainingAttempts(); got != 0 {
		t.Errorf("RemainingAttempts = %d, want 0", got)
	}
}

func TestDialStrategyReset(t *testing.T) {
	s := NewDialStrategy(2)
	s.RecordFailure()
	s.Reset()

	if got := s.CurrentAttempt(); got != 0 {
		t.Errorf("CurrentAttempt after reset = %d, want 0", got)
	}
	if !s.RecordFailure() {
		t.Error("budget exhausted right after reset")
	}
}

func TestDialStrategyUnlimited(t *testing.T) {
	s := NewDialStrategy(0)

	for i := 0; i < 100; i++ {
		if !s.RecordFailure() {
			t.Fatalf("unlimited budget exhausted at failure %d", i+1)
		}
	}
	if got := s.RemainingAttempts(); got != -1 {
		t.Errorf("RemainingAttempts = %d, want -1", got)
	}

	if got := NewDialStrategy(-5).MaxAttempts(); got != 0 {
		t.Errorf("negative budget normalized to %d, want 0", got)
	}
}
