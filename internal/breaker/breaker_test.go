package breaker

import "testing"

func TestSet_PerMarketIsolation_Scenario5(t *testing.T) {
	s := NewSet(DefaultConfig())

	for i := 0; i < 10; i++ {
		s.RecordFailure(0, "test failure")
	}

	if s.Allow(0) {
		t.Fatal("market 0 breaker should be open")
	}
	if !s.Allow(1) {
		t.Fatal("market 1 breaker should still be closed")
	}

	s.RecordSuccess(1)
	if !s.Allow(1) {
		t.Fatal("market 1 breaker should remain closed after success")
	}

	// A success for the open market is ignored.
	s.RecordSuccess(0)
	if s.Allow(0) {
		t.Fatal("market 0 breaker should remain open")
	}
}

func TestSet_ValidationBreakerIsolatedFromMarkets(t *testing.T) {
	s := NewSet(DefaultConfig())

	for i := 0; i < 10; i++ {
		s.RecordValidationFailure("unknown coin")
	}

	if !s.ValidationOpen() {
		t.Fatal("validation breaker should be open")
	}
	if !s.Allow(0) {
		t.Fatal("market 0 should be unaffected by validation failures")
	}
	if !s.Allow(1) {
		t.Fatal("market 1 should be unaffected by validation failures")
	}
}

func TestSet_ClosedStateTracksConsecutiveFailures(t *testing.T) {
	s := NewSet(DefaultConfig())
	s.RecordFailure(0, "err")
	s.RecordFailure(0, "err")

	state := s.State(0)
	if state.Kind != Closed {
		t.Fatalf("expected closed, got %v", state.Kind)
	}
	if state.ConsecutiveFailures != 2 {
		t.Fatalf("consecutive_failures = %d, want 2", state.ConsecutiveFailures)
	}
}

func TestSet_SuccessResetsConsecutiveFailures(t *testing.T) {
	s := NewSet(DefaultConfig())
	s.RecordFailure(0, "err")
	s.RecordFailure(0, "err")
	s.RecordSuccess(0)

	state := s.State(0)
	if state.ConsecutiveFailures != 0 {
		t.Fatalf("consecutive_failures = %d, want 0 after success", state.ConsecutiveFailures)
	}
}

func TestSet_TotalCountersAccumulate(t *testing.T) {
	s := NewSet(DefaultConfig())
	s.RecordFailure(0, "err")
	s.RecordSuccess(0)
	s.RecordSuccess(0)

	state := s.State(0)
	if state.TotalFailures != 1 || state.TotalSuccesses != 2 {
		t.Fatalf("totals = %+v, want 1 failure / 2 successes", state)
	}
}
