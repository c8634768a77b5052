package breaker

import (
	"testing"
	"time"
)

func TestBreakerOpensAtThreshold(t *testing.T) {
	b := New(3, time.Minute)

	for i := 0; i < 2; i++ {
		b.RecordFailure()
		if !b.Allow() {
			t.Fatalf("breaker rejected after %d failures, threshold is 3", i+1)
		}
	}

	b.RecordFailure()
	if b.State() != StateOpen {
		t.Errorf("state = %s, want open", b.State())
	}
	if b.Allow() {
		t.Error("open breaker allowed a request")
	}
}

func TestBreakerHalfOpenProbeAfterTimeout(t *testing.T) {
	b := New(1, 10*time.Millisecond)
	b.RecordFailure()

	if b.Allow() {
		t.Fatal("breaker should be open immediately after tripping")
	}

	time.Sleep(20 * time.Millisecond)
	if !b.Allow() {
		t.Fatal("breaker should allow a probe after the reset timeout")
	}
	if b.State() != StateHalfOpen {
		t.Errorf("state = %s, want half-open", b.State())
	}
}

func TestBreakerClosesOnHalfOpenSuccess(t *testing.T) {
	b := New(1, 10*time.Millisecond)
	b.RecordFailure()
	time.Sleep(20 * time.Millisecond)
	b.Allow()

	b.RecordSuccess()
	if b.State() != StateClosed {
		t.Errorf("state = %s, want closed", b.State())
	}
	if !b.Allow() {
		t.Error("closed breaker rejected a request")
	}
}

func TestBreakerReopensOnHalfOpenFailure(t *testing.T) {
	b := New(5, 10*time.Millisecond)
	for i := 0; i < 5; i++ {
		b.RecordFailure()
	}
	time.Sleep(20 * time.Millisecond)
	b.Allow()

	// A single failure in half-open trips the breaker again, regardless of
	// the threshold.
	b.RecordFailure()
	if b.State() != StateOpen {
		t.Errorf("state = %s, want open", b.State())
	}
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b := New(2, time.Minute)
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()

	if b.State() != StateClosed {
		t.Errorf("state = %s, want closed after interleaved success", b.State())
	}
}
