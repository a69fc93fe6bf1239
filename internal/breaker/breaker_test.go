package breaker

import (
	"testing"
	"time"
)

type fakeClock struct {
	t time.Time
}

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestRegistry(cfg Config) (*Registry, *fakeClock) {
	r := NewRegistry(cfg)
	clk := &fakeClock{t: time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)}
	r.SetClock(clk.now)
	return r, clk
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	r, _ := newTestRegistry(Config{FailureThreshold: 5, RecoveryInterval: time.Minute})
	b := r.Get("openai-verifier")

	for i := 0; i < 4; i++ {
		b.RecordFailure()
		if b.State() != Closed {
			t.Fatalf("breaker should stay closed at %d failures", i+1)
		}
	}
	b.RecordFailure()
	if b.State() != Open {
		t.Fatal("breaker should open at the 5th consecutive failure")
	}
	if b.Allow() {
		t.Error("open breaker must reject invocations")
	}
}

func TestBreaker_HalfOpenSingleProbe(t *testing.T) {
	r, clk := newTestRegistry(Config{FailureThreshold: 2, RecoveryInterval: time.Minute})
	b := r.Get("websearch")

	b.RecordFailure()
	b.RecordFailure()
	if b.Allow() {
		t.Fatal("expected open")
	}

	// Not yet recovered.
	clk.advance(59 * time.Second)
	if b.Allow() {
		t.Error("recovery interval has not elapsed, must still reject")
	}

	// First attempt after the interval is permitted exactly once.
	clk.advance(2 * time.Second)
	if !b.Allow() {
		t.Fatal("expected a half-open probe to be permitted")
	}
	if b.State() != HalfOpen {
		t.Errorf("expected half-open, got %s", b.State())
	}
	if b.Allow() {
		t.Error("second concurrent probe must be rejected while the first is outstanding")
	}
}

func TestBreaker_HalfOpenToClosedOnSuccess(t *testing.T) {
	r, clk := newTestRegistry(Config{FailureThreshold: 1, RecoveryInterval: time.Minute})
	b := r.Get("claimreview")

	b.RecordFailure()
	clk.advance(61 * time.Second)
	if !b.Allow() {
		t.Fatal("expected probe permitted")
	}

	b.RecordSuccess(120 * time.Millisecond)
	if b.State() != Closed {
		t.Errorf("successful probe should close the circuit, got %s", b.State())
	}
	h := b.Snapshot()
	if h.ConsecutiveFailures != 0 {
		t.Errorf("success must reset the failure counter, got %d", h.ConsecutiveFailures)
	}
}

func TestBreaker_HalfOpenToOpenOnFailure(t *testing.T) {
	r, clk := newTestRegistry(Config{FailureThreshold: 1, RecoveryInterval: time.Minute})
	b := r.Get("claimreview")

	b.RecordFailure()
	clk.advance(61 * time.Second)
	b.Allow()
	b.RecordFailure()

	if b.State() != Open {
		t.Fatalf("failed probe should reopen the circuit, got %s", b.State())
	}
	// Recovery timer restarted: a probe right away must be rejected.
	clk.advance(30 * time.Second)
	if b.Allow() {
		t.Error("recovery timer should have restarted on the failed probe")
	}
	clk.advance(31 * time.Second)
	if !b.Allow() {
		t.Error("expected a new probe after the restarted interval")
	}
}

func TestBreaker_SuccessResetsCounterWhileClosed(t *testing.T) {
	r, _ := newTestRegistry(Config{FailureThreshold: 3, RecoveryInterval: time.Minute})
	b := r.Get("websearch")

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess(50 * time.Millisecond)
	b.RecordFailure()
	b.RecordFailure()

	if b.State() != Closed {
		t.Error("non-consecutive failures must not open the circuit")
	}
}

func TestRegistry_PerProviderIsolation(t *testing.T) {
	r, _ := newTestRegistry(Config{FailureThreshold: 1, RecoveryInterval: time.Minute})

	r.Get("openai-verifier").RecordFailure()
	if r.Get("openai-verifier").State() != Open {
		t.Fatal("expected open")
	}
	if r.Get("websearch").State() != Closed {
		t.Error("one provider's failures must not affect another")
	}
	if r.Get("openai-verifier") != r.Get("openai-verifier") {
		t.Error("registry must return the same breaker instance per provider")
	}
}

func TestBreaker_StateChangeCallback(t *testing.T) {
	ch := make(chan State, 4)
	cfg := Config{
		FailureThreshold: 1,
		RecoveryInterval: time.Minute,
		OnStateChange: func(provider string, from, to State) {
			ch <- to
		},
	}
	r, _ := newTestRegistry(cfg)
	r.Get("websearch").RecordFailure()

	select {
	case to := <-ch:
		if to != Open {
			t.Errorf("expected transition to open, got %s", to)
		}
	case <-time.After(time.Second):
		t.Fatal("state change callback was not invoked")
	}
}

func TestBreaker_CancelProbeReArmsHalfOpen(t *testing.T) {
	r, clk := newTestRegistry(Config{FailureThreshold: 2, RecoveryInterval: time.Minute})
	b := r.Get("claimreview")

	b.RecordFailure()
	b.RecordFailure()
	clk.advance(61 * time.Second)

	if !b.Allow() {
		t.Fatal("expected a half-open probe to be permitted")
	}
	if b.Allow() {
		t.Fatal("probe permit must be exclusive")
	}

	// The probe never ran (denied upstream), so the permit comes back
	// and the next caller gets a fresh trial.
	b.CancelProbe()
	if b.State() != HalfOpen {
		t.Errorf("cancelling a probe must not change state, got %s", b.State())
	}
	if !b.Allow() {
		t.Fatal("expected a fresh probe after the first was cancelled")
	}

	b.RecordSuccess(10 * time.Millisecond)
	if b.State() != Closed {
		t.Errorf("expected closed after successful probe, got %s", b.State())
	}
}

func TestBreaker_CancelProbeIgnoredWhileClosed(t *testing.T) {
	r, _ := newTestRegistry(Config{FailureThreshold: 2, RecoveryInterval: time.Minute})
	b := r.Get("websearch")

	b.CancelProbe()
	if b.State() != Closed {
		t.Errorf("expected closed, got %s", b.State())
	}
	if !b.Allow() {
		t.Error("closed breaker must keep allowing invocations")
	}
}
