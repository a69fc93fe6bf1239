// Package breaker isolates failing evidence providers with a per-provider
// circuit breaker. A provider whose circuit is open is skipped entirely
// until the recovery interval elapses, protecting latency budgets and
// avoiding wasted spend on a known-broken provider.
package breaker

import (
	"sync"
	"time"
)

// State of one circuit.
type State int

const (
	Closed   State = iota // Normal operation
	Open                  // Rejecting, provider is skipped
	HalfOpen              // Single trial permitted
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// latencyWindow is how many recent latency samples each provider keeps.
const latencyWindow = 32

// Config parameterizes all breakers in a registry.
type Config struct {
	// FailureThreshold is the consecutive-failure count that opens a
	// closed circuit. Default 5.
	FailureThreshold int

	// RecoveryInterval is how long an open circuit waits after the last
	// failure before permitting a half-open probe. Default 60s.
	RecoveryInterval time.Duration

	// OnStateChange, if set, is called on every transition.
	OnStateChange func(provider string, from, to State)
}

func (c Config) withDefaults() Config {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.RecoveryInterval <= 0 {
		c.RecoveryInterval = 60 * time.Second
	}
	return c
}

// Breaker is the failure-isolation state machine for one provider. It
// owns that provider's running health and is never shared across
// providers.
type Breaker struct {
	mu          sync.Mutex
	name        string
	cfg         Config
	state       State
	failures    int
	lastFailure time.Time
	probing     bool // A half-open trial has been handed out and not yet resolved
	latencies   []time.Duration
	now         func() time.Time
}

// Allow reports whether the provider may be invoked. In the open state
// it becomes half-open once the recovery interval has elapsed since the
// last failure, and exactly one caller receives the trial permit.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		return true
	case Open:
		if b.now().Sub(b.lastFailure) >= b.cfg.RecoveryInterval {
			b.transition(HalfOpen)
			b.probing = true
			return true
		}
		return false
	case HalfOpen:
		if b.probing {
			return false
		}
		b.probing = true
		return true
	default:
		return false
	}
}

// RecordSuccess resets the consecutive-failure counter and closes a
// half-open circuit. The latency sample feeds the health snapshot.
func (b *Breaker) RecordSuccess(latency time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	b.probing = false
	b.addLatency(latency)
	if b.state == HalfOpen {
		b.transition(Closed)
	}
}

// RecordFailure charges one failure. A half-open circuit reopens and the
// recovery timer restarts; a closed circuit opens once the threshold is
// reached. Quota denials and open-circuit skips are not failures and
// must never be recorded here.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.lastFailure = b.now()
	b.probing = false

	switch b.state {
	case Closed:
		if b.failures >= b.cfg.FailureThreshold {
			b.transition(Open)
		}
	case HalfOpen:
		b.transition(Open)
	}
}

// CancelProbe returns an unused half-open trial permit without judging
// the provider. Callers that obtained Allow() but could not complete a
// real invocation (the vendor denied it on quota, which is a load
// signal, not a health signal) must release the permit this way, or the
// circuit would wait forever for a probe verdict that never comes.
func (b *Breaker) CancelProbe() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == HalfOpen {
		b.probing = false
	}
}

// Reset forces the circuit closed and clears all counters. Manual
// intervention only.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	b.probing = false
	if b.state != Closed {
		b.transition(Closed)
	}
}

// State returns the current circuit state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Health is a point-in-time snapshot of one provider's running state.
type Health struct {
	Provider            string        `json:"provider"`
	State               string        `json:"state"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
	LastFailure         time.Time     `json:"last_failure,omitempty"`
	MeanLatency         time.Duration `json:"mean_latency_ms"`
	Samples             int           `json:"latency_samples"`
}

// Snapshot returns the provider's current health.
func (b *Breaker) Snapshot() Health {
	b.mu.Lock()
	defer b.mu.Unlock()

	h := Health{
		Provider:            b.name,
		State:               b.state.String(),
		ConsecutiveFailures: b.failures,
		LastFailure:         b.lastFailure,
		Samples:             len(b.latencies),
	}
	if len(b.latencies) > 0 {
		var sum time.Duration
		for _, l := range b.latencies {
			sum += l
		}
		h.MeanLatency = sum / time.Duration(len(b.latencies))
	}
	return h
}

func (b *Breaker) addLatency(l time.Duration) {
	b.latencies = append(b.latencies, l)
	if len(b.latencies) > latencyWindow {
		b.latencies = b.latencies[len(b.latencies)-latencyWindow:]
	}
}

// transition must be called with the lock held.
func (b *Breaker) transition(to State) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	if b.cfg.OnStateChange != nil {
		go b.cfg.OnStateChange(b.name, from, to)
	}
}

// Registry owns one Breaker per provider, created on demand. It is the
// injected health registry the orchestrator and CLI consult, so tests
// can substitute deterministic clocks.
type Registry struct {
	mu       sync.RWMutex
	cfg      Config
	breakers map[string]*Breaker
	now      func() time.Time
}

// NewRegistry creates a registry applying cfg (with defaults filled in)
// to every breaker it mints.
func NewRegistry(cfg Config) *Registry {
	return &Registry{
		cfg:      cfg.withDefaults(),
		breakers: make(map[string]*Breaker),
		now:      time.Now,
	}
}

// SetClock replaces the time source for all future and existing breakers.
func (r *Registry) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
	for _, b := range r.breakers {
		b.mu.Lock()
		b.now = now
		b.mu.Unlock()
	}
}

// Get returns the breaker for a provider, creating it closed if needed.
func (r *Registry) Get(name string) *Breaker {
	r.mu.RLock()
	b, ok := r.breakers[name]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok = r.breakers[name]; ok {
		return b
	}
	b = &Breaker{name: name, cfg: r.cfg, state: Closed, now: r.now}
	r.breakers[name] = b
	return b
}

// Snapshots returns the health of every known provider.
func (r *Registry) Snapshots() []Health {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Health, 0, len(r.breakers))
	for _, b := range r.breakers {
		out = append(out, b.Snapshot())
	}
	return out
}
