package verify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/veriscore/veriscore/internal/breaker"
	"github.com/veriscore/veriscore/internal/cache"
	"github.com/veriscore/veriscore/internal/consensus"
	"github.com/veriscore/veriscore/internal/credibility"
	"github.com/veriscore/veriscore/internal/governor"
	"github.com/veriscore/veriscore/internal/history"
	"github.com/veriscore/veriscore/internal/model"
	"github.com/veriscore/veriscore/internal/provider"
	"github.com/veriscore/veriscore/internal/tier"
)

// fakeAdapter returns a canned result and counts invocations.
type fakeAdapter struct {
	name string

	mu     sync.Mutex
	result model.ProviderResult
	calls  int
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) Invoke(ctx context.Context, claim model.Claim, timeout time.Duration) model.ProviderResult {
	f.mu.Lock()
	f.calls++
	r := f.result
	f.mu.Unlock()
	r.Provider = f.name
	return r
}

func (f *fakeAdapter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeAdapter) setResult(r model.ProviderResult) {
	f.mu.Lock()
	f.result = r
	f.mu.Unlock()
}

func verdictResult(verdict string, confidence float64, urls ...string) model.ProviderResult {
	r := model.ProviderResult{
		Verdict:    verdict,
		Confidence: confidence,
		Latency:    50 * time.Millisecond,
		Success:    true,
	}
	for _, u := range urls {
		r.Sources = append(r.Sources, model.Source{URL: u})
	}
	return r
}

func timeoutResult() model.ProviderResult {
	return model.Failed("", model.ErrKindTimeout, errors.New("context deadline exceeded"), 100*time.Millisecond)
}

// harness bundles an orchestrator with the fakes behind it.
type harness struct {
	orch     *Orchestrator
	adapters map[string]*fakeAdapter
	registry *provider.Registry
	breakers *breaker.Registry
	cache    *cache.ResultCache
}

func newHarness(t *testing.T, descriptors []model.ProviderDescriptor, canned map[string]model.ProviderResult, loopCount int) *harness {
	t.Helper()

	registry := provider.NewRegistry()
	adapters := make(map[string]*fakeAdapter, len(descriptors))
	for _, d := range descriptors {
		fa := &fakeAdapter{name: d.Name, result: canned[d.Name]}
		adapters[d.Name] = fa
		registry.Register(fa)
	}

	tiers := tier.NewController(tier.NewStaticEntitlements(map[string]model.TierConfig{
		"pro": {LoopCount: loopCount, Timeout: 8 * time.Second},
	}), descriptors)

	breakers := breaker.NewRegistry(breaker.Config{
		FailureThreshold: 5,
		RecoveryInterval: time.Minute,
	})

	resultCache := cache.NewResultCache(cache.NewMemoryCache(time.Hour, time.Hour), time.Hour)

	orch, err := New(Deps{
		Registry:    registry,
		Tiers:       tiers,
		Governor:    governor.New(),
		Breakers:    breakers,
		Engine:      consensus.NewEngine(model.DefaultConfig().Consensus),
		Cache:       resultCache,
		Credibility: credibility.DefaultTable(),
		Logger:      zap.NewNop(),
	}, descriptors)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	return &harness{orch: orch, adapters: adapters, registry: registry, breakers: breakers, cache: resultCache}
}

func fourProviders() []model.ProviderDescriptor {
	return []model.ProviderDescriptor{
		{Name: "alpha", Category: model.CategoryModelVerifier, Reliability: 1.0},
		{Name: "beta", Category: model.CategoryModelVerifier, Reliability: 1.0},
		{Name: "gamma", Category: model.CategoryFactCheck, Reliability: 1.0},
		{Name: "delta", Category: model.CategorySearch, Reliability: 1.0},
	}
}

func TestVerify_HighAgreement(t *testing.T) {
	h := newHarness(t, fourProviders(), map[string]model.ProviderResult{
		"alpha": verdictResult("true", 0.9, "https://nature.com/a"),
		"beta":  verdictResult("true", 0.9),
		"gamma": verdictResult("mostly-true", 0.9),
		"delta": verdictResult("unverifiable", 0.5),
	}, 4)

	res, err := h.orch.Verify(context.Background(), "Water boils at 100C at sea level", model.DomainScience, "pro")
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}

	if res.Verdict != model.VerdictTrue {
		t.Errorf("Expected TRUE, got %s", res.Verdict)
	}
	if res.Confidence <= 80 {
		t.Errorf("Expected confidence above 80, got %d", res.Confidence)
	}
	if res.Degraded {
		t.Error("Expected non-degraded result with all providers answering")
	}
	if len(res.ProvidersUsed) != 4 {
		t.Errorf("Expected 4 providers used, got %v", res.ProvidersUsed)
	}
}

func TestVerify_SourceCredibilityAnnotated(t *testing.T) {
	h := newHarness(t, fourProviders(), map[string]model.ProviderResult{
		"alpha": verdictResult("true", 0.9, "https://www.nature.com/articles/x"),
		"beta":  verdictResult("true", 0.9),
		"gamma": verdictResult("true", 0.9),
		"delta": verdictResult("true", 0.9),
	}, 4)

	res, err := h.orch.Verify(context.Background(), "A well sourced claim", model.DomainScience, "pro")
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if len(res.Sources) != 1 {
		t.Fatalf("Expected 1 source, got %d", len(res.Sources))
	}
	if res.Sources[0].Credibility != 0.95 {
		t.Errorf("Expected nature.com credibility 0.95, got %f", res.Sources[0].Credibility)
	}
}

func TestVerify_PartialTimeoutsDegrade(t *testing.T) {
	h := newHarness(t, fourProviders(), map[string]model.ProviderResult{
		"alpha": verdictResult("true", 0.95),
		"beta":  verdictResult("true", 0.9),
		"gamma": timeoutResult(),
		"delta": timeoutResult(),
	}, 4)

	res, err := h.orch.Verify(context.Background(), "A slow claim", model.DomainGeneral, "pro")
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}

	if !res.Degraded {
		t.Error("Expected degraded result with half the providers timing out")
	}
	if res.Confidence > 50 {
		t.Errorf("Expected degraded confidence at most 50, got %d", res.Confidence)
	}
	if len(res.ProvidersUsed) != 2 {
		t.Errorf("Expected 2 providers used, got %v", res.ProvidersUsed)
	}

	// Degraded results are never memoized: a retry invokes again.
	if _, ok := h.cache.Get(model.Fingerprint(model.NormalizeClaim("A slow claim"))); ok {
		t.Error("Expected degraded result to stay out of the cache")
	}
	if _, err := h.orch.Verify(context.Background(), "A slow claim", model.DomainGeneral, "pro"); err != nil {
		t.Fatalf("Second verify failed: %v", err)
	}
	if got := h.adapters["alpha"].callCount(); got != 2 {
		t.Errorf("Expected 2 invocations after degraded retry, got %d", got)
	}
}

func TestVerify_CacheIdempotence(t *testing.T) {
	h := newHarness(t, fourProviders(), map[string]model.ProviderResult{
		"alpha": verdictResult("true", 0.9),
		"beta":  verdictResult("true", 0.9),
		"gamma": verdictResult("true", 0.9),
		"delta": verdictResult("true", 0.9),
	}, 4)

	first, err := h.orch.Verify(context.Background(), "  Water   Boils at 100c at sea level ", model.DomainScience, "pro")
	if err != nil {
		t.Fatalf("First verify failed: %v", err)
	}

	// Same claim modulo case and whitespace hits the cache.
	second, err := h.orch.Verify(context.Background(), "water boils at 100c at sea level", model.DomainScience, "pro")
	if err != nil {
		t.Fatalf("Second verify failed: %v", err)
	}

	if second.Verdict != first.Verdict || second.Confidence != first.Confidence {
		t.Errorf("Cached result differs: %+v vs %+v", second, first)
	}
	for name, fa := range h.adapters {
		if got := fa.callCount(); got != 1 {
			t.Errorf("Expected 1 invocation of %s across both verifies, got %d", name, got)
		}
	}
}

func TestVerify_QuotaDenialDoesNotChargeBreaker(t *testing.T) {
	descriptors := []model.ProviderDescriptor{
		{Name: "limited", Category: model.CategorySearch, Reliability: 1.0, RPM: 1},
	}
	h := newHarness(t, descriptors, map[string]model.ProviderResult{
		"limited": verdictResult("true", 0.9),
	}, 1)

	if _, err := h.orch.Verify(context.Background(), "First claim", model.DomainGeneral, "pro"); err != nil {
		t.Fatalf("First verify failed: %v", err)
	}
	// Single-provider results stay below quorum so nothing was cached;
	// the second request re-plans and hits the exhausted quota.
	if _, err := h.orch.Verify(context.Background(), "Second claim", model.DomainGeneral, "pro"); err != nil {
		t.Fatalf("Second verify failed: %v", err)
	}

	if got := h.adapters["limited"].callCount(); got != 1 {
		t.Errorf("Expected quota to block the second invocation, got %d calls", got)
	}
	if state := h.breakers.Get("limited").State(); state != breaker.Closed {
		t.Errorf("Expected breaker to stay closed after quota denial, got %s", state)
	}
}

func TestVerify_OpenCircuitSkipsProvider(t *testing.T) {
	h := newHarness(t, fourProviders(), map[string]model.ProviderResult{
		"alpha": verdictResult("true", 0.9),
		"beta":  verdictResult("true", 0.9),
		"gamma": verdictResult("true", 0.9),
		"delta": verdictResult("true", 0.9),
	}, 4)

	br := h.breakers.Get("delta")
	for i := 0; i < 5; i++ {
		br.RecordFailure()
	}
	if br.State() != breaker.Open {
		t.Fatalf("Expected open breaker, got %s", br.State())
	}

	res, err := h.orch.Verify(context.Background(), "A claim with one sick provider", model.DomainGeneral, "pro")
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}

	if got := h.adapters["delta"].callCount(); got != 0 {
		t.Errorf("Expected open circuit to skip delta, got %d calls", got)
	}
	if len(res.ProvidersUsed) != 3 {
		t.Errorf("Expected 3 providers used, got %v", res.ProvidersUsed)
	}
	if !res.Degraded {
		t.Error("Expected degraded result when a planned provider was skipped")
	}
}

func TestVerify_InvalidClaim(t *testing.T) {
	h := newHarness(t, fourProviders(), nil, 4)

	if _, err := h.orch.Verify(context.Background(), "   ", model.DomainGeneral, "pro"); !errors.Is(err, model.ErrInvalidClaim) {
		t.Errorf("Expected ErrInvalidClaim, got %v", err)
	}
	for name, fa := range h.adapters {
		if fa.callCount() != 0 {
			t.Errorf("Expected no invocations of %s for invalid claim", name)
		}
	}
}

func TestVerify_UnknownTier(t *testing.T) {
	h := newHarness(t, fourProviders(), nil, 4)

	if _, err := h.orch.Verify(context.Background(), "A valid claim", model.DomainGeneral, "platinum"); err == nil {
		t.Error("Expected error for unknown tier")
	}
}

func TestVerify_QuotaProbeDoesNotLockOutProvider(t *testing.T) {
	descriptors := []model.ProviderDescriptor{
		{Name: "flaky", Category: model.CategorySearch, Reliability: 1.0},
	}
	h := newHarness(t, descriptors, map[string]model.ProviderResult{
		"flaky": model.Failed("", model.ErrKindProviderError, errors.New("boom"), 10*time.Millisecond),
	}, 1)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	h.breakers.SetClock(func() time.Time { return now })

	for i := 0; i < 5; i++ {
		claim := fmt.Sprintf("Failing claim number %d", i)
		if _, err := h.orch.Verify(context.Background(), claim, model.DomainGeneral, "pro"); err != nil {
			t.Fatalf("Verify %d failed: %v", i, err)
		}
	}
	if state := h.breakers.Get("flaky").State(); state != breaker.Open {
		t.Fatalf("Expected open breaker after 5 failures, got %s", state)
	}

	// Recovery elapses but the half-open probe runs into a vendor 429.
	now = now.Add(61 * time.Second)
	h.adapters["flaky"].setResult(model.Failed("", model.ErrKindQuotaExceeded, errors.New("too many requests"), 10*time.Millisecond))
	if _, err := h.orch.Verify(context.Background(), "Probe-time claim", model.DomainGeneral, "pro"); err != nil {
		t.Fatalf("Probe verify failed: %v", err)
	}
	if got := h.adapters["flaky"].callCount(); got != 6 {
		t.Fatalf("Expected the probe to reach the adapter, got %d calls", got)
	}

	// The vendor recovers; the provider must be reachable again.
	h.adapters["flaky"].setResult(verdictResult("true", 0.9))
	res, err := h.orch.Verify(context.Background(), "Post-recovery claim", model.DomainGeneral, "pro")
	if err != nil {
		t.Fatalf("Post-recovery verify failed: %v", err)
	}
	if got := h.adapters["flaky"].callCount(); got != 7 {
		t.Errorf("Expected a fresh probe after the quota-denied one, got %d calls", got)
	}
	if state := h.breakers.Get("flaky").State(); state != breaker.Closed {
		t.Errorf("Expected closed breaker after successful probe, got %s", state)
	}
	if len(res.ProvidersUsed) != 1 {
		t.Errorf("Expected the recovered provider in the result, got %v", res.ProvidersUsed)
	}
}

// slowAdapter blocks until the request context is cancelled.
type slowAdapter struct {
	name string

	mu    sync.Mutex
	calls int
}

func (s *slowAdapter) Name() string { return s.name }

func (s *slowAdapter) Invoke(ctx context.Context, claim model.Claim, timeout time.Duration) model.ProviderResult {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	started := time.Now()
	select {
	case <-ctx.Done():
		return model.Failed(s.name, model.ErrKindTimeout, ctx.Err(), time.Since(started))
	case <-time.After(10 * time.Second):
		r := verdictResult("true", 0.9)
		r.Provider = s.name
		return r
	}
}

func TestVerify_CancellationAggregatesPartialResults(t *testing.T) {
	h := newHarness(t, fourProviders(), map[string]model.ProviderResult{
		"alpha": verdictResult("true", 0.9),
		"beta":  verdictResult("true", 0.9),
		"gamma": verdictResult("true", 0.9),
		"delta": verdictResult("true", 0.9),
	}, 4)
	// delta never answers before the deadline.
	h.registry.Register(&slowAdapter{name: "delta"})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	res, err := h.orch.Verify(ctx, "A claim cut short", model.DomainGeneral, "pro")
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}

	if res.Verdict != model.VerdictTrue {
		t.Errorf("Expected TRUE from the completed providers, got %s", res.Verdict)
	}
	if len(res.ProvidersUsed) != 3 {
		t.Errorf("Expected 3 completed providers, got %v", res.ProvidersUsed)
	}
	if !res.Degraded {
		t.Error("Expected degraded consensus when a provider was cancelled")
	}
}

// recordingStore captures history writes after an artificial delay.
type recordingStore struct {
	delay time.Duration

	mu     sync.Mutex
	saved  []history.Record
	closed bool
}

func (r *recordingStore) Save(rec history.Record) error {
	time.Sleep(r.delay)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return errors.New("store closed")
	}
	r.saved = append(r.saved, rec)
	return nil
}

func (r *recordingStore) Recent(limit int) ([]history.Record, error) { return nil, nil }

func (r *recordingStore) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func TestVerify_WaitDrainsHistoryWrites(t *testing.T) {
	h := newHarness(t, fourProviders(), map[string]model.ProviderResult{
		"alpha": verdictResult("true", 0.9),
		"beta":  verdictResult("true", 0.9),
		"gamma": verdictResult("true", 0.9),
		"delta": verdictResult("true", 0.9),
	}, 4)
	store := &recordingStore{delay: 50 * time.Millisecond}
	h.orch.deps.History = store

	if _, err := h.orch.Verify(context.Background(), "A claim worth remembering", model.DomainGeneral, "pro"); err != nil {
		t.Fatalf("Verify failed: %v", err)
	}

	// Wait must block until the pending save lands; only then is it
	// safe to close the store.
	h.orch.Wait()
	_ = store.Close()

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.saved) != 1 {
		t.Fatalf("Expected 1 history record after Wait, got %d", len(store.saved))
	}
	rec := store.saved[0]
	if rec.Tier != "pro" || rec.Claim != "A claim worth remembering" || rec.RequestID == "" {
		t.Errorf("History record fields not populated: %+v", rec)
	}
	if rec.Result == nil || rec.Result.Verdict != model.VerdictTrue {
		t.Errorf("History record missing result: %+v", rec.Result)
	}
}
