// Package verify runs the end-to-end claim verification request:
// cache lookup, tier planning, guarded provider fan-out and consensus.
package verify

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/veriscore/veriscore/internal/breaker"
	"github.com/veriscore/veriscore/internal/cache"
	"github.com/veriscore/veriscore/internal/consensus"
	"github.com/veriscore/veriscore/internal/credibility"
	"github.com/veriscore/veriscore/internal/governor"
	"github.com/veriscore/veriscore/internal/history"
	"github.com/veriscore/veriscore/internal/metrics"
	"github.com/veriscore/veriscore/internal/model"
	"github.com/veriscore/veriscore/internal/provider"
	"github.com/veriscore/veriscore/internal/tier"
)

// Deps are the collaborators the orchestrator fans out over. Cache and
// History may be nil when disabled.
type Deps struct {
	Registry    *provider.Registry
	Tiers       *tier.Controller
	Governor    *governor.Governor
	Breakers    *breaker.Registry
	Engine      *consensus.Engine
	Cache       *cache.ResultCache
	Credibility *credibility.Table
	History     history.Store
	Logger      *zap.Logger
}

// Orchestrator coordinates one verification request from raw claim text
// to a ConsensusResult. A provider failure degrades the evidence set but
// never fails the request.
type Orchestrator struct {
	deps        Deps
	descriptors map[string]model.ProviderDescriptor
	historyWG   sync.WaitGroup
}

// New creates an orchestrator over the configured providers.
func New(deps Deps, providers []model.ProviderDescriptor) (*Orchestrator, error) {
	if deps.Registry == nil || deps.Tiers == nil || deps.Governor == nil ||
		deps.Breakers == nil || deps.Engine == nil || deps.Credibility == nil {
		return nil, fmt.Errorf("missing orchestrator dependency")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	descriptors := make(map[string]model.ProviderDescriptor, len(providers))
	for _, d := range providers {
		descriptors[d.Name] = d
		deps.Governor.Register(d.Name, d.RPM, d.RPD)
	}

	return &Orchestrator{deps: deps, descriptors: descriptors}, nil
}

// Verify runs the full pipeline for one claim. The only errors it
// returns are claim validation and tier resolution failures; everything
// past that degrades into the result instead.
func (o *Orchestrator) Verify(ctx context.Context, text string, domain model.ClaimDomain, tierName string) (*model.ConsensusResult, error) {
	claim, err := model.NewClaim(text, domain)
	if err != nil {
		return nil, err
	}

	requestID := uuid.NewString()
	log := o.deps.Logger.With(
		zap.String("request_id", requestID),
		zap.String("fingerprint", claim.Fingerprint),
		zap.String("tier", tierName),
	)

	if o.deps.Cache != nil {
		if cached, ok := o.deps.Cache.Get(claim.Fingerprint); ok {
			metrics.CacheLookups.WithLabelValues("hit").Inc()
			log.Info("cache hit", zap.String("verdict", string(cached.Verdict)))
			return cached, nil
		}
		metrics.CacheLookups.WithLabelValues("miss").Inc()
	}

	plan, err := o.deps.Tiers.Select(tierName, claim.Domain)
	if err != nil {
		return nil, err
	}

	results := o.fanOut(ctx, claim, plan)
	o.annotateSources(results)

	result := o.deps.Engine.Aggregate(results, o.descriptors, len(plan.Providers))
	metrics.Verdicts.WithLabelValues(string(result.Verdict), strconv.FormatBool(result.Degraded)).Inc()

	if o.deps.Cache != nil {
		if err := o.deps.Cache.Put(claim.Fingerprint, result); err != nil {
			log.Warn("cache write failed", zap.Error(err))
		}
	}

	if o.deps.History != nil {
		rec := history.Record{
			RequestID:   requestID,
			Claim:       claim.Text,
			Fingerprint: claim.Fingerprint,
			Domain:      claim.Domain,
			Tier:        tierName,
			Result:      result,
			CreatedAt:   time.Now().UTC(),
		}
		// History is best-effort and must not delay the response.
		o.historyWG.Add(1)
		go func() {
			defer o.historyWG.Done()
			if err := o.deps.History.Save(rec); err != nil {
				log.Warn("history save failed", zap.Error(err))
			}
		}()
	}

	log.Info("verification complete",
		zap.String("verdict", string(result.Verdict)),
		zap.Int("confidence", result.Confidence),
		zap.Int("veriscore", result.VeriScore),
		zap.Bool("degraded", result.Degraded),
		zap.Strings("providers", result.ProvidersUsed),
	)
	return result, nil
}

// Wait blocks until all pending history writes have finished. Callers
// must drain it before closing the history store.
func (o *Orchestrator) Wait() {
	o.historyWG.Wait()
}

// fanOut invokes every planned provider concurrently. Each slot of the
// returned slice is filled exactly once, so failed or skipped providers
// still appear with their error kind.
func (o *Orchestrator) fanOut(ctx context.Context, claim model.Claim, plan tier.Plan) []model.ProviderResult {
	results := make([]model.ProviderResult, len(plan.Providers))

	g, gctx := errgroup.WithContext(ctx)
	for i, desc := range plan.Providers {
		i, desc := i, desc
		g.Go(func() error {
			results[i] = o.invokeOne(gctx, claim, desc, plan.Timeout)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// invokeOne runs the guard chain for a single provider: quota first,
// then circuit, then the adapter call. Denials never charge the breaker;
// only invocations that actually ran do.
func (o *Orchestrator) invokeOne(ctx context.Context, claim model.Claim, desc model.ProviderDescriptor, timeout time.Duration) model.ProviderResult {
	adapter, ok := o.deps.Registry.Lookup(desc.Name)
	if !ok {
		return model.Failed(desc.Name, model.ErrKindProviderError, fmt.Errorf("provider %q not registered", desc.Name), 0)
	}

	if !o.deps.Governor.Acquire(desc.Name) {
		metrics.QuotaDenials.WithLabelValues(desc.Name).Inc()
		metrics.ProviderInvocations.WithLabelValues(desc.Name, string(model.ErrKindQuotaExceeded)).Inc()
		return model.Failed(desc.Name, model.ErrKindQuotaExceeded, fmt.Errorf("rate quota exhausted"), 0)
	}

	br := o.deps.Breakers.Get(desc.Name)
	if !br.Allow() {
		metrics.ProviderInvocations.WithLabelValues(desc.Name, string(model.ErrKindCircuitOpen)).Inc()
		return model.Failed(desc.Name, model.ErrKindCircuitOpen, fmt.Errorf("circuit open"), 0)
	}

	res := adapter.Invoke(ctx, claim, timeout)
	metrics.ProviderLatency.WithLabelValues(desc.Name).Observe(res.Latency.Seconds())

	if res.Success {
		br.RecordSuccess(res.Latency)
		metrics.ProviderInvocations.WithLabelValues(desc.Name, "success").Inc()
		return res
	}

	// Quota errors reported by the vendor are load signals, not health
	// signals, and do not move the breaker. A probe permit held for this
	// call must still be returned or the circuit stays half-open forever.
	if res.ErrorKind == model.ErrKindQuotaExceeded {
		br.CancelProbe()
	} else {
		br.RecordFailure()
	}
	metrics.ProviderInvocations.WithLabelValues(desc.Name, string(res.ErrorKind)).Inc()
	return res
}

// annotateSources stamps every cited source with its credibility weight.
func (o *Orchestrator) annotateSources(results []model.ProviderResult) {
	for i := range results {
		for j := range results[i].Sources {
			results[i].Sources[j].Credibility = o.deps.Credibility.Score(results[i].Sources[j].URL)
		}
	}
}
