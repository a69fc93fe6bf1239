// Package consensus aggregates the surviving provider results of one
// request into a single verdict, confidence, and pillar breakdown.
package consensus

import (
	"math"
	"strings"
	"time"

	"github.com/veriscore/veriscore/internal/model"
)

// cluster groups raw verdict labels into the three stances the engine
// actually reasons about.
type cluster int

const (
	clusterPositive cluster = iota
	clusterNegative
	clusterNeutral
)

// Engine implements the weighted-cluster aggregation algorithm.
type Engine struct {
	cfg model.ConsensusConfig
	now func() time.Time
}

// NewEngine creates an Engine from config. Zero values get the defaults
// (quorum 2, degraded ceiling 50).
func NewEngine(cfg model.ConsensusConfig) *Engine {
	if cfg.Quorum <= 0 {
		cfg.Quorum = 2
	}
	if cfg.DegradedCeiling <= 0 {
		cfg.DegradedCeiling = 50
	}
	if len(cfg.PillarWeights) == 0 {
		cfg.PillarWeights = model.DefaultConfig().Consensus.PillarWeights
	}
	return &Engine{cfg: cfg, now: time.Now}
}

// Aggregate produces the final consensus from successful provider
// results. Failed results must be filtered out by the caller; any that
// slip through are ignored. requested is the loop count the tier asked
// for — missing providers reduce confidence, never increase it.
//
// The engine always answers. Thin evidence yields a degraded result with
// capped confidence, never an error.
func (e *Engine) Aggregate(results []model.ProviderResult, descriptors map[string]model.ProviderDescriptor, requested int) *model.ConsensusResult {
	var (
		positive, negative, neutral float64
		used                        []string
		sources                     []model.Source
	)

	for _, r := range results {
		if !r.Success {
			continue
		}
		weight := 0.5
		if d, ok := descriptors[r.Provider]; ok {
			weight = d.Reliability
		}
		score := weight * clamp01(r.Confidence)

		switch clusterOf(r.Verdict) {
		case clusterPositive:
			positive += score
		case clusterNegative:
			negative += score
		default:
			neutral += score
		}
		used = append(used, r.Provider)
		sources = append(sources, r.Sources...)
	}

	if requested < len(used) {
		requested = len(used)
	}

	result := &model.ConsensusResult{
		ProvidersUsed: used,
		Sources:       sources,
		ComputedAt:    e.now().UTC(),
	}
	result.Degraded = len(used) < e.cfg.Quorum || len(used) < requested

	if len(used) == 0 {
		result.Verdict = model.VerdictUnverifiable
		result.Pillars = e.pillars(0, 0, 0, nil, 0)
		return result
	}

	// Contradiction: evidence lands in both opposing clusters.
	result.Contradiction = positive > 0 && negative > 0

	total := positive + negative + neutral
	winning := math.Max(positive, math.Max(negative, neutral))

	// Ties between the opposing clusters resolve to neutral, the
	// conservative choice, rather than an arbitrary winner.
	const eps = 1e-9
	switch {
	case positive > negative+eps && positive > neutral+eps:
		result.Verdict = model.VerdictTrue
	case negative > positive+eps && negative > neutral+eps:
		result.Verdict = model.VerdictFalse
	default:
		winning = neutral
		if result.Contradiction {
			result.Verdict = model.VerdictMixed
		} else {
			result.Verdict = model.VerdictUnverifiable
		}
	}

	// Each missing provider contributes a full unit of uncertainty mass
	// to the denominator. That keeps confidence monotone: removing any
	// successful result can only lower it, since no single result can
	// outweigh the unit it frees up.
	deficit := float64(requested - len(used))
	confidence := 0.0
	if total > 0 {
		confidence = 100 * winning / (total + deficit)
	}
	if result.Degraded && confidence > float64(e.cfg.DegradedCeiling) {
		confidence = float64(e.cfg.DegradedCeiling)
	}
	result.Confidence = int(math.Round(confidence))

	result.Pillars = e.pillars(positive, negative, neutral, sources, len(used))
	result.VeriScore = e.rollUp(result.Pillars)
	return result
}

// pillars computes the fixed-weight breakdown. Each pillar is scored
// independently from the same provider set, 0-100.
func (e *Engine) pillars(positive, negative, neutral float64, sources []model.Source, used int) map[string]float64 {
	p := map[string]float64{
		model.PillarSourceQuality:      50,
		model.PillarEvidence:           0,
		model.PillarModelConsensus:     0,
		model.PillarLogicalConsistency: 100,
	}
	if used == 0 {
		p[model.PillarLogicalConsistency] = 0
		return p
	}

	if len(sources) > 0 {
		var sum float64
		for _, s := range sources {
			sum += s.Credibility
		}
		p[model.PillarSourceQuality] = round1(100 * sum / float64(len(sources)))
	}

	// Two citations per provider counts as full evidence coverage.
	coverage := float64(len(sources)) / (2 * float64(used))
	p[model.PillarEvidence] = round1(100 * math.Min(coverage, 1))

	total := positive + negative + neutral
	if total > 0 {
		winning := math.Max(positive, math.Max(negative, neutral))
		p[model.PillarModelConsensus] = round1(100 * winning / total)
	}

	// Perfectly split opposing evidence scores zero consistency.
	if positive > 0 && negative > 0 {
		minority := math.Min(positive, negative)
		p[model.PillarLogicalConsistency] = round1(100 * (1 - 2*minority/(positive+negative)))
	}
	return p
}

// rollUp combines pillars with the configured weights into the 0-100
// VeriScore.
func (e *Engine) rollUp(pillars map[string]float64) int {
	var score, weights float64
	for name, w := range e.cfg.PillarWeights {
		if v, ok := pillars[name]; ok {
			score += w * v
			weights += w
		}
	}
	if weights == 0 {
		return 0
	}
	return int(math.Round(clamp(score/weights, 0, 100)))
}

// clusterOf maps a provider's raw verdict label into a stance cluster.
// Unknown labels are neutral.
func clusterOf(label string) cluster {
	switch strings.ToLower(strings.TrimSpace(strings.ReplaceAll(label, "_", "-"))) {
	case "true", "mostly-true", "partially-true", "accurate", "correct", "supported":
		return clusterPositive
	case "false", "mostly-false", "misleading", "inaccurate", "incorrect", "refuted":
		return clusterNegative
	default:
		return clusterNeutral
	}
}

func clamp01(v float64) float64 { return clamp(v, 0, 1) }

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
