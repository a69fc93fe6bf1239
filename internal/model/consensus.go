package model

import "time"

// Verdict is the final synthesized answer for a claim.
type Verdict string

const (
	VerdictTrue         Verdict = "TRUE"
	VerdictFalse        Verdict = "FALSE"
	VerdictMixed        Verdict = "MIXED"
	VerdictUnverifiable Verdict = "UNVERIFIABLE"
)

// Pillar names of the fixed-weight confidence roll-up. Weights live in
// configuration, not code.
const (
	PillarSourceQuality      = "source_quality"
	PillarEvidence           = "evidence"
	PillarModelConsensus     = "model_consensus"
	PillarLogicalConsistency = "logical_consistency"
)

// ConsensusResult is the final output of one verification request,
// immutable once produced by the consensus engine.
type ConsensusResult struct {
	Verdict       Verdict            `json:"verdict"`
	Confidence    int                `json:"confidence"` // 0-100, quorum-penalized
	VeriScore     int                `json:"veriscore"`  // 0-100 weighted pillar roll-up
	Pillars       map[string]float64 `json:"pillar_scores"`
	Contradiction bool               `json:"contradiction"`
	Degraded      bool               `json:"degraded"`
	ProvidersUsed []string           `json:"providers_used"`
	Sources       []Source           `json:"sources,omitempty"`
	ComputedAt    time.Time          `json:"computed_at"`
}
