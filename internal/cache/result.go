package cache

import (
	"encoding/json"
	"time"

	"github.com/veriscore/veriscore/internal/model"
)

// ResultCache memoizes consensus results keyed exclusively by claim
// fingerprint. A hit is the only path that answers a request with zero
// external calls.
type ResultCache struct {
	backend Cache
	ttl     time.Duration
}

// NewResultCache wraps a byte cache with consensus-result semantics.
func NewResultCache(backend Cache, ttl time.Duration) *ResultCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &ResultCache{backend: backend, ttl: ttl}
}

// Get returns the memoized result for a fingerprint, if present and not
// expired. The stored JSON round-trips byte-identically, so a second
// submission of the same claim yields the same result.
func (rc *ResultCache) Get(fingerprint string) (*model.ConsensusResult, bool) {
	raw, found := rc.backend.Get(Key(fingerprint))
	if !found {
		return nil, false
	}
	var result model.ConsensusResult
	if err := json.Unmarshal(raw, &result); err != nil {
		// Corrupt entry: drop it and treat as a miss.
		_ = rc.backend.Delete(Key(fingerprint))
		return nil, false
	}
	return &result, true
}

// Put memoizes a result. Degraded results are never written, so a
// transient provider outage cannot poison future lookups for the claim.
func (rc *ResultCache) Put(fingerprint string, result *model.ConsensusResult) error {
	if result == nil || result.Degraded {
		return nil
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return rc.backend.Set(Key(fingerprint), raw, rc.ttl)
}

// Clear drops every memoized result. Run after a credibility-table edit,
// when results scored under the old table should stop answering.
func (rc *ResultCache) Clear() error {
	return rc.backend.Clear()
}
