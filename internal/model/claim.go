package model

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// MaxClaimLength bounds the accepted claim text. Anything longer is
// rejected before a single provider is called.
const MaxClaimLength = 2000

// ErrInvalidClaim is returned for empty or over-length input. It is the
// only error that aborts a verification request synchronously.
var ErrInvalidClaim = errors.New("invalid claim: empty or over-length input")

// ClaimDomain is the declared subject area of a claim. It steers provider
// selection toward domain specialists.
type ClaimDomain string

const (
	DomainScience  ClaimDomain = "science"
	DomainHealth   ClaimDomain = "health"
	DomainPolitics ClaimDomain = "politics"
	DomainFinance  ClaimDomain = "finance"
	DomainGeneral  ClaimDomain = "general"
)

// ParseDomain maps a free-form domain hint to a known ClaimDomain,
// defaulting to general.
func ParseDomain(hint string) ClaimDomain {
	switch ClaimDomain(strings.ToLower(strings.TrimSpace(hint))) {
	case DomainScience:
		return DomainScience
	case DomainHealth:
		return DomainHealth
	case DomainPolitics:
		return DomainPolitics
	case DomainFinance:
		return DomainFinance
	default:
		return DomainGeneral
	}
}

// Claim is the normalized input of one verification request. Immutable
// once created.
type Claim struct {
	Text        string      `json:"text"`        // Original claim text as submitted
	Normalized  string      `json:"-"`           // Case-folded, whitespace-collapsed form
	Fingerprint string      `json:"fingerprint"` // Stable hash of the normalized text
	Domain      ClaimDomain `json:"domain"`
}

// NewClaim validates and normalizes raw claim text. Fingerprints are
// computed from the normalized form so trivially different spellings of
// the same claim share a cache entry.
func NewClaim(raw string, domain ClaimDomain) (Claim, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || len(trimmed) > MaxClaimLength {
		return Claim{}, ErrInvalidClaim
	}
	if domain == "" {
		domain = DomainGeneral
	}

	normalized := NormalizeClaim(trimmed)
	return Claim{
		Text:        trimmed,
		Normalized:  normalized,
		Fingerprint: Fingerprint(normalized),
		Domain:      domain,
	}, nil
}

// NormalizeClaim case-folds and collapses all whitespace runs to single
// spaces. Pure and deterministic.
func NormalizeClaim(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// Fingerprint returns the hex SHA-256 of the given normalized text.
func Fingerprint(normalized string) string {
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}
