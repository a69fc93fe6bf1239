package model

import "time"

// ProviderCategory classifies what kind of evidence a provider produces.
type ProviderCategory string

const (
	CategoryModelVerifier ProviderCategory = "model-verifier" // LLM-backed verification call
	CategorySearch        ProviderCategory = "search"         // Web/news search API
	CategoryFactCheck     ProviderCategory = "fact-check"     // Published fact-check lookup API
)

// ErrorKind is the taxonomy of provider-level failures. These degrade the
// evidence set but never surface to the caller as request errors.
type ErrorKind string

const (
	ErrKindNone          ErrorKind = ""
	ErrKindTimeout       ErrorKind = "timeout"
	ErrKindProviderError ErrorKind = "provider_error"
	ErrKindQuotaExceeded ErrorKind = "quota_exceeded"
	ErrKindCircuitOpen   ErrorKind = "circuit_open"
)

// ProviderDescriptor is the static identity of one evidence source.
// Configured at startup, read-only during a request.
type ProviderDescriptor struct {
	Name        string           `json:"name" yaml:"name"`
	Category    ProviderCategory `json:"category" yaml:"category"`
	Reliability float64          `json:"reliability" yaml:"reliability"` // Trust weight in [0,1]
	RPM         int              `json:"rpm" yaml:"rpm"`                 // Requests per minute, 0 = unlimited
	RPD         int              `json:"rpd" yaml:"rpd"`                 // Requests per day, 0 = unlimited
	Specialties []ClaimDomain    `json:"specialties,omitempty" yaml:"specialties,omitempty"`
}

// Specializes reports whether the provider is a declared specialist for
// the given claim domain.
func (d ProviderDescriptor) Specializes(domain ClaimDomain) bool {
	for _, s := range d.Specialties {
		if s == domain {
			return true
		}
	}
	return false
}

// Source is one citation returned by a provider, annotated with a
// credibility weight after the fact.
type Source struct {
	URL         string  `json:"url"`
	Title       string  `json:"title,omitempty"`
	Credibility float64 `json:"credibility"` // [0,1], 0.5 for unknown domains
}

// ProviderResult is the outcome of a single provider invocation. Vendor
// response shapes never leak past the adapter that produced this.
type ProviderResult struct {
	Provider   string        `json:"provider"`
	Verdict    string        `json:"verdict,omitempty"`    // Raw label, e.g. "true", "mostly-false"
	Confidence float64       `json:"confidence,omitempty"` // Raw confidence in [0,1]
	Sources    []Source      `json:"sources,omitempty"`
	Latency    time.Duration `json:"latency_ms"`
	Success    bool          `json:"success"`
	ErrorKind  ErrorKind     `json:"error_kind,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// Failed builds a ProviderResult for an invocation that produced no
// usable verdict. Failed results only ever feed health tracking.
func Failed(provider string, kind ErrorKind, err error, latency time.Duration) ProviderResult {
	r := ProviderResult{
		Provider:  provider,
		Latency:   latency,
		Success:   false,
		ErrorKind: kind,
	}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}
