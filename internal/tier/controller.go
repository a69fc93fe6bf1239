// Package tier decides, per request, how many and which providers to
// invoke for a subscription tier.
package tier

import (
	"fmt"
	"time"

	"github.com/veriscore/veriscore/internal/model"
)

// Entitlements is the read-only boundary to tenant tier configuration.
// Production wires the static config table; a billing service can stand
// in behind the same interface.
type Entitlements interface {
	TierConfig(tierName string) (model.TierConfig, error)
}

// StaticEntitlements serves tier configs from the loaded configuration.
type StaticEntitlements struct {
	tiers map[string]model.TierConfig
}

// NewStaticEntitlements wraps a config tier table.
func NewStaticEntitlements(tiers map[string]model.TierConfig) *StaticEntitlements {
	return &StaticEntitlements{tiers: tiers}
}

// TierConfig returns the config for tierName.
func (s *StaticEntitlements) TierConfig(tierName string) (model.TierConfig, error) {
	cfg, ok := s.tiers[tierName]
	if !ok {
		return model.TierConfig{}, fmt.Errorf("unknown tier: %s", tierName)
	}
	return cfg, nil
}

// Plan is the provider fan-out decision for one request.
type Plan struct {
	Tier      string
	LoopCount int // Providers actually selected, never above the entitlement
	Timeout   time.Duration
	Providers []model.ProviderDescriptor
}

// Controller builds invocation plans from the configured provider set
// and the entitlement boundary.
type Controller struct {
	entitlements Entitlements
	providers    []model.ProviderDescriptor
}

// NewController creates a Controller over the configured providers.
func NewController(entitlements Entitlements, providers []model.ProviderDescriptor) *Controller {
	return &Controller{entitlements: entitlements, providers: providers}
}

// Select returns the ordered candidate list for a tier and claim domain:
// domain specialists first, generic providers filling remaining slots,
// truncated at the tier's loop count. The cap is hard; a tier can never
// fan out to more providers than its entitlement.
func (c *Controller) Select(tierName string, domain model.ClaimDomain) (Plan, error) {
	cfg, err := c.entitlements.TierConfig(tierName)
	if err != nil {
		return Plan{}, err
	}

	allowed := c.allowedProviders(cfg)

	ordered := make([]model.ProviderDescriptor, 0, len(allowed))
	for _, d := range allowed {
		if d.Specializes(domain) {
			ordered = append(ordered, d)
		}
	}
	for _, d := range allowed {
		if !d.Specializes(domain) {
			ordered = append(ordered, d)
		}
	}

	if len(ordered) > cfg.LoopCount {
		ordered = ordered[:cfg.LoopCount]
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return Plan{
		Tier:      tierName,
		LoopCount: len(ordered),
		Timeout:   timeout,
		Providers: ordered,
	}, nil
}

// allowedProviders filters the configured providers by the tier's
// allowlist; an empty allowlist admits every configured provider.
func (c *Controller) allowedProviders(cfg model.TierConfig) []model.ProviderDescriptor {
	if len(cfg.AllowedProviders) == 0 {
		return c.providers
	}
	allowed := make(map[string]bool, len(cfg.AllowedProviders))
	for _, name := range cfg.AllowedProviders {
		allowed[name] = true
	}
	out := make([]model.ProviderDescriptor, 0, len(cfg.AllowedProviders))
	for _, d := range c.providers {
		if allowed[d.Name] {
			out = append(out, d)
		}
	}
	return out
}
