package model

import "time"

// Config is the full runtime configuration.
//
// Hierarchy (highest to lowest priority): CLI flags, VERISCORE_* env vars,
// ~/.veriscore/config.yaml, built-in defaults.
type Config struct {
	Logging     LoggingConfig         `yaml:"logging"`
	HTTP        HTTPConfig            `yaml:"http"`
	Cache       CacheConfig           `yaml:"cache"`
	Consensus   ConsensusConfig       `yaml:"consensus"`
	Credibility CredibilityConfig     `yaml:"credibility"`
	Breaker     BreakerConfig         `yaml:"breaker"`
	Providers   []ProviderDescriptor  `yaml:"providers"`
	Tiers       map[string]TierConfig `yaml:"tiers"`
	LLM         LLMConfig             `yaml:"llm"`
	History     HistoryConfig         `yaml:"history"`
}

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or console
}

// HTTPConfig applies to the shared outbound client used by the
// search/fact-check adapters.
type HTTPConfig struct {
	Timeout    time.Duration `yaml:"timeout"`
	UserAgent  string        `yaml:"user_agent"`
	PerHostRPS float64       `yaml:"per_host_rps"` // Outbound pacing per vendor host
	Burst      int           `yaml:"burst"`
	HTTPProxy  string        `yaml:"http_proxy"`
	HTTPSProxy string        `yaml:"https_proxy"`
}

// CacheConfig controls the consensus result cache.
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Backend   string        `yaml:"backend"` // memory or redis
	TTL       time.Duration `yaml:"ttl"`
	RedisAddr string        `yaml:"redis_addr"`
	RedisDB   int           `yaml:"redis_db"`
}

// ConsensusConfig parameterizes the aggregation algorithm.
type ConsensusConfig struct {
	Quorum          int                `yaml:"quorum"`           // Min successes for a non-degraded result
	DegradedCeiling int                `yaml:"degraded_ceiling"` // Confidence cap when degraded
	PillarWeights   map[string]float64 `yaml:"pillar_weights"`   // Must sum to 1.0
}

// CredibilityConfig points at the hot-reloadable domain trust table.
type CredibilityConfig struct {
	TablePath    string  `yaml:"table_path"` // YAML file, optional; built-ins apply when empty
	DefaultScore float64 `yaml:"default_score"`
	Watch        bool    `yaml:"watch"` // Reload the table on file changes
}

// BreakerConfig parameterizes per-provider circuit breakers.
type BreakerConfig struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	RecoveryInterval time.Duration `yaml:"recovery_interval"`
}

// TierConfig is what the entitlement boundary hands back per tenant tier:
// how many providers a request may fan out to and which ones.
type TierConfig struct {
	LoopCount        int           `yaml:"loop_count"`
	Timeout          time.Duration `yaml:"timeout"` // Per-invocation timeout for this tier
	AllowedProviders []string      `yaml:"allowed_providers,omitempty"`
}

// LLMConfig holds credentials for the model-verifier adapters.
type LLMConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// HistoryConfig controls the optional SQLite history store.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "info", Format: "console"},
		HTTP: HTTPConfig{
			Timeout:    20 * time.Second,
			UserAgent:  "VeriScore/0.1 (+https://github.com/veriscore/veriscore)",
			PerHostRPS: 5,
			Burst:      5,
		},
		Cache: CacheConfig{
			Enabled: true,
			Backend: "memory",
			TTL:     time.Hour,
		},
		Consensus: ConsensusConfig{
			Quorum:          2,
			DegradedCeiling: 50,
			PillarWeights: map[string]float64{
				PillarSourceQuality:      0.25,
				PillarEvidence:           0.20,
				PillarModelConsensus:     0.35,
				PillarLogicalConsistency: 0.20,
			},
		},
		Credibility: CredibilityConfig{DefaultScore: 0.5},
		Breaker: BreakerConfig{
			FailureThreshold: 5,
			RecoveryInterval: 60 * time.Second,
		},
		Providers: []ProviderDescriptor{
			{
				Name:        "openai-verifier",
				Category:    CategoryModelVerifier,
				Reliability: 0.90,
				RPM:         60,
				RPD:         5000,
			},
			{
				Name:        "claimreview",
				Category:    CategoryFactCheck,
				Reliability: 0.85,
				RPM:         100,
				RPD:         10000,
				Specialties: []ClaimDomain{DomainPolitics, DomainHealth},
			},
			{
				Name:        "websearch",
				Category:    CategorySearch,
				Reliability: 0.70,
				RPM:         100,
				RPD:         2000,
			},
		},
		Tiers: map[string]TierConfig{
			"free":       {LoopCount: 4, Timeout: 8 * time.Second},
			"pro":        {LoopCount: 5, Timeout: 12 * time.Second},
			"enterprise": {LoopCount: 7, Timeout: 20 * time.Second},
		},
		LLM: LLMConfig{Model: "gpt-4o-mini"},
		History: HistoryConfig{
			Enabled: false,
			Path:    "veriscore.db",
		},
	}
}

// Provider looks up a descriptor by name.
func (c *Config) Provider(name string) (ProviderDescriptor, bool) {
	for _, d := range c.Providers {
		if d.Name == name {
			return d, true
		}
	}
	return ProviderDescriptor{}, false
}
