package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/veriscore/veriscore/internal/breaker"
	"github.com/veriscore/veriscore/internal/cache"
	"github.com/veriscore/veriscore/internal/consensus"
	"github.com/veriscore/veriscore/internal/credibility"
	"github.com/veriscore/veriscore/internal/governor"
	"github.com/veriscore/veriscore/internal/history"
	"github.com/veriscore/veriscore/internal/logging"
	"github.com/veriscore/veriscore/internal/metrics"
	"github.com/veriscore/veriscore/internal/model"
	"github.com/veriscore/veriscore/internal/provider"
	"github.com/veriscore/veriscore/internal/tier"
	"github.com/veriscore/veriscore/internal/verify"
)

// stack is everything a command needs to serve verifications.
type stack struct {
	cfg      model.Config
	orch     *verify.Orchestrator
	breakers *breaker.Registry
	governor *governor.Governor
	cache    *cache.ResultCache
	history  history.Store
	logger   *zap.Logger
	closers  []func() error
}

// Close releases stack resources in reverse construction order.
func (s *stack) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		_ = s.closers[i]()
	}
	_ = s.logger.Sync()
}

// loadConfig merges the config file (if any) over the built-in defaults.
func loadConfig() (model.Config, error) {
	cfg := *model.DefaultConfig()

	if path := viper.ConfigFileUsed(); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)

	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	return cfg, nil
}

// applyEnvOverrides layers VERISCORE_* environment variables over the
// file-merged config, keeping env above file in the precedence chain.
// Viper translates logging.level to VERISCORE_LOGGING_LEVEL and so on.
func applyEnvOverrides(cfg *model.Config) {
	overrides := map[string]*string{
		"logging.level":          &cfg.Logging.Level,
		"logging.format":         &cfg.Logging.Format,
		"cache.backend":          &cfg.Cache.Backend,
		"cache.redis_addr":       &cfg.Cache.RedisAddr,
		"credibility.table_path": &cfg.Credibility.TablePath,
		"history.path":           &cfg.History.Path,
		"llm.api_key":            &cfg.LLM.APIKey,
		"llm.base_url":           &cfg.LLM.BaseURL,
		"llm.model":              &cfg.LLM.Model,
	}
	for key, target := range overrides {
		if v := viper.GetString(key); v != "" {
			*target = v
		}
	}
}

// buildStack wires the full pipeline from configuration.
func buildStack() (*stack, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if verbose {
		logger = logging.New("debug", cfg.Logging.Format)
	}

	s := &stack{cfg: cfg, logger: logger}

	registry := provider.NewRegistry()
	httpClient := provider.NewClient(cfg.HTTP)
	for _, d := range cfg.Providers {
		adapter, err := buildAdapter(d, cfg, httpClient)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("provider %s: %w", d.Name, err)
		}
		if adapter == nil {
			logger.Warn("provider skipped, no credentials", zap.String("provider", d.Name))
			continue
		}
		registry.Register(adapter)
	}

	credTable, err := loadCredibility(cfg)
	if err != nil {
		s.Close()
		return nil, err
	}
	if cfg.Credibility.Watch && cfg.Credibility.TablePath != "" {
		watchCtx, cancel := context.WithCancel(context.Background())
		s.closers = append(s.closers, func() error { cancel(); return nil })
		go func() {
			if err := credTable.Watch(watchCtx, cfg.Credibility.TablePath, logger); err != nil {
				logger.Warn("credibility watch stopped", zap.Error(err))
			}
		}()
	}

	resultCache, err := buildCache(cfg, s)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.cache = resultCache

	if cfg.History.Enabled {
		store, err := history.NewSQLiteStore(cfg.History.Path)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("opening history store: %w", err)
		}
		s.history = store
		s.closers = append(s.closers, store.Close)
	}

	s.governor = governor.New()
	s.breakers = breaker.NewRegistry(breaker.Config{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		RecoveryInterval: cfg.Breaker.RecoveryInterval,
		OnStateChange: func(name string, _, to breaker.State) {
			metrics.BreakerTransitions.WithLabelValues(name, to.String()).Inc()
			logger.Warn("circuit state change",
				zap.String("provider", name),
				zap.String("state", to.String()),
			)
		},
	})

	orch, err := verify.New(verify.Deps{
		Registry:    registry,
		Tiers:       tier.NewController(tier.NewStaticEntitlements(cfg.Tiers), cfg.Providers),
		Governor:    s.governor,
		Breakers:    s.breakers,
		Engine:      consensus.NewEngine(cfg.Consensus),
		Cache:       resultCache,
		Credibility: credTable,
		History:     s.history,
		Logger:      logger,
	}, cfg.Providers)
	if err != nil {
		s.Close()
		return nil, err
	}

	s.orch = orch
	// Closers run in reverse order, so pending history writes drain
	// before the store underneath them closes.
	s.closers = append(s.closers, func() error { orch.Wait(); return nil })
	return s, nil
}

// buildAdapter maps a descriptor category to its concrete adapter.
// Endpoints and keys come from the provider's own config entries.
func buildAdapter(d model.ProviderDescriptor, cfg model.Config, client *provider.Client) (provider.Adapter, error) {
	switch d.Category {
	case model.CategoryModelVerifier:
		if cfg.LLM.APIKey == "" {
			return nil, nil
		}
		return provider.NewOpenAIVerifier(d.Name, cfg.LLM)
	case model.CategoryFactCheck:
		return provider.NewFactCheck(d.Name, client,
			envOr("VERISCORE_FACTCHECK_ENDPOINT", "https://factchecktools.googleapis.com/v1alpha1/claims:search"),
			os.Getenv("VERISCORE_FACTCHECK_KEY")), nil
	case model.CategorySearch:
		return provider.NewWebSearch(d.Name, client,
			envOr("VERISCORE_SEARCH_ENDPOINT", "https://api.search.brave.com/res/v1/web/search"),
			os.Getenv("VERISCORE_SEARCH_KEY")), nil
	default:
		return nil, fmt.Errorf("unknown provider category %q", d.Category)
	}
}

func loadCredibility(cfg model.Config) (*credibility.Table, error) {
	table := credibility.DefaultTable()
	if cfg.Credibility.TablePath != "" {
		var err error
		table, err = credibility.LoadTable(cfg.Credibility.TablePath)
		if err != nil {
			return nil, fmt.Errorf("loading credibility table: %w", err)
		}
	}
	table.SetDefault(cfg.Credibility.DefaultScore)
	return table, nil
}

func buildCache(cfg model.Config, s *stack) (*cache.ResultCache, error) {
	if !cfg.Cache.Enabled {
		return nil, nil
	}

	switch cfg.Cache.Backend {
	case "redis":
		backend, err := cache.NewRedisCache(cfg.Cache.RedisAddr, cfg.Cache.RedisDB)
		if err != nil {
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		s.closers = append(s.closers, backend.Close)
		return cache.NewResultCache(backend, cfg.Cache.TTL), nil
	default:
		backend := cache.NewMemoryCache(cfg.Cache.TTL, 10*time.Minute)
		return cache.NewResultCache(backend, cfg.Cache.TTL), nil
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
