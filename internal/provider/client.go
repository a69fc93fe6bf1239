package provider

import (
	"context"
	"net/http"
	"net/url"
	"sync"

	"golang.org/x/time/rate"

	"github.com/veriscore/veriscore/internal/model"
)

// Client is a shared HTTP client with per-host pacing. Adapters that call
// plain HTTP endpoints use it so that two adapters hitting the same host
// share one limiter.
type Client struct {
	httpClient *http.Client
	userAgent  string

	mu           sync.RWMutex
	limiters     map[string]*rate.Limiter
	defaultRate  rate.Limit
	defaultBurst int
}

// NewClient builds a Client from the HTTP section of the config.
func NewClient(cfg model.HTTPConfig) *Client {
	burst := cfg.Burst
	if burst <= 0 {
		burst = 5
	}
	rps := cfg.PerHostRPS
	if rps <= 0 {
		rps = 2
	}

	transport := &http.Transport{
		Proxy:               newProxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy),
		MaxIdleConnsPerHost: 4,
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		userAgent:    cfg.UserAgent,
		limiters:     make(map[string]*rate.Limiter),
		defaultRate:  rate.Limit(rps),
		defaultBurst: burst,
	}
}

// Do paces the request against its host limiter, stamps the user agent
// and executes it. The caller owns ctx including its deadline.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if err := c.hostLimiter(req.URL.Host).Wait(ctx); err != nil {
		return nil, err
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	return c.httpClient.Do(req.WithContext(ctx))
}

// hostLimiter returns the rate limiter for a host
func (c *Client) hostLimiter(host string) *rate.Limiter {
	c.mu.RLock()
	limiter, exists := c.limiters[host]
	c.mu.RUnlock()

	if exists {
		return limiter
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Double-check after acquiring write lock
	if limiter, exists := c.limiters[host]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(c.defaultRate, c.defaultBurst)
	c.limiters[host] = limiter

	return limiter
}

// SetHostRate sets a custom rate limit for a specific host.
func (c *Client) SetHostRate(host string, requestsPerSecond float64, burst int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if burst <= 0 {
		burst = c.defaultBurst
	}
	c.limiters[host] = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
}

// newProxyFunc creates a proxy function based on configuration.
// If no proxy URLs are provided, falls back to environment variables.
func newProxyFunc(httpProxy, httpsProxy string) func(*http.Request) (*url.URL, error) {
	if httpProxy == "" && httpsProxy == "" {
		return http.ProxyFromEnvironment
	}

	return func(req *http.Request) (*url.URL, error) {
		if req.URL.Scheme == "https" && httpsProxy != "" {
			return url.Parse(httpsProxy)
		}
		if httpProxy != "" {
			return url.Parse(httpProxy)
		}
		return http.ProxyFromEnvironment(req)
	}
}
