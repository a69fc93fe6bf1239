// Package provider wraps external evidence sources behind one uniform
// request/response contract. Vendor-specific response shapes are
// normalized here and never leak past the adapter boundary.
package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/veriscore/veriscore/internal/model"
)

// Adapter is the uniform contract wrapping one evidence source. Invoke
// must return within timeout plus a small grace margin and must never
// retry; retry policy belongs to the orchestrator so it charges the
// invocation budget exactly once.
type Adapter interface {
	Name() string
	Invoke(ctx context.Context, claim model.Claim, timeout time.Duration) model.ProviderResult
}

// Registry maps provider names to adapters. The tier controller selects
// candidates by name; the orchestrator resolves them here.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register installs an adapter under its own name. Re-registering a name
// replaces the previous adapter.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Name()] = a
}

// Lookup resolves an adapter by name.
func (r *Registry) Lookup(name string) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[name]
	return a, ok
}

// Names lists registered adapter names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.adapters))
	for n := range r.adapters {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// classify turns an invocation error into the failure taxonomy. Context
// deadline and cancellation both count as timeouts: the call did not
// complete within its budget.
func classify(err error) model.ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return model.ErrKindTimeout
	}
	return model.ErrKindProviderError
}

// failure builds the ProviderResult for an errored invocation.
func failure(name string, started time.Time, err error) model.ProviderResult {
	return model.Failed(name, classify(err), err, time.Since(started))
}

// statusError reports a non-2xx vendor response.
func statusError(status int) error {
	return fmt.Errorf("unexpected status %d", status)
}
