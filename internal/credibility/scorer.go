// Package credibility maps cited source URLs to trust weights. The
// weights feed the source-quality pillar of the consensus engine; they
// never affect verdict-cluster membership.
package credibility

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Table scores URLs against a domain→weight mapping with an explicit
// default for unknown domains. Safe for concurrent use; Reload swaps the
// mapping atomically so in-flight scoring never sees a partial table.
type Table struct {
	mu      sync.RWMutex
	domains map[string]float64
	def     float64
}

// tableFile is the on-disk YAML shape of a credibility table.
type tableFile struct {
	Default float64            `yaml:"default"`
	Domains map[string]float64 `yaml:"domains"`
}

// NewTable builds a table from an explicit mapping. A non-positive
// default falls back to 0.5.
func NewTable(domains map[string]float64, def float64) *Table {
	if def <= 0 {
		def = 0.5
	}
	if domains == nil {
		domains = map[string]float64{}
	}
	return &Table{domains: domains, def: def}
}

// DefaultTable returns the built-in trust tiers used when no table file
// is configured.
func DefaultTable() *Table {
	return NewTable(map[string]float64{
		"nature.com":     0.95,
		"science.org":    0.95,
		"nih.gov":        0.95,
		"who.int":        0.95,
		"reuters.com":    0.90,
		"apnews.com":     0.90,
		"bbc.com":        0.85,
		"nytimes.com":    0.80,
		"snopes.com":     0.80,
		"politifact.com": 0.80,
		"wikipedia.org":  0.70,
		"medium.com":     0.35,
		"reddit.com":     0.25,
	}, 0.5)
}

// LoadTable reads a YAML table file.
func LoadTable(path string) (*Table, error) {
	t := NewTable(nil, 0)
	if err := t.Reload(path); err != nil {
		return nil, err
	}
	return t, nil
}

// Reload re-reads the table file and swaps the mapping in place. Used by
// the file watcher for hot reloads without restarting the orchestrator.
func (t *Table) Reload(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read credibility table: %w", err)
	}

	var f tableFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("parse credibility table: %w", err)
	}
	if f.Default <= 0 {
		f.Default = 0.5
	}
	if f.Domains == nil {
		f.Domains = map[string]float64{}
	}

	t.mu.Lock()
	t.domains = f.Domains
	t.def = f.Default
	t.mu.Unlock()
	return nil
}

// Score maps a source URL to a trust weight in [0,1]. Pure with respect
// to the current table: same URL, same table, same score. Unknown or
// unparseable URLs get the default.
func (t *Table) Score(rawURL string) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return t.def
	}

	host := strings.ToLower(parsed.Host)
	if idx := strings.Index(host, ":"); idx > 0 {
		host = host[:idx]
	}
	host = strings.TrimPrefix(host, "www.")

	if w, ok := t.domains[host]; ok {
		return w
	}
	// Subdomains inherit their parent's weight (en.wikipedia.org matches
	// wikipedia.org).
	for domain, w := range t.domains {
		if strings.HasSuffix(host, "."+domain) {
			return w
		}
	}
	if strings.HasSuffix(host, ".gov") || strings.HasSuffix(host, ".edu") {
		return 0.9
	}
	return t.def
}

// SetDefault overrides the weight assigned to unknown domains.
func (t *Table) SetDefault(def float64) {
	if def <= 0 || def > 1 {
		return
	}
	t.mu.Lock()
	t.def = def
	t.mu.Unlock()
}

// Default returns the weight assigned to unknown domains.
func (t *Table) Default() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.def
}
