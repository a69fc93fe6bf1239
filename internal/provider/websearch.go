package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/veriscore/veriscore/internal/model"
)

// searchResponse mirrors the search API shape.
type searchResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Snippet string `json:"snippet"`
	} `json:"results"`
}

// Snippet phrases that signal stance toward the queried claim.
var (
	supportingPhrases = []string{
		"confirmed", "confirms", "is true", "is accurate", "evidence shows",
		"study shows", "studies show", "verified", "proven", "according to",
	}
	refutingPhrases = []string{
		"debunked", "is false", "no evidence", "myth", "hoax", "misleading",
		"disproven", "refuted", "not true", "incorrect",
	}
)

// WebSearch queries a search API and infers a weak stance from result
// snippets. It is the least reliable adapter class and is weighted
// accordingly by its descriptor.
type WebSearch struct {
	name     string
	client   *Client
	endpoint string
	apiKey   string
}

// NewWebSearch creates a search adapter against the given endpoint.
func NewWebSearch(name string, client *Client, endpoint, apiKey string) *WebSearch {
	return &WebSearch{name: name, client: client, endpoint: endpoint, apiKey: apiKey}
}

// Name returns the provider name
func (w *WebSearch) Name() string {
	return w.name
}

// Invoke runs the search and scores snippet stance.
func (w *WebSearch) Invoke(ctx context.Context, claim model.Claim, timeout time.Duration) model.ProviderResult {
	started := time.Now()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	q := url.Values{}
	q.Set("q", claim.Text)
	if w.apiKey != "" {
		q.Set("key", w.apiKey)
	}

	req, err := http.NewRequest(http.MethodGet, w.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return failure(w.name, started, err)
	}

	resp, err := w.client.Do(ctx, req)
	if err != nil {
		return failure(w.name, started, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return model.Failed(w.name, model.ErrKindQuotaExceeded, statusError(resp.StatusCode), time.Since(started))
	}
	if resp.StatusCode != http.StatusOK {
		return failure(w.name, started, statusError(resp.StatusCode))
	}

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return failure(w.name, started, err)
	}

	verdict, confidence, sources := scoreSnippets(body)

	return model.ProviderResult{
		Provider:   w.name,
		Verdict:    verdict,
		Confidence: confidence,
		Sources:    sources,
		Latency:    time.Since(started),
		Success:    true,
	}
}

// scoreSnippets counts stance phrases across result snippets. A clear
// majority either way yields supported/refuted; anything else is
// unverifiable. Confidence grows with the margin, never past 0.7: a
// keyword heuristic over snippets cannot earn more.
func scoreSnippets(body searchResponse) (string, float64, []model.Source) {
	support, refute := 0, 0
	var sources []model.Source

	for _, r := range body.Results {
		if r.URL != "" {
			sources = append(sources, model.Source{URL: r.URL, Title: r.Title})
		}
		text := strings.ToLower(r.Snippet + " " + r.Title)
		for _, p := range supportingPhrases {
			if strings.Contains(text, p) {
				support++
			}
		}
		for _, p := range refutingPhrases {
			if strings.Contains(text, p) {
				refute++
			}
		}
	}

	margin := support - refute
	switch {
	case margin >= 2:
		return "supported", stanceConfidence(margin), sources
	case margin <= -2:
		return "refuted", stanceConfidence(-margin), sources
	default:
		return "unverifiable", 0.3, sources
	}
}

func stanceConfidence(margin int) float64 {
	c := 0.4 + 0.05*float64(margin)
	if c > 0.7 {
		c = 0.7
	}
	return c
}
