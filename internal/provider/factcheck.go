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

// claimReviewResponse mirrors the ClaimReview search API shape.
type claimReviewResponse struct {
	Claims []struct {
		Text        string `json:"text"`
		ClaimReview []struct {
			Publisher struct {
				Name string `json:"name"`
				Site string `json:"site"`
			} `json:"publisher"`
			URL           string `json:"url"`
			Title         string `json:"title"`
			TextualRating string `json:"textualRating"`
		} `json:"claimReview"`
	} `json:"claims"`
}

// FactCheck queries a ClaimReview-style fact-check index and normalizes
// editorial ratings into verdict labels.
type FactCheck struct {
	name     string
	client   *Client
	endpoint string
	apiKey   string
}

// NewFactCheck creates a fact-check adapter against the given endpoint.
func NewFactCheck(name string, client *Client, endpoint, apiKey string) *FactCheck {
	return &FactCheck{name: name, client: client, endpoint: endpoint, apiKey: apiKey}
}

// Name returns the provider name
func (f *FactCheck) Name() string {
	return f.name
}

// Invoke searches the index for reviews of the claim.
func (f *FactCheck) Invoke(ctx context.Context, claim model.Claim, timeout time.Duration) model.ProviderResult {
	started := time.Now()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	q := url.Values{}
	q.Set("query", claim.Text)
	if f.apiKey != "" {
		q.Set("key", f.apiKey)
	}

	req, err := http.NewRequest(http.MethodGet, f.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return failure(f.name, started, err)
	}

	resp, err := f.client.Do(ctx, req)
	if err != nil {
		return failure(f.name, started, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return model.Failed(f.name, model.ErrKindQuotaExceeded, statusError(resp.StatusCode), time.Since(started))
	}
	if resp.StatusCode != http.StatusOK {
		return failure(f.name, started, statusError(resp.StatusCode))
	}

	var body claimReviewResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return failure(f.name, started, err)
	}

	verdict, confidence, sources := summarizeReviews(body)

	return model.ProviderResult{
		Provider:   f.name,
		Verdict:    verdict,
		Confidence: confidence,
		Sources:    sources,
		Latency:    time.Since(started),
		Success:    true,
	}
}

// summarizeReviews folds the editorial ratings into one verdict. Each
// review votes for the label its rating maps to; the most voted label
// wins and more agreeing reviews raise confidence.
func summarizeReviews(body claimReviewResponse) (string, float64, []model.Source) {
	votes := make(map[string]int)
	var sources []model.Source
	total := 0

	for _, c := range body.Claims {
		for _, r := range c.ClaimReview {
			label := ratingLabel(r.TextualRating)
			votes[label]++
			total++
			if r.URL != "" {
				title := r.Title
				if title == "" {
					title = r.Publisher.Name
				}
				sources = append(sources, model.Source{URL: r.URL, Title: title})
			}
		}
	}

	if total == 0 {
		return "unverifiable", 0.2, nil
	}

	best := "unverifiable"
	bestVotes := 0
	for label, n := range votes {
		if n > bestVotes {
			best, bestVotes = label, n
		}
	}

	// Unanimous double-digit review counts still cap below certainty.
	confidence := 0.5 + 0.1*float64(bestVotes)
	if confidence > 0.9 {
		confidence = 0.9
	}
	return best, confidence, sources
}

// ratingLabel maps free-text editorial ratings onto verdict labels.
func ratingLabel(rating string) string {
	r := strings.ToLower(rating)
	switch {
	case strings.Contains(r, "mostly true"), strings.Contains(r, "mostly correct"):
		return "mostly-true"
	case strings.Contains(r, "mostly false"):
		return "mostly-false"
	case strings.Contains(r, "half true"), strings.Contains(r, "partly"), strings.Contains(r, "partially"), strings.Contains(r, "mixture"), strings.Contains(r, "mixed"):
		return "partially-true"
	case strings.Contains(r, "true"), strings.Contains(r, "correct"), strings.Contains(r, "accurate"):
		return "true"
	case strings.Contains(r, "pants on fire"), strings.Contains(r, "false"), strings.Contains(r, "incorrect"), strings.Contains(r, "fake"):
		return "false"
	case strings.Contains(r, "misleading"), strings.Contains(r, "distort"):
		return "misleading"
	default:
		return "unverifiable"
	}
}
