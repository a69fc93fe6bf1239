package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/veriscore/veriscore/internal/model"
)

const verifierSystemPrompt = `You are a rigorous fact-checking assistant. Assess the factual accuracy of the claim you are given.
Respond with a single JSON object and nothing else:
{"verdict": "true|mostly-true|partially-true|false|mostly-false|misleading|unverifiable|mixed", "confidence": 0.0-1.0, "sources": [{"url": "...", "title": "..."}]}
Only cite sources you are confident exist. If you cannot assess the claim, use "unverifiable" with low confidence.`

// verifierReply is the JSON shape the model is instructed to emit.
type verifierReply struct {
	Verdict    string  `json:"verdict"`
	Confidence float64 `json:"confidence"`
	Sources    []struct {
		URL   string `json:"url"`
		Title string `json:"title"`
	} `json:"sources"`
}

// OpenAIVerifier asks a chat model to judge a claim and parses its
// structured verdict.
type OpenAIVerifier struct {
	name   string
	client *openai.Client
	model  string
}

// NewOpenAIVerifier creates a model-verifier adapter.
func NewOpenAIVerifier(name string, cfg model.LLMConfig) (*OpenAIVerifier, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	m := cfg.Model
	if m == "" {
		m = openai.GPT4oMini
	}

	return &OpenAIVerifier{
		name:   name,
		client: openai.NewClientWithConfig(clientConfig),
		model:  m,
	}, nil
}

// Name returns the provider name
func (v *OpenAIVerifier) Name() string {
	return v.name
}

// Invoke sends the claim to the chat model and normalizes the reply.
func (v *OpenAIVerifier) Invoke(ctx context.Context, claim model.Claim, timeout time.Duration) model.ProviderResult {
	started := time.Now()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	chatReq := openai.ChatCompletionRequest{
		Model: v.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: verifierSystemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: fmt.Sprintf("Claim (domain: %s): %s", claim.Domain, claim.Text),
			},
		},
		MaxTokens:   500,
		Temperature: 0.1, // Low temperature for consistent, factual judgments
	}

	resp, err := v.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return failure(v.name, started, fmt.Errorf("OpenAI API error: %w", err))
	}
	if len(resp.Choices) == 0 {
		return failure(v.name, started, fmt.Errorf("no response from OpenAI"))
	}

	reply, err := parseVerifierReply(resp.Choices[0].Message.Content)
	if err != nil {
		return failure(v.name, started, err)
	}

	sources := make([]model.Source, 0, len(reply.Sources))
	for _, s := range reply.Sources {
		if s.URL == "" {
			continue
		}
		sources = append(sources, model.Source{URL: s.URL, Title: s.Title})
	}

	return model.ProviderResult{
		Provider:   v.name,
		Verdict:    strings.ToLower(strings.TrimSpace(reply.Verdict)),
		Confidence: clamp01(reply.Confidence),
		Sources:    sources,
		Latency:    time.Since(started),
		Success:    true,
	}
}

// parseVerifierReply extracts the JSON object from the model reply.
// Models occasionally wrap JSON in markdown fences, so scan for the
// outermost braces rather than unmarshaling the raw content.
func parseVerifierReply(content string) (*verifierReply, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in model reply")
	}

	var reply verifierReply
	if err := json.Unmarshal([]byte(content[start:end+1]), &reply); err != nil {
		return nil, fmt.Errorf("malformed model reply: %w", err)
	}
	if reply.Verdict == "" {
		return nil, fmt.Errorf("model reply missing verdict")
	}
	return &reply, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
