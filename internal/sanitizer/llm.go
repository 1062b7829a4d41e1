package sanitizer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

const llmSystemPrompt = `You detect personal and sensitive information in short texts.
Return JSON only: {"findings":[{"text":"<exact substring>","kind":"<kind>"}]}
Kinds: person, location, identifier, health, legal, financial, relationship.
"text" must be copied exactly from the input. Return {"findings":[]} when nothing is found.`

// LLMConfig configures the model-based detector. BaseURL may point at any
// OpenAI-compatible endpoint, including a self-hosted one.
type LLMConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// LLMDetector asks a chat model for spans the rule detectors might miss.
// Spans the model reports but that cannot be located in the text are
// treated as identifiers covering the whole fragment.
type LLMDetector struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

// NewLLMDetector creates a detector backed by the OpenAI chat completions API.
func NewLLMDetector(cfg LLMConfig) (*LLMDetector, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("sanitizer: llm detector requires an API key")
	}
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &LLMDetector{
		client:  openai.NewClientWithConfig(clientConfig),
		model:   model,
		timeout: timeout,
	}, nil
}

// Name implements Detector.
func (d *LLMDetector) Name() string { return "llm" }

type llmFinding struct {
	Text string `json:"text"`
	Kind string `json:"kind"`
}

type llmResponse struct {
	Findings []llmFinding `json:"findings"`
}

var llmKinds = map[string]Kind{
	"person":       KindPerson,
	"name":         KindPerson,
	"location":     KindLocation,
	"address":      KindLocation,
	"identifier":   KindIdentifier,
	"health":       KindHealth,
	"legal":        KindLegal,
	"financial":    KindFinancial,
	"relationship": KindRelationship,
}

// Detect implements Detector.
func (d *LLMDetector) Detect(ctx context.Context, in Input) ([]Finding, error) {
	if strings.TrimSpace(in.Text) == "" {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	resp, err := d.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: d.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: llmSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: in.Text},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
		Temperature:    0,
	})
	if err != nil {
		return nil, fmt.Errorf("llm detector: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("llm detector: empty response")
	}
	return parseLLMFindings(in.Text, resp.Choices[0].Message.Content)
}

func parseLLMFindings(text, content string) ([]Finding, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var parsed llmResponse
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("llm detector: decode: %w", err)
	}

	var out []Finding
	for _, f := range parsed.Findings {
		kind, ok := llmKinds[strings.ToLower(strings.TrimSpace(f.Kind))]
		if !ok {
			kind = Kind(strings.ToLower(f.Kind))
		}
		spans := locate(text, f.Text)
		if len(spans) == 0 {
			out = append(out, Finding{Start: 0, End: len(text), Kind: KindIdentifier, Confidence: 0.8})
			continue
		}
		for _, sp := range spans {
			out = append(out, Finding{
				Start:       sp[0],
				End:         sp[1],
				Kind:        kind,
				Confidence:  0.8,
				Replacement: genericReplacement[kind],
			})
		}
	}
	return out, nil
}

// locate returns every case-insensitive occurrence of needle in text.
func locate(text, needle string) [][2]int {
	needle = strings.TrimSpace(needle)
	if needle == "" {
		return nil
	}
	lower := strings.ToLower(text)
	n := strings.ToLower(needle)
	if len(lower) != len(text) {
		// Case folding changed byte lengths; fall back to an exact search.
		lower, n = text, needle
	}
	var out [][2]int
	for off := 0; ; {
		i := strings.Index(lower[off:], n)
		if i < 0 {
			return out
		}
		out = append(out, [2]int{off + i, off + i + len(n)})
		off += i + len(n)
	}
}
