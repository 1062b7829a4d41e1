package embedding

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

const genaiTaskSemanticSimilarity = "SEMANTIC_SIMILARITY"

// GenAIEmbedder generates embeddings with the Gemini API.
type GenAIEmbedder struct {
	client *genai.Client
	model  string
	dims   int32
}

// NewGenAIEmbedder creates a Gemini embedder. An empty model selects
// gemini-embedding-001.
func NewGenAIEmbedder(apiKey, baseURL, model string, dims int) (*GenAIEmbedder, error) {
	if apiKey == "" {
		return nil, errors.New("embedding: genai API key is required")
	}
	if model == "" {
		model = "gemini-embedding-001"
	}
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: baseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("embedding: create genai client: %w", err)
	}
	return &GenAIEmbedder{client: client, model: model, dims: int32(dims)}, nil
}

// Name implements Embedder.
func (e *GenAIEmbedder) Name() string { return "genai:" + e.model }

// Embed implements Embedder.
func (e *GenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	cfg := &genai.EmbedContentConfig{TaskType: genaiTaskSemanticSimilarity}
	if e.dims > 0 {
		cfg.OutputDimensionality = &e.dims
	}
	result, err := e.client.Models.EmbedContent(ctx, e.model,
		[]*genai.Content{genai.NewContentFromText(text, genai.RoleUser)},
		cfg,
	)
	if err != nil {
		return nil, fmt.Errorf("embedding: genai: %w", err)
	}
	if len(result.Embeddings) == 0 || len(result.Embeddings[0].Values) == 0 {
		return nil, ErrEmptyEmbedding
	}
	return Normalize(result.Embeddings[0].Values), nil
}
