package embedding

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// OpenAIEmbedder calls the OpenAI embeddings API or any compatible endpoint.
type OpenAIEmbedder struct {
	client *openai.Client
	model  openai.EmbeddingModel
	dims   int
}

// NewOpenAIEmbedder creates an embedder for model. An empty model selects
// text-embedding-3-small.
func NewOpenAIEmbedder(apiKey, baseURL, model string, dims int) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		return nil, errors.New("embedding: openai API key is required")
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	m := openai.EmbeddingModel(model)
	if model == "" {
		m = openai.SmallEmbedding3
	}
	return &OpenAIEmbedder{
		client: openai.NewClientWithConfig(cfg),
		model:  m,
		dims:   dims,
	}, nil
}

// Name implements Embedder.
func (e *OpenAIEmbedder) Name() string { return "openai:" + string(e.model) }

// Embed implements Embedder.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      []string{text},
		Model:      e.model,
		Dimensions: e.dims,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding: openai: %w", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, ErrEmptyEmbedding
	}
	return Normalize(resp.Data[0].Embedding), nil
}
