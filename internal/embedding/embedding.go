// Package embedding turns abstracted statements into fixed-size vectors for
// similarity search.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// Provider names accepted by New.
const (
	ProviderHash   = "hash"
	ProviderOpenAI = "openai"
	ProviderGenAI  = "genai"
)

// ErrEmptyEmbedding is returned when a backend answers without a vector.
var ErrEmptyEmbedding = errors.New("embedding: empty result")

// Embedder produces a vector for a text. Implementations must be safe for
// concurrent use.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Name() string
}

// Config selects and configures an Embedder.
type Config struct {
	Provider   string
	Model      string
	Dimensions int
	APIKey     string
	BaseURL    string
	CacheTTL   time.Duration
}

// New builds the configured embedder. Remote providers are wrapped in a
// cache when CacheTTL is positive.
func New(cfg Config) (Embedder, error) {
	var (
		e   Embedder
		err error
	)
	switch cfg.Provider {
	case "", ProviderHash:
		return NewHashEmbedder(cfg.Dimensions), nil
	case ProviderOpenAI:
		e, err = NewOpenAIEmbedder(cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.Dimensions)
	case ProviderGenAI:
		e, err = NewGenAIEmbedder(cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.Dimensions)
	default:
		return nil, fmt.Errorf("embedding: unknown provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	if cfg.CacheTTL > 0 {
		e = NewCached(e, cfg.CacheTTL)
	}
	return e, nil
}

// CosineSimilarity returns the cosine of the angle between a and b, or 0
// when either is empty, zero or the lengths differ.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Normalize scales v to unit length in place and returns it.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	n := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= n
	}
	return v
}
