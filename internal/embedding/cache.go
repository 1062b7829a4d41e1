package embedding

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/starford/mindyard/internal/checksum"
)

// Cached memoizes another Embedder. Keys are digests of the statement, so
// the cache never holds raw text.
type Cached struct {
	next  Embedder
	cache *gocache.Cache
}

// NewCached wraps next with an in-memory cache whose entries expire after ttl.
func NewCached(next Embedder, ttl time.Duration) *Cached {
	return &Cached{
		next:  next,
		cache: gocache.New(ttl, 2*ttl),
	}
}

// Name implements Embedder.
func (c *Cached) Name() string { return c.next.Name() }

// Embed implements Embedder.
func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	key := checksum.Sum([]byte(c.next.Name() + "\x00" + text))
	if v, ok := c.cache.Get(key); ok {
		return append([]float32(nil), v.([]float32)...), nil
	}
	v, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.SetDefault(key, append([]float32(nil), v...))
	return v, nil
}

// Len reports the number of cached vectors.
func (c *Cached) Len() int { return c.cache.ItemCount() }
