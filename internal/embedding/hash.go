package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"unicode"
)

const defaultHashDimensions = 256

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {}, "of": {}, "to": {}, "in": {},
	"on": {}, "for": {}, "with": {}, "about": {}, "is": {}, "are": {}, "be": {},
	"someone": {}, "related": {}, "their": {}, "it": {}, "this": {}, "that": {},
}

// HashEmbedder is a deterministic, offline embedder based on feature hashing
// of word unigrams and bigrams. It needs no network and is the default.
type HashEmbedder struct {
	dims int
}

// NewHashEmbedder returns a HashEmbedder producing vectors of dims length.
func NewHashEmbedder(dims int) *HashEmbedder {
	if dims <= 0 {
		dims = defaultHashDimensions
	}
	return &HashEmbedder{dims: dims}
}

// Name implements Embedder.
func (h *HashEmbedder) Name() string { return fmt.Sprintf("hash:%d", h.dims) }

// Embed implements Embedder. Text without content words yields a zero vector.
func (h *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v := make([]float32, h.dims)
	words := contentWords(text)
	for i, w := range words {
		h.add(v, w, 1)
		if i > 0 {
			h.add(v, words[i-1]+" "+w, 0.5)
		}
	}
	return Normalize(v), nil
}

func (h *HashEmbedder) add(v []float32, feature string, weight float32) {
	f := fnv.New64a()
	_, _ = f.Write([]byte(feature))
	sum := f.Sum64()
	idx := int(sum % uint64(h.dims))
	if sum>>63 == 1 {
		weight = -weight
	}
	v[idx] += weight
}

func contentWords(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '-'
	})
	out := fields[:0]
	for _, w := range fields {
		w = strings.Trim(w, "-")
		if w == "" {
			continue
		}
		if _, ok := stopwords[w]; ok {
			continue
		}
		if len(w) > 3 && strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss") {
			w = w[:len(w)-1]
		}
		out = append(out, w)
	}
	return out
}
