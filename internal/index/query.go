package index

import (
	"context"
	"fmt"
	"sort"

	"github.com/starford/mindyard/internal/embedding"
	"github.com/starford/mindyard/internal/models"
)

// TopicFilter narrows a query. Any restricts candidates to records sharing
// at least one of the listed topic tags; an empty Any matches every record.
// Superseded records are always excluded.
type TopicFilter struct {
	Any          []string
	ExcludeID    string
	ExcludeOwner string
}

// Candidate is a query hit with its cosine similarity to the query vector.
type Candidate struct {
	Record     models.InsightRecord
	Similarity float64
}

// ctxCheckEvery controls how often a scan looks at ctx.
const ctxCheckEvery = 256

// Query ranks committed records by similarity to vec, then by newer
// created_at, then by id. When ctx ends mid-scan the best candidates seen so
// far are returned together with the context error.
func (db *DB) Query(ctx context.Context, vec []float32, filter TopicFilter, k int) ([]Candidate, error) {
	if k <= 0 {
		return nil, nil
	}
	pool := db.snapshot(filter)

	var (
		out []Candidate
		err error
	)
	for i, e := range pool {
		if i%ctxCheckEvery == 0 {
			if cerr := ctx.Err(); cerr != nil {
				err = fmt.Errorf("index: query: %w", cerr)
				break
			}
		}
		out = append(out, Candidate{Record: e.rec, Similarity: embedding.CosineSimilarity(vec, e.rec.Embedding)})
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Similarity != b.Similarity {
			return a.Similarity > b.Similarity
		}
		if !a.Record.CreatedAt.Equal(b.Record.CreatedAt) {
			return a.Record.CreatedAt.After(b.Record.CreatedAt)
		}
		return a.Record.ID < b.Record.ID
	})
	if len(out) > k {
		out = out[:k]
	}
	return out, err
}

// snapshot collects the entries that pass filter under the read lock.
// Entries are immutable, so scoring happens without holding the lock.
func (db *DB) snapshot(filter TopicFilter) []*entry {
	db.mu.RLock()
	defer db.mu.RUnlock()

	keep := func(id string, e *entry) bool {
		if id == filter.ExcludeID {
			return false
		}
		if filter.ExcludeOwner != "" && e.rec.OwnerRef == filter.ExcludeOwner {
			return false
		}
		_, gone := db.superseded[id]
		return !gone
	}

	var pool []*entry
	if len(filter.Any) == 0 {
		pool = make([]*entry, 0, len(db.records))
		for id, e := range db.records {
			if keep(id, e) {
				pool = append(pool, e)
			}
		}
		return pool
	}

	seen := make(map[string]struct{})
	for _, tag := range filter.Any {
		for id := range db.byTag[tag] {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			if e := db.records[id]; e != nil && keep(id, e) {
				pool = append(pool, e)
			}
		}
	}
	return pool
}

// Len returns the number of committed records.
func (db *DB) Len() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.records)
}
