// Package matcher finds serendipitous connections between insight records
// of different users.
package matcher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/starford/mindyard/internal/apperr"
	"github.com/starford/mindyard/internal/index"
	"github.com/starford/mindyard/internal/models"
)

// Settings holds the scoring tunables. They can be swapped at runtime.
type Settings struct {
	EmbeddingWeight float64
	TopicWeight     float64
	MinScore        float64
	K               int
	CandidatePool   int
	Timeout         time.Duration
	AllowSameUser   bool
}

// Semantic rationale tags.
const (
	RationaleSemanticHigh     = "semantic:high"
	RationaleSemanticModerate = "semantic:moderate"
)

// Matcher scores candidates from a knowledge store.
type Matcher struct {
	store    index.KnowledgeStore
	settings atomic.Pointer[Settings]
}

// New creates a Matcher over store.
func New(store index.KnowledgeStore, s Settings) *Matcher {
	m := &Matcher{store: store}
	m.SetSettings(s)
	return m
}

// SetSettings atomically replaces the active settings.
func (m *Matcher) SetSettings(s Settings) {
	if s.EmbeddingWeight+s.TopicWeight <= 0 {
		s.EmbeddingWeight, s.TopicWeight = 0.7, 0.3
	}
	if s.K <= 0 {
		s.K = 10
	}
	if s.CandidatePool <= 0 {
		s.CandidatePool = 50
	}
	if s.Timeout <= 0 {
		s.Timeout = 2 * time.Second
	}
	m.settings.Store(&s)
}

// Settings returns a copy of the active settings.
func (m *Matcher) Settings() Settings {
	return *m.settings.Load()
}

// FindMatches returns up to k candidates for rec scoring at least minScore,
// best first, ties broken by the newer record. Non-positive k or negative
// minScore fall back to the configured values. When the lookup runs out of
// time the candidates found so far are returned with apperr.ErrMatchTimeout.
func (m *Matcher) FindMatches(ctx context.Context, rec models.InsightRecord, k int, minScore float64) ([]models.MatchCandidate, error) {
	return m.FindMatchesFor(ctx, []models.InsightRecord{rec}, k, minScore)
}

// FindMatchesFor merges the matches of several query records, typically all
// current records of one user. A candidate matched by more than one query
// record keeps its best score. Ranking, k, minScore and the timeout behave
// as in FindMatches; the timeout covers the whole merge.
func (m *Matcher) FindMatchesFor(ctx context.Context, recs []models.InsightRecord, k int, minScore float64) ([]models.MatchCandidate, error) {
	s := m.settings.Load()
	if k <= 0 {
		k = s.K
	}
	if minScore < 0 {
		minScore = s.MinScore
	}

	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	best := make(map[string]int)
	var out []scored
	var timedOut bool
	for _, rec := range recs {
		found, partial, err := m.score(ctx, s, rec, minScore)
		if err != nil {
			return nil, err
		}
		for _, c := range found {
			if i, ok := best[c.candidate.RecordBID]; ok {
				if c.candidate.Score > out[i].candidate.Score {
					out[i] = c
				}
				continue
			}
			best[c.candidate.RecordBID] = len(out)
			out = append(out, c)
		}
		if partial {
			timedOut = true
			break
		}
	}

	rank(out)
	if len(out) > k {
		out = out[:k]
	}

	result := make([]models.MatchCandidate, len(out))
	for i, o := range out {
		result[i] = o.candidate
	}
	if timedOut {
		return result, fmt.Errorf("matcher: %w", apperr.ErrMatchTimeout)
	}
	return result, nil
}

// score collects and scores the candidate pool for rec. partial is true
// when ctx ran out before both queries finished.
func (m *Matcher) score(ctx context.Context, s *Settings, rec models.InsightRecord, minScore float64) (out []scored, partial bool, err error) {
	filter := index.TopicFilter{ExcludeID: rec.ID}
	if !s.AllowSameUser {
		filter.ExcludeOwner = rec.OwnerRef
	}

	pool := make(map[string]index.Candidate)
	collect := func(f index.TopicFilter) error {
		hits, err := m.store.Query(ctx, rec.Embedding, f, s.CandidatePool)
		for _, h := range hits {
			pool[h.Record.ID] = h
		}
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				partial = true
				return nil
			}
			return err
		}
		return nil
	}

	if err := collect(filter); err != nil {
		return nil, false, fmt.Errorf("matcher: vector query: %w", err)
	}
	if len(rec.TopicTags) > 0 && !partial {
		tagged := filter
		tagged.Any = rec.TopicTags
		if err := collect(tagged); err != nil {
			return nil, false, fmt.Errorf("matcher: topic query: %w", err)
		}
	}

	out = make([]scored, 0, len(pool))
	for _, c := range pool {
		if c.Record.ID == rec.ID {
			continue
		}
		if !s.AllowSameUser && c.Record.OwnerRef == rec.OwnerRef {
			continue
		}
		score, rationale := Score(*s, rec, c.Record, c.Similarity)
		if score < minScore {
			continue
		}
		out = append(out, scored{
			candidate: models.MatchCandidate{
				RecordAID:     rec.ID,
				RecordBID:     c.Record.ID,
				Score:         score,
				RationaleTags: rationale,
			},
			createdAt: c.Record.CreatedAt,
		})
	}
	return out, partial, nil
}

type scored struct {
	candidate models.MatchCandidate
	createdAt time.Time
}

func rank(out []scored) {
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.candidate.Score != b.candidate.Score {
			return a.candidate.Score > b.candidate.Score
		}
		if !a.createdAt.Equal(b.createdAt) {
			return a.createdAt.After(b.createdAt)
		}
		return a.candidate.RecordBID < b.candidate.RecordBID
	})
}

// Score returns the composite score of b as a match for a, given their
// cosine similarity, plus the rationale tags explaining it.
func Score(s Settings, a, b models.InsightRecord, cosine float64) (float64, []string) {
	cos := max(cosine, 0)
	shared, jaccard := overlap(a.TopicTags, b.TopicTags)
	score := (s.EmbeddingWeight*cos + s.TopicWeight*jaccard) / (s.EmbeddingWeight + s.TopicWeight)

	rationale := make([]string, 0, len(shared)+1)
	for _, t := range shared {
		rationale = append(rationale, models.TagPrefixTopic+t)
	}
	switch {
	case cos >= 0.8:
		rationale = append(rationale, RationaleSemanticHigh)
	case cos >= 0.5:
		rationale = append(rationale, RationaleSemanticModerate)
	}
	return score, rationale
}

// overlap returns the shared tags in a's order and the Jaccard index.
func overlap(a, b []string) ([]string, float64) {
	setA := make(map[string]struct{}, len(a))
	for _, t := range a {
		setA[t] = struct{}{}
	}
	setB := make(map[string]struct{}, len(b))
	for _, t := range b {
		setB[t] = struct{}{}
	}
	var shared []string
	for _, t := range a {
		if _, ok := setB[t]; ok {
			shared = append(shared, t)
			delete(setB, t)
		}
	}
	union := len(setA) + len(setB)
	if union == 0 {
		return nil, 0
	}
	return shared, float64(len(shared)) / float64(union)
}
