package matcher

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/mindyard/internal/apperr"
	"github.com/starford/mindyard/internal/embedding"
	"github.com/starford/mindyard/internal/index"
	"github.com/starford/mindyard/internal/models"
)

func testStore(t *testing.T) *index.DB {
	t.Helper()
	f, err := os.CreateTemp("", "mindyard-matcher-*.db")
	require.NoError(t, err)
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })
	db, err := index.Open(f.Name())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func defaultSettings() Settings {
	return Settings{EmbeddingWeight: 0.7, TopicWeight: 0.3, MinScore: 0.5, K: 10, CandidatePool: 50, Timeout: time.Second}
}

var base = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

func rec(id, owner, statement string, at time.Duration, tags ...string) models.InsightRecord {
	vec, _ := embedding.NewHashEmbedder(128).Embed(context.Background(), statement)
	return models.InsightRecord{
		ID: id, Statement: statement, TopicTags: tags, Embedding: vec,
		OwnerRef: owner, ProvenanceRef: "p-" + id, CreatedAt: base.Add(at),
	}
}

func put(t *testing.T, db *index.DB, recs ...models.InsightRecord) {
	t.Helper()
	for _, r := range recs {
		require.NoError(t, db.Put(context.Background(), r))
	}
}

func TestFindMatches_CrossUserCareerTransition(t *testing.T) {
	db := testStore(t)
	a := rec("a", "user-a", "Someone is struggling with a career transition", 0, "career-transition")
	b := rec("b", "user-b", "Someone is looking for guidance on a career transition", time.Minute, "career-transition")
	put(t, db, a, b)

	m := New(db, defaultSettings())
	for _, pair := range [][2]models.InsightRecord{{a, b}, {b, a}} {
		got, err := m.FindMatches(context.Background(), pair[0], 0, -1)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, pair[1].ID, got[0].RecordBID)
		assert.Equal(t, pair[0].ID, got[0].RecordAID)
		assert.GreaterOrEqual(t, got[0].Score, 0.5)
		assert.Contains(t, got[0].RationaleTags, "topic:career-transition")
	}
}

func TestFindMatches_SelfAndSameUserExcluded(t *testing.T) {
	db := testStore(t)
	a := rec("a", "user-a", "Someone is reflecting on learning", 0, "learning")
	mine := rec("a2", "user-a", "Someone is reflecting on learning", time.Minute, "learning")
	put(t, db, a, mine)

	m := New(db, defaultSettings())
	got, err := m.FindMatches(context.Background(), a, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, got)

	s := defaultSettings()
	s.AllowSameUser = true
	m.SetSettings(s)
	got, err = m.FindMatches(context.Background(), a, 10, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a2", got[0].RecordBID)
}

func TestFindMatches_MinScoreAndOrdering(t *testing.T) {
	db := testStore(t)
	q := rec("q", "user-a", "Someone is struggling with a health concern related to work", 0, "health", "work")
	same := rec("same", "user-b", "Someone is struggling with a health concern related to work", time.Minute, "health", "work")
	sameNewer := rec("same-newer", "user-c", "Someone is struggling with a health concern related to work", 2*time.Minute, "health", "work")
	partial := rec("partial", "user-d", "Someone is reflecting on work", time.Minute, "work")
	unrelated := rec("unrelated", "user-e", "Someone is making progress with a creative project", time.Minute, "creativity")
	put(t, db, q, same, sameNewer, partial, unrelated)

	m := New(db, defaultSettings())
	got, err := m.FindMatches(context.Background(), q, 10, 0.5)
	require.NoError(t, err)

	var ids []string
	for _, c := range got {
		ids = append(ids, c.RecordBID)
		assert.GreaterOrEqual(t, c.Score, 0.5)
	}
	require.GreaterOrEqual(t, len(ids), 2)
	assert.Equal(t, []string{"same-newer", "same"}, ids[:2])
	assert.NotContains(t, ids, "unrelated")

	got, err = m.FindMatches(context.Background(), q, 1, 0)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestFindMatchesFor_MergedTiesPreferNewer(t *testing.T) {
	db := testStore(t)
	learning := rec("q1", "user-a", "Someone is reflecting on learning", 0, "learning")
	health := rec("q2", "user-a", "Someone is struggling with a health concern related to work", time.Minute, "health", "work")
	older := rec("older", "user-b", "Someone is reflecting on learning", time.Minute, "learning")
	newer := rec("newer", "user-c", "Someone is struggling with a health concern related to work", 2*time.Minute, "health", "work")
	put(t, db, learning, health, older, newer)

	// Topic-only scoring makes both scores exactly 1.
	s := defaultSettings()
	s.EmbeddingWeight, s.TopicWeight = 0, 1
	m := New(db, s)
	got, err := m.FindMatchesFor(context.Background(), []models.InsightRecord{learning, health}, 0, 0.5)
	require.NoError(t, err)
	require.Len(t, got, 2)

	// The newer candidate wins the tie even though the older one was found first.
	assert.Equal(t, 1.0, got[0].Score)
	assert.Equal(t, 1.0, got[1].Score)
	assert.Equal(t, "newer", got[0].RecordBID)
	assert.Equal(t, "q2", got[0].RecordAID)
	assert.Equal(t, "older", got[1].RecordBID)
}

func TestFindMatchesFor_NoRecords(t *testing.T) {
	m := New(testStore(t), defaultSettings())
	got, err := m.FindMatchesFor(context.Background(), nil, 0, -1)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

type slowStore struct {
	index.KnowledgeStore
	hits []index.Candidate
}

func (s slowStore) Query(ctx context.Context, _ []float32, _ index.TopicFilter, _ int) ([]index.Candidate, error) {
	<-ctx.Done()
	return s.hits, ctx.Err()
}

func TestFindMatches_TimeoutReturnsPartial(t *testing.T) {
	q := rec("q", "user-a", "Someone is reflecting on learning", 0, "learning")
	other := rec("o", "user-b", "Someone is reflecting on learning", 0, "learning")
	store := slowStore{hits: []index.Candidate{{Record: other, Similarity: 1}}}

	s := defaultSettings()
	s.Timeout = 10 * time.Millisecond
	got, err := New(store, s).FindMatches(context.Background(), q, 5, 0)
	require.ErrorIs(t, err, apperr.ErrMatchTimeout)
	require.Len(t, got, 1)
	assert.Equal(t, "o", got[0].RecordBID)
}

func TestScore(t *testing.T) {
	s := defaultSettings()
	a := models.InsightRecord{TopicTags: []string{"health", "work"}}
	b := models.InsightRecord{TopicTags: []string{"work", "finance"}}

	score, why := Score(s, a, b, 0.9)
	assert.InDelta(t, (0.7*0.9+0.3*(1.0/3.0))/1.0, score, 1e-9)
	assert.Equal(t, []string{"topic:work", RationaleSemanticHigh}, why)

	score, why = Score(s, a, models.InsightRecord{}, -0.4)
	assert.Zero(t, score)
	assert.Empty(t, why)

	_, why = Score(s, a, a, 0.6)
	assert.Equal(t, []string{"topic:health", "topic:work", RationaleSemanticModerate}, why)
}
