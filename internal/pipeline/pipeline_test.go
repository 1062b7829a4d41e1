package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/mindyard/internal/analyzer"
	"github.com/starford/mindyard/internal/apperr"
	"github.com/starford/mindyard/internal/checksum"
	"github.com/starford/mindyard/internal/distiller"
	"github.com/starford/mindyard/internal/embedding"
	"github.com/starford/mindyard/internal/models"
	"github.com/starford/mindyard/internal/sanitizer"
)

type fakeStore struct {
	mu     sync.Mutex
	puts   []models.InsightRecord
	audits []models.AuditEntry
	putErr error
}

func (s *fakeStore) Put(_ context.Context, rec models.InsightRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return s.putErr
	}
	s.puts = append(s.puts, rec)
	return nil
}

func (s *fakeStore) AppendAudit(_ context.Context, e models.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audits = append(s.audits, e)
	return nil
}

func newTestPipeline(store Store) *Pipeline {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hasher := checksum.NewHasher("pipeline-test-secret")
	san := sanitizer.New(hasher, logger, sanitizer.Policy{ConfidenceThreshold: 0.6, DetectorTimeout: time.Second})
	dis := distiller.New(distiller.Settings{
		MaxStatementLength: 160,
		SimilarityCeiling:  0.5,
		ShingleSize:        3,
		MinContentWords:    2,
		EmbedTimeout:       time.Second,
	}, embedding.NewHashEmbedder(64), hasher, logger)
	return New(analyzer.New(), san, dis, store, logger)
}

const aliceNote = "My name is Alice, I live in Boston, and I'm struggling with anxiety about my job"

func TestRun_AliceScenario(t *testing.T) {
	store := &fakeStore{}
	res, err := newTestPipeline(store).Run(context.Background(), Input{
		SubmissionID: "sub-1",
		OwnerRef:     "owner-a",
		Text:         aliceNote,
		Timestamp:    time.Now(),
	})
	require.NoError(t, err)

	require.Len(t, res.Verdicts, 3)
	assert.Equal(t, models.LabelRedact, res.Verdicts[0].Label)
	assert.Contains(t, []models.SensitivityLabel{models.LabelGeneralizable, models.LabelReject}, res.Verdicts[1].Label)
	assert.Equal(t, models.LabelGeneralizable, res.Verdicts[2].Label)
	assert.Len(t, store.audits, 3)

	require.Len(t, res.Records, 1)
	require.Len(t, store.puts, 1)
	stmt := res.Records[0].Statement
	for _, leaked := range []string{"Alice", "Boston", "anxiety", "job"} {
		assert.NotContains(t, stmt, leaked)
	}
	for i, w := range strings.Fields(stmt) {
		if i > 0 {
			assert.False(t, unicode.IsUpper([]rune(w)[0]), "proper noun %q in %q", w, stmt)
		}
	}
	assert.ElementsMatch(t, []string{"health", "work"}, res.Records[0].TopicTags)
	assert.Equal(t, []string{res.Verdicts[2].FragmentHash}, res.Records[0].VerdictRefs)
}

func TestRun_NamesOpeningAClauseNeverPublic(t *testing.T) {
	cases := []struct {
		note string
		name string
	}{
		{"Kwame was upset about the deadline at work", "Kwame"},
		{"I finished the report, Siobhan said my promotion is coming", "Siobhan"},
		{"Reykjavik winters make me anxious about work", "Reykjavik"},
	}
	for _, tc := range cases {
		store := &fakeStore{}
		res, err := newTestPipeline(store).Run(context.Background(), Input{SubmissionID: "s", OwnerRef: "o", Text: tc.note})
		require.NoError(t, err, tc.note)
		require.NotEmpty(t, res.Verdicts, tc.note)

		last := res.Verdicts[len(res.Verdicts)-1]
		assert.NotEqual(t, models.LabelPublic, last.Label, tc.note)
		for _, r := range res.Records {
			assert.NotContains(t, r.Statement, tc.name, tc.note)
		}
	}
}

func TestRun_AllRejectedWritesNothing(t *testing.T) {
	for _, text := range []string{
		"12345 67890 !!! ### 2024-01-01",
		"Email me at someone@example.com",
	} {
		store := &fakeStore{}
		res, err := newTestPipeline(store).Run(context.Background(), Input{SubmissionID: "s", OwnerRef: "o", Text: text})
		require.NoError(t, err, text)
		assert.Empty(t, res.Records, text)
		assert.Empty(t, store.puts, text)
		assert.NotEmpty(t, store.audits, text)
		for _, v := range res.Verdicts {
			assert.Equal(t, models.LabelReject, v.Label, text)
		}
	}
}

func TestRun_StoreUnavailableIsFatal(t *testing.T) {
	store := &fakeStore{putErr: fmt.Errorf("index: put: %w", apperr.ErrStoreUnavailable)}
	_, err := newTestPipeline(store).Run(context.Background(), Input{SubmissionID: "s", OwnerRef: "o", Text: aliceNote})
	require.ErrorIs(t, err, apperr.ErrStoreUnavailable)
}

func TestRun_CancelledBeforeFirstFragment(t *testing.T) {
	store := &fakeStore{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestPipeline(store).Run(ctx, Input{SubmissionID: "s", OwnerRef: "o", Text: aliceNote})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, store.audits)
	assert.Empty(t, store.puts)
}

func TestRun_CorrectionSupersedes(t *testing.T) {
	store := &fakeStore{}
	res, err := newTestPipeline(store).Run(context.Background(), Input{
		SubmissionID: "s2",
		OwnerRef:     "o",
		Text:         "Thinking about switching careers into design, and it's exciting",
		Supersedes:   "old-id",
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.Records)
	for _, r := range res.Records {
		assert.Equal(t, "old-id", r.Supersedes)
	}
}
