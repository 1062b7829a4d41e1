package sanitizer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/mindyard/internal/checksum"
	"github.com/starford/mindyard/internal/models"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testPolicy() Policy {
	return Policy{ConfidenceThreshold: 0.6, DetectorTimeout: time.Second}
}

func newTestSanitizer(extra ...Detector) *Sanitizer {
	return New(checksum.NewHasher("test-secret-0123456789"), quietLogger(), testPolicy(), extra...)
}

func frag(text string, tags ...string) models.RawFragment {
	return models.RawFragment{ID: "f000", Text: text, ProvisionalTags: tags}
}

func TestSanitize_AliceScenario(t *testing.T) {
	s := newTestSanitizer()
	ctx := context.Background()

	name := s.Sanitize(ctx, frag("My name is Alice", "entity:Alice"))
	assert.Equal(t, models.LabelRedact, name.Verdict.Label)
	assert.NotContains(t, name.Fragment.Text, "Alice")
	assert.Equal(t, "My name is [redacted]", name.Fragment.Text)

	place := s.Sanitize(ctx, frag("I live in Boston", "entity:Boston"))
	assert.Contains(t, []models.SensitivityLabel{models.LabelGeneralizable, models.LabelReject}, place.Verdict.Label)
	assert.NotContains(t, place.Fragment.Text, "Boston")

	claim := s.Sanitize(ctx, frag("I'm struggling with anxiety about my job", "topic:health", "topic:work", "tone:negative"))
	assert.Equal(t, models.LabelGeneralizable, claim.Verdict.Label)
	assert.Equal(t, "I'm struggling with a health concern about my job", claim.Fragment.Text)
	assert.ElementsMatch(t, []string{"topic:health", "topic:work", "tone:negative"}, claim.Fragment.Tags)
}

func TestSanitize_Identifiers(t *testing.T) {
	s := newTestSanitizer()
	for _, text := range []string{
		"write to me at someone@example.com",
		"my number is +1 (555) 123-4567",
		"ssn 123-45-6789 on the form",
		"see https://example.com/profile",
		"ping @night_owl later",
		"I moved to 221 Baker Street recently",
	} {
		res := s.Sanitize(context.Background(), frag(text))
		assert.Equal(t, models.LabelReject, res.Verdict.Label, text)
		assert.Empty(t, res.Fragment.Text, text)
	}
}

func TestSanitize_PublicWhenNothingFires(t *testing.T) {
	s := newTestSanitizer()
	res := s.Sanitize(context.Background(), frag("Learning a new programming language is fun"))
	assert.Equal(t, models.LabelPublic, res.Verdict.Label)
	assert.Equal(t, TransformNone, res.Verdict.AppliedTransform)
	assert.Equal(t, 1.0, res.Verdict.Confidence)
	assert.Equal(t, "Learning a new programming language is fun", res.Fragment.Text)
}

func TestSanitize_ClauseInitialNameFailsClosed(t *testing.T) {
	s := newTestSanitizer()
	for _, tc := range []struct {
		text string
		name string
		tags []string
	}{
		{"Kwame was upset about the deadline at work", "Kwame", nil},
		{"Reykjavik winters make me anxious about work", "Reykjavik", nil},
		{"Siobhan said my promotion is coming", "Siobhan", []string{"entity:Siobhan"}},
	} {
		res := s.Sanitize(context.Background(), frag(tc.text, tc.tags...))
		assert.NotEqual(t, models.LabelPublic, res.Verdict.Label, tc.text)
		assert.NotContains(t, res.Fragment.Text, tc.name, tc.text)
	}
}

func TestSanitize_CommonClauseOpenersStayPublic(t *testing.T) {
	s := newTestSanitizer()
	for _, text := range []string{
		"Yesterday was a long day at work",
		"Honestly the launch went fine",
		"Working late again this week",
		"The deadline moved again",
	} {
		res := s.Sanitize(context.Background(), frag(text))
		assert.Equal(t, models.LabelPublic, res.Verdict.Label, text)
		assert.Equal(t, text, res.Fragment.Text)
	}
}

func TestSanitize_OpaqueAndEmptyRejected(t *testing.T) {
	s := newTestSanitizer()
	assert.Equal(t, models.LabelReject, s.Sanitize(context.Background(), frag("QUJDREVG", models.TagOpaque)).Verdict.Label)
	assert.Equal(t, models.LabelReject, s.Sanitize(context.Background(), frag("   ")).Verdict.Label)
}

func TestSanitize_EntityTagsNeverLeave(t *testing.T) {
	s := newTestSanitizer()
	res := s.Sanitize(context.Background(), frag("we talked for hours", "entity:Zed", "topic:relationship", "intent:chat"))
	for _, tg := range res.Fragment.Tags {
		assert.False(t, strings.HasPrefix(tg, models.TagPrefixEntity), "entity tag leaked: %s", tg)
	}
}

func TestSanitize_LowConfidenceEscalates(t *testing.T) {
	s := newTestSanitizer()
	p := testPolicy()
	p.Weights = map[Kind]float64{KindProperNoun: 0.5}
	s.SetPolicy(p)

	res := s.Sanitize(context.Background(), frag("we hiked with Zed yesterday"))
	assert.Equal(t, models.LabelReject, res.Verdict.Label)
	assert.Contains(t, res.Verdict.AppliedTransform, "escalated")
}

func TestSanitize_MostRestrictiveWins(t *testing.T) {
	s := newTestSanitizer()
	res := s.Sanitize(context.Background(), frag("my therapist in Boston said my anxiety is common"))
	assert.Equal(t, models.LabelReject, res.Verdict.Label)
}

type failingDetector struct{ err error }

func (failingDetector) Name() string { return "failing" }
func (d failingDetector) Detect(context.Context, Input) ([]Finding, error) {
	return nil, d.err
}

type panickingDetector struct{}

func (panickingDetector) Name() string { return "panicking" }
func (panickingDetector) Detect(context.Context, Input) ([]Finding, error) {
	panic("boom")
}

type slowDetector struct{}

func (slowDetector) Name() string { return "slow" }
func (slowDetector) Detect(ctx context.Context, _ Input) ([]Finding, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type badSpanDetector struct{}

func (badSpanDetector) Name() string { return "bad_span" }
func (badSpanDetector) Detect(_ context.Context, in Input) ([]Finding, error) {
	return []Finding{{Start: 0, End: len(in.Text) + 10, Kind: KindPerson, Confidence: 1}}, nil
}

func TestSanitize_FailClosed(t *testing.T) {
	cases := map[string]Detector{
		"error":    failingDetector{err: errors.New("model unavailable")},
		"panic":    panickingDetector{},
		"timeout":  slowDetector{},
		"bad_span": badSpanDetector{},
	}
	for name, d := range cases {
		t.Run(name, func(t *testing.T) {
			s := newTestSanitizer(d)
			p := testPolicy()
			p.DetectorTimeout = 20 * time.Millisecond
			s.SetPolicy(p)

			res := s.Sanitize(context.Background(), frag("a perfectly harmless sentence about gardening"))
			require.Greater(t, res.Verdict.Label, models.LabelPublic)
			assert.Equal(t, models.LabelReject, res.Verdict.Label)
			assert.Equal(t, TransformDetectorFailed, res.Verdict.AppliedTransform)
			assert.Empty(t, res.Fragment.Text)
		})
	}
}

func TestSanitize_CancelledContextStillDecides(t *testing.T) {
	s := newTestSanitizer()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := s.Sanitize(ctx, frag("a perfectly harmless sentence about gardening"))
	assert.Equal(t, models.LabelPublic, res.Verdict.Label)
}

func TestResanitize_LabelIsStable(t *testing.T) {
	s := newTestSanitizer()
	ctx := context.Background()
	corpus := []string{
		"My name is Alice",
		"I'm struggling with anxiety about my job",
		"My sister-in-law lent me $5,000 for rent",
		"I saw Dr. Smith about my insomnia",
		"Thinking about switching careers into design",
		"My ex cheated and the divorce went to court",
		"I told Priya about the ex-colleague",
		"we met at the Louvre last summer",
		"Learning a new programming language is fun",
	}
	for _, text := range corpus {
		first := s.Sanitize(ctx, frag(text))
		if first.Verdict.Label == models.LabelReject {
			continue
		}
		second := s.Resanitize(ctx, first.Fragment)
		assert.Equal(t, first.Verdict.Label, second.Verdict.Label, "label changed for %q", text)
		assert.Equal(t, first.Fragment.Text, second.Fragment.Text, "text changed for %q", text)
		assert.GreaterOrEqual(t, second.Verdict.Label, first.Fragment.Label, "less restrictive for %q", text)
	}
}

func TestSanitize_GeneralizationsCarryNoTriggers(t *testing.T) {
	s := newTestSanitizer()
	res := s.Sanitize(context.Background(), frag("My ex cheated and the divorce went to court"))
	require.Equal(t, models.LabelGeneralizable, res.Verdict.Label)
	for _, w := range []string{"ex", "cheated", "divorce", "court"} {
		assert.NotContains(t, strings.Fields(res.Fragment.Text), w)
	}
}

func TestSanitize_FragmentHashIsKeyed(t *testing.T) {
	a := New(checksum.NewHasher("secret-one-0123456"), quietLogger(), testPolicy())
	b := New(checksum.NewHasher("secret-two-0123456"), quietLogger(), testPolicy())
	fa := a.Sanitize(context.Background(), frag("hello there friend")).Verdict.FragmentHash
	fb := b.Sanitize(context.Background(), frag("hello there friend")).Verdict.FragmentHash
	assert.NotEqual(t, fa, fb)
	assert.NotEqual(t, checksum.Sum([]byte("hello there friend")), fa)
}

func fakeChatServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			ID:     "chatcmpl-1",
			Object: "chat.completion",
			Choices: []openai.ChatCompletionChoice{{
				Message:      openai.ChatCompletionMessage{Role: "assistant", Content: content},
				FinishReason: "stop",
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newLLMSanitizer(t *testing.T, content string) *Sanitizer {
	t.Helper()
	srv := fakeChatServer(t, content)
	det, err := NewLLMDetector(LLMConfig{APIKey: "test-key", BaseURL: srv.URL, Timeout: time.Second})
	require.NoError(t, err)
	return newTestSanitizer(det)
}

func TestLLMDetector_RedactsReportedName(t *testing.T) {
	s := newLLMSanitizer(t, `{"findings":[{"text":"zorblax","kind":"person"}]}`)
	res := s.Sanitize(context.Background(), frag("yesterday my pal zorblax called"))
	assert.Equal(t, models.LabelRedact, res.Verdict.Label)
	assert.Equal(t, "yesterday my pal [redacted] called", res.Fragment.Text)
}

func TestLLMDetector_UnlocatedFindingRejects(t *testing.T) {
	s := newLLMSanitizer(t, `{"findings":[{"text":"somewhere else","kind":"location"}]}`)
	res := s.Sanitize(context.Background(), frag("yesterday my pal called"))
	assert.Equal(t, models.LabelReject, res.Verdict.Label)
}

func TestLLMDetector_UnknownKindRejects(t *testing.T) {
	s := newLLMSanitizer(t, `{"findings":[{"text":"pal","kind":"biometric"}]}`)
	res := s.Sanitize(context.Background(), frag("yesterday my pal called"))
	assert.Equal(t, models.LabelReject, res.Verdict.Label)
	assert.Contains(t, res.Verdict.AppliedTransform, "unclassified")
}

func TestLLMDetector_GarbageRejects(t *testing.T) {
	s := newLLMSanitizer(t, "I cannot help with that")
	res := s.Sanitize(context.Background(), frag("yesterday my pal called"))
	assert.Equal(t, models.LabelReject, res.Verdict.Label)
	assert.Equal(t, TransformDetectorFailed, res.Verdict.AppliedTransform)
}

func TestNewLLMDetector_RequiresKey(t *testing.T) {
	_, err := NewLLMDetector(LLMConfig{})
	require.Error(t, err)
}

func TestApplyEdits_MergesOverlaps(t *testing.T) {
	text := "I saw Dr. Smith today"
	got := applyEdits(text, []edit{
		{start: 6, end: 8, replacement: redactedMarker, redact: true},
		{start: 6, end: 15, replacement: redactedMarker, redact: true},
	})
	assert.Equal(t, "I saw [redacted] today", got)
}
