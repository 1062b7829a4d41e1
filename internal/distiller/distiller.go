// Package distiller compresses sanitized fragments into abstracted,
// portable insight records.
package distiller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/starford/mindyard/internal/analyzer"
	"github.com/starford/mindyard/internal/apperr"
	"github.com/starford/mindyard/internal/checksum"
	"github.com/starford/mindyard/internal/embedding"
	"github.com/starford/mindyard/internal/models"
)

// Settings bounds distillation.
type Settings struct {
	MaxStatementLength int
	SimilarityCeiling  float64
	ShingleSize        int
	MinContentWords    int
	EmbedTimeout       time.Duration
	SharingThreshold   int
}

// Scope identifies the submission being distilled.
type Scope struct {
	OwnerRef     string
	SubmissionID string
	// Supersedes links every produced record to a record being corrected.
	Supersedes string
	CreatedAt  time.Time
}

// Distiller turns sanitized fragments into insight records. It never sees
// raw text.
type Distiller struct {
	settings Settings
	embedder embedding.Embedder
	hasher   *checksum.Hasher
	logger   *slog.Logger
}

// New creates a Distiller.
func New(settings Settings, embedder embedding.Embedder, hasher *checksum.Hasher, logger *slog.Logger) *Distiller {
	if settings.ShingleSize <= 0 {
		settings.ShingleSize = 3
	}
	if settings.MaxStatementLength <= 0 {
		settings.MaxStatementLength = 160
	}
	if settings.EmbedTimeout <= 0 {
		settings.EmbedTimeout = 5 * time.Second
	}
	return &Distiller{
		settings: settings,
		embedder: embedder,
		hasher:   hasher,
		logger:   logger,
	}
}

// RecordID returns the content-derived id of a statement distilled for owner.
func RecordID(ownerRef, statement string) string {
	return checksum.Sum([]byte(ownerRef + "\x00" + normalizeStatement(statement)))
}

type group struct {
	frags  []models.SanitizedFragment
	topics []string
}

// Distill returns records in group order. Groups that cannot be distilled
// safely are dropped; their errors are joined into the returned error while
// the remaining records are still returned. An empty input, or one where
// every fragment was rejected, yields no records and no error.
func (d *Distiller) Distill(ctx context.Context, scope Scope, frags []models.SanitizedFragment) ([]models.InsightRecord, error) {
	createdAt := scope.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	var (
		records []models.InsightRecord
		errs    []error
		seen    = make(map[string]struct{})
	)
	for _, g := range d.group(frags) {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		rec, err := d.distillGroup(ctx, scope, g, createdAt)
		if err != nil {
			label := strings.Join(g.topics, "+")
			errs = append(errs, &apperr.DistillationError{Group: label, Err: err})
			d.logger.Debug("distiller: group dropped",
				slog.String("submission_id", scope.SubmissionID),
				slog.String("group", label),
				slog.String("error", err.Error()))
			continue
		}
		if rec == nil {
			continue
		}
		if _, dup := seen[rec.ID]; dup {
			continue
		}
		seen[rec.ID] = struct{}{}
		records = append(records, *rec)
	}
	return records, errors.Join(errs...)
}

// group keeps shareable fragments and unions those that share a topic.
func (d *Distiller) group(frags []models.SanitizedFragment) []group {
	var kept []models.SanitizedFragment
	var topics [][]string
	for _, f := range frags {
		if f.Label == models.LabelReject || f.Text == "" {
			continue
		}
		if contentWords(f.Text) < d.settings.MinContentWords {
			continue
		}
		ts := knownTopics(f.Tags)
		if len(ts) == 0 {
			continue
		}
		kept = append(kept, f)
		topics = append(topics, ts)
	}

	parent := make([]int, len(kept))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}
	owner := make(map[string]int)
	for i, ts := range topics {
		for _, t := range ts {
			if j, ok := owner[t]; ok {
				ri, rj := find(i), find(j)
				if ri != rj {
					if ri < rj {
						parent[rj] = ri
					} else {
						parent[ri] = rj
					}
				}
				continue
			}
			owner[t] = i
		}
	}

	index := make(map[int]int)
	var groups []group
	for i, f := range kept {
		root := find(i)
		gi, ok := index[root]
		if !ok {
			gi = len(groups)
			index[root] = gi
			groups = append(groups, group{})
		}
		groups[gi].frags = append(groups[gi].frags, f)
	}
	for gi := range groups {
		var all []string
		for _, f := range groups[gi].frags {
			all = append(all, f.Tags...)
		}
		groups[gi].topics = knownTopics(all)
	}
	return groups
}

// knownTopics returns the taxonomy topics among tags in priority order.
func knownTopics(tags []string) []string {
	present := make(map[string]struct{})
	for _, t := range models.TagValues(tags, models.TagPrefixTopic) {
		present[t] = struct{}{}
	}
	var out []string
	for _, t := range analyzer.Topics {
		if _, ok := present[t]; ok {
			out = append(out, t)
		}
	}
	return out
}

func (d *Distiller) distillGroup(ctx context.Context, scope Scope, g group, createdAt time.Time) (*models.InsightRecord, error) {
	tone, intent := groupTone(g.frags), groupIntent(g.frags)

	statement := truncateWords(compose(chooseVerb(tone, intent), g.topics), d.settings.MaxStatementLength)
	if err := d.check(statement, g.frags); err != nil {
		statement = truncateWords(compose(verbReflecting, g.topics[:1]), d.settings.MaxStatementLength)
		if err := d.check(statement, g.frags); err != nil {
			return nil, err
		}
	}

	score := shareScore(g, tone)
	if score < d.settings.SharingThreshold {
		return nil, nil
	}

	ectx, cancel := context.WithTimeout(ctx, d.settings.EmbedTimeout)
	defer cancel()
	vec, err := d.embedder.Embed(ectx, statement)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}

	hashes := make([]string, len(g.frags))
	for i, f := range g.frags {
		hashes[i] = f.FragmentHash
	}
	topicTags := make([]string, len(g.topics))
	copy(topicTags, g.topics)

	return &models.InsightRecord{
		ID:            RecordID(scope.OwnerRef, statement),
		Statement:     statement,
		TopicTags:     topicTags,
		Embedding:     vec,
		ProvenanceRef: d.hasher.Provenance(scope.SubmissionID, hashes...),
		OwnerRef:      scope.OwnerRef,
		VerdictRefs:   hashes,
		Supersedes:    scope.Supersedes,
		ShareScore:    score,
		CreatedAt:     createdAt,
	}, nil
}

var (
	errEmptyStatement    = errors.New("empty statement")
	errProperNoun        = errors.New("statement contains a proper noun")
	errSimilarityTooHigh = errors.New("statement too close to source fragment")
)

// check enforces the post-hoc bounds on a statement.
func (d *Distiller) check(statement string, frags []models.SanitizedFragment) error {
	if statement == "" {
		return errEmptyStatement
	}
	if hasProperNoun(statement) {
		return errProperNoun
	}
	for _, f := range frags {
		if shingleOverlap(statement, f.Text, d.settings.ShingleSize) > d.settings.SimilarityCeiling {
			return errSimilarityTooHigh
		}
	}
	return nil
}

func groupTone(frags []models.SanitizedFragment) string {
	tone := analyzer.ToneNeutral
	for _, f := range frags {
		switch models.FirstTagValue(f.Tags, models.TagPrefixTone) {
		case analyzer.ToneNegative:
			return analyzer.ToneNegative
		case analyzer.TonePositive:
			tone = analyzer.TonePositive
		}
	}
	return tone
}

func groupIntent(frags []models.SanitizedFragment) string {
	for _, f := range frags {
		if in := models.FirstTagValue(f.Tags, models.TagPrefixIntent); in != "" && in != analyzer.IntentChat {
			return in
		}
	}
	return analyzer.IntentChat
}

// shareScore rates how useful a record is to other people, from 0 to 100.
func shareScore(g group, tone string) int {
	cw := 0
	for _, f := range g.frags {
		cw += contentWords(f.Text)
	}
	score := 30 + 2*min(cw, 20) + 10*min(len(g.topics), 2)
	if tone != analyzer.ToneNeutral {
		score += 10
	}
	return min(score, 100)
}
