// Package pipeline runs one submission through analyzer, sanitizer,
// distiller and knowledge store, strictly in that order.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/mindyard/internal/analyzer"
	"github.com/starford/mindyard/internal/distiller"
	"github.com/starford/mindyard/internal/index"
	"github.com/starford/mindyard/internal/models"
	"github.com/starford/mindyard/internal/sanitizer"
)

// Store is the part of the knowledge store a run writes to.
type Store interface {
	Put(ctx context.Context, rec models.InsightRecord) error
	AppendAudit(ctx context.Context, e models.AuditEntry) error
}

var _ Store = (*index.DB)(nil)

// Input is one submission. Text is raw and never leaves Run.
type Input struct {
	SubmissionID string
	OwnerRef     string
	Text         string
	Timestamp    time.Time
	// Supersedes marks every produced record as a correction of this id.
	Supersedes string
}

// Result is what a run produced. It never contains raw text.
type Result struct {
	Verdicts []models.SanitizationVerdict
	Records  []models.InsightRecord
}

// Pipeline wires the stages together. It is safe for concurrent use; runs
// share nothing but the store.
type Pipeline struct {
	analyzer  *analyzer.Analyzer
	sanitizer *sanitizer.Sanitizer
	distiller *distiller.Distiller
	store     Store
	logger    *slog.Logger
}

// New creates a Pipeline.
func New(a *analyzer.Analyzer, s *sanitizer.Sanitizer, d *distiller.Distiller, store Store, logger *slog.Logger) *Pipeline {
	return &Pipeline{analyzer: a, sanitizer: s, distiller: d, store: store, logger: logger}
}

// Run processes in. Cancellation is honoured between fragments, never in
// the middle of one sanitization decision. Store errors abort the run and
// are returned wrapped so callers can retry on apperr.ErrStoreUnavailable.
func (p *Pipeline) Run(ctx context.Context, in Input) (*Result, error) {
	log := p.logger.With(slog.String("submission_id", in.SubmissionID))

	frags, aerr := p.analyzer.Analyze(in.Text, models.SourceMetadata{
		SubmissionID: in.SubmissionID,
		Timestamp:    in.Timestamp,
	})
	if aerr != nil {
		log.Warn("pipeline: analysis degraded to opaque fragment", slog.String("error", aerr.Error()))
	}

	res := &Result{}
	sanitized := make([]models.SanitizedFragment, 0, len(frags))
	for _, f := range frags {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("pipeline: cancelled: %w", err)
		}
		out := p.sanitizer.Sanitize(ctx, f)
		if err := p.store.AppendAudit(ctx, models.AuditEntry{
			FragmentHash: out.Verdict.FragmentHash,
			Label:        out.Verdict.Label,
			Transform:    out.Verdict.AppliedTransform,
			Timestamp:    time.Now().UTC(),
		}); err != nil {
			return nil, fmt.Errorf("pipeline: audit: %w", err)
		}
		res.Verdicts = append(res.Verdicts, out.Verdict)
		if out.Verdict.Label == models.LabelReject {
			continue
		}
		sanitized = append(sanitized, out.Fragment)
	}

	if len(sanitized) == 0 {
		log.Info("pipeline: nothing shareable", slog.Int("fragments", len(frags)))
		return res, nil
	}

	records, derr := p.distiller.Distill(ctx, distiller.Scope{
		OwnerRef:     in.OwnerRef,
		SubmissionID: in.SubmissionID,
		Supersedes:   in.Supersedes,
	}, sanitized)
	if derr != nil {
		log.Warn("pipeline: distillation dropped groups", slog.String("error", derr.Error()))
	}

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("pipeline: cancelled: %w", err)
		}
		if err := p.store.Put(ctx, rec); err != nil {
			return nil, fmt.Errorf("pipeline: put: %w", err)
		}
		res.Records = append(res.Records, rec)
	}

	log.Info("pipeline: run complete",
		slog.Int("fragments", len(frags)),
		slog.Int("shareable", len(sanitized)),
		slog.Int("records", len(res.Records)))
	return res, nil
}
