// Package insightservice is the asynchronous front door of the pipeline:
// it accepts raw notes, runs them on the worker pool with retries, and
// serves matches and audit views built only from stored records.
package insightservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/starford/mindyard/internal/apperr"
	"github.com/starford/mindyard/internal/checksum"
	"github.com/starford/mindyard/internal/index"
	"github.com/starford/mindyard/internal/matcher"
	"github.com/starford/mindyard/internal/models"
	"github.com/starford/mindyard/internal/pipeline"
	"github.com/starford/mindyard/internal/worker"
)

// Submission event kinds passed to Notifier.
const (
	EventCompleted = "completed"
	EventFailed    = "failed"
	EventDelayed   = "delayed"
)

// Notifier is told about submission lifecycle changes. Only the submission
// id and kind are passed; never text.
type Notifier interface {
	PublishSubmissionEvent(kind, submissionID string)
}

type nopNotifier struct{}

func (nopNotifier) PublishSubmissionEvent(string, string) {}

// Options controls background processing.
type Options struct {
	Workers       int
	QueueSize     int
	MaxAttempts   int
	Backoff       worker.Backoff
	RatePerSecond float64
	Burst         int
	MaxNoteBytes  int
}

// InsightView is the audit view of a single record.
type InsightView struct {
	models.InsightRecord
	SupersededBy string `json:"superseded_by,omitempty"`
}

// Service coordinates the pipeline, the knowledge store and the matcher.
type Service struct {
	db       *index.DB
	pipeline *pipeline.Pipeline
	matcher  *matcher.Matcher
	hasher   *checksum.Hasher
	notifier Notifier
	logger   *slog.Logger
	opts     Options

	pool    *worker.Pool
	limiter *worker.Limiter
}

// NewService creates a new insight service. Call Start before submitting.
func NewService(db *index.DB, p *pipeline.Pipeline, m *matcher.Matcher, hasher *checksum.Hasher,
	notifier Notifier, logger *slog.Logger, opts Options) *Service {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	s := &Service{
		db:       db,
		pipeline: p,
		matcher:  m,
		hasher:   hasher,
		notifier: notifier,
		logger:   logger,
		opts:     opts,
		limiter:  worker.NewLimiter(opts.RatePerSecond, opts.Burst),
	}
	s.pool = worker.NewPool(opts.Workers, opts.QueueSize, s.onResult)
	return s
}

// Start fails submissions abandoned by a previous process and starts the workers.
func (s *Service) Start(ctx context.Context) error {
	n, err := s.FailAbandoned(ctx)
	if err != nil {
		return fmt.Errorf("insightservice: start: %w", err)
	}
	if n > 0 {
		s.logger.Warn("insightservice: marked abandoned submissions failed", slog.Int("count", n))
	}
	s.pool.Start()
	return nil
}

// Stop waits for queued submissions until ctx expires.
func (s *Service) Stop(ctx context.Context) error {
	return s.pool.Stop(ctx)
}

// SubmitRawNote accepts a raw note for asynchronous processing and returns
// its submission id. The text is kept in memory only for the duration of the run.
func (s *Service) SubmitRawNote(ctx context.Context, userID, rawText string, ts time.Time) (string, error) {
	return s.submit(ctx, userID, rawText, ts, "")
}

// SubmitCorrection re-submits text that replaces one of the user's records.
// Records that do not belong to the user are reported as not found.
func (s *Service) SubmitCorrection(ctx context.Context, userID, recordID, rawText string) (string, error) {
	if err := validation.Validate(userID, validation.Required); err != nil {
		return "", fmt.Errorf("%w: user_id: %v", apperr.ErrInvalidInput, err)
	}
	rec, err := s.db.Get(ctx, recordID)
	if err != nil {
		return "", err
	}
	if rec.OwnerRef != s.hasher.Owner(userID) {
		return "", fmt.Errorf("insightservice: correction %s: %w", recordID, apperr.ErrNotFound)
	}
	return s.submit(ctx, userID, rawText, time.Time{}, rec.ID)
}

func (s *Service) submit(ctx context.Context, userID, rawText string, ts time.Time, supersedes string) (string, error) {
	if err := s.validateNote(userID, rawText); err != nil {
		return "", err
	}
	owner := s.hasher.Owner(userID)
	if !s.limiter.Allow(owner) {
		return "", fmt.Errorf("insightservice: submit: %w", apperr.ErrRateLimited)
	}
	if ts.IsZero() {
		ts = time.Now()
	}

	now := time.Now().UTC()
	sub := models.Submission{
		ID:        uuid.NewString(),
		OwnerRef:  owner,
		Status:    models.SubmissionPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.db.CreateSubmission(ctx, sub); err != nil {
		return "", err
	}

	in := pipeline.Input{
		SubmissionID: sub.ID,
		OwnerRef:     owner,
		Text:         rawText,
		Timestamp:    ts.UTC(),
		Supersedes:   supersedes,
	}
	job := worker.JobFunc(func(ctx context.Context) error {
		return s.process(ctx, sub, in)
	})
	if !s.pool.Submit(job) {
		s.finish(ctx, sub, models.SubmissionFailed, 0)
		return "", fmt.Errorf("insightservice: queue full: %w", apperr.ErrRateLimited)
	}
	return sub.ID, nil
}

func (s *Service) validateNote(userID, rawText string) error {
	err := validation.Errors{
		"user_id": validation.Validate(userID, validation.Required, validation.Length(1, 256)),
		"text": validation.Validate(strings.TrimSpace(rawText), validation.Required,
			validation.By(func(any) error {
				if s.opts.MaxNoteBytes > 0 && len(rawText) > s.opts.MaxNoteBytes {
					return fmt.Errorf("must be at most %d bytes", s.opts.MaxNoteBytes)
				}
				return nil
			})),
	}.Filter()
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err)
	}
	return nil
}

// process runs one submission, retrying store outages with exponential backoff.
func (s *Service) process(ctx context.Context, sub models.Submission, in pipeline.Input) error {
	log := s.logger.With(slog.String("submission_id", sub.ID))
	for attempt := 1; ; attempt++ {
		sub.Attempts = attempt
		s.setStatus(ctx, &sub, models.SubmissionProcessing)

		res, err := s.pipeline.Run(ctx, in)
		if err == nil {
			s.finish(ctx, sub, models.SubmissionCompleted, len(res.Records))
			return nil
		}
		if !errors.Is(err, apperr.ErrStoreUnavailable) || attempt >= s.opts.MaxAttempts || ctx.Err() != nil {
			log.Error("insightservice: submission failed",
				slog.Int("attempt", attempt), slog.String("error", err.Error()))
			s.finish(ctx, sub, models.SubmissionFailed, 0)
			return err
		}

		delay := s.opts.Backoff.Delay(attempt)
		log.Warn("insightservice: store unavailable, retrying",
			slog.Int("attempt", attempt), slog.Duration("delay", delay))
		s.setStatus(ctx, &sub, models.SubmissionDelayed)
		s.notifier.PublishSubmissionEvent(EventDelayed, sub.ID)
		if err := worker.Sleep(ctx, delay); err != nil {
			s.finish(ctx, sub, models.SubmissionFailed, 0)
			return err
		}
	}
}

func (s *Service) setStatus(ctx context.Context, sub *models.Submission, status models.SubmissionStatus) {
	sub.Status = status
	sub.UpdatedAt = time.Now().UTC()
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.db.UpdateSubmission(ctx, *sub); err != nil {
		s.logger.Warn("insightservice: update submission",
			slog.String("submission_id", sub.ID), slog.String("error", err.Error()))
	}
}

func (s *Service) finish(ctx context.Context, sub models.Submission, status models.SubmissionStatus, records int) {
	sub.Records = records
	s.setStatus(ctx, &sub, status)
	kind := EventFailed
	if status == models.SubmissionCompleted {
		kind = EventCompleted
	}
	s.notifier.PublishSubmissionEvent(kind, sub.ID)
}

func (s *Service) onResult(r worker.Result) {
	if err := r.GetError(); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Debug("insightservice: job finished with error", slog.String("error", err.Error()))
	}
}

// FailAbandoned marks submissions left unfinished by a previous process as
// failed. Their raw text was never persisted, so they cannot be resumed.
func (s *Service) FailAbandoned(ctx context.Context) (int, error) {
	pending, err := s.db.PendingSubmissions(ctx)
	if err != nil {
		return 0, err
	}
	for _, sub := range pending {
		sub.Status = models.SubmissionFailed
		sub.UpdatedAt = time.Now().UTC()
		if err := s.db.UpdateSubmission(ctx, sub); err != nil {
			return 0, err
		}
	}
	return len(pending), nil
}

// Status returns the lifecycle state of a submission.
func (s *Service) Status(ctx context.Context, submissionID string) (*models.Submission, error) {
	return s.db.GetSubmission(ctx, submissionID)
}

// ListMatches merges matches for every current record of the user, keeping
// the best score per candidate record and ranking as the matcher does. A
// matcher timeout yields the partial list together with an error wrapping
// apperr.ErrMatchTimeout.
func (s *Service) ListMatches(ctx context.Context, userID string, minScore float64) ([]models.MatchCandidate, error) {
	if err := validation.Validate(userID, validation.Required); err != nil {
		return nil, fmt.Errorf("%w: user_id: %v", apperr.ErrInvalidInput, err)
	}
	if math.IsNaN(minScore) || minScore > 1 {
		return nil, fmt.Errorf("%w: min_score must be at most 1", apperr.ErrInvalidInput)
	}
	recs, err := s.db.ListByOwner(ctx, s.hasher.Owner(userID))
	if err != nil {
		return nil, err
	}
	return s.matcher.FindMatchesFor(ctx, recs, 0, minScore)
}

// GetInsightRecord returns a stored record for audit views. Superseded
// records remain readable and point at their replacement.
func (s *Service) GetInsightRecord(ctx context.Context, id string) (*InsightView, error) {
	rec, err := s.db.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	newer, err := s.db.SupersededBy(ctx, id)
	if err != nil {
		return nil, err
	}
	return &InsightView{InsightRecord: *rec, SupersededBy: newer}, nil
}

// ListInsights pages through stored records.
func (s *Service) ListInsights(ctx context.Context, limit, offset int, topic string) ([]models.InsightRecord, int, error) {
	return s.db.ListInsights(ctx, limit, offset, topic)
}

// SearchInsights runs a full-text search over abstracted statements.
func (s *Service) SearchInsights(ctx context.Context, query string, limit int) ([]index.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty query", apperr.ErrInvalidInput)
	}
	return s.db.SearchStatements(ctx, query, limit)
}

// AuditLog returns audit entries after afterSeq, oldest first.
func (s *Service) AuditLog(ctx context.Context, limit int, afterSeq int64) ([]models.AuditEntry, error) {
	return s.db.ListAudit(ctx, limit, afterSeq)
}

// Ready reports whether the knowledge store is reachable.
func (s *Service) Ready(ctx context.Context) error {
	return s.db.Ping(ctx)
}
