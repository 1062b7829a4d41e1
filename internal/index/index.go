package index

import (
	"context"

	"github.com/starford/mindyard/internal/models"
)

// KnowledgeStore is the contract the pipeline and matcher depend on.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with fakes.
type KnowledgeStore interface {
	Put(ctx context.Context, rec models.InsightRecord) error
	Get(ctx context.Context, id string) (*models.InsightRecord, error)
	Query(ctx context.Context, embedding []float32, filter TopicFilter, k int) ([]Candidate, error)
	ListByOwner(ctx context.Context, ownerRef string) ([]models.InsightRecord, error)
}

// AuditLog is the append-only verdict log.
type AuditLog interface {
	AppendAudit(ctx context.Context, e models.AuditEntry) error
	ListAudit(ctx context.Context, limit int, afterSeq int64) ([]models.AuditEntry, error)
}

// SubmissionLedger tracks asynchronous submissions.
type SubmissionLedger interface {
	CreateSubmission(ctx context.Context, s models.Submission) error
	UpdateSubmission(ctx context.Context, s models.Submission) error
	GetSubmission(ctx context.Context, id string) (*models.Submission, error)
}

// Verify *DB satisfies the interfaces at compile time.
var (
	_ KnowledgeStore   = (*DB)(nil)
	_ AuditLog         = (*DB)(nil)
	_ SubmissionLedger = (*DB)(nil)
)
