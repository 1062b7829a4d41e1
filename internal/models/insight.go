package models

import "time"

// InsightRecord is a privacy-safe, abstracted statement stored in the
// knowledge store. It never contains raw fragment text.
type InsightRecord struct {
	ID            string    `json:"id"`
	Statement     string    `json:"abstracted_statement"`
	TopicTags     []string  `json:"topic_tags"`
	Embedding     []float32 `json:"-"`
	ProvenanceRef string    `json:"provenance_ref"`
	OwnerRef      string    `json:"-"`
	VerdictRefs   []string  `json:"verdict_refs"`
	Supersedes    string    `json:"supersedes,omitempty"`
	ShareScore    int       `json:"share_score"`
	CreatedAt     time.Time `json:"created_at"`
}

// MatchCandidate is a ranked pairing between two insight records.
type MatchCandidate struct {
	RecordAID     string   `json:"record_a_id"`
	RecordBID     string   `json:"record_b_id"`
	Score         float64  `json:"score"`
	RationaleTags []string `json:"rationale_tags"`
}

// AuditEntry is one append-only audit log row.
type AuditEntry struct {
	Seq          int64            `json:"seq"`
	FragmentHash string           `json:"fragment_hash"`
	Label        SensitivityLabel `json:"label"`
	Transform    string           `json:"transform"`
	Timestamp    time.Time        `json:"timestamp"`
}

// SubmissionStatus is the lifecycle state of a submitted raw note.
type SubmissionStatus string

const (
	SubmissionPending    SubmissionStatus = "pending"
	SubmissionProcessing SubmissionStatus = "processing"
	SubmissionDelayed    SubmissionStatus = "delayed"
	SubmissionCompleted  SubmissionStatus = "completed"
	SubmissionFailed     SubmissionStatus = "failed"
)

// Submission tracks an asynchronous pipeline run. Raw text is never part of it.
type Submission struct {
	ID        string           `json:"submission_id"`
	OwnerRef  string           `json:"-"`
	Status    SubmissionStatus `json:"status"`
	Records   int              `json:"records"`
	Attempts  int              `json:"attempts"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}
