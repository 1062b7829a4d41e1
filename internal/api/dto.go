package api

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/mindyard/internal/index"
	"github.com/starford/mindyard/internal/insightservice"
	"github.com/starford/mindyard/internal/models"
)

// SubmitNoteRequest is the request body for submitting a raw note.
type SubmitNoteRequest struct {
	UserID    string     `json:"user_id" example:"user-42" validate:"required"`
	Text      string     `json:"text" example:"Thinking about switching careers" validate:"required"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// Validate validates the request.
func (r SubmitNoteRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.UserID, validation.Required),
		validation.Field(&r.Text, validation.Required),
	)
}

// CorrectionRequest is the request body for correcting a stored insight.
type CorrectionRequest struct {
	UserID string `json:"user_id" example:"user-42" validate:"required"`
	Text   string `json:"text" example:"Actually I decided to stay" validate:"required"`
}

// Validate validates the request.
func (r CorrectionRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.UserID, validation.Required),
		validation.Field(&r.Text, validation.Required),
	)
}

// SubmissionAccepted is returned when a note was queued.
type SubmissionAccepted struct {
	SubmissionID string                  `json:"submission_id" validate:"required"`
	Status       models.SubmissionStatus `json:"status" example:"pending" validate:"required"`
}

// Submission is the status response type (aliased from the domain layer).
type Submission = models.Submission

// InsightView is the audit view of one record (aliased from the domain layer).
type InsightView = insightservice.InsightView

// MatchesResponse wraps match candidates. Message is set when the list is
// empty or incomplete.
type MatchesResponse struct {
	Matches []models.MatchCandidate `json:"matches" validate:"required"`
	Message string                  `json:"message,omitempty" example:"no matches found yet"`
}

// InsightListResponse wraps paginated insight listings.
type InsightListResponse struct {
	Insights []models.InsightRecord `json:"insights" validate:"required"`
	Total    int                    `json:"total" example:"42" validate:"required"`
}

// SearchResponse wraps statement search results.
type SearchResponse struct {
	Results []index.SearchResult `json:"results" validate:"required"`
}

// AuditResponse wraps audit entries.
type AuditResponse struct {
	Entries []models.AuditEntry `json:"entries" validate:"required"`
}
