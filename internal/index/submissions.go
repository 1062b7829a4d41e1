package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/mindyard/internal/apperr"
	"github.com/starford/mindyard/internal/models"
)

// CreateSubmission records a new submission. Ids must be unique.
func (db *DB) CreateSubmission(ctx context.Context, s models.Submission) error {
	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = s.CreatedAt
	}
	res, err := db.conn.ExecContext(ctx, `
		INSERT OR IGNORE INTO submissions (id, owner_ref, status, records, attempts, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, s.ID, s.OwnerRef, string(s.Status), s.Records, s.Attempts, s.CreatedAt.UTC(), s.UpdatedAt.UTC())
	if err != nil {
		return storeErr("create submission", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("index: create submission %s: %w", s.ID, apperr.ErrAlreadyExists)
	}
	return nil
}

// UpdateSubmission stores the status, record count and attempts of s.
func (db *DB) UpdateSubmission(ctx context.Context, s models.Submission) error {
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = time.Now().UTC()
	}
	res, err := db.conn.ExecContext(ctx, `
		UPDATE submissions SET status = ?, records = ?, attempts = ?, updated_at = ?
		WHERE id = ?
	`, string(s.Status), s.Records, s.Attempts, s.UpdatedAt.UTC(), s.ID)
	if err != nil {
		return storeErr("update submission", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("index: update submission %s: %w", s.ID, apperr.ErrNotFound)
	}
	return nil
}

// GetSubmission returns a submission by id.
func (db *DB) GetSubmission(ctx context.Context, id string) (*models.Submission, error) {
	var (
		s      models.Submission
		status string
	)
	err := db.conn.QueryRowContext(ctx, `
		SELECT id, owner_ref, status, records, attempts, created_at, updated_at
		FROM submissions WHERE id = ?
	`, id).Scan(&s.ID, &s.OwnerRef, &status, &s.Records, &s.Attempts, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index: get submission %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, storeErr("get submission", err)
	}
	s.Status = models.SubmissionStatus(status)
	return &s, nil
}

// PendingSubmissions returns submissions that were accepted but never
// finished, oldest first. Raw text is not persisted, so after a restart
// these can only be marked failed.
func (db *DB) PendingSubmissions(ctx context.Context) ([]models.Submission, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, owner_ref, status, records, attempts, created_at, updated_at
		FROM submissions WHERE status IN (?, ?, ?)
		ORDER BY created_at
	`, string(models.SubmissionPending), string(models.SubmissionProcessing), string(models.SubmissionDelayed))
	if err != nil {
		return nil, storeErr("pending submissions", err)
	}
	defer rows.Close()
	var out []models.Submission
	for rows.Next() {
		var (
			s      models.Submission
			status string
		)
		if err := rows.Scan(&s.ID, &s.OwnerRef, &status, &s.Records, &s.Attempts, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, storeErr("pending submissions: scan", err)
		}
		s.Status = models.SubmissionStatus(status)
		out = append(out, s)
	}
	return out, rows.Err()
}
