// Package apperr defines the error taxonomy shared across the pipeline.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrAlreadyExists    = errors.New("already exists")
	ErrInvalidInput     = errors.New("invalid input")
	ErrRateLimited      = errors.New("rate limited")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrMatchTimeout     = errors.New("match timeout")
)

// AnalysisError is raised while splitting or tagging raw input.
// It is non-fatal: the analyzer degrades to a single opaque fragment.
type AnalysisError struct {
	Err error
}

func (e *AnalysisError) Error() string { return fmt.Sprintf("analysis: %v", e.Err) }
func (e *AnalysisError) Unwrap() error { return e.Err }

// SanitizationError is raised when a detector fails. The affected fragment
// is always rejected.
type SanitizationError struct {
	FragmentID string
	Detector   string
	Err        error
}

func (e *SanitizationError) Error() string {
	return fmt.Sprintf("sanitize %s: detector %s: %v", e.FragmentID, e.Detector, e.Err)
}
func (e *SanitizationError) Unwrap() error { return e.Err }

// DistillationError drops one topical group; the rest of the batch continues.
type DistillationError struct {
	Group string
	Err   error
}

func (e *DistillationError) Error() string {
	return fmt.Sprintf("distill group %q: %v", e.Group, e.Err)
}
func (e *DistillationError) Unwrap() error { return e.Err }

// User-visible messages. Nothing else is ever returned to end users.
const (
	MsgDelayed     = "processing delayed"
	MsgNoMatches   = "no matches found yet"
	MsgNotFound    = "not found"
	MsgInvalid     = "invalid request"
	MsgRateLimited = "too many submissions"
	MsgInternal    = "internal error"
)

// UserMessage maps err to a generic message safe to show to an end user.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return MsgNotFound
	case errors.Is(err, ErrInvalidInput):
		return MsgInvalid
	case errors.Is(err, ErrRateLimited):
		return MsgRateLimited
	case errors.Is(err, ErrStoreUnavailable):
		return MsgDelayed
	case errors.Is(err, ErrMatchTimeout):
		return MsgNoMatches
	default:
		return MsgInternal
	}
}
