package models

import (
	"strings"
	"time"
)

// Tag prefixes attached by the analyzer.
const (
	TagPrefixEntity = "entity:"
	TagPrefixTone   = "tone:"
	TagPrefixIntent = "intent:"
	TagPrefixTopic  = "topic:"

	// TagOpaque marks a fragment the analyzer could not parse.
	TagOpaque = "opaque"
)

// SourceMetadata is the minimal provenance the capture layer hands over.
type SourceMetadata struct {
	SubmissionID string
	Timestamp    time.Time
}

// RawFragment is an unsanitized, pipeline-local slice of a raw note.
// It is never persisted.
type RawFragment struct {
	ID              string
	Text            string
	SourceTimestamp time.Time
	ProvisionalTags []string
}

// HasTag reports whether the fragment carries tag.
func (f RawFragment) HasTag(tag string) bool {
	for _, t := range f.ProvisionalTags {
		if t == tag {
			return true
		}
	}
	return false
}

// SanitizedFragment is the output of the sanitizer. Text has already been
// transformed according to Label and Tags no longer carry entity values.
type SanitizedFragment struct {
	FragmentID   string
	FragmentHash string
	Text         string
	Tags         []string
	Label        SensitivityLabel
	Timestamp    time.Time
}

// SanitizationVerdict records the sanitizer's decision for one fragment.
// It is a value type and must not be modified after construction.
type SanitizationVerdict struct {
	FragmentID       string           `json:"fragment_id"`
	FragmentHash     string           `json:"fragment_hash"`
	Label            SensitivityLabel `json:"label"`
	AppliedTransform string           `json:"applied_transform"`
	Confidence       float64          `json:"confidence"`
}

// TagValues returns the values of all tags with the given prefix, prefix removed.
func TagValues(tags []string, prefix string) []string {
	var out []string
	for _, t := range tags {
		if v, ok := strings.CutPrefix(t, prefix); ok && v != "" {
			out = append(out, v)
		}
	}
	return out
}

// FirstTagValue returns the first tag value with the given prefix.
func FirstTagValue(tags []string, prefix string) string {
	for _, t := range tags {
		if v, ok := strings.CutPrefix(t, prefix); ok {
			return v
		}
	}
	return ""
}
