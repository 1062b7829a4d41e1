// Package sanitizer is the only gate between private and shareable text.
// Every fragment is classified by an ordered rule chain over detector
// findings and is redacted, generalized or rejected. Errors fail closed.
package sanitizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/starford/mindyard/internal/apperr"
	"github.com/starford/mindyard/internal/checksum"
	"github.com/starford/mindyard/internal/models"
)

// Transform names recorded on verdicts and in the audit log.
const (
	TransformNone           = "none"
	TransformDetectorFailed = "reject:detector_error"
)

// Policy holds the tunables that may be swapped at runtime.
type Policy struct {
	// ConfidenceThreshold escalates a verdict one step when its confidence
	// falls below it.
	ConfidenceThreshold float64
	// DetectorTimeout bounds every detector call.
	DetectorTimeout time.Duration
	// Weights scale finding confidence per kind. Missing kinds weigh 1.
	Weights map[Kind]float64
}

func (p *Policy) weight(k Kind) float64 {
	if w, ok := p.Weights[k]; ok {
		return w
	}
	return 1
}

// Result bundles a verdict with the fragment it produced. For REJECT the
// fragment text is empty.
type Result struct {
	Verdict  models.SanitizationVerdict
	Fragment models.SanitizedFragment
}

// Sanitizer classifies fragments. It is safe for concurrent use.
type Sanitizer struct {
	detectors []Detector
	rules     []Rule
	hasher    *checksum.Hasher
	logger    *slog.Logger
	policy    atomic.Pointer[Policy]
}

// New creates a Sanitizer with the built-in detectors followed by extra.
func New(hasher *checksum.Hasher, logger *slog.Logger, policy Policy, extra ...Detector) *Sanitizer {
	s := &Sanitizer{
		detectors: append(DefaultDetectors(), extra...),
		rules:     DefaultRules(),
		hasher:    hasher,
		logger:    logger,
	}
	s.SetPolicy(policy)
	return s
}

// SetPolicy atomically replaces the active policy.
func (s *Sanitizer) SetPolicy(p Policy) {
	if p.DetectorTimeout <= 0 {
		p.DetectorTimeout = 2 * time.Second
	}
	weights := make(map[Kind]float64, len(p.Weights))
	for k, v := range p.Weights {
		weights[k] = v
	}
	p.Weights = weights
	s.policy.Store(&p)
}

// Policy returns a copy of the active policy.
func (s *Sanitizer) Policy() Policy {
	return *s.policy.Load()
}

// Sanitize classifies one raw fragment. The call is atomic with respect to
// cancellation of ctx: once started, the decision always completes, and each
// detector is still bounded by the policy timeout.
func (s *Sanitizer) Sanitize(ctx context.Context, f models.RawFragment) Result {
	return s.run(ctx, f.ID, f.Text, f.ProvisionalTags, f.SourceTimestamp, models.LabelPublic)
}

// Resanitize runs an already-sanitized fragment through the chain again. The
// fragment's current label acts as a floor, so the result is never less
// restrictive than the input.
func (s *Sanitizer) Resanitize(ctx context.Context, f models.SanitizedFragment) Result {
	return s.run(ctx, f.FragmentID, f.Text, f.Tags, f.Timestamp, f.Label)
}

func (s *Sanitizer) run(ctx context.Context, id, text string, tags []string, ts time.Time, floor models.SensitivityLabel) Result {
	ctx = context.WithoutCancel(ctx)
	policy := s.policy.Load()
	hash := s.hasher.Fragment(text)
	in := Input{Text: text, Tags: tags}

	var findings []Finding
	for _, d := range s.detectors {
		fs, err := s.detect(ctx, d, in, policy.DetectorTimeout)
		if err != nil {
			serr := &apperr.SanitizationError{FragmentID: id, Detector: d.Name(), Err: err}
			s.logger.Warn("sanitizer: detector failed, rejecting fragment",
				slog.String("fragment_hash", hash),
				slog.String("error", serr.Error()))
			return reject(id, hash, ts, TransformDetectorFailed, 1)
		}
		findings = append(findings, fs...)
	}

	d := evaluate(s.rules, findings, policy.weight)
	label := d.label
	var notes []string
	if d.confidence < policy.ConfidenceThreshold {
		label = label.Escalate()
		notes = append(notes, "escalated")
	}
	if floor > label {
		label = floor
		notes = append(notes, "floor")
	}

	transform := describe(label, d.fired, notes)
	if label == models.LabelReject {
		return reject(id, hash, ts, transform, d.confidence)
	}

	return Result{
		Verdict: models.SanitizationVerdict{
			FragmentID:       id,
			FragmentHash:     hash,
			Label:            label,
			AppliedTransform: transform,
			Confidence:       d.confidence,
		},
		Fragment: models.SanitizedFragment{
			FragmentID:   id,
			FragmentHash: hash,
			Text:         applyEdits(text, d.edits),
			Tags:         shareableTags(tags),
			Label:        label,
			Timestamp:    ts,
		},
	}
}

// detect runs one detector under its own timeout, converting panics and
// out-of-range spans into errors.
func (s *Sanitizer) detect(ctx context.Context, d Detector, in Input, timeout time.Duration) ([]Finding, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		findings []Finding
		err      error
	}
	ch := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- outcome{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		fs, err := d.Detect(ctx, in)
		ch <- outcome{findings: fs, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case o := <-ch:
		if o.err != nil {
			return nil, o.err
		}
		for _, f := range o.findings {
			if f.Start < 0 || f.End > len(in.Text) || f.Start > f.End {
				return nil, errors.New("finding span out of range")
			}
		}
		return o.findings, nil
	}
}

func reject(id, hash string, ts time.Time, transform string, conf float64) Result {
	return Result{
		Verdict: models.SanitizationVerdict{
			FragmentID:       id,
			FragmentHash:     hash,
			Label:            models.LabelReject,
			AppliedTransform: transform,
			Confidence:       conf,
		},
		Fragment: models.SanitizedFragment{
			FragmentID:   id,
			FragmentHash: hash,
			Label:        models.LabelReject,
			Timestamp:    ts,
		},
	}
}

// describe renders the applied transform, e.g. "redact:person,proper_noun+escalated".
func describe(label models.SensitivityLabel, fired, notes []string) string {
	var action string
	switch label {
	case models.LabelPublic:
		action = TransformNone
	case models.LabelGeneralizable:
		action = "generalize"
	case models.LabelRedact:
		action = "redact"
	default:
		action = "reject"
	}
	out := action
	if len(fired) > 0 {
		out += ":" + strings.Join(fired, ",")
	}
	for _, n := range notes {
		out += "+" + n
	}
	return out
}

// applyEdits rewrites the flagged spans of text. Overlapping edits merge into
// one span; the merged span is redacted if any part of it was.
func applyEdits(text string, edits []edit) string {
	if len(edits) == 0 {
		return text
	}
	sorted := append([]edit(nil), edits...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].start != sorted[j].start {
			return sorted[i].start < sorted[j].start
		}
		return sorted[i].end > sorted[j].end
	})

	merged := []edit{sorted[0]}
	for _, e := range sorted[1:] {
		last := &merged[len(merged)-1]
		if e.start < last.end {
			if e.end > last.end {
				last.end = e.end
			}
			if e.redact && !last.redact {
				last.redact = true
				last.replacement = redactedMarker
			}
			continue
		}
		merged = append(merged, e)
	}

	var b strings.Builder
	prev := 0
	for _, e := range merged {
		b.WriteString(text[prev:e.start])
		b.WriteString(e.replacement)
		prev = e.end
	}
	b.WriteString(text[prev:])
	return strings.Join(strings.Fields(b.String()), " ")
}

// shareableTags keeps only taxonomy-derived tags. Entity tags carry raw
// names and never leave the sanitizer.
func shareableTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if strings.HasPrefix(t, models.TagPrefixTopic) ||
			strings.HasPrefix(t, models.TagPrefixTone) ||
			strings.HasPrefix(t, models.TagPrefixIntent) {
			out = append(out, t)
		}
	}
	return out
}
