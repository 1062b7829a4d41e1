// Package models defines the domain types shared by the distillation pipeline.
package models

import (
	"fmt"
	"strings"
)

// SensitivityLabel classifies a fragment. Higher values are more restrictive.
type SensitivityLabel int

const (
	LabelPublic SensitivityLabel = iota
	LabelGeneralizable
	LabelRedact
	LabelReject
)

var labelNames = [...]string{"PUBLIC", "GENERALIZABLE", "REDACT", "REJECT"}

// String returns the canonical upper-case name of the label.
func (l SensitivityLabel) String() string {
	if l < LabelPublic || l > LabelReject {
		return fmt.Sprintf("LABEL(%d)", int(l))
	}
	return labelNames[l]
}

// ParseLabel converts a label name (case-insensitive) back to a SensitivityLabel.
func ParseLabel(s string) (SensitivityLabel, error) {
	for i, name := range labelNames {
		if strings.EqualFold(s, name) {
			return SensitivityLabel(i), nil
		}
	}
	return LabelReject, fmt.Errorf("models: unknown sensitivity label %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (l SensitivityLabel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *SensitivityLabel) UnmarshalText(b []byte) error {
	v, err := ParseLabel(string(b))
	if err != nil {
		return err
	}
	*l = v
	return nil
}

// Escalate returns the next more restrictive label. REJECT stays REJECT.
func (l SensitivityLabel) Escalate() SensitivityLabel {
	if l >= LabelReject {
		return LabelReject
	}
	return l + 1
}

// MostRestrictive returns the most restrictive of the given labels.
// With no arguments it returns LabelPublic.
func MostRestrictive(labels ...SensitivityLabel) SensitivityLabel {
	out := LabelPublic
	for _, l := range labels {
		if l > out {
			out = l
		}
	}
	return out
}
