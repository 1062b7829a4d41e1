package sanitizer

import (
	"github.com/starford/mindyard/internal/models"
)

// RuleKind tags a rule variant. The evaluator switches on it; there is no
// per-rule dispatch.
type RuleKind int

const (
	// RuleStructural rejects the whole fragment.
	RuleStructural RuleKind = iota
	// RulePII rejects the fragment or redacts the span, depending on Label.
	RulePII
	// RuleSensitiveTopic replaces the span with a category phrase.
	RuleSensitiveTopic
)

// Rule is a predicate over a finding paired with the label it forces.
type Rule struct {
	Name  string
	Kind  RuleKind
	Match func(Finding) bool
	Label models.SensitivityLabel
}

func kindIs(k Kind) func(Finding) bool {
	return func(f Finding) bool { return f.Kind == k }
}

func always(Finding) bool { return true }

// DefaultRules is the ordered rule chain. The first rule whose predicate
// matches a finding decides that finding; the trailing catch-all rejects
// anything no earlier rule recognised.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "opaque", Kind: RuleStructural, Match: kindIs(KindOpaque), Label: models.LabelReject},
		{Name: "identifier", Kind: RulePII, Match: kindIs(KindIdentifier), Label: models.LabelReject},
		{Name: "location", Kind: RulePII, Match: kindIs(KindLocation), Label: models.LabelReject},
		{Name: "person", Kind: RulePII, Match: kindIs(KindPerson), Label: models.LabelRedact},
		{Name: "proper_noun", Kind: RulePII, Match: kindIs(KindProperNoun), Label: models.LabelRedact},
		{Name: "health", Kind: RuleSensitiveTopic, Match: kindIs(KindHealth), Label: models.LabelGeneralizable},
		{Name: "legal", Kind: RuleSensitiveTopic, Match: kindIs(KindLegal), Label: models.LabelGeneralizable},
		{Name: "financial", Kind: RuleSensitiveTopic, Match: kindIs(KindFinancial), Label: models.LabelGeneralizable},
		{Name: "relationship", Kind: RuleSensitiveTopic, Match: kindIs(KindRelationship), Label: models.LabelGeneralizable},
		{Name: "unclassified", Kind: RuleStructural, Match: always, Label: models.LabelReject},
	}
}

// decision is the outcome of running the chain over one fragment's findings.
type decision struct {
	label      models.SensitivityLabel
	confidence float64
	edits      []edit
	fired      []string
}

// edit is a span rewrite. Redactions win over generalizations on overlap.
type edit struct {
	start, end  int
	replacement string
	redact      bool
}

// evaluate applies rules to findings. Confidence is the lowest adjusted
// confidence among findings; it is 1 when nothing fired.
func evaluate(rules []Rule, findings []Finding, weight func(Kind) float64) decision {
	d := decision{label: models.LabelPublic, confidence: 1}
	seen := make(map[string]struct{})

	for _, f := range findings {
		for _, r := range rules {
			if !r.Match(f) {
				continue
			}
			conf := clamp01(f.Confidence * weight(f.Kind))
			if conf < d.confidence {
				d.confidence = conf
			}
			d.label = models.MostRestrictive(d.label, r.Label)
			if _, ok := seen[r.Name]; !ok {
				seen[r.Name] = struct{}{}
				d.fired = append(d.fired, r.Name)
			}

			switch r.Kind {
			case RuleStructural:
				// The fragment is dropped; no span edit is needed.
			case RulePII:
				if r.Label < models.LabelReject {
					d.edits = append(d.edits, edit{start: f.Start, end: f.End, replacement: redactedMarker, redact: true})
				}
			case RuleSensitiveTopic:
				repl := f.Replacement
				if repl == "" {
					repl = genericReplacement[f.Kind]
				}
				d.edits = append(d.edits, edit{start: f.Start, end: f.End, replacement: repl})
			}
			break
		}
	}
	return d
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
