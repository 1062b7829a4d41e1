// Package analyzer splits a raw note into ordered, provisionally tagged
// fragments. Its output is unsanitized and must only be handed to the
// sanitizer.
package analyzer

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/starford/mindyard/internal/apperr"
	"github.com/starford/mindyard/internal/models"
	"github.com/starford/mindyard/internal/parser"
)

var errUnparseable = errors.New("unparseable input")

var (
	nameIntroRe = regexp.MustCompile(`(?i:\bmy name is|\bcall me|\bthis is|\bi am|\bi'm)\s+([A-Z][\p{L}'-]+)`)
	capWordRe   = regexp.MustCompile(`\b[A-Z][\p{L}'-]*`)
)

// pronouns that are capitalized but never entities.
var capitalizedPronouns = map[string]struct{}{
	"I": {}, "I'm": {}, "I've": {}, "I'd": {}, "I'll": {},
}

var abbreviations = map[string]struct{}{
	"mr": {}, "mrs": {}, "ms": {}, "dr": {}, "prof": {}, "st": {}, "jr": {}, "sr": {},
	"e.g": {}, "i.e": {}, "etc": {}, "vs": {},
}

// Analyzer turns raw text into fragments. It holds no state; a single
// instance is safe for concurrent use.
type Analyzer struct {
	minClauseWords int
}

// New returns an Analyzer.
func New() *Analyzer {
	return &Analyzer{minClauseWords: 3}
}

// Analyze splits raw into fragments and attaches entity, tone, intent and
// topic tags. It never fails hard: on unparseable input it returns a single
// fragment tagged opaque together with a non-nil *apperr.AnalysisError that
// callers may log and otherwise ignore.
func (a *Analyzer) Analyze(raw string, meta models.SourceMetadata) (frags []models.RawFragment, err error) {
	defer func() {
		if r := recover(); r != nil {
			frags = opaque(raw, meta)
			err = &apperr.AnalysisError{Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	if isOpaque(raw) {
		return opaque(raw, meta), &apperr.AnalysisError{Err: errUnparseable}
	}

	res, perr := parser.Parse([]byte(raw))
	if perr != nil {
		return opaque(raw, meta), &apperr.AnalysisError{Err: perr}
	}
	noteTopics := topicsFromTags(res.Tags)

	// Entities are found on the whole sentence: a name right after a comma
	// opens its clause and would otherwise look like an ordinary first word.
	type clause struct {
		text     string
		entities []string
	}
	var clauses []clause
	for _, line := range res.Lines {
		for _, sentence := range splitSentences(line) {
			entities := detectEntities(sentence)
			for _, c := range a.splitClauses(sentence) {
				clauses = append(clauses, clause{text: c, entities: entitiesIn(c, entities)})
			}
		}
	}
	if len(clauses) == 0 {
		return opaque(raw, meta), &apperr.AnalysisError{Err: errUnparseable}
	}

	frags = make([]models.RawFragment, 0, len(clauses))
	for i, c := range clauses {
		frags = append(frags, models.RawFragment{
			ID:              fmt.Sprintf("f%03d", i),
			Text:            c.text,
			SourceTimestamp: meta.Timestamp,
			ProvisionalTags: tag(c.text, noteTopics, c.entities),
		})
	}
	return frags, nil
}

// entitiesIn keeps the entities that occur as whole words in text.
func entitiesIn(text string, entities []string) []string {
	if len(entities) == 0 {
		return nil
	}
	words := make(map[string]struct{})
	for _, w := range strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\'' && r != '-'
	}) {
		words[w] = struct{}{}
	}
	var out []string
	for _, e := range entities {
		if _, ok := words[e]; ok {
			out = append(out, e)
		}
	}
	return out
}

func opaque(raw string, meta models.SourceMetadata) []models.RawFragment {
	return []models.RawFragment{{
		ID:              "f000",
		Text:            raw,
		SourceTimestamp: meta.Timestamp,
		ProvisionalTags: []string{models.TagOpaque},
	}}
}

// isOpaque reports whether raw is not prose we can reason about: invalid
// UTF-8, control characters, no letters, or mostly symbols.
func isOpaque(raw string) bool {
	if strings.TrimSpace(raw) == "" || !utf8.ValidString(raw) {
		return true
	}
	var letters, visible int
	for _, r := range raw {
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			continue
		case unicode.IsControl(r) || r == utf8.RuneError:
			return true
		case unicode.IsSpace(r):
			continue
		}
		visible++
		if unicode.IsLetter(r) {
			letters++
		}
	}
	if letters == 0 || float64(letters)/float64(visible) < 0.4 {
		return true
	}
	for _, tok := range strings.Fields(raw) {
		if utf8.RuneCountInString(tok) > 64 {
			return true
		}
	}
	return false
}

// splitSentences breaks a line on terminal punctuation followed by space,
// skipping common abbreviations.
func splitSentences(line string) []string {
	var out []string
	start := 0
	runes := []rune(line)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		j := i
		for j+1 < len(runes) && strings.ContainsRune(".!?", runes[j+1]) {
			j++
		}
		if j+1 < len(runes) && !unicode.IsSpace(runes[j+1]) {
			i = j
			continue
		}
		if r == '.' && j == i && isAbbreviation(runes[start:i]) {
			continue
		}
		if s := strings.TrimSpace(string(runes[start : j+1])); s != "" {
			out = append(out, s)
		}
		start = j + 1
		i = j
	}
	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		out = append(out, s)
	}
	return out
}

func isAbbreviation(before []rune) bool {
	s := string(before)
	if i := strings.LastIndexFunc(s, unicode.IsSpace); i >= 0 {
		s = s[i+1:]
	}
	_, ok := abbreviations[strings.ToLower(s)]
	return ok
}

// splitClauses splits a sentence on semicolons, commas and " but ". Pieces
// shorter than minClauseWords are merged into their neighbour so lists stay
// together.
func (a *Analyzer) splitClauses(sentence string) []string {
	sentence = strings.TrimRight(sentence, ".!? ")
	var pieces []string
	for _, semi := range strings.Split(sentence, ";") {
		for _, comma := range strings.Split(semi, ",") {
			pieces = append(pieces, splitOnBut(comma)...)
		}
	}

	var merged []string
	for _, p := range pieces {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if len(merged) > 0 && len(strings.Fields(p)) < a.minClauseWords {
			merged[len(merged)-1] += ", " + p
			continue
		}
		merged = append(merged, p)
	}
	if len(merged) > 1 && len(strings.Fields(merged[0])) < a.minClauseWords {
		merged[1] = merged[0] + ", " + merged[1]
		merged = merged[1:]
	}

	out := merged[:0]
	for _, m := range merged {
		if m = stripLeadingConjunction(m); m != "" {
			out = append(out, m)
		}
	}
	return out
}

func splitOnBut(s string) []string {
	var out []string
	for {
		i := strings.Index(s, " but ")
		if i < 0 {
			return append(out, s)
		}
		out = append(out, s[:i])
		s = s[i+1:]
	}
}

func stripLeadingConjunction(s string) string {
	for {
		fields := strings.Fields(s)
		if len(fields) < 2 {
			return strings.TrimSpace(s)
		}
		stripped := false
		for _, c := range leadingConjunctions {
			if strings.EqualFold(fields[0], c) {
				s = strings.Join(fields[1:], " ")
				stripped = true
				break
			}
		}
		if !stripped {
			return strings.TrimSpace(s)
		}
	}
}

func tag(text string, noteTopics, entities []string) []string {
	norm := Normalize(text)
	var tags []string

	seen := make(map[string]struct{})
	for _, t := range append(DetectTopics(norm), noteTopics...) {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		tags = append(tags, models.TagPrefixTopic+t)
	}

	tags = append(tags, models.TagPrefixTone+DetectTone(norm))
	intent, _ := ClassifyIntent(norm)
	tags = append(tags, models.TagPrefixIntent+intent)

	for _, e := range entities {
		tags = append(tags, models.TagPrefixEntity+e)
	}
	return tags
}

// detectEntities returns capitalized tokens that are likely names or places.
// The first word of a clause is only reported when introduced by a phrase
// such as "my name is".
func detectEntities(text string) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(s string) {
		if _, ok := capitalizedPronouns[s]; ok {
			return
		}
		if _, ok := seen[s]; ok {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	for _, m := range nameIntroRe.FindAllStringSubmatch(text, -1) {
		add(m[1])
	}
	for _, loc := range capWordRe.FindAllStringIndex(text, -1) {
		if strings.TrimSpace(text[:loc[0]]) == "" {
			continue
		}
		add(text[loc[0]:loc[1]])
	}
	return out
}

func topicsFromTags(tags []string) []string {
	known := make(map[string]struct{}, len(Topics))
	for _, t := range Topics {
		known[t] = struct{}{}
	}
	var out []string
	for _, t := range tags {
		if _, ok := known[t]; ok {
			out = append(out, t)
		}
	}
	return out
}
