package sanitizer

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/starford/mindyard/internal/models"
)

// Detector flags spans of a fragment. Implementations must honour ctx; the
// sanitizer treats any error, panic or timeout as a REJECT.
type Detector interface {
	Name() string
	Detect(ctx context.Context, in Input) ([]Finding, error)
}

// DefaultDetectors returns the built-in rule-based detectors in evaluation order.
func DefaultDetectors() []Detector {
	return []Detector{
		structuralDetector{},
		identifierDetector{},
		locationDetector{},
		personDetector{},
		properNounDetector{},
		newTopicDetector(),
	}
}

// structuralDetector flags opaque or empty fragments.
type structuralDetector struct{}

func (structuralDetector) Name() string { return "structural" }

func (structuralDetector) Detect(_ context.Context, in Input) ([]Finding, error) {
	for _, t := range in.Tags {
		if t == models.TagOpaque {
			return []Finding{{Start: 0, End: len(in.Text), Kind: KindOpaque, Confidence: 1}}, nil
		}
	}
	if strings.TrimSpace(in.Text) == "" {
		return []Finding{{Start: 0, End: len(in.Text), Kind: KindOpaque, Confidence: 1}}, nil
	}
	return nil, nil
}

var (
	emailRe   = regexp.MustCompile(`[\w.+-]+@[\w-]+(?:\.[\w-]+)+`)
	urlRe     = regexp.MustCompile(`(?i)\b(?:https?://|www\.)\S+`)
	phoneRe   = regexp.MustCompile(`\+?\d[\d\s().-]{7,}\d`)
	ssnRe     = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)
	digitsRe  = regexp.MustCompile(`\b\d{6,}\b`)
	handleRe  = regexp.MustCompile(`(?:^|\s)(@[A-Za-z0-9_]{2,})`)
	addressRe = regexp.MustCompile(`\b\d{1,5}\s+(?:[A-Z][\w.-]*\s+)+(?:Street|St|Avenue|Ave|Road|Rd|Boulevard|Blvd|Lane|Ln|Drive|Way|Court|Ct)\b\.?`)
)

// identifierDetector flags direct identifiers: emails, URLs, phone numbers,
// ID-like digit runs and social handles.
type identifierDetector struct{}

func (identifierDetector) Name() string { return "identifier" }

func (identifierDetector) Detect(_ context.Context, in Input) ([]Finding, error) {
	var out []Finding
	for _, re := range []*regexp.Regexp{emailRe, urlRe, phoneRe, ssnRe, digitsRe} {
		for _, loc := range re.FindAllStringIndex(in.Text, -1) {
			out = append(out, Finding{Start: loc[0], End: loc[1], Kind: KindIdentifier, Confidence: 0.99})
		}
	}
	for _, m := range handleRe.FindAllStringSubmatchIndex(in.Text, -1) {
		out = append(out, Finding{Start: m[2], End: m[3], Kind: KindIdentifier, Confidence: 0.95})
	}
	return out, nil
}

var (
	wordRe        = regexp.MustCompile(`[\p{L}][\p{L}'-]*`)
	capWordRe     = regexp.MustCompile(`\b[A-Z][\p{L}'-]*`)
	livesInRe     = regexp.MustCompile(`(?i:\b(?:live|lives|living|lived|moved|moving|move|born|based|grew up|relocated|relocating|staying))\s+(?:in|to|at|near)\s+([A-Z][\p{L}-]*(?:\s+[A-Z][\p{L}-]*)*)`)
	nameIntroRe   = regexp.MustCompile(`(?i:\bmy name is|\bcall me|\bi am|\bi'm|\bnamed|\bthis is)\s+([A-Z][\p{L}'-]*(?:\s+[A-Z][\p{L}'-]*)?)`)
	honorificRe   = regexp.MustCompile(`\b(?:Mr|Mrs|Ms|Mx|Dr|Prof)\.?\s+[A-Z][\p{L}'-]*`)
	pronounTokens = toSet("i", "i'm", "i've", "i'd", "i'll")
)

// locationDetector flags street addresses, known places (in any case) and
// "live in X" style phrases.
type locationDetector struct{}

func (locationDetector) Name() string { return "location" }

func (locationDetector) Detect(_ context.Context, in Input) ([]Finding, error) {
	var out []Finding
	for _, loc := range addressRe.FindAllStringIndex(in.Text, -1) {
		out = append(out, Finding{Start: loc[0], End: loc[1], Kind: KindLocation, Confidence: 0.95})
	}
	for _, m := range livesInRe.FindAllStringSubmatchIndex(in.Text, -1) {
		out = append(out, Finding{Start: m[2], End: m[3], Kind: KindLocation, Confidence: 0.85})
	}
	out = append(out, gazetteerSpans(in.Text, wordRe.FindAllStringIndex(in.Text, -1), places, KindLocation, 0.95)...)
	return out, nil
}

// gazetteerSpans matches the longest gazetteer entry (up to three words)
// starting at each word.
func gazetteerSpans(text string, words [][]int, set map[string]struct{}, kind Kind, conf float64) []Finding {
	var out []Finding
	for i := 0; i < len(words); {
		matched := 0
		for j := min(len(words), i+3); j > i; j-- {
			phrase := strings.ToLower(text[words[i][0]:words[j-1][1]])
			phrase = strings.Join(strings.Fields(phrase), " ")
			if _, ok := set[phrase]; ok {
				out = append(out, Finding{Start: words[i][0], End: words[j-1][1], Kind: kind, Confidence: conf})
				matched = j - i
				break
			}
		}
		if matched == 0 {
			matched = 1
		}
		i += matched
	}
	return out
}

// personDetector flags personal names: self-introductions, honorifics,
// known first names and entity tags from the analyzer.
type personDetector struct{}

func (personDetector) Name() string { return "person" }

func (personDetector) Detect(_ context.Context, in Input) ([]Finding, error) {
	var out []Finding
	for _, m := range nameIntroRe.FindAllStringSubmatchIndex(in.Text, -1) {
		if isPronoun(in.Text[m[2]:m[3]]) {
			continue
		}
		out = append(out, Finding{Start: m[2], End: m[3], Kind: KindPerson, Confidence: 0.95})
	}
	for _, loc := range honorificRe.FindAllStringIndex(in.Text, -1) {
		out = append(out, Finding{Start: loc[0], End: loc[1], Kind: KindPerson, Confidence: 0.9})
	}
	for _, loc := range capWordRe.FindAllStringIndex(in.Text, -1) {
		if _, ok := firstNames[strings.ToLower(in.Text[loc[0]:loc[1]])]; ok {
			out = append(out, Finding{Start: loc[0], End: loc[1], Kind: KindPerson, Confidence: 0.8})
		}
	}
	for _, entity := range models.TagValues(in.Tags, models.TagPrefixEntity) {
		for _, loc := range findAllWord(in.Text, entity) {
			out = append(out, Finding{Start: loc[0], End: loc[1], Kind: KindProperNoun, Confidence: 0.75})
		}
	}
	return out, nil
}

// properNounDetector redacts any capitalized word except the pronoun I.
// A word opening a clause is only trusted when it is a common opener;
// otherwise it is flagged with low confidence so the threshold escalates it.
type properNounDetector struct{}

func (properNounDetector) Name() string { return "proper_noun" }

func (properNounDetector) Detect(_ context.Context, in Input) ([]Finding, error) {
	var out []Finding
	for _, loc := range capWordRe.FindAllStringIndex(in.Text, -1) {
		word := in.Text[loc[0]:loc[1]]
		if isPronoun(word) {
			continue
		}
		if !opensClause(in.Text, loc[0]) {
			out = append(out, Finding{Start: loc[0], End: loc[1], Kind: KindProperNoun, Confidence: 0.7})
			continue
		}
		if !isCommonOpener(word) {
			out = append(out, Finding{Start: loc[0], End: loc[1], Kind: KindProperNoun, Confidence: 0.5})
		}
	}
	return out, nil
}

// isCommonOpener reports whether a capitalized clause-initial word is an
// ordinary word rather than a name. Gerunds and past forms of six letters
// or more pass unless they are known first names.
func isCommonOpener(word string) bool {
	lower := strings.ToLower(word)
	if _, ok := commonOpeners[lower]; ok {
		return true
	}
	if _, ok := firstNames[lower]; ok {
		return false
	}
	return len(lower) >= 6 && (strings.HasSuffix(lower, "ing") || strings.HasSuffix(lower, "ed"))
}

func isPronoun(word string) bool {
	_, ok := pronounTokens[strings.ToLower(word)]
	return ok
}

// opensClause reports whether offset is the first word of the text or
// follows terminal punctuation.
func opensClause(text string, offset int) bool {
	before := strings.TrimRight(text[:offset], " \t\n\"'(")
	if before == "" {
		return true
	}
	switch before[len(before)-1] {
	case '.', '!', '?', ':', ';':
		return true
	}
	return false
}

func findAllWord(text, word string) [][]int {
	if word == "" {
		return nil
	}
	re, err := regexp.Compile(`\b` + regexp.QuoteMeta(word) + `\b`)
	if err != nil {
		return nil
	}
	return re.FindAllStringIndex(text, -1)
}

// topicGroup is one family of sensitive-topic triggers sharing a replacement.
type topicGroup struct {
	kind        Kind
	replacement string
	triggers    []string
}

// Replacement phrases must never contain a trigger of any group; otherwise
// re-sanitizing a generalized fragment would flag it again.
var topicGroups = []topicGroup{
	{KindHealth, "a health concern", []string{
		"anxiety", "depression", "panic attacks", "panic attack", "diagnosis", "diagnosed",
		"cancer", "diabetes", "therapy", "therapist", "psychiatrist", "medication", "meds",
		"antidepressants", "adhd", "ptsd", "bipolar disorder", "bipolar", "ocd", "insomnia",
		"surgery", "pregnancy", "pregnant", "miscarriage", "addiction", "rehab", "illness",
		"disease", "mental health", "chronic pain", "eating disorder", "hiv",
	}},
	{KindLegal, "a legal matter", []string{
		"lawsuit", "lawyer", "attorney", "court case", "court", "arrested", "arrest",
		"custody battle", "custody", "probation", "deportation", "visa status", "visa",
		"criminal record", "conviction", "indicted", "sued", "suing", "restraining order",
	}},
	{KindFinancial, "a financial matter", []string{
		"debts", "debt", "loans", "loan", "mortgage", "bankruptcy", "bankrupt", "salary",
		"paycheck", "income", "credit score", "overdraft", "savings", "rent", "taxes",
	}},
	{KindRelationship, "a partner", []string{
		"ex-husband", "ex-wife", "ex-boyfriend", "ex-girlfriend", "boyfriend", "girlfriend",
		"husband", "wife", "fiancee", "fiance", "spouse", "ex",
	}},
	{KindRelationship, "a family member", []string{
		"mother-in-law", "father-in-law", "sister-in-law", "brother-in-law", "son-in-law",
		"daughter-in-law", "in-laws", "stepmother", "stepfather", "mother",
		"father", "mom", "dad", "mum", "sister", "brother", "son", "daughter", "grandmother",
		"grandfather", "grandma", "grandpa", "aunt", "uncle", "cousin", "niece", "nephew",
	}},
	{KindRelationship, "a relationship change", []string{
		"divorce", "breakup", "break-up", "separation", "affair", "cheating", "cheated",
	}},
}

var moneyRe = regexp.MustCompile(`(?i)(?:[$€£¥]\s?\d[\d,.]*(?:\s?(?:k|m|million|thousand|grand))?\b|\b\d[\d,.]*\s?(?:dollars|euros|pounds|usd|eur|yen)\b)`)

type compiledGroup struct {
	kind        Kind
	replacement string
	re          *regexp.Regexp
}

// topicDetector flags sensitive-topic specifics and supplies the category
// phrase that replaces them.
type topicDetector struct {
	groups []compiledGroup
}

func newTopicDetector() *topicDetector {
	d := &topicDetector{}
	for _, g := range topicGroups {
		triggers := append([]string(nil), g.triggers...)
		sort.SliceStable(triggers, func(i, j int) bool { return len(triggers[i]) > len(triggers[j]) })
		quoted := make([]string, len(triggers))
		for i, t := range triggers {
			quoted[i] = regexp.QuoteMeta(t)
		}
		pattern := `(?i)\b(?:(?:my|his|her|their|our|your|a|an|the)\s+)?(?:` + strings.Join(quoted, "|") + `)\b`
		d.groups = append(d.groups, compiledGroup{kind: g.kind, replacement: g.replacement, re: regexp.MustCompile(pattern)})
	}
	return d
}

func (*topicDetector) Name() string { return "sensitive_topic" }

func (d *topicDetector) Detect(_ context.Context, in Input) ([]Finding, error) {
	var out []Finding
	for _, g := range d.groups {
		for _, loc := range g.re.FindAllStringIndex(in.Text, -1) {
			if isHyphenContinued(in.Text, loc[1]) {
				continue
			}
			out = append(out, Finding{Start: loc[0], End: loc[1], Kind: g.kind, Confidence: 0.9, Replacement: g.replacement})
		}
	}
	for _, loc := range moneyRe.FindAllStringIndex(in.Text, -1) {
		out = append(out, Finding{Start: loc[0], End: loc[1], Kind: KindFinancial, Confidence: 0.9, Replacement: "an amount of money"})
	}
	return out, nil
}

// isHyphenContinued reports whether a match ending at end is really the
// first half of a hyphenated word such as "ex-colleague".
func isHyphenContinued(text string, end int) bool {
	return end+1 < len(text) && text[end] == '-' && isWordByte(text[end+1])
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= '0' && b <= '9') || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
