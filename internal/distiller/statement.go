package distiller

import (
	"strings"
	"unicode"

	"github.com/starford/mindyard/internal/analyzer"
)

// topicPhrases maps taxonomy topics to category-level phrases. Topics
// outside the taxonomy never reach a statement.
var topicPhrases = map[string]string{
	analyzer.TopicWork:             "work",
	analyzer.TopicCareerTransition: "a career transition",
	analyzer.TopicHealth:           "a health concern",
	analyzer.TopicRelationship:     "a relationship",
	analyzer.TopicFamily:           "family",
	analyzer.TopicFinance:          "money",
	analyzer.TopicLegal:            "a legal matter",
	analyzer.TopicLearning:         "learning",
	analyzer.TopicCreativity:       "a creative project",
	analyzer.TopicProductivity:     "productivity",
	analyzer.TopicWellbeing:        "wellbeing",
}

const (
	verbStruggling = "is struggling with"
	verbGuidance   = "is looking for guidance on"
	verbExploring  = "is exploring ideas about"
	verbWorking    = "is working through"
	verbProgress   = "is making progress with"
	verbReflecting = "is reflecting on"
)

const maxStatementTopics = 3

// compose renders the abstracted statement for a group.
func compose(verb string, topics []string) string {
	phrases := make([]string, 0, maxStatementTopics)
	for _, t := range topics {
		if p, ok := topicPhrases[t]; ok {
			phrases = append(phrases, p)
		}
		if len(phrases) == maxStatementTopics {
			break
		}
	}
	var object string
	switch len(phrases) {
	case 0:
		return ""
	case 1:
		object = phrases[0]
	case 2:
		object = phrases[0] + " related to " + phrases[1]
	default:
		object = phrases[0] + " related to " + phrases[1] + " and " + phrases[2]
	}
	return "Someone " + verb + " " + object
}

func chooseVerb(tone, intent string) string {
	switch {
	case tone == analyzer.ToneNegative:
		return verbStruggling
	case intent == analyzer.IntentKnowledge:
		return verbGuidance
	case intent == analyzer.IntentBrainstorm:
		return verbExploring
	case intent == analyzer.IntentDeepDive:
		return verbWorking
	case tone == analyzer.TonePositive:
		return verbProgress
	default:
		return verbReflecting
	}
}

// truncateWords cuts s to at most limit bytes at a word boundary.
func truncateWords(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := strings.LastIndexByte(s[:limit+1], ' ')
	if cut <= 0 {
		return s[:limit]
	}
	return strings.TrimRight(s[:cut], " ,")
}

// hasProperNoun reports whether any word after the first starts with an
// upper-case letter.
func hasProperNoun(s string) bool {
	for i, w := range strings.Fields(s) {
		if i == 0 {
			continue
		}
		for _, r := range w {
			if unicode.IsUpper(r) {
				return true
			}
			break
		}
	}
	return false
}

func words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}

// shingleOverlap returns the share of the statement's word n-grams that also
// occur in source. Texts shorter than n are treated as one shingle.
func shingleOverlap(statement, source string, n int) float64 {
	a := shingles(words(statement), n)
	if len(a) == 0 {
		return 0
	}
	b := shingles(words(source), n)
	shared := 0
	for s := range a {
		if _, ok := b[s]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(a))
}

func shingles(ws []string, n int) map[string]struct{} {
	out := make(map[string]struct{})
	if len(ws) == 0 {
		return out
	}
	if len(ws) < n {
		out[strings.Join(ws, " ")] = struct{}{}
		return out
	}
	for i := 0; i+n <= len(ws); i++ {
		out[strings.Join(ws[i:i+n], " ")] = struct{}{}
	}
	return out
}

var fillerWords = map[string]struct{}{
	"the": {}, "and": {}, "but": {}, "for": {}, "with": {}, "about": {}, "that": {},
	"this": {}, "have": {}, "has": {}, "had": {}, "was": {}, "were": {}, "are": {},
	"i'm": {}, "i've": {}, "it's": {}, "just": {}, "really": {}, "very": {}, "from": {},
	"into": {}, "some": {}, "been": {}, "being": {}, "you": {}, "your": {}, "they": {},
	"them": {}, "their": {}, "redacted": {}, "what": {}, "when": {}, "then": {},
}

// contentWords counts words of three or more letters that carry meaning.
func contentWords(s string) int {
	n := 0
	for _, w := range words(s) {
		if len(w) < 3 {
			continue
		}
		if _, ok := fillerWords[w]; ok {
			continue
		}
		n++
	}
	return n
}

func normalizeStatement(s string) string {
	return strings.Join(words(s), " ")
}
