package analyzer

import (
	"strings"
	"unicode"
)

// Normalize lower-cases text, maps every rune that is not a letter, digit,
// hyphen or apostrophe to a space and pads the result with single spaces so
// phrases can be matched on word boundaries.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text) + 2)
	b.WriteByte(' ')
	space := true
	for _, r := range strings.ToLower(text) {
		switch {
		case r == '\u2019' || r == '\u2018':
			r = '\''
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '\'':
		default:
			r = ' '
		}
		if r == ' ' {
			if space {
				continue
			}
			space = true
		} else {
			space = false
		}
		b.WriteRune(r)
	}
	if !space {
		b.WriteByte(' ')
	}
	return b.String()
}

// ContainsPhrase reports whether normalized text contains phrase as whole words.
func ContainsPhrase(norm, phrase string) bool {
	return strings.Contains(norm, " "+phrase+" ")
}

// DetectTopics returns the taxonomy topics mentioned in normalized text, in
// priority order.
func DetectTopics(norm string) []string {
	var out []string
	for _, topic := range Topics {
		for _, kw := range topicKeywords[topic] {
			if ContainsPhrase(norm, kw) {
				out = append(out, topic)
				break
			}
		}
	}
	return out
}

// DetectTone classifies normalized text as negative, positive or neutral.
func DetectTone(norm string) string {
	neg := countHits(norm, negativeWords)
	pos := countHits(norm, positiveWords)
	switch {
	case neg > pos:
		return ToneNegative
	case pos > neg:
		return TonePositive
	default:
		return ToneNeutral
	}
}

// ClassifyIntent is a keyword classifier over the five intents. Confidence is
// the share of the winning intent among all hits, capped at 0.7; text with no
// hits is chat at 0.3.
func ClassifyIntent(norm string) (string, float64) {
	best, bestScore, total := IntentChat, 0, 0
	for _, intent := range intentOrder {
		n := countHits(norm, intentKeywords[intent])
		total += n
		if n > bestScore {
			best, bestScore = intent, n
		}
	}
	if bestScore == 0 {
		return IntentChat, 0.3
	}
	return best, min(float64(bestScore)/float64(total), 0.7)
}

func countHits(norm string, words []string) int {
	n := 0
	for _, w := range words {
		if ContainsPhrase(norm, w) {
			n++
		}
	}
	return n
}
