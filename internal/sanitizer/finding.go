package sanitizer

// Kind classifies what a detector found.
type Kind string

const (
	KindOpaque       Kind = "opaque"
	KindIdentifier   Kind = "identifier"
	KindLocation     Kind = "location"
	KindPerson       Kind = "person"
	KindProperNoun   Kind = "proper_noun"
	KindHealth       Kind = "health"
	KindLegal        Kind = "legal"
	KindFinancial    Kind = "financial"
	KindRelationship Kind = "relationship"
)

// Finding is a span of fragment text flagged by a detector. Start and End
// are byte offsets into the text. Replacement is the category phrase used
// when the span is generalized.
type Finding struct {
	Start       int
	End         int
	Kind        Kind
	Confidence  float64
	Replacement string
}

// Input is what a detector sees: the fragment text and its provisional tags.
type Input struct {
	Text string
	Tags []string
}

const redactedMarker = "[redacted]"

// genericReplacement is used for topic findings that carry no phrase of their own.
var genericReplacement = map[Kind]string{
	KindHealth:       "a health concern",
	KindLegal:        "a legal matter",
	KindFinancial:    "a financial matter",
	KindRelationship: "a personal relationship",
}
