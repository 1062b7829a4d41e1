package analyzer

// Topic taxonomy. Values double as topic_tags on insight records, so they
// must never carry user-specific text.
const (
	TopicWork             = "work"
	TopicCareerTransition = "career-transition"
	TopicHealth           = "health"
	TopicRelationship     = "relationship"
	TopicFamily           = "family"
	TopicFinance          = "finance"
	TopicLegal            = "legal"
	TopicLearning         = "learning"
	TopicCreativity       = "creativity"
	TopicProductivity     = "productivity"
	TopicWellbeing        = "wellbeing"
)

// Topics lists every known topic in priority order.
var Topics = []string{
	TopicCareerTransition, TopicHealth, TopicRelationship, TopicFamily,
	TopicFinance, TopicLegal, TopicLearning, TopicCreativity,
	TopicProductivity, TopicWellbeing, TopicWork,
}

// topicKeywords maps a topic to words or phrases that indicate it.
// Phrases are matched on word boundaries against lower-cased text.
var topicKeywords = map[string][]string{
	TopicWork: {
		"job", "work", "working", "boss", "manager", "office", "coworker", "coworkers",
		"colleague", "colleagues", "team", "project", "deadline", "deadlines", "meeting",
		"meetings", "workplace", "company", "employer",
	},
	TopicCareerTransition: {
		"career", "careers", "switch careers", "switching careers", "career change",
		"new job", "quit my job", "quitting", "resign", "resigned", "resignation",
		"laid off", "layoff", "job search", "job hunting", "interview", "interviews",
		"promotion", "pivot", "pivoting", "bootcamp", "change jobs", "changing jobs",
	},
	TopicHealth: {
		"anxiety", "depression", "depressed", "therapy", "therapist", "doctor",
		"diagnosis", "diagnosed", "illness", "sick", "medication", "hospital",
		"insomnia", "panic", "panic attack", "panic attacks", "surgery", "disease",
		"adhd", "ptsd", "bipolar", "ocd", "cancer", "diabetes", "pregnant", "pregnancy",
		"addiction", "rehab", "mental health",
	},
	TopicRelationship: {
		"partner", "boyfriend", "girlfriend", "husband", "wife", "dating", "breakup",
		"broke up", "divorce", "marriage", "married", "fiance", "fiancee", "ex",
		"relationship", "affair",
	},
	TopicFamily: {
		"family", "mother", "father", "mom", "dad", "sister", "brother", "son",
		"daughter", "parents", "parent", "kids", "children", "grandmother",
		"grandfather", "aunt", "uncle", "cousin", "sibling", "siblings",
	},
	TopicFinance: {
		"money", "debt", "loan", "loans", "salary", "rent", "mortgage", "savings",
		"bank", "budget", "paycheck", "income", "bankruptcy", "bankrupt", "finances",
		"financial", "credit", "invest", "investing", "taxes",
	},
	TopicLegal: {
		"lawyer", "attorney", "lawsuit", "sued", "suing", "court", "custody",
		"visa", "arrested", "arrest", "probation", "deportation", "legal",
		"contract dispute", "criminal record",
	},
	TopicLearning: {
		"learn", "learning", "course", "courses", "study", "studying", "class",
		"classes", "skill", "skills", "practice", "practicing", "tutorial", "degree",
		"certification", "reading",
	},
	TopicCreativity: {
		"idea", "ideas", "design", "designing", "writing", "novel", "art", "music",
		"painting", "creative", "create", "side project",
	},
	TopicProductivity: {
		"focus", "procrastinate", "procrastinating", "procrastination", "habit",
		"habits", "routine", "time management", "schedule", "prioritize",
		"prioritizing", "todo", "distracted", "distraction",
	},
	TopicWellbeing: {
		"sleep", "exercise", "meditation", "meditate", "burnout", "burned out",
		"burnt out", "stress", "stressed", "rest", "balance", "work-life balance",
		"lonely", "loneliness", "overwhelmed", "exhausted",
	},
}

// Tone markers.
const (
	ToneNegative = "negative"
	TonePositive = "positive"
	ToneNeutral  = "neutral"
)

// Emotion vocabulary. Negative and positive sets follow the profiler's
// original grouping (frustrated, angry, anxious, confused vs achieved,
// excited, relieved) extended with common English synonyms.
var (
	negativeWords = []string{
		"anxious", "anxiety", "worried", "worry", "worrying", "stressed", "struggling",
		"struggle", "frustrated", "frustrating", "angry", "mad", "confused", "lost",
		"sad", "afraid", "scared", "fear", "overwhelmed", "tired", "exhausted",
		"lonely", "stuck", "hopeless", "burned out", "burnt out", "upset", "hurt",
		"miserable", "terrible", "awful", "hate", "nervous", "dread",
	}
	positiveWords = []string{
		"excited", "happy", "relieved", "proud", "achieved", "accomplished",
		"grateful", "thankful", "glad", "motivated", "hopeful", "confident",
		"thrilled", "love", "enjoy", "enjoying", "great",
	}
)

// Intents, mirroring the five conversation categories of the capture layer.
const (
	IntentChat       = "chat"
	IntentEmpathy    = "empathy"
	IntentKnowledge  = "knowledge"
	IntentDeepDive   = "deep_dive"
	IntentBrainstorm = "brainstorm"
)

var intentKeywords = map[string][]string{
	IntentEmpathy: {
		"struggling", "tired", "exhausted", "hate", "terrible", "sad", "anxious",
		"scared", "lonely", "frustrated", "annoyed", "awful", "vent", "venting",
		"sigh", "need to talk",
	},
	IntentKnowledge: {
		"how do", "what is", "what are", "tell me", "want to know", "difference between",
		"how to", "explain", "research", "paper", "papers", "data", "reference",
	},
	IntentDeepDive: {
		"how can i", "solve", "fix", "improve", "problem", "cause", "why",
		"issue", "stuck", "not working", "analyze", "figure out", "sort out",
	},
	IntentBrainstorm: {
		"idea", "ideas", "hypothesis", "brainstorm", "what if", "maybe",
		"possibility", "possible", "new", "try", "experiment", "imagine",
	},
}

// intentOrder fixes the evaluation order so ties resolve deterministically.
var intentOrder = []string{IntentEmpathy, IntentKnowledge, IntentDeepDive, IntentBrainstorm}

// leadingConjunctions are stripped from the start of a clause.
var leadingConjunctions = []string{"and", "but", "so", "also", "then", "plus", "or", "yet"}
