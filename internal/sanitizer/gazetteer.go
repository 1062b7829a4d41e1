package sanitizer

// Built-in gazetteers, lower-case. A name missing here is still caught by the
// proper-noun detector unless it opens a clause.

var firstNames = toSet(
	"alice", "bob", "carol", "dave", "david", "emma", "olivia", "liam", "noah",
	"james", "john", "robert", "michael", "william", "mary", "patricia", "jennifer",
	"linda", "elizabeth", "barbara", "susan", "jessica", "sarah", "karen", "lisa",
	"nancy", "betty", "sandra", "ashley", "emily", "anna", "sophia", "mia",
	"charlotte", "amelia", "harper", "ethan", "mason", "logan", "lucas", "jacob",
	"daniel", "matthew", "henry", "jack", "oliver", "thomas", "charles", "joseph",
	"mark", "paul", "steven", "kevin", "brian", "george", "edward", "ronald",
	"anthony", "kenji", "yuki", "hiro", "akira", "sakura", "haruto", "wei", "li",
	"chen", "priya", "raj", "arjun", "fatima", "ahmed", "mohammed", "omar",
	"maria", "jose", "juan", "carlos", "sofia", "lucia", "pierre", "hans", "ivan",
	"olga", "anya", "tom", "tim", "sam", "alex", "max", "ben", "kate", "jane",
)

var places = toSet(
	// Cities.
	"boston", "new york", "san francisco", "los angeles", "chicago", "seattle",
	"austin", "denver", "miami", "atlanta", "dallas", "houston", "portland",
	"philadelphia", "washington", "london", "paris", "berlin", "madrid", "rome",
	"amsterdam", "dublin", "lisbon", "vienna", "prague", "warsaw", "stockholm",
	"oslo", "copenhagen", "helsinki", "zurich", "geneva", "munich", "tokyo",
	"osaka", "kyoto", "yokohama", "sapporo", "fukuoka", "seoul", "beijing",
	"shanghai", "hong kong", "singapore", "bangkok", "sydney", "melbourne",
	"toronto", "vancouver", "montreal", "mexico city", "sao paulo", "buenos aires",
	"mumbai", "delhi", "bangalore", "dubai", "cairo", "lagos", "nairobi",
	"brooklyn", "manhattan", "silicon valley",
	// Countries and regions.
	"usa", "america", "canada", "mexico", "brazil", "argentina", "uk", "england",
	"scotland", "ireland", "france", "germany", "spain", "italy", "portugal",
	"netherlands", "sweden", "norway", "denmark", "finland", "poland", "russia",
	"ukraine", "japan", "china", "korea", "india", "australia", "egypt",
	"nigeria", "kenya", "europe", "asia", "africa",
	// US states.
	"california", "texas", "florida", "massachusetts", "oregon", "colorado",
	"georgia", "ohio", "michigan", "illinois", "virginia", "arizona", "nevada",
	"utah", "new jersey", "new mexico", "north carolina", "south carolina",
	"pennsylvania", "minnesota", "wisconsin", "tennessee", "kentucky", "alabama",
	"louisiana", "maryland", "hawaii", "alaska",
)

// commonOpeners are ordinary words that may start a clause capitalized.
// The list is closed: any other clause-initial capital is treated as a
// possible name.
var commonOpeners = toSet(
	// Pronouns, determiners and quantifiers.
	"me", "my", "mine", "myself", "we", "we're", "we've", "us", "our", "you", "you're",
	"your", "he", "he's", "him", "his", "she", "she's", "her", "they", "they're",
	"them", "their", "it", "it's", "its", "this", "that", "that's", "these", "those",
	"there", "there's", "here", "someone", "somebody", "everyone", "everybody",
	"nobody", "nothing", "something", "everything", "anyone", "anything", "one",
	"some", "any", "all", "both", "each", "every", "many", "most", "much", "more",
	"few", "several", "no", "none", "a", "an", "the", "another", "other", "such",
	"what", "what's", "which", "who", "whose", "when", "where", "why", "how",
	// Conjunctions and prepositions.
	"and", "but", "or", "so", "yet", "because", "since", "although", "though",
	"while", "if", "unless", "until", "after", "before", "once", "as", "about",
	"at", "in", "on", "for", "with", "without", "from", "to", "of", "by", "during",
	"between", "over", "under", "into", "through", "like", "whether", "than",
	// Adverbs and time words.
	"then", "also", "still", "just", "even", "only", "maybe", "perhaps", "not",
	"never", "always", "often", "sometimes", "usually", "today", "tonight",
	"yesterday", "tomorrow", "now", "lately", "recently", "finally", "honestly",
	"really", "actually", "basically", "hopefully", "luckily", "unfortunately",
	"fortunately", "apparently", "obviously", "clearly", "suddenly", "again",
	"already", "almost", "last", "next", "soon", "later", "earlier", "anyway",
	"instead", "otherwise", "however", "meanwhile", "overall", "plus", "too",
	"very", "quite", "somehow", "mostly", "probably", "definitely",
	// Auxiliaries and frequent verbs.
	"am", "is", "isn't", "are", "aren't", "was", "wasn't", "were", "weren't", "be",
	"been", "being", "do", "does", "doesn't", "did", "didn't", "don't", "have",
	"haven't", "has", "hasn't", "had", "can", "can't", "could", "couldn't", "will",
	"won't", "would", "wouldn't", "should", "shouldn't", "may", "might", "must",
	"let", "let's", "got", "get", "went", "go", "made", "make", "took", "take",
	"saw", "see", "told", "tell", "said", "say", "feel", "feels", "felt", "think",
	"thought", "wish", "hope", "want", "need", "try", "tried", "keep", "kept",
	"spent", "start", "still", "seems", "looks",
	// Interjections and common nouns that open notes.
	"yes", "ok", "okay", "well", "oh", "wow", "thanks", "please", "sorry", "hi",
	"hello", "hey", "dear", "new", "old", "big", "small", "good", "bad", "great",
	"first", "second", "lots", "work", "life", "things", "people", "friends",
	"family", "morning", "evening", "night", "week", "weekend", "month", "year",
)

func toSet(items ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(items))
	for _, s := range items {
		out[s] = struct{}{}
	}
	return out
}
