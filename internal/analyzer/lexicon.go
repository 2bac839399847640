package analyzer

// GreetingPhrases are the fixed greeting surface forms matched against
// user messages. Matching is substring-based and case-insensitive for
// Latin text.
var GreetingPhrases = []string{
	"おはよう",
	"こんにちは",
	"こんばんは",
	"やあ",
	"ハロー",
	"そこにいるか",
	"元気かな",
	"調子はどう",
}

// questionMarker pairs an interrogative category with its surface forms.
// Order matters: more specific markers come before markers they contain
// ("何時" before "何", "どうして" before "どう") so each message lands in
// exactly one category.
type questionMarker struct {
	category string
	words    []string
}

var questionMarkers = []questionMarker{
	{"when", []string{"いつ", "何時"}},
	{"why", []string{"なぜ", "どうして"}},
	{"where", []string{"どこ", "どちら"}},
	{"who", []string{"だれ", "誰"}},
	{"how", []string{"どう", "どのように"}},
	{"what", []string{"なに", "何", "どんな"}},
}

// Sentiment word lists for the coarse lexicon scoring.
var (
	positiveWords = []string{"楽しい", "嬉しい", "ありがとう", "素敵", "良い", "好き", "最高"}
	negativeWords = []string{"悲しい", "つらい", "嫌い", "ダメ", "怖い", "心配"}
)
