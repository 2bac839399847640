package analyzer

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/kumalab/kaiwastats/internal/model"
)

func testDevice() model.DeviceInfo {
	return model.DeviceInfo{DeviceID: "D80F99D80096_LivingRoom-ESP32", Name: "LivingRoom-ESP32"}
}

// turnAt builds a turn with the given user message at hour h on a fixed day.
func turnAt(h int, userMsg string) model.Turn {
	return model.Turn{
		DeviceID:    "D80F99D80096_LivingRoom-ESP32",
		UserMessage: userMsg,
		BotResponse: "そうなんだね",
		Timestamp:   time.Date(2026, 3, 2, h, 15, 0, 0, time.UTC),
	}
}

func newTestAnalyzer() *Analyzer {
	return New(nil, 0, zerolog.Nop())
}

func TestCompute_EmptyHistory(t *testing.T) {
	a := newTestAnalyzer()
	stats := a.Compute(testDevice(), nil)

	if stats.TotalConversations != 0 {
		t.Errorf("TotalConversations = %d, want 0", stats.TotalConversations)
	}
	if stats.SourceTurnCount != 0 {
		t.Errorf("SourceTurnCount = %d, want 0", stats.SourceTurnCount)
	}
	if len(stats.TopicFrequencies) != 0 || len(stats.KeywordCloud) != 0 {
		t.Error("expected empty topic and keyword maps")
	}
	if stats.FavoriteTopics == nil || stats.PeakHours == nil {
		t.Error("sequences must be empty, not nil")
	}
}

func TestCompute_SourceTurnCount(t *testing.T) {
	a := newTestAnalyzer()
	turns := []model.Turn{
		turnAt(9, "おはよう"),
		turnAt(10, "宇宙の話をしよう"),
		turnAt(11, "ありがとう"),
	}

	stats := a.Compute(testDevice(), turns)
	if stats.SourceTurnCount != 3 {
		t.Errorf("SourceTurnCount = %d, want 3", stats.SourceTurnCount)
	}
	if stats.TotalConversations != 3 {
		t.Errorf("TotalConversations = %d, want 3", stats.TotalConversations)
	}
}

func TestCompute_Idempotent(t *testing.T) {
	a := newTestAnalyzer()
	turns := []model.Turn{
		turnAt(9, "宇宙の星が好き"),
		turnAt(14, "今日はどう？"),
		turnAt(20, "こんばんは、楽しいね"),
	}

	first := a.Compute(testDevice(), turns)
	second := a.Compute(testDevice(), turns)

	// Equal in every field except ComputedAt.
	first.ComputedAt = time.Time{}
	second.ComputedAt = time.Time{}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("bundles differ:\n%+v\n%+v", first, second)
	}
}

func TestCompute_PeakHours(t *testing.T) {
	a := newTestAnalyzer()
	var turns []model.Turn
	for _, h := range []int{9, 9, 14, 20, 20, 20} {
		turns = append(turns, turnAt(h, "やあ"))
	}

	stats := a.Compute(testDevice(), turns)

	wantPeaks := []int{20, 9, 14}
	if !reflect.DeepEqual(stats.PeakHours, wantPeaks) {
		t.Errorf("PeakHours = %v, want %v", stats.PeakHours, wantPeaks)
	}

	wantHourly := map[int]int{9: 2, 14: 1, 20: 3}
	if !reflect.DeepEqual(stats.HourlyDistribution, wantHourly) {
		t.Errorf("HourlyDistribution = %v, want %v", stats.HourlyDistribution, wantHourly)
	}
}

func TestCompute_PeakHoursTieEarlierHourWins(t *testing.T) {
	a := newTestAnalyzer()
	var turns []model.Turn
	for _, h := range []int{22, 7, 13, 7, 13, 22} {
		turns = append(turns, turnAt(h, "やあ"))
	}

	stats := a.Compute(testDevice(), turns)
	want := []int{7, 13, 22} // all count 2, earlier hour first
	if !reflect.DeepEqual(stats.PeakHours, want) {
		t.Errorf("PeakHours = %v, want %v", stats.PeakHours, want)
	}
}

func TestCompute_GreetingsAndQuestions(t *testing.T) {
	a := newTestAnalyzer()
	turns := []model.Turn{
		turnAt(9, "そこにいるかい？"),
		turnAt(10, "元気かな"),
		turnAt(11, "こんにちは"),
	}

	stats := a.Compute(testDevice(), turns)

	greetings := make(map[string]bool)
	for _, g := range stats.CommonGreetings {
		greetings[g] = true
	}
	if !greetings["そこにいるか"] || !greetings["元気かな"] {
		t.Errorf("CommonGreetings = %v, want そこにいるか and 元気かな present", stats.CommonGreetings)
	}

	var questionTotal int
	for _, n := range stats.QuestionTypeCounts {
		questionTotal += n
	}
	if questionTotal != 1 {
		t.Errorf("question total = %d, want 1 (only the ？-terminated message)", questionTotal)
	}
	if stats.QuestionTypeCounts[model.QuestionGeneral] != 1 {
		t.Errorf("QuestionTypeCounts = %v, want general:1", stats.QuestionTypeCounts)
	}
}

func TestClassifyQuestion(t *testing.T) {
	tests := []struct {
		msg      string
		category string
		ok       bool
	}{
		{"なにが好き？", model.QuestionWhat, true},
		{"いつ来るの", model.QuestionWhen, true},
		{"何時に起きた？", model.QuestionWhen, true}, // 何時 beats 何
		{"どこにいるの", model.QuestionWhere, true},
		{"どうしてそう思う？", model.QuestionWhy, true}, // どうして beats どう
		{"どう思う？", model.QuestionHow, true},
		{"誰が来たの", model.QuestionWho, true},
		{"そこにいるかい？", model.QuestionGeneral, true},
		{"is anyone there?", model.QuestionGeneral, true},
		{"こんにちは", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			category, ok := classifyQuestion(tt.msg)
			if ok != tt.ok || category != tt.category {
				t.Errorf("classifyQuestion(%q) = (%q, %v), want (%q, %v)",
					tt.msg, category, ok, tt.category, tt.ok)
			}
		})
	}
}

func TestCompute_SentimentDistribution(t *testing.T) {
	a := newTestAnalyzer()
	turns := []model.Turn{
		turnAt(9, "楽しいね、最高"),
		turnAt(10, "悲しいよ"),
		turnAt(11, "そうなんだ"),
		turnAt(12, "嬉しい"),
	}

	stats := a.Compute(testDevice(), turns)

	var sum float64
	for _, f := range stats.SentimentDistribution {
		sum += f
	}
	if sum < 0.999 || sum > 1.001 {
		t.Errorf("sentiment fractions sum to %f, want 1.0", sum)
	}
	if got := stats.SentimentDistribution[model.SentimentPositive]; got != 0.5 {
		t.Errorf("positive fraction = %f, want 0.5", got)
	}
	if got := stats.SentimentDistribution[model.SentimentNegative]; got != 0.25 {
		t.Errorf("negative fraction = %f, want 0.25", got)
	}
}

func TestCompute_FavoriteTopicsTieAlphabetical(t *testing.T) {
	a := newTestAnalyzer()
	turns := []model.Turn{
		turnAt(9, "宇宙"),
		turnAt(10, "冒険"),
	}

	stats := a.Compute(testDevice(), turns)
	if len(stats.FavoriteTopics) < 2 {
		t.Fatalf("FavoriteTopics = %v, want at least 2", stats.FavoriteTopics)
	}
	// Both topics appear once; alphabetical order decides.
	if stats.FavoriteTopics[0] > stats.FavoriteTopics[1] {
		t.Errorf("tie not broken alphabetically: %v", stats.FavoriteTopics)
	}
}

func TestCompute_AverageConversationsPerDay(t *testing.T) {
	a := newTestAnalyzer()
	turns := []model.Turn{
		{UserMessage: "やあ", Timestamp: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)},
		{UserMessage: "やあ", Timestamp: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)},
		{UserMessage: "やあ", Timestamp: time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC)},
		{UserMessage: "やあ", Timestamp: time.Date(2026, 3, 3, 21, 0, 0, 0, time.UTC)},
	}

	stats := a.Compute(testDevice(), turns)
	// 4 turns over 3 inclusive days.
	want := 4.0 / 3.0
	if diff := stats.AverageConversationsPerDay - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("AverageConversationsPerDay = %f, want %f", stats.AverageConversationsPerDay, want)
	}
}

func TestCompute_LocationAndTimePeriodTopics(t *testing.T) {
	a := newTestAnalyzer()
	turns := []model.Turn{
		{UserMessage: "宇宙の星", Location: "リビング", Timestamp: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)},
		{UserMessage: "ロケットの冒険", Location: "リビング", Timestamp: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)},
		{UserMessage: "今日の天気は晴れ", Location: "寝室", Timestamp: time.Date(2026, 3, 2, 22, 0, 0, 0, time.UTC)},
	}

	stats := a.Compute(testDevice(), turns)

	living := stats.LocationTopics["リビング"]
	if len(living) == 0 || living[0] != "宇宙" {
		t.Errorf("LocationTopics[リビング] = %v, want 宇宙 first", living)
	}
	if _, ok := stats.LocationTopics["寝室"]; !ok {
		t.Error("LocationTopics missing 寝室")
	}

	morning := stats.TimePeriodTopics[model.PeriodMorning]
	if len(morning) == 0 || morning[0] != "宇宙" {
		t.Errorf("TimePeriodTopics[morning] = %v, want 宇宙 first", morning)
	}
	if _, ok := stats.TimePeriodTopics[model.PeriodNight]; !ok {
		t.Error("TimePeriodTopics missing night bucket")
	}
}

// splitTokenizer emits one keyword per whitespace-separated token, letting
// tests control the keyword stream precisely.
type splitTokenizer struct{}

func (splitTokenizer) Tokenize(text string) ([]model.Keyword, error) {
	var keywords []model.Keyword
	for _, tok := range strings.Fields(text) {
		keywords = append(keywords, model.Keyword{Text: tok, Category: "試験", Weight: 1})
	}
	return keywords, nil
}

func TestCompute_KeywordCloudCapEviction(t *testing.T) {
	a := New(splitTokenizer{}, 3, zerolog.Nop())

	turns := []model.Turn{
		// k1 seen twice, k2 and k3 once each; k2 seen before k3.
		{UserMessage: "k1 k2", Timestamp: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)},
		{UserMessage: "k1 k3", Timestamp: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)},
		// New distinct keyword overflows the cap of 3. k2 and k3 share the
		// lowest count; k2 is least recently seen and must be evicted.
		{UserMessage: "k4", Timestamp: time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC)},
	}

	stats := a.Compute(testDevice(), turns)

	if len(stats.KeywordCloud) != 3 {
		t.Fatalf("cloud size = %d, want 3", len(stats.KeywordCloud))
	}
	if _, evicted := stats.KeywordCloud["k2"]; evicted {
		t.Errorf("k2 should have been evicted, cloud = %v", stats.KeywordCloud)
	}
	for _, keep := range []string{"k1", "k3", "k4"} {
		if _, ok := stats.KeywordCloud[keep]; !ok {
			t.Errorf("%s missing from cloud %v", keep, stats.KeywordCloud)
		}
	}
}

// failingTokenizer always errors, forcing the fallback path.
type failingTokenizer struct{}

func (failingTokenizer) Tokenize(string) ([]model.Keyword, error) {
	return nil, errors.New("morphological analyzer unavailable")
}

func TestCompute_TokenizerFailureFallsBack(t *testing.T) {
	a := New(failingTokenizer{}, 0, zerolog.Nop())
	turns := []model.Turn{turnAt(9, "宇宙の星が見たい")}

	stats := a.Compute(testDevice(), turns)

	if stats.TopicFrequencies["宇宙"] == 0 {
		t.Errorf("fallback extraction missed 宇宙 topic: %v", stats.TopicFrequencies)
	}
}

func TestCompute_VocabularySize(t *testing.T) {
	a := newTestAnalyzer()
	turns := []model.Turn{
		turnAt(9, "宇宙の星"),
		turnAt(10, "宇宙のロケット"),
	}

	stats := a.Compute(testDevice(), turns)
	// Distinct keywords across both turns: 宇宙, 星, ロケット (+ bot response hits).
	if stats.VocabularySize < 3 {
		t.Errorf("VocabularySize = %d, want >= 3", stats.VocabularySize)
	}
}

func TestInteractionStyle(t *testing.T) {
	tests := []struct {
		name          string
		sentiment     map[string]float64
		questionRatio float64
		avgLen        float64
		want          string
	}{
		{"inquisitive positive", map[string]float64{"positive": 0.7, "neutral": 0.2, "negative": 0.1}, 0.5, 10, "inquisitive-cheerful"},
		{"plain cheerful", map[string]float64{"positive": 0.7, "neutral": 0.2, "negative": 0.1}, 0.1, 10, "cheerful"},
		{"talkative calm", map[string]float64{"positive": 0.2, "neutral": 0.6, "negative": 0.2}, 0.1, 45, "talkative-calm"},
		{"reserved", map[string]float64{"positive": 0.1, "neutral": 0.3, "negative": 0.6}, 0.0, 10, "reserved"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := interactionStyle(tt.sentiment, tt.questionRatio, tt.avgLen)
			if got != tt.want {
				t.Errorf("interactionStyle = %q, want %q", got, tt.want)
			}
		})
	}
}
