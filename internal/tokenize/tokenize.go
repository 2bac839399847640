// Package tokenize extracts classified keywords from conversational text.
//
// The real deployment plugs a morphological analyzer in behind the
// Tokenizer interface; PatternTokenizer is the deterministic fallback that
// only does substring matching against a fixed topic table. It has no
// external dependencies and never fails, so it doubles as the degraded
// path when the primary tokenizer errors out.
package tokenize

import (
	"sort"
	"strings"

	"github.com/kumalab/kaiwastats/internal/model"
)

// Tokenizer maps raw text to a set of classified keywords.
type Tokenizer interface {
	Tokenize(text string) ([]model.Keyword, error)
}

// TopicTable maps topic labels to the keyword surface forms that indicate
// them. The table follows the robot assistant's conversational domain.
var TopicTable = map[string][]string{
	"宇宙":   {"宇宙", "星", "惑星", "銀河", "ロケット", "宇宙船", "宇宙飛行"},
	"冒険":   {"冒険", "探検", "旅", "挑戦", "チャレンジ"},
	"食べ物":  {"食べ", "料理", "ごはん", "おいしい", "スナック"},
	"天気":   {"天気", "晴れ", "雨", "暑い", "寒い", "気温"},
	"挨拶":   {"おはよう", "こんにちは", "こんばんは", "ありがとう", "さようなら"},
	"質問":   {"どう", "なに", "いつ", "どこ", "なぜ", "教えて"},
	"感情":   {"楽しい", "嬉しい", "悲しい", "怖い", "好き", "嫌い"},
	"時間":   {"今日", "明日", "昨日", "朝", "昼", "夜", "時間"},
	"場所":   {"ここ", "そこ", "家", "部屋", "外"},
	"デバイス": {"ESP32", "ロボット", "スピーカー", "マイク"},
}

// Topics returns the topic labels of the table in sorted order.
func Topics() []string {
	topics := make([]string, 0, len(TopicTable))
	for t := range TopicTable {
		topics = append(topics, t)
	}
	sort.Strings(topics)
	return topics
}

// PatternTokenizer is the fallback keyword extractor. It matches the topic
// table's surface forms as substrings, case-insensitively for Latin text.
// Output order is deterministic: topics sorted, then table order within a
// topic.
type PatternTokenizer struct{}

// NewPatternTokenizer returns the substring-matching fallback tokenizer.
func NewPatternTokenizer() *PatternTokenizer {
	return &PatternTokenizer{}
}

// Tokenize scans text for known keyword surface forms. The error is always
// nil; the signature satisfies Tokenizer.
func (p *PatternTokenizer) Tokenize(text string) ([]model.Keyword, error) {
	lowered := strings.ToLower(text)

	var keywords []model.Keyword
	for _, topic := range Topics() {
		for _, word := range TopicTable[topic] {
			n := strings.Count(lowered, strings.ToLower(word))
			if n == 0 {
				continue
			}
			keywords = append(keywords, model.Keyword{
				Text:     word,
				Category: topic,
				Weight:   n,
			})
		}
	}
	return keywords, nil
}
