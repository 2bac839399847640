// Package analyzer derives per-device conversation statistics from turn
// histories. Compute is a pure fold over the turns: no shared state, safe
// to run concurrently for different devices.
package analyzer

import (
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/kumalab/kaiwastats/internal/model"
	"github.com/kumalab/kaiwastats/internal/tokenize"
)

// DefaultCloudCap bounds the keyword cloud size.
const DefaultCloudCap = 200

// Analyzer computes DeviceStats bundles from turn histories.
type Analyzer struct {
	tokenizer tokenize.Tokenizer
	fallback  *tokenize.PatternTokenizer
	cloudCap  int
	log       zerolog.Logger
}

// New returns an Analyzer using the given tokenizer. A nil tokenizer means
// the pattern fallback is the primary extractor. cloudCap <= 0 selects
// DefaultCloudCap.
func New(tok tokenize.Tokenizer, cloudCap int, logger zerolog.Logger) *Analyzer {
	fallback := tokenize.NewPatternTokenizer()
	if tok == nil {
		tok = fallback
	}
	if cloudCap <= 0 {
		cloudCap = DefaultCloudCap
	}
	return &Analyzer{
		tokenizer: tok,
		fallback:  fallback,
		cloudCap:  cloudCap,
		log:       logger,
	}
}

// Compute folds the full turn history of one device into a fresh stats
// bundle. Deterministic for identical input aside from ComputedAt. Zero
// turns yield a zero-valued bundle, never an error.
func (a *Analyzer) Compute(info model.DeviceInfo, turns []model.Turn) model.DeviceStats {
	stats := model.DeviceStats{
		DeviceID:              info.DeviceID,
		DeviceName:            info.Name,
		TotalConversations:    len(turns),
		FavoriteTopics:        []string{},
		TopicFrequencies:      map[string]int{},
		KeywordCloud:          map[string]int{},
		HourlyDistribution:    map[int]int{},
		DailyDistribution:     map[int]int{},
		PeakHours:             []int{},
		CommonGreetings:       []string{},
		QuestionTypeCounts:    map[string]int{},
		SentimentDistribution: map[string]float64{},
		LocationTopics:        map[string][]string{},
		TimePeriodTopics:      map[string][]string{},
		ComputedAt:            time.Now().UTC(),
		SourceTurnCount:       len(turns),
	}
	if len(turns) == 0 {
		return stats
	}

	cloud := newKeywordCloud(a.cloudCap)
	vocabulary := make(map[string]struct{})
	greetingCounts := make(map[string]int)
	sentimentCounts := map[string]int{
		model.SentimentPositive: 0,
		model.SentimentNeutral:  0,
		model.SentimentNegative: 0,
	}
	periodTopics := make(map[string]map[string]int)
	locationTopics := make(map[string]map[string]int)

	var totalRunes int
	var questionTotal int

	for i, turn := range turns {
		ts := turn.Timestamp
		if stats.FirstSeen.IsZero() || ts.Before(stats.FirstSeen) {
			stats.FirstSeen = ts
		}
		if stats.LastSeen.IsZero() || ts.After(stats.LastSeen) {
			stats.LastSeen = ts
		}
		stats.HourlyDistribution[ts.Hour()]++
		stats.DailyDistribution[int(ts.Weekday())]++

		keywords := a.extract(turn)
		period := model.TimePeriod(ts.Hour())
		for _, kw := range keywords {
			stats.TopicFrequencies[kw.Category] += kw.Weight
			cloud.add(kw.Text, kw.Weight, i)
			vocabulary[kw.Text] = struct{}{}

			bumpGroup(periodTopics, period, kw.Category, kw.Weight)
			if turn.Location != "" {
				bumpGroup(locationTopics, turn.Location, kw.Category, kw.Weight)
			}
		}

		msg := turn.UserMessage
		totalRunes += utf8.RuneCountInString(msg)

		lowered := strings.ToLower(msg)
		for _, phrase := range GreetingPhrases {
			if strings.Contains(lowered, strings.ToLower(phrase)) {
				greetingCounts[phrase]++
			}
		}

		if category, ok := classifyQuestion(msg); ok {
			stats.QuestionTypeCounts[category]++
			questionTotal++
		}

		sentimentCounts[scoreSentiment(msg)]++
	}

	stats.KeywordCloud = cloud.counts
	stats.VocabularySize = len(vocabulary)
	stats.FavoriteTopics = topNByCount(stats.TopicFrequencies, 5)
	stats.CommonGreetings = topNByCount(greetingCounts, 5)
	stats.PeakHours = topHours(stats.HourlyDistribution, 3)
	stats.AverageMessageLength = float64(totalRunes) / float64(len(turns))

	days := daysInclusive(stats.FirstSeen, stats.LastSeen)
	stats.AverageConversationsPerDay = float64(len(turns)) / float64(days)

	total := float64(len(turns))
	for sentiment, n := range sentimentCounts {
		stats.SentimentDistribution[sentiment] = float64(n) / total
	}

	questionRatio := float64(questionTotal) / total
	stats.InteractionStyle = interactionStyle(stats.SentimentDistribution, questionRatio, stats.AverageMessageLength)

	for period, counts := range periodTopics {
		stats.TimePeriodTopics[period] = topNByCount(counts, 3)
	}
	for location, counts := range locationTopics {
		stats.LocationTopics[location] = topNByCount(counts, 3)
	}

	return stats
}

// extract runs the primary tokenizer over the turn's combined text,
// degrading to the pattern fallback when it fails. A per-turn failure is
// never fatal to the computation.
func (a *Analyzer) extract(turn model.Turn) []model.Keyword {
	text := strings.TrimSpace(turn.UserMessage + " " + turn.BotResponse)
	keywords, err := a.tokenizer.Tokenize(text)
	if err != nil {
		a.log.Warn().
			Str("device_id", turn.DeviceID).
			Str("turn_id", turn.ID).
			Err(err).
			Msg("tokenizer failed, using pattern fallback")
		keywords, _ = a.fallback.Tokenize(text)
	}
	return keywords
}

func bumpGroup(groups map[string]map[string]int, group, key string, n int) {
	counts, ok := groups[group]
	if !ok {
		counts = make(map[string]int)
		groups[group] = counts
	}
	counts[key] += n
}

// classifyQuestion assigns a user message to one interrogative category.
// Marker order in questionMarkers decides ambiguity; a message ending in a
// question marker without any marker word counts as "general".
func classifyQuestion(msg string) (string, bool) {
	for _, qm := range questionMarkers {
		for _, word := range qm.words {
			if strings.Contains(msg, word) {
				return qm.category, true
			}
		}
	}
	trimmed := strings.TrimSpace(msg)
	if strings.HasSuffix(trimmed, "？") || strings.HasSuffix(trimmed, "?") {
		return model.QuestionGeneral, true
	}
	return "", false
}

// scoreSentiment nets positive against negative lexicon hits for one
// message. Net positive wins positive, net negative wins negative,
// everything else is neutral.
func scoreSentiment(msg string) string {
	var score int
	for _, word := range positiveWords {
		score += strings.Count(msg, word)
	}
	for _, word := range negativeWords {
		score -= strings.Count(msg, word)
	}
	switch {
	case score > 0:
		return model.SentimentPositive
	case score < 0:
		return model.SentimentNegative
	default:
		return model.SentimentNeutral
	}
}

// interactionStyle is a fixed decision table over dominant sentiment,
// question ratio, and message-length band.
func interactionStyle(sentiment map[string]float64, questionRatio, avgLen float64) string {
	base := model.SentimentNeutral
	if sentiment[model.SentimentPositive] > sentiment[model.SentimentNeutral] &&
		sentiment[model.SentimentPositive] > sentiment[model.SentimentNegative] {
		base = model.SentimentPositive
	} else if sentiment[model.SentimentNegative] > sentiment[model.SentimentNeutral] &&
		sentiment[model.SentimentNegative] > sentiment[model.SentimentPositive] {
		base = model.SentimentNegative
	}

	var style string
	switch base {
	case model.SentimentPositive:
		style = "cheerful"
	case model.SentimentNegative:
		style = "reserved"
	default:
		style = "calm"
	}

	switch {
	case questionRatio >= 0.4:
		return "inquisitive-" + style
	case avgLen >= 30:
		return "talkative-" + style
	default:
		return style
	}
}

// daysInclusive counts calendar days between two instants, inclusive of
// both endpoints. Never less than 1.
func daysInclusive(first, last time.Time) int {
	f := time.Date(first.Year(), first.Month(), first.Day(), 0, 0, 0, 0, time.UTC)
	l := time.Date(last.Year(), last.Month(), last.Day(), 0, 0, 0, 0, time.UTC)
	days := int(l.Sub(f).Hours()/24) + 1
	if days < 1 {
		days = 1
	}
	return days
}

// topNByCount returns up to n keys ordered by count descending, ties
// broken alphabetically.
func topNByCount(counts map[string]int, n int) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > n {
		keys = keys[:n]
	}
	return keys
}

// topHours returns up to n hours ordered by count descending, ties broken
// by the earlier hour.
func topHours(counts map[int]int, n int) []int {
	hours := make([]int, 0, len(counts))
	for h, c := range counts {
		if c > 0 {
			hours = append(hours, h)
		}
	}
	sort.Slice(hours, func(i, j int) bool {
		if counts[hours[i]] != counts[hours[j]] {
			return counts[hours[i]] > counts[hours[j]]
		}
		return hours[i] < hours[j]
	})
	if len(hours) > n {
		hours = hours[:n]
	}
	return hours
}
