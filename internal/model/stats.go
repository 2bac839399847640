package model

import "time"

// Sentiment labels used in DeviceStats.SentimentDistribution.
const (
	SentimentPositive = "positive"
	SentimentNeutral  = "neutral"
	SentimentNegative = "negative"
)

// Question categories used in DeviceStats.QuestionTypeCounts.
const (
	QuestionWhat    = "what"
	QuestionWhen    = "when"
	QuestionWhere   = "where"
	QuestionWhy     = "why"
	QuestionHow     = "how"
	QuestionWho     = "who"
	QuestionGeneral = "general"
)

// Time-of-day buckets used in DeviceStats.TimePeriodTopics.
const (
	PeriodMorning   = "morning"   // 05:00-11:59
	PeriodAfternoon = "afternoon" // 12:00-16:59
	PeriodEvening   = "evening"   // 17:00-20:59
	PeriodNight     = "night"     // everything else
)

// DeviceStats is the derived statistics bundle for one device. A bundle is
// immutable once produced; a recomputation yields a fresh bundle that
// atomically replaces the previous one in the cache.
type DeviceStats struct {
	DeviceID           string `json:"device_id"`
	DeviceName         string `json:"device_name"`
	TotalConversations int    `json:"total_conversations"`

	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`

	// Topic analysis
	FavoriteTopics   []string       `json:"favorite_topics"`
	TopicFrequencies map[string]int `json:"topic_frequencies"`
	KeywordCloud     map[string]int `json:"keyword_cloud"`

	// Time patterns
	HourlyDistribution         map[int]int `json:"hourly_distribution"`
	DailyDistribution          map[int]int `json:"daily_distribution"`
	PeakHours                  []int       `json:"peak_hours"`
	AverageConversationsPerDay float64     `json:"average_conversations_per_day"`

	// Conversation patterns
	CommonGreetings      []string       `json:"common_greetings"`
	QuestionTypeCounts   map[string]int `json:"question_type_counts"`
	AverageMessageLength float64        `json:"average_message_length"`
	VocabularySize       int            `json:"vocabulary_size"`

	// Sentiment and tone
	SentimentDistribution map[string]float64 `json:"sentiment_distribution"`
	InteractionStyle      string             `json:"interaction_style"`

	// Context-dependent topics
	LocationTopics   map[string][]string `json:"location_topics"`
	TimePeriodTopics map[string][]string `json:"time_period_topics"`

	ComputedAt      time.Time `json:"computed_at"`
	SourceTurnCount int       `json:"source_turn_count"`
}

// TimePeriod maps an hour of day (0-23) to its time-of-day bucket.
func TimePeriod(hour int) string {
	switch {
	case hour >= 5 && hour < 12:
		return PeriodMorning
	case hour >= 12 && hour < 17:
		return PeriodAfternoon
	case hour >= 17 && hour < 21:
		return PeriodEvening
	default:
		return PeriodNight
	}
}
