package analyzer

import (
	"strings"
	"testing"
	"time"

	"github.com/kumalab/kaiwastats/internal/model"
)

func TestPromptContext(t *testing.T) {
	stats := model.DeviceStats{
		DeviceName:                 "LivingRoom-ESP32",
		TotalConversations:         42,
		AverageConversationsPerDay: 3.5,
		FavoriteTopics:             []string{"宇宙", "冒険", "天気", "食べ物"},
		PeakHours:                  []int{20, 9},
		InteractionStyle:           "inquisitive-cheerful",
		TimePeriodTopics: map[string][]string{
			model.PeriodEvening: {"宇宙", "冒険", "天気"},
		},
		LocationTopics: map[string][]string{
			"リビング": {"宇宙", "食べ物"},
		},
	}

	now := time.Date(2026, 3, 2, 20, 30, 0, 0, time.UTC)
	got := PromptContext(stats, now, "リビング")

	for _, want := range []string{
		"「LivingRoom-ESP32」",
		"（リビングに設置）",
		"総会話数 42回",
		"1日平均 3.5回",
		"宇宙、冒険、天気", // top 3 only
		"この時間帯によく会話します",
		"質問には詳しく、明るく答える",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("context missing %q:\n%s", want, got)
		}
	}

	if strings.Contains(got, "よく話す話題: 宇宙、冒険、天気、食べ物") {
		t.Errorf("favorite topics not truncated to 3:\n%s", got)
	}
	// Evening topics truncate to 2.
	if !strings.Contains(got, "夕方の話題: 宇宙、冒険") || strings.Contains(got, "夕方の話題: 宇宙、冒険、天気") {
		t.Errorf("evening topics wrong:\n%s", got)
	}
	if strings.HasSuffix(got, "\n") {
		t.Error("context must not end with a newline")
	}
}

func TestPromptContext_OffPeakNoLocation(t *testing.T) {
	stats := model.DeviceStats{
		DeviceName: "Bedroom-ESP32",
		PeakHours:  []int{20},
	}

	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	got := PromptContext(stats, now, "")

	if strings.Contains(got, "この時間帯") {
		t.Errorf("off-peak hour must not emit the peak note:\n%s", got)
	}
	if strings.Contains(got, "に設置") {
		t.Errorf("empty location must omit placement:\n%s", got)
	}
}
