package analyzer

import (
	"fmt"
	"strings"
	"time"

	"github.com/kumalab/kaiwastats/internal/model"
)

// styleHints maps an interaction style to the tone hint appended to the
// personalization context.
var styleHints = map[string]string{
	"cheerful":             "明るく元気に話す",
	"reserved":             "優しく寄り添うように話す",
	"calm":                 "落ち着いたトーンで話す",
	"inquisitive-cheerful": "質問には詳しく、明るく答える",
	"inquisitive-reserved": "質問には丁寧に、穏やかに答える",
	"inquisitive-calm":     "質問には詳しく答える",
	"talkative-cheerful":   "会話を広げながら明るく話す",
	"talkative-reserved":   "話をよく聞きながら穏やかに応じる",
	"talkative-calm":       "会話を広げながら落ち着いて話す",
}

// periodLabels renders the time-of-day bucket names in Japanese for the
// context block.
var periodLabels = map[string]string{
	model.PeriodMorning:   "朝",
	model.PeriodAfternoon: "昼",
	model.PeriodEvening:   "夕方",
	model.PeriodNight:     "夜",
}

// PromptContext renders the personalization context block that the prompt
// builder prepends to the language model prompt. It only reads the stats
// bundle; it never triggers a recomputation.
func PromptContext(stats model.DeviceStats, now time.Time, location string) string {
	var b strings.Builder

	device := fmt.Sprintf("◆ デバイス情報: 「%s」", stats.DeviceName)
	if location != "" {
		device += fmt.Sprintf("（%sに設置）", location)
	}
	b.WriteString(device)
	b.WriteString("\n")

	fmt.Fprintf(&b, "◆ 会話履歴: 総会話数 %d回、1日平均 %.1f回\n",
		stats.TotalConversations, stats.AverageConversationsPerDay)

	if len(stats.FavoriteTopics) > 0 {
		topics := stats.FavoriteTopics
		if len(topics) > 3 {
			topics = topics[:3]
		}
		fmt.Fprintf(&b, "◆ よく話す話題: %s\n", strings.Join(topics, "、"))
	}

	hour := now.Hour()
	for _, peak := range stats.PeakHours {
		if peak == hour {
			b.WriteString("◆ この時間帯によく会話します\n")
			break
		}
	}

	period := model.TimePeriod(hour)
	if topics := stats.TimePeriodTopics[period]; len(topics) > 0 {
		n := len(topics)
		if n > 2 {
			n = 2
		}
		fmt.Fprintf(&b, "◆ %sの話題: %s\n", periodLabels[period], strings.Join(topics[:n], "、"))
	}

	if location != "" {
		if topics := stats.LocationTopics[location]; len(topics) > 0 {
			n := len(topics)
			if n > 2 {
				n = 2
			}
			fmt.Fprintf(&b, "◆ %sでの話題: %s\n", location, strings.Join(topics[:n], "、"))
		}
	}

	if hint, ok := styleHints[stats.InteractionStyle]; ok {
		fmt.Fprintf(&b, "◆ 話し方: %s\n", hint)
	}

	return strings.TrimRight(b.String(), "\n")
}
