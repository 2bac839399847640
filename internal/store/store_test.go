package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/kumalab/kaiwastats/internal/model"
)

func openTestStore(t *testing.T, maxHistory int) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "stats.db"), maxHistory)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestUpsertDevice(t *testing.T) {
	s := openTestStore(t, 0)

	first := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	info, err := s.UpsertDevice("D8:0F:99:D8:00:96", "LivingRoom ESP32", "リビング", first)
	if err != nil {
		t.Fatalf("UpsertDevice: %v", err)
	}
	if info.DeviceID != "D80F99D80096_LivingRoom_ESP32" {
		t.Errorf("DeviceID = %q", info.DeviceID)
	}
	if info.TotalConnections != 1 {
		t.Errorf("TotalConnections = %d, want 1", info.TotalConnections)
	}

	later := first.Add(24 * time.Hour)
	info, err = s.UpsertDevice("D8:0F:99:D8:00:96", "LivingRoom ESP32", "寝室", later)
	if err != nil {
		t.Fatalf("second UpsertDevice: %v", err)
	}
	if info.TotalConnections != 2 {
		t.Errorf("TotalConnections = %d, want 2", info.TotalConnections)
	}
	if !info.FirstSeen.Equal(first) {
		t.Errorf("FirstSeen = %v, want %v (must not move)", info.FirstSeen, first)
	}
	if !info.LastSeen.Equal(later) {
		t.Errorf("LastSeen = %v, want %v", info.LastSeen, later)
	}
	if info.Location != "寝室" {
		t.Errorf("Location = %q, want updated location", info.Location)
	}
}

func TestDeviceNotFound(t *testing.T) {
	s := openTestStore(t, 0)
	if _, err := s.Device("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestAppendTurnRoundTrip(t *testing.T) {
	s := openTestStore(t, 0)
	dev, err := s.UpsertDevice("AA:BB:CC:DD:EE:FF", "Robo", "", time.Now())
	if err != nil {
		t.Fatalf("UpsertDevice: %v", err)
	}

	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		turn, err := s.AppendTurn(model.Turn{
			DeviceID:    dev.DeviceID,
			UserMessage: "こんにちは",
			BotResponse: "やあ",
			Timestamp:   base.Add(time.Duration(i) * time.Minute),
			Location:    "リビング",
		})
		if err != nil {
			t.Fatalf("AppendTurn %d: %v", i, err)
		}
		if turn.ID == "" {
			t.Fatal("AppendTurn must assign an ID")
		}
	}

	turns, err := s.Turns(dev.DeviceID)
	if err != nil {
		t.Fatalf("Turns: %v", err)
	}
	if len(turns) != 3 {
		t.Fatalf("len(turns) = %d, want 3", len(turns))
	}
	for i := 1; i < len(turns); i++ {
		if turns[i].Timestamp.Before(turns[i-1].Timestamp) {
			t.Errorf("turns out of order at %d", i)
		}
	}
	if turns[0].UserMessage != "こんにちは" || turns[0].Location != "リビング" {
		t.Errorf("turn round-trip mismatch: %+v", turns[0])
	}

	n, err := s.TurnCount(dev.DeviceID)
	if err != nil {
		t.Fatalf("TurnCount: %v", err)
	}
	if n != 3 {
		t.Errorf("TurnCount = %d, want 3", n)
	}
}

func TestAppendTurnTrimsHistory(t *testing.T) {
	s := openTestStore(t, 5)
	dev, err := s.UpsertDevice("AA:BB:CC:DD:EE:FF", "Robo", "", time.Now())
	if err != nil {
		t.Fatalf("UpsertDevice: %v", err)
	}

	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 8; i++ {
		_, err := s.AppendTurn(model.Turn{
			DeviceID:    dev.DeviceID,
			UserMessage: "msg",
			Timestamp:   base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("AppendTurn %d: %v", i, err)
		}
	}

	turns, err := s.Turns(dev.DeviceID)
	if err != nil {
		t.Fatalf("Turns: %v", err)
	}
	if len(turns) != 5 {
		t.Fatalf("len(turns) = %d, want 5", len(turns))
	}
	// The oldest three are gone; the newest survives.
	if !turns[0].Timestamp.Equal(base.Add(3 * time.Minute)) {
		t.Errorf("oldest retained = %v, want %v", turns[0].Timestamp, base.Add(3*time.Minute))
	}
	if !turns[4].Timestamp.Equal(base.Add(7 * time.Minute)) {
		t.Errorf("newest retained = %v, want %v", turns[4].Timestamp, base.Add(7*time.Minute))
	}
}

func TestSaveLoadStats(t *testing.T) {
	s := openTestStore(t, 0)
	dev, err := s.UpsertDevice("AA:BB:CC:DD:EE:FF", "Robo", "", time.Now())
	if err != nil {
		t.Fatalf("UpsertDevice: %v", err)
	}

	stats := model.DeviceStats{
		DeviceID:           dev.DeviceID,
		DeviceName:         "Robo",
		TotalConversations: 7,
		FavoriteTopics:     []string{"宇宙"},
		TopicFrequencies:   map[string]int{"宇宙": 7},
		ComputedAt:         time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC),
		SourceTurnCount:    7,
	}
	if err := s.SaveStats(stats); err != nil {
		t.Fatalf("SaveStats: %v", err)
	}

	got, err := s.LoadStats(dev.DeviceID)
	if err != nil {
		t.Fatalf("LoadStats: %v", err)
	}
	if got.TotalConversations != 7 || got.SourceTurnCount != 7 {
		t.Errorf("loaded stats mismatch: %+v", got)
	}
	if got.TopicFrequencies["宇宙"] != 7 {
		t.Errorf("TopicFrequencies = %v", got.TopicFrequencies)
	}

	// Replacing overwrites the previous bundle.
	stats.SourceTurnCount = 9
	if err := s.SaveStats(stats); err != nil {
		t.Fatalf("SaveStats replace: %v", err)
	}
	got, err = s.LoadStats(dev.DeviceID)
	if err != nil {
		t.Fatalf("LoadStats after replace: %v", err)
	}
	if got.SourceTurnCount != 9 {
		t.Errorf("SourceTurnCount = %d, want 9", got.SourceTurnCount)
	}

	all, err := s.LoadAllStats()
	if err != nil {
		t.Fatalf("LoadAllStats: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("LoadAllStats len = %d, want 1", len(all))
	}
}

func TestLoadStatsNotFound(t *testing.T) {
	s := openTestStore(t, 0)
	if _, err := s.LoadStats("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
