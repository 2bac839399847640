package coordinator

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/kumalab/kaiwastats/internal/model"
	"github.com/kumalab/kaiwastats/internal/statscache"
)

type fakeSource struct {
	mu      sync.Mutex
	devices map[string]model.DeviceInfo
	turns   map[string][]model.Turn
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		devices: make(map[string]model.DeviceInfo),
		turns:   make(map[string][]model.Turn),
	}
}

func (s *fakeSource) addDevice(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devices[id] = model.DeviceInfo{DeviceID: id, Name: id}
}

func (s *fakeSource) addTurn(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns[id] = append(s.turns[id], model.Turn{
		DeviceID:    id,
		UserMessage: "こんにちは",
		Timestamp:   time.Now().UTC(),
	})
}

func (s *fakeSource) Device(id string) (model.DeviceInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	info, ok := s.devices[id]
	if !ok {
		return model.DeviceInfo{}, errors.New("unknown device")
	}
	return info, nil
}

func (s *fakeSource) DeviceIDs() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id := range s.devices {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *fakeSource) Turns(id string) ([]model.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Turn(nil), s.turns[id]...), nil
}

func (s *fakeSource) TurnCount(id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.turns[id]), nil
}

// fakeAnalyzer counts computations and optionally blocks until released.
type fakeAnalyzer struct {
	mu    sync.Mutex
	calls int
	block chan struct{}
}

func (a *fakeAnalyzer) Compute(info model.DeviceInfo, turns []model.Turn) model.DeviceStats {
	a.mu.Lock()
	a.calls++
	a.mu.Unlock()
	if a.block != nil {
		<-a.block
	}
	return model.DeviceStats{
		DeviceID:        info.DeviceID,
		DeviceName:      info.Name,
		SourceTurnCount: len(turns),
		ComputedAt:      time.Now().UTC(),
	}
}

func (a *fakeAnalyzer) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

func newTestCoordinator(src *fakeSource, an *fakeAnalyzer, debounce time.Duration) (*Coordinator, *statscache.Cache) {
	cache := statscache.New(nil, zerolog.Nop())
	coord := New(Config{
		Cache:    cache,
		Source:   src,
		Analyzer: an,
		Debounce: debounce,
		Logger:   zerolog.Nop(),
	})
	return coord, cache
}

// waitFor polls until cond holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestForceUpdateComputesAndCaches(t *testing.T) {
	src := newFakeSource()
	src.addDevice("dev")
	src.addTurn("dev")
	src.addTurn("dev")
	an := &fakeAnalyzer{}
	coord, cache := newTestCoordinator(src, an, time.Hour)

	stats, err := coord.ForceUpdate(context.Background(), "dev")
	if err != nil {
		t.Fatalf("ForceUpdate: %v", err)
	}
	if stats.SourceTurnCount != 2 {
		t.Errorf("SourceTurnCount = %d, want 2", stats.SourceTurnCount)
	}

	cached, ok := cache.Get("dev")
	if !ok || cached.SourceTurnCount != 2 {
		t.Errorf("cache = (%+v, %v), want stored bundle", cached, ok)
	}
}

func TestNotifyTurnAddedComputesWhenNoBundle(t *testing.T) {
	src := newFakeSource()
	src.addDevice("dev")
	src.addTurn("dev")
	an := &fakeAnalyzer{}
	coord, cache := newTestCoordinator(src, an, time.Hour)

	coord.NotifyTurnAdded("dev")

	waitFor(t, func() bool {
		_, ok := cache.Get("dev")
		return ok
	})
	if an.callCount() != 1 {
		t.Errorf("compute calls = %d, want 1", an.callCount())
	}
}

func TestNotifyTurnAddedRespectsDebounce(t *testing.T) {
	src := newFakeSource()
	src.addDevice("dev")
	src.addTurn("dev")
	an := &fakeAnalyzer{}
	coord, _ := newTestCoordinator(src, an, time.Hour)

	// Seed a fresh bundle covering the single turn.
	if _, err := coord.ForceUpdate(context.Background(), "dev"); err != nil {
		t.Fatalf("seed ForceUpdate: %v", err)
	}

	// A new turn within the debounce window must not recompute.
	src.addTurn("dev")
	coord.NotifyTurnAdded("dev")
	time.Sleep(50 * time.Millisecond)
	if an.callCount() != 1 {
		t.Errorf("compute calls = %d, want 1 (debounced)", an.callCount())
	}
}

func TestNotifyTurnAddedNoopWhenCountsMatch(t *testing.T) {
	src := newFakeSource()
	src.addDevice("dev")
	src.addTurn("dev")
	an := &fakeAnalyzer{}
	coord, _ := newTestCoordinator(src, an, 0)

	if _, err := coord.ForceUpdate(context.Background(), "dev"); err != nil {
		t.Fatalf("seed ForceUpdate: %v", err)
	}

	// No new turns: never stale, whatever the bundle age.
	coord.NotifyTurnAdded("dev")
	time.Sleep(50 * time.Millisecond)
	if an.callCount() != 1 {
		t.Errorf("compute calls = %d, want 1 (counts match)", an.callCount())
	}
}

func TestForceUpdateBypassesDebounce(t *testing.T) {
	src := newFakeSource()
	src.addDevice("dev")
	src.addTurn("dev")
	an := &fakeAnalyzer{}
	coord, _ := newTestCoordinator(src, an, time.Hour)

	if _, err := coord.ForceUpdate(context.Background(), "dev"); err != nil {
		t.Fatalf("first ForceUpdate: %v", err)
	}
	stats, err := coord.ForceUpdate(context.Background(), "dev")
	if err != nil {
		t.Fatalf("second ForceUpdate: %v", err)
	}
	if an.callCount() != 2 {
		t.Errorf("compute calls = %d, want 2", an.callCount())
	}
	if stats.SourceTurnCount != 1 {
		t.Errorf("SourceTurnCount = %d, want 1", stats.SourceTurnCount)
	}
}

func TestConcurrentForceUpdatesShareOneFlight(t *testing.T) {
	src := newFakeSource()
	src.addDevice("dev")
	src.addTurn("dev")
	an := &fakeAnalyzer{block: make(chan struct{})}
	coord, _ := newTestCoordinator(src, an, time.Hour)

	const waiters = 16
	results := make(chan error, waiters)
	for i := 0; i < waiters; i++ {
		go func() {
			_, err := coord.ForceUpdate(context.Background(), "dev")
			results <- err
		}()
	}

	// Let the waiters pile onto the single flight, then release it.
	waitFor(t, func() bool { return an.callCount() == 1 })
	time.Sleep(100 * time.Millisecond)
	close(an.block)

	for i := 0; i < waiters; i++ {
		if err := <-results; err != nil {
			t.Errorf("waiter %d: %v", i, err)
		}
	}
	if an.callCount() != 1 {
		t.Errorf("compute calls = %d, want 1 shared flight", an.callCount())
	}
}

func TestForceUpdateTimeout(t *testing.T) {
	src := newFakeSource()
	src.addDevice("dev")
	src.addTurn("dev")
	an := &fakeAnalyzer{block: make(chan struct{})}
	t.Cleanup(func() { close(an.block) })

	cache := statscache.New(nil, zerolog.Nop())
	coord := New(Config{
		Cache:          cache,
		Source:         src,
		Analyzer:       an,
		ComputeTimeout: 20 * time.Millisecond,
		Logger:         zerolog.Nop(),
	})

	_, err := coord.ForceUpdate(context.Background(), "dev")
	if !errors.Is(err, ErrComputeTimeout) {
		t.Fatalf("err = %v, want ErrComputeTimeout", err)
	}

	// The abandoned flight must release the in-flight slot.
	waitFor(t, func() bool { return !cache.Peek("dev").InFlight })
	if _, ok := cache.Get("dev"); ok {
		t.Error("timed-out flight must not install a bundle")
	}
}

func TestRunPeriodicSweep(t *testing.T) {
	src := newFakeSource()
	an := &fakeAnalyzer{}
	coord, cache := newTestCoordinator(src, an, time.Hour)

	for _, id := range []string{"a", "b", "c"} {
		src.addDevice(id)
		src.addTurn(id)
	}
	// Device c already has a fresh bundle covering its history.
	if _, err := coord.ForceUpdate(context.Background(), "c"); err != nil {
		t.Fatalf("seed c: %v", err)
	}

	if err := coord.RunPeriodicSweep(context.Background()); err != nil {
		t.Fatalf("RunPeriodicSweep: %v", err)
	}

	for _, id := range []string{"a", "b"} {
		if _, ok := cache.Get(id); !ok {
			t.Errorf("device %s not recomputed by sweep", id)
		}
	}
	// c was fresh: one seed computation plus a and b.
	if an.callCount() != 3 {
		t.Errorf("compute calls = %d, want 3", an.callCount())
	}
}

func TestRunPeriodicSweepCancelled(t *testing.T) {
	src := newFakeSource()
	src.addDevice("dev")
	src.addTurn("dev")
	an := &fakeAnalyzer{}
	coord, _ := newTestCoordinator(src, an, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := coord.RunPeriodicSweep(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
