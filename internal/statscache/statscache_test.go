package statscache

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/kumalab/kaiwastats/internal/model"
)

func bundle(deviceID string, turnCount int) model.DeviceStats {
	return model.DeviceStats{
		DeviceID:        deviceID,
		SourceTurnCount: turnCount,
		ComputedAt:      time.Now().UTC(),
	}
}

func TestGetMissing(t *testing.T) {
	c := New(nil, zerolog.Nop())
	if _, ok := c.Get("dev"); ok {
		t.Error("Get on empty cache must report no bundle")
	}
	// The miss still records the read.
	if meta := c.Peek("dev"); meta.LastRequestedAt.IsZero() {
		t.Error("Get must record lastRequestedAt even on a miss")
	}
}

func TestStoreAndGet(t *testing.T) {
	c := New(nil, zerolog.Nop())

	gen, ok := c.Begin("dev")
	if !ok {
		t.Fatal("Begin refused on idle entry")
	}
	if !c.Store(bundle("dev", 5), gen) {
		t.Fatal("Store with current generation rejected")
	}

	got, ok := c.Get("dev")
	if !ok || got.SourceTurnCount != 5 {
		t.Errorf("Get = (%+v, %v), want stored bundle", got, ok)
	}

	meta := c.Peek("dev")
	if meta.InFlight {
		t.Error("Store must clear the in-flight flag")
	}
	if !meta.HasBundle || meta.SourceTurnCount != 5 {
		t.Errorf("Peek = %+v", meta)
	}
}

func TestBeginExcludesSecondFlight(t *testing.T) {
	c := New(nil, zerolog.Nop())

	gen, ok := c.Begin("dev")
	if !ok {
		t.Fatal("first Begin refused")
	}
	if _, ok := c.Begin("dev"); ok {
		t.Error("second Begin must be refused while in flight")
	}

	c.Finish("dev", gen)
	if _, ok := c.Begin("dev"); !ok {
		t.Error("Begin after Finish must succeed")
	}
}

func TestStoreRejectsStaleGeneration(t *testing.T) {
	c := New(nil, zerolog.Nop())

	oldGen, _ := c.Begin("dev")
	// The first flight is presumed stuck; release and start a newer one.
	c.Finish("dev", oldGen)
	newGen, ok := c.Begin("dev")
	if !ok {
		t.Fatal("Begin after Finish refused")
	}

	if c.Store(bundle("dev", 1), oldGen) {
		t.Error("stale generation must be rejected")
	}
	if _, ok := c.Get("dev"); ok {
		t.Error("rejected bundle must not be visible")
	}

	if !c.Store(bundle("dev", 2), newGen) {
		t.Error("current generation must be accepted")
	}
	got, _ := c.Get("dev")
	if got.SourceTurnCount != 2 {
		t.Errorf("SourceTurnCount = %d, want 2", got.SourceTurnCount)
	}
}

func TestFinishStaleTokenIgnored(t *testing.T) {
	c := New(nil, zerolog.Nop())

	oldGen, _ := c.Begin("dev")
	c.Finish("dev", oldGen)
	newGen, _ := c.Begin("dev")

	// A late Finish from the abandoned flight must not release the
	// newer flight's slot.
	c.Finish("dev", oldGen)
	if meta := c.Peek("dev"); !meta.InFlight {
		t.Error("stale Finish released the active flight")
	}

	c.Finish("dev", newGen)
	if meta := c.Peek("dev"); meta.InFlight {
		t.Error("current Finish did not release the flight")
	}
}

func TestWarm(t *testing.T) {
	c := New(nil, zerolog.Nop())
	c.Warm([]model.DeviceStats{bundle("a", 1), bundle("b", 2)})

	if got, ok := c.Get("a"); !ok || got.SourceTurnCount != 1 {
		t.Errorf("warm bundle a = (%+v, %v)", got, ok)
	}
	if c.Len() != 2 {
		t.Errorf("Len = %d, want 2", c.Len())
	}
	if meta := c.Peek("b"); meta.Generation != 0 {
		t.Error("Warm must not bump generations")
	}
}

type recordingPersister struct {
	mu    sync.Mutex
	saved []model.DeviceStats
	err   error
}

func (p *recordingPersister) SaveStats(stats model.DeviceStats) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.saved = append(p.saved, stats)
	return p.err
}

func TestStorePersists(t *testing.T) {
	p := &recordingPersister{}
	c := New(p, zerolog.Nop())

	gen, _ := c.Begin("dev")
	c.Store(bundle("dev", 3), gen)

	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.saved) != 1 || p.saved[0].SourceTurnCount != 3 {
		t.Errorf("persisted = %+v, want one bundle", p.saved)
	}
}

func TestStoreKeepsBundleOnPersistError(t *testing.T) {
	p := &recordingPersister{err: errors.New("disk full")}
	c := New(p, zerolog.Nop())

	gen, _ := c.Begin("dev")
	if !c.Store(bundle("dev", 3), gen) {
		t.Fatal("Store must accept despite persister error")
	}
	if _, ok := c.Get("dev"); !ok {
		t.Error("bundle must survive a failed persist")
	}
}

func TestConcurrentBeginSingleWinner(t *testing.T) {
	c := New(nil, zerolog.Nop())

	const n = 64
	var wins int32
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := c.Begin("dev"); ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("winners = %d, want exactly 1", wins)
	}
}
