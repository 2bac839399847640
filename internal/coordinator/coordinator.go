// Package coordinator schedules per-device stats recomputation. It is the
// only writer to the stats cache: turn ingestion, the periodic sweep, and
// forced refreshes all funnel through one flight per device, so a device's
// history is never analyzed twice concurrently.
package coordinator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/kumalab/kaiwastats/internal/model"
	"github.com/kumalab/kaiwastats/internal/statscache"
)

// Sentinel errors for abandoned computations.
var (
	// ErrComputeTimeout reports a computation that exceeded the timeout.
	// The flight is abandoned; the cached bundle stays as it was.
	ErrComputeTimeout = errors.New("stats computation timed out")

	// ErrSuperseded reports a computed bundle rejected by the cache's
	// generation gate because a newer flight claimed the entry.
	ErrSuperseded = errors.New("stats computation superseded")
)

// Defaults applied by New for unset Config fields.
const (
	DefaultDebounce         = 30 * time.Minute
	DefaultComputeTimeout   = 30 * time.Second
	DefaultSweepConcurrency = 4
)

// TurnSource supplies device records and turn histories to analyze.
type TurnSource interface {
	Device(deviceID string) (model.DeviceInfo, error)
	DeviceIDs() ([]string, error)
	Turns(deviceID string) ([]model.Turn, error)
	TurnCount(deviceID string) (int, error)
}

// Computer derives a stats bundle from a device's turn history.
type Computer interface {
	Compute(info model.DeviceInfo, turns []model.Turn) model.DeviceStats
}

// Config wires a Coordinator.
type Config struct {
	Cache    *statscache.Cache
	Source   TurnSource
	Analyzer Computer

	// Debounce is the minimum interval between recomputations of one
	// device. A device whose bundle is younger than this is not stale
	// regardless of new turns.
	Debounce time.Duration

	// ComputeTimeout bounds one computation, load included.
	ComputeTimeout time.Duration

	// SweepConcurrency bounds parallel computations in RunPeriodicSweep.
	SweepConcurrency int

	// OnStatsUpdated, when set, observes every accepted bundle.
	OnStatsUpdated func(model.DeviceStats)

	Logger zerolog.Logger
}

// flight is one in-progress computation. Waiters block on done; stats and
// err are valid after done closes.
type flight struct {
	done  chan struct{}
	stats model.DeviceStats
	err   error
}

// Coordinator serializes stats updates per device.
type Coordinator struct {
	cfg Config

	mu      sync.Mutex
	flights map[string]*flight
}

// New returns a Coordinator, filling unset Config fields with defaults.
func New(cfg Config) *Coordinator {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.ComputeTimeout <= 0 {
		cfg.ComputeTimeout = DefaultComputeTimeout
	}
	if cfg.SweepConcurrency <= 0 {
		cfg.SweepConcurrency = DefaultSweepConcurrency
	}
	return &Coordinator{
		cfg:     cfg,
		flights: make(map[string]*flight),
	}
}

// NotifyTurnAdded signals that a turn was appended for the device. The
// caller never blocks: staleness is checked and the recomputation runs, if
// warranted, in the background.
func (c *Coordinator) NotifyTurnAdded(deviceID string) {
	go func() {
		stale, err := c.stale(deviceID)
		if err != nil {
			c.cfg.Logger.Warn().Str("device_id", deviceID).Err(err).
				Msg("staleness check failed")
			return
		}
		if !stale {
			return
		}
		if _, err := c.update(context.Background(), deviceID); err != nil &&
			!errors.Is(err, ErrSuperseded) {
			c.cfg.Logger.Warn().Str("device_id", deviceID).Err(err).
				Msg("background stats update failed")
		}
	}()
}

// ForceUpdate recomputes the device's stats regardless of staleness and
// returns the fresh bundle. When a flight is already running it attaches
// to that flight instead of starting another. ctx bounds only the wait;
// an abandoned wait leaves the flight running.
func (c *Coordinator) ForceUpdate(ctx context.Context, deviceID string) (model.DeviceStats, error) {
	return c.update(ctx, deviceID)
}

// RunPeriodicSweep recomputes every stale device, at most SweepConcurrency
// at a time. Per-device failures are logged, not propagated, so one bad
// device cannot starve the rest of the sweep.
func (c *Coordinator) RunPeriodicSweep(ctx context.Context) error {
	ids, err := c.cfg.Source.DeviceIDs()
	if err != nil {
		return err
	}

	start := time.Now()
	var swept int
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.SweepConcurrency)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			stale, err := c.stale(id)
			if err != nil {
				c.cfg.Logger.Warn().Str("device_id", id).Err(err).
					Msg("sweep staleness check failed")
				return nil
			}
			if !stale {
				return nil
			}
			if _, err := c.update(ctx, id); err != nil && !errors.Is(err, ErrSuperseded) {
				c.cfg.Logger.Warn().Str("device_id", id).Err(err).
					Msg("sweep update failed")
				return nil
			}
			mu.Lock()
			swept++
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	c.cfg.Logger.Info().
		Int("devices", len(ids)).
		Int("recomputed", swept).
		Dur("elapsed", time.Since(start)).
		Msg("periodic sweep finished")
	return nil
}

// stale reports whether the device's bundle lags its turn history. A
// bundle is stale only when the retained turn count differs from the count
// it was computed from AND the debounce window has passed (or no bundle
// exists at all).
func (c *Coordinator) stale(deviceID string) (bool, error) {
	count, err := c.cfg.Source.TurnCount(deviceID)
	if err != nil {
		return false, err
	}

	meta := c.cfg.Cache.Peek(deviceID)
	if count == meta.SourceTurnCount && meta.HasBundle {
		return false, nil
	}
	if !meta.HasBundle {
		return true, nil
	}
	return time.Since(meta.LastComputedAt) > c.cfg.Debounce, nil
}

// update joins the device's running flight or starts a new one, then waits
// for the result.
func (c *Coordinator) update(ctx context.Context, deviceID string) (model.DeviceStats, error) {
	c.mu.Lock()
	if f, ok := c.flights[deviceID]; ok {
		c.mu.Unlock()
		return c.waitFlight(ctx, f)
	}

	gen, ok := c.cfg.Cache.Begin(deviceID)
	if !ok {
		// The cache entry is claimed but we hold no flight for it. The
		// only writer is this coordinator, so this is a bug.
		c.mu.Unlock()
		c.cfg.Logger.Error().Str("device_id", deviceID).
			Msg("cache entry in flight without a coordinator flight")
		return model.DeviceStats{}, ErrSuperseded
	}

	f := &flight{done: make(chan struct{})}
	c.flights[deviceID] = f
	c.mu.Unlock()

	go c.run(deviceID, gen, f)
	return c.waitFlight(ctx, f)
}

func (c *Coordinator) waitFlight(ctx context.Context, f *flight) (model.DeviceStats, error) {
	select {
	case <-f.done:
		return f.stats, f.err
	case <-ctx.Done():
		return model.DeviceStats{}, ctx.Err()
	}
}

// run executes one flight: load the history, compute, and offer the
// result to the generation gate. On timeout the flight is abandoned and
// the slot released; the late result, if any, is discarded.
func (c *Coordinator) run(deviceID string, gen uint64, f *flight) {
	defer func() {
		close(f.done)
		c.mu.Lock()
		delete(c.flights, deviceID)
		c.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.ComputeTimeout)
	defer cancel()

	type result struct {
		stats model.DeviceStats
		err   error
	}
	resCh := make(chan result, 1)
	go func() {
		info, err := c.cfg.Source.Device(deviceID)
		if err != nil {
			resCh <- result{err: err}
			return
		}
		turns, err := c.cfg.Source.Turns(deviceID)
		if err != nil {
			resCh <- result{err: err}
			return
		}
		resCh <- result{stats: c.cfg.Analyzer.Compute(info, turns)}
	}()

	start := time.Now()
	select {
	case res := <-resCh:
		if res.err != nil {
			c.cfg.Cache.Finish(deviceID, gen)
			f.err = res.err
			return
		}
		if !c.cfg.Cache.Store(res.stats, gen) {
			f.err = ErrSuperseded
			return
		}
		f.stats = res.stats
		c.cfg.Logger.Debug().
			Str("device_id", deviceID).
			Int("turns", res.stats.SourceTurnCount).
			Dur("elapsed", time.Since(start)).
			Msg("stats recomputed")
		if c.cfg.OnStatsUpdated != nil {
			c.cfg.OnStatsUpdated(res.stats)
		}
	case <-ctx.Done():
		c.cfg.Cache.Finish(deviceID, gen)
		f.err = ErrComputeTimeout
	}
}
