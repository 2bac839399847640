// Package statscache holds the in-memory per-device stats bundles behind
// the read path. Reads never block on recomputation; writers go through a
// generation gate so a stale computation can never overwrite a newer one.
package statscache

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kumalab/kaiwastats/internal/model"
)

// Persister receives accepted bundles for durable storage. Persistence is
// best-effort; a failed write never rolls back the in-memory bundle.
type Persister interface {
	SaveStats(model.DeviceStats) error
}

// Meta is the bookkeeping view of one cache entry, used by the update
// coordinator to decide staleness without copying the bundle.
type Meta struct {
	HasBundle       bool
	LastComputedAt  time.Time
	SourceTurnCount int
	LastRequestedAt time.Time
	InFlight        bool
	Generation      uint64
}

type entry struct {
	bundle          *model.DeviceStats
	lastRequestedAt time.Time
	inFlight        bool
	generation      uint64
}

// Cache is the concurrency-safe stats cache. The zero value is not usable;
// construct with New.
type Cache struct {
	mu        sync.Mutex
	entries   map[string]*entry
	persister Persister
	log       zerolog.Logger
}

// New returns an empty cache. persister may be nil for a purely in-memory
// cache.
func New(persister Persister, logger zerolog.Logger) *Cache {
	return &Cache{
		entries:   make(map[string]*entry),
		persister: persister,
		log:       logger,
	}
}

// Warm preloads persisted bundles, typically at startup. Warming never
// marks entries in-flight and never bumps generations.
func (c *Cache) Warm(records []model.DeviceStats) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, stats := range records {
		stats := stats
		c.entries[stats.DeviceID] = &entry{bundle: &stats}
	}
}

// Get returns the current bundle for a device and records the read for
// staleness bookkeeping. The boolean is false when no bundle exists yet.
func (c *Cache) Get(deviceID string) (model.DeviceStats, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[deviceID]
	if !ok {
		e = &entry{}
		c.entries[deviceID] = e
	}
	e.lastRequestedAt = time.Now().UTC()
	if e.bundle == nil {
		return model.DeviceStats{}, false
	}
	return *e.bundle, true
}

// Peek returns entry bookkeeping without counting as a read.
func (c *Cache) Peek(deviceID string) Meta {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[deviceID]
	if !ok {
		return Meta{}
	}
	meta := Meta{
		LastRequestedAt: e.lastRequestedAt,
		InFlight:        e.inFlight,
		Generation:      e.generation,
	}
	if e.bundle != nil {
		meta.HasBundle = true
		meta.LastComputedAt = e.bundle.ComputedAt
		meta.SourceTurnCount = e.bundle.SourceTurnCount
	}
	return meta
}

// Begin claims the in-flight slot for a device and returns the generation
// token a subsequent Store must present. A second Begin while a flight is
// already active returns false.
func (c *Cache) Begin(deviceID string) (uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[deviceID]
	if !ok {
		e = &entry{}
		c.entries[deviceID] = e
	}
	if e.inFlight {
		return 0, false
	}
	e.inFlight = true
	e.generation++
	return e.generation, true
}

// Finish releases the in-flight slot without storing a bundle, used when a
// computation fails or times out. A stale token is ignored.
func (c *Cache) Finish(deviceID string, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[deviceID]
	if !ok || e.generation != gen {
		return
	}
	e.inFlight = false
}

// Store installs a freshly computed bundle if the generation token is
// still current, releasing the in-flight slot. A stale token (a newer
// flight has begun since) is rejected and the bundle dropped. Accepted
// bundles are forwarded to the persister.
func (c *Cache) Store(stats model.DeviceStats, gen uint64) bool {
	c.mu.Lock()
	e, ok := c.entries[stats.DeviceID]
	if !ok || e.generation != gen {
		c.mu.Unlock()
		c.log.Debug().
			Str("device_id", stats.DeviceID).
			Uint64("generation", gen).
			Msg("rejecting stale stats bundle")
		return false
	}
	e.bundle = &stats
	e.inFlight = false
	c.mu.Unlock()

	if c.persister != nil {
		if err := c.persister.SaveStats(stats); err != nil {
			c.log.Warn().
				Str("device_id", stats.DeviceID).
				Err(err).
				Msg("persisting stats bundle failed")
		}
	}
	return true
}

// Devices returns the IDs of all entries currently holding a bundle.
func (c *Cache) Devices() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := make([]string, 0, len(c.entries))
	for id, e := range c.entries {
		if e.bundle != nil {
			ids = append(ids, id)
		}
	}
	return ids
}

// Len returns the number of cached bundles.
func (c *Cache) Len() int {
	return len(c.Devices())
}
