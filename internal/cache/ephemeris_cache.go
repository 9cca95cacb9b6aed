// Package cache holds computed ephemerides keyed by mission, day-aligned
// range and step, so repeated queries over the same days share one
// propagation.
//
// Entries expire after a TTL and are dropped when the mission's orbital
// elements change. Concurrent misses for the same key are collapsed into a
// single computation.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"golang.org/x/sync/singleflight"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/star/across/internal/ephem"
	"github.com/star/across/internal/metrics"
)

// Config holds cache configuration.
type Config struct {
	TTL        time.Duration // Entry lifetime (default: 24h)
	MaxEntries int           // Oldest entries are evicted beyond this (default: 64)
}

// Key identifies one cached ephemeris.
type Key struct {
	Mission string
	Begin   time.Time
	End     time.Time
	Step    time.Duration
}

// NewKey widens [begin, end] to whole UTC days and builds the key.
func NewKey(mission string, begin, end time.Time, step time.Duration) Key {
	b, e := ephem.DayRange(begin, end)
	return Key{Mission: strings.ToLower(mission), Begin: b, End: e, Step: step}
}

// Grid returns the time grid the key covers.
func (k Key) Grid() (ephem.TimeGrid, error) {
	return ephem.NewTimeGrid(k.Begin, k.End, k.Step)
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s/%s", k.Mission, k.Begin.Format(time.RFC3339), k.End.Format(time.RFC3339), k.Step)
}

// Entry wraps an ephemeris with generation metadata.
type Entry struct {
	Ephemeris   *ephem.Ephemeris
	Epoch       time.Time // epoch of the elements it was computed from
	GeneratedAt time.Time
}

// ComputeFunc produces the ephemeris for a missing key.
type ComputeFunc func(ctx context.Context) (*ephem.Ephemeris, error)

// EphemerisCache is an in-memory ephemeris cache with expiry.
// Safe for concurrent use by multiple goroutines.
type EphemerisCache struct {
	mu      sync.RWMutex
	entries map[Key]*Entry

	group  singleflight.Group
	config Config
	logger *slog.Logger
	now    func() time.Time

	// Counters (lock-free).
	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// NewEphemerisCache creates a cache.
func NewEphemerisCache(config Config, logger *slog.Logger) *EphemerisCache {
	if config.TTL <= 0 {
		config.TTL = 24 * time.Hour
	}
	if config.MaxEntries <= 0 {
		config.MaxEntries = 64
	}
	logger.Info("ephemeris cache initialized",
		"ttl_seconds", config.TTL.Seconds(),
		"max_entries", config.MaxEntries,
	)
	return &EphemerisCache{
		entries: make(map[Key]*Entry),
		config:  config,
		logger:  logger,
		now:     time.Now,
	}
}

func (c *EphemerisCache) expired(e *Entry) bool {
	return c.now().Sub(e.GeneratedAt) >= c.config.TTL
}

// Get returns the cached ephemeris for key if it is unexpired and was
// computed from elements with the given epoch. A zero epoch matches any.
func (c *EphemerisCache) Get(key Key, epoch time.Time) (*ephem.Ephemeris, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if ok && (c.expired(entry) || !sameEpoch(entry, epoch)) {
		c.remove(key, entry)
		ok = false
	}
	if ok {
		c.hits.Add(1)
		metrics.IncCacheHits()
		return entry.Ephemeris, true
	}

	c.misses.Add(1)
	metrics.IncCacheMisses()
	return nil, false
}

func sameEpoch(e *Entry, epoch time.Time) bool {
	return epoch.IsZero() || e.Epoch.Equal(epoch)
}

// GetOrCompute returns the cached ephemeris or runs compute once for all
// concurrent callers of the same key. The computation is detached from the
// caller that started it: a cancelled caller returns ctx.Err() while the
// others still receive the result.
func (c *EphemerisCache) GetOrCompute(ctx context.Context, key Key, epoch time.Time, compute ComputeFunc) (*ephem.Ephemeris, error) {
	if eph, ok := c.Get(key, epoch); ok {
		return eph, nil
	}

	ch := c.group.DoChan(key.String()+"@"+epoch.Format(time.RFC3339Nano), func() (any, error) {
		start := time.Now()
		eph, err := compute(context.WithoutCancel(ctx))
		if err != nil {
			metrics.IncCacheComputeErrors()
			return nil, err
		}
		c.Put(key, epoch, eph)
		c.logger.Debug("ephemeris cached",
			"key", key.String(),
			"points", eph.Len(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return eph, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			c.logger.Debug("ephemeris computation shared", "key", key.String())
		}
		return res.Val.(*ephem.Ephemeris), nil
	}
}

// Put stores eph under key, evicting the oldest entries beyond MaxEntries.
func (c *EphemerisCache) Put(key Key, epoch time.Time, eph *ephem.Ephemeris) {
	entry := &Entry{Ephemeris: eph, Epoch: epoch, GeneratedAt: c.now()}

	c.mu.Lock()
	c.entries[key] = entry
	removed := 0
	for len(c.entries) > c.config.MaxEntries {
		var oldestKey Key
		var oldest *Entry
		for k, e := range c.entries {
			if oldest == nil || e.GeneratedAt.Before(oldest.GeneratedAt) {
				oldestKey, oldest = k, e
			}
		}
		delete(c.entries, oldestKey)
		removed++
	}
	c.mu.Unlock()

	if removed > 0 {
		c.evictions.Add(int64(removed))
		metrics.AddCacheEvictions(removed)
	}
	c.updateMetrics()
}

// remove deletes key if it still maps to entry.
func (c *EphemerisCache) remove(key Key, entry *Entry) {
	c.mu.Lock()
	cur, ok := c.entries[key]
	if ok && cur == entry {
		delete(c.entries, key)
	}
	c.mu.Unlock()

	if ok && cur == entry {
		c.evictions.Add(1)
		metrics.AddCacheEvictions(1)
		c.updateMetrics()
	}
}

// EvictExpired removes entries older than the TTL.
func (c *EphemerisCache) EvictExpired() int {
	var removed int

	c.mu.Lock()
	for k, e := range c.entries {
		if c.expired(e) {
			delete(c.entries, k)
			removed++
		}
	}
	c.mu.Unlock()

	if removed > 0 {
		c.evictions.Add(int64(removed))
		metrics.AddCacheEvictions(removed)
		c.updateMetrics()
		c.logger.Debug("cache eviction", "entries_removed", removed)
	}
	return removed
}

// Stats returns current cache statistics.
func (c *EphemerisCache) Stats() Stats {
	c.mu.RLock()
	count := len(c.entries)
	var oldest, newest time.Time
	for _, e := range c.entries {
		if oldest.IsZero() || e.GeneratedAt.Before(oldest) {
			oldest = e.GeneratedAt
		}
		if newest.IsZero() || e.GeneratedAt.After(newest) {
			newest = e.GeneratedAt
		}
	}
	c.mu.RUnlock()

	return Stats{
		Entries:   count,
		SizeBytes: c.estimateSizeBytes(),
		Oldest:    oldest,
		Newest:    newest,
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}

// Stats holds cache statistics.
type Stats struct {
	Entries   int
	SizeBytes int64
	Oldest    time.Time
	Newest    time.Time
	Hits      int64
	Misses    int64
	Evictions int64
}

// estimateSizeBytes returns a rough estimate of the cache memory footprint.
func (c *EphemerisCache) estimateSizeBytes() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	vec := int64(unsafe.Sizeof(r3.Vec{}))
	ts := int64(unsafe.Sizeof(time.Time{}))
	var total int64
	for _, entry := range c.entries {
		e := entry.Ephemeris
		if e == nil {
			continue
		}
		// Timestamps, position, 3 directions, lat/lon/alt/earth size.
		perInstant := ts + 4*vec + 4*8
		if e.HasVelocity() {
			perInstant += 2 * vec
		}
		total += int64(e.Len())*perInstant + 256
	}
	return total
}

// updateMetrics publishes current cache size to Prometheus.
func (c *EphemerisCache) updateMetrics() {
	c.mu.RLock()
	count := len(c.entries)
	c.mu.RUnlock()

	metrics.SetCacheEntries(count)
	metrics.SetCacheSizeBytes(c.estimateSizeBytes())
}
