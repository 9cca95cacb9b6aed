package cache

import (
	"context"
	"strings"
	"time"

	"github.com/star/across/internal/metrics"
)

// Start runs the eviction loop every interval until ctx is cancelled.
func (c *EphemerisCache) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("cache maintenance stopped")
			return
		case <-ticker.C:
			c.EvictExpired()
		}
	}
}

// Cutover drops every entry for mission computed from elements older than
// epoch. Called when a newer element set is loaded; reads of other missions
// are unaffected.
func (c *EphemerisCache) Cutover(mission string, epoch time.Time) int {
	var removed int
	mission = strings.ToLower(mission)

	c.mu.Lock()
	for k, e := range c.entries {
		if k.Mission == mission && e.Epoch.Before(epoch) {
			delete(c.entries, k)
			removed++
		}
	}
	c.mu.Unlock()

	if removed > 0 {
		c.evictions.Add(int64(removed))
		metrics.AddCacheEvictions(removed)
		c.updateMetrics()
		c.logger.Info("element cutover",
			"mission", mission,
			"epoch", epoch.UTC().Format(time.RFC3339),
			"entries_removed", removed,
		)
	}
	return removed
}
