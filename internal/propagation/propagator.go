package propagation

import (
	"sync"
	"sync/atomic"

	"github.com/star/across/internal/tle"
)

// propKey identifies an element set; two sets with the same lines yield the
// same SGP4 record.
type propKey struct {
	line1, line2 string
}

// Cache holds initialized SGP4 propagators so repeated queries with the same
// elements skip SGP4 initialization. The map is copy-on-write: reads are
// lock-free and rebuilds are serialized.
type Cache struct {
	props atomic.Pointer[map[propKey]*SGP4Propagator]
	mu    sync.Mutex
	limit int
}

// NewCache creates a propagator cache holding at most limit entries; when
// full, it is cleared before inserting.
func NewCache(limit int) *Cache {
	if limit <= 0 {
		limit = 64
	}
	c := &Cache{limit: limit}
	m := map[propKey]*SGP4Propagator{}
	c.props.Store(&m)
	return c
}

// Get returns a propagator for e, creating it on first use (double-checked
// locking).
func (c *Cache) Get(e tle.Elements) (*SGP4Propagator, error) {
	key := propKey{e.Line1, e.Line2}
	if p, ok := (*c.props.Load())[key]; ok {
		return p, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	old := *c.props.Load()
	if p, ok := old[key]; ok {
		return p, nil
	}

	p, err := NewSGP4Propagator(e)
	if err != nil {
		return nil, err
	}

	next := make(map[propKey]*SGP4Propagator, len(old)+1)
	if len(old) < c.limit {
		for k, v := range old {
			next[k] = v
		}
	}
	next[key] = p
	c.props.Store(&next)
	return p, nil
}

// Len returns the number of cached propagators.
func (c *Cache) Len() int {
	return len(*c.props.Load())
}
