package tle

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// snapshot is an immutable view of the store. Writers copy, modify and swap.
type snapshot struct {
	byID      map[int][]Elements // sorted by epoch, unique epochs
	updatedAt time.Time
	count     int
}

// Store holds element sets for any number of satellites, indexed by NORAD
// catalog number. Reads are lock-free; writes are serialized.
type Store struct {
	data atomic.Pointer[snapshot]
	mu   sync.Mutex
}

// NewStore creates a new empty Store.
func NewStore() *Store {
	s := &Store{}
	s.data.Store(&snapshot{byID: map[int][]Elements{}})
	return s
}

// Add inserts element sets, ignoring duplicates (same satellite and epoch).
// Returns the number of new entries.
func (s *Store) Add(entries ...Elements) int {
	if len(entries) == 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.data.Load()
	byID := make(map[int][]Elements, len(old.byID))
	for id, list := range old.byID {
		byID[id] = list
	}

	added := 0
	touched := map[int]bool{}
	for _, e := range entries {
		list := byID[e.NORADID]
		if !touched[e.NORADID] {
			list = append([]Elements(nil), list...)
			byID[e.NORADID] = list
			touched[e.NORADID] = true
		}
		i := sort.Search(len(list), func(i int) bool { return !list[i].Epoch.Before(e.Epoch) })
		if i < len(list) && list[i].Epoch.Equal(e.Epoch) {
			continue
		}
		list = append(list, Elements{})
		copy(list[i+1:], list[i:])
		list[i] = e
		byID[e.NORADID] = list
		added++
	}

	s.data.Store(&snapshot{byID: byID, updatedAt: time.Now(), count: old.count + added})
	return added
}

// Closest returns the element set for noradID whose epoch is nearest to at,
// considering only epochs within window of at and not before minEpoch.
// A non-positive window accepts any epoch.
func (s *Store) Closest(noradID int, at time.Time, window time.Duration, minEpoch time.Time) (Elements, bool) {
	list := s.data.Load().byID[noradID]

	var best Elements
	var bestAge time.Duration
	found := false
	for _, e := range list {
		if e.Epoch.Before(minEpoch) {
			continue
		}
		age := e.Age(at)
		if window > 0 && age > window {
			continue
		}
		if !found || age < bestAge {
			best, bestAge, found = e, age, true
		}
	}
	return best, found
}

// Latest returns the most recent element set for noradID.
func (s *Store) Latest(noradID int) (Elements, bool) {
	list := s.data.Load().byID[noradID]
	if len(list) == 0 {
		return Elements{}, false
	}
	return list[len(list)-1], true
}

// Len returns the total number of element sets held.
func (s *Store) Len() int {
	return s.data.Load().count
}

// AgeSeconds returns seconds since the last successful Add.
// Returns -1 if nothing has been loaded.
func (s *Store) AgeSeconds() float64 {
	snap := s.data.Load()
	if snap.updatedAt.IsZero() {
		return -1
	}
	return time.Since(snap.updatedAt).Seconds()
}
