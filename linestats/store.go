// Package linestats holds per-line execution statistics.
//
// A Store maps each observed source line to the number of times it ran and
// the raw clock ticks spent on it. Totals are aggregates across invocations,
// recursion depths, and goroutines. Keys carry no thread identity.
package linestats

import (
	"fmt"
	"sync"
)

// LineKey identifies one observable source line within one routine.
type LineKey struct {
	SourceUnit string
	Line       int
	Routine    string
}

func (k LineKey) String() string {
	return fmt.Sprintf("%s:%d (%s)", k.SourceUnit, k.Line, k.Routine)
}

// LineStat is the aggregate for one LineKey. Both fields are monotonically
// non-decreasing while profiling is active, and Hits == 0 implies
// TotalTicks == 0.
type LineStat struct {
	Hits       uint64
	TotalTicks uint64
}

// Store accumulates LineStats. It preserves the order in which keys were
// first seen so that reports are deterministic. All methods are safe for
// concurrent use.
type Store struct {
	mu       sync.Mutex
	tickUnit float64
	stats    map[LineKey]*LineStat
	order    []LineKey
}

// NewStore creates an empty Store. tickUnit is the number of seconds per
// tick and must be positive; it is fixed for the lifetime of the store.
func NewStore(tickUnit float64) *Store {
	if tickUnit <= 0 {
		panic(fmt.Sprintf("linestats: tick unit must be positive, got %g", tickUnit))
	}

	return &Store{
		tickUnit: tickUnit,
		stats:    make(map[LineKey]*LineStat),
	}
}

// TickUnit returns the number of seconds per tick.
func (s *Store) TickUnit() float64 {
	return s.tickUnit
}

// Record adds one completed interval to the line identified by key,
// incrementing its hit count by one and its tick total by ticks. The entry
// is created on first use.
func (s *Store) Record(key LineKey, ticks uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.recordLocked(key, 1, ticks)
}

func (s *Store) recordLocked(key LineKey, hits, ticks uint64) {
	stat, ok := s.stats[key]
	if !ok {
		stat = &LineStat{}
		s.stats[key] = stat
		s.order = append(s.order, key)
	}

	stat.Hits += hits
	stat.TotalTicks += ticks
}

// Get returns the stat for key and whether the key has been recorded.
func (s *Store) Get(key LineKey) (LineStat, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stat, ok := s.stats[key]
	if !ok {
		return LineStat{}, false
	}

	return *stat, true
}

// Len returns the number of distinct keys recorded.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.order)
}

// Merge adds every entry of sn into the store, summing stats for keys that
// already exist and appending unseen keys in sn's order. Merging is
// associative and commutative with respect to the resulting stats.
func (s *Store) Merge(sn *Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range sn.Keys {
		stat := sn.Stats[key]
		s.recordLocked(key, stat.Hits, stat.TotalTicks)
	}
}

// Reset removes all entries. The tick unit is kept.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats = make(map[LineKey]*LineStat)
	s.order = nil
}

// Snapshot returns an immutable copy of the current contents.
func (s *Store) Snapshot() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	sn := &Snapshot{
		TickUnit: s.tickUnit,
		Keys:     make([]LineKey, len(s.order)),
		Stats:    make(map[LineKey]LineStat, len(s.stats)),
	}

	copy(sn.Keys, s.order)
	for key, stat := range s.stats {
		sn.Stats[key] = *stat
	}

	return sn
}
