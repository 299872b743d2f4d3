package sharedstate

import "github.com/flowcore/flowcore/pkg/flow"

const (
	defaultCacheSize = 1 << 14
	defaultMapSize   = 1 << 16
)

type mergeEntry[T any] struct {
	flow  flow.Flow
	value T
}

// MergeStore associates a commutatively-mergeable value with each Flow. It
// is intentionally not goroutine-safe: exactly one dataplane task owns a
// given MergeStore. combine plays the role of NetBricks' AddAssign::add_assign;
// Go has no operator-overload trait to constrain T by, so it is supplied
// explicitly.
type MergeStore[T any] struct {
	state     map[flow.Flow]T
	cache     []mergeEntry[T]
	cacheSize int
	combine   func(existing, incoming T) T
}

// NewMergeStore constructs a MergeStore with the given cache and map size
// hints. combine merges an incoming update into an existing stored value.
func NewMergeStore[T any](cacheSize, mapSize int, combine func(existing, incoming T) T) *MergeStore[T] {
	return &MergeStore[T]{
		state:     make(map[flow.Flow]T, mapSize),
		cache:     make([]mergeEntry[T], 0, cacheSize),
		cacheSize: cacheSize,
		combine:   combine,
	}
}

// New constructs a MergeStore with the original's default cache (16384)
// and map (65536) sizes.
func New[T any](combine func(existing, incoming T) T) *MergeStore[T] {
	return NewMergeStore[T](defaultCacheSize, defaultMapSize, combine)
}

func (s *MergeStore[T]) mergeCache() {
	for _, e := range s.cache {
		if existing, ok := s.state[e.flow]; ok {
			s.state[e.flow] = s.combine(existing, e.value)
		} else {
			s.state[e.flow] = e.value
		}
	}
	s.cache = s.cache[:0]
}

// Update records inc against f, deferring the merge into state until the
// cache fills or a read forces it.
func (s *MergeStore[T]) Update(f flow.Flow, inc T) {
	s.cache = append(s.cache, mergeEntry[T]{flow: f, value: inc})
	if len(s.cache) >= s.cacheSize {
		s.mergeCache()
	}
}

// Remove merges the cache, then deletes and returns f's stored value (the
// zero value of T if absent).
func (s *MergeStore[T]) Remove(f flow.Flow) T {
	s.mergeCache()
	v := s.state[f]
	delete(s.state, f)
	return v
}

// Len merges the cache, then returns the number of distinct flows stored.
func (s *MergeStore[T]) Len() int {
	s.mergeCache()
	return len(s.state)
}

// IsEmpty reports whether there is no stored or cached state, without
// forcing a merge.
func (s *MergeStore[T]) IsEmpty() bool {
	return len(s.state) == 0 && len(s.cache) == 0
}

// Snapshot merges the cache and returns a copy of the current per-flow
// state, the Go stand-in for the original's borrowing Iter.
func (s *MergeStore[T]) Snapshot() map[flow.Flow]T {
	s.mergeCache()
	out := make(map[flow.Flow]T, len(s.state))
	for k, v := range s.state {
		out[k] = v
	}
	return out
}
