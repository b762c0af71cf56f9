package rangemap

import (
	"github.com/emirpasic/gods/maps/treemap"
)

// LocalSnapshot is a read-only, in-memory copy of a range map taken
// at a single point in time. It is safe for concurrent readers.
type LocalSnapshot[V any] struct {
	entries *treemap.Map
}

// NewLocalSnapshot builds a snapshot from entries. Entries need
// not be sorted. A later entry replaces an earlier one with the
// same boundary.
func NewLocalSnapshot[V any](entries []Entry[V]) *LocalSnapshot[V] {
	snapshot := &LocalSnapshot[V]{entries: treemap.NewWithStringComparator()}

	for _, entry := range entries {
		snapshot.entries.Put(string(entry.Boundary), entry.Value)
	}

	return snapshot
}

// Len returns the number of boundaries
func (snapshot *LocalSnapshot[V]) Len() int {
	return snapshot.entries.Size()
}

// Get returns the value stored exactly at boundary
func (snapshot *LocalSnapshot[V]) Get(boundary []byte) (V, bool) {
	value, ok := snapshot.entries.Get(string(boundary))

	if !ok {
		var zero V

		return zero, false
	}

	return value.(V), true
}

// RangeFor returns the entry whose range contains key
func (snapshot *LocalSnapshot[V]) RangeFor(key []byte) (Entry[V], bool) {
	boundary, value := snapshot.entries.Floor(string(key))

	if boundary == nil {
		return Entry[V]{}, false
	}

	return Entry[V]{Boundary: []byte(boundary.(string)), Value: value.(V)}, true
}

// Ranges returns the entries whose boundary lies in [begin, end)
// in ascending order. A nil end means the end of the map.
func (snapshot *LocalSnapshot[V]) Ranges(begin, end []byte) []Entry[V] {
	entries := []Entry[V]{}
	key, value := snapshot.entries.Ceiling(string(begin))

	for key != nil {
		boundary := key.(string)

		if end != nil && boundary >= string(end) {
			break
		}

		entries = append(entries, Entry[V]{Boundary: []byte(boundary), Value: value.(V)})
		key, value = snapshot.entries.Ceiling(boundary + "\x00")
	}

	return entries
}

// Entries returns every entry in ascending order
func (snapshot *LocalSnapshot[V]) Entries() []Entry[V] {
	return snapshot.Ranges(nil, nil)
}
