package rangemap

import (
	"bytes"

	"github.com/jrife/rangeconf/storage/kv"
	"github.com/jrife/rangeconf/storage/kv/keys"
)

// Mergeable is implemented by range map values that know how to
// combine with a partial update, how to be copied to a new boundary
// and whether two adjacent ranges may be collapsed.
//
// The zero value of V must be the value in effect before the first
// boundary.
type Mergeable[V any] interface {
	// Update returns the receiver with every field set in
	// delta overridden
	Update(delta V) V
	// Split returns the value a new boundary inherits from the
	// range it splits
	Split() V
	// CanMerge reports whether next can be absorbed by the range
	// before it
	CanMerge(next V) bool
}

// SplitAt installs a boundary at b that carries the value in effect
// at b. It does nothing and returns false if b is already a
// boundary or if no boundary precedes b.
func SplitAt[V Mergeable[V]](txn kv.Transaction, m *RangeMap[V], b []byte) (bool, error) {
	entry, ok, err := m.RangeFor(txn, b)

	if err != nil || !ok || bytes.Equal(entry.Boundary, b) {
		return false, err
	}

	if err := m.Set(txn, b, entry.Value.Split()); err != nil {
		return false, err
	}

	return true, nil
}

// MergeAt erases the boundary at b if the range before it can absorb
// it. The range before the first boundary has the zero value of V.
// It returns true if the boundary was erased.
func MergeAt[V Mergeable[V]](txn kv.Transaction, m *RangeMap[V], b []byte) (bool, error) {
	value, ok, err := m.Get(txn, b)

	if err != nil || !ok {
		return false, err
	}

	prev, err := valueBefore(txn, m, b)

	if err != nil {
		return false, err
	}

	if !prev.CanMerge(value) {
		return false, nil
	}

	if err := m.ClearRange(txn, b, keys.Next(b)); err != nil {
		return false, err
	}

	return true, nil
}

// UpdateRange applies delta to every range that intersects
// [begin, end). Boundaries carrying the split value in effect are
// installed at begin and end first, so ranges outside of
// [begin, end) keep their values. A nil end means the end of the
// map. Redundant boundaries in [begin, end] are coalesced afterwards.
func UpdateRange[V Mergeable[V]](txn kv.Transaction, m *RangeMap[V], begin, end []byte, delta V) error {
	if begin == nil {
		begin = []byte{}
	}

	if end != nil {
		if bytes.Compare(begin, end) >= 0 {
			return nil
		}

		if err := installBoundary(txn, m, end); err != nil {
			return err
		}
	}

	entries, err := m.GetRange(txn, begin, end)

	if err != nil {
		return err
	}

	if len(entries) == 0 || !bytes.Equal(entries[0].Boundary, begin) {
		base, err := valueBefore(txn, m, begin)

		if err != nil {
			return err
		}

		if err := m.Set(txn, begin, base.Split().Update(delta)); err != nil {
			return err
		}
	}

	for _, entry := range entries {
		if err := m.Set(txn, entry.Boundary, entry.Value.Update(delta)); err != nil {
			return err
		}
	}

	_, err = Coalesce(txn, m, begin, end)

	return err
}

// Coalesce erases every boundary in [begin, end] that can be merged
// into the range before it and returns how many were erased. A nil
// end means the end of the map.
func Coalesce[V Mergeable[V]](txn kv.Transaction, m *RangeMap[V], begin, end []byte) (int, error) {
	var upper []byte

	if end != nil {
		upper = keys.Next(end)
	}

	entries, err := m.GetRange(txn, begin, upper)

	if err != nil {
		return 0, err
	}

	if len(entries) == 0 {
		return 0, nil
	}

	prev, err := valueBefore(txn, m, entries[0].Boundary)

	if err != nil {
		return 0, err
	}

	removed := 0

	for _, entry := range entries {
		if !prev.CanMerge(entry.Value) {
			prev = entry.Value

			continue
		}

		if err := m.ClearRange(txn, entry.Boundary, keys.Next(entry.Boundary)); err != nil {
			return removed, err
		}

		removed++
	}

	return removed, nil
}

// installBoundary makes b a boundary without changing the value in
// effect anywhere
func installBoundary[V Mergeable[V]](txn kv.Transaction, m *RangeMap[V], b []byte) error {
	entry, ok, err := m.RangeFor(txn, b)

	if err != nil {
		return err
	}

	if ok && bytes.Equal(entry.Boundary, b) {
		return nil
	}

	return m.Set(txn, b, entry.Value.Split())
}

// valueBefore returns the value in effect just before b
func valueBefore[V Mergeable[V]](txn kv.Transaction, m *RangeMap[V], b []byte) (V, error) {
	entry, _, err := m.before(txn, b)

	return entry.Value, err
}
