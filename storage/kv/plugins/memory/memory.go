// Package memory provides an in-memory kv driver. Each
// transaction reads from a copy-on-write clone of the
// committed state taken at Begin and commits through
// optimistic validation, so it models the conflict
// behavior of a distributed substrate inside one process.
package memory

import (
	"bytes"
	"context"
	"sync"

	"github.com/google/btree"
	"github.com/jrife/rangeconf/storage/kv"
	"github.com/jrife/rangeconf/storage/kv/keys"
	"github.com/jrife/rangeconf/storage/kv/occ"
)

const (
	// DriverName is the name of this plugin
	DriverName = "memory"
	degree     = 32
)

// Plugins returns the plugins provided by this package
func Plugins() []kv.Plugin {
	return []kv.Plugin{
		&Plugin{},
	}
}

var _ kv.Plugin = (*Plugin)(nil)

// Plugin implements kv.Plugin
type Plugin struct {
}

// Name implements kv.Plugin.Name
func (plugin *Plugin) Name() string {
	return DriverName
}

// NewStore implements kv.Plugin.NewStore. It takes no options.
func (plugin *Plugin) NewStore(options kv.PluginOptions) (kv.Store, error) {
	return New(), nil
}

// NewTempStore implements kv.Plugin.NewTempStore
func (plugin *Plugin) NewTempStore() (kv.Store, error) {
	return New(), nil
}

type entry struct {
	key         []byte
	value       []byte
	modRevision int64
}

func less(a, b entry) bool {
	return bytes.Compare(a.key, b.key) < 0
}

var _ kv.Store = (*Store)(nil)

// Store is an in-memory kv.Store
type Store struct {
	mu       sync.Mutex
	data     *btree.BTreeG[entry]
	revision int64
	closed   bool
}

// New creates an empty store
func New() *Store {
	return &Store{data: btree.NewG(degree, less)}
}

// Begin implements kv.Store.Begin
func (store *Store) Begin(ctx context.Context, writable bool) (kv.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	store.mu.Lock()
	defer store.mu.Unlock()

	if store.closed {
		return nil, kv.ErrClosed
	}

	snap := &snapshot{data: store.data.Clone(), revision: store.revision}

	return occ.New(snap, store, writable), nil
}

// Commit implements occ.Committer
func (store *Store) Commit(reads occ.ReadSet, writes []occ.Write) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	if store.closed {
		return kv.ErrClosed
	}

	for _, r := range reads.Ranges {
		if changedSince(store.data, r, reads.Revision) {
			return kv.ErrConflict
		}
	}

	for key, modRevision := range reads.Observed {
		current, ok := store.data.Get(entry{key: []byte(key)})

		if !ok || current.modRevision != modRevision {
			return kv.ErrConflict
		}
	}

	store.revision++

	for _, write := range writes {
		if write.Value == nil {
			store.data.Delete(entry{key: write.Key})

			continue
		}

		store.data.ReplaceOrInsert(entry{key: write.Key, value: write.Value, modRevision: store.revision})
	}

	return nil
}

// Close implements kv.Store.Close
func (store *Store) Close() error {
	store.mu.Lock()
	defer store.mu.Unlock()

	store.closed = true

	return nil
}

// Delete implements kv.Store.Delete
func (store *Store) Delete() error {
	store.mu.Lock()
	defer store.mu.Unlock()

	store.closed = true
	store.data.Clear(false)

	return nil
}

func changedSince(data *btree.BTreeG[entry], r keys.Range, revision int64) bool {
	changed := false

	ascend(data, r, func(e entry) bool {
		changed = e.modRevision > revision

		return !changed
	})

	return changed
}

func ascend(data *btree.BTreeG[entry], r keys.Range, fn func(e entry) bool) {
	if r.Empty() {
		return
	}

	switch {
	case r.Min == nil && r.Max == nil:
		data.Ascend(fn)
	case r.Min == nil:
		data.AscendLessThan(entry{key: r.Max}, fn)
	case r.Max == nil:
		data.AscendGreaterOrEqual(entry{key: r.Min}, fn)
	default:
		data.AscendRange(entry{key: r.Min}, entry{key: r.Max}, fn)
	}
}

func descend(data *btree.BTreeG[entry], r keys.Range, fn func(e entry) bool) {
	if r.Empty() {
		return
	}

	visit := func(e entry) bool {
		// DescendLessOrEqual includes Max itself
		if r.Max != nil && bytes.Equal(e.key, r.Max) {
			return true
		}

		if !r.Contains(e.key) {
			return false
		}

		return fn(e)
	}

	if r.Max == nil {
		data.Descend(visit)

		return
	}

	data.DescendLessOrEqual(entry{key: r.Max}, visit)
}

var _ occ.Snapshot = (*snapshot)(nil)

type snapshot struct {
	data     *btree.BTreeG[entry]
	revision int64
}

func (snap *snapshot) Revision() int64 {
	return snap.revision
}

func (snap *snapshot) Scan(r keys.Range, order kv.SortOrder, limit int) ([]occ.Entry, error) {
	var entries []occ.Entry

	walk := ascend

	if order == kv.SortOrderDesc {
		walk = descend
	}

	walk(snap.data, r, func(e entry) bool {
		entries = append(entries, occ.Entry{Key: e.key, Value: e.value, ModRevision: e.modRevision})

		return limit <= 0 || len(entries) < limit
	})

	return entries, nil
}
