// Package occ implements kv.Transaction on top of a
// revisioned snapshot using optimistic concurrency control.
// Writes are buffered locally and handed to the driver on
// Commit together with a record of everything the transaction
// read. The driver applies the writes only if none of that
// changed since the snapshot revision.
package occ

import (
	"bytes"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/emirpasic/gods/utils"
	"github.com/jrife/rangeconf/storage/kv"
	"github.com/jrife/rangeconf/storage/kv/keys"
)

// Entry is a committed key-value pair along with the
// revision at which it was last modified.
type Entry struct {
	Key         []byte
	Value       []byte
	ModRevision int64
}

// Snapshot is a consistent view of a store at one revision.
type Snapshot interface {
	// Revision returns the revision this snapshot reads at. It
	// may be fixed lazily by the first call to Scan.
	Revision() int64
	// Scan returns the entries in the range in the given order,
	// stopping after limit entries. A limit <= 0 means no limit.
	Scan(r keys.Range, order kv.SortOrder, limit int) ([]Entry, error)
}

// ReadSet describes everything a transaction observed.
type ReadSet struct {
	// Revision is the snapshot revision of the reads.
	Revision int64
	// Ranges lists every range that was read. A commit must
	// fail if a key in one of these ranges was created or
	// modified after Revision.
	Ranges []keys.Range
	// Observed maps each key that was read to its ModRevision.
	// A commit must fail if any of these keys no longer exists
	// or was modified.
	Observed map[string]int64
}

// Write is a buffered write. A nil Value deletes Key.
type Write struct {
	Key   []byte
	Value []byte
}

// Committer applies a transaction's writes atomically,
// returning kv.ErrConflict if the read set was invalidated.
type Committer interface {
	Commit(reads ReadSet, writes []Write) error
}

var _ kv.Transaction = (*transaction)(nil)

// New creates a transaction reading from snapshot whose
// writes are applied by committer.
func New(snapshot Snapshot, committer Committer, writable bool) kv.Transaction {
	return &transaction{
		snapshot:  snapshot,
		committer: committer,
		writable:  writable,
		buffer:    treemap.NewWith(utils.StringComparator),
		observed:  map[string]int64{},
	}
}

type bufferedWrite struct {
	value   []byte
	deleted bool
}

type transaction struct {
	snapshot  Snapshot
	committer Committer
	writable  bool
	done      bool
	buffer    *treemap.Map
	ranges    []keys.Range
	observed  map[string]int64
}

func (txn *transaction) scan(r keys.Range, order kv.SortOrder, limit int) ([]Entry, error) {
	entries, err := txn.snapshot.Scan(r, order, limit)

	if err != nil {
		return nil, err
	}

	txn.ranges = append(txn.ranges, scanned(r, order, limit, entries))

	for _, entry := range entries {
		txn.observed[string(entry.Key)] = entry.ModRevision
	}

	return entries, nil
}

// scanned returns the part of r a scan actually covered. A scan
// cut short by its limit covered r only up to its last entry.
func scanned(r keys.Range, order kv.SortOrder, limit int, entries []Entry) keys.Range {
	if limit <= 0 || len(entries) < limit {
		return r
	}

	last := entries[len(entries)-1].Key

	if order == kv.SortOrderDesc {
		r.Min = last
	} else {
		r.Max = keys.Next(last)
	}

	return r
}

func (txn *transaction) checkWritable() error {
	if txn.done {
		return kv.ErrTxnDone
	}

	if !txn.writable {
		return kv.ErrReadOnly
	}

	return nil
}

func (txn *transaction) checkWrite(key []byte) error {
	if err := txn.checkWritable(); err != nil {
		return err
	}

	if len(key) == 0 {
		return kv.ErrEmptyKey
	}

	return nil
}

// Get implements kv.Transaction.Get
func (txn *transaction) Get(key []byte) ([]byte, error) {
	if txn.done {
		return nil, kv.ErrTxnDone
	}

	if len(key) == 0 {
		return nil, kv.ErrEmptyKey
	}

	if w, ok := txn.buffer.Get(string(key)); ok {
		if w.(bufferedWrite).deleted {
			return nil, nil
		}

		return w.(bufferedWrite).value, nil
	}

	entries, err := txn.scan(keys.All().Eq(key), kv.SortOrderAsc, 0)

	if err != nil {
		return nil, err
	}

	if len(entries) == 0 {
		return nil, nil
	}

	return entries[0].Value, nil
}

// Keys implements kv.Transaction.Keys
func (txn *transaction) Keys(r keys.Range, order kv.SortOrder) (kv.Iterator, error) {
	if txn.done {
		return nil, kv.ErrTxnDone
	}

	if order != kv.SortOrderDesc {
		order = kv.SortOrderAsc
	}

	entries, err := txn.scan(r, order, 0)

	if err != nil {
		return nil, err
	}

	buffered := txn.buffered(r, order)
	merged := make([]kv.KV, 0, len(entries)+len(buffered))

	for len(entries) > 0 || len(buffered) > 0 {
		var c int

		switch {
		case len(entries) == 0:
			c = 1
		case len(buffered) == 0:
			c = -1
		default:
			c = bytes.Compare(entries[0].Key, buffered[0].key)

			if order == kv.SortOrderDesc {
				c = -c
			}
		}

		if c < 0 {
			merged = append(merged, kv.KV{entries[0].Key, entries[0].Value})
			entries = entries[1:]

			continue
		}

		// buffered writes shadow whatever the snapshot holds
		if c == 0 {
			entries = entries[1:]
		}

		if !buffered[0].deleted {
			merged = append(merged, kv.KV{buffered[0].key, buffered[0].value})
		}

		buffered = buffered[1:]
	}

	return kv.NewSliceIterator(merged), nil
}

// Last implements kv.Transaction.Last. It reads the snapshot one
// key at a time from the top of the range so that only the keys it
// passes over join the read set.
func (txn *transaction) Last(r keys.Range) (kv.KV, bool, error) {
	if txn.done {
		return kv.KV{}, false, kv.ErrTxnDone
	}

	buffered := txn.buffered(r, kv.SortOrderDesc)

	for {
		entries, err := txn.scan(r, kv.SortOrderDesc, 1)

		if err != nil {
			return kv.KV{}, false, err
		}

		shadowed := false

		for len(buffered) > 0 && (len(entries) == 0 || bytes.Compare(buffered[0].key, entries[0].Key) >= 0) {
			b := buffered[0]
			buffered = buffered[1:]

			if !b.deleted {
				return kv.KV{b.key, b.value}, true, nil
			}

			if len(entries) > 0 && bytes.Equal(b.key, entries[0].Key) {
				shadowed = true
			}
		}

		if len(entries) == 0 {
			return kv.KV{}, false, nil
		}

		if !shadowed {
			return kv.KV{entries[0].Key, entries[0].Value}, true, nil
		}

		// deleted in this transaction, keep looking below it
		r.Max = entries[0].Key
	}
}

type bufferedKV struct {
	key []byte
	bufferedWrite
}

func (txn *transaction) buffered(r keys.Range, order kv.SortOrder) []bufferedKV {
	var result []bufferedKV

	iter := txn.buffer.Iterator()

	for iter.Next() {
		key := []byte(iter.Key().(string))

		if !r.Contains(key) {
			continue
		}

		result = append(result, bufferedKV{key: key, bufferedWrite: iter.Value().(bufferedWrite)})
	}

	if order == kv.SortOrderDesc {
		for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
			result[i], result[j] = result[j], result[i]
		}
	}

	return result
}

// Put implements kv.Transaction.Put
func (txn *transaction) Put(key, value []byte) error {
	if err := txn.checkWrite(key); err != nil {
		return err
	}

	v := make([]byte, len(value))
	copy(v, value)

	txn.buffer.Put(string(key), bufferedWrite{value: v})

	return nil
}

// Delete implements kv.Transaction.Delete
func (txn *transaction) Delete(key []byte) error {
	if err := txn.checkWrite(key); err != nil {
		return err
	}

	txn.buffer.Put(string(key), bufferedWrite{deleted: true})

	return nil
}

// DeleteRange implements kv.Transaction.DeleteRange. The
// range is read so that a key inserted into it by a concurrent
// transaction causes a conflict instead of surviving the delete.
func (txn *transaction) DeleteRange(r keys.Range) error {
	if err := txn.checkWritable(); err != nil {
		return err
	}

	entries, err := txn.scan(r, kv.SortOrderAsc, 0)

	if err != nil {
		return err
	}

	for _, entry := range entries {
		txn.buffer.Put(string(entry.Key), bufferedWrite{deleted: true})
	}

	for _, b := range txn.buffered(r, kv.SortOrderAsc) {
		txn.buffer.Put(string(b.key), bufferedWrite{deleted: true})
	}

	return nil
}

// Commit implements kv.Transaction.Commit
func (txn *transaction) Commit() error {
	if txn.done {
		return kv.ErrTxnDone
	}

	txn.done = true

	if !txn.writable || txn.buffer.Empty() {
		return nil
	}

	writes := make([]Write, 0, txn.buffer.Size())
	iter := txn.buffer.Iterator()

	for iter.Next() {
		w := iter.Value().(bufferedWrite)
		write := Write{Key: []byte(iter.Key().(string))}

		if !w.deleted {
			write.Value = w.value
		}

		writes = append(writes, write)
	}

	return txn.committer.Commit(ReadSet{
		Revision: txn.snapshot.Revision(),
		Ranges:   txn.ranges,
		Observed: txn.observed,
	}, writes)
}

// Rollback implements kv.Transaction.Rollback
func (txn *transaction) Rollback() error {
	txn.done = true
	txn.buffer.Clear()

	return nil
}
