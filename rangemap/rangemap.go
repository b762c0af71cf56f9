// Package rangemap implements a boundary-keyed range map
// persisted in a kv store. Each entry starts a half-open range
// [boundary, next boundary) and the value stored at a boundary is
// exactly the value in effect for its range. The last range
// extends to the end of the map. Nothing is inherited implicitly
// at read time: callers that want inheritance compute it when they
// write, which is what the protocol helpers in this package do.
//
// A RangeMap holds no state besides its configuration. Every
// operation runs inside a transaction supplied by the caller and
// surfaces substrate errors unchanged, so conflicts abort the
// caller's transaction instead of being retried here.
package rangemap

import (
	"errors"
	"fmt"

	"github.com/jrife/rangeconf/storage/kv"
	"github.com/jrife/rangeconf/storage/kv/keys"
	"github.com/jrife/rangeconf/storage/kv/tuple"
	"github.com/jrife/rangeconf/utils/stream"
	"go.uber.org/zap"
)

// ErrCorrupt is returned when a stored key or value
// can't be decoded
var ErrCorrupt = errors.New("range map entry is corrupt")

// KeyCodec encodes boundaries into keys. The encoding
// must preserve the order of boundaries.
type KeyCodec interface {
	EncodeKey(boundary []byte) []byte
	DecodeKey(key []byte) ([]byte, error)
}

// ValueCodec encodes values stored at boundaries
type ValueCodec[V any] interface {
	Marshal(value V) ([]byte, error)
	Unmarshal(data []byte) (V, error)
}

// Entry is a boundary and the value in effect from
// that boundary up to the next one
type Entry[V any] struct {
	Boundary []byte
	Value    V
}

// Config contains configuration for a range map
type Config[V any] struct {
	// Prefix is prepended to every key of the map. It must not
	// be a prefix of any key outside of the map.
	Prefix []byte
	// Trigger is updated by every write to the map. Optional.
	Trigger Trigger
	// KeyCodec defaults to tuple.BytesCodec
	KeyCodec KeyCodec
	// ValueCodec is required
	ValueCodec ValueCodec[V]
	// Logger defaults to zap.L()
	Logger *zap.Logger
}

// RangeMap is a range map bound to a key prefix
type RangeMap[V any] struct {
	prefix  []byte
	trigger Trigger
	keys    KeyCodec
	values  ValueCodec[V]
	logger  *zap.Logger
}

// New creates a range map
func New[V any](config Config[V]) *RangeMap[V] {
	m := &RangeMap[V]{
		prefix:  config.Prefix,
		trigger: config.Trigger,
		keys:    config.KeyCodec,
		values:  config.ValueCodec,
		logger:  config.Logger,
	}

	if m.keys == nil {
		m.keys = tuple.BytesCodec{}
	}

	if m.logger == nil {
		m.logger = zap.L()
	}

	return m
}

// Prefix returns the key prefix of the map
func (m *RangeMap[V]) Prefix() []byte {
	return m.prefix
}

// Trigger returns the trigger updated by writes to the map
func (m *RangeMap[V]) Trigger() Trigger {
	return m.trigger
}

func (m *RangeMap[V]) space(txn kv.Transaction) kv.Transaction {
	return kv.Namespace(txn, m.prefix)
}

// span returns the key range holding boundaries in [begin, end).
// A nil begin or end leaves that side unbounded.
func (m *RangeMap[V]) span(begin, end []byte) keys.Range {
	r := keys.All()

	if begin != nil {
		r = r.Gte(m.keys.EncodeKey(begin))
	}

	if end != nil {
		r = r.Lt(m.keys.EncodeKey(end))
	}

	return r
}

// Set writes value at boundary, replacing any value stored there.
// It performs no inheritance or merging.
func (m *RangeMap[V]) Set(txn kv.Transaction, boundary []byte, value V) error {
	logger := m.logger.With(zap.String("operation", "Set"))
	logger.Debug("start", zap.Binary("boundary", boundary), zap.Any("value", value))

	data, err := m.values.Marshal(value)

	if err != nil {
		return fmt.Errorf("could not marshal value for boundary %q: %w", boundary, err)
	}

	if err := m.space(txn).Put(m.keys.EncodeKey(boundary), data); err != nil {
		logger.Debug("error", zap.Error(err))

		return err
	}

	return m.trigger.Update(txn)
}

// Get returns the value stored exactly at boundary. ok is false
// if there is no entry at boundary, which says nothing about the
// value in effect there. Use RangeFor for that.
func (m *RangeMap[V]) Get(txn kv.Transaction, boundary []byte) (value V, ok bool, err error) {
	data, err := m.space(txn).Get(m.keys.EncodeKey(boundary))

	if err != nil {
		return value, false, err
	}

	if data == nil {
		return value, false, nil
	}

	value, err = m.decodeValue(boundary, data)

	if err != nil {
		return value, false, err
	}

	return value, true, nil
}

// GetRange returns the entries whose boundary lies in [begin, end)
// in ascending order. A nil end means the end of the map.
func (m *RangeMap[V]) GetRange(txn kv.Transaction, begin, end []byte) ([]Entry[V], error) {
	logger := m.logger.With(zap.String("operation", "GetRange"))
	logger.Debug("start", zap.Binary("begin", begin), zap.Binary("end", end))

	iter, err := m.space(txn).Keys(m.span(begin, end), kv.SortOrderAsc)

	if err != nil {
		return nil, err
	}

	entries, err := m.collect(stream.Pipeline(kv.Stream(iter), stream.Log(logger)))

	if err != nil {
		logger.Debug("error", zap.Error(err))

		return nil, err
	}

	logger.Debug("return", zap.Int("entries", len(entries)))

	return entries, nil
}

// RangeFor returns the entry whose range contains key, which is
// the entry with the greatest boundary <= key. ok is false if no
// boundary precedes key.
func (m *RangeMap[V]) RangeFor(txn kv.Transaction, key []byte) (Entry[V], bool, error) {
	return m.last(txn, keys.All().Lte(m.keys.EncodeKey(key)))
}

// before returns the entry with the greatest boundary < key
func (m *RangeMap[V]) before(txn kv.Transaction, key []byte) (Entry[V], bool, error) {
	return m.last(txn, keys.All().Lt(m.keys.EncodeKey(key)))
}

// last reads only the greatest entry in r so that writes to
// earlier boundaries do not conflict with the caller
func (m *RangeMap[V]) last(txn kv.Transaction, r keys.Range) (Entry[V], bool, error) {
	pair, ok, err := m.space(txn).Last(r)

	if err != nil || !ok {
		return Entry[V]{}, false, err
	}

	entry, err := m.entry(pair)

	if err != nil {
		return Entry[V]{}, false, err
	}

	return entry, true, nil
}

// ClearRange erases every entry whose boundary lies in [begin, end).
// A nil end means the end of the map.
func (m *RangeMap[V]) ClearRange(txn kv.Transaction, begin, end []byte) error {
	logger := m.logger.With(zap.String("operation", "ClearRange"))
	logger.Debug("start", zap.Binary("begin", begin), zap.Binary("end", end))

	if err := m.space(txn).DeleteRange(m.span(begin, end)); err != nil {
		logger.Debug("error", zap.Error(err))

		return err
	}

	return m.trigger.Update(txn)
}

// Snapshot reads the whole map into a local, read-only snapshot.
// The snapshot reflects the state visible to txn and never changes
// afterwards.
func (m *RangeMap[V]) Snapshot(txn kv.Transaction) (*LocalSnapshot[V], error) {
	entries, err := m.GetRange(txn, nil, nil)

	if err != nil {
		return nil, err
	}

	return NewLocalSnapshot(entries), nil
}

func (m *RangeMap[V]) collect(s stream.Stream) ([]Entry[V], error) {
	entries := []Entry[V]{}

	for s.Next() {
		entry, err := m.entry(s.Value().(kv.KV))

		if err != nil {
			return nil, err
		}

		entries = append(entries, entry)
	}

	if err := s.Error(); err != nil {
		return nil, err
	}

	return entries, nil
}

func (m *RangeMap[V]) entry(pair kv.KV) (Entry[V], error) {
	boundary, err := m.keys.DecodeKey(pair.Key())

	if err != nil {
		return Entry[V]{}, fmt.Errorf("%w: key %q: %w", ErrCorrupt, pair.Key(), err)
	}

	value, err := m.decodeValue(boundary, pair.Value())

	if err != nil {
		return Entry[V]{}, err
	}

	return Entry[V]{Boundary: boundary, Value: value}, nil
}

func (m *RangeMap[V]) decodeValue(boundary []byte, data []byte) (V, error) {
	value, err := m.values.Unmarshal(data)

	if err != nil {
		return value, fmt.Errorf("%w: boundary %q: %w", ErrCorrupt, boundary, err)
	}

	return value, nil
}
