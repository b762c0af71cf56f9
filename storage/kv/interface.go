package kv

import (
	"context"
	"errors"

	"github.com/jrife/rangeconf/storage/kv/keys"
)

var (
	// ErrClosed indicates that the store was closed
	ErrClosed = errors.New("store was closed")
	// ErrConflict indicates that a transaction lost a race with another
	// transaction and could not commit. It is retryable: the caller must
	// start over with a new transaction.
	ErrConflict = errors.New("transaction conflict")
	// ErrReadOnly is returned when a read-only transaction attempts an update operation
	ErrReadOnly = errors.New("transaction is read-only")
	// ErrTxnDone is returned when a transaction is used after it was
	// committed or rolled back
	ErrTxnDone = errors.New("transaction has already been committed or rolled back")
	// ErrEmptyKey is returned when a key is nil or empty
	ErrEmptyKey = errors.New("key must not be empty")
)

// SortOrder describes the order in which
// keys are iterated
type SortOrder int

const (
	// SortOrderAsc iterates keys in ascending lexicographical order
	SortOrderAsc SortOrder = iota
	// SortOrderDesc iterates keys in descending lexicographical order
	SortOrderDesc
)

// PluginOptions is a driver specific set of options
type PluginOptions map[string]interface{}

// Plugin represents a kv storage plugin
type Plugin interface {
	// Name returns the name of the storage plugin
	Name() string
	// NewStore returns an instance of the plugin store
	NewStore(options PluginOptions) (Store, error)
	// NewTempStore returns an instance of the plugin store
	// initialized with some sane defaults. It is meant for
	// tests that need an initialized instance of the plugin's
	// store without knowing how to initialize it
	NewTempStore() (Store, error)
}

// Store is an ordered keyspace that can only be
// accessed through transactions.
type Store interface {
	// Begin starts a transaction. writable should be true for
	// read-write transactions and false for read-only transactions.
	// ctx bounds any I/O the transaction performs, including Commit.
	// Begin must return ErrClosed if it is called after Close.
	Begin(ctx context.Context, writable bool) (Transaction, error)
	// Close closes the store. It must not return until all
	// transactions have either rolled back or committed.
	Close() error
	// Delete closes then deletes this store and all its contents.
	Delete() error
}

// MapUpdater is an interface for updating a sorted
// key-value map
type MapUpdater interface {
	// Put puts a key. Put must return an error
	// if the key is nil or empty.
	Put(key, value []byte) error
	// Delete deletes a key. It must return an error if the key
	// is nil or empty. If the key doesn't exist it has no effect
	// and returns nil.
	Delete(key []byte) error
	// DeleteRange deletes every key in the range.
	DeleteRange(keys keys.Range) error
}

// MapReader is an interface for reading a sorted
// key-value map
type MapReader interface {
	// Get gets a key. It must observe updates to that key made
	// previously by this transation. Get must return an error
	// if the key is nil or empty. It must return nil if the
	// requested key does not exist.
	Get(key []byte) ([]byte, error)
	// Keys creates an iterator that iterates over the range
	// of keys
	Keys(keys keys.Range, order SortOrder) (Iterator, error)
	// Last returns the pair with the greatest key in the range.
	// ok is false if the range holds no keys. Drivers that check
	// reads at commit only count the part of the range from the
	// returned key onwards as read.
	Last(keys keys.Range) (pair KV, ok bool, err error)
}

// Map combines MapReader and MapUpdater
type Map interface {
	MapUpdater
	MapReader
}

// Transaction is a transaction for a store. It must only be
// used by one goroutine at a time.
type Transaction interface {
	Map
	// Commit commits the transaction. Drivers using optimistic
	// concurrency control return ErrConflict if a value this
	// transaction read was changed by a transaction that committed
	// first.
	Commit() error
	// Rollback rolls back the transaction. Calling Rollback on a
	// transaction that already finished has no effect.
	Rollback() error
}

// Iterator iterates over a set of keys. It must only be
// used by one goroutine at a time. Consumers should not
// attempt to use an iterator once its parent transaction
// has been rolled back. Behavior is undefined in this case.
type Iterator interface {
	// Next advances the iterator to the next key
	// A fresh iterator must call Next once to
	// advance to the first key. Next returns false
	// if there is no next key or if it encounters an
	// error.
	Next() bool
	// Key returns the current key
	Key() []byte
	// Value returns the current value
	Value() []byte
	// Error returns the error, if any.
	Error() error
}

// KV is a key-value pair
type KV [2][]byte

// Key returns the key
func (kv KV) Key() []byte {
	return kv[0]
}

// Value returns the value
func (kv KV) Value() []byte {
	return kv[1]
}
