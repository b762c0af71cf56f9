// Package bbolt provides a kv driver backed by a bbolt
// database file. bbolt admits a single writer at a time, so
// read-write transactions are serialized by Begin and never
// fail with kv.ErrConflict.
package bbolt

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jrife/rangeconf/storage/kv"
	"github.com/jrife/rangeconf/storage/kv/keys"
	"github.com/jrife/rangeconf/utils/uuid"
	bolt "go.etcd.io/bbolt"
)

const (
	// DriverName is the name of this plugin
	DriverName = "bbolt"
	// DefaultBucket is the bucket that holds all keys
	// unless the "bucket" option says otherwise
	DefaultBucket = "rangeconf"
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

// NewStore implements kv.Plugin.NewStore. "path" is required.
// "bucket" is optional.
func (plugin *Plugin) NewStore(options kv.PluginOptions) (kv.Store, error) {
	var config Config

	if path, ok := options["path"]; !ok {
		return nil, fmt.Errorf("\"path\" is required")
	} else if pathString, ok := path.(string); !ok {
		return nil, fmt.Errorf("\"path\" must be a string")
	} else {
		config.Path = pathString
	}

	if bucket, ok := options["bucket"]; ok {
		if bucketString, ok := bucket.(string); !ok {
			return nil, fmt.Errorf("\"bucket\" must be a string")
		} else {
			config.Bucket = bucketString
		}
	}

	store, err := New(config)

	if err != nil {
		return nil, err
	}

	return store, nil
}

// NewTempStore implements kv.Plugin.NewTempStore
func (plugin *Plugin) NewTempStore() (kv.Store, error) {
	return plugin.NewStore(kv.PluginOptions{
		"path": filepath.Join(os.TempDir(), fmt.Sprintf("bbolt-%s", uuid.MustUUID())),
	})
}

// Config configures a bbolt store
type Config struct {
	Path   string
	Bucket string
}

var _ kv.Store = (*Store)(nil)

// Store is a kv.Store backed by bbolt
type Store struct {
	db     *bolt.DB
	bucket []byte
}

// New opens or creates the bbolt database at config.Path
func New(config Config) (*Store, error) {
	db, err := bolt.Open(config.Path, 0666, &bolt.Options{Timeout: time.Second})

	if err != nil {
		return nil, fmt.Errorf("could not open bbolt store at %s: %w", config.Path, err)
	}

	bucket := []byte(config.Bucket)

	if len(bucket) == 0 {
		bucket = []byte(DefaultBucket)
	}

	if err := db.Update(func(txn *bolt.Tx) error {
		_, err := txn.CreateBucketIfNotExists(bucket)

		return err
	}); err != nil {
		db.Close()

		return nil, fmt.Errorf("could not ensure bucket exists: %w", err)
	}

	return &Store{db: db, bucket: bucket}, nil
}

// Begin implements kv.Store.Begin
func (store *Store) Begin(ctx context.Context, writable bool) (kv.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	txn, err := store.db.Begin(writable)

	if err != nil {
		return nil, wrapError("could not begin transaction", err)
	}

	return &transaction{txn: txn, bucket: txn.Bucket(store.bucket)}, nil
}

// Close implements kv.Store.Close
func (store *Store) Close() error {
	return store.db.Close()
}

// Delete implements kv.Store.Delete
func (store *Store) Delete() error {
	path := store.db.Path()

	if err := store.Close(); err != nil {
		return fmt.Errorf("could not close store: %w", err)
	}

	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("could not remove path %s: %w", path, err)
	}

	return nil
}

var _ kv.Transaction = (*transaction)(nil)

type transaction struct {
	txn    *bolt.Tx
	bucket *bolt.Bucket
}

func (transaction *transaction) Get(key []byte) ([]byte, error) {
	if len(key) == 0 {
		return nil, kv.ErrEmptyKey
	}

	if transaction.txn.DB() == nil {
		return nil, kv.ErrTxnDone
	}

	return copyBytes(transaction.bucket.Get(key)), nil
}

func (transaction *transaction) Keys(r keys.Range, order kv.SortOrder) (kv.Iterator, error) {
	if transaction.txn.DB() == nil {
		return nil, kv.ErrTxnDone
	}

	kvs := transaction.scan(r)

	if order == kv.SortOrderDesc {
		for i, j := 0, len(kvs)-1; i < j; i, j = i+1, j-1 {
			kvs[i], kvs[j] = kvs[j], kvs[i]
		}
	}

	return kv.NewSliceIterator(kvs), nil
}

func (transaction *transaction) Last(r keys.Range) (kv.KV, bool, error) {
	if transaction.txn.DB() == nil {
		return kv.KV{}, false, kv.ErrTxnDone
	}

	if r.Empty() {
		return kv.KV{}, false, nil
	}

	cursor := transaction.bucket.Cursor()

	var k, v []byte

	if r.Max == nil {
		k, v = cursor.Last()
	} else if k, v = cursor.Seek(r.Max); k == nil {
		k, v = cursor.Last()
	} else {
		k, v = cursor.Prev()
	}

	if k == nil || !r.Contains(k) {
		return kv.KV{}, false, nil
	}

	return kv.KV{copyBytes(k), copyBytes(v)}, true, nil
}

// scan copies out every pair in the range. Values
// returned by bbolt are only valid for the life of the
// transaction and the caller may write while iterating.
func (transaction *transaction) scan(r keys.Range) []kv.KV {
	var kvs []kv.KV

	if r.Empty() {
		return kvs
	}

	cursor := transaction.bucket.Cursor()

	var k, v []byte

	if r.Min == nil {
		k, v = cursor.First()
	} else {
		k, v = cursor.Seek(r.Min)
	}

	for ; k != nil && r.Contains(k); k, v = cursor.Next() {
		kvs = append(kvs, kv.KV{copyBytes(k), copyBytes(v)})
	}

	return kvs
}

func (transaction *transaction) Put(key, value []byte) error {
	if len(key) == 0 {
		return kv.ErrEmptyKey
	}

	if value == nil {
		value = []byte{}
	}

	return wrapError("could not put key", transaction.bucket.Put(key, value))
}

func (transaction *transaction) Delete(key []byte) error {
	if len(key) == 0 {
		return kv.ErrEmptyKey
	}

	return wrapError("could not delete key", transaction.bucket.Delete(key))
}

func (transaction *transaction) DeleteRange(r keys.Range) error {
	if transaction.txn.DB() == nil {
		return kv.ErrTxnDone
	}

	if !transaction.txn.Writable() {
		return kv.ErrReadOnly
	}

	for _, pair := range transaction.scan(r) {
		if err := transaction.bucket.Delete(pair.Key()); err != nil {
			return wrapError("could not delete key", err)
		}
	}

	return nil
}

func (transaction *transaction) Commit() error {
	if !transaction.txn.Writable() {
		return wrapError("could not commit", transaction.txn.Rollback())
	}

	return wrapError("could not commit", transaction.txn.Commit())
}

func (transaction *transaction) Rollback() error {
	err := transaction.txn.Rollback()

	if errors.Is(err, bolt.ErrTxClosed) {
		return nil
	}

	return wrapError("could not roll back", err)
}

func wrapError(wrap string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bolt.ErrTxNotWritable):
		return kv.ErrReadOnly
	case errors.Is(err, bolt.ErrTxClosed):
		return kv.ErrTxnDone
	case errors.Is(err, bolt.ErrDatabaseNotOpen):
		return kv.ErrClosed
	}

	return fmt.Errorf("%s: %w", wrap, err)
}

func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}

	c := make([]byte, len(b))
	copy(c, b)

	return c
}
