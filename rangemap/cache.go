package rangemap

import (
	"bytes"
	"context"
	"sync"

	"github.com/jrife/rangeconf/storage/kv"
	"github.com/jrife/rangeconf/utils/log"
	"go.uber.org/zap"
)

// Cache keeps the latest snapshot of a range map and only reads the
// map again once its trigger changed. A map without a trigger is
// read on every call.
type Cache[V any] struct {
	m        *RangeMap[V]
	store    kv.Store
	mu       sync.Mutex
	token    []byte
	snapshot *LocalSnapshot[V]
}

// NewCache creates a cache of m backed by store
func NewCache[V any](m *RangeMap[V], store kv.Store) *Cache[V] {
	return &Cache[V]{m: m, store: store}
}

// Snapshot returns a snapshot of the map that is at least as recent
// as the trigger observed by this call. It logs to the logger carried
// by ctx, if any, instead of the map's logger.
func (cache *Cache[V]) Snapshot(ctx context.Context) (*LocalSnapshot[V], error) {
	cache.mu.Lock()
	defer cache.mu.Unlock()

	logger, ctx := log.LoggerFromContext(ctx, cache.m.logger)
	logger = log.WithContext(ctx, logger).With(zap.String("operation", "CacheSnapshot"))

	err := kv.View(ctx, cache.store, func(txn kv.Transaction) error {
		token, err := cache.m.trigger.Token(txn)

		if err != nil {
			return err
		}

		if cache.snapshot != nil && token != nil && bytes.Equal(token, cache.token) {
			return nil
		}

		snapshot, err := cache.m.Snapshot(txn)

		if err != nil {
			return err
		}

		logger.Debug("refreshed", zap.Int("entries", snapshot.Len()), zap.ByteString("token", token))
		cache.snapshot = snapshot
		cache.token = token

		return nil
	})

	if err != nil {
		return nil, err
	}

	return cache.snapshot, nil
}
