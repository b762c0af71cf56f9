package kv

import (
	"context"
	"errors"
	"time"

	"github.com/jrife/rangeconf/utils/log"
	retry "github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

// DefaultBackoff returns the backoff policy used by Update
// and View between attempts that failed with ErrConflict.
func DefaultBackoff() retry.Backoff {
	backoff := retry.NewExponential(5 * time.Millisecond)
	backoff = retry.WithJitterPercent(20, backoff)
	backoff = retry.WithCappedDuration(500*time.Millisecond, backoff)

	return retry.WithMaxRetries(10, backoff)
}

// Update runs fn inside a read-write transaction and commits it.
// If fn or Commit fail with ErrConflict the whole attempt is
// repeated in a fresh transaction, up to the limits of
// DefaultBackoff. Any other error aborts the transaction and is
// returned as is. fn must not retain txn after it returns. Retries
// are logged to the logger carried by ctx, or zap.L().
func Update(ctx context.Context, store Store, fn func(txn Transaction) error) error {
	return run(ctx, store, true, fn)
}

// View is like Update but runs fn inside a read-only
// transaction, which is rolled back once fn returns.
func View(ctx context.Context, store Store, fn func(txn Transaction) error) error {
	return run(ctx, store, false, fn)
}

func run(ctx context.Context, store Store, writable bool, fn func(txn Transaction) error) error {
	logger, ctx := log.LoggerFromContext(ctx, zap.L())
	logger = log.WithContext(ctx, logger)
	attempt := 0

	return retry.Do(ctx, DefaultBackoff(), func(ctx context.Context) error {
		attempt++

		if attempt > 1 {
			logger.Debug("retrying after conflict", zap.Int("attempt", attempt), zap.Bool("writable", writable))
		}

		txn, err := store.Begin(ctx, writable)

		if err != nil {
			return retryable(err)
		}

		if err := fn(txn); err != nil {
			txn.Rollback()

			return retryable(err)
		}

		if !writable {
			return txn.Rollback()
		}

		return retryable(txn.Commit())
	})
}

func retryable(err error) error {
	if errors.Is(err, ErrConflict) {
		return retry.RetryableError(err)
	}

	return err
}
