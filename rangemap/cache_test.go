package rangemap_test

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jrife/rangeconf/rangemap"
	"github.com/jrife/rangeconf/storage/kv"
	"github.com/jrife/rangeconf/storage/kv/plugins/memory"
	"github.com/jrife/rangeconf/utils/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestCache(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	ctx := log.WithFields(log.WithLogger(context.Background(), zap.New(core)), zap.String("consumer", "planner"))
	store := memory.New()
	m := newMap("m/")
	other := newMap("other/")
	cache := rangemap.NewCache(m, store)

	seed(t, store, m, entries{e("a", 1, false)})

	first, err := cache.Snapshot(ctx)

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	second, err := cache.Snapshot(ctx)

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if first != second {
		t.Fatalf("expected the cached snapshot to be reused while the trigger is unchanged")
	}

	// maps sharing a trigger invalidate each other
	seed(t, store, other, entries{e("z", 9, false)})

	third, err := cache.Snapshot(ctx)

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if third == second {
		t.Fatalf("expected a new snapshot after the trigger changed")
	}

	seed(t, store, m, entries{e("b", 2, false)})

	fourth, err := cache.Snapshot(ctx)

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if diff := cmp.Diff(entries{e("a", 1, false), e("b", 2, false)}, entries(fourth.Entries())); diff != "" {
		t.Fatal(diff)
	}

	refreshes := logs.FilterMessage("refreshed").All()

	if len(refreshes) != 3 {
		t.Fatalf("expected 3 refreshes to be logged, got %d", len(refreshes))
	}

	if consumer := refreshes[0].ContextMap()["consumer"]; consumer != "planner" {
		t.Fatalf("expected the context fields to be logged, got %#v", consumer)
	}
}

func TestTriggerToken(t *testing.T) {
	store := memory.New()
	trigger := rangemap.NewTrigger([]byte("trigger"))
	var tokens [][]byte

	for i := 0; i < 2; i++ {
		update(t, store, func(txn kv.Transaction) error {
			if err := trigger.Update(txn); err != nil {
				return err
			}

			token, err := trigger.Token(txn)
			tokens = append(tokens, token)

			return err
		})
	}

	if len(tokens[0]) == 0 || cmp.Equal(tokens[0], tokens[1]) {
		t.Fatalf("expected distinct tokens, got %q and %q", tokens[0], tokens[1])
	}

	update(t, store, func(txn kv.Transaction) error {
		token, err := rangemap.Trigger{}.Token(txn)

		if token != nil {
			t.Errorf("expected the zero trigger to have no token, got %q", token)
		}

		if err := (rangemap.Trigger{}).Update(txn); err != nil {
			return err
		}

		return err
	})
}
