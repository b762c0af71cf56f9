package rangemap_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jrife/rangeconf/rangemap"
	"github.com/jrife/rangeconf/storage/kv"
	"github.com/jrife/rangeconf/storage/kv/plugins/memory"
)

func seed(t *testing.T, store kv.Store, m *rangemap.RangeMap[level], initial entries) {
	t.Helper()

	update(t, store, func(txn kv.Transaction) error {
		for _, entry := range initial {
			if err := m.Set(txn, entry.Boundary, entry.Value); err != nil {
				return err
			}
		}

		return nil
	})
}

func TestSplitAt(t *testing.T) {
	testCases := map[string]struct {
		initial  entries
		boundary string
		split    bool
		result   entries
	}{
		"inherits-value-not-pin": {
			initial:  entries{e("a", 2, true)},
			boundary: "c",
			split:    true,
			result:   entries{e("a", 2, true), e("c", 2, false)},
		},
		"already-a-boundary": {
			initial:  entries{e("a", 2, true)},
			boundary: "a",
			split:    false,
			result:   entries{e("a", 2, true)},
		},
		"nothing-before": {
			initial:  entries{e("b", 2, false)},
			boundary: "a",
			split:    false,
			result:   entries{e("b", 2, false)},
		},
		"between": {
			initial:  entries{e("a", 1, false), e("c", 3, false)},
			boundary: "b",
			split:    true,
			result:   entries{e("a", 1, false), e("b", 1, false), e("c", 3, false)},
		},
	}

	for name, testCase := range testCases {
		t.Run(name, func(t *testing.T) {
			store := memory.New()
			m := newMap("m/")
			seed(t, store, m, testCase.initial)

			update(t, store, func(txn kv.Transaction) error {
				split, err := rangemap.SplitAt(txn, m, []byte(testCase.boundary))

				if split != testCase.split {
					t.Errorf("expected split to be %t", testCase.split)
				}

				return err
			})

			if diff := cmp.Diff(testCase.result, readAll(t, store, m)); diff != "" {
				t.Fatal(diff)
			}
		})
	}
}

func TestMergeAt(t *testing.T) {
	testCases := map[string]struct {
		initial  entries
		boundary string
		merged   bool
		result   entries
	}{
		"equal-values": {
			initial:  entries{e("a", 5, false), e("c", 5, false)},
			boundary: "c",
			merged:   true,
			result:   entries{e("a", 5, false)},
		},
		"pinned-predecessor": {
			initial:  entries{e("a", 5, true), e("c", 5, false)},
			boundary: "c",
			merged:   false,
			result:   entries{e("a", 5, true), e("c", 5, false)},
		},
		"pinned-boundary": {
			initial:  entries{e("a", 5, false), e("c", 5, true)},
			boundary: "c",
			merged:   false,
			result:   entries{e("a", 5, false), e("c", 5, true)},
		},
		"different-values": {
			initial:  entries{e("a", 5, false), e("c", 6, false)},
			boundary: "c",
			merged:   false,
			result:   entries{e("a", 5, false), e("c", 6, false)},
		},
		"not-a-boundary": {
			initial:  entries{e("a", 5, false)},
			boundary: "b",
			merged:   false,
			result:   entries{e("a", 5, false)},
		},
		"first-boundary-default": {
			initial:  entries{e("a", 0, false), e("c", 5, false)},
			boundary: "a",
			merged:   true,
			result:   entries{e("c", 5, false)},
		},
		"first-boundary-override": {
			initial:  entries{e("a", 1, false)},
			boundary: "a",
			merged:   false,
			result:   entries{e("a", 1, false)},
		},
	}

	for name, testCase := range testCases {
		t.Run(name, func(t *testing.T) {
			store := memory.New()
			m := newMap("m/")
			seed(t, store, m, testCase.initial)

			update(t, store, func(txn kv.Transaction) error {
				merged, err := rangemap.MergeAt(txn, m, []byte(testCase.boundary))

				if merged != testCase.merged {
					t.Errorf("expected merged to be %t", testCase.merged)
				}

				return err
			})

			if diff := cmp.Diff(testCase.result, readAll(t, store, m)); diff != "" {
				t.Fatal(diff)
			}
		})
	}
}

func TestUpdateRange(t *testing.T) {
	testCases := map[string]struct {
		initial entries
		begin   []byte
		end     []byte
		delta   level
		result  entries
	}{
		"empty-map": {
			initial: entries{},
			begin:   []byte("b"),
			end:     []byte("d"),
			delta:   level{N: 5},
			result:  entries{e("b", 5, false), e("d", 0, false)},
		},
		"extends-neighbour": {
			initial: entries{e("b", 5, false), e("d", 0, false)},
			begin:   []byte("d"),
			end:     []byte("f"),
			delta:   level{N: 5},
			result:  entries{e("b", 5, false), e("f", 0, false)},
		},
		"overlapping": {
			initial: entries{e("b", 5, false), e("f", 0, false)},
			begin:   []byte("c"),
			end:     []byte("g"),
			delta:   level{N: 7},
			result:  entries{e("b", 5, false), e("c", 7, false), e("g", 0, false)},
		},
		"pin-to-end": {
			initial: entries{e("b", 5, false), e("f", 0, false)},
			begin:   []byte("a"),
			delta:   level{Pinned: true},
			result:  entries{e("a", 0, true), e("b", 5, true), e("f", 0, true)},
		},
		"partial-delta-keeps-fields": {
			initial: entries{e("b", 5, true)},
			begin:   []byte("b"),
			end:     []byte("c"),
			delta:   level{},
			result:  entries{e("b", 5, true), e("c", 5, false)},
		},
		"inverted": {
			initial: entries{e("b", 5, false)},
			begin:   []byte("d"),
			end:     []byte("c"),
			delta:   level{N: 1},
			result:  entries{e("b", 5, false)},
		},
	}

	for name, testCase := range testCases {
		t.Run(name, func(t *testing.T) {
			store := memory.New()
			m := newMap("m/")
			seed(t, store, m, testCase.initial)

			update(t, store, func(txn kv.Transaction) error {
				return rangemap.UpdateRange(txn, m, testCase.begin, testCase.end, testCase.delta)
			})

			if diff := cmp.Diff(testCase.result, readAll(t, store, m)); diff != "" {
				t.Fatal(diff)
			}
		})
	}
}

func TestCoalesce(t *testing.T) {
	testCases := map[string]struct {
		begin   []byte
		end     []byte
		removed int
		result  entries
	}{
		"everything": {
			removed: 1,
			result:  entries{e("a", 1, false), e("c", 2, false), e("d", 2, true), e("e", 2, false)},
		},
		"end-is-inclusive": {
			begin:   []byte("b"),
			end:     []byte("b"),
			removed: 1,
			result:  entries{e("a", 1, false), e("c", 2, false), e("d", 2, true), e("e", 2, false)},
		},
		"outside": {
			begin:   []byte("c"),
			removed: 0,
			result:  entries{e("a", 1, false), e("b", 1, false), e("c", 2, false), e("d", 2, true), e("e", 2, false)},
		},
	}

	for name, testCase := range testCases {
		t.Run(name, func(t *testing.T) {
			store := memory.New()
			m := newMap("m/")
			seed(t, store, m, entries{e("a", 1, false), e("b", 1, false), e("c", 2, false), e("d", 2, true), e("e", 2, false)})

			update(t, store, func(txn kv.Transaction) error {
				removed, err := rangemap.Coalesce(txn, m, testCase.begin, testCase.end)

				if removed != testCase.removed {
					t.Errorf("expected %d boundaries removed, got %d", testCase.removed, removed)
				}

				return err
			})

			if diff := cmp.Diff(testCase.result, readAll(t, store, m)); diff != "" {
				t.Fatal(diff)
			}
		})
	}
}

func TestSplitMergeRoundTrip(t *testing.T) {
	store := memory.New()
	m := newMap("m/")
	initial := entries{e("a", 3, false), e("m", 4, false)}
	seed(t, store, m, initial)

	update(t, store, func(txn kv.Transaction) error {
		if _, err := rangemap.SplitAt(txn, m, []byte("f")); err != nil {
			return err
		}

		_, err := rangemap.MergeAt(txn, m, []byte("f"))

		return err
	})

	if diff := cmp.Diff(initial, readAll(t, store, m)); diff != "" {
		t.Fatal(diff)
	}

	err := kv.View(context.Background(), store, func(txn kv.Transaction) error {
		_, err := rangemap.SplitAt(txn, m, []byte("f"))

		return err
	})

	if err == nil {
		t.Fatalf("expected SplitAt to fail in a read-only transaction")
	}
}

func TestMergeAtConflicts(t *testing.T) {
	testCases := map[string]struct {
		write    string
		conflict bool
	}{
		"earlier-boundary": {
			write:    "a",
			conflict: false,
		},
		"later-boundary": {
			write:    "z",
			conflict: false,
		},
		"predecessor": {
			write:    "m",
			conflict: true,
		},
		"new-predecessor": {
			write:    "mm",
			conflict: true,
		},
		"merged-boundary": {
			write:    "n",
			conflict: true,
		},
	}

	for name, testCase := range testCases {
		t.Run(name, func(t *testing.T) {
			store := memory.New()
			m := newMap("m/")
			ctx := context.Background()

			seed(t, store, m, entries{e("a", 1, false), e("m", 2, false), e("n", 2, false)})

			txn1, err := store.Begin(ctx, true)

			if err != nil {
				t.Fatalf("expected err to be nil, got %#v", err)
			}

			merged, err := rangemap.MergeAt(txn1, m, []byte("n"))

			if err != nil {
				t.Fatalf("expected err to be nil, got %#v", err)
			}

			if !merged {
				t.Fatalf("expected n to be merged")
			}

			update(t, store, func(txn kv.Transaction) error {
				return m.Set(txn, []byte(testCase.write), level{N: 7})
			})

			err = txn1.Commit()

			if testCase.conflict && !errors.Is(err, kv.ErrConflict) {
				t.Fatalf("expected ErrConflict, got %#v", err)
			}

			if !testCase.conflict && err != nil {
				t.Fatalf("expected err to be nil, got %#v", err)
			}
		})
	}
}
