package tuple_test

import (
	"bytes"
	"errors"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jrife/rangeconf/storage/kv/tuple"
)

func TestAppendBytes(t *testing.T) {
	testCases := map[string]struct {
		data   []byte
		result []byte
	}{
		"empty":    {data: []byte{}, result: []byte{0x01, 0x00}},
		"plain":    {data: []byte("ab"), result: []byte{0x01, 'a', 'b', 0x00}},
		"escaped":  {data: []byte{'a', 0x00, 'b'}, result: []byte{0x01, 'a', 0x00, 0xff, 'b', 0x00}},
		"only-00s": {data: []byte{0x00, 0x00}, result: []byte{0x01, 0x00, 0xff, 0x00, 0xff, 0x00}},
	}

	for name, testCase := range testCases {
		t.Run(name, func(t *testing.T) {
			result := tuple.AppendBytes(nil, testCase.data)

			if diff := cmp.Diff(testCase.result, result); diff != "" {
				t.Fatal(diff)
			}

			rest, decoded, err := tuple.DecodeBytes(result)

			if err != nil {
				t.Fatalf("expected err to be nil, got %#v", err)
			}

			if len(rest) != 0 {
				t.Fatalf("expected no remainder, got %#v", rest)
			}

			if diff := cmp.Diff(testCase.data, decoded); diff != "" {
				t.Fatal(diff)
			}
		})
	}
}

func TestOrderPreserved(t *testing.T) {
	raw := [][]byte{
		{},
		{0x00},
		{0x00, 0x00},
		{0x00, 0x01},
		{0x01},
		[]byte("a"),
		[]byte("a\x00"),
		[]byte("a\x00b"),
		[]byte("a\x01"),
		[]byte("ab"),
		[]byte("b"),
		{0xff},
		{0xff, 0xff},
	}

	encoded := make([][]byte, len(raw))

	for i, data := range raw {
		encoded[i] = tuple.BytesCodec{}.EncodeKey(data)
	}

	if !sort.SliceIsSorted(raw, func(i, j int) bool { return bytes.Compare(raw[i], raw[j]) < 0 }) {
		t.Fatalf("raw keys are not sorted")
	}

	for i := 1; i < len(encoded); i++ {
		if bytes.Compare(encoded[i-1], encoded[i]) >= 0 {
			t.Fatalf("encoding of %q does not sort before encoding of %q", raw[i-1], raw[i])
		}
	}
}

func TestStrings(t *testing.T) {
	b := tuple.Pack("userRangeConfig", "a\x00b")

	rest, first, err := tuple.DecodeString(b)

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	rest, second, err := tuple.DecodeString(rest)

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if len(rest) != 0 {
		t.Fatalf("expected no remainder, got %#v", rest)
	}

	if diff := cmp.Diff([]string{"userRangeConfig", "a\x00b"}, []string{first, second}); diff != "" {
		t.Fatal(diff)
	}

	if diff := cmp.Diff(append([]byte("prefix/"), b...), tuple.Subspace([]byte("prefix/"), "userRangeConfig", "a\x00b")); diff != "" {
		t.Fatal(diff)
	}
}

func TestDecodeMalformed(t *testing.T) {
	testCases := map[string][]byte{
		"empty":          {},
		"wrong-code":     {0x02, 'a', 0x00},
		"no-terminator":  {0x01, 'a', 'b'},
		"trailing-bytes": {0x01, 'a', 0x00, 'b'},
	}

	for name, b := range testCases {
		t.Run(name, func(t *testing.T) {
			if _, err := (tuple.BytesCodec{}).DecodeKey(b); !errors.Is(err, tuple.ErrMalformed) {
				t.Fatalf("expected ErrMalformed, got %#v", err)
			}
		})
	}
}
