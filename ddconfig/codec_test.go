package ddconfig_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jrife/rangeconf/ddconfig"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestCodecRoundTrip(t *testing.T) {
	configs := append(grid(), ddconfig.RangeConfig{ReplicationFactor: ddconfig.Some(-1)})

	for _, config := range configs {
		data, err := ddconfig.Codec{}.Marshal(config)

		if err != nil {
			t.Fatalf("expected err to be nil, got %#v", err)
		}

		decoded, err := ddconfig.Codec{}.Unmarshal(data)

		if err != nil {
			t.Fatalf("could not decode %s: %#v", config, err)
		}

		if diff := cmp.Diff(config, decoded); diff != "" {
			t.Fatal(diff)
		}
	}
}

func TestCodecLayout(t *testing.T) {
	testCases := map[string]struct {
		config ddconfig.RangeConfig
		data   []byte
	}{
		"default": {
			config: ddconfig.RangeConfig{},
			data:   []byte{0x01, 0x08, 0x00},
		},
		"forced-with-replication": {
			config: ddconfig.RangeConfig{ForceBoundary: true, ReplicationFactor: ddconfig.Some(3)},
			data:   []byte{0x01, 0x08, 0x01, 0x10, 0x06},
		},
	}

	for name, testCase := range testCases {
		t.Run(name, func(t *testing.T) {
			data, err := ddconfig.Codec{}.Marshal(testCase.config)

			if err != nil {
				t.Fatalf("expected err to be nil, got %#v", err)
			}

			if diff := cmp.Diff(testCase.data, data); diff != "" {
				t.Fatal(diff)
			}
		})
	}
}

func TestCodecCompatibility(t *testing.T) {
	newer := protowire.AppendVarint(nil, 2)
	newer = protowire.AppendTag(newer, 1, protowire.VarintType)
	newer = protowire.AppendVarint(newer, 1)
	newer = protowire.AppendTag(newer, 7, protowire.BytesType)
	newer = protowire.AppendBytes(newer, []byte("some future field"))
	newer = protowire.AppendTag(newer, 2, protowire.VarintType)
	newer = protowire.AppendVarint(newer, protowire.EncodeZigZag(4))
	newer = protowire.AppendTag(newer, 8, protowire.Fixed64Type)
	newer = protowire.AppendFixed64(newer, 42)

	testCases := map[string]struct {
		data   []byte
		result ddconfig.RangeConfig
	}{
		"unknown-fields-skipped": {
			data:   newer,
			result: ddconfig.RangeConfig{ForceBoundary: true, ReplicationFactor: ddconfig.Some(4)},
		},
		"missing-fields-default": {
			data:   []byte{0x01},
			result: ddconfig.RangeConfig{},
		},
	}

	for name, testCase := range testCases {
		t.Run(name, func(t *testing.T) {
			result, err := ddconfig.Codec{}.Unmarshal(testCase.data)

			if err != nil {
				t.Fatalf("expected err to be nil, got %#v", err)
			}

			if diff := cmp.Diff(testCase.result, result); diff != "" {
				t.Fatal(diff)
			}
		})
	}
}

func TestCodecCorrupt(t *testing.T) {
	testCases := map[string][]byte{
		"empty":                {},
		"truncated-version":    {0x80},
		"truncated-tag":        {0x01, 0x80},
		"truncated-value":      {0x01, 0x08},
		"truncated-bytes":      {0x01, 0x3a, 0x05, 'a'},
		"force-as-fixed32":     {0x01, 0x0d, 0x01, 0x00, 0x00, 0x00},
		"replication-as-bytes": {0x01, 0x12, 0x01, 0x05},
		"both-mistyped":        {0x01, 0x12, 0x01, 0x05, 0x0d, 0x01, 0x00, 0x00, 0x00},
	}

	for name, data := range testCases {
		t.Run(name, func(t *testing.T) {
			if _, err := (ddconfig.Codec{}).Unmarshal(data); err == nil {
				t.Fatalf("expected an error decoding %#v", data)
			}
		})
	}

	if _, err := (ddconfig.Codec{}).Unmarshal([]byte{0x00}); !errors.Is(err, ddconfig.ErrUnsupportedVersion) {
		t.Fatalf("expected ErrUnsupportedVersion, got %#v", err)
	}
}
