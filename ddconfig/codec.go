package ddconfig

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

const (
	// CodecVersion is the format version written by Codec
	CodecVersion = 1

	forceBoundaryField     protowire.Number = 1
	replicationFactorField protowire.Number = 2
)

// ErrUnsupportedVersion is returned when decoding a value whose
// format version is unknown
var ErrUnsupportedVersion = errors.New("unsupported range config version")

// Codec encodes RangeConfig values. An encoded value is a varint
// format version followed by protobuf wire format fields. Fields
// the decoder does not know are skipped and missing fields keep
// their default.
type Codec struct{}

// Marshal encodes c
func (Codec) Marshal(c RangeConfig) ([]byte, error) {
	b := protowire.AppendVarint(nil, CodecVersion)
	b = protowire.AppendTag(b, forceBoundaryField, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeBool(c.ForceBoundary))

	if n, ok := c.ReplicationFactor.Get(); ok {
		b = protowire.AppendTag(b, replicationFactorField, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeZigZag(int64(n)))
	}

	return b, nil
}

// Unmarshal decodes a value encoded by Marshal
func (Codec) Unmarshal(data []byte) (RangeConfig, error) {
	var c RangeConfig

	version, n := protowire.ConsumeVarint(data)

	if n < 0 {
		return c, fmt.Errorf("could not read version: %w", protowire.ParseError(n))
	}

	if version == 0 {
		return c, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}

	data = data[n:]

	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)

		if n < 0 {
			return c, fmt.Errorf("could not read field tag: %w", protowire.ParseError(n))
		}

		data = data[n:]

		if (num == forceBoundaryField || num == replicationFactorField) && typ != protowire.VarintType {
			return c, fmt.Errorf("field %d has wire type %d, expected varint", num, typ)
		}

		switch num {
		case forceBoundaryField:
			var v uint64
			v, n = protowire.ConsumeVarint(data)
			c.ForceBoundary = protowire.DecodeBool(v)
		case replicationFactorField:
			var v uint64
			v, n = protowire.ConsumeVarint(data)
			c.ReplicationFactor = Some(int(protowire.DecodeZigZag(v)))
		default:
			n = protowire.ConsumeFieldValue(num, typ, data)
		}

		if n < 0 {
			return c, fmt.Errorf("could not read field %d: %w", num, protowire.ParseError(n))
		}

		data = data[n:]
	}

	return c, nil
}
