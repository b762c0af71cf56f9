package ddconfig

import (
	"bytes"

	"github.com/jrife/rangeconf/storage/kv"
	"go.uber.org/zap/zapcore"
)

// Span is a contiguous key span [Begin, End) and the configuration
// in effect for all of it. A nil End means the span is unbounded.
type Span struct {
	Begin  []byte
	End    []byte
	Config RangeConfig
}

// MarshalLogObject implements zapcore.ObjectMarshaler
func (span Span) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddBinary("begin", span.Begin)
	enc.AddBinary("end", span.End)

	return enc.AddObject("config", span.Config)
}

// Spans splits [begin, end) into the spans of m that cover it. Keys
// before the first boundary get the zero RangeConfig. A nil end means
// the end of the map.
func Spans(txn kv.Transaction, m *RangeConfigMap, begin, end []byte) ([]Span, error) {
	if begin == nil {
		begin = []byte{}
	}

	if end != nil && bytes.Compare(begin, end) >= 0 {
		return []Span{}, nil
	}

	first, _, err := m.RangeFor(txn, begin)

	if err != nil {
		return nil, err
	}

	entries, err := m.GetRange(txn, begin, end)

	if err != nil {
		return nil, err
	}

	return spans(first.Value, entries, begin, end), nil
}

// SnapshotSpans is like Spans but reads from a snapshot
func SnapshotSpans(snapshot *RangeConfigMapSnapshot, begin, end []byte) []Span {
	if begin == nil {
		begin = []byte{}
	}

	if end != nil && bytes.Compare(begin, end) >= 0 {
		return []Span{}
	}

	first, _ := snapshot.RangeFor(begin)

	return spans(first.Value, snapshot.Ranges(begin, end), begin, end)
}

func spans(first RangeConfig, entries []RangeConfigEntry, begin, end []byte) []Span {
	result := []Span{}
	current := Span{Begin: begin, Config: first}

	for _, entry := range entries {
		if bytes.Equal(entry.Boundary, begin) {
			continue
		}

		current.End = entry.Boundary
		result = append(result, current)
		current = Span{Begin: entry.Boundary, Config: entry.Value}
	}

	current.End = end

	return append(result, current)
}
