package ddconfig

import (
	"fmt"
	"strconv"

	"go.uber.org/zap/zapcore"
)

// OptionalInt is an int that may be absent
type OptionalInt struct {
	value   int
	present bool
}

// Some returns a present OptionalInt holding n
func Some(n int) OptionalInt {
	return OptionalInt{value: n, present: true}
}

// None returns an absent OptionalInt
func None() OptionalInt {
	return OptionalInt{}
}

// Get returns the value and whether it is present
func (o OptionalInt) Get() (int, bool) {
	return o.value, o.present
}

// Present reports whether a value is present
func (o OptionalInt) Present() bool {
	return o.present
}

// Or returns the value if present or def otherwise
func (o OptionalInt) Or(def int) int {
	if !o.present {
		return def
	}

	return o.value
}

// Equal reports whether both are absent or both hold the same value
func (o OptionalInt) Equal(other OptionalInt) bool {
	if o.present != other.present {
		return false
	}

	return !o.present || o.value == other.value
}

func (o OptionalInt) String() string {
	if !o.present {
		return "[not set]"
	}

	return strconv.Itoa(o.value)
}

// RangeConfig holds the overrides attached to a range. The zero
// value is the configuration of any key that no boundary covers.
type RangeConfig struct {
	// ForceBoundary keeps the range from being merged with its
	// neighbours
	ForceBoundary bool
	// ReplicationFactor overrides the replication factor of the
	// range when present
	ReplicationFactor OptionalInt
}

// Update returns c with the fields set in delta applied on top.
// A forced boundary stays forced and an absent replication factor
// in delta keeps the current one.
func (c RangeConfig) Update(delta RangeConfig) RangeConfig {
	updated := c
	updated.ForceBoundary = c.ForceBoundary || delta.ForceBoundary

	if delta.ReplicationFactor.Present() {
		updated.ReplicationFactor = delta.ReplicationFactor
	}

	return updated
}

// Split returns the configuration a new boundary inherits from
// the range containing it. A forced boundary is not inherited.
func (c RangeConfig) Split() RangeConfig {
	split := c
	split.ForceBoundary = false

	return split
}

// CanMerge reports whether the range configured by next can be
// absorbed by the range before it configured by c
func (c RangeConfig) CanMerge(next RangeConfig) bool {
	if c.ForceBoundary || next.ForceBoundary {
		return false
	}

	return c.ReplicationFactor.Equal(next.ReplicationFactor)
}

// Equal compares every field
func (c RangeConfig) Equal(other RangeConfig) bool {
	return c.ForceBoundary == other.ForceBoundary && c.ReplicationFactor.Equal(other.ReplicationFactor)
}

func (c RangeConfig) String() string {
	return fmt.Sprintf("forceBoundary=%t replication=%s", c.ForceBoundary, c.ReplicationFactor)
}

// MarshalLogObject implements zapcore.ObjectMarshaler
func (c RangeConfig) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddBool("forceBoundary", c.ForceBoundary)

	if n, ok := c.ReplicationFactor.Get(); ok {
		enc.AddInt("replication", n)
	}

	return nil
}
