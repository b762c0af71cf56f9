package keys

import (
	"bytes"
)

// Key is a single key
type Key []byte

// Compare compares two keys
// -1 means a < b
// 1 means a > b
// 0 means a = b
func Compare(a, b Key) int {
	return bytes.Compare(a, b)
}

// Inc returns the smallest key that is greater than
// every key prefixed by key. It returns nil if no
// such key exists, which happens when every byte of
// key is 0xff.
func Inc(key Key) Key {
	after := make(Key, len(key))

	copy(after, key)

	return inc(after)
}

// Next returns the key that directly follows key such
// that no other key can exist between the two.
func Next(key Key) Key {
	return after(key)
}
