// Package tuple implements an order-preserving encoding for
// byte string and string elements. Encoded elements sort in
// the same order as the raw values they encode and a sequence
// of encoded elements can be decoded without a length prefix,
// which makes the encoding suitable for building keys out of
// a subspace prefix followed by one or more elements.
//
// Each element starts with a type code and ends with a 0x00
// terminator. Any 0x00 inside the element is escaped as
// 0x00 0xff so the terminator can't occur inside it.
package tuple

import (
	"bytes"
	"errors"
	"fmt"
)

const (
	bytesCode  byte = 0x01
	stringCode byte = 0x02
	terminator byte = 0x00
	escaped00  byte = 0xff
)

// ErrMalformed is returned when a buffer does not
// contain a valid encoded element
var ErrMalformed = errors.New("malformed tuple element")

// AppendBytes appends the encoding of data to b
func AppendBytes(b []byte, data []byte) []byte {
	return appendElement(b, bytesCode, data)
}

// AppendString appends the encoding of s to b
func AppendString(b []byte, s string) []byte {
	return appendElement(b, stringCode, []byte(s))
}

func appendElement(b []byte, code byte, data []byte) []byte {
	b = append(b, code)

	for {
		i := bytes.IndexByte(data, terminator)

		if i == -1 {
			break
		}

		b = append(b, data[:i]...)
		b = append(b, terminator, escaped00)
		data = data[i+1:]
	}

	b = append(b, data...)

	return append(b, terminator)
}

// DecodeBytes decodes a byte string element from the start of b. It
// returns the remainder of b and the decoded bytes.
func DecodeBytes(b []byte) ([]byte, []byte, error) {
	return decodeElement(b, bytesCode)
}

// DecodeString decodes a string element from the start of b. It
// returns the remainder of b and the decoded string.
func DecodeString(b []byte) ([]byte, string, error) {
	rest, data, err := decodeElement(b, stringCode)

	return rest, string(data), err
}

func decodeElement(b []byte, code byte) ([]byte, []byte, error) {
	if len(b) == 0 || b[0] != code {
		return nil, nil, fmt.Errorf("%w: did not find type code %#x in buffer %#x", ErrMalformed, code, b)
	}

	b = b[1:]
	r := []byte{}

	for {
		i := bytes.IndexByte(b, terminator)

		if i == -1 {
			return nil, nil, fmt.Errorf("%w: did not find terminator in buffer %#x", ErrMalformed, b)
		}

		r = append(r, b[:i]...)

		if i+1 < len(b) && b[i+1] == escaped00 {
			r = append(r, terminator)
			b = b[i+2:]

			continue
		}

		return b[i+1:], r, nil
	}
}

// Pack encodes a sequence of string elements. It is used to
// derive subspace prefixes from names.
func Pack(elements ...string) []byte {
	var b []byte

	for _, element := range elements {
		b = AppendString(b, element)
	}

	return b
}

// Subspace returns prefix followed by the encoding of elements
func Subspace(prefix []byte, elements ...string) []byte {
	b := make([]byte, 0, len(prefix))
	b = append(b, prefix...)

	for _, element := range elements {
		b = AppendString(b, element)
	}

	return b
}

// BytesCodec encodes keys as a single byte string element
type BytesCodec struct{}

// EncodeKey encodes a key
func (BytesCodec) EncodeKey(key []byte) []byte {
	return AppendBytes(nil, key)
}

// DecodeKey decodes a key encoded by EncodeKey. The whole
// buffer must be consumed.
func (BytesCodec) DecodeKey(b []byte) ([]byte, error) {
	rest, key, err := DecodeBytes(b)

	if err != nil {
		return nil, err
	}

	if len(rest) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes after key", ErrMalformed, len(rest))
	}

	return key, nil
}
