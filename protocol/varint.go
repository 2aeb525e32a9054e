package protocol

import "errors"

var errVarintOverflow = errors.New("varint overflows uint64")
var errVarintTruncated = errors.New("varint truncated")

// AppendVarint appends the base-128 encoding of v to dst. Low groups come
// first and every byte but the last has the continuation bit set.
func AppendVarint(dst []byte, v uint64) []byte {
	for v > 0x7F {
		dst = append(dst, byte(v&0x7F)|0x80)
		v >>= 7
	}
	return append(dst, byte(v))
}

// EncodeVarint returns the base-128 encoding of v.
func EncodeVarint(v uint64) []byte {
	return AppendVarint(make([]byte, 0, 10), v)
}

// DecodeVarint reads a varint from the start of b and returns the value and
// the number of bytes consumed.
func DecodeVarint(b []byte) (uint64, int, error) {
	var v uint64
	for i, c := range b {
		if i == 10 || (i == 9 && c > 1) {
			return 0, 0, errVarintOverflow
		}
		v |= uint64(c&0x7F) << (7 * uint(i))
		if c&0x80 == 0 {
			return v, i + 1, nil
		}
	}
	return 0, 0, errVarintTruncated
}

// appendField writes a protobuf-style varint field (wire type 0).
func appendField(dst []byte, field int, v uint64) []byte {
	dst = AppendVarint(dst, uint64(field)<<3)
	return AppendVarint(dst, v)
}

// appendBytes writes a protobuf-style length-delimited field (wire type 2).
func appendBytes(dst []byte, field int, b []byte) []byte {
	dst = AppendVarint(dst, uint64(field)<<3|2)
	dst = AppendVarint(dst, uint64(len(b)))
	return append(dst, b...)
}
