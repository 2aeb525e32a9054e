package protocol

import (
	"fmt"
	"strings"
)

// Field is one decoded field of a payload. Payloads use the protobuf wire
// format subset of varint (type 0) and length-delimited (type 2) fields.
type Field struct {
	Num    int
	Wire   int
	Varint uint64
	Bytes  []byte
}

// ParseFields decodes the top-level fields of a payload.
func ParseFields(b []byte) ([]Field, error) {
	var fields []Field
	for len(b) > 0 {
		key, n, err := DecodeVarint(b)
		if err != nil {
			return nil, fmt.Errorf("field key: %w", err)
		}
		b = b[n:]
		f := Field{Num: int(key >> 3), Wire: int(key & 7)}
		switch f.Wire {
		case 0:
			f.Varint, n, err = DecodeVarint(b)
			if err != nil {
				return nil, fmt.Errorf("field %d: %w", f.Num, err)
			}
			b = b[n:]
		case 2:
			size, n, err := DecodeVarint(b)
			if err != nil {
				return nil, fmt.Errorf("field %d length: %w", f.Num, err)
			}
			b = b[n:]
			if uint64(len(b)) < size {
				return nil, fmt.Errorf("field %d: %w", f.Num, errVarintTruncated)
			}
			f.Bytes = b[:size]
			b = b[size:]
		default:
			return nil, fmt.Errorf("field %d: unsupported wire type %d", f.Num, f.Wire)
		}
		fields = append(fields, f)
	}
	return fields, nil
}

// FindField returns the first field with the given number.
func FindField(fields []Field, num int) (Field, bool) {
	for _, f := range fields {
		if f.Num == num {
			return f, true
		}
	}
	return Field{}, false
}

// FormatFields renders fields as "1=4 2=13 3=[08 01]" for logs and dumps.
func FormatFields(fields []Field) string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		if f.Wire == 0 {
			parts = append(parts, fmt.Sprintf("%d=%d", f.Num, f.Varint))
		} else {
			parts = append(parts, fmt.Sprintf("%d=[% x]", f.Num, f.Bytes))
		}
	}
	return strings.Join(parts, " ")
}
