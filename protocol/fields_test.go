package protocol

import "testing"

func TestParseFields(t *testing.T) {
	p := []byte{0x08, 0x04, 0x10, 0x0D, 0x1A, 0x04, 0x08, 0x01, 0x10, 0x04}
	fields, err := ParseFields(p)
	if err != nil {
		t.Fatalf("ParseFields: %v", err)
	}
	if len(fields) != 3 {
		t.Fatalf("Expected 3 fields, got %d", len(fields))
	}
	if got := FormatFields(fields); got != "1=4 2=13 3=[08 01 10 04]" {
		t.Errorf("Expected %q, got %q", "1=4 2=13 3=[08 01 10 04]", got)
	}
	if _, ok := FindField(fields, 9); ok {
		t.Error("Expected field 9 to be absent")
	}
}

func TestParseFieldsErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"truncated key", []byte{0x80}},
		{"truncated varint", []byte{0x08, 0x80}},
		{"short bytes", []byte{0x1A, 0x05, 0x01}},
		{"fixed64 wire type", []byte{0x09, 0x00}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseFields(tt.data); err == nil {
				t.Errorf("Expected error for % x", tt.data)
			}
		})
	}
}
