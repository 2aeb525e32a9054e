package protocol

import (
	"bytes"
	"encoding/hex"
	"errors"
	"testing"
)

func TestBuildPacketLayout(t *testing.T) {
	payload := []byte{0x08, 0x04, 0x10, 0x0D, 0x1A, 0x04, 0x08, 0x01, 0x10, 0x04}
	pkt, err := BuildPacket(1, ServiceAuthControl, payload, 1, 1)
	if err != nil {
		t.Fatalf("BuildPacket: %v", err)
	}
	want, _ := hex.DecodeString("aa21010c010180000804100d1a0408011004a704")
	if !bytes.Equal(pkt, want) {
		t.Errorf("Expected %x, got %x", want, pkt)
	}
}

func TestBuildPacketLengthField(t *testing.T) {
	for _, n := range []int{0, 1, 2, 100, 234, MaxPayloadSize} {
		payload := bytes.Repeat([]byte{0x5A}, n)
		pkt, err := BuildPacket(0x08, ServiceFileData, payload, 3, 2)
		if err != nil {
			t.Fatalf("BuildPacket(%d bytes): %v", n, err)
		}
		if int(pkt[3]) != n+2 {
			t.Errorf("Expected length field %d, got %d", n+2, pkt[3])
		}
		if len(pkt) != HeaderSize+n+TrailerSize {
			t.Errorf("Expected %d bytes, got %d", HeaderSize+n+TrailerSize, len(pkt))
		}
	}
}

func TestBuildPacketTooLarge(t *testing.T) {
	_, err := BuildPacket(0x08, ServiceFileData, make([]byte, MaxPayloadSize+1), 1, 1)
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Errorf("Expected ErrPayloadTooLarge, got %v", err)
	}
}

func TestParsePacketRoundTrip(t *testing.T) {
	f := &Frame{
		Seq:            0x42,
		TotalFragments: 4,
		FragmentIndex:  3,
		Service:        ServiceFileData,
		Payload:        []byte("chunk data here"),
	}
	pkt, err := f.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	got, err := ParsePacket(pkt)
	if err != nil {
		t.Fatalf("ParsePacket: %v", err)
	}
	if got.Seq != f.Seq || got.TotalFragments != 4 || got.FragmentIndex != 3 || got.Service != ServiceFileData {
		t.Errorf("Header mismatch: %+v", got)
	}
	if !bytes.Equal(got.Payload, f.Payload) {
		t.Errorf("Expected payload %q, got %q", f.Payload, got.Payload)
	}
}

func TestZeroFragmentsDefaultToSingle(t *testing.T) {
	f := &Frame{Seq: 1, Service: ServiceFileControl, Payload: []byte{0x01}}
	pkt, err := f.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if pkt[4] != 1 || pkt[5] != 1 {
		t.Errorf("Expected fragments 1/1, got %d/%d", pkt[5], pkt[4])
	}
}

func TestParsePacketRejectsCorruption(t *testing.T) {
	good, _ := BuildPacket(0x08, ServiceFileControl, []byte{0x01}, 1, 1)

	tests := []struct {
		name   string
		mutate func([]byte) []byte
	}{
		{"too short", func(b []byte) []byte { return b[:5] }},
		{"bad marker", func(b []byte) []byte { b[0] = 0xAB; return b }},
		{"bad version", func(b []byte) []byte { b[1] = 0x22; return b }},
		{"bad length", func(b []byte) []byte { b[3] = 9; return b }},
		{"bad crc", func(b []byte) []byte { b[len(b)-1] ^= 0xFF; return b }},
		{"bad payload", func(b []byte) []byte { b[HeaderSize] = 0x02; return b }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pkt := tt.mutate(append([]byte(nil), good...))
			if _, err := ParsePacket(pkt); !errors.Is(err, ErrInvalidFrame) {
				t.Errorf("Expected ErrInvalidFrame, got %v", err)
			}
		})
	}
}
