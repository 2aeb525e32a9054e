package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Frame header constants.
const (
	FrameMarker  byte = 0xAA
	FrameVersion byte = 0x21

	HeaderSize  = 8
	TrailerSize = 2

	// MaxPayloadSize is bounded by the u8 length field, which also counts
	// the two CRC bytes.
	MaxPayloadSize = 0xFF - TrailerSize
)

var (
	ErrPayloadTooLarge = errors.New("payload exceeds frame capacity")
	ErrInvalidFrame    = errors.New("invalid frame")
)

// Service identifies the logical sub-protocol a frame belongs to.
type Service struct {
	Hi byte
	Lo byte
}

func (s Service) String() string {
	return fmt.Sprintf("%02x-%02x", s.Hi, s.Lo)
}

// Service pairs used on the wire.
var (
	ServiceAuthControl   = Service{0x80, 0x00}
	ServiceAuthSync      = Service{0x80, 0x20}
	ServiceFileControl   = Service{0xC4, 0x00}
	ServiceFileData      = Service{0xC5, 0x00}
	ServiceTeleprompter  = Service{0x06, 0x20}
	ServiceEvenAI        = Service{0x07, 0x20}
	ServiceDisplayConfig = Service{0x0E, 0x20}
)

// Frame is one BLE characteristic write unit.
type Frame struct {
	Seq            uint8
	TotalFragments uint8
	FragmentIndex  uint8
	Service        Service
	Payload        []byte
}

// Marshal serializes the frame: 8-byte header, payload, CRC-16 little-endian.
func (f *Frame) Marshal() ([]byte, error) {
	if len(f.Payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(f.Payload))
	}
	total, index := f.TotalFragments, f.FragmentIndex
	if total == 0 {
		total, index = 1, 1
	}

	buf := make([]byte, HeaderSize, HeaderSize+len(f.Payload)+TrailerSize)
	buf[0] = FrameMarker
	buf[1] = FrameVersion
	buf[2] = f.Seq
	buf[3] = byte(len(f.Payload) + TrailerSize)
	buf[4] = total
	buf[5] = index
	buf[6] = f.Service.Hi
	buf[7] = f.Service.Lo
	buf = append(buf, f.Payload...)
	return binary.LittleEndian.AppendUint16(buf, CRC16CCITT(f.Payload)), nil
}

// BuildPacket builds a single wire frame. A zero total is treated as a
// single-fragment message.
func BuildPacket(seq uint8, svc Service, payload []byte, total, index uint8) ([]byte, error) {
	f := Frame{Seq: seq, Service: svc, Payload: payload, TotalFragments: total, FragmentIndex: index}
	return f.Marshal()
}

// ParsePacket decodes a wire frame and verifies its header and CRC.
func ParsePacket(data []byte) (*Frame, error) {
	if len(data) < HeaderSize+TrailerSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidFrame, len(data))
	}
	if data[0] != FrameMarker || data[1] != FrameVersion {
		return nil, fmt.Errorf("%w: bad marker %02x %02x", ErrInvalidFrame, data[0], data[1])
	}
	length := int(data[3])
	if length < TrailerSize || HeaderSize+length != len(data) {
		return nil, fmt.Errorf("%w: length field %d for %d bytes", ErrInvalidFrame, length, len(data))
	}

	payload := data[HeaderSize : len(data)-TrailerSize]
	want := binary.LittleEndian.Uint16(data[len(data)-TrailerSize:])
	if got := CRC16CCITT(payload); got != want {
		return nil, fmt.Errorf("%w: crc %04x, expected %04x", ErrInvalidFrame, got, want)
	}

	return &Frame{
		Seq:            data[2],
		TotalFragments: data[4],
		FragmentIndex:  data[5],
		Service:        Service{data[6], data[7]},
		Payload:        append([]byte(nil), payload...),
	}, nil
}
