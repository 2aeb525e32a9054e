package protocol

import (
	"encoding/binary"
	"time"

	"github.com/goccy/go-json"
)

// Notification transfer constants.
const (
	NotificationChunkSize = 234
	FileNameFieldSize     = 80
	NotificationFileName  = "user/notify_whitelist.json"

	fileCheckMarker uint32 = 0x100
	fileStart       byte   = 0x01
	fileEnd         byte   = 0x02

	DefaultAppIdentifier = "com.live.translator"
	DefaultDisplayName   = "Live Translator"

	isoDateLayout = "20060102T150405"
)

// NotificationDocument is the JSON file pushed to the notification channel.
type NotificationDocument struct {
	MsgID         uint32 `json:"msg_id"`
	Action        int    `json:"action"`
	AppIdentifier string `json:"app_identifier"`
	Title         string `json:"title"`
	Subtitle      string `json:"subtitle"`
	Message       string `json:"message"`
	EpochSeconds  uint32 `json:"time_s"`
	ISODate       string `json:"date"`
	DisplayName   string `json:"display_name"`
}

type notificationEnvelope struct {
	Notification *NotificationDocument `json:"android_notification"`
}

// NewNotificationDocument fills in the timestamps, message id and app
// identity for a notification created at now.
func NewNotificationDocument(title, message, subtitle string, now time.Time) *NotificationDocument {
	ts := uint32(now.Unix())
	return &NotificationDocument{
		MsgID:         10000 + ts%10000,
		AppIdentifier: DefaultAppIdentifier,
		Title:         title,
		Subtitle:      subtitle,
		Message:       message,
		EpochSeconds:  ts,
		ISODate:       now.Format(isoDateLayout),
		DisplayName:   DefaultDisplayName,
	}
}

// Marshal serializes the document as compact JSON.
func (d *NotificationDocument) Marshal() ([]byte, error) {
	return json.MarshalWithOption(notificationEnvelope{Notification: d}, json.DisableHTMLEscape())
}

// FileCheckPayload builds the FILE_CHECK payload announcing data.
func FileCheckPayload(data []byte) []byte {
	size, checksum, extra := FileCheckFields(data)

	p := make([]byte, 0, 13+FileNameFieldSize)
	p = binary.LittleEndian.AppendUint32(p, fileCheckMarker)
	p = binary.LittleEndian.AppendUint32(p, size)
	p = binary.LittleEndian.AppendUint32(p, checksum)
	p = append(p, extra)

	var name [FileNameFieldSize]byte
	copy(name[:], NotificationFileName)
	return append(p, name[:]...)
}

// FileStartPayload and FileEndPayload bracket the DATA chunks.
func FileStartPayload() []byte { return []byte{fileStart} }
func FileEndPayload() []byte   { return []byte{fileEnd} }

// SplitChunks splits data into consecutive pieces of at most size bytes.
func SplitChunks(data []byte, size int) [][]byte {
	chunks := make([][]byte, 0, (len(data)+size-1)/size)
	for start := 0; start < len(data); start += size {
		end := min(start+size, len(data))
		chunks = append(chunks, data[start:end])
	}
	return chunks
}

// heartbeatFrame is the keepalive written raw to the opposite eye after a
// notification transfer. The firmware expects these exact bytes; the length
// byte counts only the payload and the trailer is not a CRC16CCITT of it, so
// it is not built with BuildPacket.
var heartbeatFrame = []byte{
	0xAA, 0x21, 0x0E, 0x06, 0x01, 0x01, 0x80, 0x20,
	0x08, 0x0E, 0x10, 0x6B, 0x6A, 0x00,
	0xE1, 0x74,
}

// HeartbeatPacket returns a copy of the heartbeat frame.
func HeartbeatPacket() []byte {
	return append([]byte(nil), heartbeatFrame...)
}
