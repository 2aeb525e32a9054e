package protocol

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestNotificationDocumentMarshal(t *testing.T) {
	now := time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC)
	doc := NewNotificationDocument("Speech", "Hello", "", now)

	if doc.MsgID != 10000 {
		t.Errorf("Expected msg id 10000, got %d", doc.MsgID)
	}
	if doc.ISODate != "20231114T221320" {
		t.Errorf("Expected date 20231114T221320, got %s", doc.ISODate)
	}

	data, err := doc.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"android_notification":{"msg_id":10000,"action":0,"app_identifier":"com.live.translator",` +
		`"title":"Speech","subtitle":"","message":"Hello","time_s":1700000000,"date":"20231114T221320",` +
		`"display_name":"Live Translator"}}`
	if string(data) != want {
		t.Errorf("Expected %s, got %s", want, data)
	}
	if len(data) >= NotificationChunkSize {
		t.Errorf("Expected a single-chunk document, got %d bytes", len(data))
	}
}

func TestNotificationDocumentKeepsUnicode(t *testing.T) {
	doc := NewNotificationDocument("Alice", "hola\n→ hello <b>", "", time.Unix(0, 0))
	data, err := doc.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !json.Valid(data) {
		t.Fatalf("Invalid JSON: %s", data)
	}
	if !strings.Contains(string(data), "→ hello <b>") {
		t.Errorf("Expected unescaped text in %s", data)
	}
}

func TestFileCheckPayload(t *testing.T) {
	data := []byte("hello world")
	p := FileCheckPayload(data)

	if len(p) != 13+FileNameFieldSize {
		t.Fatalf("Expected %d bytes, got %d", 13+FileNameFieldSize, len(p))
	}
	if v := binary.LittleEndian.Uint32(p[0:4]); v != 0x100 {
		t.Errorf("Expected marker 0x100, got 0x%x", v)
	}
	if v := binary.LittleEndian.Uint32(p[4:8]); v != 0xB00 {
		t.Errorf("Expected size 0xb00, got 0x%x", v)
	}
	if v := binary.LittleEndian.Uint32(p[8:12]); v != 0xC8F77900 {
		t.Errorf("Expected checksum 0xc8f77900, got 0x%x", v)
	}
	if p[12] != 0xFF {
		t.Errorf("Expected extra 0xff, got 0x%02x", p[12])
	}
	name := p[13:]
	if !bytes.HasPrefix(name, []byte(NotificationFileName)) {
		t.Errorf("Expected filename prefix, got %q", name)
	}
	for i := len(NotificationFileName); i < FileNameFieldSize; i++ {
		if name[i] != 0 {
			t.Fatalf("Expected zero padding at %d, got 0x%02x", i, name[i])
		}
	}
}

func TestSplitChunks(t *testing.T) {
	for _, n := range []int{1, 233, 234, 235, 468, 469, 1000} {
		data := bytes.Repeat([]byte{'x'}, n)
		chunks := SplitChunks(data, NotificationChunkSize)
		want := (n + NotificationChunkSize - 1) / NotificationChunkSize
		if len(chunks) != want {
			t.Errorf("len %d: expected %d chunks, got %d", n, want, len(chunks))
		}
		total := 0
		for _, c := range chunks {
			if len(c) > NotificationChunkSize {
				t.Errorf("len %d: chunk of %d bytes", n, len(c))
			}
			total += len(c)
		}
		if total != n {
			t.Errorf("len %d: chunks cover %d bytes", n, total)
		}
	}
}

func TestHeartbeatPacket(t *testing.T) {
	want, _ := hex.DecodeString("aa210e0601018020080e106b6a00e174")
	pkt := HeartbeatPacket()
	if !bytes.Equal(pkt, want) {
		t.Fatalf("Expected heartbeat %x, got %x", want, pkt)
	}

	// callers get their own copy
	pkt[0] = 0
	if HeartbeatPacket()[0] != FrameMarker {
		t.Error("Expected HeartbeatPacket to return a fresh copy")
	}
}

func TestNotificationDocumentKeepsHTMLCharacters(t *testing.T) {
	doc := NewNotificationDocument("Q&A", "<b>1 & 2</b>", "", time.Unix(0, 0))
	data, err := doc.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for _, want := range []string{`"title":"Q&A"`, `"message":"<b>1 & 2</b>"`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("Expected %s in %s", want, data)
		}
	}
	if strings.Contains(string(data), `\u00`) {
		t.Errorf("Expected no escaped characters in %s", data)
	}
}
