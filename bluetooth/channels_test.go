package bluetooth

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/livetranslator/g2link/protocol"
)

func newTestLinks(t *testing.T) (*FakeTransport, *Link, *Link) {
	t.Helper()
	ft := NewFakeTransport()
	ctx := context.Background()
	left, err := ft.Connect(ctx, ft.Devices[0])
	if err != nil {
		t.Fatalf("Connect left: %v", err)
	}
	right, err := ft.Connect(ctx, ft.Devices[1])
	if err != nil {
		t.Fatalf("Connect right: %v", err)
	}
	return ft, newLink(LeftEye, left), newLink(RightEye, right)
}

func parseWrites(t *testing.T, writes []Write) []*protocol.Frame {
	t.Helper()
	frames := make([]*protocol.Frame, len(writes))
	for i, w := range writes {
		f, err := protocol.ParsePacket(w.Data)
		if err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
		frames[i] = f
	}
	return frames
}

func TestAuthenticate(t *testing.T) {
	ft, left, _ := newTestLinks(t)
	left.counters.NextSeq()
	left.evenAIEntered = true

	if err := Authenticate(context.Background(), left, PacingConfig{}); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	writes := ft.Writes()
	if len(writes) != protocol.AuthPacketCount {
		t.Fatalf("Expected %d writes, got %d", protocol.AuthPacketCount, len(writes))
	}
	for i, f := range parseWrites(t, writes) {
		if writes[i].UUID != ContentWriteUUID || writes[i].WithResponse {
			t.Errorf("write %d: expected write-without-response on %s, got %+v", i, ContentWriteUUID, writes[i])
		}
		if f.Seq != uint8(i+1) {
			t.Errorf("write %d: expected seq %d, got %d", i, i+1, f.Seq)
		}
	}
	c := left.Counters()
	if c.Seq() != protocol.SeqFloor || c.MsgID() != protocol.MsgIDFloor {
		t.Errorf("Expected counters reset, got seq 0x%02x msgId 0x%02x", c.Seq(), c.MsgID())
	}
	if left.EvenAIEntered() {
		t.Error("Expected Even-AI latch reset after handshake")
	}
}

func TestAuthenticateAbortsOnWriteError(t *testing.T) {
	ft, left, _ := newTestLinks(t)
	boom := errors.New("gatt write failed")
	n := 0
	ft.FailWrite = func(Write) error {
		n++
		if n == 3 {
			return boom
		}
		return nil
	}
	err := Authenticate(context.Background(), left, PacingConfig{})
	if !errors.Is(err, ErrTransport) || !errors.Is(err, boom) {
		t.Fatalf("Expected transport error wrapping %v, got %v", boom, err)
	}
	if got := len(ft.Writes()); got != 2 {
		t.Errorf("Expected 2 writes before abort, got %d", got)
	}
}

func TestSendNotification(t *testing.T) {
	ft, left, right := newTestLinks(t)
	doc := protocol.NewNotificationDocument("Speech", "Hello", "", time.Unix(1700000000, 0))

	if err := SendNotification(context.Background(), right, left, doc, PacingConfig{}); err != nil {
		t.Fatalf("SendNotification: %v", err)
	}

	writes := ft.Writes()
	if len(writes) != 5 {
		t.Fatalf("Expected 5 writes, got %d", len(writes))
	}
	for i, w := range writes[:4] {
		if w.Address != right.Address() || w.UUID != NotificationWriteUUID {
			t.Errorf("write %d: expected right eye %s, got %s %s", i, NotificationWriteUUID, w.Address, w.UUID)
		}
	}
	hb := writes[4]
	if hb.Address != left.Address() || hb.UUID != ContentWriteUUID {
		t.Errorf("Expected heartbeat on left eye %s, got %s %s", ContentWriteUUID, hb.Address, hb.UUID)
	}
	if !bytes.Equal(hb.Data, protocol.HeartbeatPacket()) {
		t.Errorf("Expected heartbeat %x, got %x", protocol.HeartbeatPacket(), hb.Data)
	}
	if c := left.Counters(); c.Seq() != protocol.SeqFloor {
		t.Errorf("Expected heartbeat to leave the left seq at 0x%02x, got 0x%02x", protocol.SeqFloor, c.Seq())
	}
	if c := right.Counters(); c.Seq() != protocol.SeqFloor+4 {
		t.Errorf("Expected four notification frames on the right seq counter, got 0x%02x", c.Seq())
	}

	frames := parseWrites(t, writes[:4])
	wantSvc := []protocol.Service{
		protocol.ServiceFileControl, protocol.ServiceFileControl,
		protocol.ServiceFileData, protocol.ServiceFileControl,
	}
	for i, f := range frames {
		if f.Service != wantSvc[i] {
			t.Errorf("frame %d: expected service %s, got %s", i, wantSvc[i], f.Service)
		}
		if f.Seq != protocol.SeqFloor+uint8(i) {
			t.Errorf("frame %d: expected seq 0x%02x, got 0x%02x", i, protocol.SeqFloor+uint8(i), f.Seq)
		}
	}
	if !bytes.Equal(frames[1].Payload, []byte{0x01}) || !bytes.Equal(frames[3].Payload, []byte{0x02}) {
		t.Errorf("Expected START/END payloads, got %x / %x", frames[1].Payload, frames[3].Payload)
	}
	data, _ := doc.Marshal()
	if !bytes.Equal(frames[2].Payload, data) {
		t.Errorf("Expected DATA to carry the document, got %s", frames[2].Payload)
	}
	if !bytes.Equal(frames[0].Payload, protocol.FileCheckPayload(data)) {
		t.Errorf("Expected FILE_CHECK for the document")
	}
}

func TestSendNotificationChunks(t *testing.T) {
	ft, left, right := newTestLinks(t)
	doc := protocol.NewNotificationDocument("Speech", strings.Repeat("word ", 150), "", time.Now())
	data, _ := doc.Marshal()
	want := (len(data) + protocol.NotificationChunkSize - 1) / protocol.NotificationChunkSize

	if err := SendNotification(context.Background(), right, left, doc, PacingConfig{}); err != nil {
		t.Fatalf("SendNotification: %v", err)
	}
	frames := parseWrites(t, ft.WritesTo(right.Address()))
	var chunks []*protocol.Frame
	for _, f := range frames {
		if f.Service == protocol.ServiceFileData {
			chunks = append(chunks, f)
		}
	}
	if len(chunks) != want {
		t.Fatalf("Expected %d DATA frames, got %d", want, len(chunks))
	}
	var got []byte
	for i, f := range chunks {
		if f.TotalFragments != uint8(want) || f.FragmentIndex != uint8(i+1) {
			t.Errorf("chunk %d: expected %d/%d, got %d/%d", i, i+1, want, f.FragmentIndex, f.TotalFragments)
		}
		if len(f.Payload) > protocol.NotificationChunkSize {
			t.Errorf("chunk %d: %d bytes", i, len(f.Payload))
		}
		got = append(got, f.Payload...)
	}
	if !bytes.Equal(got, data) {
		t.Error("Expected chunks to reassemble the document")
	}
}

func TestSendNotificationAbandonsOnError(t *testing.T) {
	ft, left, right := newTestLinks(t)
	ft.FailWrite = func(w Write) error {
		if len(w.Data) > protocol.HeaderSize && w.Data[6] == protocol.ServiceFileData.Hi {
			return errors.New("link lost")
		}
		return nil
	}
	doc := protocol.NewNotificationDocument("Speech", "Hello", "", time.Now())
	if err := SendNotification(context.Background(), right, left, doc, PacingConfig{}); !errors.Is(err, ErrTransport) {
		t.Fatalf("Expected transport error, got %v", err)
	}
	if got := len(ft.Writes()); got != 2 {
		t.Errorf("Expected FILE_CHECK and START only, got %d writes", got)
	}
	if got := len(ft.WritesTo(left.Address())); got != 0 {
		t.Errorf("Expected no heartbeat, got %d writes to left eye", got)
	}
}

func TestSendTeleprompter(t *testing.T) {
	ft, left, _ := newTestLinks(t)
	layout := protocol.DefaultTeleprompterLayout()
	text := strings.Repeat("lorem ipsum dolor sit amet ", 40)

	if err := SendTeleprompter(context.Background(), left, text, layout, PacingConfig{}); err != nil {
		t.Fatalf("SendTeleprompter: %v", err)
	}
	frames := parseWrites(t, ft.Writes())
	if len(frames) != 3+protocol.MaxTeleprompterPages {
		t.Fatalf("Expected %d frames, got %d", 3+protocol.MaxTeleprompterPages, len(frames))
	}
	if frames[0].Service != protocol.ServiceDisplayConfig {
		t.Errorf("Expected display config first, got %s", frames[0].Service)
	}
	for i, f := range frames {
		if i > 0 && f.Service != protocol.ServiceTeleprompter {
			t.Errorf("frame %d: expected teleprompter service, got %s", i, f.Service)
		}
		if f.Seq != protocol.SeqFloor+uint8(i) {
			t.Errorf("frame %d: expected seq 0x%02x, got 0x%02x", i, protocol.SeqFloor+uint8(i), f.Seq)
		}
		fields, err := protocol.ParseFields(f.Payload)
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		id, _ := protocol.FindField(fields, 2)
		if id.Varint != uint64(protocol.MsgIDFloor)+uint64(i) {
			t.Errorf("frame %d: expected msgId 0x%02x, got 0x%02x", i, int(protocol.MsgIDFloor)+i, id.Varint)
		}
	}
	if !left.TeleprompterReady() {
		t.Error("Expected teleprompter latch set")
	}
}

func TestSendEvenAIEntersOnce(t *testing.T) {
	ft, left, _ := newTestLinks(t)
	ctx := context.Background()
	for _, text := range []string{"first", "second"} {
		if err := SendEvenAI(ctx, left, text, true, PacingConfig{}); err != nil {
			t.Fatalf("SendEvenAI: %v", err)
		}
	}
	frames := parseWrites(t, ft.Writes())
	if len(frames) != 3 {
		t.Fatalf("Expected 3 writes, got %d", len(frames))
	}
	wantCmd := []uint64{protocol.EvenAICmdCtrl, protocol.EvenAICmdReply, protocol.EvenAICmdReply}
	for i, f := range frames {
		if f.Service != protocol.ServiceEvenAI {
			t.Errorf("frame %d: expected Even-AI service, got %s", i, f.Service)
		}
		fields, _ := protocol.ParseFields(f.Payload)
		if cmd, _ := protocol.FindField(fields, 1); cmd.Varint != wantCmd[i] {
			t.Errorf("frame %d: expected command %d, got %d", i, wantCmd[i], cmd.Varint)
		}
	}
}

func TestSendEvenAILatchNotSetOnFailure(t *testing.T) {
	ft, left, _ := newTestLinks(t)
	ft.FailWrite = func(Write) error { return errors.New("busy") }
	if err := SendEvenAI(context.Background(), left, "hi", true, PacingConfig{}); err == nil {
		t.Fatal("Expected error")
	}
	if left.EvenAIEntered() {
		t.Error("Expected latch unset after failed CTRL-ENTER")
	}
}

func TestSleepCtxCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	if err := sleepCtx(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("Expected sleep to be interrupted")
	}
}
