package protocol

import "testing"

func TestCountersStartAtFloors(t *testing.T) {
	c := NewCounters()
	if c.Seq() != 0x08 {
		t.Errorf("Expected seq 0x08, got 0x%02x", c.Seq())
	}
	if c.MsgID() != 0x14 {
		t.Errorf("Expected msgId 0x14, got 0x%02x", c.MsgID())
	}
}

func TestCountersWrap(t *testing.T) {
	c := NewCounters()

	prev := c.NextSeq()
	for i := 0; i < 600; i++ {
		v := c.NextSeq()
		if v < SeqFloor {
			t.Fatalf("seq went below floor: 0x%02x", v)
		}
		if prev == 0xFF && v != 0x08 {
			t.Fatalf("Expected seq 0x08 after 0xff, got 0x%02x", v)
		}
		if prev != 0xFF && v != prev+1 {
			t.Fatalf("Expected seq 0x%02x after 0x%02x, got 0x%02x", prev+1, prev, v)
		}
		prev = v
	}

	prev = c.NextMsgID()
	for i := 0; i < 600; i++ {
		v := c.NextMsgID()
		if v < MsgIDFloor {
			t.Fatalf("msgId went below floor: 0x%02x", v)
		}
		if prev == 0xFF && v != 0x14 {
			t.Fatalf("Expected msgId 0x14 after 0xff, got 0x%02x", v)
		}
		prev = v
	}
}

func TestCountersReset(t *testing.T) {
	c := NewCounters()
	for i := 0; i < 10; i++ {
		c.NextSeq()
		c.NextMsgID()
	}
	c.Reset()
	if c.Seq() != SeqFloor || c.MsgID() != MsgIDFloor {
		t.Errorf("Expected reset counters, got seq 0x%02x msgId 0x%02x", c.Seq(), c.MsgID())
	}
}
