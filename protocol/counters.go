package protocol

// Counter ranges. The values below the floors are used by the
// authentication handshake.
const (
	SeqFloor   uint8 = 0x08
	MsgIDFloor uint8 = 0x14
)

// Counters holds the per-eye sequence and message id counters. A Counters
// value is not safe for concurrent use; the session run loop is its only
// writer.
type Counters struct {
	seq   uint8
	msgID uint8
}

// NewCounters returns counters at their post-handshake initial values.
func NewCounters() Counters {
	return Counters{seq: SeqFloor, msgID: MsgIDFloor}
}

// Seq returns the current sequence number without advancing it.
func (c *Counters) Seq() uint8 { return c.seq }

// MsgID returns the current message id without advancing it.
func (c *Counters) MsgID() uint8 { return c.msgID }

// NextSeq returns the current sequence number and advances it.
func (c *Counters) NextSeq() uint8 {
	v := c.seq
	c.seq = wrapNext(c.seq, SeqFloor)
	return v
}

// NextMsgID returns the current message id and advances it.
func (c *Counters) NextMsgID() uint8 {
	v := c.msgID
	c.msgID = wrapNext(c.msgID, MsgIDFloor)
	return v
}

// Reset puts both counters back to their initial values.
func (c *Counters) Reset() {
	*c = NewCounters()
}

func wrapNext(v, floor uint8) uint8 {
	if v == 0xFF || v < floor {
		return floor
	}
	return v + 1
}
