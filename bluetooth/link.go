package bluetooth

import (
	"context"
	"fmt"

	"github.com/livetranslator/g2link/protocol"
)

// Link is the per-eye session state: the connection, its counters and the
// channel latches. Only the Manager run loop touches a Link.
type Link struct {
	Eye  Eye
	conn Conn

	counters protocol.Counters

	// evenAIEntered is set once CTRL-ENTER has been written on this link.
	evenAIEntered bool
	// teleprompterReady is set after the first complete teleprompter send.
	teleprompterReady bool
}

func newLink(eye Eye, conn Conn) *Link {
	return &Link{Eye: eye, conn: conn, counters: protocol.NewCounters()}
}

// Address returns the peer address.
func (l *Link) Address() string { return l.conn.Address() }

// Counters returns a copy of the link counters.
func (l *Link) Counters() protocol.Counters { return l.counters }

// EvenAIEntered reports whether CTRL-ENTER has been sent on this link.
func (l *Link) EvenAIEntered() bool { return l.evenAIEntered }

// TeleprompterReady reports whether a teleprompter send has completed.
func (l *Link) TeleprompterReady() bool { return l.teleprompterReady }

// reset puts counters and latches back to their post-handshake values.
func (l *Link) reset() {
	l.counters.Reset()
	l.evenAIEntered = false
	l.teleprompterReady = false
}

func (l *Link) writeRaw(ctx context.Context, uuid string, pkt []byte) error {
	if err := l.conn.WriteCharacteristic(ctx, uuid, pkt, false); err != nil {
		return fmt.Errorf("%w: %s eye: %w", ErrTransport, l.Eye, err)
	}
	return nil
}

// writeFrame frames payload with the next sequence number and writes it.
func (l *Link) writeFrame(ctx context.Context, uuid string, svc protocol.Service, payload []byte, total, index uint8) error {
	pkt, err := protocol.BuildPacket(l.counters.NextSeq(), svc, payload, total, index)
	if err != nil {
		return err
	}
	return l.writeRaw(ctx, uuid, pkt)
}

func (l *Link) close() error {
	if err := l.conn.Disconnect(); err != nil {
		return fmt.Errorf("%s eye: %w", l.Eye, err)
	}
	return nil
}
