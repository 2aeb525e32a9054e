package bluetooth

import (
	"context"
	"time"

	"github.com/livetranslator/g2link/protocol"
)

// Authenticate writes the handshake frames to the link's content
// characteristic in order and resets the link's counters and latches. A
// write error aborts the handshake.
func Authenticate(ctx context.Context, link *Link, pacing PacingConfig) error {
	for i, pkt := range protocol.AuthPackets(time.Now()) {
		if i > 0 {
			if err := sleepCtx(ctx, pacing.AuthDelay); err != nil {
				return err
			}
		}
		if err := link.writeRaw(ctx, ContentWriteUUID, pkt); err != nil {
			return err
		}
	}
	link.reset()
	return nil
}
