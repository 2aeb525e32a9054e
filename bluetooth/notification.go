package bluetooth

import (
	"context"
	"fmt"

	"github.com/livetranslator/g2link/protocol"
)

// SendNotification transfers doc as a file to the primary eye's
// notification characteristic, then writes the heartbeat to the other eye's
// content characteristic. The first failed write abandons the transfer.
func SendNotification(ctx context.Context, primary, other *Link, doc *protocol.NotificationDocument, pacing PacingConfig) error {
	data, err := doc.Marshal()
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	chunks := protocol.SplitChunks(data, protocol.NotificationChunkSize)
	if len(chunks) > 0xFF {
		return fmt.Errorf("%w: notification of %d bytes needs %d chunks", protocol.ErrPayloadTooLarge, len(data), len(chunks))
	}

	if err := primary.writeFrame(ctx, NotificationWriteUUID, protocol.ServiceFileControl, protocol.FileCheckPayload(data), 1, 1); err != nil {
		return err
	}
	if err := sleepCtx(ctx, pacing.FileCheckDelay); err != nil {
		return err
	}

	if err := primary.writeFrame(ctx, NotificationWriteUUID, protocol.ServiceFileControl, protocol.FileStartPayload(), 1, 1); err != nil {
		return err
	}
	if err := sleepCtx(ctx, pacing.StartDelay); err != nil {
		return err
	}

	total := uint8(len(chunks))
	for i, chunk := range chunks {
		if err := primary.writeFrame(ctx, NotificationWriteUUID, protocol.ServiceFileData, chunk, total, uint8(i+1)); err != nil {
			return err
		}
		if err := sleepCtx(ctx, pacing.ChunkDelay); err != nil {
			return err
		}
	}
	if err := sleepCtx(ctx, pacing.EndDelay); err != nil {
		return err
	}

	if err := primary.writeFrame(ctx, NotificationWriteUUID, protocol.ServiceFileControl, protocol.FileEndPayload(), 1, 1); err != nil {
		return err
	}
	if err := sleepCtx(ctx, pacing.HeartbeatDelay); err != nil {
		return err
	}

	return other.writeRaw(ctx, ContentWriteUUID, protocol.HeartbeatPacket())
}
