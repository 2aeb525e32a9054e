package bluetooth

import (
	"context"

	"github.com/livetranslator/g2link/protocol"
)

// SendTeleprompter lays text out into pages and writes display-config,
// init, up to MaxTeleprompterPages pages and sync. Every send starts a fresh
// teleprompter session on the device.
func SendTeleprompter(ctx context.Context, link *Link, text string, layout protocol.TeleprompterLayout, pacing PacingConfig) error {
	pages := protocol.FormatTeleprompterText(text, layout.CharsPerLine, layout.LinesPerPage, layout.MinPages)
	if len(pages) > protocol.MaxTeleprompterPages {
		pages = pages[:protocol.MaxTeleprompterPages]
	}

	type frame struct {
		svc     protocol.Service
		payload func(msgID uint8) []byte
	}
	frames := []frame{
		{protocol.ServiceDisplayConfig, protocol.DisplayConfigPayload},
		{protocol.ServiceTeleprompter, func(id uint8) []byte {
			return protocol.TeleprompterInitPayload(id, layout, len(pages))
		}},
	}
	for i, page := range pages {
		frames = append(frames, frame{protocol.ServiceTeleprompter, func(id uint8) []byte {
			return protocol.TeleprompterPagePayload(id, i, page)
		}})
	}
	frames = append(frames, frame{protocol.ServiceTeleprompter, protocol.TeleprompterSyncPayload})

	for i, f := range frames {
		if i > 0 {
			if err := sleepCtx(ctx, pacing.FrameDelay); err != nil {
				return err
			}
		}
		payload := f.payload(link.counters.NextMsgID())
		if err := link.writeFrame(ctx, ContentWriteUUID, f.svc, payload, 1, 1); err != nil {
			return err
		}
	}
	link.teleprompterReady = true
	return nil
}
