package bluetooth

import (
	"context"

	"github.com/livetranslator/g2link/protocol"
)

// SendEvenAI writes CTRL-ENTER the first time it is used on a link, then a
// REPLY frame carrying text.
func SendEvenAI(ctx context.Context, link *Link, text string, stream bool, pacing PacingConfig) error {
	if !link.evenAIEntered {
		payload := protocol.EvenAICtrlPayload(link.counters.NextMsgID(), protocol.EvenAIStatusEnter)
		if err := link.writeFrame(ctx, ContentWriteUUID, protocol.ServiceEvenAI, payload, 1, 1); err != nil {
			return err
		}
		link.evenAIEntered = true
		if err := sleepCtx(ctx, pacing.FrameDelay); err != nil {
			return err
		}
	}
	payload := protocol.EvenAIReplyPayload(link.counters.NextMsgID(), text, stream)
	return link.writeFrame(ctx, ContentWriteUUID, protocol.ServiceEvenAI, payload, 1, 1)
}
