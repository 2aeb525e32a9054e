package protocol

// Even-AI command ids and statuses.
const (
	EvenAICmdCtrl  = 0x01
	EvenAICmdReply = 0x05

	EvenAIStatusEnter = 0x02
	EvenAIStatusExit  = 0x03
)

// EvenAICtrlPayload switches the display into (or out of) Even-AI mode.
func EvenAICtrlPayload(msgID uint8, status byte) []byte {
	p := appendField(nil, 1, EvenAICmdCtrl)
	p = appendField(p, 2, uint64(msgID))
	return appendBytes(p, 3, appendField(nil, 1, uint64(status)))
}

// EvenAIReplyPayload carries reply text inside a replyInfo sub-message.
// Text that would not fit in one frame is cut on a rune boundary.
func EvenAIReplyPayload(msgID uint8, text string, stream bool) []byte {
	build := func(text string) []byte {
		var enable uint64
		if stream {
			enable = 1
		}
		info := appendField(nil, 1, enable)
		info = appendBytes(info, 2, []byte(text))

		p := appendField(nil, 1, EvenAICmdReply)
		p = appendField(p, 2, uint64(msgID))
		return appendBytes(p, 7, info)
	}
	p := build(text)
	if over := len(p) - MaxPayloadSize; over > 0 {
		p = build(truncateUTF8(text, len(text)-over-2))
	}
	return p
}
