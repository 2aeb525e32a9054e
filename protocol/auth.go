package protocol

import "time"

// authTxID is the fixed transaction id carried by time-sync packets.
var authTxID = []byte{0xE8, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x01}

// AuthPacketCount is the number of frames in the handshake.
const AuthPacketCount = 7

// Handshake command ids.
const (
	authCmdCapability   = 0x04
	authCmdPairing      = 0x05
	authCmdTimeSync     = 0x80
	authTimeSyncField   = 0x80
	authFirstMsgID      = 0x0D
	authCapabilityField = 3
	authPairingField    = 4
)

type authStep struct {
	svc   Service
	build func(msgID uint8, now time.Time) []byte
}

var authSteps = [AuthPacketCount]authStep{
	{ServiceAuthControl, capabilityPayload},
	{ServiceAuthSync, pairingPayload(0x02)},
	{ServiceAuthSync, timeSyncPayload},
	{ServiceAuthControl, capabilityPayload},
	{ServiceAuthSync, pairingPayload(0x01)},
	{ServiceAuthSync, timeSyncPayload},
	{ServiceAuthControl, capabilityPayload},
}

func capabilityPayload(msgID uint8, _ time.Time) []byte {
	p := appendField(nil, 1, authCmdCapability)
	p = appendField(p, 2, uint64(msgID))
	return appendBytes(p, authCapabilityField, []byte{0x08, 0x01, 0x10, 0x04})
}

func pairingPayload(role byte) func(uint8, time.Time) []byte {
	return func(msgID uint8, _ time.Time) []byte {
		p := appendField(nil, 1, authCmdPairing)
		p = appendField(p, 2, uint64(msgID))
		return appendBytes(p, authPairingField, []byte{0x08, role})
	}
}

func timeSyncPayload(msgID uint8, now time.Time) []byte {
	inner := appendField(nil, 1, uint64(now.Unix()))
	inner = append(inner, 0x10)
	inner = append(inner, authTxID...)

	p := appendField(nil, 1, authCmdTimeSync)
	p = appendField(p, 2, uint64(msgID))
	return appendBytes(p, authTimeSyncField, inner)
}

// AuthPackets returns the seven handshake frames in the order they must be
// written. Sequence numbers run 1..7 and message ids 0x0D..0x13, just below
// the session counter floors.
func AuthPackets(now time.Time) [][]byte {
	pkts := make([][]byte, 0, AuthPacketCount)
	for i, step := range authSteps {
		payload := step.build(authFirstMsgID+uint8(i), now)
		// Handshake payloads are a few dozen bytes; Marshal cannot fail.
		pkt, _ := BuildPacket(uint8(i+1), step.svc, payload, 1, 1)
		pkts = append(pkts, pkt)
	}
	return pkts
}
