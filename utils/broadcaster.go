package utils

import (
	"log/slog"
	"time"
)

// SessionBroadcaster turns glasses session events into websocket events.
type SessionBroadcaster struct {
	wsHub  *WebSocketHub
	logger *slog.Logger
	now    func() time.Time
}

// NewSessionBroadcaster creates a new broadcaster instance
func NewSessionBroadcaster(wsHub *WebSocketHub, logger *slog.Logger) *SessionBroadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionBroadcaster{
		wsHub:  wsHub,
		logger: logger.With("component", "broadcaster"),
		now:    time.Now,
	}
}

func (b *SessionBroadcaster) BroadcastConnected(mode string, addresses []string) {
	b.logger.Debug("broadcasting session connected", "addresses", addresses)
	b.wsHub.Broadcast(WebSocketEvent{
		Type: EventSessionConnected,
		Payload: SessionConnectedPayload{
			Mode:      mode,
			Addresses: addresses,
			Timestamp: b.now().Unix(),
		},
	})
}

func (b *SessionBroadcaster) BroadcastDisconnected(reason string) {
	b.logger.Debug("broadcasting session disconnected", "reason", reason)
	b.wsHub.Broadcast(WebSocketEvent{
		Type: EventSessionDisconnected,
		Payload: SessionDisconnectedPayload{
			Reason:    reason,
			Timestamp: b.now().Unix(),
		},
	})
}

func (b *SessionBroadcaster) BroadcastUpdateSent(mode, title, message string) {
	b.wsHub.Broadcast(WebSocketEvent{
		Type: EventUpdateSent,
		Payload: UpdateSentPayload{
			Mode:      mode,
			Title:     title,
			Message:   message,
			Timestamp: b.now().Unix(),
		},
	})
}

func (b *SessionBroadcaster) BroadcastUpdateFailed(mode string, err error) {
	b.wsHub.Broadcast(WebSocketEvent{
		Type: EventUpdateFailed,
		Payload: UpdateFailedPayload{
			Mode:      mode,
			Error:     err.Error(),
			Timestamp: b.now().Unix(),
		},
	})
}
