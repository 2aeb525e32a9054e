package utils

// WebSocket
type WebSocketEvent struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Session events
const (
	EventSessionConnected    = "session/connected"
	EventSessionDisconnected = "session/disconnected"
	EventUpdateSent          = "update/sent"
	EventUpdateFailed        = "update/failed"
)

type SessionConnectedPayload struct {
	Mode      string   `json:"mode"`
	Addresses []string `json:"addresses"`
	Timestamp int64    `json:"timestamp"`
}

type SessionDisconnectedPayload struct {
	Reason    string `json:"reason"`
	Timestamp int64  `json:"timestamp"`
}

type UpdateSentPayload struct {
	Mode      string `json:"mode"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

type UpdateFailedPayload struct {
	Mode      string `json:"mode"`
	Error     string `json:"error"`
	Timestamp int64  `json:"timestamp"`
}

// HTTP
type UpdateRequest struct {
	Original   string `json:"original"`
	Translated string `json:"translated"`
	Speaker    string `json:"speaker,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
