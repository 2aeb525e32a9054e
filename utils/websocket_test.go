package utils

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

func newHubServer(t *testing.T, hub *WebSocketHub) *websocket.Conn {
	t.Helper()
	registered := make(chan struct{})
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.AddClient(conn)
		close(registered)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	select {
	case <-registered:
	case <-time.After(2 * time.Second):
		t.Fatal("client was not registered")
	}
	return client
}

func readEvent(t *testing.T, c *websocket.Conn) map[string]any {
	t.Helper()
	c.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := c.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	var ev map[string]any
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("Unmarshal %s: %v", data, err)
	}
	return ev
}

func TestSessionBroadcaster(t *testing.T) {
	hub := NewWebSocketHub()
	client := newHubServer(t, hub)
	if hub.ClientCount() != 1 {
		t.Fatalf("Expected 1 client, got %d", hub.ClientCount())
	}

	b := NewSessionBroadcaster(hub, nil)
	b.now = func() time.Time { return time.Unix(1700000000, 0) }

	b.BroadcastConnected("notification", []string{"AA", "BB"})
	ev := readEvent(t, client)
	if ev["type"] != EventSessionConnected {
		t.Errorf("Expected %s, got %v", EventSessionConnected, ev["type"])
	}
	payload := ev["payload"].(map[string]any)
	if payload["mode"] != "notification" || payload["timestamp"].(float64) != 1700000000 {
		t.Errorf("Unexpected payload %v", payload)
	}

	b.BroadcastUpdateFailed("evenai", errors.New("link lost"))
	ev = readEvent(t, client)
	if ev["type"] != EventUpdateFailed {
		t.Errorf("Expected %s, got %v", EventUpdateFailed, ev["type"])
	}
	if ev["payload"].(map[string]any)["error"] != "link lost" {
		t.Errorf("Unexpected payload %v", ev["payload"])
	}
}

func TestWebSocketHubRemoveClient(t *testing.T) {
	hub := NewWebSocketHub()
	newHubServer(t, hub)

	hub.mu.Lock()
	var conn *websocket.Conn
	for c := range hub.clients {
		conn = c
	}
	hub.mu.Unlock()

	hub.RemoveClient(conn)
	if hub.ClientCount() != 0 {
		t.Errorf("Expected 0 clients, got %d", hub.ClientCount())
	}
	// Broadcasting with no clients is a no-op.
	hub.Broadcast(WebSocketEvent{Type: EventUpdateSent})
}

func TestWebSocketHubDropsFailedClients(t *testing.T) {
	hub := NewWebSocketHub()
	newHubServer(t, hub)
	newHubServer(t, hub)
	if hub.ClientCount() != 2 {
		t.Fatalf("Expected 2 clients, got %d", hub.ClientCount())
	}

	// Break the server side of one connection so its next write fails.
	hub.mu.Lock()
	var broken *websocket.Conn
	for c := range hub.clients {
		broken = c
		break
	}
	hub.mu.Unlock()
	broken.UnderlyingConn().Close()

	if got := hub.Broadcast(WebSocketEvent{Type: EventUpdateSent}); got != 1 {
		t.Errorf("Expected 1 delivery, got %d", got)
	}
	if hub.ClientCount() != 1 {
		t.Errorf("Expected broken client dropped, got %d clients", hub.ClientCount())
	}

	if got := hub.Broadcast(WebSocketEvent{Type: EventUpdateSent}); got != 1 {
		t.Errorf("Expected 1 delivery to the remaining client, got %d", got)
	}
}
