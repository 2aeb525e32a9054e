package utils

import (
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

const writeWait = 100 * time.Millisecond

// wsClient serializes data writes to one connection; gorilla allows a single
// concurrent writer.
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// WebSocketHub fans session events out to dashboard connections.
type WebSocketHub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]*wsClient
}

func NewWebSocketHub() *WebSocketHub {
	return &WebSocketHub{clients: make(map[*websocket.Conn]*wsClient)}
}

func (h *WebSocketHub) AddClient(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[conn] = &wsClient{conn: conn}
}

// RemoveClient forgets conn and closes it. Unknown connections are ignored.
func (h *WebSocketHub) RemoveClient(conn *websocket.Conn) {
	h.drop([]*websocket.Conn{conn})
}

func (h *WebSocketHub) drop(conns []*websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, conn := range conns {
		if _, ok := h.clients[conn]; ok {
			delete(h.clients, conn)
			conn.Close()
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *WebSocketHub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast encodes event once and writes it to every client in parallel.
// Clients whose write fails or misses writeWait are dropped. It returns how
// many clients received the event.
func (h *WebSocketHub) Broadcast(event WebSocketEvent) int {
	data, err := json.Marshal(event)
	if err != nil {
		return 0
	}

	h.mu.Lock()
	targets := make([]*wsClient, 0, len(h.clients))
	for _, c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.Unlock()

	failed := make(chan *websocket.Conn, len(targets))
	var wg sync.WaitGroup
	for _, c := range targets {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if c.send(data) != nil {
				failed <- c.conn
			}
		}()
	}
	wg.Wait()
	close(failed)

	var stale []*websocket.Conn
	for conn := range failed {
		stale = append(stale, conn)
	}
	if len(stale) > 0 {
		h.drop(stale)
	}
	return len(targets) - len(stale)
}
