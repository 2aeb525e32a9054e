package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/livetranslator/g2link/bluetooth"
	"github.com/livetranslator/g2link/utils"
)

const (
	maxUpdateBody      = 64 << 10
	sessionCallTimeout = 30 * time.Second
	pingInterval       = 30 * time.Second
	pongWait           = 60 * time.Second
)

// Session is the part of the session controller the server drives.
type Session interface {
	Status() bluetooth.Status
	Update(original, translated, speaker string)
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
}

// Server is the HTTP control surface.
type Server struct {
	session  Session
	wsHub    *utils.WebSocketHub
	upgrader websocket.Upgrader
	logger   *slog.Logger
	server   *http.Server
	started  time.Time
}

// NewServer creates a new server instance
func NewServer(session Session, wsHub *utils.WebSocketHub, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		session: session,
		wsHub:   wsHub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // local dashboards are served from other origins
			},
		},
		logger:  logger.With("component", "http"),
		started: time.Now(),
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.methodHandler(http.MethodGet, s.handleStatus))
	mux.HandleFunc("/api/health", s.methodHandler(http.MethodGet, s.handleHealth))
	mux.HandleFunc("/api/update", s.methodHandler(http.MethodPost, s.handleUpdate))
	mux.HandleFunc("/api/connect", s.methodHandler(http.MethodPost, s.handleConnect))
	mux.HandleFunc("/api/disconnect", s.methodHandler(http.MethodPost, s.handleDisconnect))

	handler := s.loggingMiddleware(corsMiddleware(mux))

	// WebSocket is handled without middleware; the recorder would break Hijack.
	mainMux := http.NewServeMux()
	mainMux.HandleFunc("/ws", s.handleWebSocket)
	mainMux.Handle("/", handler)
	return mainMux
}

// Start serves on port until Shutdown is called.
func (s *Server) Start(port int) error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: sessionCallTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}
	s.logger.Info("starting HTTP server", "port", port)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"timestamp":  time.Now().Unix(),
		"uptime_s":   int64(time.Since(s.started).Seconds()),
		"session":    s.session.Status(),
		"ws_clients": s.wsHub.ClientCount(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	st := s.session.Status()
	code := http.StatusOK
	status := "healthy"
	if !st.Running {
		code, status = http.StatusServiceUnavailable, "stopped"
	} else if !st.Connected {
		status = "degraded"
	}
	writeJSONResponse(w, code, map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().Unix(),
		"checks": map[string]bool{
			"session_running":   st.Running,
			"glasses_connected": st.Connected,
		},
	})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req utils.UpdateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUpdateBody)).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "invalid update body", err)
		return
	}
	if req.Original == "" && req.Translated == "" {
		writeErrorResponse(w, http.StatusBadRequest, "original or translated is required", nil)
		return
	}
	s.session.Update(req.Original, req.Translated, req.Speaker)
	writeJSONResponse(w, http.StatusAccepted, map[string]interface{}{"queued": true})
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), sessionCallTimeout)
	defer cancel()
	if err := s.session.Connect(ctx); err != nil {
		writeErrorResponse(w, sessionErrorStatus(err), "connect failed", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, s.session.Status())
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), sessionCallTimeout)
	defer cancel()
	if err := s.session.Disconnect(ctx); err != nil {
		writeErrorResponse(w, sessionErrorStatus(err), "disconnect failed", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, s.session.Status())
}

func sessionErrorStatus(err error) int {
	switch {
	case errors.Is(err, bluetooth.ErrDiscovery):
		return http.StatusNotFound
	case errors.Is(err, bluetooth.ErrNotRunning):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	s.logger.Info("websocket connected", "remote", r.RemoteAddr)

	s.wsHub.AddClient(conn)
	defer func() {
		s.logger.Info("websocket closed", "remote", r.RemoteAddr)
		s.wsHub.RemoveClient(conn)
	}()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					s.logger.Warn("websocket error", "remote", r.RemoteAddr, "err", err)
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-closed:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second)); err != nil {
				s.logger.Debug("websocket ping failed", "remote", r.RemoteAddr, "err", err)
				return
			}
		}
	}
}

func writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Warn("failed to encode JSON response", "err", err)
	}
}

func writeErrorResponse(w http.ResponseWriter, statusCode int, message string, err error) {
	resp := utils.ErrorResponse{Error: message}
	if err != nil {
		resp.Error = message + ": " + err.Error()
	}
	writeJSONResponse(w, statusCode, resp)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "status", rec.statusCode, "duration", time.Since(start))
	})
}

// responseRecorder wraps http.ResponseWriter to capture status code
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rec *responseRecorder) WriteHeader(code int) {
	rec.statusCode = code
	rec.ResponseWriter.WriteHeader(code)
}

// methodHandler creates a handler that only accepts specific HTTP methods
func (s *Server) methodHandler(method string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			writeErrorResponse(w, http.StatusMethodNotAllowed, "method not allowed", nil)
			return
		}
		handler(w, r)
	}
}
