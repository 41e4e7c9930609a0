package mcp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// keepaliveInterval is how long a notification subscriber may sit idle
	// before the server emits a ping on its channel.
	keepaliveInterval = 30 * time.Second

	maxRequestBody = 4 << 20
)

// HTTPTransport serves the JSON-RPC endpoint and the notifications
// websocket.
type HTTPTransport struct {
	server   *Server
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewHTTPTransport creates the HTTP transport for a server.
func NewHTTPTransport(server *Server, logger *slog.Logger) *HTTPTransport {
	return &HTTPTransport{
		server: server,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger.With("component", "mcp.http"),
	}
}

// Register attaches the transport's routes to a mux.
func (t *HTTPTransport) Register(mux *http.ServeMux) {
	mux.HandleFunc("/mcp", t.handleJSONRPC)
	mux.HandleFunc("/mcp/jsonrpc", t.handleJSONRPC)
	mux.HandleFunc("/mcp/notifications", t.handleNotifications)
}

func (t *HTTPTransport) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	response := t.server.HandleMessage(r.Context(), body)
	w.Header().Set("Content-Type", "application/json")
	if response == nil {
		// Notification-only message: acknowledge with an empty object.
		w.Write([]byte("{}"))
		return
	}
	w.Write(response)
}

// handleNotifications upgrades to a websocket, subscribes the client to the
// broker, and relays notifications. An idle connection gets a ping every
// keepalive interval; a client that cannot be written to is removed.
func (t *HTTPTransport) handleNotifications(w http.ResponseWriter, r *http.Request) {
	conn, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		t.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	sub := t.server.Broker().Subscribe()
	defer t.server.Broker().Unsubscribe(sub)
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Drain client frames so closes are noticed.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	keepalive := time.NewTimer(keepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case payload, ok := <-sub.Messages():
			if !ok {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				t.logger.Debug("subscriber write failed", "subscriber", sub.ID(), "error", err)
				return
			}
			resetTimer(keepalive, keepaliveInterval)

		case <-keepalive.C:
			ping, _ := json.Marshal(JSONRPCNotification{
				JSONRPC: "2.0",
				Method:  "ping",
				Params:  map[string]any{"timestamp": time.Now().UTC().Format(time.RFC3339)},
			})
			if err := conn.WriteMessage(websocket.TextMessage, ping); err != nil {
				return
			}
			keepalive.Reset(keepaliveInterval)
		}
	}
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
