// Package gateway serves the outward-facing surfaces: the chat websocket with
// its tool-execution orchestrator, the MCP HTTP/websocket transport, health,
// and metrics.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/haasonsaas/switchboard/internal/mcp"
)

// Server is the HTTP front of the gateway.
type Server struct {
	addr         string
	mcpServer    *mcp.Server
	orchestrator *Orchestrator
	chat         *ChatTransport
	logger       *slog.Logger

	httpServer *http.Server
	startTime  time.Time
}

func NewServer(addr string, mcpServer *mcp.Server, orchestrator *Orchestrator, chatTimeout time.Duration, logger *slog.Logger) *Server {
	return &Server{
		addr:         addr,
		mcpServer:    mcpServer,
		orchestrator: orchestrator,
		chat:         NewChatTransport(orchestrator, chatTimeout, logger),
		logger:       logger.With("component", "gateway.http"),
		startTime:    time.Now(),
	}
}

// Start binds the listener and serves in the background. Bind failures are
// returned synchronously so startup can fail fast.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()

	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.Handle("/ws/chat", s.chat)
	mcp.NewHTTPTransport(s.mcpServer, s.logger).Register(mux)

	server := &http.Server{
		Addr:              s.addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("http listen: %w", err)
	}
	s.httpServer = server

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", "error", err)
		}
	}()

	s.logger.Info("gateway listening", "addr", s.addr)
	return nil
}

// Stop drains in-flight requests until ctx expires.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	registry := s.mcpServer.Registry()
	doc := map[string]any{
		"status":           "ok",
		"protocol_version": mcp.ProtocolVersion,
		"tools":            len(registry.Names()),
		"tools_version":    registry.Version(),
		"subscribers":      s.mcpServer.Broker().Count(),
		"uptime_seconds":   int(time.Since(s.startTime).Seconds()),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(doc); err != nil {
		s.logger.Debug("healthz write failed", "error", err)
	}
}
