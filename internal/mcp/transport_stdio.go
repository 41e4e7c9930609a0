package mcp

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"sync"
)

// StdioTransport serves newline-delimited JSON-RPC over a reader/writer
// pair, normally stdin and stdout. Notifications from the broker are
// interleaved with responses on the same stream.
type StdioTransport struct {
	server *Server
	in     io.Reader
	out    io.Writer
	outMu  sync.Mutex
	logger *slog.Logger
}

// NewStdioTransport creates a stdio transport for a server.
func NewStdioTransport(server *Server, in io.Reader, out io.Writer, logger *slog.Logger) *StdioTransport {
	return &StdioTransport{
		server: server,
		in:     in,
		out:    out,
		logger: logger.With("component", "mcp.stdio"),
	}
}

// Serve reads messages until EOF or context cancellation. Each input line is
// one JSON-RPC message; each response is written as one line.
func (t *StdioTransport) Serve(ctx context.Context) error {
	sub := t.server.Broker().Subscribe()
	defer t.server.Broker().Unsubscribe(sub)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case payload, ok := <-sub.Messages():
				if !ok {
					return
				}
				t.writeLine(payload)
			}
		}
	}()

	scanner := bufio.NewScanner(t.in)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		if response := t.server.HandleMessage(ctx, line); response != nil {
			t.writeLine(response)
		}
	}

	if err := scanner.Err(); err != nil {
		t.logger.Error("stdin scanner error", "error", err)
		return err
	}
	return nil
}

func (t *StdioTransport) writeLine(payload []byte) {
	t.outMu.Lock()
	defer t.outMu.Unlock()
	if _, err := t.out.Write(append(payload, '\n')); err != nil {
		t.logger.Warn("stdout write failed", "error", err)
	}
}
