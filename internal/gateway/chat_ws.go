package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/haasonsaas/switchboard/pkg/models"
)

const (
	chatWriteWait      = 10 * time.Second
	defaultChatTimeout = 300 * time.Second
)

var errEmptyChatPayload = errors.New("chat payload must carry 'message' or a non-empty 'messages' array")

// ChatTransport serves the chat websocket. Each inbound frame is one chat
// request; the response is one processing acknowledgment, streamed chunk
// frames, and exactly one terminal frame.
type ChatTransport struct {
	orchestrator   *Orchestrator
	receiveTimeout time.Duration
	upgrader       websocket.Upgrader
	logger         *slog.Logger
}

func NewChatTransport(orchestrator *Orchestrator, receiveTimeout time.Duration, logger *slog.Logger) *ChatTransport {
	if receiveTimeout <= 0 {
		receiveTimeout = defaultChatTimeout
	}
	return &ChatTransport{
		orchestrator:   orchestrator,
		receiveTimeout: receiveTimeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(*http.Request) bool {
				return true
			},
		},
		logger: logger.With("component", "gateway.chat"),
	}
}

func (t *ChatTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		t.logger.Warn("chat upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	chatConnections.Inc()
	defer chatConnections.Dec()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	t.logger.Info("chat client connected", "remote", conn.RemoteAddr())

	for {
		conn.SetReadDeadline(time.Now().Add(t.receiveTimeout))

		var frame models.ClientFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				t.logger.Warn("chat read error", "error", err)
			}
			return
		}
		t.handleFrame(ctx, conn, &frame)
	}
}

func (t *ChatTransport) handleFrame(ctx context.Context, conn *websocket.Conn, frame *models.ClientFrame) {
	requestID := frame.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}

	if frame.Action != "chat" {
		t.writeFrame(conn, &models.ServerFrame{
			RequestID: requestID,
			Status:    models.StatusError,
			Error:     "unknown action '" + frame.Action + "'",
		})
		return
	}

	messages, err := parseChatPayload(frame.Payload)
	if err != nil {
		t.writeFrame(conn, &models.ServerFrame{
			RequestID: requestID,
			Status:    models.StatusError,
			Error:     err.Error(),
		})
		return
	}

	t.writeFrame(conn, &models.ServerFrame{
		RequestID: requestID,
		Status:    models.StatusProcessing,
	})

	result, err := t.orchestrator.Run(ctx, messages, func(delta string) {
		chatChunksTotal.Inc()
		t.writeFrame(conn, &models.ServerFrame{
			RequestID: requestID,
			Status:    models.StatusChunk,
			Chunk:     &models.Chunk{Type: models.ChunkText, Data: delta},
		})
	})
	if err != nil {
		t.writeFrame(conn, &models.ServerFrame{
			RequestID: requestID,
			Status:    models.StatusError,
			Error:     err.Error(),
		})
		return
	}

	t.writeFrame(conn, &models.ServerFrame{
		RequestID: requestID,
		Status:    models.StatusComplete,
		Chunk: &models.Chunk{
			Type: models.ChunkMetadata,
			Metadata: map[string]any{
				"finish_reason": result.FinishReason,
				"input_tokens":  result.Usage.InputTokens,
				"output_tokens": result.Usage.OutputTokens,
				"tool_calls":    len(result.ToolCalls),
			},
		},
	})
}

// parseChatPayload accepts either {"message": "..."} for a single user turn
// or {"messages": [{role, content}, ...]} for a full conversation.
func parseChatPayload(payload map[string]any) ([]models.ChatMessage, error) {
	if text, ok := payload["message"].(string); ok && text != "" {
		return []models.ChatMessage{{Role: models.RoleUser, Content: text}}, nil
	}

	raw, ok := payload["messages"].([]any)
	if !ok || len(raw) == 0 {
		return nil, errEmptyChatPayload
	}

	messages := make([]models.ChatMessage, 0, len(raw))
	for _, item := range raw {
		entry, ok := item.(map[string]any)
		if !ok {
			return nil, errEmptyChatPayload
		}
		role, _ := entry["role"].(string)
		content, _ := entry["content"].(string)
		if role == "" {
			role = string(models.RoleUser)
		}
		messages = append(messages, models.ChatMessage{
			Role:    models.Role(role),
			Content: content,
		})
	}
	return messages, nil
}

func (t *ChatTransport) writeFrame(conn *websocket.Conn, frame *models.ServerFrame) {
	conn.SetWriteDeadline(time.Now().Add(chatWriteWait))
	if err := conn.WriteJSON(frame); err != nil {
		t.logger.Warn("chat write failed", "error", err)
	}
}
