package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/haasonsaas/switchboard/internal/mcp"
	"github.com/haasonsaas/switchboard/internal/providers"
	"github.com/haasonsaas/switchboard/pkg/models"
)

// Orchestrator runs one chat turn end to end: stream the active provider,
// execute any tool calls it produced through the MCP server, then run a
// continuation turn so the model can incorporate the results.
type Orchestrator struct {
	server   *mcp.Server
	adapters map[string]providers.Adapter
	logger   *slog.Logger
}

// TurnResult is the terminal state of one orchestrated turn.
type TurnResult struct {
	Content      string
	FinishReason string
	Usage        models.Usage
	ToolCalls    []models.CompletedToolCall
}

func NewOrchestrator(server *mcp.Server, adapters map[string]providers.Adapter, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		server:   server,
		adapters: adapters,
		logger:   logger.With("component", "gateway.orchestrator"),
	}
}

// Run executes one chat turn. Content deltas are forwarded to emit in arrival
// order as they stream; the returned result carries the assembled final text.
// When the first pass requests tool calls, each is executed in process and a
// second pass runs with tools disabled.
func (o *Orchestrator) Run(ctx context.Context, messages []models.ChatMessage, emit func(string)) (*TurnResult, error) {
	settings, err := o.server.ActiveProviderConfig(ctx)
	if err != nil {
		chatTurnsTotal.WithLabelValues("unknown", "config_error").Inc()
		return nil, err
	}

	adapter, ok := o.adapters[settings.Provider]
	if !ok {
		chatTurnsTotal.WithLabelValues(settings.Provider, "no_adapter").Inc()
		return nil, fmt.Errorf("no adapter for provider '%s'", settings.Provider)
	}

	first, err := o.streamTurn(ctx, adapter, &providers.Request{
		Messages: messages,
		Tools:    o.server.ToolDefinitions(),
	}, emit)
	if err != nil {
		chatTurnsTotal.WithLabelValues(settings.Provider, "error").Inc()
		return nil, err
	}

	if len(first.ToolCalls) == 0 {
		chatTurnsTotal.WithLabelValues(settings.Provider, "ok").Inc()
		return first, nil
	}

	o.logger.Info("executing tool calls",
		"provider", settings.Provider,
		"count", len(first.ToolCalls))

	continuation := o.buildContinuation(ctx, messages, first)

	// Second pass with tools disabled so the model must answer in text.
	final, err := o.streamTurn(ctx, adapter, &providers.Request{Messages: continuation}, emit)
	if err != nil {
		chatTurnsTotal.WithLabelValues(settings.Provider, "error").Inc()
		return nil, err
	}

	chatTurnsTotal.WithLabelValues(settings.Provider, "ok").Inc()
	final.ToolCalls = first.ToolCalls
	final.Usage.InputTokens += first.Usage.InputTokens
	final.Usage.OutputTokens += first.Usage.OutputTokens
	return final, nil
}

// streamTurn drains one adapter stream, forwarding content and collecting
// completed tool calls until the terminal event.
func (o *Orchestrator) streamTurn(ctx context.Context, adapter providers.Adapter, req *providers.Request, emit func(string)) (*TurnResult, error) {
	events, err := adapter.ChatCompletion(ctx, req)
	if err != nil {
		return nil, err
	}

	result := &TurnResult{}
	var content strings.Builder
	for event := range events {
		switch {
		case event.Err != nil:
			return nil, event.Err

		case event.Done != nil:
			result.FinishReason = event.Done.FinishReason
			result.Usage = event.Done.Usage

		case event.Content != "":
			content.WriteString(event.Content)
			if emit != nil {
				emit(event.Content)
			}

		case len(event.ToolCalls) > 0:
			result.ToolCalls = append(result.ToolCalls, event.ToolCalls...)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result.Content = content.String()
	return result, nil
}

// buildContinuation executes the collected tool calls and appends the
// assistant request plus one tool result message per call to the original
// conversation.
func (o *Orchestrator) buildContinuation(ctx context.Context, messages []models.ChatMessage, first *TurnResult) []models.ChatMessage {
	continuation := make([]models.ChatMessage, 0, len(messages)+1+len(first.ToolCalls))
	continuation = append(continuation, messages...)
	continuation = append(continuation, models.ChatMessage{
		Role:      models.RoleAssistant,
		Content:   first.Content,
		ToolCalls: first.ToolCalls,
	})

	for _, call := range first.ToolCalls {
		summary := o.executeCall(ctx, call)
		continuation = append(continuation, models.ChatMessage{
			Role:       models.RoleTool,
			Content:    summary,
			ToolCallID: call.ID,
		})
	}
	return continuation
}

// executeCall runs one tool call through the MCP server and summarizes the
// outcome as text. Execution failure is reported to the model, not to the
// caller; the continuation turn still runs.
func (o *Orchestrator) executeCall(ctx context.Context, call models.CompletedToolCall) string {
	args := parseArguments(call.Arguments)

	result := o.server.CallTool(ctx, call.Name, args)
	if result.IsError {
		toolExecutionsTotal.WithLabelValues(call.Name, "error").Inc()
		reason := textContent(result)
		if reason == "" {
			reason = "unknown error"
		}
		o.logger.Warn("tool call failed", "tool", call.Name, "reason", reason)
		return "Tool execution failed: " + reason
	}

	toolExecutionsTotal.WithLabelValues(call.Name, "ok").Inc()
	return textContent(result)
}

// parseArguments decodes the serialized arguments. A string that is not a
// JSON object is preserved for the tool under a "request" key.
func parseArguments(raw string) map[string]any {
	if strings.TrimSpace(raw) == "" {
		return map[string]any{}
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return map[string]any{"request": raw}
	}
	return args
}

func textContent(result mcp.CallToolResult) string {
	var parts []string
	for _, item := range result.Content {
		if item.Type == mcp.ContentTypeText && item.Text != "" {
			parts = append(parts, item.Text)
		}
	}
	if len(parts) == 0 && result.StructuredContent != nil {
		if data, err := json.Marshal(result.StructuredContent); err == nil {
			return string(data)
		}
	}
	return strings.Join(parts, "\n")
}
