package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/haasonsaas/switchboard/internal/mcp"
	"github.com/haasonsaas/switchboard/internal/providers"
	"github.com/haasonsaas/switchboard/internal/runtimecfg"
	"github.com/haasonsaas/switchboard/pkg/models"
)

// scriptedAdapter replays canned event streams and records the requests it
// received.
type scriptedAdapter struct {
	name     string
	scripts  [][]*providers.Event
	requests []*providers.Request
}

func (a *scriptedAdapter) Name() string                  { return a.name }
func (a *scriptedAdapter) SupportsFunctionCalling() bool { return true }
func (a *scriptedAdapter) SupportsStreaming() bool       { return true }
func (a *scriptedAdapter) HealthCheck(ctx context.Context) bool {
	return true
}

func (a *scriptedAdapter) ChatCompletion(ctx context.Context, req *providers.Request) (<-chan *providers.Event, error) {
	a.requests = append(a.requests, req)
	if len(a.scripts) == 0 {
		return nil, errors.New("no scripted response left")
	}
	script := a.scripts[0]
	a.scripts = a.scripts[1:]

	events := make(chan *providers.Event, len(script))
	for _, event := range script {
		events <- event
	}
	close(events)
	return events, nil
}

type echoHandler struct {
	fail bool
}

func (h *echoHandler) Definition() models.ToolDefinition {
	return models.ToolDefinition{
		Name:        "echo_tool",
		Description: "echoes its input",
		Parameters: []models.ToolParameter{
			{Name: "text", Type: models.TypeString, Description: "text to echo"},
			{Name: "request", Type: models.TypeString, Description: "raw request"},
		},
	}
}

func (h *echoHandler) Execute(ctx context.Context, args map[string]any) (map[string]any, error) {
	if h.fail {
		return nil, errors.New("echo backend unavailable")
	}
	return map[string]any{
		"status":  "success",
		"message": fmt.Sprintf("echoed %v", args["text"]),
	}, nil
}

func newTestOrchestrator(t *testing.T, handler mcp.Handler, adapter providers.Adapter) *Orchestrator {
	t.Helper()
	path := filepath.Join(t.TempDir(), "runtime_config.yaml")
	store := runtimecfg.NewStore(path, slog.Default())
	server := mcp.NewServer(store, slog.Default())
	if handler != nil {
		if err := server.Registry().Register(handler); err != nil {
			t.Fatalf("register: %v", err)
		}
	}
	// The default document activates openai; the adapter map key must match.
	return NewOrchestrator(server, map[string]providers.Adapter{"openai": adapter}, slog.Default())
}

func TestOrchestrator_PlainTextTurn(t *testing.T) {
	adapter := &scriptedAdapter{name: "openai", scripts: [][]*providers.Event{
		{
			{Content: "Hello"},
			{Content: " world"},
			{Done: &providers.Completion{FinishReason: "stop", Usage: models.Usage{InputTokens: 3, OutputTokens: 2}}},
		},
	}}
	o := newTestOrchestrator(t, &echoHandler{}, adapter)

	var emitted []string
	result, err := o.Run(context.Background(),
		[]models.ChatMessage{{Role: models.RoleUser, Content: "hi"}},
		func(delta string) { emitted = append(emitted, delta) })
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.Content != "Hello world" {
		t.Errorf("content = %q", result.Content)
	}
	if len(emitted) != 2 || emitted[0] != "Hello" || emitted[1] != " world" {
		t.Errorf("emitted = %v", emitted)
	}
	if result.FinishReason != "stop" {
		t.Errorf("finish reason = %q", result.FinishReason)
	}
	if len(adapter.requests) != 1 {
		t.Fatalf("adapter called %d times, want 1", len(adapter.requests))
	}
	if len(adapter.requests[0].Tools) != 1 {
		t.Errorf("first pass carried %d tools, want the registry list", len(adapter.requests[0].Tools))
	}
}

func TestOrchestrator_ToolCallContinuation(t *testing.T) {
	call := models.CompletedToolCall{
		ID:        "call_1",
		Name:      "echo_tool",
		Arguments: `{"text":"ping"}`,
	}
	adapter := &scriptedAdapter{name: "openai", scripts: [][]*providers.Event{
		{
			{Content: "Let me check."},
			{ToolCalls: []models.CompletedToolCall{call}},
			{Done: &providers.Completion{FinishReason: "tool_calls"}},
		},
		{
			{Content: "The tool said ping."},
			{Done: &providers.Completion{FinishReason: "stop"}},
		},
	}}
	o := newTestOrchestrator(t, &echoHandler{}, adapter)

	original := []models.ChatMessage{{Role: models.RoleUser, Content: "use the tool"}}
	result, err := o.Run(context.Background(), original, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Content != "The tool said ping." {
		t.Errorf("content = %q", result.Content)
	}
	if len(result.ToolCalls) != 1 {
		t.Errorf("tool calls = %d", len(result.ToolCalls))
	}

	if len(adapter.requests) != 2 {
		t.Fatalf("adapter called %d times, want 2", len(adapter.requests))
	}
	second := adapter.requests[1]
	if len(second.Tools) != 0 {
		t.Error("continuation pass must disable tools")
	}

	// Continuation shape: original + assistant(with tool_calls) + one tool
	// message per call.
	msgs := second.Messages
	if len(msgs) != 3 {
		t.Fatalf("continuation has %d messages, want 3", len(msgs))
	}
	if msgs[0].Content != "use the tool" {
		t.Errorf("original message not preserved: %+v", msgs[0])
	}
	assistant := msgs[1]
	if assistant.Role != models.RoleAssistant || assistant.Content != "Let me check." {
		t.Errorf("assistant message = %+v", assistant)
	}
	if len(assistant.ToolCalls) != 1 || assistant.ToolCalls[0].ID != "call_1" {
		t.Errorf("assistant tool calls = %+v", assistant.ToolCalls)
	}
	toolMsg := msgs[2]
	if toolMsg.Role != models.RoleTool || toolMsg.ToolCallID != "call_1" {
		t.Errorf("tool message = %+v", toolMsg)
	}
	if !strings.Contains(toolMsg.Content, "echoed ping") {
		t.Errorf("tool result = %q", toolMsg.Content)
	}
}

func TestOrchestrator_FailedToolStillContinues(t *testing.T) {
	call := models.CompletedToolCall{ID: "call_1", Name: "echo_tool", Arguments: `{}`}
	adapter := &scriptedAdapter{name: "openai", scripts: [][]*providers.Event{
		{
			{ToolCalls: []models.CompletedToolCall{call}},
			{Done: &providers.Completion{FinishReason: "tool_calls"}},
		},
		{
			{Content: "Sorry, that failed."},
			{Done: &providers.Completion{FinishReason: "stop"}},
		},
	}}
	o := newTestOrchestrator(t, &echoHandler{fail: true}, adapter)

	result, err := o.Run(context.Background(),
		[]models.ChatMessage{{Role: models.RoleUser, Content: "try"}}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Content != "Sorry, that failed." {
		t.Errorf("content = %q", result.Content)
	}

	toolMsg := adapter.requests[1].Messages[2]
	if !strings.HasPrefix(toolMsg.Content, "Tool execution failed: ") {
		t.Errorf("tool result = %q", toolMsg.Content)
	}
	if !strings.Contains(toolMsg.Content, "echo backend unavailable") {
		t.Errorf("failure reason missing: %q", toolMsg.Content)
	}
}

func TestOrchestrator_StreamErrorPropagates(t *testing.T) {
	adapter := &scriptedAdapter{name: "openai", scripts: [][]*providers.Event{
		{
			{Content: "partial"},
			{Err: &providers.ProviderError{Kind: providers.KindRateLimit, Provider: "openai", Message: "throttled"}},
		},
	}}
	o := newTestOrchestrator(t, nil, adapter)

	_, err := o.Run(context.Background(),
		[]models.ChatMessage{{Role: models.RoleUser, Content: "hi"}}, nil)
	if err == nil {
		t.Fatal("expected stream error")
	}
	pe, ok := providers.AsProviderError(err)
	if !ok || pe.Kind != providers.KindRateLimit {
		t.Errorf("error = %v", err)
	}
}

func TestOrchestrator_NoAdapterForActiveProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runtime_config.yaml")
	store := runtimecfg.NewStore(path, slog.Default())
	server := mcp.NewServer(store, slog.Default())
	o := NewOrchestrator(server, map[string]providers.Adapter{}, slog.Default())

	_, err := o.Run(context.Background(),
		[]models.ChatMessage{{Role: models.RoleUser, Content: "hi"}}, nil)
	if err == nil || !strings.Contains(err.Error(), "no adapter") {
		t.Errorf("error = %v", err)
	}
}

func TestParseArguments(t *testing.T) {
	args := parseArguments(`{"a":1}`)
	if args["a"] != 1.0 {
		t.Errorf("args = %v", args)
	}

	// Unparseable strings are preserved for the tool.
	args = parseArguments(`set the temperature to 0.9`)
	if args["request"] != "set the temperature to 0.9" {
		t.Errorf("args = %v", args)
	}

	if args := parseArguments(""); len(args) != 0 {
		t.Errorf("empty arguments = %v", args)
	}
}

func TestParseChatPayload(t *testing.T) {
	msgs, err := parseChatPayload(map[string]any{"message": "hello"})
	if err != nil || len(msgs) != 1 || msgs[0].Role != models.RoleUser {
		t.Errorf("msgs = %v, err = %v", msgs, err)
	}

	msgs, err = parseChatPayload(map[string]any{"messages": []any{
		map[string]any{"role": "system", "content": "be terse"},
		map[string]any{"role": "user", "content": "hi"},
	}})
	if err != nil || len(msgs) != 2 || msgs[0].Role != models.RoleSystem {
		t.Errorf("msgs = %v, err = %v", msgs, err)
	}

	if _, err := parseChatPayload(map[string]any{}); err == nil {
		t.Error("empty payload accepted")
	}
}
