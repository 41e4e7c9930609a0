package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/haasonsaas/switchboard/internal/runtimecfg"
	"github.com/haasonsaas/switchboard/pkg/models"
)

type stubHandler struct {
	def    models.ToolDefinition
	result map[string]any
	err    error
}

func (h *stubHandler) Definition() models.ToolDefinition { return h.def }

func (h *stubHandler) Execute(ctx context.Context, args map[string]any) (map[string]any, error) {
	return h.result, h.err
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	path := filepath.Join(t.TempDir(), "runtime_config.yaml")
	store := runtimecfg.NewStore(path, slog.Default())
	return NewServer(store, slog.Default())
}

func registerStub(t *testing.T, s *Server, name string, result map[string]any, err error) {
	t.Helper()
	h := &stubHandler{
		def: models.ToolDefinition{
			Name:        name,
			Description: "test tool " + name,
			Parameters: []models.ToolParameter{
				{Name: "input", Type: models.TypeString, Description: "input"},
			},
		},
		result: result,
		err:    err,
	}
	if err := s.Registry().Register(h); err != nil {
		t.Fatalf("register %s: %v", name, err)
	}
}

func roundTrip(t *testing.T, s *Server, request string) *JSONRPCResponse {
	t.Helper()
	raw := s.HandleMessage(context.Background(), []byte(request))
	if raw == nil {
		t.Fatal("expected a response, got nil")
	}
	var resp JSONRPCResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		t.Fatalf("unmarshal response: %v (%s)", err, raw)
	}
	return &resp
}

func TestServer_Initialize(t *testing.T) {
	s := newTestServer(t)

	resp := roundTrip(t, s, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{
		"protocolVersion":"2025-06-18",
		"capabilities":{},
		"clientInfo":{"name":"test-client","version":"1.0"}}}`)

	if resp.Error != nil {
		t.Fatalf("initialize failed: %+v", resp.Error)
	}
	result := resp.Result.(map[string]any)
	if result["protocolVersion"] != ProtocolVersion {
		t.Errorf("protocolVersion = %v", result["protocolVersion"])
	}
	caps := result["capabilities"].(map[string]any)
	tools := caps["tools"].(map[string]any)
	if tools["listChanged"] != true {
		t.Error("capabilities.tools.listChanged must be true")
	}
	if _, ok := caps["logging"]; !ok {
		t.Error("capabilities.logging missing")
	}
	if result["instructions"] == "" {
		t.Error("instructions missing")
	}
}

func TestServer_InitializeVersionMismatchAccepted(t *testing.T) {
	s := newTestServer(t)

	resp := roundTrip(t, s, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{
		"protocolVersion":"2024-11-05",
		"capabilities":{},
		"clientInfo":{"name":"old-client","version":"0.1"}}}`)

	if resp.Error != nil {
		t.Fatalf("version mismatch must not be rejected: %+v", resp.Error)
	}
	// The server still answers with its own version.
	if v := resp.Result.(map[string]any)["protocolVersion"]; v != ProtocolVersion {
		t.Errorf("protocolVersion = %v, want %s", v, ProtocolVersion)
	}
}

func TestServer_InitializeMissingFields(t *testing.T) {
	s := newTestServer(t)

	for _, params := range []string{
		`{"capabilities":{},"clientInfo":{"name":"x","version":"1"}}`,
		`{"protocolVersion":"2025-06-18","clientInfo":{"name":"x","version":"1"}}`,
		`{"protocolVersion":"2025-06-18","capabilities":{}}`,
	} {
		resp := roundTrip(t, s, fmt.Sprintf(
			`{"jsonrpc":"2.0","id":1,"method":"initialize","params":%s}`, params))
		if resp.Error == nil || resp.Error.Code != ErrCodeInvalidParams {
			t.Errorf("params %s: error = %+v, want code %d", params, resp.Error, ErrCodeInvalidParams)
		}
	}
}

func TestServer_Ping(t *testing.T) {
	s := newTestServer(t)

	resp := roundTrip(t, s, `{"jsonrpc":"2.0","id":"p1","method":"ping"}`)
	if resp.Error != nil {
		t.Fatalf("ping failed: %+v", resp.Error)
	}
	result := resp.Result.(map[string]any)
	if result["timestamp"] == "" {
		t.Error("ping timestamp missing")
	}
	server := result["server"].(map[string]any)
	if server["name"] != "switchboard" {
		t.Errorf("server name = %v", server["name"])
	}
}

func TestServer_ToolsListPagination(t *testing.T) {
	s := newTestServer(t)
	for i := 0; i < DefaultPageSize+10; i++ {
		registerStub(t, s, fmt.Sprintf("tool_%03d", i), map[string]any{"status": "ok"}, nil)
	}

	resp := roundTrip(t, s, `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	result := resp.Result.(map[string]any)
	tools := result["tools"].([]any)
	if len(tools) != DefaultPageSize {
		t.Fatalf("first page has %d tools, want %d", len(tools), DefaultPageSize)
	}
	cursor, ok := result["nextCursor"].(string)
	if !ok || cursor != "50" {
		t.Fatalf("nextCursor = %v, want \"50\"", result["nextCursor"])
	}

	resp = roundTrip(t, s, fmt.Sprintf(
		`{"jsonrpc":"2.0","id":2,"method":"tools/list","params":{"cursor":"%s"}}`, cursor))
	result = resp.Result.(map[string]any)
	tools = result["tools"].([]any)
	if len(tools) != 10 {
		t.Errorf("second page has %d tools, want 10", len(tools))
	}
	if _, ok := result["nextCursor"]; ok {
		t.Error("last page must not carry nextCursor")
	}

	// No duplicate or skipped entries across the page boundary.
	first := tools[0].(map[string]any)
	if first["name"] != "tool_050" {
		t.Errorf("second page starts at %v, want tool_050", first["name"])
	}
}

func TestServer_ToolsListInvalidCursor(t *testing.T) {
	s := newTestServer(t)
	registerStub(t, s, "only_tool", map[string]any{"status": "ok"}, nil)

	for _, cursor := range []string{"abc", "-1", "1.5"} {
		resp := roundTrip(t, s, fmt.Sprintf(
			`{"jsonrpc":"2.0","id":1,"method":"tools/list","params":{"cursor":"%s"}}`, cursor))
		if resp.Error == nil || resp.Error.Code != ErrCodeInvalidParams {
			t.Errorf("cursor %q: error = %+v, want code %d", cursor, resp.Error, ErrCodeInvalidParams)
		}
	}
}

func TestServer_ToolsCallSuccess(t *testing.T) {
	s := newTestServer(t)
	registerStub(t, s, "echo", map[string]any{
		"status":  "success",
		"message": "done",
		"data":    map[string]any{"value": 42},
	}, nil)

	resp := roundTrip(t, s, `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"echo","arguments":{"input":"hi"}}}`)
	if resp.Error != nil {
		t.Fatalf("tools/call failed: %+v", resp.Error)
	}
	result := resp.Result.(map[string]any)
	if result["isError"] == true {
		t.Error("isError set on success")
	}
	content := result["content"].([]any)
	if len(content) != 2 {
		t.Fatalf("content has %d items, want message + data", len(content))
	}
	if content[0].(map[string]any)["text"] != "done" {
		t.Errorf("first content = %v", content[0])
	}
	structured := result["structuredContent"].(map[string]any)
	if structured["status"] != "success" {
		t.Errorf("structuredContent = %v", structured)
	}
}

func TestServer_ToolsCallHandlerFailureIsJSONRPCSuccess(t *testing.T) {
	s := newTestServer(t)
	registerStub(t, s, "boom", nil, fmt.Errorf("parameter out of range"))

	resp := roundTrip(t, s, `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"boom","arguments":{}}}`)
	if resp.Error != nil {
		t.Fatalf("handler failure must be a JSON-RPC success: %+v", resp.Error)
	}
	result := resp.Result.(map[string]any)
	if result["isError"] != true {
		t.Error("isError not set")
	}
	content := result["content"].([]any)
	if content[0].(map[string]any)["text"] != "parameter out of range" {
		t.Errorf("error text = %v", content[0])
	}
}

func TestServer_ToolsCallUnknownTool(t *testing.T) {
	s := newTestServer(t)

	resp := roundTrip(t, s, `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"nope","arguments":{}}}`)
	if resp.Error != nil {
		t.Fatalf("unknown tool is reported in-band: %+v", resp.Error)
	}
	result := resp.Result.(map[string]any)
	if result["isError"] != true {
		t.Error("isError not set for unknown tool")
	}
}

func TestServer_MethodNotFound(t *testing.T) {
	s := newTestServer(t)
	resp := roundTrip(t, s, `{"jsonrpc":"2.0","id":1,"method":"resources/list"}`)
	if resp.Error == nil || resp.Error.Code != ErrCodeMethodNotFound {
		t.Errorf("error = %+v, want code %d", resp.Error, ErrCodeMethodNotFound)
	}
}

func TestServer_ParseError(t *testing.T) {
	s := newTestServer(t)
	resp := roundTrip(t, s, `{not json`)
	if resp.Error == nil || resp.Error.Code != ErrCodeParseError {
		t.Errorf("error = %+v, want code %d", resp.Error, ErrCodeParseError)
	}
	if resp.ID != nil {
		t.Errorf("parse error id = %v, want null", resp.ID)
	}
}

func TestServer_InvalidRequest(t *testing.T) {
	s := newTestServer(t)
	resp := roundTrip(t, s, `{"jsonrpc":"1.0","id":1,"method":"ping"}`)
	if resp.Error == nil || resp.Error.Code != ErrCodeInvalidRequest {
		t.Errorf("error = %+v, want code %d", resp.Error, ErrCodeInvalidRequest)
	}
}

func TestServer_NotificationProducesNoResponse(t *testing.T) {
	s := newTestServer(t)
	raw := s.HandleMessage(context.Background(), []byte(
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`))
	if raw != nil {
		t.Errorf("notification produced a response: %s", raw)
	}
}

func TestServer_BatchPreservesOrderAndElidesNotifications(t *testing.T) {
	s := newTestServer(t)

	raw := s.HandleMessage(context.Background(), []byte(`[
		{"jsonrpc":"2.0","id":"a","method":"ping"},
		{"jsonrpc":"2.0","method":"notifications/initialized"},
		{"jsonrpc":"2.0","id":"b","method":"ping"}
	]`))
	var responses []JSONRPCResponse
	if err := json.Unmarshal(raw, &responses); err != nil {
		t.Fatalf("unmarshal batch: %v (%s)", err, raw)
	}
	if len(responses) != 2 {
		t.Fatalf("batch returned %d responses, want 2", len(responses))
	}
	if responses[0].ID != "a" || responses[1].ID != "b" {
		t.Errorf("order = %v, %v", responses[0].ID, responses[1].ID)
	}
}

func TestServer_BatchAllNotifications(t *testing.T) {
	s := newTestServer(t)
	raw := s.HandleMessage(context.Background(), []byte(`[
		{"jsonrpc":"2.0","method":"notifications/initialized"}
	]`))
	if raw != nil {
		t.Errorf("all-notification batch produced a body: %s", raw)
	}
}

func TestServer_MalformedBatch(t *testing.T) {
	s := newTestServer(t)
	resp := roundTrip(t, s, `[{"jsonrpc":"2.0","id":1`)
	if resp.Error == nil || resp.Error.Code != ErrCodeParseError {
		t.Errorf("error = %+v, want parse error", resp.Error)
	}
	if resp.ID != nil {
		t.Errorf("malformed batch id = %v, want null", resp.ID)
	}
}

func TestMapResult_ContentTypes(t *testing.T) {
	result := mapResult(map[string]any{
		"message": "caption",
		"image":   map[string]any{"data": "base64png"},
		"audio":   map[string]any{"data": "base64wav", "mimeType": "audio/mpeg"},
		"resource_link": map[string]any{
			"uri": "file:///tmp/report.txt", "name": "report",
		},
	})

	types := make(map[string]ContentItem)
	for _, item := range result.Content {
		types[item.Type] = item
	}
	if types[ContentTypeImage].MimeType != "image/png" {
		t.Errorf("image mime = %q, want default image/png", types[ContentTypeImage].MimeType)
	}
	if types[ContentTypeAudio].MimeType != "audio/mpeg" {
		t.Errorf("audio mime = %q", types[ContentTypeAudio].MimeType)
	}
	if types[ContentTypeResourceLink].URI != "file:///tmp/report.txt" {
		t.Errorf("resource link uri = %q", types[ContentTypeResourceLink].URI)
	}
	if result.StructuredContent == nil {
		t.Error("structuredContent missing")
	}
}

func TestMapResult_UnrecognizedKeysRenderAsJSON(t *testing.T) {
	result := mapResult(map[string]any{"custom": 7})
	if len(result.Content) != 1 || result.Content[0].Type != ContentTypeText {
		t.Fatalf("content = %+v", result.Content)
	}
	if result.Content[0].Text != `{"custom":7}` {
		t.Errorf("text = %q", result.Content[0].Text)
	}
}
