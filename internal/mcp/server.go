package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/haasonsaas/switchboard/internal/providers"
	"github.com/haasonsaas/switchboard/internal/runtimecfg"
	"github.com/haasonsaas/switchboard/pkg/models"
)

const serverInstructions = "This MCP server provides AI configuration tools and supports " +
	"multiple content types. Use the 'ai_configure' tool to modify AI model parameters. " +
	"The server supports text, image, audio, and resource content types in tool responses."

// Server is the MCP 2025 JSON-RPC server. It owns the tool registry and the
// notification broker, fronts the runtime configuration store, and is the
// single dispatch point for tools/call regardless of transport.
type Server struct {
	registry *Registry
	store    *runtimecfg.Store
	broker   *Broker
	info     ServerInfo
	caps     Capabilities
	logger   *slog.Logger
}

// NewServer wires the registry, broker, and configuration store together.
// The server registers itself as the store's change notifier.
func NewServer(store *runtimecfg.Store, logger *slog.Logger) *Server {
	s := &Server{
		registry: NewRegistry(logger),
		store:    store,
		broker:   NewBroker(logger),
		info:     ServerInfo{Name: "switchboard", Version: "2025.06.18"},
		caps: Capabilities{
			Tools:   &ToolsCapability{ListChanged: true},
			Logging: map[string]any{},
		},
		logger: logger.With("component", "mcp.server"),
	}

	s.registry.OnChange(func(version int) {
		s.broker.Broadcast(MethodToolsChanged, map[string]any{"version": version})
	})
	store.SetNotifier(s)

	return s
}

// Registry returns the tool registry.
func (s *Server) Registry() *Registry { return s.registry }

// Broker returns the notification broker.
func (s *Server) Broker() *Broker { return s.broker }

// Store returns the runtime configuration store.
func (s *Server) Store() *runtimecfg.Store { return s.store }

// HandleMessage processes one raw JSON-RPC message (single or batch) and
// returns the marshaled response, or nil when the message was only
// notifications.
func (s *Server) HandleMessage(ctx context.Context, raw []byte) []byte {
	trimmed := trimLeadingSpace(raw)
	if len(trimmed) == 0 {
		return marshalResponse(errorResponse(nil, ErrCodeParseError, "empty request"))
	}

	if trimmed[0] == '[' {
		return s.handleBatch(ctx, trimmed)
	}

	resp := s.handleSingle(ctx, trimmed)
	if resp == nil {
		return nil
	}
	return marshalResponse(resp)
}

func (s *Server) handleBatch(ctx context.Context, raw []byte) []byte {
	var elements []json.RawMessage
	if err := json.Unmarshal(raw, &elements); err != nil {
		return marshalResponse(errorResponse(nil, ErrCodeParseError, "Parse error: "+err.Error()))
	}
	if len(elements) == 0 {
		return marshalResponse(errorResponse(nil, ErrCodeInvalidRequest, "empty batch"))
	}

	responses := make([]*JSONRPCResponse, 0, len(elements))
	for _, element := range elements {
		if resp := s.handleSingle(ctx, element); resp != nil {
			responses = append(responses, resp)
		}
	}
	if len(responses) == 0 {
		return nil
	}

	data, err := json.Marshal(responses)
	if err != nil {
		return marshalResponse(errorResponse(nil, ErrCodeInternalError, "response marshal failed"))
	}
	return data
}

// handleSingle processes one message; nil means notification (no response).
func (s *Server) handleSingle(ctx context.Context, raw []byte) *JSONRPCResponse {
	var req JSONRPCRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return errorResponse(nil, ErrCodeParseError, "Parse error: "+err.Error())
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		return errorResponse(req.ID, ErrCodeInvalidRequest, "invalid JSON-RPC message")
	}

	if req.ID == nil {
		s.handleNotification(ctx, &req)
		return nil
	}
	return s.handleRequest(ctx, &req)
}

func (s *Server) handleRequest(ctx context.Context, req *JSONRPCRequest) *JSONRPCResponse {
	s.logger.Debug("jsonrpc request", "method", req.Method, "id", req.ID)

	switch req.Method {
	case MethodInitialize:
		return s.handleInitialize(req)
	case MethodPing:
		return s.handlePing(req)
	case MethodToolsList:
		return s.handleToolsList(req)
	case MethodToolsCall:
		return s.handleToolsCall(ctx, req)
	default:
		return errorResponse(req.ID, ErrCodeMethodNotFound,
			fmt.Sprintf("Method '%s' not found", req.Method))
	}
}

func (s *Server) handleNotification(ctx context.Context, req *JSONRPCRequest) {
	switch req.Method {
	case MethodInitialized:
		s.logger.Info("client ready")
	case MethodCancelled:
		var params CancelledParams
		if err := json.Unmarshal(req.Params, &params); err == nil {
			s.logger.Info("request cancelled", "request_id", params.RequestID, "reason", params.Reason)
		}
	default:
		s.logger.Warn("unknown notification", "method", req.Method)
	}
}

func (s *Server) handleInitialize(req *JSONRPCRequest) *JSONRPCResponse {
	if len(req.Params) == 0 {
		return errorResponse(req.ID, ErrCodeInvalidParams, "Initialize requires params")
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(req.Params, &probe); err != nil {
		return errorResponse(req.ID, ErrCodeInvalidParams, "Invalid initialize params: "+err.Error())
	}
	for _, field := range []string{"protocolVersion", "capabilities", "clientInfo"} {
		if _, ok := probe[field]; !ok {
			return errorResponse(req.ID, ErrCodeInvalidParams,
				fmt.Sprintf("Initialize params missing %q", field))
		}
	}

	var params InitializeParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(req.ID, ErrCodeInvalidParams, "Invalid initialize params: "+err.Error())
	}

	if params.ProtocolVersion != ProtocolVersion {
		s.logger.Warn("protocol version mismatch",
			"client_version", params.ProtocolVersion,
			"server_version", ProtocolVersion)
	}

	s.logger.Info("client initialized",
		"client", params.ClientInfo.Name,
		"client_version", params.ClientInfo.Version,
		"protocol_version", params.ProtocolVersion)

	return successResponse(req.ID, InitializeResult{
		ProtocolVersion: ProtocolVersion,
		Capabilities:    s.caps,
		ServerInfo:      s.info,
		Instructions:    serverInstructions,
	})
}

func (s *Server) handlePing(req *JSONRPCRequest) *JSONRPCResponse {
	return successResponse(req.ID, PingResult{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Server:    s.info,
	})
}

func (s *Server) handleToolsList(req *JSONRPCRequest) *JSONRPCResponse {
	var params ListToolsParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return errorResponse(req.ID, ErrCodeInvalidParams, "Invalid tools/list params: "+err.Error())
		}
	}

	start := 0
	if params.Cursor != "" {
		parsed, err := strconv.Atoi(params.Cursor)
		if err != nil || parsed < 0 {
			return errorResponse(req.ID, ErrCodeInvalidParams, "Invalid cursor format")
		}
		start = parsed
	}

	all := s.registry.List()
	descriptors := make([]ToolDescriptor, len(all))
	for i, def := range all {
		descriptors[i] = ToolDescriptor{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: def.InputSchema(),
		}
	}

	if start > len(descriptors) {
		start = len(descriptors)
	}
	end := start + DefaultPageSize
	if end > len(descriptors) {
		end = len(descriptors)
	}

	result := ListToolsResult{Tools: descriptors[start:end]}
	if end < len(descriptors) {
		result.NextCursor = strconv.Itoa(end)
	}

	s.logger.Debug("tools listed",
		"total", len(descriptors),
		"returned", len(result.Tools),
		"cursor", params.Cursor,
		"next_cursor", result.NextCursor)

	return successResponse(req.ID, result)
}

func (s *Server) handleToolsCall(ctx context.Context, req *JSONRPCRequest) *JSONRPCResponse {
	if len(req.Params) == 0 {
		return errorResponse(req.ID, ErrCodeInvalidParams, "Tool call requires params")
	}

	var params CallToolParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(req.ID, ErrCodeInvalidParams, "Invalid tools/call params: "+err.Error())
	}
	if params.Name == "" {
		return errorResponse(req.ID, ErrCodeInvalidParams, "Tool call requires a name")
	}

	result := s.CallTool(ctx, params.Name, params.Arguments)
	return successResponse(req.ID, result)
}

// CallTool executes a tool through the registry and maps the outcome to MCP
// result content. The chat orchestrator uses this same path for in-process
// tool dispatch.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) CallToolResult {
	execution := s.registry.Execute(ctx, name, args)
	if !execution.OK {
		msg := execution.Error
		if msg == "" {
			msg = "Tool execution failed"
		}
		return CallToolResult{
			Content: []ContentItem{{Type: ContentTypeText, Text: msg}},
			IsError: true,
		}
	}
	return mapResult(execution.Result)
}

// mapResult converts a handler's result document into MCP content items.
// Known keys get dedicated content types; the whole document rides along as
// structuredContent for clients that prefer machine-readable results.
func mapResult(result map[string]any) CallToolResult {
	var content []ContentItem

	if msg, ok := result["message"].(string); ok {
		content = append(content, ContentItem{Type: ContentTypeText, Text: msg})
	}

	if data, ok := result["data"]; ok {
		switch v := data.(type) {
		case string:
			content = append(content, ContentItem{Type: ContentTypeText, Text: v})
		default:
			content = append(content, ContentItem{Type: ContentTypeText, Text: renderJSON(v)})
		}
	}

	if image, ok := result["image"].(map[string]any); ok {
		content = append(content, ContentItem{
			Type:     ContentTypeImage,
			Data:     stringField(image, "data"),
			MimeType: stringFieldDefault(image, "mimeType", "image/png"),
		})
	}

	if audio, ok := result["audio"].(map[string]any); ok {
		content = append(content, ContentItem{
			Type:     ContentTypeAudio,
			Data:     stringField(audio, "data"),
			MimeType: stringFieldDefault(audio, "mimeType", "audio/wav"),
		})
	}

	if resource, ok := result["resource"]; ok {
		content = append(content, ContentItem{Type: ContentTypeResource, Resource: resource})
	}

	if link, ok := result["resource_link"].(map[string]any); ok {
		content = append(content, ContentItem{
			Type:        ContentTypeResourceLink,
			URI:         stringField(link, "uri"),
			Name:        stringField(link, "name"),
			Description: stringField(link, "description"),
			MimeType:    stringField(link, "mimeType"),
		})
	}

	if len(content) == 0 && len(result) > 0 {
		content = append(content, ContentItem{Type: ContentTypeText, Text: renderJSON(result)})
	}

	out := CallToolResult{Content: content}
	if len(result) > 0 {
		out.StructuredContent = result
	}
	return out
}

// runtimecfg.Notifier implementation. Each fires after the mutation has been
// persisted.

func (s *Server) ConfigurationChanged(provider, parameter string, value any) {
	s.broker.Broadcast("configuration/changed", map[string]any{
		"provider":  provider,
		"parameter": parameter,
		"value":     value,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) ProviderSwitched(oldProvider, newProvider string) {
	s.broker.Broadcast("configuration/provider_switched", map[string]any{
		"old_provider": oldProvider,
		"new_provider": newProvider,
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) ConfigurationReset(provider string, defaults map[string]any) {
	s.broker.Broadcast("configuration/reset", map[string]any{
		"provider":  provider,
		"defaults":  defaults,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// ActiveProviderConfig implements the adapters' configuration source: every
// upstream call reads the active provider settings through the server.
func (s *Server) ActiveProviderConfig(ctx context.Context) (providers.ProviderSettings, error) {
	settings, err := s.store.ActiveConfig()
	if err != nil {
		return providers.ProviderSettings{}, err
	}
	return providers.ProviderSettings{
		Provider:     settings.Provider,
		Model:        settings.Model,
		Temperature:  settings.Temperature,
		MaxTokens:    settings.MaxTokens,
		SystemPrompt: settings.SystemPrompt,
	}, nil
}

// ToolDefinitions returns the canonical tool list for adapter requests.
func (s *Server) ToolDefinitions() []models.ToolDefinition {
	return s.registry.List()
}

func successResponse(id any, result any) *JSONRPCResponse {
	return &JSONRPCResponse{JSONRPC: "2.0", ID: id, Result: result}
}

func errorResponse(id any, code int, message string) *JSONRPCResponse {
	return &JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &JSONRPCError{Code: code, Message: message},
	}
}

func marshalResponse(resp *JSONRPCResponse) []byte {
	data, err := json.Marshal(resp)
	if err != nil {
		fallback := `{"jsonrpc":"2.0","id":null,"error":{"code":-32603,"message":"response marshal failed"}}`
		return []byte(fallback)
	}
	return data
}

func renderJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func stringFieldDefault(m map[string]any, key, fallback string) string {
	if s, ok := m[key].(string); ok && s != "" {
		return s
	}
	return fallback
}

func trimLeadingSpace(raw []byte) []byte {
	for i, b := range raw {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		default:
			return raw[i:]
		}
	}
	return nil
}
