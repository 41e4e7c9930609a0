package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/haasonsaas/switchboard/internal/providers/toolconv"
	"github.com/haasonsaas/switchboard/pkg/models"
)

// maxEmptyStreamEvents is the maximum number of consecutive empty events
// before treating the stream as malformed. Protects against streams that
// flood with empty events and would otherwise burn CPU indefinitely.
const maxEmptyStreamEvents = 300

const anthropicDefaultMaxTokens = 4096

// AnthropicAdapter drives the Anthropic Messages API. Tool calls arrive as
// dedicated content blocks: content_block_start carries the id and name,
// input_json_delta events stream the argument JSON, and content_block_stop
// marks the call complete.
type AnthropicAdapter struct {
	client  anthropic.Client
	source  ConfigSource
	timeout time.Duration
	logger  *slog.Logger
}

// NewAnthropicAdapter creates the adapter for api.anthropic.com.
func NewAnthropicAdapter(apiKey string, source ConfigSource, timeout time.Duration, logger *slog.Logger) *AnthropicAdapter {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &AnthropicAdapter{
		client:  anthropic.NewClient(option.WithAPIKey(apiKey)),
		source:  source,
		timeout: timeout,
		logger:  logger.With("component", "adapter.anthropic"),
	}
}

func (a *AnthropicAdapter) Name() string                  { return "anthropic" }
func (a *AnthropicAdapter) SupportsFunctionCalling() bool { return true }
func (a *AnthropicAdapter) SupportsStreaming() bool       { return true }

// ChatCompletion streams one completion over the Messages API.
func (a *AnthropicAdapter) ChatCompletion(ctx context.Context, req *Request) (<-chan *Event, error) {
	events := make(chan *Event, eventBufferSize)

	go func() {
		defer close(events)

		settings, perr := resolveSettings(ctx, a.source, "anthropic")
		if perr != nil {
			events <- &Event{Err: perr}
			return
		}

		streamCtx, cancel := context.WithTimeout(ctx, a.timeout)
		defer cancel()

		params, err := a.buildParams(req, settings)
		if err != nil {
			events <- &Event{Err: WrapError("anthropic", settings.Model, err)}
			return
		}

		stream := a.client.Messages.NewStreaming(streamCtx, params)
		defer stream.Close()

		a.processStream(stream, settings.Model, events)
	}()

	return events, nil
}

func (a *AnthropicAdapter) buildParams(req *Request, settings ProviderSettings) (anthropic.MessageNewParams, error) {
	messages, err := a.convertMessages(req.Messages)
	if err != nil {
		return anthropic.MessageNewParams{}, err
	}

	maxTokens := anthropicDefaultMaxTokens
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	} else if settings.MaxTokens != nil {
		maxTokens = *settings.MaxTokens
	}

	temperature := settings.Temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(settings.Model),
		Messages:    messages,
		MaxTokens:   int64(maxTokens),
		Temperature: anthropic.Float(temperature),
	}

	systemPrompt := settings.SystemPrompt
	if req.SystemPrompt != "" {
		systemPrompt = req.SystemPrompt
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{
			{Type: "text", Text: systemPrompt},
		}
	}

	if len(req.Tools) > 0 {
		tools, err := toolconv.ToAnthropicTools(req.Tools)
		if err != nil {
			return anthropic.MessageNewParams{}, err
		}
		params.Tools = tools
	}

	return params, nil
}

// convertMessages maps chat history onto Anthropic message params. System
// messages are skipped here; the system prompt rides in params.System. Tool
// results become user messages carrying a tool_result block, assistant tool
// calls become tool_use blocks.
func (a *AnthropicAdapter) convertMessages(messages []models.ChatMessage) ([]anthropic.MessageParam, error) {
	var result []anthropic.MessageParam

	for _, msg := range messages {
		if msg.Role == models.RoleSystem {
			continue
		}

		var content []anthropic.ContentBlockParamUnion

		if msg.Role == models.RoleTool {
			content = append(content, anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, false))
			result = append(result, anthropic.NewUserMessage(content...))
			continue
		}

		if msg.Content != "" {
			content = append(content, anthropic.NewTextBlock(msg.Content))
		}

		for _, tc := range msg.ToolCalls {
			var input map[string]interface{}
			if err := json.Unmarshal([]byte(tc.Arguments), &input); err != nil {
				return nil, fmt.Errorf("invalid tool call arguments for %s: %w", tc.Name, err)
			}
			content = append(content, anthropic.NewToolUseBlock(tc.ID, input, tc.Name))
		}

		if len(content) == 0 {
			continue
		}

		if msg.Role == models.RoleAssistant {
			result = append(result, anthropic.NewAssistantMessage(content...))
		} else {
			result = append(result, anthropic.NewUserMessage(content...))
		}
	}

	return result, nil
}

func (a *AnthropicAdapter) processStream(stream *ssestream.Stream[anthropic.MessageStreamEventUnion], model string, events chan<- *Event) {
	assembler := NewToolCallAssembler("anthropic")
	var currentCall *ToolCallFragment
	var usage models.Usage
	finishReason := "stop"
	emptyEventCount := 0

	emitCompleted := func(completed []models.CompletedToolCall) {
		if len(completed) > 0 {
			events <- &Event{ToolCalls: completed}
		}
	}

	for stream.Next() {
		event := stream.Current()
		eventProcessed := false

		switch event.Type {
		case "message_start":
			messageStart := event.AsMessageStart()
			if messageStart.Message.Usage.InputTokens > 0 {
				usage.InputTokens = int(messageStart.Message.Usage.InputTokens)
			}
			eventProcessed = true

		case "content_block_start":
			contentBlock := event.AsContentBlockStart().ContentBlock
			if contentBlock.Type == "tool_use" {
				toolUse := contentBlock.AsToolUse()
				currentCall = &ToolCallFragment{
					ID:   toolUse.ID,
					Name: toolUse.Name,
				}
				emitCompleted(assembler.Add([]ToolCallFragment{*currentCall}))
				eventProcessed = true
			}

		case "content_block_delta":
			delta := event.AsContentBlockDelta().Delta
			switch delta.Type {
			case "text_delta":
				if delta.Text != "" {
					events <- &Event{Content: delta.Text}
					eventProcessed = true
				}
			case "input_json_delta":
				if delta.PartialJSON != "" && currentCall != nil {
					emitCompleted(assembler.Add([]ToolCallFragment{{
						ID:        currentCall.ID,
						Arguments: delta.PartialJSON,
					}}))
					eventProcessed = true
				}
			}

		case "content_block_stop":
			if currentCall != nil {
				emitCompleted(assembler.Add([]ToolCallFragment{{
					ID:    currentCall.ID,
					Final: true,
				}}))
				currentCall = nil
				eventProcessed = true
			}

		case "message_delta":
			messageDelta := event.AsMessageDelta()
			if messageDelta.Usage.OutputTokens > 0 {
				usage.OutputTokens = int(messageDelta.Usage.OutputTokens)
			}
			if messageDelta.Delta.StopReason != "" {
				finishReason = string(messageDelta.Delta.StopReason)
			}
			eventProcessed = true

		case "message_stop":
			emitCompleted(assembler.FinalizeRemaining())
			events <- &Event{Done: &Completion{FinishReason: finishReason, Usage: usage}}
			return

		case "error":
			events <- &Event{Err: WrapError("anthropic", model, errors.New("stream error event"))}
			return
		}

		if eventProcessed {
			emptyEventCount = 0
		} else {
			emptyEventCount++
			if emptyEventCount >= maxEmptyStreamEvents {
				events <- &Event{Err: WrapError("anthropic", model,
					fmt.Errorf("stream appears malformed: %d consecutive empty events", emptyEventCount))}
				return
			}
		}
	}

	if err := stream.Err(); err != nil {
		events <- &Event{Err: WrapError("anthropic", model, err)}
		return
	}

	// Stream ended without message_stop.
	emitCompleted(assembler.FinalizeRemaining())
	events <- &Event{Done: &Completion{FinishReason: finishReason, Usage: usage}}
}

// HealthCheck issues a one-token request against the configured model.
func (a *AnthropicAdapter) HealthCheck(ctx context.Context) bool {
	settings, perr := resolveSettings(ctx, a.source, "anthropic")
	if perr != nil {
		a.logger.Warn("health check skipped", "error", perr)
		return false
	}

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := a.client.Messages.New(checkCtx, anthropic.MessageNewParams{
		Model:     anthropic.Model(settings.Model),
		MaxTokens: 1,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock("hi")),
		},
	})
	if err != nil {
		a.logger.Warn("health check failed", "error", err)
		return false
	}
	return true
}
