package providers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/haasonsaas/switchboard/internal/providers/toolconv"
	"github.com/haasonsaas/switchboard/pkg/models"
)

const openRouterBaseURL = "https://openrouter.ai/api/v1"

// OpenAICompatAdapter drives the OpenAI chat completions API. OpenRouter
// exposes the same wire protocol, so both providers share this implementation
// and differ only in base URL and provider name.
type OpenAICompatAdapter struct {
	name    string
	client  *openai.Client
	source  ConfigSource
	timeout time.Duration
	logger  *slog.Logger
}

// NewOpenAIAdapter creates the adapter for api.openai.com.
func NewOpenAIAdapter(apiKey string, source ConfigSource, timeout time.Duration, logger *slog.Logger) *OpenAICompatAdapter {
	return newOpenAICompat("openai", apiKey, "", source, timeout, logger)
}

// NewOpenRouterAdapter creates the adapter for openrouter.ai.
func NewOpenRouterAdapter(apiKey string, source ConfigSource, timeout time.Duration, logger *slog.Logger) *OpenAICompatAdapter {
	return newOpenAICompat("openrouter", apiKey, openRouterBaseURL, source, timeout, logger)
}

func newOpenAICompat(name, apiKey, baseURL string, source ConfigSource, timeout time.Duration, logger *slog.Logger) *OpenAICompatAdapter {
	clientConfig := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientConfig.BaseURL = baseURL
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OpenAICompatAdapter{
		name:    name,
		client:  openai.NewClientWithConfig(clientConfig),
		source:  source,
		timeout: timeout,
		logger:  logger.With("component", "adapter."+name),
	}
}

func (a *OpenAICompatAdapter) Name() string                  { return a.name }
func (a *OpenAICompatAdapter) SupportsFunctionCalling() bool { return true }
func (a *OpenAICompatAdapter) SupportsStreaming() bool       { return true }

// ChatCompletion streams one completion, re-assembling fragmented tool-call
// deltas and forwarding content deltas as they arrive.
func (a *OpenAICompatAdapter) ChatCompletion(ctx context.Context, req *Request) (<-chan *Event, error) {
	events := make(chan *Event, eventBufferSize)

	go func() {
		defer close(events)

		settings, perr := resolveSettings(ctx, a.source, a.name)
		if perr != nil {
			events <- &Event{Err: perr}
			return
		}

		streamCtx, cancel := context.WithTimeout(ctx, a.timeout)
		defer cancel()

		apiReq := a.buildRequest(req, settings)
		stream, err := a.client.CreateChatCompletionStream(streamCtx, apiReq)
		if err != nil {
			events <- &Event{Err: WrapError(a.name, settings.Model, err)}
			return
		}
		defer stream.Close()

		a.processStream(streamCtx, stream, settings.Model, events)
	}()

	return events, nil
}

func (a *OpenAICompatAdapter) buildRequest(req *Request, settings ProviderSettings) openai.ChatCompletionRequest {
	temperature := settings.Temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}

	apiReq := openai.ChatCompletionRequest{
		Model:       settings.Model,
		Messages:    a.convertMessages(req, settings),
		Temperature: float32(temperature),
		Stream:      true,
		StreamOptions: &openai.StreamOptions{
			IncludeUsage: true,
		},
	}

	if req.MaxTokens != nil {
		apiReq.MaxTokens = *req.MaxTokens
	} else if settings.MaxTokens != nil {
		apiReq.MaxTokens = *settings.MaxTokens
	}

	if len(req.Tools) > 0 {
		apiReq.Tools = toolconv.ToOpenAITools(req.Tools)
		apiReq.ToolChoice = "auto"
	}

	return apiReq
}

func (a *OpenAICompatAdapter) convertMessages(req *Request, settings ProviderSettings) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)

	systemPrompt := settings.SystemPrompt
	if req.SystemPrompt != "" {
		systemPrompt = req.SystemPrompt
	}
	if systemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: systemPrompt,
		})
	}

	for _, msg := range req.Messages {
		switch msg.Role {
		case models.RoleTool:
			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    msg.Content,
				ToolCallID: msg.ToolCallID,
			})
		case models.RoleAssistant:
			apiMsg := openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: msg.Content,
			}
			for _, tc := range msg.ToolCalls {
				apiMsg.ToolCalls = append(apiMsg.ToolCalls, openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: tc.Arguments,
					},
				})
			}
			messages = append(messages, apiMsg)
		default:
			messages = append(messages, openai.ChatCompletionMessage{
				Role:    string(msg.Role),
				Content: msg.Content,
			})
		}
	}

	return messages
}

func (a *OpenAICompatAdapter) processStream(ctx context.Context, stream *openai.ChatCompletionStream, model string, events chan<- *Event) {
	assembler := NewToolCallAssembler(a.name)
	var finishReason string
	var usage models.Usage

	for {
		response, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			events <- &Event{Err: WrapError(a.name, model, err)}
			return
		}
		if ctx.Err() != nil {
			events <- &Event{Err: WrapError(a.name, model, ctx.Err())}
			return
		}

		if response.Usage != nil {
			usage.InputTokens = response.Usage.PromptTokens
			usage.OutputTokens = response.Usage.CompletionTokens
		}
		if len(response.Choices) == 0 {
			continue
		}

		choice := response.Choices[0]

		if choice.Delta.Content != "" {
			events <- &Event{Content: choice.Delta.Content}
		}

		if len(choice.Delta.ToolCalls) > 0 {
			fragments := make([]ToolCallFragment, 0, len(choice.Delta.ToolCalls))
			for _, tc := range choice.Delta.ToolCalls {
				frag := ToolCallFragment{
					ID:    tc.ID,
					Index: tc.Index,
				}
				frag.Name = tc.Function.Name
				frag.Arguments = tc.Function.Arguments
				fragments = append(fragments, frag)
			}
			if completed := assembler.Add(fragments); len(completed) > 0 {
				events <- &Event{ToolCalls: completed}
			}
		}

		if choice.FinishReason != "" {
			finishReason = string(choice.FinishReason)
			if completed := assembler.FinishStream(finishReason); len(completed) > 0 {
				events <- &Event{ToolCalls: completed}
			}
		}
	}

	if completed := assembler.FinalizeRemaining(); len(completed) > 0 {
		events <- &Event{ToolCalls: completed}
	}

	if finishReason == "" {
		finishReason = "stop"
	}
	events <- &Event{Done: &Completion{FinishReason: finishReason, Usage: usage}}
}

// HealthCheck issues a one-token request against the configured model.
func (a *OpenAICompatAdapter) HealthCheck(ctx context.Context) bool {
	settings, perr := resolveSettings(ctx, a.source, a.name)
	if perr != nil {
		a.logger.Warn("health check skipped", "error", perr)
		return false
	}

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := a.client.CreateChatCompletion(checkCtx, openai.ChatCompletionRequest{
		Model: settings.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: "hi"},
		},
		MaxTokens: 1,
	})
	if err != nil {
		a.logger.Warn("health check failed", "error", err)
		return false
	}
	return true
}
