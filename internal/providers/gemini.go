package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"log/slog"
	"math"
	"time"

	"google.golang.org/genai"

	"github.com/haasonsaas/switchboard/internal/providers/toolconv"
	"github.com/haasonsaas/switchboard/pkg/models"
)

// GeminiAdapter drives the Gemini generateContent streaming API. Function
// calls arrive whole in a single part; the API assigns no call ids, so the
// adapter synthesizes one per call.
type GeminiAdapter struct {
	client  *genai.Client
	source  ConfigSource
	timeout time.Duration
	logger  *slog.Logger
}

// NewGeminiAdapter creates the adapter for the Gemini API.
func NewGeminiAdapter(apiKey string, source ConfigSource, timeout time.Duration, logger *slog.Logger) (*GeminiAdapter, error) {
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &GeminiAdapter{
		client:  client,
		source:  source,
		timeout: timeout,
		logger:  logger.With("component", "adapter.gemini"),
	}, nil
}

func (a *GeminiAdapter) Name() string                  { return "gemini" }
func (a *GeminiAdapter) SupportsFunctionCalling() bool { return true }
func (a *GeminiAdapter) SupportsStreaming() bool       { return true }

// ChatCompletion streams one completion over generateContent.
func (a *GeminiAdapter) ChatCompletion(ctx context.Context, req *Request) (<-chan *Event, error) {
	events := make(chan *Event, eventBufferSize)

	go func() {
		defer close(events)

		settings, perr := resolveSettings(ctx, a.source, "gemini")
		if perr != nil {
			events <- &Event{Err: perr}
			return
		}

		streamCtx, cancel := context.WithTimeout(ctx, a.timeout)
		defer cancel()

		contents, err := a.convertMessages(req.Messages)
		if err != nil {
			events <- &Event{Err: WrapError("gemini", settings.Model, err)}
			return
		}

		config := a.buildConfig(req, settings)
		streamIter := a.client.Models.GenerateContentStream(streamCtx, settings.Model, contents, config)
		a.processStream(streamCtx, streamIter, settings.Model, events)
	}()

	return events, nil
}

func (a *GeminiAdapter) buildConfig(req *Request, settings ProviderSettings) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}

	temperature := settings.Temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	temp32 := float32(temperature)
	config.Temperature = &temp32

	maxTokens := 0
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	} else if settings.MaxTokens != nil {
		maxTokens = *settings.MaxTokens
	}
	if maxTokens > 0 {
		// #nosec G115 -- bounded by min below
		config.MaxOutputTokens = int32(min(maxTokens, math.MaxInt32))
	}

	systemPrompt := settings.SystemPrompt
	if req.SystemPrompt != "" {
		systemPrompt = req.SystemPrompt
	}
	if systemPrompt != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{
				{Text: systemPrompt},
			},
		}
	}

	if len(req.Tools) > 0 {
		config.Tools = toolconv.ToGeminiTools(req.Tools)
	}

	return config
}

// convertMessages maps chat history onto Gemini content. Assistant messages
// take the "model" role, tool results become function response parts, and
// system messages are skipped in favor of SystemInstruction.
func (a *GeminiAdapter) convertMessages(messages []models.ChatMessage) ([]*genai.Content, error) {
	var result []*genai.Content

	for _, msg := range messages {
		if msg.Role == models.RoleSystem {
			continue
		}

		content := &genai.Content{}
		switch msg.Role {
		case models.RoleAssistant:
			content.Role = genai.RoleModel
		default:
			content.Role = genai.RoleUser
		}

		if msg.Role == models.RoleTool {
			var response map[string]any
			if err := json.Unmarshal([]byte(msg.Content), &response); err != nil {
				response = map[string]any{"result": msg.Content}
			}
			content.Parts = append(content.Parts, &genai.Part{
				FunctionResponse: &genai.FunctionResponse{
					Name:     toolNameFromCallID(msg.ToolCallID, messages),
					Response: response,
				},
			})
			result = append(result, content)
			continue
		}

		if msg.Content != "" {
			content.Parts = append(content.Parts, &genai.Part{Text: msg.Content})
		}

		for _, tc := range msg.ToolCalls {
			var args map[string]any
			if err := json.Unmarshal([]byte(tc.Arguments), &args); err != nil {
				args = map[string]any{}
			}
			content.Parts = append(content.Parts, &genai.Part{
				FunctionCall: &genai.FunctionCall{
					Name: tc.Name,
					Args: args,
				},
			})
		}

		if len(content.Parts) == 0 {
			continue
		}
		result = append(result, content)
	}

	return result, nil
}

func (a *GeminiAdapter) processStream(ctx context.Context, streamIter iter.Seq2[*genai.GenerateContentResponse, error], model string, events chan<- *Event) {
	assembler := NewToolCallAssembler("gemini")
	var usage models.Usage
	finishReason := "stop"
	callSeq := 0

	for resp, err := range streamIter {
		select {
		case <-ctx.Done():
			events <- &Event{Err: WrapError("gemini", model, ctx.Err())}
			return
		default:
		}

		if err != nil {
			events <- &Event{Err: WrapError("gemini", model, err)}
			return
		}
		if resp == nil {
			continue
		}

		if resp.UsageMetadata != nil {
			usage.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
			usage.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		}

		for _, candidate := range resp.Candidates {
			if candidate == nil || candidate.Content == nil {
				continue
			}
			if candidate.FinishReason != "" {
				finishReason = string(candidate.FinishReason)
			}

			for _, part := range candidate.Content.Parts {
				if part == nil {
					continue
				}

				if part.Text != "" {
					events <- &Event{Content: part.Text}
				}

				if part.FunctionCall != nil {
					argsJSON, jsonErr := json.Marshal(part.FunctionCall.Args)
					if jsonErr != nil {
						argsJSON = []byte("{}")
					}
					completed := assembler.Add([]ToolCallFragment{{
						ID:        synthesizeCallID(part.FunctionCall.Name, callSeq),
						Name:      part.FunctionCall.Name,
						Arguments: string(argsJSON),
					}})
					callSeq++
					if len(completed) > 0 {
						events <- &Event{ToolCalls: completed}
					}
				}
			}
		}
	}

	events <- &Event{Done: &Completion{FinishReason: finishReason, Usage: usage}}
}

// HealthCheck issues a minimal request against the configured model.
func (a *GeminiAdapter) HealthCheck(ctx context.Context) bool {
	settings, perr := resolveSettings(ctx, a.source, "gemini")
	if perr != nil {
		a.logger.Warn("health check skipped", "error", perr)
		return false
	}

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	maxTokens := int32(1)
	_, err := a.client.Models.GenerateContent(checkCtx, settings.Model,
		[]*genai.Content{{Role: genai.RoleUser, Parts: []*genai.Part{{Text: "hi"}}}},
		&genai.GenerateContentConfig{MaxOutputTokens: maxTokens})
	if err != nil {
		a.logger.Warn("health check failed", "error", err)
		return false
	}
	return true
}

// synthesizeCallID generates a call id; Gemini does not assign them. The
// per-stream sequence number keeps ids distinct even for repeated calls to
// the same function in one response.
func synthesizeCallID(name string, seq int) string {
	return fmt.Sprintf("call_%s_%d", name, seq)
}

// toolNameFromCallID recovers the function name a tool result responds to by
// scanning earlier assistant tool calls, falling back to the id itself.
func toolNameFromCallID(callID string, messages []models.ChatMessage) string {
	for _, msg := range messages {
		for _, tc := range msg.ToolCalls {
			if tc.ID == callID {
				return tc.Name
			}
		}
	}
	return callID
}
