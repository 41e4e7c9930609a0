// Package providers implements the upstream LLM adapters and the shared
// streaming machinery: the canonical request/event types, the tool-call
// fragment assembler, and the provider error taxonomy.
package providers

import (
	"context"

	"github.com/haasonsaas/switchboard/pkg/models"
)

// Request is the vendor-neutral input to one chat completion.
type Request struct {
	// Messages is the ordered conversation. System messages injected here
	// take precedence over the configured system prompt.
	Messages []models.ChatMessage

	// SystemPrompt overrides the configured system prompt when non-empty.
	SystemPrompt string

	// Temperature overrides the configured temperature when non-nil.
	Temperature *float64

	// MaxTokens overrides the configured max tokens when non-nil.
	MaxTokens *int

	// Tools is the canonical tool list to offer the model. Empty disables
	// function calling for this request.
	Tools []models.ToolDefinition
}

// Completion is the terminal metadata of a successful stream.
type Completion struct {
	FinishReason string
	Usage        models.Usage
}

// Event is one element of an adapter response stream. Exactly one of the
// fields is populated, and exactly one terminal event (Done or Err) is
// produced per stream.
type Event struct {
	Content   string
	ToolCalls []models.CompletedToolCall
	Done      *Completion
	Err       *ProviderError
}

// ProviderSettings is the active configuration record an adapter resolves
// before every upstream call.
type ProviderSettings struct {
	Provider     string
	Model        string
	Temperature  float64
	MaxTokens    *int
	SystemPrompt string
}

// ConfigSource yields the active provider configuration. Adapters call it per
// request and never cache the result; the MCP server implements it on top of
// the runtime configuration store.
type ConfigSource interface {
	ActiveProviderConfig(ctx context.Context) (ProviderSettings, error)
}

// Adapter is the uniform contract all four upstream providers implement.
type Adapter interface {
	// Name returns the provider identifier ("openai", "anthropic", ...).
	Name() string

	// SupportsFunctionCalling reports tool-call capability.
	SupportsFunctionCalling() bool

	// SupportsStreaming reports streaming capability.
	SupportsStreaming() bool

	// ChatCompletion streams one completion. The returned channel is closed
	// after the terminal event. Cancel ctx to abandon the stream.
	ChatCompletion(ctx context.Context, req *Request) (<-chan *Event, error)

	// HealthCheck issues a minimal one-token request and swallows errors.
	HealthCheck(ctx context.Context) bool
}

const eventBufferSize = 16

// resolveSettings fetches the active configuration and enforces that it names
// the calling adapter. A mismatch means a switch raced this request; the
// request fails rather than running under another provider's parameters.
func resolveSettings(ctx context.Context, source ConfigSource, provider string) (ProviderSettings, *ProviderError) {
	settings, err := source.ActiveProviderConfig(ctx)
	if err != nil {
		return ProviderSettings{}, &ProviderError{
			Kind:     KindConfigError,
			Provider: provider,
			Message:  "failed to fetch configuration: " + err.Error(),
			Cause:    err,
		}
	}
	if settings.Provider != provider {
		return ProviderSettings{}, &ProviderError{
			Kind:     KindConfigError,
			Provider: provider,
			Message:  "configuration mismatch: expected provider '" + provider + "', got '" + settings.Provider + "'",
		}
	}
	return settings, nil
}
