// Package runtimecfg is the single source of truth for provider, model, and
// parameter state. It owns the persisted runtime document, the per-provider
// parameter constraint tables, and every validated mutation against them.
package runtimecfg

import (
	"sort"
	"strings"
)

// Parameter value types.
const (
	TypeFloat   = "float"
	TypeInteger = "integer"
	TypeString  = "string"
	TypeBoolean = "boolean"
	TypeArray   = "array"
	TypeObject  = "object"
)

// Constraint describes the allowed values for one provider parameter.
type Constraint struct {
	Name        string
	Type        string
	Min         *float64
	Max         *float64
	Default     any
	Required    bool
	Enum        []string
	MaxItems    int
	Description string
}

func fp(v float64) *float64 { return &v }

// openaiStandard covers gpt-4o class models.
var openaiStandard = map[string]Constraint{
	"temperature": {
		Name: "temperature", Type: TypeFloat, Min: fp(0), Max: fp(2), Default: 1.0,
		Description: "Controls randomness in responses. 0=deterministic, 2=very creative",
	},
	"max_tokens": {
		Name: "max_tokens", Type: TypeInteger, Min: fp(1), Max: fp(4096),
		Description: "Maximum number of tokens to generate",
	},
	"top_p": {
		Name: "top_p", Type: TypeFloat, Min: fp(0), Max: fp(1), Default: 1.0,
		Description: "Nucleus sampling: only consider tokens with top p probability mass",
	},
	"frequency_penalty": {
		Name: "frequency_penalty", Type: TypeFloat, Min: fp(-2), Max: fp(2), Default: 0.0,
		Description: "Penalty for token frequency. Positive values reduce repetition",
	},
	"presence_penalty": {
		Name: "presence_penalty", Type: TypeFloat, Min: fp(-2), Max: fp(2), Default: 0.0,
		Description: "Penalty for token presence. Positive values encourage new topics",
	},
	"seed": {
		Name: "seed", Type: TypeInteger,
		Description: "Random seed for reproducible outputs",
	},
	"response_format": {
		Name: "response_format", Type: TypeString,
		Enum: []string{"text", "json_object", "json_schema"}, Default: "text",
		Description: "Format of the response",
	},
	"stop": {
		Name: "stop", Type: TypeArray, MaxItems: 4,
		Description: "Sequences that will stop generation",
	},
}

// openaiReasoning covers o1 class models, which reject the standard sampling
// knobs and take max_completion_tokens instead of max_tokens.
var openaiReasoning = map[string]Constraint{
	"max_completion_tokens": {
		Name: "max_completion_tokens", Type: TypeInteger, Min: fp(1), Max: fp(32768),
		Description: "Maximum tokens in completion (reasoning models use this instead of max_tokens)",
	},
}

var anthropicClaude = map[string]Constraint{
	"temperature": {
		Name: "temperature", Type: TypeFloat, Min: fp(0), Max: fp(1), Default: 1.0,
		Description: "Controls randomness in responses. 0=deterministic, 1=creative",
	},
	"max_tokens": {
		Name: "max_tokens", Type: TypeInteger, Min: fp(1), Max: fp(4096), Default: 4096, Required: true,
		Description: "Maximum number of tokens to generate (required for Claude)",
	},
	"top_p": {
		Name: "top_p", Type: TypeFloat, Min: fp(0), Max: fp(1),
		Description: "Nucleus sampling parameter",
	},
	"top_k": {
		Name: "top_k", Type: TypeInteger, Min: fp(1), Max: fp(200),
		Description: "Top-k sampling parameter",
	},
	"stop_sequences": {
		Name: "stop_sequences", Type: TypeArray, MaxItems: 4,
		Description: "Sequences that will stop generation",
	},
	"system": {
		Name: "system", Type: TypeString,
		Description: "System message for the conversation",
	},
}

var googleGemini = map[string]Constraint{
	"temperature": {
		Name: "temperature", Type: TypeFloat, Min: fp(0), Max: fp(1), Default: 1.0,
		Description: "Controls randomness in responses",
	},
	"max_output_tokens": {
		Name: "max_output_tokens", Type: TypeInteger, Min: fp(1), Max: fp(8192),
		Description: "Maximum number of output tokens",
	},
	"top_p": {
		Name: "top_p", Type: TypeFloat, Min: fp(0), Max: fp(1),
		Description: "Nucleus sampling parameter",
	},
	"top_k": {
		Name: "top_k", Type: TypeInteger, Min: fp(1), Max: fp(40),
		Description: "Top-k sampling parameter",
	},
	"candidate_count": {
		Name: "candidate_count", Type: TypeInteger, Min: fp(1), Max: fp(8), Default: 1,
		Description: "Number of response candidates to generate",
	},
	"stop_sequences": {
		Name: "stop_sequences", Type: TypeArray,
		Description: "Sequences that will stop generation",
	},
	"safety_settings": {
		Name: "safety_settings", Type: TypeObject,
		Description: "Safety filter configuration",
	},
	"response_mime_type": {
		Name: "response_mime_type", Type: TypeString,
		Enum: []string{"text/plain", "application/json"}, Default: "text/plain",
		Description: "MIME type of the response",
	},
}

// conservativeSchema applies to models no table recognizes.
var conservativeSchema = map[string]Constraint{
	"temperature": {
		Name: "temperature", Type: TypeFloat, Min: fp(0), Max: fp(1), Default: 0.7,
		Description: "Controls randomness (conservative range)",
	},
	"max_tokens": {
		Name: "max_tokens", Type: TypeInteger, Min: fp(1), Max: fp(2048), Default: 2048,
		Description: "Maximum tokens (conservative limit)",
	},
}

var reasoningModels = map[string]bool{
	"o1-preview": true,
	"o1-mini":    true,
}

// supportedModels lists the vetted model set per provider. The first entry is
// the provider's default model.
var supportedModels = map[string][]string{
	"openai": {
		"gpt-4o-mini",
		"gpt-4o",
		"o1-preview",
		"o1-mini",
	},
	"anthropic": {
		"claude-3-5-sonnet-20241022",
		"claude-3-5-haiku-20241022",
	},
	"gemini": {
		"gemini-1.5-flash",
		"gemini-1.5-pro",
	},
	"openrouter": {
		"anthropic/claude-3-sonnet",
		"openai/gpt-4o",
		"google/gemini-1.5-pro",
	},
}

// SchemaFor returns the effective constraint table for a (provider, model)
// pair. OpenRouter models route by prefix to the upstream family's table;
// unknown combinations get the conservative fallback.
func SchemaFor(provider, model string) map[string]Constraint {
	switch provider {
	case "openai":
		if reasoningModels[model] {
			return openaiReasoning
		}
		return openaiStandard
	case "anthropic":
		return anthropicClaude
	case "gemini":
		return googleGemini
	case "openrouter":
		return openRouterSchemaFor(model)
	default:
		return conservativeSchema
	}
}

func openRouterSchemaFor(model string) map[string]Constraint {
	switch {
	case strings.HasPrefix(model, "anthropic/claude"):
		return anthropicClaude
	case strings.HasPrefix(model, "openai/gpt"):
		return openaiStandard
	case strings.HasPrefix(model, "google/gemini"):
		return googleGemini
	default:
		return conservativeSchema
	}
}

// HasSchema reports whether a (provider, model) pair resolves to a table more
// specific than the conservative fallback.
func HasSchema(provider, model string) bool {
	switch provider {
	case "openai", "anthropic", "gemini":
		return true
	case "openrouter":
		return !sameTable(openRouterSchemaFor(model), conservativeSchema)
	default:
		return false
	}
}

func sameTable(a, b map[string]Constraint) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

// Providers returns the known provider names in sorted order.
func Providers() []string {
	names := make([]string, 0, len(supportedModels))
	for name := range supportedModels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SupportedModels returns the vetted model list for a provider.
func SupportedModels(provider string) []string {
	return supportedModels[provider]
}

// IsSupportedModel reports whether a model is in the provider's vetted list.
func IsSupportedModel(provider, model string) bool {
	for _, m := range supportedModels[provider] {
		if m == model {
			return true
		}
	}
	return false
}

// IsKnownProvider reports whether the provider name is recognized.
func IsKnownProvider(provider string) bool {
	_, ok := supportedModels[provider]
	return ok
}

// ParameterNames returns a schema's parameter names in sorted order.
func ParameterNames(schema map[string]Constraint) []string {
	names := make([]string, 0, len(schema))
	for name := range schema {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
