// Package tools provides the built-in AI configuration tools exposed over
// MCP: parameter writes, provider switching, and read-only introspection of
// models, constraints, and current state.
package tools

import (
	"fmt"
	"sort"
	"strings"

	"github.com/haasonsaas/switchboard/internal/runtimecfg"
)

const toolCategory = "ai_configuration"

var providerEnum = []any{"openai", "anthropic", "gemini", "openrouter"}

func separator(n int) string {
	return strings.Repeat("=", n)
}

func joinProviders() string {
	return strings.Join(runtimecfg.Providers(), ", ")
}

// sortedNames returns constraint map keys in stable order so rendered
// output is deterministic call to call.
func sortedNames(info map[string]runtimecfg.ConstraintInfo) []string {
	names := make([]string, 0, len(info))
	for name := range info {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func formatValue(v any) string {
	if v == nil {
		return "none"
	}
	return fmt.Sprintf("%v", v)
}

// settingsMap flattens one provider record for result documents.
func settingsMap(settings runtimecfg.ModelSettings) map[string]any {
	out := map[string]any{
		"model":         settings.Model,
		"temperature":   settings.Temperature,
		"system_prompt": settings.SystemPrompt,
	}
	if settings.MaxTokens != nil {
		out["max_tokens"] = *settings.MaxTokens
	} else {
		out["max_tokens"] = nil
	}
	for k, v := range settings.Extra {
		out[k] = v
	}
	return out
}
