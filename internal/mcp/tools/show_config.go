package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/haasonsaas/switchboard/internal/runtimecfg"
	"github.com/haasonsaas/switchboard/pkg/models"
)

// ShowConfigTool renders the active provider's configuration, flagging
// parameters that differ from their defaults.
type ShowConfigTool struct {
	store *runtimecfg.Store
}

func NewShowConfigTool(store *runtimecfg.Store) *ShowConfigTool {
	return &ShowConfigTool{store: store}
}

func (t *ShowConfigTool) Definition() models.ToolDefinition {
	return models.ToolDefinition{
		Name: "show_current_config",
		Description: "Display current AI configuration including provider, model, and all " +
			"parameter settings. Shows which values differ from defaults and provides valid ranges.",
		Parameters: []models.ToolParameter{
			{
				Name:        "verbose",
				Type:        models.TypeBoolean,
				Description: "Include detailed parameter descriptions and constraints",
				Default:     false,
			},
			{
				Name:        "format",
				Type:        models.TypeString,
				Description: "Output format for the configuration",
				Default:     "detailed",
				Enum:        []any{"detailed", "compact", "json"},
			},
		},
		Examples: []string{
			"show_current_config()",
			"show_current_config(verbose=true)",
			"show_current_config(format='compact')",
			"show_current_config(verbose=true, format='json')",
		},
		Category: toolCategory,
		Version:  "1.0.0",
	}
}

func (t *ShowConfigTool) Execute(ctx context.Context, args map[string]any) (map[string]any, error) {
	verbose, _ := args["verbose"].(bool)
	format, _ := args["format"].(string)
	if format == "" {
		format = "detailed"
	}

	active, err := t.store.ActiveConfig()
	if err != nil {
		return nil, err
	}
	constraints, err := t.store.Constraints(active.Provider)
	if err != nil {
		return nil, err
	}

	result := map[string]any{
		"status":   "success",
		"provider": active.Provider,
		"model":    active.Model,
		"message":  fmt.Sprintf("Showing configuration for %s (%s)", active.Provider, active.Model),
		"tool":     "show_current_config",
	}

	switch format {
	case "json":
		parameters := make(map[string]any, len(constraints))
		for name, info := range constraints {
			parameters[name] = map[string]any{
				"value":      info.Current,
				"default":    info.Default,
				"is_default": valuesEqual(info.Current, info.Default),
			}
		}
		data := map[string]any{
			"provider":   active.Provider,
			"model":      active.Model,
			"parameters": parameters,
		}
		if verbose {
			data["constraints"] = constraintDocs(constraints)
		}
		result["data"] = data

	case "compact":
		lines := []string{
			"Provider: " + active.Provider,
			"Model: " + active.Model,
			"",
			"Parameters:",
		}
		for _, name := range sortedNames(constraints) {
			info := constraints[name]
			marker := ""
			if !valuesEqual(info.Current, info.Default) {
				marker = " *"
			}
			lines = append(lines, fmt.Sprintf("  %s: %s%s", name, formatValue(info.Current), marker))
		}
		result["configuration"] = strings.Join(lines, "\n")

	default:
		lines := []string{
			"Current AI Configuration",
			separator(50),
			"Provider: " + active.Provider,
			"Model: " + active.Model,
			"",
			"Parameters:",
		}
		for _, name := range sortedNames(constraints) {
			info := constraints[name]
			state := "(modified)"
			if valuesEqual(info.Current, info.Default) {
				state = "(default)"
			}
			lines = append(lines, "")
			lines = append(lines, fmt.Sprintf("- %s:", name))
			lines = append(lines, fmt.Sprintf("  Current: %s %s", formatValue(info.Current), state))

			if verbose {
				lines = append(lines, "  Default: "+formatValue(info.Default))
				lines = append(lines, "  Type: "+info.Type)
				if info.Min != nil || info.Max != nil {
					lines = append(lines, fmt.Sprintf("  Range: %s - %s",
						formatBound(info.Min), formatBound(info.Max)))
				}
				if len(info.Enum) > 0 {
					lines = append(lines, "  Options: "+strings.Join(info.Enum, ", "))
				}
				if info.Description != "" {
					lines = append(lines, "  Description: "+info.Description)
				}
			}
		}
		lines = append(lines, "", "Use 'ai_configure' to modify these settings")
		result["configuration"] = strings.Join(lines, "\n")
	}

	return result, nil
}

func constraintDocs(constraints map[string]runtimecfg.ConstraintInfo) map[string]any {
	docs := make(map[string]any, len(constraints))
	for name, info := range constraints {
		doc := map[string]any{
			"type":          info.Type,
			"description":   info.Description,
			"default":       info.Default,
			"current_value": info.Current,
			"required":      info.Required,
		}
		if info.Min != nil {
			doc["min_value"] = *info.Min
		}
		if info.Max != nil {
			doc["max_value"] = *info.Max
		}
		if len(info.Enum) > 0 {
			doc["enum_values"] = info.Enum
		}
		docs[name] = doc
	}
	return docs
}

func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == b
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}
	return a == b
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	}
	return 0, false
}

func formatBound(v *float64) string {
	if v == nil {
		return "none"
	}
	return fmt.Sprintf("%v", *v)
}
