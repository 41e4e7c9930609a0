package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/haasonsaas/switchboard/internal/runtimecfg"
	"github.com/haasonsaas/switchboard/pkg/models"
)

// AIConfigureTool writes one validated parameter. String values are parsed
// per the target parameter's declared type, and the literal "default"
// resolves to the constraint's default.
type AIConfigureTool struct {
	store *runtimecfg.Store
}

func NewAIConfigureTool(store *runtimecfg.Store) *AIConfigureTool {
	return &AIConfigureTool{store: store}
}

func (t *AIConfigureTool) Definition() models.ToolDefinition {
	return models.ToolDefinition{
		Name: "ai_configure",
		Description: "Set an AI model parameter for a provider. Values are given as strings " +
			"and parsed per the parameter's declared type; the value 'default' restores the " +
			"parameter's default.",
		Parameters: []models.ToolParameter{
			{
				Name:        "provider",
				Type:        models.TypeString,
				Description: "Provider to configure. Uses the active provider if not specified.",
				Enum:        providerEnum,
			},
			{
				Name:        "parameter",
				Type:        models.TypeString,
				Description: "Parameter to set, e.g. 'temperature', 'max_tokens', 'model', 'system_prompt'.",
				Required:    true,
			},
			{
				Name:        "value",
				Type:        models.TypeString,
				Description: "New value as a string, or 'default' to restore the default.",
				Required:    true,
			},
		},
		Examples: []string{
			"ai_configure(parameter='temperature', value='0.9')",
			"ai_configure(provider='anthropic', parameter='max_tokens', value='2048')",
			"ai_configure(parameter='temperature', value='default')",
			"ai_configure(parameter='model', value='gpt-4o')",
		},
		Category: toolCategory,
		Version:  "1.0.0",
	}
}

func (t *AIConfigureTool) Execute(ctx context.Context, args map[string]any) (map[string]any, error) {
	parameter := args["parameter"].(string)
	rawValue := args["value"].(string)

	provider, _ := args["provider"].(string)
	if provider == "" {
		active, err := t.store.ActiveProvider()
		if err != nil {
			return nil, err
		}
		provider = active
	}

	oldValue, err := t.currentValue(provider, parameter)
	if err != nil {
		return nil, err
	}

	value, err := t.resolveValue(provider, parameter, rawValue)
	if err != nil {
		return nil, err
	}

	newValue, err := t.store.SetParameter(provider, parameter, value)
	if err != nil {
		return nil, err
	}

	settings, err := t.store.ProviderConfig(provider)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"status":         "success",
		"provider":       provider,
		"parameter":      parameter,
		"old_value":      oldValue,
		"new_value":      newValue,
		"current_config": settingsMap(settings),
		"message": fmt.Sprintf("Set %s.%s: %s -> %s",
			provider, parameter, formatValue(oldValue), formatValue(newValue)),
		"tool": "ai_configure",
	}, nil
}

func (t *AIConfigureTool) currentValue(provider, parameter string) (any, error) {
	settings, err := t.store.ProviderConfig(provider)
	if err != nil {
		return nil, err
	}
	current := settingsMap(settings)
	return current[parameter], nil
}

// resolveValue turns the string argument into a typed value: "default" reads
// the constraint table, everything else parses per the declared type.
func (t *AIConfigureTool) resolveValue(provider, parameter, raw string) (any, error) {
	switch parameter {
	case "model", "system_prompt":
		if raw == "default" {
			return nil, fmt.Errorf("parameter '%s' has no default", parameter)
		}
		return raw, nil
	}

	constraints, err := t.store.Constraints(provider)
	if err != nil {
		return nil, err
	}
	info, ok := constraints[parameter]
	if !ok {
		return nil, fmt.Errorf("unknown parameter '%s' for provider '%s', available: %v",
			parameter, provider, sortedNames(constraints))
	}

	if raw == "default" {
		if info.Default == nil {
			return nil, fmt.Errorf("parameter '%s' has no default", parameter)
		}
		return info.Default, nil
	}

	return parseTyped(info.Type, raw)
}

func parseTyped(paramType, raw string) (any, error) {
	switch paramType {
	case runtimecfg.TypeFloat:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("cannot parse %q as a number", raw)
		}
		return f, nil

	case runtimecfg.TypeInteger:
		i, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("cannot parse %q as an integer", raw)
		}
		return i, nil

	case runtimecfg.TypeBoolean:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("cannot parse %q as a boolean", raw)
		}
		return b, nil

	case runtimecfg.TypeArray:
		var arr []any
		if err := json.Unmarshal([]byte(raw), &arr); err != nil {
			return nil, fmt.Errorf("cannot parse %q as a JSON array", raw)
		}
		return arr, nil

	case runtimecfg.TypeObject:
		var obj map[string]any
		if err := json.Unmarshal([]byte(raw), &obj); err != nil {
			return nil, fmt.Errorf("cannot parse %q as a JSON object", raw)
		}
		return obj, nil

	default:
		return raw, nil
	}
}
