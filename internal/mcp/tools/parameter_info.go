package tools

import (
	"context"
	"fmt"

	"github.com/haasonsaas/switchboard/internal/runtimecfg"
	"github.com/haasonsaas/switchboard/pkg/models"
)

// ParameterInfoTool is read-only introspection of parameter constraints,
// optionally compared across all providers.
type ParameterInfoTool struct {
	store *runtimecfg.Store
}

func NewParameterInfoTool(store *runtimecfg.Store) *ParameterInfoTool {
	return &ParameterInfoTool{store: store}
}

func (t *ParameterInfoTool) Definition() models.ToolDefinition {
	return models.ToolDefinition{
		Name: "get_parameter_info",
		Description: "Get detailed information about AI configuration parameters including " +
			"valid ranges, constraints, and provider-specific differences.",
		Parameters: []models.ToolParameter{
			{
				Name: "parameter",
				Type: models.TypeString,
				Description: "Specific parameter to get info about (e.g. 'temperature', " +
					"'max_tokens'). Leave empty for all parameters.",
			},
			{
				Name:        "provider",
				Type:        models.TypeString,
				Description: "Provider to get parameter info for. Uses current provider if not specified.",
				Enum:        providerEnum,
			},
			{
				Name:        "compare",
				Type:        models.TypeBoolean,
				Description: "Compare parameter constraints across all providers",
				Default:     false,
			},
		},
		Examples: []string{
			"get_parameter_info(parameter='temperature')",
			"get_parameter_info(provider='anthropic')",
			"get_parameter_info(parameter='max_tokens', compare=true)",
			"get_parameter_info()",
		},
		Category: toolCategory,
		Version:  "1.0.0",
	}
}

func (t *ParameterInfoTool) Execute(ctx context.Context, args map[string]any) (map[string]any, error) {
	paramName, _ := args["parameter"].(string)
	specifiedProvider, _ := args["provider"].(string)
	compare, _ := args["compare"].(bool)

	active, err := t.store.ActiveConfig()
	if err != nil {
		return nil, err
	}

	var providerNames []string
	if compare {
		providerNames = runtimecfg.Providers()
	} else if specifiedProvider != "" {
		providerNames = []string{specifiedProvider}
	} else {
		providerNames = []string{active.Provider}
	}

	info := make(map[string]any, len(providerNames))
	found := false
	for _, name := range providerNames {
		constraints, err := t.store.Constraints(name)
		if err != nil {
			return nil, err
		}

		if paramName != "" {
			if c, ok := constraints[paramName]; ok {
				info[name] = constraintDocs(map[string]runtimecfg.ConstraintInfo{paramName: c})
				found = true
			} else {
				info[name] = map[string]any{}
			}
			continue
		}
		info[name] = constraintDocs(constraints)
		found = found || len(constraints) > 0
	}

	if paramName != "" && !found {
		return nil, fmt.Errorf("parameter '%s' not recognized by any of: %v", paramName, providerNames)
	}

	message := fmt.Sprintf("Parameter constraints for %v", providerNames)
	if paramName != "" {
		message = fmt.Sprintf("Constraints for '%s' across %v", paramName, providerNames)
	}

	return map[string]any{
		"status":          "success",
		"data":            map[string]any{"providers": info},
		"active_provider": active.Provider,
		"message":         message,
		"tool":            "get_parameter_info",
	}, nil
}
