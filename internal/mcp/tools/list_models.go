package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/haasonsaas/switchboard/internal/runtimecfg"
	"github.com/haasonsaas/switchboard/pkg/models"
)

// ListModelsTool lists the vetted models per provider, marking the active
// one.
type ListModelsTool struct {
	store *runtimecfg.Store
}

func NewListModelsTool(store *runtimecfg.Store) *ListModelsTool {
	return &ListModelsTool{store: store}
}

func (t *ListModelsTool) Definition() models.ToolDefinition {
	return models.ToolDefinition{
		Name: "list_available_models",
		Description: "List available AI models for each provider, indicating which model is " +
			"currently active.",
		Parameters: []models.ToolParameter{
			{
				Name:        "provider",
				Type:        models.TypeString,
				Description: "Limit the listing to one provider",
				Enum:        providerEnum,
			},
			{
				Name:        "format",
				Type:        models.TypeString,
				Description: "Output format for the model list",
				Default:     "grouped",
				Enum:        []any{"grouped", "flat", "json"},
			},
		},
		Examples: []string{
			"list_available_models()",
			"list_available_models(format='flat')",
			"list_available_models(provider='anthropic', format='json')",
		},
		Category: toolCategory,
		Version:  "1.0.0",
	}
}

func (t *ListModelsTool) Execute(ctx context.Context, args map[string]any) (map[string]any, error) {
	filterProvider, _ := args["provider"].(string)
	format, _ := args["format"].(string)
	if format == "" {
		format = "grouped"
	}

	active, err := t.store.ActiveConfig()
	if err != nil {
		return nil, err
	}

	providerNames := runtimecfg.Providers()
	if filterProvider != "" {
		if !runtimecfg.IsKnownProvider(filterProvider) {
			return nil, fmt.Errorf("provider '%s' not found, available: %s",
				filterProvider, joinProviders())
		}
		providerNames = []string{filterProvider}
	}

	total := 0
	byProvider := make(map[string][]string, len(providerNames))
	for _, name := range providerNames {
		modelList := runtimecfg.SupportedModels(name)
		byProvider[name] = modelList
		total += len(modelList)
	}

	result := map[string]any{
		"status":          "success",
		"active_provider": active.Provider,
		"active_model":    active.Model,
		"message": fmt.Sprintf("Found %d models across %d providers",
			total, len(providerNames)),
		"tool": "list_available_models",
	}

	switch format {
	case "json":
		providersDoc := make(map[string]any, len(providerNames))
		for _, name := range providerNames {
			entries := make([]map[string]any, 0, len(byProvider[name]))
			for _, model := range byProvider[name] {
				entries = append(entries, map[string]any{
					"name":   model,
					"active": name == active.Provider && model == active.Model,
				})
			}
			providersDoc[name] = entries
		}
		result["data"] = map[string]any{
			"providers": providersDoc,
			"active": map[string]any{
				"provider": active.Provider,
				"model":    active.Model,
			},
		}

	case "flat":
		lines := []string{
			"Available AI Models:",
			fmt.Sprintf("Active: %s/%s", active.Provider, active.Model),
			"",
		}
		for _, name := range providerNames {
			for _, model := range byProvider[name] {
				marker := ""
				if name == active.Provider && model == active.Model {
					marker = " (current)"
				}
				lines = append(lines, fmt.Sprintf("  %s/%s%s", name, model, marker))
			}
		}
		result["models"] = strings.Join(lines, "\n")

	default:
		lines := []string{
			"Available AI Models",
			separator(50),
			fmt.Sprintf("Current: %s - %s", active.Provider, active.Model),
			"",
		}
		for _, name := range providerNames {
			header := strings.ToUpper(name)
			if name == active.Provider {
				header += " (active)"
			}
			lines = append(lines, header, strings.Repeat("-", len(header)))
			for _, model := range byProvider[name] {
				marker := ""
				if name == active.Provider && model == active.Model {
					marker = " (current)"
				}
				lines = append(lines, fmt.Sprintf("  - %s%s", model, marker))
			}
			lines = append(lines, "")
		}
		lines = append(lines, fmt.Sprintf("Total: %d models across %d providers", total, len(providerNames)))
		lines = append(lines, "", "Use 'switch_provider' to change providers")
		result["models"] = strings.Join(lines, "\n")
	}

	return result, nil
}
