package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/haasonsaas/switchboard/internal/runtimecfg"
	"github.com/haasonsaas/switchboard/pkg/models"
)

// ResetConfigTool restores constraint defaults. Two-phase: without confirm
// it reports what would change without mutating; provider='all' targets
// every provider.
type ResetConfigTool struct {
	store *runtimecfg.Store
}

func NewResetConfigTool(store *runtimecfg.Store) *ResetConfigTool {
	return &ResetConfigTool{store: store}
}

func (t *ResetConfigTool) Definition() models.ToolDefinition {
	return models.ToolDefinition{
		Name: "reset_config",
		Description: "Reset AI configuration parameters to their default values. Requires " +
			"confirmation. Can reset one provider, all providers, or specific parameters.",
		Parameters: []models.ToolParameter{
			{
				Name: "provider",
				Type: models.TypeString,
				Description: "Provider to reset, or 'all' for every provider. Uses current " +
					"provider if not specified.",
				Enum: append(append([]any{}, providerEnum...), "all"),
			},
			{
				Name:        "confirm",
				Type:        models.TypeBoolean,
				Description: "Explicit confirmation to proceed with the reset",
				Default:     false,
			},
			{
				Name:        "parameters",
				Type:        models.TypeArray,
				Description: "Optional: specific parameters to reset instead of all",
				Items:       &models.ToolParameter{Name: "parameter", Type: models.TypeString},
			},
		},
		Examples: []string{
			"reset_config()",
			"reset_config(confirm=true)",
			"reset_config(provider='all', confirm=true)",
			"reset_config(parameters=['temperature'], confirm=true)",
		},
		Category: toolCategory,
		Version:  "1.0.0",
	}
}

func (t *ResetConfigTool) Execute(ctx context.Context, args map[string]any) (map[string]any, error) {
	specifiedProvider, _ := args["provider"].(string)
	confirmed, _ := args["confirm"].(bool)

	var specificParams []string
	if raw, ok := args["parameters"].([]any); ok {
		for _, item := range raw {
			if s, ok := item.(string); ok {
				specificParams = append(specificParams, s)
			}
		}
	}

	active, err := t.store.ActiveConfig()
	if err != nil {
		return nil, err
	}

	var providerNames []string
	resetAll := specifiedProvider == "all"
	if resetAll {
		providerNames = runtimecfg.Providers()
	} else if specifiedProvider != "" {
		providerNames = []string{specifiedProvider}
	} else {
		providerNames = []string{active.Provider}
	}

	wanted := func(name string) bool {
		if len(specificParams) == 0 {
			return true
		}
		for _, p := range specificParams {
			if p == name {
				return true
			}
		}
		return false
	}

	// Collect current vs default for every affected parameter.
	resetDetails := make(map[string]any, len(providerNames))
	anyChanges := false
	for _, name := range providerNames {
		constraints, err := t.store.Constraints(name)
		if err != nil {
			return nil, err
		}

		changes := make(map[string]any)
		for _, paramName := range sortedNames(constraints) {
			info := constraints[paramName]
			if info.Default == nil || !wanted(paramName) {
				continue
			}
			willChange := !valuesEqual(info.Current, info.Default)
			anyChanges = anyChanges || willChange
			changes[paramName] = map[string]any{
				"current":     info.Current,
				"default":     info.Default,
				"will_change": willChange,
			}
		}
		resetDetails[name] = changes
	}

	if !anyChanges {
		return map[string]any{
			"status":  "no_change",
			"message": "All parameters are already at their default values",
			"tool":    "reset_config",
		}, nil
	}

	if !confirmed {
		lines := []string{
			"Configuration Reset Request",
			separator(50),
			"",
		}
		if resetAll {
			lines = append(lines, "This will reset ALL providers to default settings.", "")
		}

		for _, name := range providerNames {
			lines = append(lines, strings.ToUpper(name)+":")
			changes := resetDetails[name].(map[string]any)
			hasChanges := false
			for _, paramName := range sortedKeys(changes) {
				info := changes[paramName].(map[string]any)
				if info["will_change"].(bool) {
					hasChanges = true
					lines = append(lines, fmt.Sprintf("  - %s: %s -> %s",
						paramName, formatValue(info["current"]), formatValue(info["default"])))
				}
			}
			if !hasChanges {
				lines = append(lines, "  (no changes needed)")
			}
			lines = append(lines, "")
		}

		confirmHint := "reset_config(confirm=true)"
		if specifiedProvider != "" {
			confirmHint = fmt.Sprintf("reset_config(provider='%s', confirm=true)", specifiedProvider)
		}
		lines = append(lines, "To confirm, use: "+confirmHint)

		return map[string]any{
			"status":        "confirmation_required",
			"message":       strings.Join(lines, "\n"),
			"reset_details": resetDetails,
			"tool":          "reset_config",
		}, nil
	}

	results := make(map[string]any, len(providerNames))
	resetCount := 0
	for _, name := range providerNames {
		applied, err := t.store.Reset(name, specificParams)
		if err != nil {
			results[name] = "error: " + err.Error()
			continue
		}
		if len(applied) == 0 {
			results[name] = "no_changes"
			continue
		}
		results[name] = "success"
		resetCount++
	}

	return map[string]any{
		"status":  "success",
		"message": fmt.Sprintf("Reset %d of %d providers to defaults", resetCount, len(providerNames)),
		"results": results,
		"tool":    "reset_config",
	}, nil
}

func sortedKeys(m map[string]any) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
