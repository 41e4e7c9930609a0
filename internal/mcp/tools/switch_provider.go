package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/haasonsaas/switchboard/internal/runtimecfg"
	"github.com/haasonsaas/switchboard/pkg/models"
)

// SwitchProviderTool changes the active provider. The switch is two-phase:
// without confirm it only renders a comparison of current and target
// configuration, with confirm=true it performs the switch and the optional
// model write.
type SwitchProviderTool struct {
	store *runtimecfg.Store
}

func NewSwitchProviderTool(store *runtimecfg.Store) *SwitchProviderTool {
	return &SwitchProviderTool{store: store}
}

func (t *SwitchProviderTool) Definition() models.ToolDefinition {
	return models.ToolDefinition{
		Name: "switch_provider",
		Description: "Switch the active AI provider. Requires confirmation before making the " +
			"change. Shows comparison between current and target provider.",
		Parameters: []models.ToolParameter{
			{
				Name:        "provider",
				Type:        models.TypeString,
				Description: "Target provider to switch to",
				Required:    true,
				Enum:        providerEnum,
			},
			{
				Name:        "confirm",
				Type:        models.TypeBoolean,
				Description: "Explicit confirmation to proceed with the switch",
				Default:     false,
			},
			{
				Name:        "model",
				Type:        models.TypeString,
				Description: "Optional: specific model to use with the new provider",
			},
		},
		Examples: []string{
			"switch_provider(provider='anthropic')",
			"switch_provider(provider='openai', confirm=true)",
			"switch_provider(provider='gemini', model='gemini-1.5-pro', confirm=true)",
		},
		Category: toolCategory,
		Version:  "1.0.0",
	}
}

func (t *SwitchProviderTool) Execute(ctx context.Context, args map[string]any) (map[string]any, error) {
	targetProvider := args["provider"].(string)
	confirmed, _ := args["confirm"].(bool)
	targetModel, _ := args["model"].(string)

	current, err := t.store.ActiveConfig()
	if err != nil {
		return nil, err
	}

	if current.Provider == targetProvider && targetModel == "" {
		return map[string]any{
			"status":           "no_change",
			"message":          fmt.Sprintf("Already using %s", targetProvider),
			"current_provider": current.Provider,
			"current_model":    current.Model,
			"tool":             "switch_provider",
		}, nil
	}

	if !runtimecfg.IsKnownProvider(targetProvider) {
		return nil, fmt.Errorf("provider '%s' not available, available providers: %s",
			targetProvider, joinProviders())
	}

	availableModels := runtimecfg.SupportedModels(targetProvider)
	finalModel := targetModel
	if finalModel == "" {
		targetSettings, err := t.store.ProviderConfig(targetProvider)
		if err != nil {
			return nil, err
		}
		finalModel = targetSettings.Model
		if finalModel == "" && len(availableModels) > 0 {
			finalModel = availableModels[0]
		}
	} else if !runtimecfg.IsSupportedModel(targetProvider, targetModel) {
		return nil, fmt.Errorf("model '%s' not available for %s, available models: %s",
			targetModel, targetProvider, strings.Join(availableModels, ", "))
	}

	if !confirmed {
		lines := []string{
			"Provider Switch Request",
			separator(50),
			"",
			"Current Configuration:",
			"  Provider: " + current.Provider,
			"  Model: " + current.Model,
			"",
			"Target Configuration:",
			"  Provider: " + targetProvider,
			"  Model: " + finalModel,
			"",
			"This will change the AI provider for all future interactions.",
			"",
			fmt.Sprintf("To confirm, use: switch_provider(provider='%s', confirm=true)", targetProvider),
		}
		return map[string]any{
			"status":           "confirmation_required",
			"message":          strings.Join(lines, "\n"),
			"current_provider": current.Provider,
			"current_model":    current.Model,
			"target_provider":  targetProvider,
			"target_model":     finalModel,
			"tool":             "switch_provider",
		}, nil
	}

	if err := t.store.SwitchActive(targetProvider); err != nil {
		return nil, err
	}
	if targetModel != "" {
		if _, err := t.store.SetParameter(targetProvider, "model", targetModel); err != nil {
			return nil, err
		}
	}

	lines := []string{
		"Provider switched successfully.",
		"",
		fmt.Sprintf("Previous: %s (%s)", current.Provider, current.Model),
		fmt.Sprintf("Current: %s (%s)", targetProvider, finalModel),
		"",
		"The new provider is now active for all interactions.",
	}
	return map[string]any{
		"status":            "success",
		"message":           strings.Join(lines, "\n"),
		"previous_provider": current.Provider,
		"previous_model":    current.Model,
		"current_provider":  targetProvider,
		"current_model":     finalModel,
		"tool":              "switch_provider",
	}, nil
}
