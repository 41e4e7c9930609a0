package tools

import (
	"fmt"

	"github.com/haasonsaas/switchboard/internal/mcp"
	"github.com/haasonsaas/switchboard/internal/runtimecfg"
)

// RegisterAll registers the built-in configuration tools on the registry.
func RegisterAll(registry *mcp.Registry, store *runtimecfg.Store) error {
	handlers := []mcp.Handler{
		NewAIConfigureTool(store),
		NewShowConfigTool(store),
		NewListModelsTool(store),
		NewSwitchProviderTool(store),
		NewParameterInfoTool(store),
		NewResetConfigTool(store),
	}
	for _, h := range handlers {
		if err := registry.Register(h); err != nil {
			return fmt.Errorf("register %s: %w", h.Definition().Name, err)
		}
	}
	return nil
}
