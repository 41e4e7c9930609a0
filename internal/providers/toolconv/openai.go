// Package toolconv translates canonical tool definitions into each provider's
// wire format. All conversions are pure functions over the definition list.
package toolconv

import (
	openai "github.com/sashabaranov/go-openai"

	"github.com/haasonsaas/switchboard/pkg/models"
)

// ToOpenAITools converts canonical tools to OpenAI function-calling schema.
// OpenRouter consumes the same shape.
func ToOpenAITools(tools []models.ToolDefinition) []openai.Tool {
	if len(tools) == 0 {
		return nil
	}
	result := make([]openai.Tool, len(tools))
	for i, tool := range tools {
		result[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.InputSchema(),
			},
		}
	}
	return result
}
