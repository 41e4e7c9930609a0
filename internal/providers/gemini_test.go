package providers

import (
	"context"
	"log/slog"
	"testing"

	"google.golang.org/genai"
)

func TestGeminiStream_SynthesizedCallIDsAreUnique(t *testing.T) {
	adapter := &GeminiAdapter{logger: slog.Default()}
	events := make(chan *Event, 8)

	// Two calls to the same function in one response batch must still get
	// distinct ids.
	stream := func(yield func(*genai.GenerateContentResponse, error) bool) {
		yield(&genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{
				Content: &genai.Content{Parts: []*genai.Part{
					{FunctionCall: &genai.FunctionCall{Name: "lookup", Args: map[string]any{"q": "a"}}},
					{FunctionCall: &genai.FunctionCall{Name: "lookup", Args: map[string]any{"q": "b"}}},
				}},
			}},
		}, nil)
	}
	adapter.processStream(context.Background(), stream, "gemini-1.5-flash", events)
	close(events)

	ids := make(map[string]bool)
	for event := range events {
		for _, call := range event.ToolCalls {
			if call.Name != "lookup" {
				t.Errorf("name = %q, want lookup", call.Name)
			}
			if ids[call.ID] {
				t.Errorf("duplicate call id %q", call.ID)
			}
			ids[call.ID] = true
		}
	}
	if len(ids) != 2 {
		t.Errorf("collected %d ids, want 2", len(ids))
	}
}
