package providers

import (
	"testing"
)

func intPtr(v int) *int { return &v }

func TestAssembler_OpenAIFragmentedArguments(t *testing.T) {
	a := NewToolCallAssembler("openai")

	// First chunk carries id, name, and the opening of the arguments.
	completed := a.Add([]ToolCallFragment{
		{ID: "call_1", Index: intPtr(0), Name: "get_weather", Arguments: `{"loc`},
	})
	if len(completed) != 0 {
		t.Fatalf("expected no completions yet, got %d", len(completed))
	}

	// Continuation chunks drop the id but keep the index.
	completed = a.Add([]ToolCallFragment{
		{Index: intPtr(0), Arguments: `ation":"SF"}`},
	})
	if len(completed) != 0 {
		t.Fatalf("expected no completions yet, got %d", len(completed))
	}

	completed = a.FinishStream("tool_calls")
	if len(completed) != 1 {
		t.Fatalf("expected 1 completion, got %d", len(completed))
	}
	call := completed[0]
	if call.Name != "get_weather" {
		t.Errorf("name = %q, want get_weather", call.Name)
	}
	if call.Arguments != `{"location":"SF"}` {
		t.Errorf("arguments = %q", call.Arguments)
	}
}

func TestAssembler_InterleavedIndexOnlyContinuations(t *testing.T) {
	a := NewToolCallAssembler("openai")

	// Two parallel calls open with id and index; every continuation carries
	// only the index. Both must rejoin their original entries.
	a.Add([]ToolCallFragment{
		{ID: "call_a", Index: intPtr(0), Name: "first", Arguments: `{"a`},
		{ID: "call_b", Index: intPtr(1), Name: "second", Arguments: `{"b`},
	})
	a.Add([]ToolCallFragment{
		{Index: intPtr(0), Arguments: `":1}`},
		{Index: intPtr(1), Arguments: `":2}`},
	})

	completed := a.FinishStream("tool_calls")
	if len(completed) != 2 {
		t.Fatalf("expected 2 completions, got %d", len(completed))
	}
	if completed[0].ID != "call_a" || completed[0].Arguments != `{"a":1}` {
		t.Errorf("first call = %+v", completed[0])
	}
	if completed[1].ID != "call_b" || completed[1].Arguments != `{"b":2}` {
		t.Errorf("second call = %+v", completed[1])
	}
}

func TestAssembler_KeyPrecedence(t *testing.T) {
	a := NewToolCallAssembler("openai")

	// id and index both present: id wins, so a later fragment with only the
	// same id extends the same entry even if its index differs.
	a.Add([]ToolCallFragment{{ID: "call_a", Index: intPtr(3), Name: "fn", Arguments: "{"}})
	a.Add([]ToolCallFragment{{ID: "call_a", Arguments: "}"}})

	if a.Pending() != 1 {
		t.Fatalf("pending = %d, want 1", a.Pending())
	}
	completed := a.FinalizeRemaining()
	if len(completed) != 1 || completed[0].Arguments != "{}" {
		t.Fatalf("unexpected completions: %+v", completed)
	}
}

func TestAssembler_OpenAIKeylessFragmentExtendsLiveEntry(t *testing.T) {
	a := NewToolCallAssembler("openai")

	a.Add([]ToolCallFragment{{ID: "call_a", Name: "fn", Arguments: "par"}})
	// No id, no index: must attach to the entry in progress.
	a.Add([]ToolCallFragment{{Arguments: "tial"}})

	completed := a.FinalizeRemaining()
	if len(completed) != 1 {
		t.Fatalf("expected 1 completion, got %d", len(completed))
	}
	if completed[0].Arguments != "partial" {
		t.Errorf("arguments = %q, want partial", completed[0].Arguments)
	}
}

func TestAssembler_OpenAIKeylessFragmentWithNoLiveEntry(t *testing.T) {
	a := NewToolCallAssembler("openai")

	a.Add([]ToolCallFragment{{Name: "fn", Arguments: "{}"}})
	completed := a.FinalizeRemaining()
	if len(completed) != 1 {
		t.Fatalf("expected 1 completion, got %d", len(completed))
	}
	if completed[0].ID != "auto_tool_call_0" {
		t.Errorf("id = %q, want auto_tool_call_0", completed[0].ID)
	}
}

func TestAssembler_AnthropicSkipsKeylessFragments(t *testing.T) {
	a := NewToolCallAssembler("anthropic")

	completed := a.Add([]ToolCallFragment{{Arguments: "orphan"}})
	if len(completed) != 0 || a.Pending() != 0 {
		t.Fatalf("keyless fragment should be skipped, pending = %d", a.Pending())
	}
}

func TestAssembler_AnthropicPerCallFinal(t *testing.T) {
	a := NewToolCallAssembler("anthropic")

	a.Add([]ToolCallFragment{{ID: "toolu_1", Name: "search"}})
	a.Add([]ToolCallFragment{{ID: "toolu_1", Arguments: `{"q":"go"}`}})

	completed := a.Add([]ToolCallFragment{{ID: "toolu_1", Final: true}})
	if len(completed) != 1 {
		t.Fatalf("expected completion on final fragment, got %d", len(completed))
	}
	if completed[0].ID != "toolu_1" || completed[0].Arguments != `{"q":"go"}` {
		t.Errorf("unexpected call: %+v", completed[0])
	}

	// FinishStream must not re-emit for anthropic.
	if extra := a.FinishStream("end_turn"); len(extra) != 0 {
		t.Errorf("anthropic FinishStream emitted %d calls", len(extra))
	}
}

func TestAssembler_GeminiFragmentsAreSelfComplete(t *testing.T) {
	a := NewToolCallAssembler("gemini")

	completed := a.Add([]ToolCallFragment{
		{ID: "call_fn_1", Name: "fn_one", Arguments: `{"a":1}`},
		{ID: "call_fn_2", Name: "fn_two", Arguments: `{"b":2}`},
	})
	if len(completed) != 2 {
		t.Fatalf("expected 2 completions, got %d", len(completed))
	}
	if a.Pending() != 0 {
		t.Errorf("pending = %d, want 0", a.Pending())
	}
}

func TestAssembler_EmptyNameBecomesUnknownFunction(t *testing.T) {
	a := NewToolCallAssembler("openai")

	a.Add([]ToolCallFragment{{ID: "call_x", Arguments: "{}"}})
	completed := a.FinalizeRemaining()
	if len(completed) != 1 {
		t.Fatalf("expected 1 completion, got %d", len(completed))
	}
	if completed[0].Name != "unknown_function" {
		t.Errorf("name = %q, want unknown_function", completed[0].Name)
	}
}

func TestAssembler_FinishStreamEmptyReasonIsNoop(t *testing.T) {
	a := NewToolCallAssembler("openai")
	a.Add([]ToolCallFragment{{ID: "call_1", Name: "fn"}})

	if completed := a.FinishStream(""); len(completed) != 0 {
		t.Errorf("empty finish reason finalized %d calls", len(completed))
	}
	if a.Pending() != 1 {
		t.Errorf("pending = %d, want 1", a.Pending())
	}
}

func TestAssembler_FinalizeRemainingPreservesOrder(t *testing.T) {
	a := NewToolCallAssembler("openai")

	a.Add([]ToolCallFragment{
		{ID: "call_1", Name: "first"},
		{ID: "call_2", Name: "second"},
		{ID: "call_3", Name: "third"},
	})
	completed := a.FinalizeRemaining()
	if len(completed) != 3 {
		t.Fatalf("expected 3 completions, got %d", len(completed))
	}
	for i, want := range []string{"first", "second", "third"} {
		if completed[i].Name != want {
			t.Errorf("completed[%d].Name = %q, want %q", i, completed[i].Name, want)
		}
	}
}
