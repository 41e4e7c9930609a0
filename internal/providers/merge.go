package providers

import (
	"strconv"
	"strings"

	"github.com/haasonsaas/switchboard/pkg/models"
)

// ToolCallFragment is one streamed piece of a tool call as a provider emitted
// it. ID and Index identify the call when present; Name and Arguments are
// partial. Final marks fragments the provider flags as terminal for that call
// (Anthropic content_block_stop); FinishReason is the stream-level terminal
// signal OpenAI-class providers attach to their last delta.
type ToolCallFragment struct {
	ID           string
	Index        *int
	Name         string
	Arguments    string
	Final        bool
	FinishReason string
}

type scratchEntry struct {
	id   string
	name string
	args strings.Builder
}

// ToolCallAssembler merges streamed tool-call fragments into completed calls.
// One assembler serves one stream; it is not safe for concurrent use.
//
// Fragments are grouped by the first available key: the fragment id, else the
// key its index was first seen under, else (for providers that drop
// identifiers on continuation chunks) the single entry already in progress,
// else a synthesized "tool_call_0". An opening fragment carrying both id and
// index aliases the index to the id, so continuation chunks that keep only
// the index rejoin the same call. Names overwrite when non-empty; argument
// fragments concatenate in arrival order.
type ToolCallAssembler struct {
	provider string
	scratch  map[string]*scratchEntry
	order    []string
	byIndex  map[int]string
}

// NewToolCallAssembler creates an assembler with provider-scoped completion
// rules: "anthropic" completes on the explicit per-call final flag, "gemini"
// treats every fragment as self-complete, "openai" and "openrouter" complete
// all in-progress entries on a non-empty stream finish reason.
func NewToolCallAssembler(provider string) *ToolCallAssembler {
	return &ToolCallAssembler{
		provider: provider,
		scratch:  make(map[string]*scratchEntry),
		byIndex:  make(map[int]string),
	}
}

// Add merges one batch of fragments (the tool-call deltas of a single stream
// chunk) and returns any calls that completed as a result.
func (a *ToolCallAssembler) Add(fragments []ToolCallFragment) []models.CompletedToolCall {
	var completed []models.CompletedToolCall

	for _, frag := range fragments {
		key, ok := a.keyFor(frag)
		if !ok {
			continue
		}

		entry, exists := a.scratch[key]
		if !exists {
			entry = &scratchEntry{id: frag.ID}
			if entry.id == "" {
				entry.id = "auto_" + key
			}
			a.scratch[key] = entry
			a.order = append(a.order, key)
		}

		if frag.Name != "" {
			entry.name = frag.Name
		}
		if frag.Arguments != "" {
			entry.args.WriteString(frag.Arguments)
		}

		if a.isFinal(frag) {
			completed = append(completed, a.emit(key))
		}
	}

	return completed
}

// FinishStream handles the stream-level finish reason for OpenAI-class
// providers: a non-empty reason finalizes every in-progress entry.
func (a *ToolCallAssembler) FinishStream(finishReason string) []models.CompletedToolCall {
	if finishReason == "" {
		return nil
	}
	if a.provider != "openai" && a.provider != "openrouter" {
		return nil
	}
	return a.FinalizeRemaining()
}

// FinalizeRemaining converts every entry still in the scratch buffer into a
// completed call. Call it when the stream ends without explicit terminals.
func (a *ToolCallAssembler) FinalizeRemaining() []models.CompletedToolCall {
	var completed []models.CompletedToolCall
	for _, key := range a.order {
		if _, ok := a.scratch[key]; ok {
			completed = append(completed, a.emit(key))
		}
	}
	return completed
}

// Pending reports how many calls are still accumulating.
func (a *ToolCallAssembler) Pending() int {
	return len(a.scratch)
}

func (a *ToolCallAssembler) keyFor(frag ToolCallFragment) (string, bool) {
	if frag.ID != "" {
		if frag.Index != nil {
			a.byIndex[*frag.Index] = frag.ID
		}
		return frag.ID, true
	}
	if frag.Index != nil {
		if key, ok := a.byIndex[*frag.Index]; ok {
			return key, true
		}
		key := "idx_" + strconv.Itoa(*frag.Index)
		a.byIndex[*frag.Index] = key
		return key, true
	}
	if a.provider == "openai" || a.provider == "openrouter" {
		// Continuation chunks often arrive without id or index; they extend
		// the call already in progress.
		if len(a.order) > 0 {
			for _, key := range a.order {
				if _, ok := a.scratch[key]; ok {
					return key, true
				}
			}
		}
		return "tool_call_0", true
	}
	return "", false
}

func (a *ToolCallAssembler) isFinal(frag ToolCallFragment) bool {
	switch a.provider {
	case "anthropic":
		return frag.Final
	case "gemini":
		return true
	default:
		return frag.FinishReason != ""
	}
}

func (a *ToolCallAssembler) emit(key string) models.CompletedToolCall {
	entry := a.scratch[key]
	delete(a.scratch, key)

	name := entry.name
	if name == "" {
		name = "unknown_function"
	}
	return models.CompletedToolCall{
		ID:        entry.id,
		Name:      name,
		Arguments: entry.args.String(),
	}
}
