package mcp

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/haasonsaas/switchboard/pkg/models"
)

func validationTool() *stubHandler {
	return &stubHandler{
		def: models.ToolDefinition{
			Name:        "validate_me",
			Description: "exercises every validation rule",
			Parameters: []models.ToolParameter{
				{Name: "name", Type: models.TypeString, Description: "required string", Required: true},
				{Name: "pattern", Type: models.TypeString, Description: "constrained string", Pattern: "^[a-z]+$"},
				{Name: "count", Type: models.TypeInteger, Description: "bounded int",
					Minimum: models.Float64Ptr(1), Maximum: models.Float64Ptr(10)},
				{Name: "ratio", Type: models.TypeNumber, Description: "bounded float",
					Minimum: models.Float64Ptr(0), Maximum: models.Float64Ptr(1)},
				{Name: "flag", Type: models.TypeBoolean, Description: "bool"},
				{Name: "tags", Type: models.TypeArray, Description: "string items",
					Items: &models.ToolParameter{Name: "tag", Type: models.TypeString}},
				{Name: "mode", Type: models.TypeString, Description: "enum", Enum: []any{"fast", "slow"}},
				{Name: "level", Type: models.TypeInteger, Description: "numeric enum", Enum: []any{1, 2, 3}},
			},
		},
		result: map[string]any{"status": "ok"},
	}
}

func TestRegistry_ValidationMatrix(t *testing.T) {
	registry := NewRegistry(slog.Default())
	if err := registry.Register(validationTool()); err != nil {
		t.Fatalf("register: %v", err)
	}

	base := map[string]any{"name": "x"}
	with := func(key string, value any) map[string]any {
		args := map[string]any{"name": "x"}
		args[key] = value
		return args
	}

	tests := []struct {
		name    string
		args    map[string]any
		ok      bool
		errPart string
	}{
		{"minimal valid", base, true, ""},
		{"missing required", map[string]any{"count": 5}, false, "required parameter 'name' is missing"},
		{"unknown parameter", with("bogus", 1), false, "unknown parameter 'bogus'"},
		{"string type mismatch", with("pattern", 7), false, "expected string"},
		{"pattern mismatch", with("pattern", "ABC"), false, "does not match pattern"},
		{"pattern match", with("pattern", "abc"), true, ""},
		{"integer from json float", with("count", 5.0), true, ""},
		{"integer fractional", with("count", 5.5), false, "expected integer"},
		{"integer below min", with("count", 0), false, "must be >= 1"},
		{"integer above max", with("count", 11), false, "must be <= 10"},
		{"number in range", with("ratio", 0.5), true, ""},
		{"number above max", with("ratio", 1.5), false, "must be <= 1"},
		{"boolean mismatch", with("flag", "yes"), false, "expected boolean"},
		{"array item mismatch", with("tags", []any{"ok", 3}), false, "item 1"},
		{"array valid", with("tags", []any{"a", "b"}), true, ""},
		{"enum violation", with("mode", "medium"), false, "must be one of"},
		{"enum ok", with("mode", "fast"), true, ""},
		{"numeric enum json float", with("level", 2.0), true, ""},
		{"numeric enum violation", with("level", 9.0), false, "must be one of"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			execution := registry.Execute(context.Background(), "validate_me", tt.args)
			if execution.OK != tt.ok {
				t.Fatalf("OK = %v, error = %q", execution.OK, execution.Error)
			}
			if !tt.ok && !strings.Contains(execution.Error, tt.errPart) {
				t.Errorf("error = %q, want substring %q", execution.Error, tt.errPart)
			}
		})
	}
}

func TestRegistry_ExecuteUnknownTool(t *testing.T) {
	registry := NewRegistry(slog.Default())
	registry.Register(validationTool())

	execution := registry.Execute(context.Background(), "missing", nil)
	if execution.OK {
		t.Fatal("unknown tool must fail")
	}
	if !strings.Contains(execution.Error, "Tool 'missing' not found") {
		t.Errorf("error = %q", execution.Error)
	}
	if !strings.Contains(execution.Error, "validate_me") {
		t.Errorf("error should list available tools: %q", execution.Error)
	}
}

func TestRegistry_ReplaceOnCollisionBumpsVersion(t *testing.T) {
	registry := NewRegistry(slog.Default())

	var versions []int
	registry.OnChange(func(v int) { versions = append(versions, v) })

	registry.Register(validationTool())
	registry.Register(validationTool())

	if len(registry.Names()) != 1 {
		t.Errorf("names = %v, want single entry after replace", registry.Names())
	}
	if len(versions) != 2 || versions[1] != 2 {
		t.Errorf("versions = %v, want [1 2]", versions)
	}
}

func TestRegistry_ListPreservesRegistrationOrder(t *testing.T) {
	registry := NewRegistry(slog.Default())
	for _, name := range []string{"charlie", "alpha", "bravo"} {
		h := &stubHandler{
			def:    models.ToolDefinition{Name: name, Description: name},
			result: map[string]any{"status": "ok"},
		}
		if err := registry.Register(h); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}

	defs := registry.List()
	got := []string{defs[0].Name, defs[1].Name, defs[2].Name}
	want := []string{"charlie", "alpha", "bravo"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestRegistry_Unregister(t *testing.T) {
	registry := NewRegistry(slog.Default())
	registry.Register(validationTool())

	if !registry.Unregister("validate_me") {
		t.Fatal("unregister returned false")
	}
	if registry.Unregister("validate_me") {
		t.Error("second unregister should return false")
	}
	if len(registry.Names()) != 0 {
		t.Errorf("names = %v, want empty", registry.Names())
	}
}

func TestRegistry_RejectsMissingName(t *testing.T) {
	registry := NewRegistry(slog.Default())
	err := registry.Register(&stubHandler{def: models.ToolDefinition{Description: "anonymous"}})
	if err == nil {
		t.Error("expected error for empty tool name")
	}
}
