package mcp

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/haasonsaas/switchboard/pkg/models"
)

// Handler executes one named tool.
type Handler interface {
	Definition() models.ToolDefinition
	Execute(ctx context.Context, args map[string]any) (map[string]any, error)
}

// Execution is the outcome of one tool run.
type Execution struct {
	OK       bool
	Result   map[string]any
	Error    string
	Duration time.Duration
}

type registryEntry struct {
	definition models.ToolDefinition
	handler    Handler
}

// Registry maintains the ordered mapping from tool name to handler.
// Registration replaces on name collision and bumps the list version so
// subscribers can be told the tool list changed.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*registryEntry
	order   []string
	version int

	// onChange fires after every registration change with the new version.
	onChange func(version int)
	logger   *slog.Logger
}

// NewRegistry creates an empty tool registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		entries: make(map[string]*registryEntry),
		logger:  logger.With("component", "mcp.registry"),
	}
}

// OnChange sets the hook invoked after register/unregister.
func (r *Registry) OnChange(fn func(version int)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onChange = fn
}

// Register adds a tool handler, replacing any tool of the same name. The
// tool's input schema is compiled up front so malformed schemas fail at
// registration rather than at call time.
func (r *Registry) Register(handler Handler) error {
	def := handler.Definition()
	if def.Name == "" {
		return fmt.Errorf("tool definition missing name")
	}
	if err := compileSchema(def); err != nil {
		return fmt.Errorf("tool %s: %w", def.Name, err)
	}

	r.mu.Lock()
	if _, exists := r.entries[def.Name]; !exists {
		r.order = append(r.order, def.Name)
	}
	r.entries[def.Name] = &registryEntry{definition: def, handler: handler}
	r.version++
	version := r.version
	onChange := r.onChange
	r.mu.Unlock()

	r.logger.Info("tool registered",
		"tool", def.Name,
		"category", def.Category,
		"parameters", len(def.Parameters))

	if onChange != nil {
		onChange(version)
	}
	return nil
}

// Unregister removes a tool by name.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	if _, ok := r.entries[name]; !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.entries, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.version++
	version := r.version
	onChange := r.onChange
	r.mu.Unlock()

	r.logger.Info("tool unregistered", "tool", name)

	if onChange != nil {
		onChange(version)
	}
	return true
}

// List returns all tool definitions in registration order.
func (r *Registry) List() []models.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]models.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		result = append(result, r.entries[name].definition)
	}
	return result
}

// Get returns a tool definition by name.
func (r *Registry) Get(name string) (models.ToolDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[name]
	if !ok {
		return models.ToolDefinition{}, false
	}
	return entry.definition, true
}

// Names returns registered tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Version returns the current tool list version.
func (r *Registry) Version() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version
}

// Execute validates arguments and dispatches to the tool's handler. On
// validation failure the handler is not invoked. The returned Execution
// carries the elapsed time either way.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) Execution {
	start := time.Now()

	r.mu.RLock()
	entry, ok := r.entries[name]
	available := append([]string(nil), r.order...)
	r.mu.RUnlock()

	if !ok {
		return Execution{
			Error:    fmt.Sprintf("Tool '%s' not found. Available tools: %v", name, available),
			Duration: time.Since(start),
		}
	}

	if args == nil {
		args = map[string]any{}
	}
	if err := validateArguments(entry.definition, args); err != nil {
		return Execution{
			Error:    fmt.Sprintf("Argument validation failed: %s", err),
			Duration: time.Since(start),
		}
	}

	result, err := entry.handler.Execute(ctx, args)
	duration := time.Since(start)
	if err != nil {
		r.logger.Error("tool execution failed",
			"tool", name,
			"duration", duration,
			"error", err)
		return Execution{Error: err.Error(), Duration: duration}
	}

	r.logger.Info("tool executed", "tool", name, "duration", duration)
	return Execution{OK: true, Result: result, Duration: duration}
}

func compileSchema(def models.ToolDefinition) error {
	compiler := jsonschema.NewCompiler()
	url := def.Name + ".schema.json"
	if err := compiler.AddResource(url, bytes.NewReader(def.InputSchemaJSON())); err != nil {
		return fmt.Errorf("invalid input schema: %w", err)
	}
	if _, err := compiler.Compile(url); err != nil {
		return fmt.Errorf("invalid input schema: %w", err)
	}
	return nil
}

// validateArguments enforces the parameter contract: required parameters
// present, unknown parameters rejected, and each value checked against its
// declared type, enum, range, pattern, and item schema.
func validateArguments(def models.ToolDefinition, args map[string]any) error {
	byName := make(map[string]models.ToolParameter, len(def.Parameters))
	for _, param := range def.Parameters {
		byName[param.Name] = param
		if param.Required {
			if _, ok := args[param.Name]; !ok {
				return fmt.Errorf("required parameter '%s' is missing", param.Name)
			}
		}
	}

	for name, value := range args {
		param, ok := byName[name]
		if !ok {
			return fmt.Errorf("unknown parameter '%s'", name)
		}
		if err := validateValue(param, value); err != nil {
			return fmt.Errorf("parameter '%s': %s", name, err)
		}
	}
	return nil
}

func validateValue(param models.ToolParameter, value any) error {
	if value == nil {
		if param.Required {
			return fmt.Errorf("is required but got null")
		}
		return nil
	}

	switch param.Type {
	case models.TypeString:
		str, ok := value.(string)
		if !ok {
			return fmt.Errorf("expected string, got %T", value)
		}
		if param.Pattern != "" {
			matched, err := regexp.MatchString(param.Pattern, str)
			if err != nil || !matched {
				return fmt.Errorf("does not match pattern %s", param.Pattern)
			}
		}

	case models.TypeInteger:
		i, ok := asIntArg(value)
		if !ok {
			return fmt.Errorf("expected integer, got %T", value)
		}
		if err := checkBounds(param, float64(i)); err != nil {
			return err
		}

	case models.TypeNumber:
		f, ok := asFloatArg(value)
		if !ok {
			return fmt.Errorf("expected number, got %T", value)
		}
		if err := checkBounds(param, f); err != nil {
			return err
		}

	case models.TypeBoolean:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("expected boolean, got %T", value)
		}

	case models.TypeArray:
		arr, ok := value.([]any)
		if !ok {
			return fmt.Errorf("expected array, got %T", value)
		}
		if param.Items != nil {
			for i, item := range arr {
				if err := validateValue(*param.Items, item); err != nil {
					return fmt.Errorf("item %d: %s", i, err)
				}
			}
		}

	case models.TypeObject:
		if _, ok := value.(map[string]any); !ok {
			return fmt.Errorf("expected object, got %T", value)
		}
	}

	if len(param.Enum) > 0 && !enumContains(param.Enum, value) {
		return fmt.Errorf("must be one of %v, got %v", param.Enum, value)
	}
	return nil
}

func checkBounds(param models.ToolParameter, v float64) error {
	if param.Minimum != nil && v < *param.Minimum {
		return fmt.Errorf("must be >= %v", *param.Minimum)
	}
	if param.Maximum != nil && v > *param.Maximum {
		return fmt.Errorf("must be <= %v", *param.Maximum)
	}
	return nil
}

func asIntArg(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if v == float64(int(v)) {
			return int(v), true
		}
	}
	return 0, false
}

func asFloatArg(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

func enumContains(enum []any, value any) bool {
	for _, e := range enum {
		if e == value {
			return true
		}
		// JSON decoding yields float64 for numeric enum entries.
		if ef, ok := asFloatArg(e); ok {
			if vf, vok := asFloatArg(value); vok && ef == vf {
				return true
			}
		}
	}
	return false
}
