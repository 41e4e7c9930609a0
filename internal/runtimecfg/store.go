package runtimecfg

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

const defaultSystemPrompt = "You are a helpful AI assistant."

// Document is the persisted runtime configuration.
type Document struct {
	Provider ProviderSection `yaml:"provider"`
	Runtime  RuntimeSection  `yaml:"runtime"`
}

type ProviderSection struct {
	Active string                   `yaml:"active"`
	Models map[string]ModelSettings `yaml:"models"`
}

// ModelSettings holds one provider's tunable state. Parameters outside the
// fixed set (top_p, penalties, seed and friends) live in Extra so the
// document round-trips without loss.
type ModelSettings struct {
	Model        string         `yaml:"model"`
	Temperature  float64        `yaml:"temperature"`
	MaxTokens    *int           `yaml:"max_tokens"`
	SystemPrompt string         `yaml:"system_prompt"`
	Extra        map[string]any `yaml:",inline"`
}

type RuntimeSection struct {
	StrictMode           bool `yaml:"strict_mode"`
	ConfigReloadInterval int  `yaml:"config_reload_interval"`
}

// ActiveSettings is the active provider's record, flattened.
type ActiveSettings struct {
	Provider     string
	Model        string
	Temperature  float64
	MaxTokens    *int
	SystemPrompt string
}

// ConstraintInfo pairs a constraint with the provider's current value.
type ConstraintInfo struct {
	Constraint
	Current any
}

// Notifier receives change events after a mutation has been persisted.
type Notifier interface {
	ConfigurationChanged(provider, parameter string, value any)
	ProviderSwitched(oldProvider, newProvider string)
	ConfigurationReset(provider string, defaults map[string]any)
}

// Store owns the runtime configuration document. All reads and mutations go
// through it; mutations validate, persist the whole document, then notify.
type Store struct {
	mu       sync.Mutex
	path     string
	doc      *Document
	notifier Notifier
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
}

// NewStore creates a store backed by the YAML document at path. The document
// is loaded lazily on first access and materialized with defaults if absent.
func NewStore(path string, logger *slog.Logger) *Store {
	return &Store{
		path:   path,
		logger: logger.With("component", "runtimecfg"),
	}
}

// SetNotifier wires the change-event sink. Call before serving mutations.
func (s *Store) SetNotifier(n Notifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifier = n
}

// Watch invalidates the in-memory document when the file changes on disk,
// so external edits are picked up on the next read.
func (s *Store) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("config watcher: %w", err)
	}
	s.watcher = watcher

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Name != s.path {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					s.mu.Lock()
					s.doc = nil
					s.mu.Unlock()
					s.logger.Debug("runtime config invalidated", "path", s.path)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Warn("config watcher error", "error", err)
			}
		}
	}()

	return nil
}

// Close stops the file watcher if one is running.
func (s *Store) Close() error {
	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}

// ActiveConfig returns the active provider's record, flattened.
func (s *Store) ActiveConfig() (ActiveSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.ensureDocument()
	if err != nil {
		return ActiveSettings{}, err
	}

	active := doc.Provider.Active
	settings := doc.Provider.Models[active]
	return ActiveSettings{
		Provider:     active,
		Model:        settings.Model,
		Temperature:  settings.Temperature,
		MaxTokens:    settings.MaxTokens,
		SystemPrompt: settings.SystemPrompt,
	}, nil
}

// ProviderConfig returns one provider's record without flattening.
func (s *Store) ProviderConfig(provider string) (ModelSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !IsKnownProvider(provider) {
		return ModelSettings{}, unknownProviderError(provider)
	}
	doc, err := s.ensureDocument()
	if err != nil {
		return ModelSettings{}, err
	}
	return doc.Provider.Models[provider], nil
}

// ActiveProvider returns the active provider name.
func (s *Store) ActiveProvider() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.ensureDocument()
	if err != nil {
		return "", err
	}
	return doc.Provider.Active, nil
}

// SetParameter validates and persists one parameter write, then emits a
// configuration/changed event. Validation failures leave the document
// untouched and emit nothing.
func (s *Store) SetParameter(provider, parameter string, value any) (any, error) {
	s.mu.Lock()

	if !IsKnownProvider(provider) {
		s.mu.Unlock()
		return nil, unknownProviderError(provider)
	}

	doc, err := s.ensureDocument()
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}

	settings := doc.Provider.Models[provider]
	validated, cerr := s.validateParameter(provider, settings.Model, parameter, value)
	if cerr != nil {
		s.mu.Unlock()
		return nil, cerr
	}

	applyParameter(&settings, parameter, validated)
	doc.Provider.Models[provider] = settings

	if err := s.persist(doc); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	notifier := s.notifier
	s.mu.Unlock()

	s.logger.Info("parameter updated",
		"provider", provider,
		"parameter", parameter,
		"value", validated)

	if notifier != nil {
		notifier.ConfigurationChanged(provider, parameter, validated)
	}
	return validated, nil
}

// SwitchActive persists a new active provider and emits a provider_switched
// event carrying the old and new names.
func (s *Store) SwitchActive(provider string) error {
	s.mu.Lock()

	if !IsKnownProvider(provider) {
		s.mu.Unlock()
		return unknownProviderError(provider)
	}

	doc, err := s.ensureDocument()
	if err != nil {
		s.mu.Unlock()
		return err
	}

	oldProvider := doc.Provider.Active
	doc.Provider.Active = provider

	if err := s.persist(doc); err != nil {
		s.mu.Unlock()
		return err
	}
	notifier := s.notifier
	s.mu.Unlock()

	s.logger.Info("active provider switched",
		"old_provider", oldProvider,
		"new_provider", provider)

	if notifier != nil {
		notifier.ProviderSwitched(oldProvider, provider)
	}
	return nil
}

// Reset writes constraint defaults back over a provider's record and emits a
// configuration/reset event with the applied defaults. A non-empty names list
// restricts the reset to those parameters.
func (s *Store) Reset(provider string, names []string) (map[string]any, error) {
	s.mu.Lock()

	if !IsKnownProvider(provider) {
		s.mu.Unlock()
		return nil, unknownProviderError(provider)
	}

	doc, err := s.ensureDocument()
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}

	settings := doc.Provider.Models[provider]
	schema := SchemaFor(provider, settings.Model)

	wanted := func(name string) bool {
		if len(names) == 0 {
			return true
		}
		for _, n := range names {
			if n == name {
				return true
			}
		}
		return false
	}

	defaults := make(map[string]any)
	for _, name := range ParameterNames(schema) {
		constraint := schema[name]
		if constraint.Default == nil || !wanted(name) {
			continue
		}
		// Only values that actually differ count; an all-default record
		// must not persist or notify.
		current := currentValue(settings, name)
		if current == nil || sameValue(current, constraint.Default) {
			continue
		}
		defaults[name] = constraint.Default
		applyParameter(&settings, name, constraint.Default)
	}

	if len(defaults) == 0 {
		s.mu.Unlock()
		return map[string]any{}, nil
	}

	doc.Provider.Models[provider] = settings
	if err := s.persist(doc); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	notifier := s.notifier
	s.mu.Unlock()

	s.logger.Info("provider reset to defaults",
		"provider", provider,
		"parameters", len(defaults))

	if notifier != nil {
		notifier.ConfigurationReset(provider, defaults)
	}
	return defaults, nil
}

// Constraints returns the effective constraint table for a provider together
// with the provider's current values.
func (s *Store) Constraints(provider string) (map[string]ConstraintInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !IsKnownProvider(provider) {
		return nil, unknownProviderError(provider)
	}
	doc, err := s.ensureDocument()
	if err != nil {
		return nil, err
	}

	settings := doc.Provider.Models[provider]
	schema := SchemaFor(provider, settings.Model)

	result := make(map[string]ConstraintInfo, len(schema))
	for name, constraint := range schema {
		current := currentValue(settings, name)
		if current == nil {
			current = constraint.Default
		}
		result[name] = ConstraintInfo{Constraint: constraint, Current: current}
	}
	return result, nil
}

// Models returns the vetted model list for a provider.
func (s *Store) Models(provider string) ([]string, error) {
	if !IsKnownProvider(provider) {
		return nil, unknownProviderError(provider)
	}
	return SupportedModels(provider), nil
}

// Snapshot returns a deep copy of the current document.
func (s *Store) Snapshot() (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.ensureDocument()
	if err != nil {
		return Document{}, err
	}

	copied := *doc
	copied.Provider.Models = make(map[string]ModelSettings, len(doc.Provider.Models))
	for name, settings := range doc.Provider.Models {
		entry := settings
		if settings.MaxTokens != nil {
			v := *settings.MaxTokens
			entry.MaxTokens = &v
		}
		if settings.Extra != nil {
			entry.Extra = make(map[string]any, len(settings.Extra))
			for k, v := range settings.Extra {
				entry.Extra[k] = v
			}
		}
		copied.Provider.Models[name] = entry
	}
	return copied, nil
}

// ensureDocument lazily loads the document, materializing defaults for any
// missing provider records. Caller holds s.mu.
func (s *Store) ensureDocument() (*Document, error) {
	if s.doc != nil {
		return s.doc, nil
	}

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		doc := defaultDocument()
		if err := s.persist(doc); err != nil {
			return nil, err
		}
		s.logger.Info("runtime config created", "path", s.path)
		s.doc = doc
		return doc, nil
	}
	if err != nil {
		return nil, &ConfigError{Kind: KindPersistence, Message: "read runtime config", Cause: err}
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &ConfigError{Kind: KindPersistence, Message: "parse runtime config", Cause: err}
	}

	materializeDefaults(&doc)
	s.doc = &doc
	return &doc, nil
}

// persist writes the whole document to disk. Caller holds s.mu.
func (s *Store) persist(doc *Document) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return &ConfigError{Kind: KindPersistence, Message: "serialize runtime config", Cause: err}
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return &ConfigError{Kind: KindPersistence, Message: "create config directory", Cause: err}
		}
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return &ConfigError{Kind: KindPersistence, Message: "write runtime config", Cause: err}
	}
	s.doc = doc
	return nil
}

func (s *Store) validateParameter(provider, model, parameter string, value any) (any, *ConfigError) {
	switch parameter {
	case "model":
		name, ok := value.(string)
		if !ok {
			return nil, &ConfigError{
				Kind: KindTypeMismatch, Provider: provider, Parameter: parameter,
				Message: fmt.Sprintf("expected string, got %T", value),
			}
		}
		if !IsSupportedModel(provider, name) {
			return nil, &ConfigError{
				Kind: KindUnknownModel, Provider: provider, Parameter: parameter,
				Message: fmt.Sprintf("model %q not available, choose from %v", name, SupportedModels(provider)),
			}
		}
		return name, nil

	case "system_prompt":
		prompt, ok := value.(string)
		if !ok {
			return nil, &ConfigError{
				Kind: KindTypeMismatch, Provider: provider, Parameter: parameter,
				Message: fmt.Sprintf("expected string, got %T", value),
			}
		}
		return prompt, nil
	}

	schema := SchemaFor(provider, model)
	constraint, ok := schema[parameter]
	if !ok {
		return nil, &ConfigError{
			Kind: KindUnknownParameter, Provider: provider, Parameter: parameter,
			Message: fmt.Sprintf("invalid parameter %q, available: %v", parameter, ParameterNames(schema)),
		}
	}
	return coerceValue(provider, constraint, value)
}

// coerceValue converts value to the constraint's declared type and enforces
// range and enum rules.
func coerceValue(provider string, c Constraint, value any) (any, *ConfigError) {
	mismatch := func() (any, *ConfigError) {
		return nil, &ConfigError{
			Kind: KindTypeMismatch, Provider: provider, Parameter: c.Name,
			Message: fmt.Sprintf("expected %s, got %T", c.Type, value),
		}
	}

	switch c.Type {
	case TypeFloat:
		f, ok := asFloat(value)
		if !ok {
			return mismatch()
		}
		if cerr := checkRange(provider, c, f); cerr != nil {
			return nil, cerr
		}
		return f, nil

	case TypeInteger:
		i, ok := asInt(value)
		if !ok {
			return mismatch()
		}
		if cerr := checkRange(provider, c, float64(i)); cerr != nil {
			return nil, cerr
		}
		return i, nil

	case TypeString:
		str, ok := value.(string)
		if !ok {
			return mismatch()
		}
		if len(c.Enum) > 0 && !contains(c.Enum, str) {
			return nil, &ConfigError{
				Kind: KindNotInEnum, Provider: provider, Parameter: c.Name,
				Message: fmt.Sprintf("value %q not in allowed values %v", str, c.Enum),
			}
		}
		return str, nil

	case TypeBoolean:
		b, ok := value.(bool)
		if !ok {
			return mismatch()
		}
		return b, nil

	case TypeArray:
		arr, ok := value.([]any)
		if !ok {
			return mismatch()
		}
		if c.MaxItems > 0 && len(arr) > c.MaxItems {
			return nil, &ConfigError{
				Kind: KindOutOfRange, Provider: provider, Parameter: c.Name,
				Message: fmt.Sprintf("%d items exceeds maximum of %d", len(arr), c.MaxItems),
			}
		}
		return arr, nil

	case TypeObject:
		obj, ok := value.(map[string]any)
		if !ok {
			return mismatch()
		}
		return obj, nil
	}

	return mismatch()
}

func checkRange(provider string, c Constraint, v float64) *ConfigError {
	if c.Min != nil && v < *c.Min {
		return &ConfigError{
			Kind: KindOutOfRange, Provider: provider, Parameter: c.Name,
			Message: fmt.Sprintf("value %v below minimum %v", v, *c.Min),
		}
	}
	if c.Max != nil && v > *c.Max {
		return &ConfigError{
			Kind: KindOutOfRange, Provider: provider, Parameter: c.Name,
			Message: fmt.Sprintf("value %v above maximum %v", v, *c.Max),
		}
	}
	return nil
}

func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

func asInt(value any) (int, bool) {
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

// sameValue compares a current value with a schema default, treating numeric
// types as interchangeable (a document int 1 equals a default float 1.0).
func sameValue(a, b any) bool {
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if aok && bok {
		return af == bf
	}
	return a == b
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

// applyParameter writes a validated value into the settings record. Known
// fields go to struct fields; everything else rides in Extra.
func applyParameter(settings *ModelSettings, parameter string, value any) {
	switch parameter {
	case "model":
		settings.Model = value.(string)
	case "temperature":
		settings.Temperature = value.(float64)
	case "max_tokens":
		v := value.(int)
		settings.MaxTokens = &v
	case "system_prompt":
		settings.SystemPrompt = value.(string)
	default:
		if settings.Extra == nil {
			settings.Extra = make(map[string]any)
		}
		settings.Extra[parameter] = value
	}
}

func currentValue(settings ModelSettings, parameter string) any {
	switch parameter {
	case "model":
		return settings.Model
	case "temperature":
		return settings.Temperature
	case "max_tokens":
		if settings.MaxTokens == nil {
			return nil
		}
		return *settings.MaxTokens
	case "system_prompt":
		return settings.SystemPrompt
	default:
		return settings.Extra[parameter]
	}
}

func defaultDocument() *Document {
	maxTokens := func(v int) *int { return &v }

	return &Document{
		Provider: ProviderSection{
			Active: "openai",
			Models: map[string]ModelSettings{
				"openai": {
					Model:        "gpt-4o-mini",
					Temperature:  0.7,
					SystemPrompt: defaultSystemPrompt,
				},
				"anthropic": {
					Model:        "claude-3-5-sonnet-20241022",
					Temperature:  0.7,
					MaxTokens:    maxTokens(4096),
					SystemPrompt: defaultSystemPrompt,
				},
				"gemini": {
					Model:        "gemini-1.5-flash",
					Temperature:  0.7,
					MaxTokens:    maxTokens(4096),
					SystemPrompt: defaultSystemPrompt,
				},
				"openrouter": {
					Model:        "anthropic/claude-3-sonnet",
					Temperature:  0.7,
					MaxTokens:    maxTokens(4096),
					SystemPrompt: defaultSystemPrompt,
				},
			},
		},
		Runtime: RuntimeSection{
			StrictMode:           true,
			ConfigReloadInterval: 5,
		},
	}
}

// materializeDefaults fills in records missing from a document read off disk.
func materializeDefaults(doc *Document) {
	defaults := defaultDocument()

	if doc.Provider.Models == nil {
		doc.Provider.Models = make(map[string]ModelSettings)
	}
	for name, settings := range defaults.Provider.Models {
		if _, ok := doc.Provider.Models[name]; !ok {
			doc.Provider.Models[name] = settings
		}
	}
	if doc.Provider.Active == "" || !IsKnownProvider(doc.Provider.Active) {
		doc.Provider.Active = defaults.Provider.Active
	}
	if doc.Runtime.ConfigReloadInterval == 0 {
		doc.Runtime.ConfigReloadInterval = defaults.Runtime.ConfigReloadInterval
	}
}
