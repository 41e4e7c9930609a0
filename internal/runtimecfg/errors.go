package runtimecfg

import "fmt"

// ErrorKind classifies configuration mutation failures.
type ErrorKind string

const (
	KindUnknownProvider  ErrorKind = "unknown_provider"
	KindUnknownParameter ErrorKind = "unknown_parameter"
	KindTypeMismatch     ErrorKind = "type_mismatch"
	KindOutOfRange       ErrorKind = "out_of_range"
	KindNotInEnum        ErrorKind = "not_in_enum"
	KindUnknownModel     ErrorKind = "unknown_model"
	KindPersistence      ErrorKind = "persistence_error"
)

// ConfigError is returned by mutations that fail validation or persistence.
type ConfigError struct {
	Kind      ErrorKind
	Provider  string
	Parameter string
	Message   string
	Cause     error
}

func (e *ConfigError) Error() string {
	if e.Provider != "" && e.Parameter != "" {
		return fmt.Sprintf("%s: %s.%s: %s", e.Kind, e.Provider, e.Parameter, e.Message)
	}
	if e.Provider != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Provider, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ConfigError) Unwrap() error { return e.Cause }

func unknownProviderError(provider string) *ConfigError {
	return &ConfigError{
		Kind:     KindUnknownProvider,
		Provider: provider,
		Message:  fmt.Sprintf("invalid provider %q, available: %v", provider, Providers()),
	}
}
