// Package config loads the static gateway configuration. Runtime-tunable
// model parameters live in the runtime configuration store, not here.
package config

import (
	"fmt"
	"time"
)

// Config is the static configuration loaded once at startup.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Providers ProvidersConfig `yaml:"providers"`
	Runtime   RuntimeConfig   `yaml:"runtime"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// ChatReceiveTimeout tears down an idle chat websocket.
	ChatReceiveTimeout time.Duration `yaml:"chat_receive_timeout"`
}

// ProvidersConfig holds upstream credentials and the shared request timeout.
// API key values support ${ENV_VAR} expansion.
type ProvidersConfig struct {
	OpenAI     ProviderCredentials `yaml:"openai"`
	Anthropic  ProviderCredentials `yaml:"anthropic"`
	Gemini     ProviderCredentials `yaml:"gemini"`
	OpenRouter ProviderCredentials `yaml:"openrouter"`

	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type ProviderCredentials struct {
	APIKey string `yaml:"api_key"`
}

type RuntimeConfig struct {
	// ConfigPath is where the runtime configuration document is persisted.
	ConfigPath string `yaml:"config_path"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ChatReceiveTimeout == 0 {
		c.Server.ChatReceiveTimeout = 300 * time.Second
	}
	if c.Providers.RequestTimeout == 0 {
		c.Providers.RequestTimeout = 60 * time.Second
	}
	if c.Runtime.ConfigPath == "" {
		c.Runtime.ConfigPath = "runtime_config.yaml"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Providers.RequestTimeout < time.Second {
		return fmt.Errorf("providers.request_timeout must be at least 1s")
	}
	return nil
}

// ListenAddr renders the host:port pair for the HTTP server.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// APIKeyFor returns the configured key for a provider name, empty if unset.
func (c *Config) APIKeyFor(provider string) string {
	switch provider {
	case "openai":
		return c.Providers.OpenAI.APIKey
	case "anthropic":
		return c.Providers.Anthropic.APIKey
	case "gemini":
		return c.Providers.Gemini.APIKey
	case "openrouter":
		return c.Providers.OpenRouter.APIKey
	}
	return ""
}
