package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/haasonsaas/switchboard/internal/config"
	"github.com/haasonsaas/switchboard/internal/gateway"
	"github.com/haasonsaas/switchboard/internal/mcp"
	"github.com/haasonsaas/switchboard/internal/mcp/tools"
	"github.com/haasonsaas/switchboard/internal/providers"
	"github.com/haasonsaas/switchboard/internal/runtimecfg"
)

const shutdownGrace = 10 * time.Second

func buildServeCmd() *cobra.Command {
	var (
		configPath string
		stdio      bool
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Switchboard gateway server",
		Long: `Start the gateway: the MCP JSON-RPC endpoint, the notifications
websocket, the chat websocket, health, and metrics.

With --stdio the process instead speaks newline-delimited JSON-RPC on
stdin/stdout for MCP clients that spawn their servers; logs go to stderr.

Graceful shutdown is handled on SIGINT/SIGTERM.`,
		Example: `  # Start with default config
  switchboard serve

  # Start with custom config
  switchboard serve --config /etc/switchboard/production.yaml

  # Run as a stdio MCP server
  switchboard serve --stdio`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath, stdio, debug)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "switchboard.yaml",
		"Path to YAML configuration file")
	cmd.Flags().BoolVar(&stdio, "stdio", false,
		"Serve MCP over stdin/stdout instead of HTTP")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false,
		"Enable debug logging")

	return cmd
}

func runServe(ctx context.Context, configPath string, stdio, debug bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := buildLogger(cfg.Logging.Level, debug)
	slog.SetDefault(logger)

	store := runtimecfg.NewStore(cfg.Runtime.ConfigPath, logger)
	if err := store.Watch(); err != nil {
		logger.Warn("config watch unavailable", "error", err)
	}
	defer store.Close()

	server := mcp.NewServer(store, logger)
	if err := tools.RegisterAll(server.Registry(), store); err != nil {
		return fmt.Errorf("register tools: %w", err)
	}

	adapters, err := buildAdapters(cfg, server, logger)
	if err != nil {
		return err
	}

	// Fail fast when the active provider cannot be served.
	active, err := store.ActiveProvider()
	if err != nil {
		return fmt.Errorf("read runtime config: %w", err)
	}
	if _, ok := adapters[active]; !ok {
		return fmt.Errorf("active provider '%s' has no API key configured", active)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if stdio {
		logger.Info("serving MCP over stdio")
		return mcp.NewStdioTransport(server, os.Stdin, os.Stdout, logger).Serve(ctx)
	}

	orchestrator := gateway.NewOrchestrator(server, adapters, logger)
	httpServer := gateway.NewServer(cfg.ListenAddr(), server, orchestrator,
		cfg.Server.ChatReceiveTimeout, logger)
	if err := httpServer.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return httpServer.Stop(shutdownCtx)
}

// buildAdapters constructs one adapter per provider with a configured key.
func buildAdapters(cfg *config.Config, source providers.ConfigSource, logger *slog.Logger) (map[string]providers.Adapter, error) {
	adapters := make(map[string]providers.Adapter, 4)
	timeout := cfg.Providers.RequestTimeout

	if key := cfg.APIKeyFor("openai"); key != "" {
		adapters["openai"] = providers.NewOpenAIAdapter(key, source, timeout, logger)
	}
	if key := cfg.APIKeyFor("anthropic"); key != "" {
		adapters["anthropic"] = providers.NewAnthropicAdapter(key, source, timeout, logger)
	}
	if key := cfg.APIKeyFor("gemini"); key != "" {
		adapter, err := providers.NewGeminiAdapter(key, source, timeout, logger)
		if err != nil {
			return nil, fmt.Errorf("gemini adapter: %w", err)
		}
		adapters["gemini"] = adapter
	}
	if key := cfg.APIKeyFor("openrouter"); key != "" {
		adapters["openrouter"] = providers.NewOpenRouterAdapter(key, source, timeout, logger)
	}

	if len(adapters) == 0 {
		return nil, fmt.Errorf("no provider API keys configured")
	}
	return adapters, nil
}

func buildLogger(level string, debug bool) *slog.Logger {
	logLevel := slog.LevelInfo
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}
	if debug {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
}
