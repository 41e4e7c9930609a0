// Package main provides the CLI entry point for the Switchboard AI gateway.
//
// Switchboard exposes a unified MCP tool surface and a streaming chat channel
// over four LLM providers (OpenAI, Anthropic, Gemini, OpenRouter), with a
// persisted, runtime-tunable configuration document.
//
// Start the server:
//
//	switchboard serve --config switchboard.yaml
//
// Run as an MCP stdio server:
//
//	switchboard serve --stdio
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build information, populated by ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "switchboard",
		Short:        "Multi-provider AI gateway with an MCP tool surface",
		SilenceUsage: true,
	}
	cmd.AddCommand(buildServeCmd(), buildVersionCmd())
	return cmd
}

func buildVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("switchboard %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}
