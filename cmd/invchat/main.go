// Package main provides the invchat entrypoint.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "1.0.0"
	envFile string
	debug   bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "invchat",
		Short: "Natural-language chat over the inventory dataset",
		Long: `invchat answers questions about the inventory dataset and returns the
SQL query that retrieves the data.

The backend is picked from the environment: Azure OpenAI when
AZURE_OPENAI_API_KEY and AZURE_OPENAI_ENDPOINT are set, OpenAI when
OPENAI_API_KEY is set, otherwise a local Ollama instance.

Usage modes:
  invchat serve     Start the HTTP server and web UI
  invchat chat      Start an interactive console session
  invchat status    Show the selected backend and check it is reachable`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Optional dotenv file layered under the environment")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(
		serveCmd(),
		chatCmd(),
		statusCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func logLevel(configured slog.Level) slog.Level {
	if debug {
		return slog.LevelDebug
	}
	return configured
}
