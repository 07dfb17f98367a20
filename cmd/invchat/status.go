package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"InventoryChat/internal/backend"
	"InventoryChat/internal/config"
)

type statusReport struct {
	Provider  backend.Kind `json:"provider"`
	Model     string       `json:"model"`
	Endpoint  string       `json:"endpoint,omitempty"`
	Reachable *bool        `json:"reachable,omitempty"`
	Detail    string       `json:"detail,omitempty"`
}

func statusCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the selected backend and check it is reachable",
		Long: `Show which backend the current environment selects.

For a local Ollama backend the server is contacted and the configured
model is looked up among the installed ones. Hosted backends are not
called.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(envFile)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			backendCfg, err := backend.Select(cfg.Backends)
			if err != nil {
				return fmt.Errorf("failed to select backend: %w", err)
			}

			report := statusReport{
				Provider: backendCfg.Kind,
				Model:    backendCfg.Model,
				Endpoint: backendCfg.Endpoint,
			}

			if backendCfg.Kind == backend.KindOllama {
				ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
				defer cancel()

				reachable := true
				if err := backend.NewOllama(backendCfg, nil).Ping(ctx); err != nil {
					reachable = false
					report.Detail = err.Error()
				}
				report.Reachable = &reachable
			} else {
				report.Detail = "credentials configured"
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}

			fmt.Printf("Provider: %s\n", report.Provider)
			fmt.Printf("Model:    %s\n", report.Model)
			if report.Endpoint != "" {
				fmt.Printf("Endpoint: %s\n", report.Endpoint)
			}
			if report.Reachable != nil {
				fmt.Printf("Reachable: %t\n", *report.Reachable)
			}
			if report.Detail != "" {
				fmt.Printf("Detail:   %s\n", report.Detail)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}
