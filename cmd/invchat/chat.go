package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"InventoryChat/internal/chatbot"
)

func chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive console session",
		Long: `Start an interactive console session against the selected backend.

Commands inside the console:
  /help, /status, /history, /new-session, /quit

Logs are written to INVCHAT_LOG_DIR only, so the console stays clean.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()

			return chatbot.NewConsole(a.bot, os.Stdin, os.Stdout).Run(ctx)
		},
	}
}
