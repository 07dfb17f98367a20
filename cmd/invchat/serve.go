package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"InventoryChat/internal/server"
)

func serveCmd() *cobra.Command {
	var (
		host string
		port int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server and web UI",
		Long: `Start the HTTP server.

Routes:
  GET  /             Web UI
  GET  /api/status   Selected provider and model
  POST /api/chat     {"session_id": "...", "message": "..."}
  GET  /metrics      Prometheus metrics

HOST and PORT default to 0.0.0.0 and 8000; the flags override them.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, true)
			if err != nil {
				return err
			}
			defer a.Close()

			if cmd.Flags().Changed("host") {
				a.cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				a.cfg.Server.Port = port
			}
			addr := a.cfg.Server.Addr()

			gin.SetMode(gin.ReleaseMode)
			srv := server.New(a.bot, a.logger)

			printBanner(a, addr)
			return srv.Run(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "Listen host (overrides HOST)")
	cmd.Flags().IntVar(&port, "port", 0, "Listen port (overrides PORT)")

	return cmd
}

func printBanner(a *app, addr string) {
	line := strings.Repeat("=", 56)
	fmt.Println()
	fmt.Println(line)
	fmt.Println("  Inventory Chat Server")
	fmt.Println(line)
	fmt.Printf("  Provider: %s\n", a.backend.Kind())
	fmt.Printf("  Model:    %s\n", a.backend.Model())
	fmt.Printf("  URL:      http://%s\n", displayAddr(addr))
	fmt.Println(line)
	fmt.Println()
}

func displayAddr(addr string) string {
	if strings.HasPrefix(addr, "0.0.0.0:") {
		return "localhost" + strings.TrimPrefix(addr, "0.0.0.0")
	}
	return addr
}
