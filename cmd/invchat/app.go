package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"InventoryChat/internal/backend"
	"InventoryChat/internal/cache"
	"InventoryChat/internal/chatbot"
	"InventoryChat/internal/config"
	"InventoryChat/internal/session"
	"InventoryChat/internal/telemetry"
)

// app holds everything serve and chat share
type app struct {
	cfg     config.Config
	logger  *slog.Logger
	backend backend.Backend
	bot     *chatbot.ChatBot
	closers []func()
}

// newApp wires logging, telemetry, the backend, the optional cache and
// archive, and the ChatBot. console controls whether logs also go to stdout.
func newApp(ctx context.Context, console bool) (*app, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	a := &app{cfg: cfg}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	logger, closeLog, err := telemetry.InitLogger(cfg.Log.Dir, logLevel(cfg.Log.Level), console)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.logger = logger
	a.closers = append(a.closers, closeLog)

	exporters, closeExporters, err := telemetry.FileExporters(cfg.Log.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open telemetry files: %w", err)
	}
	a.closers = append(a.closers, func() {
		if err := closeExporters(); err != nil {
			logger.Warn("failed to close telemetry files", "error", err)
		}
	})
	providers, err := telemetry.NewProviders(ctx, exporters)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	a.closers = append(a.closers, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(ctx); err != nil {
			logger.Warn("failed to flush telemetry", "error", err)
		}
	})

	backendCfg, err := backend.Select(cfg.Backends)
	if err != nil {
		return nil, fmt.Errorf("failed to select backend: %w", err)
	}
	a.backend, err = backend.New(ctx, backendCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create backend: %w", err)
	}
	logger.Info("backend selected",
		"provider", backendCfg.Kind,
		"model", backendCfg.Model,
		"endpoint", backendCfg.Endpoint,
	)

	replyCache, closeCache, err := cache.New(ctx, cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}
	a.closers = append(a.closers, func() {
		if err := closeCache(); err != nil {
			logger.Warn("failed to close cache", "error", err)
		}
	})

	opts := chatbot.Options{
		RepairJSON: cfg.Reply.Repair,
		Cache:      replyCache,
		Logger:     logger,
		Tracer:     providers.Tracer(),
		Meter:      providers.Meter(),
	}

	if cfg.Archive.Path != "" {
		db, err := telemetry.InitDB(cfg.Archive.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize archive: %w", err)
		}
		archive := telemetry.NewArchive(db)
		opts.Archive = archive
		a.closers = append(a.closers, func() {
			if err := archive.Close(); err != nil {
				logger.Warn("failed to close archive", "error", err)
			}
		})
		logger.Info("exchange archive enabled", "path", cfg.Archive.Path)
	}

	a.bot, err = chatbot.NewChatBot(a.backend, session.NewStore(cfg.Session.Window), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chatbot: %w", err)
	}
	// pending archive writes must land before the archive closes
	a.closers = append(a.closers, a.bot.Close)

	ok = true
	return a, nil
}

// Close releases resources in reverse order of acquisition
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
