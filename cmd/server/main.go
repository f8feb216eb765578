package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"github.com/mcoot/guessgame/internal/api"
	"github.com/mcoot/guessgame/internal/factory"
	"github.com/mcoot/guessgame/internal/web"
)

func main() {
	// .env values act as environment defaults
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newCmd(&Config{})
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serve(ctx context.Context, cfg *Config) error {
	level, err := cfg.level()
	if err != nil {
		return err
	}

	// Set up logging with JSON output
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	app, err := factory.New(ctx, cfg.factoryConfig(logger))
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("failed to close application", slog.String("error", err.Error()))
		}
	}()

	// API routes are registered first so the page routes cannot shadow them
	router := mux.NewRouter()
	api.Mount(router, api.RouterConfig{
		Logger:          logger,
		AuthService:     app.AuthService,
		PlayController:  app.PlayController,
		RealtimeHandler: app.RealtimeHandler,
		PublicURL:       cfg.joinURL(),
	})
	web.Mount(router, web.RouterConfig{
		Logger:         logger,
		AuthService:    app.AuthService,
		PlayController: app.PlayController,
		StaticDir:      findStaticDir(cfg.staticDir),
	})

	server := api.NewServer(router, cfg.serverConfig(), logger)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		app.Run(runCtx)
	}()

	logger.Info("server started",
		slog.String("addr", server.Addr()),
		slog.String("storage", cfg.storage),
		slog.String("public_url", cfg.joinURL()),
	)

	err = server.Run(runCtx)
	cancel()
	<-done

	if err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}

// findStaticDir returns the configured directory, or the first existing default location
func findStaticDir(configured string) string {
	if configured != "" {
		return configured
	}

	candidates := []string{
		"internal/web/static",
		filepath.Join(os.Getenv("PWD"), "internal/web/static"),
	}

	for _, dir := range candidates {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir
		}
	}

	return ""
}
