package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/PostImport/internal/application"
	"github.com/JonMunkholm/PostImport/internal/config"
	"github.com/JonMunkholm/PostImport/internal/logging"
	"github.com/JonMunkholm/PostImport/internal/web"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("configuration loaded", "config", cfg.String())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := application.New(ctx, cfg, application.Options{Queue: true})
	if err != nil {
		slog.Error("failed to start import engine", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	server := web.NewServer(app.Runner, cfg, web.Options{
		Metrics: app.Metrics.Handler(),
		Log:     app.Recent,
		Ping:    app.Ping,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		app.Queue.Run(gctx, app.Runner.Trigger)
		return nil
	})
	g.Go(func() error {
		app.Runner.StartSweeper(gctx, cfg.Import.SweepInterval)
		return nil
	})
	if limiter := server.Limiter(); limiter != nil {
		g.Go(func() error {
			limiter.Cleanup(gctx)
			return nil
		})
	}

	g.Go(func() error {
		slog.Info("server starting", "addr", cfg.Server.Addr())
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("server stopped", "error", err)
		app.Close()
		os.Exit(1)
	}
	slog.Info("server stopped")
}
