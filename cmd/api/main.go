// Package main is the entry point for the API server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/onnwee/civitas/internal/config"
	"github.com/onnwee/civitas/internal/middleware"
	"github.com/onnwee/civitas/internal/tracing"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	help := flag.Bool("help", false, "display help message")
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	if *help {
		fmt.Println("Civitas API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		fmt.Println()
		fmt.Println("Every setting can also be given as CIVITAS_<KEY>, e.g. CIVITAS_RATE_LIMIT_SEARCH=30.")
		os.Exit(0)
	}

	cfg, errs := config.Load(*configPath)
	if cfg == nil || len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintln(os.Stderr, "config:", err)
		}
		os.Exit(2)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)
	logger.Info("configuration loaded", "config", cfg.LogSummary())

	if err := run(cfg, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := tracing.NewProvider(tracing.Config{
		ServiceName:    "civitas-api",
		ServiceVersion: version,
		Enabled:        cfg.TracingEnabled,
		Environment:    cfg.Env,
		ExporterType:   cfg.TracingExporter,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SamplingRate:   cfg.TracingSampleRate,
		InsecureMode:   cfg.TracingInsecure,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Error("tracing shutdown failed", "error", err)
		}
	}()

	app, err := newApplication(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	app.runBackground(ctx)

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Port),
		Handler:      app.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return serve(ctx, server, logger)
}

// serve runs server until ctx is done, then shuts it down gracefully.
func serve(ctx context.Context, server *http.Server, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
