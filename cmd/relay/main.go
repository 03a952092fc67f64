// Package main is the entry point for the outbox relay. It replays queued
// civilian submissions and allocations against the API once it is reachable.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/onnwee/civitas/internal/auth"
	"github.com/onnwee/civitas/internal/config"
	"github.com/onnwee/civitas/internal/middleware"
	"github.com/onnwee/civitas/internal/outbox"
)

func usage() {
	fmt.Println("Civitas Outbox Relay")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  relay [options]                 drain the outbox every RELAY_INTERVAL")
	fmt.Println("  relay [options] enqueue [flags] queue one mutation for delivery")
	fmt.Println()
	fmt.Println("Options:")
	flag.PrintDefaults()
}

func main() {
	help := flag.Bool("help", false, "display help message")
	configPath := flag.String("config", "", "path to a YAML config file")
	once := flag.Bool("once", false, "drain a single time and exit")
	metricsAddr := flag.String("metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9091")
	flag.Parse()

	if *help {
		usage()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configPath)
	if cfg == nil {
		for _, err := range errs {
			fmt.Fprintln(os.Stderr, "config:", err)
		}
		os.Exit(2)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)

	if cfg.RedisURL == "" {
		fmt.Fprintln(os.Stderr, "config: REDIS_URL is required for the relay")
		os.Exit(2)
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config: invalid REDIS_URL:", err)
		os.Exit(2)
	}
	client := redis.NewClient(opts)
	defer client.Close()
	store := outbox.NewRedisStore(client, "")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if flag.Arg(0) == "enqueue" {
		if err := runEnqueue(ctx, store, flag.Args()[1:], os.Stdin, os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, "enqueue:", err)
			os.Exit(1)
		}
		return
	}

	if errs := cfg.ValidateRelay(); len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintln(os.Stderr, "config:", err)
		}
		os.Exit(2)
	}

	reg := prometheus.NewRegistry()
	r, err := newRelay(store,
		outbox.NewHTTPSender(cfg.RelayTargetURL, auth.NewTokenService(cfg.GetJWTSecrets()), nil),
		relayOptions{Interval: cfg.RelayInterval, BatchSize: cfg.RelayBatchSize, Registry: reg},
		logger)
	if err != nil {
		logger.Error("relay setup failed", "error", err)
		os.Exit(1)
	}

	if *once {
		if err := r.drain(ctx); err != nil {
			logger.Error("drain failed", "error", err)
			os.Exit(1)
		}
		r.dispatcher.Stats().LogSummary(logger)
		return
	}

	if *metricsAddr != "" {
		srv := &http.Server{
			Addr:              *metricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	logger.Info("relay started", "target", cfg.RelayTargetURL, "interval", cfg.RelayInterval)
	r.run(ctx)
	logger.Info("relay stopped")
}

// runEnqueue parses the enqueue flags and queues one item. The payload is
// read from -payload, or from stdin when it is "-".
func runEnqueue(ctx context.Context, store outbox.Store, args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("enqueue", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var (
		req         enqueueRequest
		payloadPath string
	)
	fs.StringVar(&req.ID, "id", "", "submission id, used as the Idempotency-Key")
	fs.StringVar(&req.Kind, "kind", "", "mutation kind: submit or allocate")
	fs.StringVar(&req.ActorID, "actor", "", "user id the mutation is delivered as")
	fs.StringVar(&req.Role, "role", "", "role of the actor: civilian or authority")
	fs.StringVar(&payloadPath, "payload", "-", "JSON request body file, - for stdin")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var err error
	if payloadPath == "-" {
		req.Payload, err = io.ReadAll(io.LimitReader(stdin, 1<<20))
	} else {
		req.Payload, err = os.ReadFile(payloadPath)
	}
	if err != nil {
		return fmt.Errorf("read payload: %w", err)
	}

	added, err := enqueue(ctx, store, req)
	if err != nil {
		return err
	}
	if added {
		fmt.Fprintf(stdout, "queued %s %s\n", req.Kind, req.ID)
	} else {
		fmt.Fprintf(stdout, "%s already queued\n", req.ID)
	}
	return nil
}
