package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/onnwee/civitas/internal/auth"
	"github.com/onnwee/civitas/internal/jobs"
	"github.com/onnwee/civitas/internal/outbox"
)

// relay drains an outbox into the API on a fixed interval.
type relay struct {
	store      outbox.Store
	dispatcher *outbox.Dispatcher
	jobMetrics *jobs.Metrics
	interval   time.Duration
	logger     *slog.Logger
}

type relayOptions struct {
	Interval  time.Duration
	BatchSize int
	Registry  prometheus.Registerer // nil disables metrics registration
}

func newRelay(store outbox.Store, sender outbox.Sender, opts relayOptions, logger *slog.Logger) (*relay, error) {
	outboxMetrics := outbox.NewMetrics()
	jobMetrics := jobs.NewMetrics()
	if opts.Registry != nil {
		if err := outboxMetrics.Register(opts.Registry); err != nil {
			return nil, fmt.Errorf("register outbox metrics: %w", err)
		}
		if err := jobMetrics.Register(opts.Registry); err != nil {
			return nil, fmt.Errorf("register job metrics: %w", err)
		}
	}

	dispatcher := outbox.NewDispatcher(store, sender, outbox.DispatcherConfig{
		BatchSize: opts.BatchSize,
		OnDrop: func(ctx context.Context, it outbox.Item, reason string) {
			logger.ErrorContext(ctx, "submission abandoned",
				"submission_id", it.ID, "kind", it.Kind, "actor_id", it.ActorID, "reason", reason)
		},
	}, outboxMetrics, logger)

	return &relay{
		store:      store,
		dispatcher: dispatcher,
		jobMetrics: jobMetrics,
		interval:   opts.Interval,
		logger:     logger,
	}, nil
}

// drain runs one pass over the pending items.
func (r *relay) drain(ctx context.Context) error {
	res, err := r.dispatcher.Drain(ctx)
	if err != nil {
		return err
	}
	if res.Delivered+res.Retried+res.Dropped > 0 {
		r.logger.InfoContext(ctx, "outbox drained",
			"delivered", res.Delivered, "retried", res.Retried, "dropped", res.Dropped)
	}
	return nil
}

// run drains every interval until ctx is done and logs the totals.
func (r *relay) run(ctx context.Context) {
	jobs.RunPeriodic(ctx, jobs.JobTypeOutboxRelay, r.interval, r.jobMetrics, r.logger, r.drain)
	r.dispatcher.Stats().LogSummary(r.logger)
}

// enqueueRequest is one mutation queued from the command line.
type enqueueRequest struct {
	ID      string
	Kind    string
	ActorID string
	Role    string
	Payload []byte
}

// enqueue validates req and adds it to store. It reports false when an item
// with the same submission id is already queued.
func enqueue(ctx context.Context, store outbox.Store, req enqueueRequest) (bool, error) {
	role, err := auth.ParseRole(req.Role)
	if err != nil {
		return false, err
	}
	it := outbox.Item{
		ID:        req.ID,
		Kind:      outbox.Kind(req.Kind),
		ActorID:   req.ActorID,
		ActorRole: role,
		Payload:   json.RawMessage(req.Payload),
	}
	if err := it.Validate(); err != nil {
		return false, err
	}
	return store.Enqueue(ctx, it)
}
