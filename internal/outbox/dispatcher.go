package outbox

import (
	"context"
	"fmt"
	"log/slog"
)

// DefaultBatchSize is the number of items one drain considers.
const DefaultBatchSize = 100

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	MaxAttempts int
	BatchSize   int

	// OnDrop, when set, is told about every dropped item so the owner can
	// be asked to resubmit.
	OnDrop func(ctx context.Context, it Item, reason string)
}

// Result counts the outcomes of one drain.
type Result struct {
	Delivered int
	Retried   int
	Dropped   int
}

// Dispatcher drains a Store through a Sender.
type Dispatcher struct {
	store   Store
	sender  Sender
	cfg     DispatcherConfig
	stats   *Stats
	metrics *Metrics
	logger  *slog.Logger
}

// NewDispatcher creates a Dispatcher. Zero config values take the package
// defaults and a nil logger uses slog.Default().
func NewDispatcher(store Store, sender Sender, cfg DispatcherConfig, metrics *Metrics, logger *slog.Logger) *Dispatcher {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = MaxAttempts
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{store: store, sender: sender, cfg: cfg, stats: &Stats{}, metrics: metrics, logger: logger}
}

// Stats returns the cumulative counts.
func (d *Dispatcher) Stats() *Stats {
	return d.stats
}

// Drain tries every pending item once, oldest first. Delivered items are
// removed. A retryable failure counts an attempt and the item is dropped
// once it has used MaxAttempts; any other failure drops it immediately.
// Store errors abort the drain.
func (d *Dispatcher) Drain(ctx context.Context) (Result, error) {
	var res Result

	items, err := d.store.Pending(ctx, d.cfg.BatchSize)
	if err != nil {
		return res, fmt.Errorf("list pending: %w", err)
	}

	for _, it := range items {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		sendErr := d.sender.Send(ctx, it)
		if sendErr == nil {
			if err := d.store.Remove(ctx, it.ID); err != nil {
				return res, fmt.Errorf("remove delivered %s: %w", it.ID, err)
			}
			res.Delivered++
			d.stats.delivered.Add(1)
			d.metrics.delivery(it.Kind, OutcomeDelivered)
			d.logger.InfoContext(ctx, "outbox item delivered",
				"id", it.ID, "kind", it.Kind, "attempt", it.Attempts+1)
			continue
		}

		if !IsRetryable(sendErr) {
			if err := d.drop(ctx, it, sendErr.Error()); err != nil {
				return res, err
			}
			res.Dropped++
			continue
		}

		attempts, err := d.store.RecordFailure(ctx, it.ID, sendErr.Error())
		if err != nil {
			return res, fmt.Errorf("record failure for %s: %w", it.ID, err)
		}
		if attempts >= d.cfg.MaxAttempts {
			reason := fmt.Sprintf("gave up after %d attempts: %v", attempts, sendErr)
			if err := d.drop(ctx, it, reason); err != nil {
				return res, err
			}
			res.Dropped++
			continue
		}
		res.Retried++
		d.stats.retried.Add(1)
		d.metrics.delivery(it.Kind, OutcomeRetry)
		d.logger.WarnContext(ctx, "outbox delivery failed, will retry",
			"id", it.ID, "kind", it.Kind, "attempts", attempts, "error", sendErr)
	}

	if n, err := d.store.Len(ctx); err == nil {
		d.metrics.setPending(n)
	}
	return res, nil
}

func (d *Dispatcher) drop(ctx context.Context, it Item, reason string) error {
	if err := d.store.Remove(ctx, it.ID); err != nil {
		return fmt.Errorf("remove dropped %s: %w", it.ID, err)
	}
	d.stats.dropped.Add(1)
	d.metrics.delivery(it.Kind, OutcomeDropped)
	d.logger.WarnContext(ctx, "outbox item dropped, owner must resubmit",
		"id", it.ID, "kind", it.Kind, "actor_id", it.ActorID, "reason", reason)
	if d.cfg.OnDrop != nil {
		d.cfg.OnDrop(ctx, it, reason)
	}
	return nil
}
