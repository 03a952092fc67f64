package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Func is one run of a periodic job.
type Func func(ctx context.Context) error

// RunPeriodic runs fn immediately and then every interval until ctx is done.
// Each run is timed and counted in m (which may be nil). Errors are logged and
// counted; they never stop the loop.
func RunPeriodic(ctx context.Context, jobType string, interval time.Duration, m *Metrics, logger *slog.Logger, fn Func) {
	if logger == nil {
		logger = slog.Default()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	RunOnce(ctx, jobType, m, logger, fn)
	for {
		select {
		case <-ticker.C:
			RunOnce(ctx, jobType, m, logger, fn)
		case <-ctx.Done():
			logger.Info("stopping background job", "job_type", jobType)
			return
		}
	}
}

// RunOnce runs fn a single time with metrics and logging.
func RunOnce(ctx context.Context, jobType string, m *Metrics, logger *slog.Logger, fn Func) {
	if logger == nil {
		logger = slog.Default()
	}

	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)

	if m != nil {
		m.ObserveJobDuration(jobType, elapsed.Seconds())
	}
	if err != nil {
		if m != nil {
			m.IncJobsTotal(jobType, StatusFailure)
			m.IncJobErrors(jobType, errorType(err))
		}
		logger.ErrorContext(ctx, "background job failed",
			"job_type", jobType,
			"duration_ms", elapsed.Milliseconds(),
			"error", err)
		return
	}
	if m != nil {
		m.IncJobsTotal(jobType, StatusSuccess)
	}
	logger.DebugContext(ctx, "background job completed",
		"job_type", jobType,
		"duration_ms", elapsed.Milliseconds())
}

func errorType(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}
