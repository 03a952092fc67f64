package outbox

import (
	"fmt"
	"log/slog"
	"sync/atomic"
)

// Stats tracks cumulative delivery counts across drains.
type Stats struct {
	delivered atomic.Int64
	retried   atomic.Int64
	dropped   atomic.Int64
}

// Delivered returns the number of items delivered.
func (s *Stats) Delivered() int64 { return s.delivered.Load() }

// Retried returns the number of failed attempts kept for retry.
func (s *Stats) Retried() int64 { return s.retried.Load() }

// Dropped returns the number of items given up on.
func (s *Stats) Dropped() int64 { return s.dropped.Load() }

func (s *Stats) String() string {
	return fmt.Sprintf("delivered=%d retried=%d dropped=%d", s.Delivered(), s.Retried(), s.Dropped())
}

// LogSummary logs the counts at INFO level.
func (s *Stats) LogSummary(logger *slog.Logger) {
	logger.Info("outbox statistics",
		"delivered", s.Delivered(),
		"retried", s.Retried(),
		"dropped", s.Dropped(),
	)
}
