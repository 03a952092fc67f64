package geocode

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/sync/singleflight"
)

// CachedGeocoder wraps a Geocoder with a cache and coalesces concurrent
// identical lookups into one upstream call.
type CachedGeocoder struct {
	next    Geocoder
	cache   Cache
	group   singleflight.Group
	metrics *Metrics
	logger  *slog.Logger
}

// NewCachedGeocoder creates a CachedGeocoder. metrics and logger may be nil.
func NewCachedGeocoder(next Geocoder, cache Cache, metrics *Metrics, logger *slog.Logger) *CachedGeocoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedGeocoder{next: next, cache: cache, metrics: metrics, logger: logger}
}

func cacheKey(query string, limit int) string {
	return strings.ToLower(strings.TrimSpace(query)) + ":" + strconv.Itoa(limit)
}

// Search implements Geocoder. Empty results are not cached, so a place that
// was missing upstream is looked up again next time.
func (g *CachedGeocoder) Search(ctx context.Context, query string, limit int) ([]Place, error) {
	key := cacheKey(query, limit)

	places, ok, err := g.cache.Get(ctx, key)
	if err != nil {
		g.logger.WarnContext(ctx, "geocode cache read failed", "error", err)
	}
	if ok {
		g.metrics.cacheResult(true)
		return places, nil
	}
	g.metrics.cacheResult(false)

	ch := g.group.DoChan(key, func() (any, error) {
		// The shared call outlives any single caller's cancellation.
		callCtx := context.WithoutCancel(ctx)
		places, err := g.next.Search(callCtx, query, limit)
		if err != nil {
			return nil, err
		}
		if len(places) > 0 {
			if err := g.cache.Set(callCtx, key, places); err != nil {
				g.logger.WarnContext(callCtx, "geocode cache write failed", "error", err)
			}
		}
		return places, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			g.metrics.coalesced()
		}
		return append([]Place(nil), res.Val.([]Place)...), nil
	}
}
