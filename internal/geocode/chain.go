package geocode

import (
	"context"
	"fmt"
	"log/slog"
)

// Chain asks Primary first and tops up from Fallback when Primary fails or
// returns fewer than limit places. Duplicate coordinates are dropped.
type Chain struct {
	Primary  Geocoder
	Fallback Geocoder
	Logger   *slog.Logger
}

// Search implements Geocoder. It fails only when Primary fails and Fallback
// has nothing to offer.
func (c *Chain) Search(ctx context.Context, query string, limit int) ([]Place, error) {
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var (
		places     []Place
		primaryErr error
	)
	if c.Primary != nil {
		places, primaryErr = c.Primary.Search(ctx, query, limit)
		if primaryErr != nil {
			logger.WarnContext(ctx, "primary geocoder failed, using fallback",
				"query_length", len(query), "error", primaryErr)
			places = nil
		}
	}

	if len(places) < limit && c.Fallback != nil {
		more, err := c.Fallback.Search(ctx, query, limit-len(places))
		if err != nil {
			logger.WarnContext(ctx, "fallback geocoder failed", "error", err)
		} else {
			places = append(places, more...)
		}
	}

	places = dedupe(places)
	if len(places) > limit {
		places = places[:limit]
	}

	if len(places) == 0 && primaryErr != nil {
		return nil, fmt.Errorf("geocode %d-char query: %w", len(query), primaryErr)
	}
	return places, nil
}
