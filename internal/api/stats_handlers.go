package api

import (
	"net/http"

	"github.com/onnwee/civitas/internal/civilian"
	"github.com/onnwee/civitas/internal/stats"
)

// StatsHandlers serves the authority dashboards.
type StatsHandlers struct {
	service *stats.Service
}

// NewStatsHandlers creates a new StatsHandlers instance.
func NewStatsHandlers(service *stats.Service) *StatsHandlers {
	return &StatsHandlers{service: service}
}

// Summary handles GET /api/stats/summary.
func (h *StatsHandlers) Summary(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	requester, ok := requireRequester(w, r)
	if !ok {
		return
	}

	summary, err := h.service.Summary(r.Context(), requester)
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	writeJSON(w, r.Context(), http.StatusOK, summary)
}

// Heatmap handles GET /api/stats/heatmap with optional bbox, tags,
// min_score, availability and precision query parameters.
func (h *StatsHandlers) Heatmap(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	requester, ok := requireRequester(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	filter := stats.HeatmapFilter{
		Tags:         splitList(q.Get("tags")),
		Availability: civilian.Availability(q.Get("availability")),
	}
	if raw := q.Get("bbox"); raw != "" {
		bbox, err := stats.ParseBBox(raw)
		if err != nil {
			WriteAppError(w, r, err)
			return
		}
		filter.BBox = bbox
	}
	var err error
	if filter.MinScore, err = queryInt(r, "min_score", 0); err != nil {
		WriteAppError(w, r, err)
		return
	}
	if filter.Precision, err = queryInt(r, "precision", 0); err != nil {
		WriteAppError(w, r, err)
		return
	}

	heatmap, err := h.service.Heatmap(r.Context(), requester, filter)
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	writeJSON(w, r.Context(), http.StatusOK, heatmap)
}
