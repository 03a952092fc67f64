package api

import (
	"net/http"

	"github.com/onnwee/civitas/internal/capability"
	"github.com/onnwee/civitas/internal/civilian"
	"github.com/onnwee/civitas/internal/middleware"
	"github.com/onnwee/civitas/internal/privacy"
)

// CivilianHandlers serves profile submission and self-service reads.
type CivilianHandlers struct {
	service *civilian.Service
	tagger  *capability.Tagger
}

// NewCivilianHandlers creates a new CivilianHandlers instance.
func NewCivilianHandlers(service *civilian.Service, tagger *capability.Tagger) *CivilianHandlers {
	return &CivilianHandlers{service: service, tagger: tagger}
}

// TagsResponse lists every tag the capability rules can assign.
type TagsResponse struct {
	Tags []string `json:"tags"`
}

// Submit handles POST /api/civilian/submit. The submission_id in the body is
// the idempotency key; a replay returns the first outcome.
func (h *CivilianHandlers) Submit(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	requester, ok := requireRequester(w, r)
	if !ok {
		return
	}

	var req civilian.SubmitRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteAppError(w, r, err)
		return
	}

	res, err := h.service.Submit(r.Context(), requester, req)
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	if res.Replayed {
		w.Header().Set(middleware.IdempotentReplayHeader, "true")
	}
	writeJSON(w, r.Context(), http.StatusOK, res)
}

// Me handles GET /api/civilian/me: the caller's own, unredacted profile.
func (h *CivilianHandlers) Me(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	requester, ok := requireRequester(w, r)
	if !ok {
		return
	}

	p, err := h.service.Me(r.Context(), requester)
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	writeJSON(w, r.Context(), http.StatusOK, privacy.Render(requester, p))
}

// Tags handles GET /api/civilian/tags.
func (h *CivilianHandlers) Tags(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, r.Context(), http.StatusOK, TagsResponse{Tags: h.tagger.AvailableTags()})
}
