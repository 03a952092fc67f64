package api

import (
	"net/http"

	"github.com/onnwee/civitas/internal/allocation"
)

// AllocationHandlers serves civilian allocation to missions.
type AllocationHandlers struct {
	service *allocation.Service
}

// NewAllocationHandlers creates a new AllocationHandlers instance.
func NewAllocationHandlers(service *allocation.Service) *AllocationHandlers {
	return &AllocationHandlers{service: service}
}

// AllocateResponse is returned for a successful allocation.
type AllocateResponse struct {
	Message      string                 `json:"message"`
	AllocationID string                 `json:"allocation_id"`
	Allocation   *allocation.Allocation `json:"allocation"`
}

// AllocationsResponse lists active allocations.
type AllocationsResponse struct {
	Allocations []*allocation.Allocation `json:"allocations"`
	Count       int                      `json:"count"`
}

// Allocate handles POST /api/allocate. Replays with the same Idempotency-Key
// are answered by the idempotency middleware.
func (h *AllocationHandlers) Allocate(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	requester, ok := requireRequester(w, r)
	if !ok {
		return
	}

	var req allocation.Request
	if err := decodeJSON(r, &req); err != nil {
		WriteAppError(w, r, err)
		return
	}

	a, err := h.service.Allocate(r.Context(), requester, req)
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	writeJSON(w, r.Context(), http.StatusOK, AllocateResponse{
		Message:      "Civilian allocated to mission " + a.MissionCode,
		AllocationID: a.ID,
		Allocation:   a,
	})
}

// List handles GET /api/allocations?limit=.
func (h *AllocationHandlers) List(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	requester, ok := requireRequester(w, r)
	if !ok {
		return
	}

	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	list, err := h.service.ListActive(r.Context(), requester, limit)
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	if list == nil {
		list = []*allocation.Allocation{}
	}
	writeJSON(w, r.Context(), http.StatusOK, AllocationsResponse{Allocations: list, Count: len(list)})
}

// RequestsResponse lists the caller's authority requests.
type RequestsResponse struct {
	Requests []*allocation.AuthorityRequest `json:"requests"`
	Count    int                            `json:"count"`
}

// CreateRequest handles POST /api/requests.
func (h *AllocationHandlers) CreateRequest(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	requester, ok := requireRequester(w, r)
	if !ok {
		return
	}

	var in allocation.RequestInput
	if err := decodeJSON(r, &in); err != nil {
		WriteAppError(w, r, err)
		return
	}

	req, err := h.service.CreateRequest(r.Context(), requester, in)
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	writeJSON(w, r.Context(), http.StatusCreated, req)
}

// ListRequests handles GET /api/requests?limit=.
func (h *AllocationHandlers) ListRequests(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	requester, ok := requireRequester(w, r)
	if !ok {
		return
	}

	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	list, err := h.service.ListRequests(r.Context(), requester, limit)
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	if list == nil {
		list = []*allocation.AuthorityRequest{}
	}
	writeJSON(w, r.Context(), http.StatusOK, RequestsResponse{Requests: list, Count: len(list)})
}
