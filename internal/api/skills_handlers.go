package api

import (
	"net/http"

	"github.com/onnwee/civitas/internal/skills"
)

// SkillsHandlers serves the skill registry.
type SkillsHandlers struct {
	registry skills.Registry
}

// NewSkillsHandlers creates a new SkillsHandlers instance.
func NewSkillsHandlers(registry skills.Registry) *SkillsHandlers {
	return &SkillsHandlers{registry: registry}
}

// SkillsResponse lists skill suggestions.
type SkillsResponse struct {
	Skills []skills.Skill `json:"skills"`
}

// CreateSkillRequest is the body of POST /api/skills.
type CreateSkillRequest struct {
	Name string `json:"name"`
}

// CreateSkillResponse returns the stored skill.
type CreateSkillResponse struct {
	Skill   skills.Skill `json:"skill"`
	Created bool         `json:"created"`
}

// Suggest handles GET /api/skills/suggest?q=&limit=.
func (h *SkillsHandlers) Suggest(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	limit, err := queryInt(r, "limit", skills.DefaultSuggestLimit)
	if err == nil {
		err = skills.ValidateLimit(limit)
	}
	if err != nil {
		WriteAppError(w, r, err)
		return
	}

	list, err := h.registry.Suggest(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	if list == nil {
		list = []skills.Skill{}
	}
	writeJSON(w, r.Context(), http.StatusOK, SkillsResponse{Skills: list})
}

// Skills handles /api/skills: GET lists canonical skills, POST registers a
// skill or returns the existing one (matched case-insensitively).
func (h *SkillsHandlers) Skills(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.Suggest(w, r)
	case http.MethodPost:
		h.create(w, r)
	default:
		allowMethod(w, r, http.MethodPost)
	}
}

func (h *SkillsHandlers) create(w http.ResponseWriter, r *http.Request) {
	var req CreateSkillRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteAppError(w, r, err)
		return
	}

	skill, created, err := h.registry.Ensure(r.Context(), req.Name)
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, r.Context(), status, CreateSkillResponse{Skill: skill, Created: created})
}
