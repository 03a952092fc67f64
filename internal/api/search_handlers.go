package api

import (
	"net/http"
	"strings"

	"github.com/onnwee/civitas/internal/search"
)

// SearchHandlers serves civilian search and detail reads.
type SearchHandlers struct {
	engine *search.Engine
}

// NewSearchHandlers creates a new SearchHandlers instance.
func NewSearchHandlers(engine *search.Engine) *SearchHandlers {
	return &SearchHandlers{engine: engine}
}

// Search handles POST /api/search.
func (h *SearchHandlers) Search(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	requester, ok := requireRequester(w, r)
	if !ok {
		return
	}

	var raw search.RawRequest
	if err := decodeJSON(r, &raw); err != nil {
		WriteAppError(w, r, err)
		return
	}
	req, err := raw.Parse()
	if err != nil {
		WriteAppError(w, r, err)
		return
	}

	resp, err := h.engine.Search(r.Context(), requester, req)
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	writeJSON(w, r.Context(), http.StatusOK, resp)
}

// Detail handles GET /api/civilians/{id}. The optional skills and
// include_tags query parameters (comma separated) add relevance against the
// search that led to this civilian.
func (h *SearchHandlers) Detail(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	requester, ok := requireRequester(w, r)
	if !ok {
		return
	}

	userID := strings.TrimPrefix(r.URL.Path, "/api/civilians/")
	if userID == "" || strings.Contains(userID, "/") {
		WriteAppError(w, r, errNotFound)
		return
	}

	var sc *search.SearchContext
	q := r.URL.Query()
	if skills, tags := splitList(q.Get("skills")), splitList(q.Get("include_tags")); len(skills) > 0 || len(tags) > 0 {
		sc = &search.SearchContext{Skills: skills, IncludeTags: tags}
	}

	resp, err := h.engine.Detail(r.Context(), requester, userID, sc)
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	writeJSON(w, r.Context(), http.StatusOK, resp)
}

// splitList splits a comma separated query value, dropping blanks.
func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
