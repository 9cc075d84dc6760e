package api

import (
	"encoding/json"
	"net/http"

	"github.com/technoclass/campus-vms/internal/data"
	"github.com/technoclass/campus-vms/internal/middleware"
	"github.com/technoclass/campus-vms/internal/tokens"
)

// SchoolHandler exposes tenant management. Creating and listing schools
// is platform-level work, so everything here is super-admin only; a
// school admin may still fetch their own record.
type SchoolHandler struct {
	Repo data.SchoolRepository
}

func NewSchoolHandler(repo data.SchoolRepository) *SchoolHandler {
	return &SchoolHandler{Repo: repo}
}

type schoolRequest struct {
	Name string `json:"name"`
}

// POST /schools
func (h *SchoolHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req schoolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "school name required"})
		return
	}

	school := &data.School{Name: req.Name}
	if err := h.Repo.Create(r.Context(), school); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, school)
}

// GET /schools
func (h *SchoolHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := parseLimitOffset(r)
	schools, total, err := h.Repo.List(r.Context(), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": schools, "total": total})
}

// GET /schools/{schoolID}
func (h *SchoolHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "schoolID")
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid school id"})
		return
	}

	auth, ok := middleware.GetAuthContext(r.Context())
	if !ok || (auth.Role != tokens.RoleSuperAdmin && auth.SchoolID != id.String()) {
		writeJSON(w, http.StatusForbidden, errorBody{Error: "forbidden"})
		return
	}

	school, err := h.Repo.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, school)
}
