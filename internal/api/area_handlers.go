package api

import (
	"encoding/json"
	"net/http"

	"github.com/technoclass/campus-vms/internal/data"
)

// AreaHandler exposes camera-area CRUD. Areas are plain rows, so the
// handler talks to the repository directly.
type AreaHandler struct {
	Repo data.CameraAreaRepository
}

func NewAreaHandler(repo data.CameraAreaRepository) *AreaHandler {
	return &AreaHandler{Repo: repo}
}

type areaRequest struct {
	Name       string  `json:"name"`
	ExternalID *string `json:"external_id,omitempty"`
}

// POST /schools/{schoolID}/areas
func (h *AreaHandler) Create(w http.ResponseWriter, r *http.Request) {
	requested, ok := pathID(r, "schoolID")
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid school id"})
		return
	}
	schoolID, ok := callerSchool(r, requested)
	if !ok {
		writeJSON(w, http.StatusForbidden, errorBody{Error: "forbidden"})
		return
	}

	var req areaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "area name required"})
		return
	}

	area := &data.CameraArea{SchoolID: schoolID, Name: req.Name, ExternalID: req.ExternalID}
	if err := h.Repo.Create(r.Context(), area); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, area)
}

// GET /schools/{schoolID}/areas
func (h *AreaHandler) List(w http.ResponseWriter, r *http.Request) {
	requested, ok := pathID(r, "schoolID")
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid school id"})
		return
	}
	schoolID, ok := callerSchool(r, requested)
	if !ok {
		writeJSON(w, http.StatusForbidden, errorBody{Error: "forbidden"})
		return
	}

	areas, err := h.Repo.ListBySchool(r.Context(), schoolID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": areas})
}

func (h *AreaHandler) get(w http.ResponseWriter, r *http.Request) (*data.CameraArea, bool) {
	id, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid area id"})
		return nil, false
	}
	area, err := h.Repo.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	if _, ok := callerSchool(r, area.SchoolID); !ok {
		writeJSON(w, http.StatusForbidden, errorBody{Error: "forbidden"})
		return nil, false
	}
	return area, true
}

// PUT /areas/{id}
func (h *AreaHandler) Update(w http.ResponseWriter, r *http.Request) {
	area, ok := h.get(w, r)
	if !ok {
		return
	}

	var req areaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "area name required"})
		return
	}

	area.Name = req.Name
	if req.ExternalID != nil {
		area.ExternalID = req.ExternalID
	}
	if err := h.Repo.Update(r.Context(), area); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, area)
}

// DELETE /areas/{id}
func (h *AreaHandler) Delete(w http.ResponseWriter, r *http.Request) {
	area, ok := h.get(w, r)
	if !ok {
		return
	}
	if err := h.Repo.Delete(r.Context(), area.ID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
