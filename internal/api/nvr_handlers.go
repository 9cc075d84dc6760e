package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/technoclass/campus-vms/internal/data"
	"github.com/technoclass/campus-vms/internal/mediamtx"
	"github.com/technoclass/campus-vms/internal/middleware"
	"github.com/technoclass/campus-vms/internal/nvr"
	"github.com/technoclass/campus-vms/internal/tokens"
)

type NVRHandler struct {
	Service *nvr.Service
}

func NewNVRHandler(service *nvr.Service) *NVRHandler {
	return &NVRHandler{Service: service}
}

// pathID reads a uuid URL parameter from chi.
func pathID(r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	return id, err == nil
}

// callerSchool resolves the school scope for the request. Non-super
// callers are pinned to their token's school; SUPER_ADMIN may address
// any school.
func callerSchool(r *http.Request, requested uuid.UUID) (uuid.UUID, bool) {
	ac, ok := middleware.GetAuthContext(r.Context())
	if !ok {
		return uuid.Nil, false
	}
	if ac.Role == tokens.RoleSuperAdmin {
		return requested, true
	}
	own, err := uuid.Parse(ac.SchoolID)
	if err != nil {
		return uuid.Nil, false
	}
	if requested != uuid.Nil && requested != own {
		return uuid.Nil, false
	}
	return own, true
}

func parseLimitOffset(r *http.Request) (int, int) {
	limit := 50
	offset := 0
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 200 {
		limit = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v >= 0 {
		offset = v
	}
	return limit, offset
}

// POST /schools/{schoolID}/nvrs
func (h *NVRHandler) Create(w http.ResponseWriter, r *http.Request) {
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

	var in nvr.NVRInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}

	created, err := h.Service.CreateNVR(r.Context(), schoolID, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// GET /schools/{schoolID}/nvrs
func (h *NVRHandler) List(w http.ResponseWriter, r *http.Request) {
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

	filter := data.NVRFilter{Query: r.URL.Query().Get("q")}
	if s := r.URL.Query().Get("vendor"); s != "" {
		filter.Vendor = &s
	}
	if s := r.URL.Query().Get("status"); s != "" {
		filter.Status = &s
	}
	limit, offset := parseLimitOffset(r)

	nvrs, total, err := h.Service.ListNVRs(r.Context(), schoolID, filter, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": nvrs, "total": total})
}

func (h *NVRHandler) get(w http.ResponseWriter, r *http.Request) (*data.NVR, bool) {
	id, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid nvr id"})
		return nil, false
	}
	n, err := h.Service.GetNVR(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	if _, ok := callerSchool(r, n.SchoolID); !ok {
		writeJSON(w, http.StatusForbidden, errorBody{Error: "forbidden"})
		return nil, false
	}
	return n, true
}

// GET /nvrs/{id}
func (h *NVRHandler) Get(w http.ResponseWriter, r *http.Request) {
	n, ok := h.get(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// PUT /nvrs/{id}
func (h *NVRHandler) Update(w http.ResponseWriter, r *http.Request) {
	n, ok := h.get(w, r)
	if !ok {
		return
	}

	var in nvr.NVRInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}

	updated, err := h.Service.UpdateNVR(r.Context(), n.ID, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DELETE /nvrs/{id}
func (h *NVRHandler) Delete(w http.ResponseWriter, r *http.Request) {
	n, ok := h.get(w, r)
	if !ok {
		return
	}
	if err := h.Service.DeleteNVR(r.Context(), n.ID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /nvrs/{id}/test-connection
func (h *NVRHandler) TestConnection(w http.ResponseWriter, r *http.Request) {
	n, ok := h.get(w, r)
	if !ok {
		return
	}
	report, err := h.Service.TestConnection(r.Context(), n.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// GET /nvrs/{id}/onvif-info
func (h *NVRHandler) OnvifInfo(w http.ResponseWriter, r *http.Request) {
	n, ok := h.get(w, r)
	if !ok {
		return
	}
	info, err := h.Service.FetchDeviceInfo(r.Context(), n.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// POST /nvrs/{id}/onvif-sync
func (h *NVRHandler) OnvifSync(w http.ResponseWriter, r *http.Request) {
	n, ok := h.get(w, r)
	if !ok {
		return
	}

	var opts nvr.SyncOptions
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&opts); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
			return
		}
	}

	result, err := h.Service.OnvifSync(r.Context(), n.ID, opts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// POST /nvrs/{id}/sync ingests an operator export of areas and
// cameras and upserts it under this NVR.
func (h *NVRHandler) Sync(w http.ResponseWriter, r *http.Request) {
	n, ok := h.get(w, r)
	if !ok {
		return
	}

	var in nvr.BatchSyncInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}

	result, err := h.Service.BatchSync(r.Context(), n.ID, in)
	if err != nil {
		writeError(w, err)
		return
	}

	// Re-read so the response carries the fresh last_sync_* fields.
	updated, err := h.Service.GetNVR(r.Context(), n.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"nvr":    updated,
		"status": "ok",
		"result": result,
	})
}

// GET /nvrs/{id}/mediamtx-config
// The rendered file embeds cleartext device credentials; routing keeps
// this behind admin auth.
func (h *NVRHandler) MediaMTXConfig(w http.ResponseWriter, r *http.Request) {
	n, ok := h.get(w, r)
	if !ok {
		return
	}
	out, err := h.Service.BuildConfigForNVR(r.Context(), n.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	serveConfig(w, out)
}

func serveConfig(w http.ResponseWriter, out mediamtx.Output) {
	w.Header().Set("Content-Type", "application/x-yaml")
	w.Header().Set("Content-Disposition", `attachment; filename="mediamtx.yml"`)
	w.Header().Set("X-Paths-Total", strconv.Itoa(out.Paths))
	w.Header().Set("X-Paths-Skipped", strconv.Itoa(out.Skipped))
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(out.Content))
}

// POST /nvrs/{id}/mediamtx-deploy
func (h *NVRHandler) Deploy(w http.ResponseWriter, r *http.Request) {
	n, ok := h.get(w, r)
	if !ok {
		return
	}

	var req mediamtx.DeployRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}

	result, err := h.Service.Deploy(r.Context(), nvr.DeployScope{NVRID: &n.ID}, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GET /nvrs/{id}/mediamtx-deploy/last
func (h *NVRHandler) LastDeployTarget(w http.ResponseWriter, r *http.Request) {
	n, ok := h.get(w, r)
	if !ok {
		return
	}
	target, err := h.Service.LastDeployTarget(r.Context(), nvr.DeployScope{NVRID: &n.ID})
	if err != nil {
		writeError(w, err)
		return
	}
	if target == nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "no previous deploy"})
		return
	}
	writeJSON(w, http.StatusOK, target)
}
