package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/technoclass/campus-vms/internal/data"
	"github.com/technoclass/campus-vms/internal/mediamtx"
	"github.com/technoclass/campus-vms/internal/middleware"
	"github.com/technoclass/campus-vms/internal/nvr"
	"github.com/technoclass/campus-vms/internal/rtsp"
	"github.com/technoclass/campus-vms/internal/tokens"
)

type CameraHandler struct {
	Service *nvr.Service
}

func NewCameraHandler(service *nvr.Service) *CameraHandler {
	return &CameraHandler{Service: service}
}

// POST /schools/{schoolID}/cameras
func (h *CameraHandler) Create(w http.ResponseWriter, r *http.Request) {
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

	var in nvr.CameraInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}

	camera, err := h.Service.CreateCamera(r.Context(), schoolID, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, camera)
}

// GET /schools/{schoolID}/cameras
func (h *CameraHandler) List(w http.ResponseWriter, r *http.Request) {
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

	filter := data.CameraFilter{Query: r.URL.Query().Get("q")}
	if s := r.URL.Query().Get("nvr_id"); s != "" {
		if id, err := uuid.Parse(s); err == nil {
			filter.NVRID = &id
		}
	}
	if s := r.URL.Query().Get("area_id"); s != "" {
		if id, err := uuid.Parse(s); err == nil {
			filter.AreaID = &id
		}
	}
	if s := r.URL.Query().Get("status"); s != "" {
		filter.Status = &s
	}
	if s := r.URL.Query().Get("active"); s != "" {
		active := s == "true"
		filter.IsActive = &active
	}
	limit, offset := parseLimitOffset(r)

	cameras, total, err := h.Service.ListCameras(r.Context(), schoolID, filter, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": cameras, "total": total})
}

func (h *CameraHandler) get(w http.ResponseWriter, r *http.Request) (*data.Camera, bool) {
	id, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid camera id"})
		return nil, false
	}
	camera, err := h.Service.GetCamera(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	if _, ok := callerSchool(r, camera.SchoolID); !ok {
		writeJSON(w, http.StatusForbidden, errorBody{Error: "forbidden"})
		return nil, false
	}
	return camera, true
}

// GET /cameras/{id}
func (h *CameraHandler) Get(w http.ResponseWriter, r *http.Request) {
	camera, ok := h.get(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, maskCamera(camera))
}

// PUT /cameras/{id}
func (h *CameraHandler) Update(w http.ResponseWriter, r *http.Request) {
	camera, ok := h.get(w, r)
	if !ok {
		return
	}

	var in nvr.CameraInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}

	updated, err := h.Service.UpdateCamera(r.Context(), camera.ID, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, maskCamera(updated))
}

// DELETE /cameras/{id}
func (h *CameraHandler) Delete(w http.ResponseWriter, r *http.Request) {
	camera, ok := h.get(w, r)
	if !ok {
		return
	}
	if err := h.Service.DeleteCamera(r.Context(), camera.ID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// maskCamera hides stream URL credentials on read paths. The stored
// value keeps the cleartext; only the response copy is masked.
func maskCamera(c *data.Camera) *data.Camera {
	if c.StreamURL == nil || *c.StreamURL == "" {
		return c
	}
	out := *c
	masked := rtsp.Mask(*c.StreamURL)
	out.StreamURL = &masked
	return &out
}

// GET /cameras/{id}/stream
func (h *CameraHandler) Stream(w http.ResponseWriter, r *http.Request) {
	camera, ok := h.get(w, r)
	if !ok {
		return
	}

	info, err := h.Service.GetStreamInfo(r.Context(), camera.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	// Guards get playback URLs only; the RTSP URL stays masked. Admin
	// roles also receive the full URL for use in external players.
	ac, _ := middleware.GetAuthContext(r.Context())
	if ac != nil && ac.Role != tokens.RoleGuard {
		writeJSON(w, http.StatusOK, struct {
			*nvr.StreamInfo
			RTSPFullURL string `json:"rtsp_full_url"`
		}{info, info.RTSPFull})
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// POST /cameras/{id}/test-stream
func (h *CameraHandler) TestStream(w http.ResponseWriter, r *http.Request) {
	camera, ok := h.get(w, r)
	if !ok {
		return
	}
	probe, err := h.Service.TestStream(r.Context(), camera.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, probe)
}

type previewRequest struct {
	NVRID         uuid.UUID `json:"nvr_id"`
	ChannelNo     int       `json:"channel_no"`
	StreamProfile string    `json:"stream_profile"`
}

// POST /schools/{schoolID}/preview-rtsp-url
func (h *CameraHandler) PreviewRTSPURL(w http.ResponseWriter, r *http.Request) {
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

	var req previewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}

	n, err := h.Service.GetNVR(r.Context(), req.NVRID)
	if err != nil {
		writeError(w, err)
		return
	}
	if n.SchoolID != schoolID {
		writeJSON(w, http.StatusForbidden, errorBody{Error: "forbidden"})
		return
	}

	preview, err := h.Service.PreviewRTSPURL(r.Context(), req.NVRID, req.ChannelNo, rtsp.Profile(req.StreamProfile))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"rtsp_url": preview})
}

// GET /schools/{schoolID}/mediamtx-config
func (h *CameraHandler) SchoolMediaMTXConfig(w http.ResponseWriter, r *http.Request) {
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

	out, err := h.Service.BuildConfigForSchool(r.Context(), schoolID)
	if err != nil {
		writeError(w, err)
		return
	}
	serveConfig(w, out)
}

// POST /schools/{schoolID}/mediamtx-deploy
func (h *CameraHandler) SchoolDeploy(w http.ResponseWriter, r *http.Request) {
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

	var req mediamtx.DeployRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}

	result, err := h.Service.Deploy(r.Context(), nvr.DeployScope{SchoolID: &schoolID}, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
