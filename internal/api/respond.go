package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/technoclass/campus-vms/internal/data"
	"github.com/technoclass/campus-vms/internal/mediamtx"
	"github.com/technoclass/campus-vms/internal/nvr"
	"github.com/technoclass/campus-vms/internal/onvif"
	"github.com/technoclass/campus-vms/internal/rtsp"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		if err := json.NewEncoder(w).Encode(body); err != nil {
			log.Printf("api: encode response: %v", err)
		}
	}
}

type errorBody struct {
	Error string `json:"error"`
}

// writeError maps service error kinds onto HTTP statuses. Unknown
// errors are logged and reported as a bare 500 so internals (paths,
// hosts, SQL) never leak to clients.
func writeError(w http.ResponseWriter, err error) {
	var (
		svcValidation *nvr.ValidationError
		reqValidation *mediamtx.ValidationError
		timeout       *onvif.TimeoutError
		process       *mediamtx.ProcessError
	)
	switch {
	case errors.As(err, &svcValidation):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: svcValidation.Msg})
	case errors.As(err, &reqValidation):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: reqValidation.Msg})
	case errors.Is(err, nvr.ErrNoStreamSource), errors.Is(err, nvr.ErrPasswordRequired), errors.Is(err, rtsp.ErrInvalidURL):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.Is(err, data.ErrRecordNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
	case errors.Is(err, data.ErrDuplicate):
		writeJSON(w, http.StatusConflict, errorBody{Error: "already exists"})
	case errors.As(err, &timeout):
		writeJSON(w, http.StatusGatewayTimeout, errorBody{Error: timeout.Error()})
	case errors.As(err, &process):
		writeJSON(w, http.StatusBadGateway, errorBody{Error: process.Error()})
	default:
		log.Printf("api: internal error: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}
