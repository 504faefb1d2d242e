// Package api provides the HTTP API handlers for the handsign pipeline.
package api

import (
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"

	"github.com/ayusman/handsign/internal/dataset"
	"github.com/ayusman/handsign/internal/gesture"
	"github.com/ayusman/handsign/internal/mode"
	"github.com/ayusman/handsign/internal/store"
)

// maxBodyBytes bounds request bodies, including dataset uploads.
const maxBodyBytes = 32 << 20

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeErr maps err to a status code and writes it.
func writeErr(w http.ResponseWriter, err error) {
	writeError(w, StatusFor(err), err.Error())
}

// StatusFor returns the HTTP status code for an error from the pipeline.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, mode.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, gesture.ErrMalformedLabel), errors.Is(err, dataset.ErrMalformed):
		return http.StatusBadRequest
	case errors.Is(err, gesture.ErrTraining):
		return http.StatusUnprocessableEntity
	case errors.Is(err, store.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
