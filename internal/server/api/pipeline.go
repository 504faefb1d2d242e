package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ayusman/handsign/internal/app"
	"github.com/ayusman/handsign/internal/dataset"
	"github.com/ayusman/handsign/internal/gesture"
	"github.com/ayusman/handsign/internal/mode"
)

// PipelineHandler exposes the pipeline's status and user actions.
type PipelineHandler struct {
	pipeline *app.Pipeline
	storage  dataset.Storage
}

// NewPipelineHandler creates a PipelineHandler. Stored sessions are loaded
// from storage.
func NewPipelineHandler(p *app.Pipeline, storage dataset.Storage) *PipelineHandler {
	return &PipelineHandler{pipeline: p, storage: storage}
}

// ServeHTTP routes /api/status, /api/collect, /api/train, /api/label and
// /api/load.
func (h *PipelineHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	action := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/"), "/")

	switch {
	case action == "status" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, h.pipeline.Status())
	case action == "collect" && r.Method == http.MethodPost:
		h.collect(w, r)
	case action == "train" && r.Method == http.MethodPost:
		h.train(w, r)
	case action == "label" && r.Method == http.MethodGet:
		h.getLabel(w, r)
	case action == "label" && r.Method == http.MethodPut:
		h.setLabel(w, r)
	case action == "load" && r.Method == http.MethodPost:
		h.load(w, r)
	case isAction(action):
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	default:
		http.NotFound(w, r)
	}
}

func isAction(action string) bool {
	switch action {
	case "status", "collect", "train", "label", "load":
		return true
	}
	return false
}

type collectResponse struct {
	Mode     mode.Mode `json:"mode"`
	Session  string    `json:"session,omitempty"`
	Examples int       `json:"examples"`
}

// collect handles POST /api/collect and toggles collection.
func (h *PipelineHandler) collect(w http.ResponseWriter, r *http.Request) {
	m, err := h.pipeline.ToggleCollect(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, collectResponse{
		Mode:     m,
		Session:  h.pipeline.Session(),
		Examples: h.pipeline.Dataset().Len(),
	})
}

// train handles POST /api/train. Training runs in the background unless
// the request asks to wait, in which case the report is returned.
func (h *PipelineHandler) train(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("wait") != "true" {
		if err := h.pipeline.StartTraining(); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, h.pipeline.Status())
		return
	}

	report, err := h.pipeline.Train(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type labelRequest struct {
	Label string `json:"label"`
}

type labelResponse struct {
	Label   gesture.Label `json:"label"`
	Text    string        `json:"text"`
	Classes []string      `json:"classes"`
}

func (h *PipelineHandler) labelResponse(label gesture.Label) labelResponse {
	return labelResponse{Label: label, Text: label.String(), Classes: h.pipeline.Classes()}
}

// getLabel handles GET /api/label.
func (h *PipelineHandler) getLabel(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.labelResponse(h.pipeline.Label()))
}

// setLabel handles PUT /api/label.
func (h *PipelineHandler) setLabel(w http.ResponseWriter, r *http.Request) {
	var req labelRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	label, err := h.pipeline.SetLabel(r.Context(), req.Label)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.labelResponse(label))
}

// loadRequest names a stored session, or carries an exported dataset inline.
type loadRequest struct {
	Session string          `json:"session"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (r loadRequest) hasData() bool {
	return len(r.Data) > 0 && string(r.Data) != "null"
}

type loadResponse struct {
	Examples int `json:"examples"`
}

// load handles POST /api/load.
func (h *PipelineHandler) load(w http.ResponseWriter, r *http.Request) {
	var req loadRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	loader, err := h.loader(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	n, err := h.pipeline.LoadDataset(r.Context(), loader)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loadResponse{Examples: n})
}

func (h *PipelineHandler) loader(req loadRequest) (dataset.Loader, error) {
	switch {
	case req.Session != "" && req.hasData():
		return nil, errors.New("session and data are mutually exclusive")
	case req.hasData():
		return dataset.BytesLoader(req.Data), nil
	case req.Session != "":
		if h.storage == nil {
			return nil, fmt.Errorf("no storage to load session %q from", req.Session)
		}
		return dataset.StorageLoader{Storage: h.storage, Key: req.Session}, nil
	default:
		return nil, errors.New("session or data is required")
	}
}
