package api

import (
	"mime"
	"net/http"
	"strings"

	"github.com/ayusman/handsign/internal/app"
	"github.com/ayusman/handsign/internal/dataset"
	"github.com/ayusman/handsign/internal/store"
)

// SessionsHandler lists stored datasets and exports them.
type SessionsHandler struct {
	lister  app.SessionLister
	storage dataset.Storage
}

// NewSessionsHandler creates a SessionsHandler.
func NewSessionsHandler(lister app.SessionLister, storage dataset.Storage) *SessionsHandler {
	return &SessionsHandler{lister: lister, storage: storage}
}

type listSessionsResponse struct {
	Sessions []store.Session `json:"sessions"`
}

// ServeHTTP routes /api/sessions and /api/sessions/{id}.
func (h *SessionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/sessions"), "/")
	if id == "" {
		h.list(w, r)
		return
	}
	h.export(w, r, id)
}

// list handles GET /api/sessions.
func (h *SessionsHandler) list(w http.ResponseWriter, r *http.Request) {
	response := listSessionsResponse{Sessions: []store.Session{}}
	if h.lister != nil {
		sessions, err := h.lister.List(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to list sessions")
			return
		}
		response.Sessions = append(response.Sessions, sessions...)
	}
	writeJSON(w, http.StatusOK, response)
}

// export handles GET /api/sessions/{id} and returns the stored dataset as
// written, so it can be loaded again through /api/load.
func (h *SessionsHandler) export(w http.ResponseWriter, r *http.Request, id string) {
	if h.storage == nil {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}
	data, err := h.storage.Read(r.Context(), id)
	if err != nil {
		if StatusFor(err) == http.StatusNotFound {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to read session")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": id + ".json"}))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
