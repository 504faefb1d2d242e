package server

import (
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"

	"github.com/ayusman/handsign/internal/capture"
)

const streamBoundary = "frame"

// StreamHandler serves the frames sampled by the pipeline as MJPEG.
type StreamHandler struct {
	frames *capture.FrameSlot
}

// NewStreamHandler creates a new StreamHandler reading from frames.
func NewStreamHandler(frames *capture.FrameSlot) *StreamHandler {
	return &StreamHandler{frames: frames}
}

// ServeHTTP writes one multipart part per published frame until the client
// disconnects. A slow client skips the frames published while it was busy.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	mw := multipart.NewWriter(w)
	if err := mw.SetBoundary(streamBoundary); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+streamBoundary)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher, _ := w.(http.Flusher)

	var seq uint64
	for {
		jpeg, next, err := h.frames.Next(r.Context(), seq)
		if err != nil {
			return
		}
		seq = next

		part, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":   {"image/jpeg"},
			"Content-Length": {strconv.Itoa(len(jpeg))},
		})
		if err != nil {
			return
		}
		if _, err := part.Write(jpeg); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}
