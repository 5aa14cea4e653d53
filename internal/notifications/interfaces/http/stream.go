package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/phurich29/mobile-first-looker-ui-sub000/internal/notifications/application"
)

// StreamHandler serves the per-device alert status stream over SSE. Each
// connection gets its own poller subscription, scoped to the caller identity
// on the request context; disconnecting tears the subscription down.
type StreamHandler struct {
	poller *application.Poller
}

// NewStreamHandler constructs a stream handler.
func NewStreamHandler(poller *application.Poller) (*StreamHandler, error) {
	if poller == nil {
		return nil, errors.New("alert stream: nil poller")
	}
	return &StreamHandler{poller: poller}, nil
}

// ServeHTTP handles GET /api/v1/devices/{code}/alert-status/stream.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	deviceCode, rest, ok := splitDevicePath(r.URL.Path)
	if !ok || !strings.HasSuffix(rest, "/stream") {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}

	sub := h.poller.Subscribe(r.Context(), deviceCode)
	if sub == nil {
		http.Error(w, "stream not ready", http.StatusServiceUnavailable)
		return
	}
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	_, _ = w.Write([]byte("event: ready\ndata: {}\n\n"))
	flusher.Flush()

	notify := r.Context().Done()
	for {
		select {
		case status, ok := <-sub.Updates():
			if !ok {
				return
			}
			payload, err := json.Marshal(status)
			if err != nil {
				continue
			}
			_, _ = w.Write([]byte("event: status\n"))
			_, _ = w.Write([]byte("data: "))
			_, _ = w.Write(payload)
			_, _ = w.Write([]byte("\n\n"))
			flusher.Flush()
		case <-notify:
			return
		}
	}
}
