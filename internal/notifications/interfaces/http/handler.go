package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/phurich29/mobile-first-looker-ui-sub000/internal/notifications/application"
	notifications "github.com/phurich29/mobile-first-looker-ui-sub000/internal/notifications/domain"
)

const devicesPathPrefix = "/api/v1/devices/"

// Handler provides the notification rule and alert status endpoints.
type Handler struct {
	service *application.Service
}

// NewHandler constructs a handler.
func NewHandler(service *application.Service) (*Handler, error) {
	if service == nil {
		return nil, errors.New("notifications handler: nil service")
	}
	return &Handler{service: service}, nil
}

// ServeHTTP handles /api/v1/devices/{code}/notifications/{metric} and
// /api/v1/devices/{code}/alert-status.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	deviceCode, rest, ok := splitDevicePath(r.URL.Path)
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch {
	case strings.HasPrefix(rest, "notifications/"):
		metricSlug := strings.TrimPrefix(rest, "notifications/")
		if metricSlug == "" || strings.Contains(metricSlug, "/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		switch r.Method {
		case http.MethodGet:
			h.handleLoadRule(w, r, deviceCode, metricSlug)
		case http.MethodPut:
			h.handleSaveRule(w, r, deviceCode, metricSlug)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case rest == "alert-status":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleStatus(w, r, deviceCode)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleLoadRule(w http.ResponseWriter, r *http.Request, deviceCode, metricSlug string) {
	rule, err := h.service.LoadRule(r.Context(), deviceCode, metricSlug)
	if err != nil {
		respondError(w, err)
		return
	}
	// A missing rule is a normal branch, not an error: respond null.
	writeJSON(w, rule)
}

func (h *Handler) handleSaveRule(w http.ResponseWriter, r *http.Request, deviceCode, metricSlug string) {
	var input application.RuleInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "invalid rule payload", http.StatusBadRequest)
		return
	}
	rule, err := h.service.SaveRule(r.Context(), deviceCode, metricSlug, input)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, rule)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request, deviceCode string) {
	status, err := h.service.StatusFor(r.Context(), deviceCode)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, status)
}

func splitDevicePath(path string) (deviceCode, rest string, ok bool) {
	if !strings.HasPrefix(path, devicesPathPrefix) {
		return "", "", false
	}
	trimmed := strings.TrimPrefix(path, devicesPathPrefix)
	parts := strings.SplitN(trimmed, "/", 2)
	if parts[0] == "" {
		return "", "", false
	}
	if len(parts) == 1 {
		return parts[0], "", true
	}
	return parts[0], parts[1], true
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, notifications.ErrUnauthenticated):
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
	case errors.Is(err, notifications.ErrForbidden):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, notifications.ErrOwnershipViolation):
		http.Error(w, "rule ownership violation", http.StatusForbidden)
	case errors.Is(err, notifications.ErrStoreUnavailable):
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
