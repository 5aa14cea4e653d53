package devices

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/phurich29/mobile-first-looker-ui-sub000/internal/audit"
	"github.com/phurich29/mobile-first-looker-ui-sub000/internal/auth"
)

const devicesPath = "/api/v1/devices"

// RulePurger removes the notification rules attached to a device.
type RulePurger interface {
	PurgeDeviceRules(ctx context.Context, deviceCode string) (int64, error)
}

// Handler serves the device listing and deletion endpoints.
type Handler struct {
	repo     *Repository
	purger   RulePurger
	auditLog audit.Logger
	logger   *log.Logger
}

// NewHandler constructs a handler.
func NewHandler(repo *Repository, purger RulePurger, opts ...HandlerOption) (*Handler, error) {
	if repo == nil {
		return nil, errors.New("devices: nil repository")
	}
	handler := &Handler{repo: repo, purger: purger, logger: log.Default()}
	for _, opt := range opts {
		opt(handler)
	}
	return handler, nil
}

// HandlerOption configures the handler.
type HandlerOption func(*Handler)

// WithAuditLogger attaches an audit logger.
func WithAuditLogger(logger audit.Logger) HandlerOption {
	return func(h *Handler) {
		h.auditLog = logger
	}
}

// WithLogger overrides the default logger.
func WithLogger(logger *log.Logger) HandlerOption {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// ServeHTTP handles GET /api/v1/devices and DELETE /api/v1/devices/{code}.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimSuffix(r.URL.Path, "/")
	switch {
	case path == devicesPath && r.Method == http.MethodGet:
		h.handleList(w, r)
	case strings.HasPrefix(path, devicesPath+"/") && r.Method == http.MethodDelete:
		code := strings.TrimPrefix(path, devicesPath+"/")
		if code == "" || strings.Contains(code, "/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		h.handleDelete(w, r, code)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	if userID == "" {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	var (
		list []Device
		err  error
	)
	if auth.RoleFromContext(r.Context()) == auth.RoleAdmin {
		list, err = h.repo.ListAll(r.Context())
	} else {
		list, err = h.repo.ListForUser(r.Context(), userID)
	}
	if err != nil {
		h.logger.Printf("devices: list failed: %v", err)
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}
	if list == nil {
		list = []Device{}
	}
	writeJSON(w, list)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request, code string) {
	userID := auth.UserIDFromContext(r.Context())
	if userID == "" {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	deleted, err := h.repo.Delete(r.Context(), code)
	if err != nil {
		h.logger.Printf("devices: delete %s failed: %v", code, err)
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}
	if !deleted {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	var rulesDeleted int64
	if h.purger != nil {
		rulesDeleted, err = h.purger.PurgeDeviceRules(r.Context(), code)
		if err != nil {
			// The device row is gone; report success but keep a trace of
			// the incomplete cleanup.
			h.logger.Printf("devices: rule cleanup for %s failed: %v", code, err)
		}
	}

	if h.auditLog != nil {
		meta, _ := json.Marshal(map[string]any{"rules_deleted": rulesDeleted})
		_ = h.auditLog.Log(r.Context(), audit.Entry{
			Actor:        userID,
			Role:         string(auth.RoleFromContext(r.Context())),
			Action:       audit.ActionDeviceDelete,
			ResourceType: "device",
			ResourceID:   code,
			DeviceCode:   code,
			Metadata:     meta,
			CreatedAt:    time.Now().UTC(),
		})
	}

	writeJSON(w, map[string]any{"deleted": true, "rules_deleted": rulesDeleted})
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("devices: encode response: %v", err)
	}
}
