package interfaces

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	measurements "github.com/phurich29/mobile-first-looker-ui-sub000/internal/measurements/domain"
	"github.com/phurich29/mobile-first-looker-ui-sub000/internal/notifications/application"
	notifications "github.com/phurich29/mobile-first-looker-ui-sub000/internal/notifications/domain"
	"github.com/phurich29/mobile-first-looker-ui-sub000/internal/observability/metrics"
	"github.com/phurich29/mobile-first-looker-ui-sub000/internal/quality"
)

const (
	exportPathPrefix = "/api/v1/devices/"
	exportPathSuffix = "/export"

	// defaultExportWindow bounds the window when from/to are omitted.
	defaultExportWindow = 24 * time.Hour
	// maxExportWindow caps a single export request.
	maxExportWindow = 31 * 24 * time.Hour
)

// ExportHandler serves measurement history as a downloadable file.
type ExportHandler struct {
	validator *application.AccessValidator
	history   measurements.HistoryReader
	catalog   *quality.Catalog
	logger    *log.Logger
}

// NewExportHandler constructs a handler.
func NewExportHandler(validator *application.AccessValidator, history measurements.HistoryReader, catalog *quality.Catalog) (*ExportHandler, error) {
	if validator == nil {
		return nil, errors.New("export: nil access validator")
	}
	if history == nil {
		return nil, errors.New("export: nil history reader")
	}
	if catalog == nil {
		return nil, errors.New("export: nil catalog")
	}
	return &ExportHandler{validator: validator, history: history, catalog: catalog, logger: log.Default()}, nil
}

// ServeHTTP handles GET /api/v1/devices/{code}/export.
func (h *ExportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, exportPathPrefix)
	deviceCode := strings.TrimSuffix(rest, exportPathSuffix)
	if deviceCode == rest || deviceCode == "" || strings.Contains(deviceCode, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "xlsx"
	}
	if format != "xlsx" && format != "pdf" {
		http.Error(w, "format must be xlsx or pdf", http.StatusBadRequest)
		return
	}

	from, to, err := parseWindow(r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if _, err := h.validator.Validate(r.Context(), deviceCode); err != nil {
		switch {
		case errors.Is(err, notifications.ErrUnauthenticated):
			http.Error(w, "unauthenticated", http.StatusUnauthorized)
		case errors.Is(err, notifications.ErrForbidden):
			http.Error(w, "forbidden", http.StatusForbidden)
		case errors.Is(err, notifications.ErrStoreUnavailable):
			http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		default:
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
		return
	}

	started := time.Now()
	rows, err := h.history.History(r.Context(), deviceCode, from, to)
	if err != nil {
		metrics.ObserveExport(format, metrics.ResultError, time.Since(started))
		h.logger.Printf("export: history %s failed: %v", deviceCode, err)
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}

	var payload []byte
	switch format {
	case "pdf":
		payload, err = BuildHistoryPDF(h.catalog, deviceCode, from, to, rows)
	default:
		payload, err = BuildHistoryXLSX(h.catalog, deviceCode, from, to, rows)
	}
	if err != nil {
		metrics.ObserveExport(format, metrics.ResultError, time.Since(started))
		h.logger.Printf("export: render %s failed: %v", deviceCode, err)
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}
	metrics.ObserveExport(format, metrics.ResultSuccess, time.Since(started))

	filename := fmt.Sprintf("%s-history-%s.%s", deviceCode, from.Format("20060102"), format)
	if format == "pdf" {
		w.Header().Set("Content-Type", "application/pdf")
	} else {
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	_, _ = w.Write(payload)
}

func parseWindow(fromRaw, toRaw string) (time.Time, time.Time, error) {
	to := time.Now().UTC()
	if toRaw != "" {
		parsed, err := time.Parse(time.RFC3339, toRaw)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid to timestamp: %v", err)
		}
		to = parsed.UTC()
	}
	from := to.Add(-defaultExportWindow)
	if fromRaw != "" {
		parsed, err := time.Parse(time.RFC3339, fromRaw)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid from timestamp: %v", err)
		}
		from = parsed.UTC()
	}
	if !from.Before(to) {
		return time.Time{}, time.Time{}, errors.New("from must be before to")
	}
	if to.Sub(from) > maxExportWindow {
		return time.Time{}, time.Time{}, errors.New("window exceeds 31 days")
	}
	return from, to, nil
}
