package main

import (
	"database/sql"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/phurich29/mobile-first-looker-ui-sub000/internal/audit"
	"github.com/phurich29/mobile-first-looker-ui-sub000/internal/auth"
	"github.com/phurich29/mobile-first-looker-ui-sub000/internal/deviceaccess"
	"github.com/phurich29/mobile-first-looker-ui-sub000/internal/devices"
	measurementsrepo "github.com/phurich29/mobile-first-looker-ui-sub000/internal/measurements/infrastructure/postgres"
	measurementsinterfaces "github.com/phurich29/mobile-first-looker-ui-sub000/internal/measurements/interfaces"
	notificationsapp "github.com/phurich29/mobile-first-looker-ui-sub000/internal/notifications/application"
	notificationsrepo "github.com/phurich29/mobile-first-looker-ui-sub000/internal/notifications/infrastructure/postgres"
	notificationshttp "github.com/phurich29/mobile-first-looker-ui-sub000/internal/notifications/interfaces/http"
	"github.com/phurich29/mobile-first-looker-ui-sub000/internal/observability/metrics"
	"github.com/phurich29/mobile-first-looker-ui-sub000/internal/quality"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}

	metrics.Init(db, logger)
	auditRepo := audit.NewRepository(db)
	grantChecker := deviceaccess.NewPostgresChecker(db)

	catalog, err := quality.LoadCatalog(cfg.MetricsConfigPath)
	if err != nil {
		logger.Fatalf("metric catalog error: %v", err)
	}

	validator, err := notificationsapp.NewAccessValidator(grantChecker)
	if err != nil {
		logger.Fatalf("access validator error: %v", err)
	}
	measurementReader, err := measurementsrepo.NewReader(db, catalog)
	if err != nil {
		logger.Fatalf("measurement reader error: %v", err)
	}
	ruleRepo := notificationsrepo.NewRuleRepository(db)
	alertService, err := notificationsapp.NewService(
		validator,
		ruleRepo,
		measurementReader,
		catalog,
		notificationsapp.WithAuditLogger(auditRepo),
	)
	if err != nil {
		logger.Fatalf("alert service error: %v", err)
	}
	poller, err := notificationsapp.NewPoller(alertService, cfg.PollInterval, logger)
	if err != nil {
		logger.Fatalf("poller error: %v", err)
	}

	alertHandler, err := notificationshttp.NewHandler(alertService)
	if err != nil {
		logger.Fatalf("alert handler error: %v", err)
	}
	streamHandler, err := notificationshttp.NewStreamHandler(poller)
	if err != nil {
		logger.Fatalf("stream handler error: %v", err)
	}
	exportHandler, err := measurementsinterfaces.NewExportHandler(validator, measurementReader, catalog)
	if err != nil {
		logger.Fatalf("export handler error: %v", err)
	}

	deviceRepo := devices.NewRepository(db)
	deviceHandler, err := devices.NewHandler(deviceRepo, alertService,
		devices.WithAuditLogger(auditRepo),
		devices.WithLogger(logger),
	)
	if err != nil {
		logger.Fatalf("device handler error: %v", err)
	}

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)

	mux := http.NewServeMux()
	mux.Handle("/api/v1/devices", deviceHandler)
	mux.Handle("/api/v1/devices/", deviceRouter(deviceHandler, alertHandler, streamHandler, exportHandler))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

// deviceRouter dispatches /api/v1/devices/{code}/... to the handler that owns
// the sub-resource. The device handler keeps the bare {code} routes.
func deviceRouter(device, alerts, stream, export http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/alert-status/stream"):
			stream.ServeHTTP(w, r)
		case strings.HasSuffix(r.URL.Path, "/alert-status"):
			alerts.ServeHTTP(w, r)
		case strings.Contains(r.URL.Path, "/notifications/"):
			alerts.ServeHTTP(w, r)
		case strings.HasSuffix(r.URL.Path, "/export"):
			export.ServeHTTP(w, r)
		default:
			device.ServeHTTP(w, r)
		}
	})
}

type config struct {
	DatabaseURL       string
	HTTPAddr          string
	JWTSecret         string
	PollInterval      time.Duration
	MetricsConfigPath string
}

func loadConfig() config {
	cfg := config{
		DatabaseURL:       getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:          getenvDefault("HTTP_ADDR", ":8080"),
		JWTSecret:         getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		PollInterval:      getenvDuration("ALERT_POLL_INTERVAL", 30*time.Second),
		MetricsConfigPath: getenvDefault("QUALITY_METRICS_CONFIG", ""),
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL or PG_DSN is required")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Flush forwards to the underlying writer so SSE responses keep streaming
// through the logging wrapper.
func (w *statusWriter) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
