package httpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	monitoringmodels "vigil/internal/monitoring/models"
	id "vigil/pkg/domain"
	dErrors "vigil/pkg/domain-errors"
	"vigil/pkg/platform/middleware/requesttime"
	"vigil/pkg/requestcontext"
)

// MonitorService is the slice of the monitoring runner the ops surface
// needs: on-demand single-subject and whole-tenant triggers.
type MonitorService interface {
	RunSubject(ctx context.Context, subjectID id.SubjectID) (*monitoringmodels.MonitoringAlert, error)
	RunBatch(ctx context.Context, tenantID id.TenantID) (*monitoringmodels.BatchResult, error)
}

// ReadyCheck probes one dependency for the readiness endpoint.
type ReadyCheck struct {
	Name  string
	Probe func(ctx context.Context) error
}

// RouterConfig wires the ops router.
type RouterConfig struct {
	Logger  *slog.Logger
	Monitor MonitorService
	Ready   []ReadyCheck
}

// NewRouter builds the ops HTTP surface: health, readiness, metrics, and
// the internal monitoring triggers. This is not a public API; it listens
// on the ops port only.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(requesttime.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
		for _, check := range cfg.Ready {
			if err := check.Probe(req.Context()); err != nil {
				logger.WarnContext(req.Context(), "readiness probe failed",
					"check", check.Name,
					"error", err,
				)
				http.Error(w, check.Name+" not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	if cfg.Monitor != nil {
		r.Post("/internal/monitoring/subjects/{subjectID}/run", func(w http.ResponseWriter, req *http.Request) {
			ctx := requestcontext.WithActor(req.Context(), "operator")
			subjectID, err := id.ParseSubjectID(chi.URLParam(req, "subjectID"))
			if err != nil {
				writeError(w, logger, err)
				return
			}
			alert, err := cfg.Monitor.RunSubject(ctx, subjectID)
			if err != nil {
				writeError(w, logger, err)
				return
			}
			resp := map[string]any{"alert_created": alert != nil}
			if alert != nil {
				resp["alert_id"] = alert.ID.String()
				resp["severity"] = alert.Severity
			}
			writeJSON(w, http.StatusOK, resp)
		})

		r.Post("/internal/monitoring/tenants/{tenantID}/run", func(w http.ResponseWriter, req *http.Request) {
			ctx := requestcontext.WithActor(req.Context(), "operator")
			tenantID, err := id.ParseTenantID(chi.URLParam(req, "tenantID"))
			if err != nil {
				writeError(w, logger, err)
				return
			}
			result, err := cfg.Monitor.RunBatch(ctx, tenantID)
			if err != nil {
				writeError(w, logger, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"screened":   result.Screened,
				"new_alerts": result.NewAlerts,
				"errors":     result.Errors,
				"skipped":    result.Skipped,
			})
		})
	}

	return r
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status := http.StatusInternalServerError
	switch dErrors.CodeOf(err) {
	case dErrors.CodeValidation, dErrors.CodeInvalidInput:
		status = http.StatusBadRequest
	case dErrors.CodeNotFound:
		status = http.StatusNotFound
	case dErrors.CodeConflict:
		status = http.StatusConflict
	case dErrors.CodeUnavailable, dErrors.CodeTimeout:
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		logger.Error("internal error on ops endpoint", "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
