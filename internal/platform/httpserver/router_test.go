package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	monitoringmodels "vigil/internal/monitoring/models"
	id "vigil/pkg/domain"
	dErrors "vigil/pkg/domain-errors"
)

type stubMonitor struct {
	alert    *monitoringmodels.MonitoringAlert
	result   *monitoringmodels.BatchResult
	err      error
	subjects []id.SubjectID
}

func (s *stubMonitor) RunSubject(_ context.Context, subjectID id.SubjectID) (*monitoringmodels.MonitoringAlert, error) {
	s.subjects = append(s.subjects, subjectID)
	return s.alert, s.err
}

func (s *stubMonitor) RunBatch(context.Context, id.TenantID) (*monitoringmodels.BatchResult, error) {
	return s.result, s.err
}

func TestHealthz(t *testing.T) {
	router := NewRouter(RouterConfig{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestReadyz(t *testing.T) {
	t.Run("ready when all probes pass", func(t *testing.T) {
		router := NewRouter(RouterConfig{
			Ready: []ReadyCheck{
				{Name: "postgres", Probe: func(context.Context) error { return nil }},
				{Name: "redis", Probe: func(context.Context) error { return nil }},
			},
		})

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("unavailable when a probe fails", func(t *testing.T) {
		router := NewRouter(RouterConfig{
			Ready: []ReadyCheck{
				{Name: "postgres", Probe: func(context.Context) error { return nil }},
				{Name: "redis", Probe: func(context.Context) error { return errors.New("connection refused") }},
			},
		})

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), "redis")
	})
}

func TestSubjectTrigger(t *testing.T) {
	subjectID := id.NewSubjectID()

	t.Run("returns alert details when a run alerts", func(t *testing.T) {
		monitor := &stubMonitor{
			alert: &monitoringmodels.MonitoringAlert{
				ID:        id.NewAlertID(),
				Severity:  monitoringmodels.SeverityHigh,
				CreatedAt: time.Now().UTC(),
			},
		}
		router := NewRouter(RouterConfig{Monitor: monitor})

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/internal/monitoring/subjects/"+subjectID.String()+"/run", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, monitor.subjects, 1)
		assert.Equal(t, subjectID, monitor.subjects[0])

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, true, body["alert_created"])
		assert.Equal(t, monitor.alert.ID.String(), body["alert_id"])
	})

	t.Run("reports no alert on a clean run", func(t *testing.T) {
		router := NewRouter(RouterConfig{Monitor: &stubMonitor{}})

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/internal/monitoring/subjects/"+subjectID.String()+"/run", nil))

		require.Equal(t, http.StatusOK, rec.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, false, body["alert_created"])
	})

	t.Run("rejects malformed subject id", func(t *testing.T) {
		router := NewRouter(RouterConfig{Monitor: &stubMonitor{}})

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/internal/monitoring/subjects/not-a-uuid/run", nil))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("maps coded errors to status", func(t *testing.T) {
		cases := []struct {
			name string
			err  error
			want int
		}{
			{"not found", dErrors.New(dErrors.CodeNotFound, "subject not found"), http.StatusNotFound},
			{"conflict", dErrors.New(dErrors.CodeConflict, "run in progress"), http.StatusConflict},
			{"unavailable", dErrors.New(dErrors.CodeUnavailable, "provider down"), http.StatusServiceUnavailable},
			{"internal", errors.New("boom"), http.StatusInternalServerError},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				router := NewRouter(RouterConfig{Monitor: &stubMonitor{err: tc.err}})

				rec := httptest.NewRecorder()
				router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/internal/monitoring/subjects/"+subjectID.String()+"/run", nil))

				assert.Equal(t, tc.want, rec.Code)
			})
		}
	})
}

func TestBatchTrigger(t *testing.T) {
	tenantID := id.NewTenantID()

	router := NewRouter(RouterConfig{Monitor: &stubMonitor{
		result: &monitoringmodels.BatchResult{Screened: 12, NewAlerts: 3, Errors: 1, Skipped: 2},
	}})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/internal/monitoring/tenants/"+tenantID.String()+"/run", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(12), body["screened"])
	assert.Equal(t, float64(3), body["new_alerts"])
	assert.Equal(t, float64(1), body["errors"])
	assert.Equal(t, float64(2), body["skipped"])
}
