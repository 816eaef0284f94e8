package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RecordsDomainEvents(t *testing.T) {
	m := New()

	m.LeaveSubmitted("ordinary")
	m.LeaveSubmitted("ordinary")
	m.LeaveDecided("hr", "approve", "approved")
	m.NotificationFailed("leave_decided")
	m.AttendanceRecorded("check_in", "late")
	m.LatenessComputed(12, 3)
	m.DigestRun("ok")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.leaveSubmitted.WithLabelValues("ordinary")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.leaveDecisions.WithLabelValues("hr", "approve", "approved")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.notifyFailures.WithLabelValues("leave_decided")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.attendanceEvents.WithLabelValues("check_in", "late")))
	assert.Equal(t, 12.0, testutil.ToFloat64(m.latenessPeople))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.latenessSanction))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.digestRuns.WithLabelValues("ok")))
}

func TestRegistry_NilIsSafe(t *testing.T) {
	var m *Registry

	assert.NotPanics(t, func() {
		m.LeaveSubmitted("ordinary")
		m.LeaveDecided("manager", "reject", "rejected")
		m.AttendanceRecorded("check_out", "ok")
		m.LatenessComputed(1, 0)
		m.DigestRun("error")
	})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMiddleware_UsesRoutePattern(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/leaves/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Handle("/metrics", m.Handler())

	for _, id := range []string{"a", "b", "c"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/leaves/"+id, nil))
	}

	assert.Equal(t, 3.0, testutil.ToFloat64(m.requestTotal.WithLabelValues("GET", "/api/leaves/{id}", "404")))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `leavegov_http_requests_total{method="GET",route="/api/leaves/{id}",status="404"} 3`))
}
