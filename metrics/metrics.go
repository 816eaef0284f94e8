/*
metrics.go - Prometheus instrumentation

PURPOSE:
  One Registry per process. It implements the Recorder interfaces of the
  leave and attendance engines and instruments HTTP traffic, and is
  exposed on /metrics.

SERIES:
  leavegov_leave_submitted_total{type}
  leavegov_leave_decisions_total{stage,decision,outcome}
  leavegov_notification_failures_total{kind}
  leavegov_attendance_events_total{event,outcome}
  leavegov_lateness_employees / leavegov_lateness_sanctions (last run)
  leavegov_digest_runs_total{outcome}
  leavegov_http_requests_total{method,route,status}
  leavegov_http_request_duration_seconds{method,route,status}

A nil *Registry is valid and records nothing.
*/
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/warp/leave-governance/attendance"
	"github.com/warp/leave-governance/leave"
)

const namespace = "leavegov"

type Registry struct {
	registry *prometheus.Registry
	handler  http.Handler

	leaveSubmitted   *prometheus.CounterVec
	leaveDecisions   *prometheus.CounterVec
	notifyFailures   *prometheus.CounterVec
	attendanceEvents *prometheus.CounterVec
	latenessPeople   prometheus.Gauge
	latenessSanction prometheus.Gauge
	digestRuns       *prometheus.CounterVec
	requestTotal     *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
}

var (
	_ leave.Recorder      = (*Registry)(nil)
	_ attendance.Recorder = (*Registry)(nil)
)

// New registers every collector plus the Go runtime collectors.
func New() *Registry {
	reg := prometheus.NewRegistry()
	m := &Registry{
		registry: reg,
		leaveSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "leave_submitted_total",
			Help:      "Leave requests submitted, by type.",
		}, []string{"type"}),
		leaveDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "leave_decisions_total",
			Help:      "Leave decisions by stage, decision and outcome.",
		}, []string{"stage", "decision", "outcome"}),
		notifyFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_failures_total",
			Help:      "Notifications that could not be dispatched.",
		}, []string{"kind"}),
		attendanceEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attendance_events_total",
			Help:      "Check-ins and check-outs by outcome.",
		}, []string{"event", "outcome"}),
		latenessPeople: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "lateness_employees",
			Help:      "Employees covered by the last cumulative lateness computation.",
		}),
		latenessSanction: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "lateness_sanctions",
			Help:      "Employees over the sanction threshold in the last computation.",
		}),
		digestRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "digest_runs_total",
			Help:      "Weekly lateness digest runs by outcome.",
		}, []string{"outcome"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	reg.MustRegister(
		m.leaveSubmitted, m.leaveDecisions, m.notifyFailures,
		m.attendanceEvents, m.latenessPeople, m.latenessSanction, m.digestRuns,
		m.requestTotal, m.requestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m.handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Registry) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Gatherer exposes the underlying registry, mostly for tests.
func (m *Registry) Gatherer() prometheus.Gatherer { return m.registry }

// Leave

func (m *Registry) LeaveSubmitted(leaveType string) {
	if m == nil {
		return
	}
	m.leaveSubmitted.WithLabelValues(leaveType).Inc()
}

func (m *Registry) LeaveDecided(stage, decision, outcome string) {
	if m == nil {
		return
	}
	m.leaveDecisions.WithLabelValues(stage, decision, outcome).Inc()
}

func (m *Registry) NotificationFailed(kind string) {
	if m == nil {
		return
	}
	m.notifyFailures.WithLabelValues(kind).Inc()
}

// Attendance

func (m *Registry) AttendanceRecorded(event, outcome string) {
	if m == nil {
		return
	}
	m.attendanceEvents.WithLabelValues(event, outcome).Inc()
}

func (m *Registry) LatenessComputed(employees, sanctions int) {
	if m == nil {
		return
	}
	m.latenessPeople.Set(float64(employees))
	m.latenessSanction.Set(float64(sanctions))
}

// DigestRun counts scheduler runs; outcome is "ok" or "error".
func (m *Registry) DigestRun(outcome string) {
	if m == nil {
		return
	}
	m.digestRuns.WithLabelValues(outcome).Inc()
}

// =============================================================================
// HTTP MIDDLEWARE
// =============================================================================

// Middleware observes every request. The route label is chi's pattern
// ("/api/leaves/{id}") so ids do not explode cardinality.
func (m *Registry) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		labels := []string{r.Method, route, strconv.Itoa(status)}
		m.requestTotal.WithLabelValues(labels...).Inc()
		m.requestDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
	})
}
