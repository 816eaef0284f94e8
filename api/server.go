/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. RealIP:     Client address behind a proxy
  3. Logger:     zap request log (logger.Middleware)
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. Metrics:    Prometheus request counters and latency
  6. CORS:       Cross-origin requests for the frontend
  /api only:
  7. Identity:   Bearer token -> directory.Actor, 401 otherwise

ROUTE GROUPS:
  /healthz              Liveness, public
  /metrics              Prometheus exposition, public
  /api/leaves/*         Leave workflow
  /api/leave-types      Leave policy
  /api/employees/*      Directory, balance and ledger
  /api/balances         Every active employee's balance
  /api/departments      Directory
  /api/documents        Supporting documents
  /api/attendance/*     Check-in/out and history
  /api/reports/*        HR reports

SEE ALSO:
  - handlers.go: Handler implementations
  - identity/middleware.go: Caller resolution
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/warp/leave-governance/identity"
	"github.com/warp/leave-governance/logger"
	"github.com/warp/leave-governance/metrics"
)

// RouterOptions carries the cross-cutting pieces of the router.
type RouterOptions struct {
	Resolver       *identity.Resolver
	Metrics        *metrics.Registry
	Logger         *zap.Logger
	AllowedOrigins []string
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	log := opts.Logger
	if log == nil {
		log = h.Logger
	}
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logger.Middleware(log))
	r.Use(middleware.Recoverer)
	r.Use(opts.Metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", h.Healthz)
	r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(identity.Middleware(opts.Resolver, h.writeError, log))

		// Leave routes
		r.Route("/leaves", func(r chi.Router) {
			r.Get("/", h.ListLeaves)
			r.Post("/", h.SubmitLeave)
			r.Get("/stats", h.LeaveStats)
			r.Get("/calendar", h.LeaveCalendar)
			r.Post("/hr-decisions", h.BatchHRDecision)
			r.Get("/{id}", h.GetLeave)
			r.Delete("/{id}", h.WithdrawLeave)
			r.Post("/{id}/manager-decision", h.ManagerDecision)
			r.Post("/{id}/hr-decision", h.HRDecision)
		})
		r.Get("/leave-types", h.LeaveTypes)

		// Employee routes
		r.Route("/employees", func(r chi.Router) {
			r.Get("/", h.ListEmployees)
			r.Post("/", h.CreateEmployee)
			r.Get("/{id}", h.GetEmployee)
			r.Put("/{id}/active", h.SetEmployeeActive)
			r.Get("/{id}/balance", h.GetBalance)
			r.Get("/{id}/ledger", h.GetLedger)
			r.Post("/{id}/adjustments", h.CreateAdjustment)
		})

		r.Get("/balances", h.ListBalances)

		r.Route("/departments", func(r chi.Router) {
			r.Get("/", h.ListDepartments)
			r.Post("/", h.CreateDepartment)
		})

		r.Post("/documents", h.UploadDocument)

		// Attendance routes
		r.Route("/attendance", func(r chi.Router) {
			r.Get("/", h.AttendanceHistory)
			r.Get("/today", h.TodayRecord)
			r.Post("/check-in", h.CheckIn)
			r.Post("/check-out", h.CheckOut)
		})

		// Report routes
		r.Route("/reports", func(r chi.Router) {
			r.Get("/daily", h.DailyReport)
			r.Get("/daily.pdf", h.DailyReportPDF)
			r.Get("/lateness", h.LatenessReport)
			r.Get("/lateness.pdf", h.LatenessReportPDF)
			r.Get("/attendance-stats", h.AttendanceStats)
		})
	})

	return r
}
