/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:     Unique ID per request for tracing
  2. RequestLogger: logrus line per request
  3. Recoverer:     Panic recovery (500 instead of crash)
  4. CORS:          Cross-origin requests for the dashboard
  5. BodyLimit:     Caps write bodies
  /api only:
  6. Authenticate:  Bearer JWT -> labor.AuthContext
  7. RequireRole:   Per-route role check

ROLES:
  worker_manager: submit requests, see own requests, read workers
  company_admin:  everything in its company
  super_admin:    passes every role check

SEE ALSO:
  - scenarios.go: Demo data loaders
  - handlers.go: Handler implementations
  - middleware.go: Auth and logging middleware
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"
	"github.com/warp/payroll-engine/labor"
)

// Options configures NewRouter.
type Options struct {
	JWTSecret      string
	AllowedOrigins []string
	MaxBodyBytes   int64
	Log            logrus.FieldLogger

	// EnableScenarios mounts the demo data loaders.
	EnableScenarios bool
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts Options) *chi.Mux {
	r := chi.NewRouter()

	maxBody := opts.MaxBodyBytes
	if maxBody == 0 {
		maxBody = 1 << 20
	}
	if opts.Log == nil {
		opts.Log = h.Log
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(opts.Log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))
	r.Use(BodyLimit(maxBody))

	r.Get("/healthz", h.Health)

	admin := RequireRole(labor.RoleCompanyAdmin)
	submitter := RequireRole(labor.RoleWorkerManager, labor.RoleCompanyAdmin)

	r.Route("/api", func(r chi.Router) {
		r.Use(Authenticate(opts.JWTSecret))

		// Request approval routes
		r.Route("/requests", func(r chi.Router) {
			r.With(submitter).Post("/", h.SubmitRequest)
			r.With(submitter).Get("/mine", h.ListMyRequests)
			r.With(admin).Get("/", h.ListRequests)
			r.With(admin).Get("/pending", h.ListPendingRequests)
			r.With(admin).Post("/approve-all", h.ApproveAll)
			r.With(admin).Post("/{id}/approve", h.ApproveRequest)
			r.With(admin).Post("/{id}/reject", h.RejectRequest)
		})

		// Worker routes
		r.Route("/workers", func(r chi.Router) {
			r.Get("/", h.ListWorkers)
			r.With(admin).Post("/", h.CreateWorker)
			r.With(admin).Post("/overtime", h.AdjustOvertime)
			r.With(admin).Put("/{id}", h.UpdateWorker)
			r.With(admin).Delete("/{id}", h.DeleteWorker)
			r.With(admin).Patch("/{id}/status", h.UpdateWorkerStatus)
		})

		// Payroll routes
		r.Get("/payroll-rule", h.GetPayrollRule)
		r.With(admin).Put("/payroll-rule", h.SavePayrollRule)
		r.With(admin).Get("/payroll", h.GetPayroll)

		r.With(admin).Get("/audit", h.ListAudit)

		// Scenario routes (development only)
		if opts.EnableScenarios {
			r.Route("/scenarios", func(r chi.Router) {
				r.Use(admin)
				r.Get("/", h.ListScenarios)
				r.Post("/load", h.LoadScenario)
			})
		}
	})

	return r
}
