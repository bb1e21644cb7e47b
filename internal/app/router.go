package app

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/phoenix-bikes/biketrack/internal/auth"
	"github.com/phoenix-bikes/biketrack/internal/donations"
	"github.com/phoenix-bikes/biketrack/internal/inventory"
	"github.com/phoenix-bikes/biketrack/internal/observability"
	"github.com/phoenix-bikes/biketrack/internal/platform/httpx"
	"github.com/phoenix-bikes/biketrack/internal/rbac"
	"github.com/phoenix-bikes/biketrack/internal/roles"
	"github.com/phoenix-bikes/biketrack/internal/shared"
	"github.com/phoenix-bikes/biketrack/internal/storeconfig"
	"github.com/phoenix-bikes/biketrack/internal/workorders"
	"github.com/phoenix-bikes/biketrack/jobs"
	"github.com/phoenix-bikes/biketrack/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	SessionManager   *shared.SessionManager
	CSRFManager      *shared.CSRFManager
	RBACMiddleware   rbac.Middleware
	StoreConfig      storeconfig.StoreConfig
	HealthCheck      func(*http.Request) error
	AuthHandler      *auth.Handler
	InventoryHandler *inventory.Handler
	DonationsHandler *donations.Handler
	WorkOrderHandler *workorders.Handler
	RolesHandler     *roles.Handler
	JobHandler       *jobs.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with BikeTrack defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	// Served before sessions so the browser preflight needs no cookie.
	r.Method(http.MethodGet, "/config", storeconfig.Handler(params.StoreConfig))
	r.Method(http.MethodOptions, "/config", storeconfig.Handler(params.StoreConfig))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if params.HealthCheck != nil {
			if err := params.HealthCheck(r); err != nil {
				params.Logger.Warn("health check", slog.Any("error", err))
				httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
				return
			}
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	r.Group(func(r chi.Router) {
		for _, mw := range MiddlewareStack(MiddlewareConfig{
			Logger:         params.Logger,
			Config:         params.Config,
			SessionManager: params.SessionManager,
			CSRFManager:    params.CSRFManager,
			RBAC:           params.RBACMiddleware,
			Metrics:        params.Metrics,
		}) {
			r.Use(mw)
		}
		r.Use(chimw.Logger)

		r.Route("/auth", params.AuthHandler.MountRoutes)
		params.InventoryHandler.MountDashboard(r)
		r.Route("/bikes", params.InventoryHandler.MountRoutes)
		r.Route("/donations", params.DonationsHandler.MountRoutes)
		if params.WorkOrderHandler != nil {
			r.Route("/work-orders", params.WorkOrderHandler.MountRoutes)
		}
		if params.RolesHandler != nil {
			r.Route("/roles", params.RolesHandler.MountRoutes)
		}
		if params.JobHandler != nil {
			r.Route("/jobs", func(r chi.Router) {
				r.Use(params.RBACMiddleware.RequireLogin)
				r.Use(params.RBACMiddleware.RequireRole(rbac.RoleAdmin))
				params.JobHandler.MountRoutes(r)
			})
		}
	})

	return r
}

// staticCacheHandler wraps a file server with Cache-Control headers.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
