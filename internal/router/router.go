package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/GregMSThompson/dashboard-backend/internal/handlers"
	"github.com/GregMSThompson/dashboard-backend/internal/middleware"
)

// NewRouter mounts the dashboard routes. Requests are authenticated with
// Firebase when deps carries an auth client and run anonymously otherwise.
func NewRouter(deps *handlers.Deps) chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.NewLoggerMiddleware(deps.Log).LoggerMiddleware)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	dh := handlers.NewDashboardHandlers(deps)

	r.Group(func(r chi.Router) {
		if deps.Firebase != nil {
			r.Use(middleware.NewMiddleware(deps.Firebase).FirebaseAuth)
		} else {
			r.Use(middleware.NoAuth)
		}
		r.Mount("/dashboards", dh.DashboardRoutes())
	})
	return r
}
