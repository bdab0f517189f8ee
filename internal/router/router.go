// Package router sets up all HTTP routes and middleware chains for the
// catalog API. Reads, writes and maintenance live under /api/v1, with the
// health check and Prometheus metrics at the top level.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"catalogd/internal/handlers"
	"catalogd/internal/middleware"
)

// New creates and returns the configured Chi router with all middleware
// and route groups wired up. maintenance limits the recompute endpoint.
func New(api *handlers.API, maintenance *middleware.RateLimiter) chi.Router {
	r := chi.NewRouter()

	// Global middleware, applied to every request.
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(middleware.SecureHeaders)

	r.Get("/health", healthHandler)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RequireJSON)

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", api.ListCategories)
			r.Post("/", api.CreateCategory)
			r.Get("/tree", api.CategoryTree)
			r.Get("/roots", api.RootCategories)
			r.Post("/bulk-update", api.BulkUpdateCategories)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", api.GetCategory)
				r.Patch("/", api.UpdateCategory)
				r.Delete("/", api.DeleteCategory)
				r.Get("/path", api.CategoryPath)
				r.Post("/move", api.MoveCategory)
				r.Post("/toggle", api.ToggleCategory)
				r.Post("/reassign", api.ReassignProducts)

				// Membership
				r.Post("/products/bulk", api.BulkLinkProducts)
				r.Post("/products/{productID}", api.LinkProduct)
				r.Delete("/products/{productID}", api.UnlinkProduct)
			})
		})

		r.Route("/products", func(r chi.Router) {
			r.Post("/", api.CreateProduct)
			r.Patch("/{id}", api.SetProductActive)
			r.Delete("/{id}", api.DeleteProduct)
			r.Put("/{id}/categories", api.SetProductCategories)
		})

		r.Route("/maintenance", func(r chi.Router) {
			r.With(maintenance.Middleware).Post("/recompute", api.Recompute)
			r.With(maintenance.Middleware).Post("/snapshot", api.Snapshot)
			r.Get("/recompute/log", api.RecomputeLog)
		})
	})

	return r
}

// healthHandler returns a simple JSON health check response.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
