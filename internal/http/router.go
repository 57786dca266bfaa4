// Package httpapi assembles the service's HTTP surface: platform middleware,
// health and metrics endpoints, and the feature handlers.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"veranda/internal/platform/middleware"
)

// Registrar is anything that can mount its routes on the API router.
type Registrar interface {
	Register(r chi.Router)
}

// NewRouter wires the shared middleware stack and mounts every registrar
// under /api/v1.
func NewRouter(registrars ...Registrar) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestID)
	r.Use(middleware.ActingUser)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(api chi.Router) {
		for _, registrar := range registrars {
			registrar.Register(api)
		}
	})
	return r
}
