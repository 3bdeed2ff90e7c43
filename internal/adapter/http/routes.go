package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pulseboard/tenancy/internal/middleware"
)

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Get("/health", h.Health)

	if h.Hub != nil {
		r.Get("/ws", h.Hub.HandleWS)
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Version
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"version":"0.1.0"}`))
		})

		// Session lifecycle
		r.Get("/session", h.GetSession)
		r.Get("/session/cached", h.GetCachedSession)
		r.Post("/session/reload", h.ReloadSession)
		r.Patch("/session/settings", h.UpdateSessionSettings)
		r.Patch("/session/usage", h.UpdateSessionUsage)
		r.Get("/session/limits/{feature}", h.GetFeatureLimit)
		r.Get("/session/collections/{name}", h.GetCollectionPath)

		// Tenant provisioning
		r.Post("/tenants", h.CreateTenant)
		r.Get("/tenants/{id}", h.GetTenant)
	})

	// Dev-only auth driver (additionally gated on APP_ENV=development)
	if h.Auth != nil {
		r.Route("/dev", func(r chi.Router) {
			r.Use(middleware.DevModeOnly)
			r.Post("/login", h.DevLogin)
			r.Post("/logout", h.DevLogout)
		})
	}
}
