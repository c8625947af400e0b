package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes configures all API routes.
func SetupRoutes(h *Handlers, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", h.HealthCheck)

	r.Route("/provider", func(r chi.Router) {
		r.Get("/settings", h.GetProviderSettings)
		r.Post("/settings", h.SaveProviderSettings)
		r.Post("/save", h.SaveProvider)
		r.Post("/test", h.TestProvider)
	})

	r.Route("/campaign", func(r chi.Router) {
		r.Get("/", h.GetCampaign)
		r.Post("/", h.SaveCampaign)
		r.Post("/upload", h.UploadCampaign)
		r.Post("/send", h.SendCampaign)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"not found"}`))
	})

	return r
}
