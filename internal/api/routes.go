package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Routes builds the HTTP surface.
func (h *Handlers) Routes(allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", h.health.HandleHealth)
	r.Get("/health/live", h.health.HandleLiveness)
	r.Get("/health/ready", h.health.HandleReadiness)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/tiers", h.ListTiers)

		r.Route("/personalize", func(r chi.Router) {
			r.Post("/variables", h.ExtractVariables)
			r.Post("/preview", h.Preview)
		})

		r.Route("/campaigns/{campaignID}", func(r chi.Router) {
			r.Post("/recipients", h.ImportRecipients)
			r.Get("/recipients", h.ListRecipients)
			r.Get("/stats", h.CampaignStats)

			r.Route("/batch", func(r chi.Router) {
				r.Post("/", h.StartBatch)
				r.Get("/", h.BatchStatus)
				r.Post("/pause", h.PauseBatch)
				r.Post("/resume", h.ResumeBatch)
				r.Post("/stop", h.StopBatch)
				r.Post("/retry", h.RetryBatch)
			})
		})

		r.Route("/recipients/{recipientID}", func(r chi.Router) {
			r.Get("/", h.GetRecipient)
			r.Post("/sent", h.MarkSent)
			r.Post("/views", h.RecordView)
		})
	})

	return r
}
