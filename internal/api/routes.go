package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter creates a new router with all routes configured
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware (all routes)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(RecoveryMiddleware)

	// Each guidance request is a model call.
	modelLimiter := NewOwnerRateLimiter(h.opts.ModelRequestsPerMinute, h.opts.ModelBurst)

	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Get("/health", h.Health)
		r.Get("/framework", h.GetFramework)

		// Protected routes (bearer JWT)
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(h.opts.JWTSecret, h.opts.JWTIssuer))

			r.With(modelLimiter.Middleware).Post("/advice", h.QuickAdvice)

			r.Post("/decisions", h.CreateDecision)
			r.Get("/decisions", h.ListDecisions)
			r.Route("/decisions/{id}", func(r chi.Router) {
				r.Get("/", h.GetDecision)
				r.Delete("/", h.DeleteDecision)
				r.With(modelLimiter.Middleware).Get("/steps/{index}/suggestion", h.GetSuggestion)
				r.Post("/steps/{index}", h.SubmitStep)
				r.Get("/summary", h.GetSummary)
				r.Post("/feedback", h.CreateFeedback)
				r.Get("/feedback", h.ListFeedback)
			})
		})
	})

	return r
}
