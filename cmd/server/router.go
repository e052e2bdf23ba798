package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/formaworks/forma-api/internal/api"
	apimiddleware "github.com/formaworks/forma-api/internal/api/middleware"
)

// setupRouter wires handlers and middleware into the application router.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(apimiddleware.TraceMiddleware)

	generationHandler := api.NewGenerationHandler(app.generationService, app.logger)
	feedbackHandler := api.NewFeedbackHandler(app.feedbackService, app.logger)
	searchHandler := api.NewSearchHandler(app.sketchfabClient, app.logger)

	authMiddleware := apimiddleware.NewAuthMiddleware(app.tokenService, app.apiKeyVerifier)
	rateLimiter := apimiddleware.NewRateLimiter(app.config.Auth.RateLimitPerMinute, time.Minute)

	// Health endpoint is public so load balancers can probe it.
	r.Get("/health", generationHandler.Health)

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)
			r.Use(rateLimiter.Limit)

			r.Post("/generate", generationHandler.Generate)
			r.Get("/generate/status/{taskID}", generationHandler.Status)
			r.Get("/generate/download/{taskID}", generationHandler.Download)
			r.Delete("/generate/{taskID}", generationHandler.Cancel)

			r.Post("/feedback", feedbackHandler.Submit)
			r.Get("/feedback/id/{id}", feedbackHandler.GetByID)
			r.Get("/feedback/{taskID}", feedbackHandler.ListByTask)

			r.Post("/evaluate", feedbackHandler.Evaluate)
			r.Get("/evaluate/{taskID}", feedbackHandler.ListEvaluations)

			r.Get("/search/models", searchHandler.Search)
			r.Get("/search/models/{uid}", searchHandler.ModelDetails)
			r.Get("/search/models/{uid}/download", searchHandler.Download)
			r.Get("/search/popular", searchHandler.Popular)
			r.Get("/search/categories", searchHandler.Categories)
		})
	})

	return r
}
