/**
 * @description
 * This file sets up the HTTP router. It defines the API endpoints,
 * associates them with their handlers, and applies middleware for CORS,
 * logging, panic recovery, and authentication.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 * - github.com/go-chi/cors: CORS middleware for the browser client.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/benardngware/somanamimi2/internal/store"
)

// Routes creates and returns the router for the backend.
func Routes(h *Handlers, tokens *TokenManager, repo store.Repository) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// The SPA is served from a different origin in development.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Public endpoints.
	r.Post("/auth/register", h.RegisterHandler)
	r.Post("/auth/login", h.LoginHandler)
	r.Get("/videos", h.ListVideosHandler)

	// Provider-originated; authenticated by nothing but its payload, so the
	// grant service treats it as untrusted.
	r.Post("/payments/callback", h.CallbackHandler)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(tokens, repo))

		r.Get("/auth/me", h.MeHandler)
		r.Post("/payments/stk-push", h.STKPushHandler)
		r.Get("/payments/{merchantRequestID}", h.PaymentStatusHandler)

		// Catalog management is admin only.
		r.Group(func(r chi.Router) {
			r.Use(AdminOnly)
			r.Post("/videos", h.CreateVideoHandler)
			r.Put("/videos/{id}", h.UpdateVideoHandler)
			r.Delete("/videos/{id}", h.DeleteVideoHandler)
		})
	})

	return r
}
