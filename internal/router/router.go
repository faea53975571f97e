package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"verona-backend/internal/handlers"
	"verona-backend/internal/middleware"
	"verona-backend/internal/websocket"
)

func New(
	jwtAuth *middleware.JWTAuth,
	rateLimiter *middleware.RateLimiter,
	sessionHandler *handlers.SessionHandler,
	chatHandler *handlers.ChatHandler,
	wsHub *websocket.Hub,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Session Routes ────
		r.Route("/sessions", func(r chi.Router) {
			// The hub checks the query token itself; browsers cannot set
			// headers on a websocket upgrade.
			r.Get("/{id}/ws", wsHub.HandleWebSocket)

			r.Group(func(r chi.Router) {
				r.Use(jwtAuth.Middleware)
				r.Use(rateLimiter.Middleware)

				r.Post("/", sessionHandler.Create)
				r.Get("/{id}/messages", sessionHandler.Messages)
				r.Post("/{id}/chat", chatHandler.Send)
				r.Post("/{id}/clear", sessionHandler.Clear)
				r.Get("/{id}/export", sessionHandler.Export)
				r.Post("/{id}/import", sessionHandler.Import)
				r.Delete("/{id}", sessionHandler.Delete)
			})
		})
	})

	return r
}
