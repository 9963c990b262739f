package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"templora_comments/internal/handler"
	"templora_comments/internal/httputil"
	authmw "templora_comments/internal/transport/http/middleware"
)

// RouterConfig holds the dependencies needed to create routes
type RouterConfig struct {
	AuthHandler         *handler.AuthHandler
	CommentHandler      *handler.CommentHandler
	MediaHandler        *handler.MediaHandler
	NotificationHandler *handler.NotificationHandler
	JWTSecret           string
	Users               authmw.UserLoader
}

// NewRouter creates and configures a new Chi router with all route groups
func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	// Health check endpoint (useful for deployment/monitoring)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, 200, map[string]string{"status": "ok"})
	})

	// Public routes - no authentication required
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", cfg.AuthHandler.Register)
		r.Post("/login", cfg.AuthHandler.Login)
		r.Post("/refresh", cfg.AuthHandler.Refresh)
	})

	optional := authmw.OptionalAuth(cfg.JWTSecret, cfg.Users)

	// Comment reads and votes work for signed-in and anonymous callers alike
	r.With(optional).Get("/articles/{id}/comments", cfg.CommentHandler.List)
	r.With(optional).Post("/comments/{id}/vote", cfg.CommentHandler.Vote)

	// Creating a comment needs an account, but the handler maps the missing
	// identity to a dedicated code so clients can prompt login
	r.With(optional).Post("/articles/{id}/comments", cfg.CommentHandler.Create)

	// Protected routes - require authentication
	r.Group(func(r chi.Router) {
		r.Use(authmw.RequireAuth(cfg.JWTSecret, cfg.Users))

		// Current user endpoints
		r.Get("/me", cfg.AuthHandler.Me)

		// Auth actions that require authentication
		r.Post("/auth/logout", cfg.AuthHandler.Logout)
		r.Post("/auth/logout-all", cfg.AuthHandler.LogoutAll)

		// Comment ownership and moderation actions
		r.Patch("/comments/{id}", cfg.CommentHandler.Update)
		r.Delete("/comments/{id}", cfg.CommentHandler.Delete)
		r.Patch("/comments/{id}/pin", cfg.CommentHandler.Pin)
		r.Patch("/comments/{id}/approve", cfg.CommentHandler.Approve)

		// Media endpoints
		r.Post("/media/avatar", cfg.MediaHandler.UploadAvatar)

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", cfg.NotificationHandler.List)
			r.Post("/read", cfg.NotificationHandler.MarkRead)
		})
	})

	return r
}
