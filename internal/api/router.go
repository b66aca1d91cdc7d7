package api

import (
	"net/http"

	"github.com/dom/chat-relay/internal/api/handlers"
	"github.com/dom/chat-relay/internal/api/middleware"
	"github.com/dom/chat-relay/internal/config"
	"github.com/dom/chat-relay/internal/service"
	"github.com/dom/chat-relay/internal/websocket"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

func NewRouter(services *service.Services, hub *websocket.Hub, cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.CORSOrigins))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	authHandler := handlers.NewAuthHandler(services.Auth, services.Sessions, int(cfg.TokenTTL.Seconds()), cfg.IsProduction())
	chatHandler := handlers.NewChatHandler(services.Chat)
	wsHandler := handlers.NewWebSocketHandler(hub, services.Sessions, cfg.CORSOrigins)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/logout", authHandler.Logout)

			r.Group(func(r chi.Router) {
				r.Use(middleware.Auth(services.Sessions))
				r.Get("/me", authHandler.Me)
			})
		})

		r.Route("/chat", func(r chi.Router) {
			r.Use(middleware.Auth(services.Sessions))
			r.Get("/", chatHandler.List)
			r.Post("/", chatHandler.Send)
			r.Get("/{chatId}", chatHandler.Get)
			r.Delete("/{chatId}", chatHandler.Delete)
		})

		// Authenticates itself so it can also read ?token=
		r.Get("/ws", wsHandler.Handle)
	})

	return r
}
