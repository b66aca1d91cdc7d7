package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dom/chat-relay/internal/api"
	"github.com/dom/chat-relay/internal/auth"
	"github.com/dom/chat-relay/internal/completion"
	"github.com/dom/chat-relay/internal/config"
	"github.com/dom/chat-relay/internal/repository/postgres"
	"github.com/dom/chat-relay/internal/service"
	"github.com/dom/chat-relay/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	credentials, err := auth.NewCredentials(cfg.JWTSecret, cfg.TokenTTL, cfg.BcryptCost)
	if err != nil {
		slog.Error("invalid auth settings", "error", err)
		os.Exit(1)
	}

	if cfg.Provider.APIKey == "" {
		slog.Warn("OPENROUTER_API_KEY is not set; completion requests will be rejected upstream")
	}

	// The database is opened on first use, so the server comes up even while
	// postgres is still starting.
	handle := postgres.NewHandle(cfg.DatabaseURL)
	repos := postgres.NewRepositories(handle)

	hub := websocket.NewHub()
	go hub.Run()

	provider := completion.NewClient(completion.Config{
		BaseURL:     cfg.Provider.BaseURL,
		APIKey:      cfg.Provider.APIKey,
		Model:       cfg.Provider.Model,
		Temperature: cfg.Provider.Temperature,
		MaxTokens:   cfg.Provider.MaxTokens,
		Timeout:     cfg.Provider.Timeout,
		Referer:     cfg.Provider.Referer,
		AppTitle:    cfg.Provider.AppTitle,
	})

	services := service.NewServices(repos, credentials, provider, hub, cfg)
	router := api.NewRouter(services, hub, cfg)

	srv := &http.Server{
		Addr:        "0.0.0.0:" + cfg.Port,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// A chat turn waits on the provider.
		WriteTimeout: cfg.Provider.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", cfg.Port, "environment", cfg.Environment, "model", cfg.Provider.Model)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	hub.Stop()
	if err := handle.Close(); err != nil {
		slog.Error("failed to close database", "error", err)
	}

	slog.Info("server stopped")
}
