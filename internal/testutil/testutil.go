package testutil

import (
	"context"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dom/chat-relay/internal/api"
	"github.com/dom/chat-relay/internal/auth"
	"github.com/dom/chat-relay/internal/completion"
	"github.com/dom/chat-relay/internal/config"
	"github.com/dom/chat-relay/internal/repository"
	repoPostgres "github.com/dom/chat-relay/internal/repository/postgres"
	"github.com/dom/chat-relay/internal/service"
	"github.com/dom/chat-relay/internal/websocket"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gormPostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestDB manages a testcontainers PostgreSQL instance
type TestDB struct {
	Container testcontainers.Container
	DB        *gorm.DB
	DSN       string
}

// NewTestDB creates a new PostgreSQL testcontainer and returns a migrated connection
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	ctx := context.Background()

	container, err := tcPostgres.Run(ctx,
		"postgres:15-alpine",
		tcPostgres.WithDatabase("test_chat_relay"),
		tcPostgres.WithUsername("test"),
		tcPostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	db, err := gorm.Open(gormPostgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to connect to database: %v", err)
	}

	if err := repoPostgres.Migrate(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	testDB := &TestDB{
		Container: container,
		DB:        db,
		DSN:       dsn,
	}

	t.Cleanup(func() {
		testDB.Cleanup()
	})

	return testDB
}

// Handle wraps the open connection the way the server sees it
func (tdb *TestDB) Handle() *repoPostgres.Handle {
	return repoPostgres.HandleFromDB(tdb.DB)
}

// Cleanup terminates the container
func (tdb *TestDB) Cleanup() {
	if sqlDB, err := tdb.DB.DB(); err == nil {
		sqlDB.Close()
	}
	if tdb.Container != nil {
		tdb.Container.Terminate(context.Background())
	}
}

// Truncate clears all tables for test isolation
func (tdb *TestDB) Truncate(t *testing.T) {
	t.Helper()

	for _, table := range []string{"conversations", "users"} {
		if err := tdb.DB.Exec(fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)).Error; err != nil {
			t.Logf("warning: failed to truncate %s: %v", table, err)
		}
	}
}

// TestConfig returns a configuration suitable for testing
func TestConfig() *config.Config {
	return &config.Config{
		Port:              "0",
		Environment:       "test",
		LogLevel:          "error",
		CORSOrigins:       []string{"http://localhost:3000"},
		JWTSecret:         "test-jwt-secret-key-for-testing-only",
		TokenTTL:          time.Hour,
		BcryptCost:        4, // bcrypt.MinCost keeps tests fast
		CookieName:        auth.DefaultCookieName,
		ChatListLimit:     20,
		ChatHistoryWindow: 0,
		Provider: config.ProviderConfig{
			APIKey:      "sk-test",
			Model:       "test/model",
			Temperature: 0.7,
			MaxTokens:   1000,
			Timeout:     5 * time.Second,
			Referer:     "http://localhost:3000",
			AppTitle:    "ChatBot App",
		},
	}
}

// TestServer holds all components for integration testing
type TestServer struct {
	Server      *httptest.Server
	DB          *TestDB
	Repos       *repository.Repositories
	Services    *service.Services
	Credentials *auth.Credentials
	Hub         *websocket.Hub
	Provider    *FakeProvider
	Config      *config.Config
}

// NewTestServer creates a complete test server with all dependencies. The
// completion provider is a local fake reached over HTTP through the real client.
func NewTestServer(t *testing.T) *TestServer {
	t.Helper()

	testDB := NewTestDB(t)
	provider := NewFakeProvider(t)

	cfg := TestConfig()
	cfg.Provider.BaseURL = provider.URL()

	credentials, err := auth.NewCredentials(cfg.JWTSecret, cfg.TokenTTL, cfg.BcryptCost)
	if err != nil {
		t.Fatalf("failed to build credentials: %v", err)
	}

	repos := repoPostgres.NewRepositories(testDB.Handle())
	hub := websocket.NewHub()
	go hub.Run()

	client := completion.NewClient(completion.Config{
		BaseURL:     cfg.Provider.BaseURL,
		APIKey:      cfg.Provider.APIKey,
		Model:       cfg.Provider.Model,
		Temperature: cfg.Provider.Temperature,
		MaxTokens:   cfg.Provider.MaxTokens,
		Timeout:     cfg.Provider.Timeout,
		Referer:     cfg.Provider.Referer,
		AppTitle:    cfg.Provider.AppTitle,
	})

	services := service.NewServices(repos, credentials, client, hub, cfg)
	router := api.NewRouter(services, hub, cfg)

	server := httptest.NewServer(router)

	ts := &TestServer{
		Server:      server,
		DB:          testDB,
		Repos:       repos,
		Services:    services,
		Credentials: credentials,
		Hub:         hub,
		Provider:    provider,
		Config:      cfg,
	}

	t.Cleanup(func() {
		server.Close()
		hub.Stop()
	})

	return ts
}

// BaseURL returns the test server's base URL
func (ts *TestServer) BaseURL() string {
	return ts.Server.URL
}

// APIURL returns the full API URL for a given path
func (ts *TestServer) APIURL(path string) string {
	return fmt.Sprintf("%s/api%s", ts.Server.URL, path)
}

// WebSocketURL returns the WebSocket URL with token
func (ts *TestServer) WebSocketURL(token string) string {
	wsURL := "ws" + strings.TrimPrefix(ts.Server.URL, "http")
	return fmt.Sprintf("%s/api/ws?token=%s", wsURL, token)
}
