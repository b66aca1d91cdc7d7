package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dom/chat-relay/internal/domain"
	"github.com/dom/chat-relay/internal/repository"
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Opener opens and migrates a database connection.
type Opener func(databaseURL string) (*gorm.DB, error)

// Handle is the process-wide, lazily opened database connection. The first
// caller opens it; concurrent first callers wait for that single attempt. A
// failed attempt is not cached, so the next call tries again.
type Handle struct {
	mu          sync.Mutex
	databaseURL string
	open        Opener
	db          *gorm.DB
}

func NewHandle(databaseURL string) *Handle {
	return &Handle{databaseURL: databaseURL, open: NewConnection}
}

// NewHandleWithOpener is NewHandle with a custom way of opening the connection.
func NewHandleWithOpener(databaseURL string, open Opener) *Handle {
	return &Handle{databaseURL: databaseURL, open: open}
}

// HandleFromDB wraps an already open connection.
func HandleFromDB(db *gorm.DB) *Handle {
	return &Handle{db: db}
}

// DB returns the shared connection bound to ctx, opening it on first use.
func (h *Handle) DB(ctx context.Context) (*gorm.DB, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.db == nil {
		db, err := h.open(h.databaseURL)
		if err != nil {
			return nil, fmt.Errorf("%w: connecting to database: %v", domain.ErrStorage, err)
		}
		h.db = db
	}

	return h.db.WithContext(ctx), nil
}

// Close releases the underlying pool if it was ever opened.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.db == nil {
		return nil
	}
	sqlDB, err := h.db.DB()
	if err != nil {
		return err
	}
	h.db = nil
	return sqlDB.Close()
}

func NewConnection(databaseURL string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate brings the schema up to date.
func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "202610190001_create_users",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&domain.User{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("users")
			},
		},
		{
			ID: "202610190002_create_conversations",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&domain.Conversation{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("conversations")
			},
		},
	})

	m.InitSchema(func(tx *gorm.DB) error {
		slog.Info("clean database detected, creating schema")
		return tx.AutoMigrate(&domain.User{}, &domain.Conversation{})
	})

	return m.Migrate()
}

func NewRepositories(handle *Handle) *repository.Repositories {
	return &repository.Repositories{
		User:         NewUserRepository(handle),
		Conversation: NewConversationRepository(handle),
	}
}
