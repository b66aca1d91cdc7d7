package repository

import (
	"context"

	"github.com/dom/chat-relay/internal/domain"
	"github.com/google/uuid"
)

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

// ConversationRepository scopes every lookup and mutation by owner. A
// conversation that exists but belongs to someone else is reported exactly
// like one that does not exist.
type ConversationRepository interface {
	Create(ctx context.Context, conv *domain.Conversation) error
	GetByIDAndOwner(ctx context.Context, id, ownerID uuid.UUID) (*domain.Conversation, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID, limit int) ([]*domain.ConversationSummary, error)
	DeleteByIDAndOwner(ctx context.Context, id, ownerID uuid.UUID) error
	AppendMessages(ctx context.Context, id, ownerID uuid.UUID, messages []domain.Message) (*domain.Conversation, error)
}

type Repositories struct {
	User         UserRepository
	Conversation ConversationRepository
}
