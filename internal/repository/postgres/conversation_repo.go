package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dom/chat-relay/internal/domain"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type conversationRepository struct {
	handle *Handle
}

func NewConversationRepository(handle *Handle) *conversationRepository {
	return &conversationRepository{handle: handle}
}

func (r *conversationRepository) Create(ctx context.Context, conv *domain.Conversation) error {
	db, err := r.handle.DB(ctx)
	if err != nil {
		return err
	}

	// A nil slice would be stored as JSON null and break later appends.
	if conv.Messages == nil {
		conv.Messages = datatypes.JSONSlice[domain.Message]{}
	}
	return db.Create(conv).Error
}

func (r *conversationRepository) GetByIDAndOwner(ctx context.Context, id, ownerID uuid.UUID) (*domain.Conversation, error) {
	db, err := r.handle.DB(ctx)
	if err != nil {
		return nil, err
	}

	var conv domain.Conversation
	err = db.First(&conv, "id = ? AND user_id = ?", id, ownerID).Error
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *conversationRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit int) ([]*domain.ConversationSummary, error) {
	db, err := r.handle.DB(ctx)
	if err != nil {
		return nil, err
	}

	var summaries []*domain.ConversationSummary
	err = db.Model(&domain.Conversation{}).
		Select("id", "title", "created_at", "updated_at").
		Where("user_id = ?", ownerID).
		Order("updated_at DESC").
		Order("id").
		Limit(limit).
		Find(&summaries).Error
	if err != nil {
		return nil, err
	}
	return summaries, nil
}

func (r *conversationRepository) DeleteByIDAndOwner(ctx context.Context, id, ownerID uuid.UUID) error {
	db, err := r.handle.DB(ctx)
	if err != nil {
		return err
	}

	result := db.Where("id = ? AND user_id = ?", id, ownerID).Delete(&domain.Conversation{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// AppendMessages appends all messages in one UPDATE statement and returns the
// conversation as stored afterwards. The append happens inside the database,
// so concurrent turns against the same conversation never overwrite each
// other.
func (r *conversationRepository) AppendMessages(ctx context.Context, id, ownerID uuid.UUID, messages []domain.Message) (*domain.Conversation, error) {
	db, err := r.handle.DB(ctx)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(messages)
	if err != nil {
		return nil, fmt.Errorf("encoding messages: %w", err)
	}

	var conv domain.Conversation
	result := db.Model(&conv).
		Clauses(clause.Returning{}).
		Where("id = ? AND user_id = ?", id, ownerID).
		Updates(map[string]interface{}{
			"messages":   gorm.Expr("messages || ?::jsonb", string(payload)),
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &conv, nil
}
