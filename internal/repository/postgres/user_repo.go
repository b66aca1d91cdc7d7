package postgres

import (
	"context"

	"github.com/dom/chat-relay/internal/domain"
	"github.com/google/uuid"
)

type userRepository struct {
	handle *Handle
}

func NewUserRepository(handle *Handle) *userRepository {
	return &userRepository{handle: handle}
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	db, err := r.handle.DB(ctx)
	if err != nil {
		return err
	}
	return db.Create(user).Error
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	db, err := r.handle.DB(ctx)
	if err != nil {
		return nil, err
	}

	var user domain.User
	if err := db.First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	db, err := r.handle.DB(ctx)
	if err != nil {
		return nil, err
	}

	var user domain.User
	if err := db.First(&user, "email = ?", email).Error; err != nil {
		return nil, err
	}
	return &user, nil
}
