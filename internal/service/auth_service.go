package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dom/chat-relay/internal/auth"
	"github.com/dom/chat-relay/internal/domain"
	"github.com/dom/chat-relay/internal/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const MinPasswordLength = 6

type AuthService struct {
	userRepo    repository.UserRepository
	credentials *auth.Credentials
}

func NewAuthService(userRepo repository.UserRepository, credentials *auth.Credentials) *AuthService {
	return &AuthService{
		userRepo:    userRepo,
		credentials: credentials,
	}
}

type RegisterInput struct {
	Email    string
	Password string
	Name     string
}

type LoginInput struct {
	Email    string
	Password string
}

type AuthResult struct {
	User  *domain.User
	Token string
}

// NormalizeEmail is the form emails are stored and looked up in.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	email := NormalizeEmail(input.Email)
	name := strings.TrimSpace(input.Name)

	if email == "" || input.Password == "" || name == "" {
		return nil, domain.NewValidationError("All fields are required")
	}
	if len(input.Password) < MinPasswordLength {
		return nil, domain.NewValidationError(fmt.Sprintf("Password must be at least %d characters", MinPasswordLength))
	}

	existing, err := s.userRepo.GetByEmail(ctx, email)
	if err == nil && existing != nil {
		return nil, domain.ErrEmailExists
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: looking up email: %v", domain.ErrStorage, err)
	}

	hashedPassword, err := s.credentials.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user := &domain.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hashedPassword,
		Name:         name,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		// Lost a race against a concurrent registration for the same email.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, domain.ErrEmailExists
		}
		return nil, fmt.Errorf("%w: creating user: %v", domain.ErrStorage, err)
	}

	return s.issue(user)
}

// Login fails with ErrInvalidCredentials for an unknown email and for a wrong
// password alike.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	email := NormalizeEmail(input.Email)
	if email == "" || input.Password == "" {
		return nil, domain.NewValidationError("Email and password are required")
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.credentials.BurnPasswordCheck(input.Password)
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("%w: looking up email: %v", domain.ErrStorage, err)
	}

	if !s.credentials.VerifyPassword(input.Password, user.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}

	return s.issue(user)
}

func (s *AuthService) issue(user *domain.User) (*AuthResult, error) {
	token, err := s.credentials.GenerateToken(user.ID)
	if err != nil {
		slog.Error("failed to sign token", "component", "auth", "user_id", user.ID, "error", err)
		return nil, err
	}

	return &AuthResult{
		User:  user,
		Token: token,
	}, nil
}

func (s *AuthService) GetUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: loading user: %v", domain.ErrStorage, err)
	}
	return user, nil
}
