package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/dom/chat-relay/internal/domain"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// UserBuilder creates test users with a builder pattern
type UserBuilder struct {
	email    string
	name     string
	password string
}

// NewUserBuilder creates a new UserBuilder with default values
func NewUserBuilder() *UserBuilder {
	suffix := uuid.New().String()[:8]
	return &UserBuilder{
		email:    fmt.Sprintf("user_%s@example.com", suffix),
		name:     fmt.Sprintf("Test User %s", suffix),
		password: "testpassword123",
	}
}

// WithEmail sets the email
func (b *UserBuilder) WithEmail(email string) *UserBuilder {
	b.email = email
	return b
}

// WithName sets the display name
func (b *UserBuilder) WithName(name string) *UserBuilder {
	b.name = name
	return b
}

// WithPassword sets the password
func (b *UserBuilder) WithPassword(password string) *UserBuilder {
	b.password = password
	return b
}

// Build creates the user in the database and returns the user with the raw password
func (b *UserBuilder) Build(t *testing.T, db *gorm.DB) (*domain.User, string) {
	t.Helper()

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(b.password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &domain.User{
		ID:           uuid.New(),
		Email:        b.email,
		Name:         b.name,
		PasswordHash: string(hashedPassword),
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	return user, b.password
}

// AuthResponse matches the API auth response
type AuthResponse struct {
	Message string `json:"message"`
	User    struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Name  string `json:"name"`
	} `json:"user"`
	Token string `json:"token"`
}

// BuildAndAuthenticate registers the user via the API and returns the user and token
func (b *UserBuilder) BuildAndAuthenticate(t *testing.T, ts *TestServer) (*domain.User, string) {
	t.Helper()

	body, _ := json.Marshal(map[string]string{
		"email":    b.email,
		"password": b.password,
		"name":     b.name,
	})

	resp, err := http.Post(ts.APIURL("/auth/register"), "application/json", bytes.NewBuffer(body))
	if err != nil {
		t.Fatalf("failed to register user: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("unexpected status code: %d", resp.StatusCode)
	}

	var authResp AuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&authResp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	userID, _ := uuid.Parse(authResp.User.ID)
	user := &domain.User{
		ID:    userID,
		Email: authResp.User.Email,
		Name:  authResp.User.Name,
	}

	return user, authResp.Token
}

// ConversationBuilder creates stored conversations without going through the provider
type ConversationBuilder struct {
	owner     *domain.User
	title     string
	messages  []domain.Message
	updatedAt time.Time
}

// NewConversationBuilder creates a new ConversationBuilder with default values
func NewConversationBuilder() *ConversationBuilder {
	return &ConversationBuilder{
		title:     "Test conversation",
		updatedAt: time.Now(),
	}
}

// WithOwner sets the owning user
func (b *ConversationBuilder) WithOwner(user *domain.User) *ConversationBuilder {
	b.owner = user
	return b
}

// WithTitle sets the title
func (b *ConversationBuilder) WithTitle(title string) *ConversationBuilder {
	b.title = title
	return b
}

// WithTurn appends a user message and its reply
func (b *ConversationBuilder) WithTurn(user, assistant string) *ConversationBuilder {
	now := time.Now()
	b.messages = append(b.messages,
		domain.NewMessage(domain.RoleUser, user, now),
		domain.NewMessage(domain.RoleAssistant, assistant, now),
	)
	return b
}

// UpdatedAt pins the last activity time, for ordering tests
func (b *ConversationBuilder) UpdatedAt(at time.Time) *ConversationBuilder {
	b.updatedAt = at
	return b
}

// Build creates the conversation in the database
func (b *ConversationBuilder) Build(t *testing.T, db *gorm.DB) *domain.Conversation {
	t.Helper()

	if b.owner == nil {
		user, _ := NewUserBuilder().Build(t, db)
		b.owner = user
	}

	conv := domain.NewConversation(b.owner.ID, b.title, b.updatedAt)
	if len(b.messages) > 0 {
		conv.Messages = datatypes.JSONSlice[domain.Message](b.messages)
	}
	conv.UpdatedAt = b.updatedAt

	if err := db.Create(conv).Error; err != nil {
		t.Fatalf("failed to create conversation: %v", err)
	}

	return conv
}
