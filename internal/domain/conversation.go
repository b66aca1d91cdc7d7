package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	// TitleMaxLength is the number of characters kept from the first message.
	TitleMaxLength = 50
	// DefaultTitle is used when the first message has no visible text.
	DefaultTitle = "New Conversation"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant:
		return true
	}
	return false
}

// UnmarshalJSON rejects roles outside the closed set so stored or inbound
// data can never smuggle in arbitrary role strings.
func (r *Role) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	role := Role(s)
	if !role.Valid() {
		return fmt.Errorf("invalid message role %q", s)
	}
	*r = role
	return nil
}

type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

func NewMessage(role Role, content string, at time.Time) Message {
	return Message{
		Role:      role,
		Content:   content,
		Timestamp: at.UTC(),
	}
}

type Conversation struct {
	ID        uuid.UUID                   `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	UserID    uuid.UUID                   `json:"userId" gorm:"type:uuid;not null;index:idx_conversations_user_updated,priority:1"`
	User      *User                       `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Title     string                      `json:"title" gorm:"not null"`
	Messages  datatypes.JSONSlice[Message] `json:"messages" gorm:"type:jsonb;not null;default:'[]'"`
	Version   int                         `json:"-" gorm:"not null;default:0"`
	CreatedAt time.Time                   `json:"createdAt"`
	UpdatedAt time.Time                   `json:"updatedAt" gorm:"index:idx_conversations_user_updated,priority:2,sort:desc"`
}

// NewConversation builds an unsaved conversation with an empty message
// sequence.
func NewConversation(ownerID uuid.UUID, title string, at time.Time) *Conversation {
	return &Conversation{
		ID:        uuid.New(),
		UserID:    ownerID,
		Title:     title,
		Messages:  datatypes.JSONSlice[Message]{},
		CreatedAt: at,
		UpdatedAt: at,
	}
}

// ConversationSummary is the listing projection of a conversation.
type ConversationSummary struct {
	ID        uuid.UUID `json:"chatId"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DeriveTitle turns the first user message into a conversation title: the
// trimmed text, cut to TitleMaxLength characters with "..." appended when
// longer.
func DeriveTitle(message string) string {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return DefaultTitle
	}

	runes := []rune(trimmed)
	if len(runes) <= TitleMaxLength {
		return trimmed
	}
	return string(runes[:TitleMaxLength]) + "..."
}
