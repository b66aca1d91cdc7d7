package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dom/chat-relay/internal/completion"
	"github.com/dom/chat-relay/internal/domain"
	"github.com/dom/chat-relay/internal/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const MaxListLimit = 100

// CompletionProvider produces the assistant reply for a message history.
type CompletionProvider interface {
	SendCompletion(ctx context.Context, history []completion.Message) (string, error)
}

// EventPublisher fans conversation changes out to the owner's live sessions.
type EventPublisher interface {
	ConversationUpdated(userID uuid.UUID, conv *domain.Conversation)
	ConversationDeleted(userID uuid.UUID, conversationID uuid.UUID)
}

type ChatService struct {
	convRepo      repository.ConversationRepository
	provider      CompletionProvider
	events        EventPublisher
	listLimit     int
	historyWindow int
	now           func() time.Time
	logger        *slog.Logger
}

type ChatOptions struct {
	// ListLimit is the default number of conversations returned by List.
	ListLimit int
	// HistoryWindow caps how many trailing messages are sent to the
	// provider. Zero sends the whole conversation.
	HistoryWindow int
}

func NewChatService(convRepo repository.ConversationRepository, provider CompletionProvider, events EventPublisher, opts ChatOptions) *ChatService {
	if opts.ListLimit <= 0 {
		opts.ListLimit = 20
	}
	return &ChatService{
		convRepo:      convRepo,
		provider:      provider,
		events:        events,
		listLimit:     opts.ListLimit,
		historyWindow: opts.HistoryWindow,
		now:           time.Now,
		logger:        slog.Default().With("component", "chat"),
	}
}

type SendMessageInput struct {
	Message        string
	ConversationID *uuid.UUID
}

type TurnResult struct {
	ConversationID uuid.UUID
	Title          string
	Messages       []domain.Message
}

// SendMessage runs one turn: the user's message and the assistant's reply are
// stored together in a single write, or not at all.
func (s *ChatService) SendMessage(ctx context.Context, userID uuid.UUID, input SendMessageInput) (*TurnResult, error) {
	// The turn finishes even if the caller goes away.
	ctx = context.WithoutCancel(ctx)

	content := strings.TrimSpace(input.Message)
	if content == "" {
		return nil, domain.NewValidationError("Message is required")
	}

	var (
		conv  *domain.Conversation
		isNew bool
		err   error
	)
	if input.ConversationID != nil {
		conv, err = s.load(ctx, *input.ConversationID, userID)
		if err != nil {
			return nil, err
		}
	} else {
		conv = domain.NewConversation(userID, domain.DeriveTitle(content), s.now())
		isNew = true
	}

	userMsg := domain.NewMessage(domain.RoleUser, content, s.now())

	working := make([]domain.Message, 0, len(conv.Messages)+2)
	working = append(working, conv.Messages...)
	working = append(working, userMsg)

	reply, err := s.provider.SendCompletion(ctx, s.projectHistory(working))
	if err != nil {
		s.logger.Error("completion failed", "user_id", userID, "conversation_id", conv.ID, "error", err)
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstream, err)
	}

	turn := []domain.Message{
		userMsg,
		domain.NewMessage(domain.RoleAssistant, reply, s.now()),
	}

	var saved *domain.Conversation
	if isNew {
		conv.Messages = turn
		conv.UpdatedAt = s.now()
		if err := s.convRepo.Create(ctx, conv); err != nil {
			s.logger.Error("failed to create conversation", "user_id", userID, "error", err)
			return nil, fmt.Errorf("%w: creating conversation: %v", domain.ErrStorage, err)
		}
		saved = conv
	} else {
		saved, err = s.convRepo.AppendMessages(ctx, conv.ID, userID, turn)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				// Deleted while the provider was answering.
				return nil, domain.ErrNotFound
			}
			s.logger.Error("failed to append turn", "user_id", userID, "conversation_id", conv.ID, "error", err)
			return nil, fmt.Errorf("%w: appending turn: %v", domain.ErrStorage, err)
		}
	}

	if s.events != nil {
		s.events.ConversationUpdated(userID, saved)
	}

	return &TurnResult{
		ConversationID: saved.ID,
		Title:          saved.Title,
		Messages:       saved.Messages,
	}, nil
}

// projectHistory strips timestamps and applies the history window.
func (s *ChatService) projectHistory(messages []domain.Message) []completion.Message {
	if s.historyWindow > 0 && len(messages) > s.historyWindow {
		messages = messages[len(messages)-s.historyWindow:]
	}

	history := make([]completion.Message, 0, len(messages))
	for _, m := range messages {
		history = append(history, completion.Message{
			Role:    completion.Role(m.Role),
			Content: m.Content,
		})
	}
	return history
}

func (s *ChatService) load(ctx context.Context, id, userID uuid.UUID) (*domain.Conversation, error) {
	conv, err := s.convRepo.GetByIDAndOwner(ctx, id, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: loading conversation: %v", domain.ErrStorage, err)
	}
	return conv, nil
}

func (s *ChatService) Get(ctx context.Context, id, userID uuid.UUID) (*domain.Conversation, error) {
	return s.load(ctx, id, userID)
}

// List returns the caller's conversations, most recently updated first. A
// limit of zero uses the configured default.
func (s *ChatService) List(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.ConversationSummary, error) {
	if limit == 0 {
		limit = s.listLimit
	}
	if err := ValidateListLimit(limit); err != nil {
		return nil, err
	}

	summaries, err := s.convRepo.ListByOwner(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: listing conversations: %v", domain.ErrStorage, err)
	}
	if summaries == nil {
		summaries = []*domain.ConversationSummary{}
	}
	return summaries, nil
}

func ValidateListLimit(limit int) error {
	if limit < 1 || limit > MaxListLimit {
		return domain.NewValidationError(fmt.Sprintf("limit must be between 1 and %d", MaxListLimit))
	}
	return nil
}

func (s *ChatService) Delete(ctx context.Context, id, userID uuid.UUID) error {
	if err := s.convRepo.DeleteByIDAndOwner(ctx, id, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("%w: deleting conversation: %v", domain.ErrStorage, err)
	}

	if s.events != nil {
		s.events.ConversationDeleted(userID, id)
	}
	return nil
}
