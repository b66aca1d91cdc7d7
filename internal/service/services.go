package service

import (
	"github.com/dom/chat-relay/internal/auth"
	"github.com/dom/chat-relay/internal/config"
	"github.com/dom/chat-relay/internal/repository"
)

type Services struct {
	Auth     *AuthService
	Chat     *ChatService
	Sessions *auth.SessionGate
}

func NewServices(repos *repository.Repositories, credentials *auth.Credentials, provider CompletionProvider, events EventPublisher, cfg *config.Config) *Services {
	return &Services{
		Auth: NewAuthService(repos.User, credentials),
		Chat: NewChatService(repos.Conversation, provider, events, ChatOptions{
			ListLimit:     cfg.ChatListLimit,
			HistoryWindow: cfg.ChatHistoryWindow,
		}),
		Sessions: auth.NewSessionGate(credentials, cfg.CookieName),
	}
}
