package handlers

import (
	"net/http"
	"time"

	"github.com/dom/chat-relay/internal/api/middleware"
	"github.com/dom/chat-relay/internal/domain"
	"github.com/dom/chat-relay/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type ChatHandler struct {
	chatService *service.ChatService
}

func NewChatHandler(chatService *service.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

type SendMessageRequest struct {
	Message string  `json:"message"`
	ChatID  *string `json:"chatId"`
}

type SendMessageResponse struct {
	ChatID   string           `json:"chatId"`
	Title    string           `json:"title"`
	Messages []domain.Message `json:"messages"`
}

type ListQuery struct {
	Limit *int `schema:"limit"`
}

type ListResponse struct {
	Chats []*domain.ConversationSummary `json:"chats"`
}

type ConversationResponse struct {
	ChatID    string           `json:"chatId"`
	Title     string           `json:"title"`
	Messages  []domain.Message `json:"messages"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// parseChatID treats malformed ids like unknown ones: the caller just sees
// a missing chat.
func parseChatID(raw string) uuid.UUID {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil
	}
	return id
}

func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}

	req, ok := decodeJSON[SendMessageRequest](w, r)
	if !ok {
		return
	}

	input := service.SendMessageInput{Message: req.Message}
	if req.ChatID != nil && *req.ChatID != "" {
		id := parseChatID(*req.ChatID)
		input.ConversationID = &id
	}

	result, err := h.chatService.SendMessage(r.Context(), userID, input)
	if err != nil {
		writeServiceError(w, r, err, msgChatNotFound)
		return
	}

	writeJSON(w, http.StatusOK, SendMessageResponse{
		ChatID:   result.ConversationID.String(),
		Title:    result.Title,
		Messages: result.Messages,
	})
}

func (h *ChatHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}

	query, ok := decodeQuery[ListQuery](w, r)
	if !ok {
		return
	}

	// An absent limit uses the default; an explicit one must be in range.
	limit := 0
	if query.Limit != nil {
		if err := service.ValidateListLimit(*query.Limit); err != nil {
			writeServiceError(w, r, err, msgChatNotFound)
			return
		}
		limit = *query.Limit
	}

	chats, err := h.chatService.List(r.Context(), userID, limit)
	if err != nil {
		writeServiceError(w, r, err, msgChatNotFound)
		return
	}

	writeJSON(w, http.StatusOK, ListResponse{Chats: chats})
}

func (h *ChatHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}

	conv, err := h.chatService.Get(r.Context(), parseChatID(chi.URLParam(r, "chatId")), userID)
	if err != nil {
		writeServiceError(w, r, err, msgChatNotFound)
		return
	}

	writeJSON(w, http.StatusOK, ConversationResponse{
		ChatID:    conv.ID.String(),
		Title:     conv.Title,
		Messages:  conv.Messages,
		CreatedAt: conv.CreatedAt,
		UpdatedAt: conv.UpdatedAt,
	})
}

func (h *ChatHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}

	if err := h.chatService.Delete(r.Context(), parseChatID(chi.URLParam(r, "chatId")), userID); err != nil {
		writeServiceError(w, r, err, msgChatNotFound)
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "Chat deleted successfully"})
}
