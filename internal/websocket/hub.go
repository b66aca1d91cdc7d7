package websocket

import (
	"log/slog"
	"sync"

	"github.com/dom/chat-relay/internal/domain"
	"github.com/google/uuid"
)

type userEvent struct {
	userID uuid.UUID
	msg    *Message
}

// Hub tracks every open socket per user and delivers conversation events to
// all sockets of the conversation's owner.
type Hub struct {
	users      map[uuid.UUID]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	events     chan *userEvent
	stop       chan struct{}
	done       chan struct{} // closed when Run() exits
	stopped    bool
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		users:      make(map[uuid.UUID]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		events:     make(chan *userEvent, 256),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.stop:
			h.mu.Lock()
			h.stopped = true
			for _, clients := range h.users {
				for client := range clients {
					client.Close()
				}
			}
			h.users = make(map[uuid.UUID]map[*Client]bool)
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.users[client.userID] == nil {
				h.users[client.userID] = make(map[*Client]bool)
			}
			h.users[client.userID][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()

		case ev := <-h.events:
			h.mu.Lock()
			for client := range h.users[ev.userID] {
				if !client.Send(ev.msg) {
					slog.Warn("dropping slow websocket client", "user_id", ev.userID)
					h.remove(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// remove must be called with h.mu held.
func (h *Hub) remove(client *Client) {
	clients, ok := h.users[client.userID]
	if !ok || !clients[client] {
		return
	}
	delete(clients, client)
	if len(clients) == 0 {
		delete(h.users, client.userID)
	}
	client.Close()
}

// Stop gracefully shuts down the hub and closes every client.
// It blocks until the hub has fully shut down.
func (h *Hub) Stop() {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	h.mu.Unlock()

	close(h.stop)
	<-h.done
}

func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		client.Close()
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// ClientCount returns the number of open sockets for a user.
func (h *Hub) ClientCount(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID])
}

// Publish queues msg for every socket of userID. It never blocks the caller
// for long: once the hub has stopped the event is discarded.
func (h *Hub) Publish(userID uuid.UUID, msg *Message) {
	select {
	case h.events <- &userEvent{userID: userID, msg: msg}:
	case <-h.done:
	}
}

func (h *Hub) ConversationUpdated(userID uuid.UUID, conv *domain.Conversation) {
	msg, err := NewMessage(MessageTypeConversationUpdated, ConversationUpdatedPayload{
		ChatID:       conv.ID.String(),
		Title:        conv.Title,
		MessageCount: len(conv.Messages),
		UpdatedAt:    conv.UpdatedAt,
	})
	if err != nil {
		slog.Error("failed to build conversation event", "error", err)
		return
	}
	h.Publish(userID, msg)
}

func (h *Hub) ConversationDeleted(userID uuid.UUID, conversationID uuid.UUID) {
	msg, err := NewMessage(MessageTypeConversationDeleted, ConversationDeletedPayload{
		ChatID: conversationID.String(),
	})
	if err != nil {
		slog.Error("failed to build conversation event", "error", err)
		return
	}
	h.Publish(userID, msg)
}
