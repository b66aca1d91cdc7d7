package testutil

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/dom/chat-relay/internal/websocket"
	gorillaWS "github.com/gorilla/websocket"
)

// WSClient is a test WebSocket client
type WSClient struct {
	t        *testing.T
	conn     *gorillaWS.Conn
	messages chan *websocket.Message
	errors   chan error
	done     chan struct{}
	mu       sync.Mutex
}

// NewWSClient creates a new WebSocket test client
func NewWSClient(t *testing.T, url string) *WSClient {
	t.Helper()

	dialer := *gorillaWS.DefaultDialer
	dialer.HandshakeTimeout = 5 * time.Second

	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to connect to websocket: %v", err)
	}

	client := &WSClient{
		t:        t,
		conn:     conn,
		messages: make(chan *websocket.Message, 100),
		errors:   make(chan error, 10),
		done:     make(chan struct{}),
	}

	go client.readPump()

	t.Cleanup(func() {
		client.Close()
	})

	return client
}

func (c *WSClient) readPump() {
	defer close(c.messages)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			case c.errors <- err:
			default:
			}
			return
		}

		var msg websocket.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			select {
			case c.errors <- err:
			default:
			}
			continue
		}

		select {
		case c.messages <- &msg:
		case <-c.done:
			return
		}
	}
}

// Close closes the WebSocket connection gracefully
func (c *WSClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.done:
		return
	default:
		close(c.done)
		c.conn.WriteMessage(gorillaWS.CloseMessage, gorillaWS.FormatCloseMessage(gorillaWS.CloseNormalClosure, ""))
		c.conn.Close()
	}
}

// Ping sends an application level PING
func (c *WSClient) Ping() {
	c.t.Helper()
	c.sendRaw(websocket.Message{Type: websocket.MessageTypePing, Timestamp: time.Now().UnixMilli()})
}

func (c *WSClient) sendRaw(v interface{}) {
	c.t.Helper()

	data, err := json.Marshal(v)
	if err != nil {
		c.t.Fatalf("failed to marshal message: %v", err)
	}

	c.mu.Lock()
	err = c.conn.WriteMessage(gorillaWS.TextMessage, data)
	c.mu.Unlock()

	if err != nil {
		c.t.Fatalf("failed to send message: %v", err)
	}
}

// ExpectMessage waits for a message of the specified type
func (c *WSClient) ExpectMessage(msgType websocket.MessageType, timeout time.Duration) *websocket.Message {
	c.t.Helper()

	deadline := time.After(timeout)
	for {
		select {
		case msg := <-c.messages:
			if msg == nil {
				c.t.Fatalf("connection closed while waiting for %s", msgType)
			}
			if msg.Type == msgType {
				return msg
			}
		case err := <-c.errors:
			c.t.Fatalf("error while waiting for %s: %v", msgType, err)
		case <-deadline:
			c.t.Fatalf("timeout waiting for message type %s", msgType)
		}
	}
}

// ExpectConversationUpdated waits for and decodes a CONVERSATION_UPDATED message
func (c *WSClient) ExpectConversationUpdated(timeout time.Duration) *websocket.ConversationUpdatedPayload {
	c.t.Helper()

	msg := c.ExpectMessage(websocket.MessageTypeConversationUpdated, timeout)

	var payload websocket.ConversationUpdatedPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		c.t.Fatalf("failed to decode conversation updated payload: %v", err)
	}
	return &payload
}

// ExpectConversationDeleted waits for and decodes a CONVERSATION_DELETED message
func (c *WSClient) ExpectConversationDeleted(timeout time.Duration) *websocket.ConversationDeletedPayload {
	c.t.Helper()

	msg := c.ExpectMessage(websocket.MessageTypeConversationDeleted, timeout)

	var payload websocket.ConversationDeletedPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		c.t.Fatalf("failed to decode conversation deleted payload: %v", err)
	}
	return &payload
}

// ExpectNoMessage verifies no messages are received within timeout
func (c *WSClient) ExpectNoMessage(timeout time.Duration) {
	c.t.Helper()

	select {
	case msg := <-c.messages:
		if msg != nil {
			c.t.Fatalf("unexpected message received: %s", msg.Type)
		}
	case <-time.After(timeout):
	}
}

// WaitForConnection round-trips a PING. The server only reads once the
// socket is registered with the hub, so events published after this returns
// are delivered.
func (c *WSClient) WaitForConnection(timeout time.Duration) {
	c.t.Helper()
	c.Ping()
	c.ExpectMessage(websocket.MessageTypePong, timeout)
}
