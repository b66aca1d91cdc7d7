package main

import (
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// APIClient handles HTTP communication with the backend
type APIClient struct {
	http *resty.Client
}

// NewAPIClient creates a new API client
func NewAPIClient(baseURL string) *APIClient {
	return &APIClient{
		http: resty.New().
			SetBaseURL(baseURL + "/api").
			SetTimeout(90 * time.Second).
			SetHeader("Content-Type", "application/json"),
	}
}

// Response types matching backend

type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

type AuthResponse struct {
	Message string `json:"message"`
	User    User   `json:"user"`
	Token   string `json:"token"`
}

type ChatMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type ChatResponse struct {
	ChatID   string        `json:"chatId"`
	Title    string        `json:"title"`
	Messages []ChatMessage `json:"messages"`
}

type ChatSummary struct {
	ChatID    string    `json:"chatId"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type errorBody struct {
	Error string `json:"error"`
}

func apiError(op string, resp *resty.Response) error {
	if e, ok := resp.Error().(*errorBody); ok && e.Error != "" {
		return fmt.Errorf("%s failed (status %d): %s", op, resp.StatusCode(), e.Error)
	}
	return fmt.Errorf("%s failed (status %d): %s", op, resp.StatusCode(), resp.String())
}

// RegisterUser creates a new account with a unique email
func (c *APIClient) RegisterUser(baseName, password string) (*User, string, error) {
	suffix := time.Now().UnixNano() % 1000000
	var result AuthResponse
	resp, err := c.http.R().
		SetBody(map[string]string{
			"email":    fmt.Sprintf("%s_%d@example.com", baseName, suffix),
			"password": password,
			"name":     fmt.Sprintf("%s %d", baseName, suffix),
		}).
		SetResult(&result).
		SetError(&errorBody{}).
		Post("/auth/register")
	if err != nil {
		return nil, "", fmt.Errorf("register request failed: %w", err)
	}
	if resp.IsError() {
		return nil, "", apiError("register", resp)
	}
	return &result.User, result.Token, nil
}

// Login exchanges credentials for a token
func (c *APIClient) Login(email, password string) (*User, string, error) {
	var result AuthResponse
	resp, err := c.http.R().
		SetBody(map[string]string{"email": email, "password": password}).
		SetResult(&result).
		SetError(&errorBody{}).
		Post("/auth/login")
	if err != nil {
		return nil, "", fmt.Errorf("login request failed: %w", err)
	}
	if resp.IsError() {
		return nil, "", apiError("login", resp)
	}
	return &result.User, result.Token, nil
}

// Send posts one message; an empty chatID starts a new conversation
func (c *APIClient) Send(token, chatID, message string) (*ChatResponse, error) {
	body := map[string]interface{}{"message": message}
	if chatID != "" {
		body["chatId"] = chatID
	}

	var result ChatResponse
	resp, err := c.http.R().
		SetAuthToken(token).
		SetBody(body).
		SetResult(&result).
		SetError(&errorBody{}).
		Post("/chat")
	if err != nil {
		return nil, fmt.Errorf("chat request failed: %w", err)
	}
	if resp.IsError() {
		return nil, apiError("chat", resp)
	}
	return &result, nil
}

// List returns the caller's most recent conversations
func (c *APIClient) List(token string, limit int) ([]ChatSummary, error) {
	var result struct {
		Chats []ChatSummary `json:"chats"`
	}
	req := c.http.R().
		SetAuthToken(token).
		SetResult(&result).
		SetError(&errorBody{})
	if limit > 0 {
		req.SetQueryParam("limit", fmt.Sprint(limit))
	}

	resp, err := req.Get("/chat")
	if err != nil {
		return nil, fmt.Errorf("list request failed: %w", err)
	}
	if resp.IsError() {
		return nil, apiError("list", resp)
	}
	return result.Chats, nil
}
