// Package completion talks to an OpenAI-compatible chat completions endpoint.
package completion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	DefaultModel       = "deepseek/deepseek-r1:free"
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 1000
	DefaultTimeout     = 60 * time.Second
)

// ErrUpstream wraps every failure of a completion call.
var ErrUpstream = errors.New("completion provider error")

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	Referer     string
	AppTitle    string
}

type chatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
	Stream      bool      `json:"stream"`
}

type chatChoice struct {
	Index   int `json:"index"`
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	FinishReason string `json:"finish_reason"`
}

type chatCompletionResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
}

type Client struct {
	http        *resty.Client
	model       string
	temperature float64
	maxTokens   int
}

func NewClient(cfg Config) *Client {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetAuthToken(cfg.APIKey).
		SetHeader("Content-Type", "application/json")
	if cfg.Referer != "" {
		httpClient.SetHeader("HTTP-Referer", cfg.Referer)
	}
	if cfg.AppTitle != "" {
		httpClient.SetHeader("X-Title", cfg.AppTitle)
	}

	return &Client{
		http:        httpClient,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}
}

// SendCompletion sends the whole history and returns the first choice's
// reply text. It does not retry.
func (c *Client) SendCompletion(ctx context.Context, history []Message) (string, error) {
	reqBody := chatCompletionRequest{
		Model:       c.model,
		Messages:    history,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		Stream:      false,
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(reqBody).
		Post("/chat/completions")
	if err != nil {
		return "", fmt.Errorf("%w: sending request: %v", ErrUpstream, err)
	}

	if !resp.IsSuccess() {
		return "", fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode(), truncate(resp.String(), 512))
	}

	var body chatCompletionResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return "", fmt.Errorf("%w: decoding response: %v", ErrUpstream, err)
	}

	if len(body.Choices) == 0 {
		return "", fmt.Errorf("%w: response has no choices", ErrUpstream)
	}

	reply := body.Choices[0].Message.Content
	if strings.TrimSpace(reply) == "" {
		return "", fmt.Errorf("%w: empty reply content", ErrUpstream)
	}

	return reply, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
