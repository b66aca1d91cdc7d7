package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/dom/chat-relay/internal/completion"
)

// ProviderRequest is what the fake provider received on one call
type ProviderRequest struct {
	Model       string               `json:"model"`
	Messages    []completion.Message `json:"messages"`
	Temperature float64              `json:"temperature"`
	MaxTokens   int                  `json:"max_tokens"`
	Stream      bool                 `json:"stream"`
	Headers     http.Header          `json:"-"`
}

// FakeProvider is an OpenAI-compatible chat completions server for tests
type FakeProvider struct {
	server *httptest.Server

	mu       sync.Mutex
	reply    string
	status   int
	requests []ProviderRequest
}

// NewFakeProvider starts a fake provider that answers every call with "fake reply"
func NewFakeProvider(t *testing.T) *FakeProvider {
	t.Helper()

	p := &FakeProvider{
		reply:  "fake reply",
		status: http.StatusOK,
	}
	p.server = httptest.NewServer(http.HandlerFunc(p.handle))
	t.Cleanup(p.server.Close)

	return p
}

// URL is the base URL to configure the completion client with
func (p *FakeProvider) URL() string {
	return p.server.URL
}

// SetReply changes the assistant content returned by later calls
func (p *FakeProvider) SetReply(reply string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reply = reply
	p.status = http.StatusOK
}

// Fail makes later calls answer with the given status
func (p *FakeProvider) Fail(status int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = status
}

// Requests returns a copy of every request received so far
func (p *FakeProvider) Requests() []ProviderRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]ProviderRequest, len(p.requests))
	copy(out, p.requests)
	return out
}

// LastRequest returns the most recent request, or nil
func (p *FakeProvider) LastRequest() *ProviderRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.requests) == 0 {
		return nil
	}
	req := p.requests[len(p.requests)-1]
	return &req
}

func (p *FakeProvider) handle(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/chat/completions" || r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	var req ProviderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"bad request"}`, http.StatusBadRequest)
		return
	}
	req.Headers = r.Header.Clone()

	p.mu.Lock()
	p.requests = append(p.requests, req)
	reply, status := p.reply, p.status
	p.mu.Unlock()

	if status != http.StatusOK {
		http.Error(w, `{"error":{"message":"provider unavailable"}}`, status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"id": "cmpl-test",
		"choices": []map[string]interface{}{
			{
				"index":         0,
				"finish_reason": "stop",
				"message": map[string]string{
					"role":    "assistant",
					"content": reply,
				},
			},
		},
	})
}
