package handlers_test

import (
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/dom/chat-relay/internal/completion"
	"github.com/dom/chat-relay/internal/domain"
	"github.com/dom/chat-relay/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sendResponse struct {
	ChatID   string           `json:"chatId"`
	Title    string           `json:"title"`
	Messages []domain.Message `json:"messages"`
}

type listResponse struct {
	Chats []struct {
		ChatID    string    `json:"chatId"`
		Title     string    `json:"title"`
		CreatedAt time.Time `json:"createdAt"`
		UpdatedAt time.Time `json:"updatedAt"`
	} `json:"chats"`
}

func sendMessage(t *testing.T, ts *testutil.TestServer, token string, body map[string]interface{}) sendResponse {
	t.Helper()

	resp := authedRequest(t, http.MethodPost, ts.APIURL("/chat"), token, body)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result sendResponse
	testutil.AssertJSONResponse(t, resp, &result)
	return result
}

func TestChatHandler_RequiresSession(t *testing.T) {
	ts := testutil.NewTestServer(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/chat"},
		{http.MethodPost, "/chat"},
		{http.MethodGet, "/chat/" + uuid.NewString()},
		{http.MethodDelete, "/chat/" + uuid.NewString()},
	} {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			resp := authedRequest(t, tc.method, ts.APIURL(tc.path), "", map[string]string{"message": "hi"})
			testutil.AssertErrorResponse(t, resp, http.StatusUnauthorized, "Unauthorized")
		})
	}

	t.Run("invalid token", func(t *testing.T) {
		resp := authedRequest(t, http.MethodGet, ts.APIURL("/chat"), "not-a-token", nil)
		testutil.AssertErrorResponse(t, resp, http.StatusUnauthorized, "Unauthorized")
	})

	assert.Empty(t, ts.Provider.Requests(), "provider must not be called without a session")
}

func TestChatHandler_Send_NewConversation(t *testing.T) {
	ts := testutil.NewTestServer(t)
	_, token := testutil.NewUserBuilder().BuildAndAuthenticate(t, ts)
	ts.Provider.SetReply("Hi! How can I help?")

	result := sendMessage(t, ts, token, map[string]interface{}{"message": "hello world"})

	assert.Equal(t, "hello world", result.Title)
	_, err := uuid.Parse(result.ChatID)
	require.NoError(t, err)
	require.Len(t, result.Messages, 2)
	assert.Equal(t, domain.RoleUser, result.Messages[0].Role)
	assert.Equal(t, "hello world", result.Messages[0].Content)
	assert.Equal(t, domain.RoleAssistant, result.Messages[1].Role)
	assert.Equal(t, "Hi! How can I help?", result.Messages[1].Content)
	assert.False(t, result.Messages[0].Timestamp.IsZero())

	req := ts.Provider.LastRequest()
	require.NotNil(t, req)
	assert.Equal(t, "test/model", req.Model)
	assert.False(t, req.Stream)
	assert.Equal(t, []completion.Message{{Role: completion.RoleUser, Content: "hello world"}}, req.Messages)
	assert.Equal(t, "Bearer sk-test", req.Headers.Get("Authorization"))
	assert.Equal(t, "ChatBot App", req.Headers.Get("X-Title"))
}

func TestChatHandler_Send_NullOrEmptyChatIDStartsNewConversation(t *testing.T) {
	ts := testutil.NewTestServer(t)
	_, token := testutil.NewUserBuilder().BuildAndAuthenticate(t, ts)

	a := sendMessage(t, ts, token, map[string]interface{}{"message": "first", "chatId": nil})
	b := sendMessage(t, ts, token, map[string]interface{}{"message": "second", "chatId": ""})

	assert.NotEqual(t, a.ChatID, b.ChatID)
	assert.Len(t, b.Messages, 2)
}

func TestChatHandler_Send_Title(t *testing.T) {
	ts := testutil.NewTestServer(t)
	_, token := testutil.NewUserBuilder().BuildAndAuthenticate(t, ts)

	long := strings.Repeat("x", 60)
	result := sendMessage(t, ts, token, map[string]interface{}{"message": long})
	assert.Equal(t, strings.Repeat("x", 50)+"...", result.Title)
}

func TestChatHandler_Send_ContinuesConversation(t *testing.T) {
	ts := testutil.NewTestServer(t)
	_, token := testutil.NewUserBuilder().BuildAndAuthenticate(t, ts)

	ts.Provider.SetReply("a1")
	first := sendMessage(t, ts, token, map[string]interface{}{"message": "q1"})

	ts.Provider.SetReply("a2")
	second := sendMessage(t, ts, token, map[string]interface{}{"message": "q2", "chatId": first.ChatID})

	assert.Equal(t, first.ChatID, second.ChatID)
	assert.Equal(t, "q1", second.Title)
	require.Len(t, second.Messages, 4)
	assert.Equal(t, "a2", second.Messages[3].Content)

	assert.Equal(t, []completion.Message{
		{Role: completion.RoleUser, Content: "q1"},
		{Role: completion.RoleAssistant, Content: "a1"},
		{Role: completion.RoleUser, Content: "q2"},
	}, ts.Provider.LastRequest().Messages)
}

func TestChatHandler_Send_Errors(t *testing.T) {
	ts := testutil.NewTestServer(t)
	owner, ownerToken := testutil.NewUserBuilder().BuildAndAuthenticate(t, ts)
	_, intruderToken := testutil.NewUserBuilder().BuildAndAuthenticate(t, ts)
	conv := testutil.NewConversationBuilder().WithOwner(owner).WithTurn("q", "a").Build(t, ts.DB.DB)

	tests := []struct {
		name           string
		token          string
		body           map[string]interface{}
		expectedStatus int
		expectedError  string
	}{
		{
			name:           "missing message",
			token:          ownerToken,
			body:           map[string]interface{}{},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "Message is required",
		},
		{
			name:           "whitespace message",
			token:          ownerToken,
			body:           map[string]interface{}{"message": "   "},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "Message is required",
		},
		{
			name:           "malformed chat id",
			token:          ownerToken,
			body:           map[string]interface{}{"message": "hi", "chatId": "not-a-uuid"},
			expectedStatus: http.StatusNotFound,
			expectedError:  "Chat not found",
		},
		{
			name:           "unknown chat id",
			token:          ownerToken,
			body:           map[string]interface{}{"message": "hi", "chatId": uuid.NewString()},
			expectedStatus: http.StatusNotFound,
			expectedError:  "Chat not found",
		},
		{
			name:           "another user's chat",
			token:          intruderToken,
			body:           map[string]interface{}{"message": "hi", "chatId": conv.ID.String()},
			expectedStatus: http.StatusNotFound,
			expectedError:  "Chat not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := authedRequest(t, http.MethodPost, ts.APIURL("/chat"), tt.token, tt.body)
			testutil.AssertErrorResponse(t, resp, tt.expectedStatus, tt.expectedError)
		})
	}

	assert.Empty(t, ts.Provider.Requests())
}

func TestChatHandler_Send_ProviderFailure(t *testing.T) {
	ts := testutil.NewTestServer(t)
	_, token := testutil.NewUserBuilder().BuildAndAuthenticate(t, ts)

	ts.Provider.SetReply("a1")
	first := sendMessage(t, ts, token, map[string]interface{}{"message": "q1"})

	ts.Provider.Fail(http.StatusServiceUnavailable)

	t.Run("existing conversation unchanged", func(t *testing.T) {
		resp := authedRequest(t, http.MethodPost, ts.APIURL("/chat"), token, map[string]interface{}{
			"message": "q2",
			"chatId":  first.ChatID,
		})
		testutil.AssertErrorResponse(t, resp, http.StatusInternalServerError, "Failed to process message")

		get := authedRequest(t, http.MethodGet, ts.APIURL("/chat/"+first.ChatID), token, nil)
		testutil.AssertStatusCode(t, get, http.StatusOK)
		var conv sendResponse
		testutil.AssertJSONResponse(t, get, &conv)
		assert.Len(t, conv.Messages, 2)
	})

	t.Run("new conversation not created", func(t *testing.T) {
		resp := authedRequest(t, http.MethodPost, ts.APIURL("/chat"), token, map[string]interface{}{"message": "fresh"})
		testutil.AssertErrorResponse(t, resp, http.StatusInternalServerError, "Failed to process message")

		list := authedRequest(t, http.MethodGet, ts.APIURL("/chat"), token, nil)
		var result listResponse
		testutil.AssertJSONResponse(t, list, &result)
		assert.Len(t, result.Chats, 1)
	})
}

func TestChatHandler_List(t *testing.T) {
	ts := testutil.NewTestServer(t)
	user, token := testutil.NewUserBuilder().BuildAndAuthenticate(t, ts)
	other, _ := testutil.NewUserBuilder().BuildAndAuthenticate(t, ts)

	base := time.Now().Add(-time.Hour)
	var convs []*domain.Conversation
	for i := 0; i < 3; i++ {
		convs = append(convs, testutil.NewConversationBuilder().
			WithOwner(user).
			WithTitle(fmt.Sprintf("chat %d", i)).
			WithTurn("q", "a").
			UpdatedAt(base.Add(time.Duration(i)*time.Minute)).
			Build(t, ts.DB.DB))
	}
	testutil.NewConversationBuilder().WithOwner(other).Build(t, ts.DB.DB)

	list := func(t *testing.T, query string) listResponse {
		t.Helper()
		resp := authedRequest(t, http.MethodGet, ts.APIURL("/chat"+query), token, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var result listResponse
		testutil.AssertJSONResponse(t, resp, &result)
		return result
	}

	t.Run("most recently updated first", func(t *testing.T) {
		result := list(t, "")
		require.Len(t, result.Chats, 3)
		assert.Equal(t, convs[2].ID.String(), result.Chats[0].ChatID)
		assert.Equal(t, convs[1].ID.String(), result.Chats[1].ChatID)
		assert.Equal(t, convs[0].ID.String(), result.Chats[2].ChatID)
		assert.Equal(t, "chat 2", result.Chats[0].Title)
	})

	t.Run("limit", func(t *testing.T) {
		result := list(t, "?limit=1")
		require.Len(t, result.Chats, 1)
		assert.Equal(t, convs[2].ID.String(), result.Chats[0].ChatID)
	})

	t.Run("sending moves a chat to the front", func(t *testing.T) {
		sendMessage(t, ts, token, map[string]interface{}{"message": "bump", "chatId": convs[0].ID.String()})

		result := list(t, "")
		require.Len(t, result.Chats, 3)
		assert.Equal(t, convs[0].ID.String(), result.Chats[0].ChatID)
	})

	t.Run("bad limit", func(t *testing.T) {
		for _, query := range []string{"?limit=abc", "?limit=0", "?limit=101"} {
			resp := authedRequest(t, http.MethodGet, ts.APIURL("/chat"+query), token, nil)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode, query)
		}
	})
}

func TestChatHandler_List_Empty(t *testing.T) {
	ts := testutil.NewTestServer(t)
	_, token := testutil.NewUserBuilder().BuildAndAuthenticate(t, ts)

	resp := authedRequest(t, http.MethodGet, ts.APIURL("/chat"), token, nil)
	testutil.AssertStatusCode(t, resp, http.StatusOK)
	assert.JSONEq(t, `{"chats":[]}`, string(testutil.ReadBody(t, resp)))
}

func TestChatHandler_GetAndDelete(t *testing.T) {
	ts := testutil.NewTestServer(t)
	owner, ownerToken := testutil.NewUserBuilder().BuildAndAuthenticate(t, ts)
	_, intruderToken := testutil.NewUserBuilder().BuildAndAuthenticate(t, ts)
	conv := testutil.NewConversationBuilder().WithOwner(owner).WithTitle("mine").WithTurn("q", "a").Build(t, ts.DB.DB)
	url := ts.APIURL("/chat/" + conv.ID.String())

	t.Run("owner can read", func(t *testing.T) {
		resp := authedRequest(t, http.MethodGet, url, ownerToken, nil)
		testutil.AssertStatusCode(t, resp, http.StatusOK)

		var result struct {
			ChatID    string           `json:"chatId"`
			Title     string           `json:"title"`
			Messages  []domain.Message `json:"messages"`
			CreatedAt time.Time        `json:"createdAt"`
			UpdatedAt time.Time        `json:"updatedAt"`
		}
		testutil.AssertJSONResponse(t, resp, &result)
		assert.Equal(t, conv.ID.String(), result.ChatID)
		assert.Equal(t, "mine", result.Title)
		assert.Len(t, result.Messages, 2)
		assert.False(t, result.CreatedAt.IsZero())
	})

	t.Run("other user gets not found", func(t *testing.T) {
		get := authedRequest(t, http.MethodGet, url, intruderToken, nil)
		testutil.AssertErrorResponse(t, get, http.StatusNotFound, "Chat not found")

		del := authedRequest(t, http.MethodDelete, url, intruderToken, nil)
		testutil.AssertErrorResponse(t, del, http.StatusNotFound, "Chat not found")
	})

	t.Run("malformed id", func(t *testing.T) {
		resp := authedRequest(t, http.MethodGet, ts.APIURL("/chat/not-a-uuid"), ownerToken, nil)
		testutil.AssertErrorResponse(t, resp, http.StatusNotFound, "Chat not found")
	})

	t.Run("delete then get", func(t *testing.T) {
		del := authedRequest(t, http.MethodDelete, url, ownerToken, nil)
		testutil.AssertStatusCode(t, del, http.StatusOK)
		var msg struct {
			Message string `json:"message"`
		}
		testutil.AssertJSONResponse(t, del, &msg)
		assert.NotEmpty(t, msg.Message)

		get := authedRequest(t, http.MethodGet, url, ownerToken, nil)
		testutil.AssertErrorResponse(t, get, http.StatusNotFound, "Chat not found")

		again := authedRequest(t, http.MethodDelete, url, ownerToken, nil)
		testutil.AssertErrorResponse(t, again, http.StatusNotFound, "Chat not found")
	})
}
