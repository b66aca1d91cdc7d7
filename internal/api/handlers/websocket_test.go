package handlers_test

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/dom/chat-relay/internal/testutil"
	gorillaWS "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebSocketHandler_RejectsMissingToken(t *testing.T) {
	ts := testutil.NewTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(ts.Server.URL, "http") + "/api/ws"
	_, resp, err := gorillaWS.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = gorillaWS.DefaultDialer.Dial(ts.WebSocketURL("garbage"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWebSocketHandler_Ping(t *testing.T) {
	ts := testutil.NewTestServer(t)
	_, token := testutil.NewUserBuilder().BuildAndAuthenticate(t, ts)

	ws := testutil.NewWSClient(t, ts.WebSocketURL(token))
	ws.WaitForConnection(2 * time.Second)
}

func TestWebSocketHandler_ConversationEvents(t *testing.T) {
	ts := testutil.NewTestServer(t)
	_, token := testutil.NewUserBuilder().BuildAndAuthenticate(t, ts)
	_, otherToken := testutil.NewUserBuilder().BuildAndAuthenticate(t, ts)

	tab1 := testutil.NewWSClient(t, ts.WebSocketURL(token))
	tab2 := testutil.NewWSClient(t, ts.WebSocketURL(token))
	stranger := testutil.NewWSClient(t, ts.WebSocketURL(otherToken))
	for _, ws := range []*testutil.WSClient{tab1, tab2, stranger} {
		ws.WaitForConnection(2 * time.Second)
	}

	result := sendMessage(t, ts, token, map[string]interface{}{"message": "hello world"})

	for _, ws := range []*testutil.WSClient{tab1, tab2} {
		updated := ws.ExpectConversationUpdated(2 * time.Second)
		assert.Equal(t, result.ChatID, updated.ChatID)
		assert.Equal(t, "hello world", updated.Title)
		assert.Equal(t, 2, updated.MessageCount)
	}

	resp := authedRequest(t, http.MethodDelete, ts.APIURL("/chat/"+result.ChatID), token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	deleted := tab1.ExpectConversationDeleted(2 * time.Second)
	assert.Equal(t, result.ChatID, deleted.ChatID)

	stranger.ExpectNoMessage(200 * time.Millisecond)
}
