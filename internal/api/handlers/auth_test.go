package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/dom/chat-relay/internal/auth"
	"github.com/dom/chat-relay/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()

	data, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(url, "application/json", bytes.NewBuffer(data))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func authedRequest(t *testing.T, method, url, token string, body interface{}) *http.Response {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestAuthHandler_Register(t *testing.T) {
	ts := testutil.NewTestServer(t)

	tests := []struct {
		name           string
		request        map[string]string
		expectedStatus int
		expectedError  string
		checkResponse  func(*testing.T, *http.Response)
	}{
		{
			name: "successful registration",
			request: map[string]string{
				"email":    "New@Example.com",
				"password": "password123",
				"name":     "New User",
			},
			expectedStatus: http.StatusCreated,
			checkResponse: func(t *testing.T, resp *http.Response) {
				cookie := testutil.FindCookie(resp, auth.DefaultCookieName)
				require.NotNil(t, cookie)
				assert.True(t, cookie.HttpOnly)
				assert.Equal(t, "/", cookie.Path)
				assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)

				var result testutil.AuthResponse
				testutil.AssertJSONResponse(t, resp, &result)
				assert.Equal(t, "new@example.com", result.User.Email)
				assert.Equal(t, "New User", result.User.Name)
				assert.NotEmpty(t, result.User.ID)
				assert.NotEmpty(t, result.Token)
				assert.NotEmpty(t, result.Message)
				assert.Equal(t, cookie.Value, result.Token)
			},
		},
		{
			name: "duplicate email",
			request: map[string]string{
				"email":    "new@example.com",
				"password": "password123",
				"name":     "Second",
			},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "User already exists",
		},
		{
			name: "missing name",
			request: map[string]string{
				"email":    "other@example.com",
				"password": "password123",
			},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "All fields are required",
		},
		{
			name: "short password",
			request: map[string]string{
				"email":    "other@example.com",
				"password": "12345",
				"name":     "Other",
			},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "Password must be at least 6 characters",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, ts.APIURL("/auth/register"), tt.request)

			if tt.expectedError != "" {
				testutil.AssertErrorResponse(t, resp, tt.expectedStatus, tt.expectedError)
				return
			}
			testutil.AssertStatusCode(t, resp, tt.expectedStatus)
			if tt.checkResponse != nil {
				tt.checkResponse(t, resp)
			}
		})
	}
}

func TestAuthHandler_Register_MalformedBody(t *testing.T) {
	ts := testutil.NewTestServer(t)

	resp, err := http.Post(ts.APIURL("/auth/register"), "application/json", bytes.NewBufferString("{not json"))
	require.NoError(t, err)
	defer resp.Body.Close()

	testutil.AssertErrorResponse(t, resp, http.StatusBadRequest, "Invalid request body")
}

func TestAuthHandler_Login(t *testing.T) {
	ts := testutil.NewTestServer(t)
	user, _ := testutil.NewUserBuilder().
		WithEmail("login@example.com").
		WithPassword("correct-password").
		BuildAndAuthenticate(t, ts)

	t.Run("successful login", func(t *testing.T) {
		resp := postJSON(t, ts.APIURL("/auth/login"), map[string]string{
			"email":    "login@example.com",
			"password": "correct-password",
		})
		testutil.AssertStatusCode(t, resp, http.StatusOK)
		require.NotNil(t, testutil.FindCookie(resp, auth.DefaultCookieName))

		var result testutil.AuthResponse
		testutil.AssertJSONResponse(t, resp, &result)
		assert.Equal(t, user.ID.String(), result.User.ID)

		userID, err := ts.Credentials.VerifyToken(result.Token)
		require.NoError(t, err)
		assert.Equal(t, user.ID, userID)
	})

	t.Run("missing fields", func(t *testing.T) {
		resp := postJSON(t, ts.APIURL("/auth/login"), map[string]string{"email": "login@example.com"})
		testutil.AssertErrorResponse(t, resp, http.StatusBadRequest, "Email and password are required")
	})

	t.Run("wrong password and unknown email are indistinguishable", func(t *testing.T) {
		wrongPassword := postJSON(t, ts.APIURL("/auth/login"), map[string]string{
			"email":    "login@example.com",
			"password": "wrong-password",
		})
		unknownEmail := postJSON(t, ts.APIURL("/auth/login"), map[string]string{
			"email":    "nobody@example.com",
			"password": "wrong-password",
		})

		assert.Equal(t, http.StatusUnauthorized, wrongPassword.StatusCode)
		assert.Equal(t, http.StatusUnauthorized, unknownEmail.StatusCode)
		assert.Equal(t, testutil.ReadBody(t, wrongPassword), testutil.ReadBody(t, unknownEmail))
		assert.Nil(t, testutil.FindCookie(wrongPassword, auth.DefaultCookieName))
	})
}

func TestAuthHandler_Me(t *testing.T) {
	ts := testutil.NewTestServer(t)
	user, token := testutil.NewUserBuilder().WithName("Me Myself").BuildAndAuthenticate(t, ts)

	t.Run("bearer token", func(t *testing.T) {
		resp := authedRequest(t, http.MethodGet, ts.APIURL("/auth/me"), token, nil)
		testutil.AssertStatusCode(t, resp, http.StatusOK)

		var result struct {
			User struct {
				ID    string `json:"id"`
				Email string `json:"email"`
				Name  string `json:"name"`
			} `json:"user"`
		}
		testutil.AssertJSONResponse(t, resp, &result)
		assert.Equal(t, user.ID.String(), result.User.ID)
		assert.Equal(t, "Me Myself", result.User.Name)
	})

	t.Run("cookie", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet, ts.APIURL("/auth/me"), nil)
		require.NoError(t, err)
		req.AddCookie(&http.Cookie{Name: auth.DefaultCookieName, Value: token})

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		testutil.AssertStatusCode(t, resp, http.StatusOK)
	})

	t.Run("no token", func(t *testing.T) {
		resp := authedRequest(t, http.MethodGet, ts.APIURL("/auth/me"), "", nil)
		testutil.AssertErrorResponse(t, resp, http.StatusUnauthorized, "Unauthorized")
	})

	t.Run("user no longer exists", func(t *testing.T) {
		ts.DB.Truncate(t)

		resp := authedRequest(t, http.MethodGet, ts.APIURL("/auth/me"), token, nil)
		testutil.AssertErrorResponse(t, resp, http.StatusNotFound, "User not found")
	})
}

func TestAuthHandler_Logout(t *testing.T) {
	ts := testutil.NewTestServer(t)

	resp := postJSON(t, ts.APIURL("/auth/logout"), nil)
	testutil.AssertStatusCode(t, resp, http.StatusOK)

	cookie := testutil.FindCookie(resp, auth.DefaultCookieName)
	require.NotNil(t, cookie)
	assert.Empty(t, cookie.Value)
	assert.Less(t, cookie.MaxAge, 0)
}
