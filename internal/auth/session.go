package auth

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
)

const DefaultCookieName = "auth-token"

// SessionGate resolves the caller of a request to a user id. Nothing is
// cached; every request is verified from its token alone.
type SessionGate struct {
	credentials *Credentials
	cookieName  string
}

func NewSessionGate(credentials *Credentials, cookieName string) *SessionGate {
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	return &SessionGate{credentials: credentials, cookieName: cookieName}
}

func (g *SessionGate) CookieName() string {
	return g.cookieName
}

// TokenFromRequest returns the bearer token from the Authorization header,
// falling back to the auth cookie.
func (g *SessionGate) TokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}

	cookie, err := r.Cookie(g.cookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// Resolve returns the user id behind the request, or false when the request
// carries no usable token.
func (g *SessionGate) Resolve(r *http.Request) (uuid.UUID, bool) {
	return g.ResolveToken(g.TokenFromRequest(r))
}

func (g *SessionGate) ResolveToken(token string) (uuid.UUID, bool) {
	if token == "" {
		return uuid.Nil, false
	}

	userID, err := g.credentials.VerifyToken(token)
	if err != nil {
		return uuid.Nil, false
	}
	return userID, true
}
