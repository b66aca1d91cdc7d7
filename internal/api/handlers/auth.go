package handlers

import (
	"net/http"

	"github.com/dom/chat-relay/internal/api/middleware"
	"github.com/dom/chat-relay/internal/auth"
	"github.com/dom/chat-relay/internal/domain"
	"github.com/dom/chat-relay/internal/service"
)

type AuthHandler struct {
	authService  *service.AuthService
	gate         *auth.SessionGate
	cookieMaxAge int
	secureCookie bool
}

func NewAuthHandler(authService *service.AuthService, gate *auth.SessionGate, cookieMaxAge int, secureCookie bool) *AuthHandler {
	return &AuthHandler{
		authService:  authService,
		gate:         gate,
		cookieMaxAge: cookieMaxAge,
		secureCookie: secureCookie,
	}
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type UserResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

type AuthResponse struct {
	Message string       `json:"message"`
	User    UserResponse `json:"user"`
	Token   string       `json:"token"`
}

type MeResponse struct {
	User UserResponse `json:"user"`
}

func toUserResponse(user *domain.User) UserResponse {
	return UserResponse{
		ID:    user.ID.String(),
		Email: user.Email,
		Name:  user.Name,
	}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[RegisterRequest](w, r)
	if !ok {
		return
	}

	result, err := h.authService.Register(r.Context(), service.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		writeServiceError(w, r, err, msgUserNotFound)
		return
	}

	h.setSessionCookie(w, result.Token)
	writeJSON(w, http.StatusCreated, AuthResponse{
		Message: "User registered successfully",
		User:    toUserResponse(result.User),
		Token:   result.Token,
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[LoginRequest](w, r)
	if !ok {
		return
	}

	result, err := h.authService.Login(r.Context(), service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeServiceError(w, r, err, msgUserNotFound)
		return
	}

	h.setSessionCookie(w, result.Token)
	writeJSON(w, http.StatusOK, AuthResponse{
		Message: "Login successful",
		User:    toUserResponse(result.User),
		Token:   result.Token,
	})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}

	user, err := h.authService.GetUserByID(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err, msgUserNotFound)
		return
	}

	writeJSON(w, http.StatusOK, MeResponse{User: toUserResponse(user)})
}

// Logout only clears the cookie. Tokens are stateless and stay valid until
// they expire.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.gate.CookieName(),
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Logged out successfully"})
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.gate.CookieName(),
		Value:    token,
		Path:     "/",
		MaxAge:   h.cookieMaxAge,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}
