package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"neurochat/internal/auth"
	"neurochat/internal/constants"
	"neurochat/internal/db"
	"neurochat/internal/models"
)

type AuthHandler struct {
	authService *auth.Service
	tokens      *auth.TokenService
	users       *db.UserRepository
}

func NewAuthHandler(authService *auth.Service, tokens *auth.TokenService, users *db.UserRepository) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		tokens:      tokens,
		users:       users,
	}
}

// POST /api/v1/auth/verify-code
type VerifyCodeRequest struct {
	Code string `json:"code" validate:"required,max=32"`
}

type TokenResponse struct {
	AccessToken string       `json:"accessToken"`
	TokenType   string       `json:"tokenType"`
	ExpiresAt   string       `json:"expiresAt"`
	User        *models.User `json:"user"`
}

func (h *AuthHandler) VerifyCode(w http.ResponseWriter, r *http.Request) {
	var req VerifyCodeRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	user, err := h.authService.VerifyCode(r.Context(), req.Code)
	if errors.Is(err, auth.ErrInvalidCode) {
		writeError(w, http.StatusUnauthorized, constants.ErrCodeAuthFailed, "Invalid or expired code")
		return
	}
	if err != nil {
		slog.Error("error verifying auth code", "error", err)
		internalError(w)
		return
	}

	accessToken, expiresAt, err := h.tokens.GenerateAccessToken(user)
	if err != nil {
		slog.Error("error issuing access token", "error", err, "user_id", user.ID)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, TokenResponse{
		AccessToken: accessToken,
		TokenType:   "bearer",
		ExpiresAt:   expiresAt.UTC().Format(time.RFC3339),
		User:        user,
	})
}

// GET /api/v1/auth/me
func (h *AuthHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r)
	if userID == "" {
		unauthorized(w, "User not found in context")
		return
	}

	user, err := h.users.FindByID(r.Context(), userID)
	if errors.Is(err, db.ErrNotFound) {
		unauthorized(w, "User not found or deactivated")
		return
	}
	if err != nil {
		slog.Error("error loading user", "error", err, "user_id", userID)
		internalError(w)
		return
	}
	if !user.IsActive {
		unauthorized(w, "User not found or deactivated")
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// POST /api/v1/auth/logout
//
// Bearer tokens are stateless; logout exists so clients have a uniform
// endpoint to end a session against.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}
