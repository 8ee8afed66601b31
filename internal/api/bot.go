package api

import (
	"log/slog"
	"net/http"

	"neurochat/internal/auth"
	"neurochat/internal/models"
)

// BotHandler serves the messaging-bot collaborator. The bot asks for a
// one-time code bound to a Telegram identity and relays it to the end user.
type BotHandler struct {
	authService *auth.Service
}

func NewBotHandler(authService *auth.Service) *BotHandler {
	return &BotHandler{authService: authService}
}

// POST /api/v1/bot/auth-codes
type IssueCodeRequest struct {
	TelegramID int64  `json:"telegram_id" validate:"required"`
	Username   string `json:"username" validate:"omitempty,max=255"`
	FirstName  string `json:"first_name" validate:"omitempty,max=255"`
	LastName   string `json:"last_name" validate:"omitempty,max=255"`
	PhotoURL   string `json:"photo_url" validate:"omitempty,max=500"`
}

type IssueCodeResponse struct {
	Code      string `json:"code"`
	ExpiresIn int    `json:"expires_in"`
}

func (h *BotHandler) IssueCode(w http.ResponseWriter, r *http.Request) {
	var req IssueCodeRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	code, ttl, err := h.authService.IssueCode(r.Context(), req.TelegramID, models.Profile{
		Username:  req.Username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		PhotoURL:  req.PhotoURL,
	})
	if err != nil {
		slog.Error("error issuing auth code", "error", err, "telegram_id", req.TelegramID)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, IssueCodeResponse{
		Code:      code,
		ExpiresIn: int(ttl.Seconds()),
	})
}
