package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"neurochat/internal/chat"
	"neurochat/internal/constants"
	"neurochat/internal/llm"
	"neurochat/internal/models"
)

type ChatHandler struct {
	chats *chat.Service
}

func NewChatHandler(chats *chat.Service) *ChatHandler {
	return &ChatHandler{chats: chats}
}

// POST /api/v1/chat/sessions
type CreateSessionRequest struct {
	Title string `json:"title" validate:"omitempty,max=255"`
}

func (h *ChatHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	session, err := h.chats.CreateSession(r.Context(), GetUserID(r), req.Title)
	if err != nil {
		slog.Error("error creating session", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, session)
}

// GET /api/v1/chat/sessions
func (h *ChatHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.chats.ListSessions(r.Context(), GetUserID(r))
	if err != nil {
		slog.Error("error listing sessions", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, sessions)
}

// GET /api/v1/chat/sessions/{sessionID}/messages
func (h *ChatHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	messages, err := h.chats.ListMessages(r.Context(), GetUserID(r), sessionID)
	if err != nil {
		h.writeChatError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, messages)
}

// POST /api/v1/chat/send
type SendMessageRequest struct {
	SessionID string `json:"session_id" validate:"required"`
	Content   string `json:"content" validate:"required"`
}

type SendMessageResponse struct {
	UserMessage      *models.Message `json:"userMessage"`
	AssistantMessage *models.Message `json:"assistantMessage"`
}

func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	userMsg, assistantMsg, err := h.chats.SendMessage(r.Context(), GetUserID(r), req.SessionID, req.Content)
	if err != nil {
		h.writeChatError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, SendMessageResponse{
		UserMessage:      userMsg,
		AssistantMessage: assistantMsg,
	})
}

// DELETE /api/v1/chat/sessions/{sessionID}
func (h *ChatHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if err := h.chats.DeleteSession(r.Context(), GetUserID(r), sessionID); err != nil {
		h.writeChatError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Session deleted"})
}

func (h *ChatHandler) writeChatError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chat.ErrSessionNotFound):
		notFound(w, "Session not found")
	case errors.Is(err, chat.ErrEmptyMessage):
		writeError(w, http.StatusBadRequest, constants.ErrCodeMessageEmpty, "Message content is required")
	case errors.Is(err, chat.ErrMessageTooLong):
		writeError(w, http.StatusBadRequest, constants.ErrCodeMessageTooLong, "Message content is too long")
	case errors.Is(err, llm.ErrUpstream):
		upstreamError(w, "The assistant is currently unavailable, please retry")
	default:
		slog.Error("chat operation failed", "error", err)
		internalError(w)
	}
}
