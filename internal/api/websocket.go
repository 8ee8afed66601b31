package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"neurochat/internal/auth"
	"neurochat/internal/chat"
	"neurochat/internal/constants"
	"neurochat/internal/llm"
	"neurochat/internal/ws"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ChatWSHandler serves the streamed-send channel. Authentication and session
// ownership failures close the socket with distinct codes so the client can
// react without parsing a body.
type ChatWSHandler struct {
	chats  *chat.Service
	tokens *auth.TokenService
}

func NewChatWSHandler(chats *chat.Service, tokens *auth.TokenService) *ChatWSHandler {
	return &ChatWSHandler{chats: chats, tokens: tokens}
}

// GET /api/v1/chat/ws/{sessionID}?token=...
func (h *ChatWSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "component", "ws", "error", err)
		return
	}

	claims, err := h.tokens.ValidateAccessToken(r.URL.Query().Get("token"))
	if err != nil {
		closeWith(conn, ws.CloseUnauthenticated, "invalid token")
		return
	}

	if _, err := h.chats.GetSession(r.Context(), claims.UserID, sessionID); err != nil {
		if errors.Is(err, chat.ErrSessionNotFound) {
			closeWith(conn, ws.CloseSessionNotFound, "session not found")
		} else {
			slog.Error("error resolving session for websocket", "component", "ws", "error", err)
			closeWith(conn, websocket.CloseInternalServerErr, "internal error")
		}
		return
	}

	client := ws.NewClient(conn, h.turnHandler(claims.UserID, sessionID))
	slog.Info("websocket connected", "component", "ws", "client", client.ID, "session_id", sessionID)

	go client.WritePump()
	client.ReadPump(r.Context())
}

// turnHandler runs one streamed exchange per inbound frame. Frames from a
// single connection are processed in order by the read pump.
func (h *ChatWSHandler) turnHandler(userID, sessionID string) ws.MessageHandler {
	return func(ctx context.Context, client *ws.Client, content string) {
		_, exchange, err := h.chats.StreamMessage(ctx, userID, sessionID, content)
		if err != nil {
			client.Send(chatErrorFrame(err))
			return
		}

		delivering := true
		for chunk := range exchange.Chunks() {
			if delivering && !client.Send(ws.ChunkFrame(chunk)) {
				// Peer is gone; keep draining so the exchange can settle.
				delivering = false
			}
		}

		assistantMsg, err := exchange.Wait()
		if err != nil {
			slog.Warn("streamed exchange failed", "component", "ws", "client", client.ID, "error", err)
			client.Send(chatErrorFrame(err))
			return
		}

		client.Send(ws.CompleteFrame(assistantMsg.ID))
	}
}

func chatErrorFrame(err error) *ws.OutboundFrame {
	switch {
	case errors.Is(err, chat.ErrSessionNotFound):
		return ws.ErrorFrame(constants.ErrCodeNotFound, "Session not found")
	case errors.Is(err, chat.ErrEmptyMessage):
		return ws.ErrorFrame(constants.ErrCodeMessageEmpty, "Message content is required")
	case errors.Is(err, chat.ErrMessageTooLong):
		return ws.ErrorFrame(constants.ErrCodeMessageTooLong, "Message content is too long")
	case errors.Is(err, llm.ErrUpstream):
		return ws.ErrorFrame(constants.ErrCodeUpstream, "The assistant is currently unavailable, please retry")
	default:
		return ws.ErrorFrame(constants.ErrCodeInternal, "An internal error occurred")
	}
}

func closeWith(conn *websocket.Conn, code int, reason string) {
	deadline := time.Now().Add(time.Second)
	conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	conn.Close()
}
