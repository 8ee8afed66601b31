package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"unicode/utf8"

	"neurochat/internal/constants"
	"neurochat/internal/db"
	"neurochat/internal/llm"
	"neurochat/internal/models"
)

var (
	// ErrSessionNotFound covers both a missing session and one owned by
	// someone else; callers cannot tell the two apart.
	ErrSessionNotFound = errors.New("session not found")

	ErrEmptyMessage   = errors.New("message content is empty")
	ErrMessageTooLong = errors.New("message content is too long")
)

// DefaultSessionTitle is the placeholder until the first user message names
// the session.
const DefaultSessionTitle = "New chat"

// Service is the conversation pipeline: it owns the transcript and drives the
// inference collaborator.
type Service struct {
	sessions *db.SessionRepository
	messages *db.MessageRepository
	llm      llm.Client
	locks    *sessionLocks
}

func NewService(sessions *db.SessionRepository, messages *db.MessageRepository, llmClient llm.Client) *Service {
	return &Service{
		sessions: sessions,
		messages: messages,
		llm:      llmClient,
		locks:    newSessionLocks(),
	}
}

func (s *Service) CreateSession(ctx context.Context, ownerID, title string) (*models.SessionSummary, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = DefaultSessionTitle
	}

	session, err := s.sessions.Create(ctx, ownerID, title)
	if err != nil {
		return nil, err
	}

	return &models.SessionSummary{ChatSession: *session, MessageCount: 0}, nil
}

func (s *Service) ListSessions(ctx context.Context, ownerID string) ([]*models.SessionSummary, error) {
	return s.sessions.ListByOwner(ctx, ownerID)
}

// GetSession resolves a session under the same ownership-or-nonexistence
// rule as the other accessors.
func (s *Service) GetSession(ctx context.Context, ownerID, sessionID string) (*models.ChatSession, error) {
	return s.findOwned(ctx, ownerID, sessionID)
}

func (s *Service) ListMessages(ctx context.Context, ownerID, sessionID string) ([]*models.Message, error) {
	if _, err := s.findOwned(ctx, ownerID, sessionID); err != nil {
		return nil, err
	}
	return s.messages.ListBySession(ctx, sessionID)
}

func (s *Service) DeleteSession(ctx context.Context, ownerID, sessionID string) error {
	err := s.sessions.DeleteOwned(ctx, ownerID, sessionID)
	if errors.Is(err, db.ErrNotFound) {
		return ErrSessionNotFound
	}
	return err
}

// SendMessage runs one synchronous exchange: append the user turn, request a
// full completion over the session transcript, append the assistant turn. A
// collaborator failure leaves the user turn persisted and nothing else.
func (s *Service) SendMessage(ctx context.Context, ownerID, sessionID, content string) (*models.Message, *models.Message, error) {
	if err := validateContent(content); err != nil {
		return nil, nil, err
	}
	if _, err := s.findOwned(ctx, ownerID, sessionID); err != nil {
		return nil, nil, err
	}

	release := s.locks.acquire(sessionID)
	defer release()

	priorCount, err := s.messages.CountBySession(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}

	userMsg, err := s.messages.Append(ctx, sessionID, models.RoleUser, content, nil)
	if err != nil {
		return nil, nil, err
	}

	turns, err := s.transcriptTurns(ctx, sessionID)
	if err != nil {
		return userMsg, nil, err
	}

	reply, err := s.llm.Complete(ctx, turns)
	if err != nil {
		return userMsg, nil, fmt.Errorf("requesting completion: %w", err)
	}

	assistantMsg, err := s.messages.Append(ctx, sessionID, models.RoleAssistant, reply, nil)
	if err != nil {
		return userMsg, nil, err
	}

	s.finishExchange(ctx, sessionID, priorCount, content)

	return userMsg, assistantMsg, nil
}

// StreamMessage starts a streamed exchange. The returned Exchange yields
// fragments from Chunks until it is closed; Wait then reports the persisted
// assistant message, or the upstream error when the stream terminated
// abnormally (in which case the partial buffer is discarded).
func (s *Service) StreamMessage(ctx context.Context, ownerID, sessionID, content string) (*models.Message, *Exchange, error) {
	if err := validateContent(content); err != nil {
		return nil, nil, err
	}
	if _, err := s.findOwned(ctx, ownerID, sessionID); err != nil {
		return nil, nil, err
	}

	release := s.locks.acquire(sessionID)

	priorCount, err := s.messages.CountBySession(ctx, sessionID)
	if err != nil {
		release()
		return nil, nil, err
	}

	userMsg, err := s.messages.Append(ctx, sessionID, models.RoleUser, content, nil)
	if err != nil {
		release()
		return nil, nil, err
	}

	turns, err := s.transcriptTurns(ctx, sessionID)
	if err != nil {
		release()
		return userMsg, nil, err
	}

	stream, err := s.llm.Stream(ctx, turns)
	if err != nil {
		release()
		return userMsg, nil, fmt.Errorf("starting completion stream: %w", err)
	}

	ex := newExchange()
	go s.runExchange(ctx, release, stream, ex, sessionID, priorCount, content)

	return userMsg, ex, nil
}

// runExchange is the producer: it forwards fragments into the bounded chunk
// channel while accumulating them, and persists the full buffer only after a
// clean upstream end. The session lock is held for the whole exchange.
func (s *Service) runExchange(
	ctx context.Context,
	release func(),
	stream llm.CompletionStream,
	ex *Exchange,
	sessionID string,
	priorCount int,
	userContent string,
) {
	defer release()
	defer stream.Close()

	var buf strings.Builder
	forwarding := true

	for {
		fragment, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// Abnormal termination: discard the buffer.
			ex.fail(fmt.Errorf("reading completion stream: %w", err))
			return
		}

		buf.WriteString(fragment)

		if forwarding {
			select {
			case ex.chunks <- fragment:
			case <-ctx.Done():
				// Consumer is gone; keep draining so a complete buffer can
				// still be persisted if the upstream finishes first.
				forwarding = false
			}
		}
	}

	// Detach from the request context: the exchange is complete and must be
	// committed even if the transport has disconnected.
	persistCtx := context.WithoutCancel(ctx)

	assistantMsg, err := s.messages.Append(persistCtx, sessionID, models.RoleAssistant, buf.String(), nil)
	if err != nil {
		ex.fail(err)
		return
	}

	s.finishExchange(persistCtx, sessionID, priorCount, userContent)

	ex.complete(assistantMsg)
}

// finishExchange derives the session title from the first user message, or
// just bumps updated_at for later exchanges. Both turns are already durable
// at this point, so a failure here is logged rather than surfaced.
func (s *Service) finishExchange(ctx context.Context, sessionID string, priorCount int, userContent string) {
	var err error
	if priorCount <= 1 {
		err = s.sessions.UpdateTitle(ctx, sessionID, DeriveTitle(userContent))
	} else {
		err = s.sessions.Touch(ctx, sessionID)
	}
	if err != nil {
		slog.Warn("finalizing exchange", "component", "chat", "session_id", sessionID, "error", err)
	}
}

func (s *Service) findOwned(ctx context.Context, ownerID, sessionID string) (*models.ChatSession, error) {
	session, err := s.sessions.FindOwned(ctx, ownerID, sessionID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (s *Service) transcriptTurns(ctx context.Context, sessionID string) ([]llm.Turn, error) {
	transcript, err := s.messages.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	turns := make([]llm.Turn, 0, len(transcript))
	for _, m := range transcript {
		turns = append(turns, llm.Turn{Role: m.Role, Content: m.Content})
	}
	return turns, nil
}

// DeriveTitle truncates the first user message to the title limit, appending
// an ellipsis only when something was cut.
func DeriveTitle(content string) string {
	content = strings.TrimSpace(content)
	if utf8.RuneCountInString(content) <= constants.SessionTitleMaxLength {
		return content
	}
	runes := []rune(content)
	return string(runes[:constants.SessionTitleMaxLength]) + "..."
}

func validateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return ErrEmptyMessage
	}
	if utf8.RuneCountInString(content) > constants.MaxMessageContentLength {
		return ErrMessageTooLong
	}
	return nil
}
