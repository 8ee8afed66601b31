package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"neurochat/internal/models"
)

type SessionRepository struct {
	db *DB
}

func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(ctx context.Context, userID, title string) (*models.ChatSession, error) {
	id, err := GenerateID("cs")
	if err != nil {
		return nil, fmt.Errorf("generating session ID: %w", err)
	}
	now := time.Now().UTC()

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO chat_sessions (id, user_id, title, created_at) VALUES (?, ?, ?, ?)`,
		id, userID, title, now,
	)
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	return &models.ChatSession{
		ID:        id,
		UserID:    userID,
		Title:     title,
		CreatedAt: now,
	}, nil
}

// FindOwned resolves a session only when it belongs to userID. Absence and
// foreign ownership are indistinguishable: both yield ErrNotFound.
func (r *SessionRepository) FindOwned(ctx context.Context, userID, sessionID string) (*models.ChatSession, error) {
	var s models.ChatSession
	var updatedAt sql.NullTime

	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, title, created_at, updated_at FROM chat_sessions WHERE id = ? AND user_id = ?`,
		sessionID, userID,
	).Scan(&s.ID, &s.UserID, &s.Title, &s.CreatedAt, &updatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}

	s.UpdatedAt = nullTimeToPtr(updatedAt)

	return &s, nil
}

// ListByOwner returns the user's sessions newest first, each annotated with
// its message count.
func (r *SessionRepository) ListByOwner(ctx context.Context, userID string) ([]*models.SessionSummary, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT s.id, s.user_id, s.title, s.created_at, s.updated_at, COUNT(m.id)
		   FROM chat_sessions s
		   LEFT JOIN messages m ON m.session_id = s.id
		  WHERE s.user_id = ?
		  GROUP BY s.id
		  ORDER BY s.created_at DESC, s.rowid DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	summaries := make([]*models.SessionSummary, 0)
	for rows.Next() {
		var s models.SessionSummary
		var updatedAt sql.NullTime

		if err := rows.Scan(&s.ID, &s.UserID, &s.Title, &s.CreatedAt, &updatedAt, &s.MessageCount); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}

		s.UpdatedAt = nullTimeToPtr(updatedAt)
		summaries = append(summaries, &s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sessions: %w", err)
	}

	return summaries, nil
}

func (r *SessionRepository) UpdateTitle(ctx context.Context, sessionID, title string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE chat_sessions SET title = ?, updated_at = ? WHERE id = ?`,
		title, time.Now().UTC(), sessionID,
	)
	if err != nil {
		return fmt.Errorf("updating session title: %w", err)
	}
	return checkRowsAffected(result)
}

func (r *SessionRepository) Touch(ctx context.Context, sessionID string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE chat_sessions SET updated_at = ? WHERE id = ?`,
		time.Now().UTC(), sessionID,
	)
	if err != nil {
		return fmt.Errorf("touching session: %w", err)
	}
	return checkRowsAffected(result)
}

// DeleteOwned removes the session when owned by userID. Messages go with it
// through the ON DELETE CASCADE foreign key.
func (r *SessionRepository) DeleteOwned(ctx context.Context, userID, sessionID string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM chat_sessions WHERE id = ? AND user_id = ?`,
		sessionID, userID,
	)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return checkRowsAffected(result)
}
