package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"neurochat/internal/models"
)

type MessageRepository struct {
	db *DB
}

func NewMessageRepository(db *DB) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Append(ctx context.Context, sessionID, role, content string, codeLanguage *string) (*models.Message, error) {
	id, err := GenerateID("msg")
	if err != nil {
		return nil, fmt.Errorf("generating message ID: %w", err)
	}
	now := time.Now().UTC()

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO messages (id, session_id, role, content, code_language, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, sessionID, role, content, codeLanguage, now,
	)
	if err != nil {
		return nil, fmt.Errorf("creating message: %w", err)
	}

	return &models.Message{
		ID:           id,
		SessionID:    sessionID,
		Role:         role,
		Content:      content,
		CodeLanguage: codeLanguage,
		CreatedAt:    now,
	}, nil
}

// ListBySession returns the session transcript in insertion order. Rowid
// ordering keeps messages appended within the same tick stable.
func (r *MessageRepository) ListBySession(ctx context.Context, sessionID string) ([]*models.Message, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, session_id, role, content, code_language, created_at FROM messages WHERE session_id = ? ORDER BY rowid`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	messages := make([]*models.Message, 0)
	for rows.Next() {
		var m models.Message
		var codeLanguage sql.NullString

		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &codeLanguage, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}

		m.CodeLanguage = nullStringToPtr(codeLanguage)
		messages = append(messages, &m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}

	return messages, nil
}

func (r *MessageRepository) CountBySession(ctx context.Context, sessionID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE session_id = ?`,
		sessionID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting messages: %w", err)
	}
	return count, nil
}
