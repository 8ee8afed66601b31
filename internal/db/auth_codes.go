package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"neurochat/internal/models"
)

type AuthCodeRepository struct {
	db *DB
}

func NewAuthCodeRepository(db *DB) *AuthCodeRepository {
	return &AuthCodeRepository{db: db}
}

// Create persists a fresh unused code. Returns ErrDuplicate when the code
// collides with an existing row, so the caller can retry with a new code.
func (r *AuthCodeRepository) Create(ctx context.Context, code, userID string, expiresAt time.Time) (*models.AuthCode, error) {
	id, err := GenerateID("ac")
	if err != nil {
		return nil, fmt.Errorf("generating auth code ID: %w", err)
	}
	now := time.Now().UTC()

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO auth_codes (id, code, user_id, is_used, expires_at, created_at) VALUES (?, ?, ?, 0, ?, ?)`,
		id, code, userID, expiresAt.UTC(), now,
	)
	if err != nil {
		if IsUniqueConstraintError(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("creating auth code: %w", err)
	}

	return &models.AuthCode{
		ID:        id,
		Code:      code,
		UserID:    userID,
		ExpiresAt: expiresAt,
		CreatedAt: now,
	}, nil
}

func (r *AuthCodeRepository) FindByCode(ctx context.Context, code string) (*models.AuthCode, error) {
	var ac models.AuthCode

	err := r.db.QueryRowContext(ctx,
		`SELECT id, code, user_id, is_used, expires_at, created_at FROM auth_codes WHERE code = ?`,
		code,
	).Scan(&ac.ID, &ac.Code, &ac.UserID, &ac.IsUsed, &ac.ExpiresAt, &ac.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying auth code: %w", err)
	}

	return &ac, nil
}

// ConsumeByCode atomically marks the code used and returns the owning user id.
// The update succeeds only while the row is unused and unexpired, which makes
// it the serialization point for concurrent verifications: exactly one caller
// gets ok=true.
func (r *AuthCodeRepository) ConsumeByCode(ctx context.Context, code string, now time.Time) (string, bool, error) {
	var userID string
	err := r.db.QueryRowContext(ctx,
		`UPDATE auth_codes SET is_used = 1 WHERE code = ? AND is_used = 0 AND expires_at > ? RETURNING user_id`,
		code, now.UTC(),
	).Scan(&userID)

	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("consuming auth code: %w", err)
	}

	return userID, true, nil
}
