package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"neurochat/internal/models"
)

type UserRepository struct {
	db *DB
}

func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, telegramID int64, profile models.Profile) (*models.User, error) {
	id, err := GenerateID("usr")
	if err != nil {
		return nil, fmt.Errorf("generating user ID: %w", err)
	}
	now := time.Now().UTC()

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO users (id, telegram_id, username, first_name, last_name, photo_url, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, telegramID,
		emptyToNull(profile.Username),
		emptyToNull(profile.FirstName),
		emptyToNull(profile.LastName),
		emptyToNull(profile.PhotoURL),
		now,
	)
	if err != nil {
		if IsUniqueConstraintError(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}

	return &models.User{
		ID:         id,
		TelegramID: telegramID,
		Username:   strPtrOrNil(profile.Username),
		FirstName:  strPtrOrNil(profile.FirstName),
		LastName:   strPtrOrNil(profile.LastName),
		PhotoURL:   strPtrOrNil(profile.PhotoURL),
		IsActive:   true,
		CreatedAt:  now,
	}, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	return r.findOne(ctx, `SELECT id, telegram_id, username, first_name, last_name, photo_url, is_premium, is_active, created_at, updated_at FROM users WHERE id = ?`, id)
}

func (r *UserRepository) FindByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	return r.findOne(ctx, `SELECT id, telegram_id, username, first_name, last_name, photo_url, is_premium, is_active, created_at, updated_at FROM users WHERE telegram_id = ?`, telegramID)
}

// RefreshProfile updates the mutable attributes supplied by the bot. The
// photo URL is kept when the bot sends none.
func (r *UserRepository) RefreshProfile(ctx context.Context, id string, profile models.Profile) error {
	query := `UPDATE users SET username = ?, first_name = ?, last_name = ?, updated_at = ?`
	args := []any{
		emptyToNull(profile.Username),
		emptyToNull(profile.FirstName),
		emptyToNull(profile.LastName),
		time.Now().UTC(),
	}

	if profile.PhotoURL != "" {
		query += `, photo_url = ?`
		args = append(args, profile.PhotoURL)
	}

	query += ` WHERE id = ?`
	args = append(args, id)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("refreshing user profile: %w", err)
	}
	return checkRowsAffected(result)
}

func (r *UserRepository) findOne(ctx context.Context, query string, args ...any) (*models.User, error) {
	var u models.User
	var username, firstName, lastName, photoURL sql.NullString
	var updatedAt sql.NullTime

	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&u.ID,
		&u.TelegramID,
		&username,
		&firstName,
		&lastName,
		&photoURL,
		&u.IsPremium,
		&u.IsActive,
		&u.CreatedAt,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}

	u.Username = nullStringToPtr(username)
	u.FirstName = nullStringToPtr(firstName)
	u.LastName = nullStringToPtr(lastName)
	u.PhotoURL = nullStringToPtr(photoURL)
	u.UpdatedAt = nullTimeToPtr(updatedAt)

	return &u, nil
}

func emptyToNull(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func strPtrOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
