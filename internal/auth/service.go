package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"neurochat/internal/db"
	"neurochat/internal/models"
)

// ErrInvalidCode is the uniform failure for verification. Wrong, expired and
// already-consumed codes are deliberately indistinguishable to the caller.
var ErrInvalidCode = errors.New("invalid or expired code")

const DefaultCodeTTL = 300 * time.Second

// codeCreateRetries bounds regeneration after a UNIQUE collision on insert.
const codeCreateRetries = 3

// CodeCache is the volatile code index. Implementations may be remote and
// may fail; the lifecycle manager treats every cache operation as advisory.
type CodeCache interface {
	Set(code, userID string, ttl time.Duration) error
	Get(code string) (string, bool)
	Delete(code string)
}

// codeState is the internal classification of a durable code row. All
// non-valid states collapse to ErrInvalidCode at the boundary.
type codeState int

const (
	codeStateValid codeState = iota
	codeStateNotFound
	codeStateConsumed
	codeStateExpired
)

func (s codeState) String() string {
	switch s {
	case codeStateValid:
		return "valid"
	case codeStateNotFound:
		return "not_found"
	case codeStateConsumed:
		return "consumed"
	case codeStateExpired:
		return "expired"
	}
	return "unknown"
}

// Service manages the one-time code lifecycle across the durable store and
// the volatile cache.
type Service struct {
	users   *db.UserRepository
	codes   *db.AuthCodeRepository
	cache   CodeCache
	codeTTL time.Duration
}

func NewService(users *db.UserRepository, codes *db.AuthCodeRepository, cache CodeCache, codeTTL time.Duration) *Service {
	if codeTTL <= 0 {
		codeTTL = DefaultCodeTTL
	}
	return &Service{
		users:   users,
		codes:   codes,
		cache:   cache,
		codeTTL: codeTTL,
	}
}

func (s *Service) CodeTTL() time.Duration {
	return s.codeTTL
}

// IssueCode mints a one-time login code for the bot identity, creating the
// user on first contact and refreshing profile attributes on repeat. The
// durable row is committed before the cache mirror; a cache write failure is
// logged and swallowed.
func (s *Service) IssueCode(ctx context.Context, telegramID int64, profile models.Profile) (string, time.Duration, error) {
	user, err := s.findOrCreateUser(ctx, telegramID, profile)
	if err != nil {
		return "", 0, err
	}

	for attempt := 0; attempt < codeCreateRetries; attempt++ {
		code, err := GenerateCode()
		if err != nil {
			return "", 0, err
		}

		_, err = s.codes.Create(ctx, code, user.ID, time.Now().Add(s.codeTTL))
		if errors.Is(err, db.ErrDuplicate) {
			slog.Warn("auth code collision, regenerating", "component", "auth", "attempt", attempt+1)
			continue
		}
		if err != nil {
			return "", 0, err
		}

		if cacheErr := s.cache.Set(code, user.ID, s.codeTTL); cacheErr != nil {
			slog.Warn("auth code cache write failed", "component", "auth", "error", cacheErr)
		}

		return code, s.codeTTL, nil
	}

	return "", 0, fmt.Errorf("generating unique auth code: %d collisions in a row", codeCreateRetries)
}

// VerifyCode consumes a code exactly once and resolves its owner. The cache
// only selects the fast path; in both paths the durable conditional update
// (unused and unexpired) is the serialization point, and on disagreement the
// durable store wins.
func (s *Service) VerifyCode(ctx context.Context, rawCode string) (*models.User, error) {
	code := NormalizeCode(rawCode)
	if !IsWellFormedCode(code) {
		return nil, ErrInvalidCode
	}
	now := time.Now()

	if _, hit := s.cache.Get(code); hit {
		// The entry is one-shot either way.
		s.cache.Delete(code)

		userID, consumed, err := s.codes.ConsumeByCode(ctx, code, now)
		if err != nil {
			return nil, err
		}
		if !consumed {
			slog.Warn("cached code rejected by durable store", "component", "auth")
			return nil, ErrInvalidCode
		}
		return s.resolveUser(ctx, userID)
	}

	state, err := s.classifyCode(ctx, code, now)
	if err != nil {
		return nil, err
	}
	if state != codeStateValid {
		slog.Info("code verification failed", "component", "auth", "state", state.String())
		return nil, ErrInvalidCode
	}

	userID, consumed, err := s.codes.ConsumeByCode(ctx, code, now)
	if err != nil {
		return nil, err
	}
	if !consumed {
		// Lost the race against a concurrent verifier.
		slog.Info("code verification failed", "component", "auth", "state", codeStateConsumed.String())
		return nil, ErrInvalidCode
	}

	return s.resolveUser(ctx, userID)
}

func (s *Service) findOrCreateUser(ctx context.Context, telegramID int64, profile models.Profile) (*models.User, error) {
	user, err := s.users.FindByTelegramID(ctx, telegramID)
	if errors.Is(err, db.ErrNotFound) {
		user, err = s.users.Create(ctx, telegramID, profile)
		if errors.Is(err, db.ErrDuplicate) {
			// Concurrent issuance created the row first; fall through to refresh.
			user, err = s.users.FindByTelegramID(ctx, telegramID)
		}
		if err != nil {
			return nil, err
		}
		return user, nil
	}
	if err != nil {
		return nil, err
	}

	if err := s.users.RefreshProfile(ctx, user.ID, profile); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Service) classifyCode(ctx context.Context, code string, now time.Time) (codeState, error) {
	row, err := s.codes.FindByCode(ctx, code)
	if errors.Is(err, db.ErrNotFound) {
		return codeStateNotFound, nil
	}
	if err != nil {
		return codeStateNotFound, err
	}
	if row.IsUsed {
		return codeStateConsumed, nil
	}
	if !now.Before(row.ExpiresAt) {
		return codeStateExpired, nil
	}
	return codeStateValid, nil
}

func (s *Service) resolveUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrInvalidCode
	}
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrInvalidCode
	}
	return user, nil
}
