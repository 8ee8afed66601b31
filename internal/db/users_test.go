package db

import (
	"context"
	"errors"
	"testing"

	"neurochat/internal/models"
)

func TestUserCreateAndFind(t *testing.T) {
	database := openTestDB(t)
	users := NewUserRepository(database)
	ctx := context.Background()

	created, err := users.Create(ctx, 42, models.Profile{Username: "alice", FirstName: "Alice"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if !created.IsActive {
		t.Error("new user should be active")
	}

	byID, err := users.FindByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if byID.TelegramID != 42 {
		t.Errorf("expected telegram id 42, got %d", byID.TelegramID)
	}
	if byID.Username == nil || *byID.Username != "alice" {
		t.Errorf("unexpected username: %v", byID.Username)
	}
	if byID.LastName != nil {
		t.Error("empty profile fields should be stored as NULL")
	}

	byTelegram, err := users.FindByTelegramID(ctx, 42)
	if err != nil {
		t.Fatalf("FindByTelegramID failed: %v", err)
	}
	if byTelegram.ID != created.ID {
		t.Errorf("lookups disagree: %s vs %s", byTelegram.ID, created.ID)
	}
}

func TestUserCreateRejectsDuplicateTelegramID(t *testing.T) {
	database := openTestDB(t)
	users := NewUserRepository(database)
	ctx := context.Background()

	if _, err := users.Create(ctx, 42, models.Profile{}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := users.Create(ctx, 42, models.Profile{}); !errors.Is(err, ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}
}

func TestUserFindMissing(t *testing.T) {
	database := openTestDB(t)
	users := NewUserRepository(database)
	ctx := context.Background()

	if _, err := users.FindByID(ctx, "usr_missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("FindByID: expected ErrNotFound, got %v", err)
	}
	if _, err := users.FindByTelegramID(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Errorf("FindByTelegramID: expected ErrNotFound, got %v", err)
	}
}

func TestRefreshProfileKeepsPhotoWhenAbsent(t *testing.T) {
	database := openTestDB(t)
	users := NewUserRepository(database)
	ctx := context.Background()

	created, err := users.Create(ctx, 42, models.Profile{Username: "alice", PhotoURL: "https://cdn/photo.jpg"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := users.RefreshProfile(ctx, created.ID, models.Profile{Username: "alice_renamed"}); err != nil {
		t.Fatalf("RefreshProfile failed: %v", err)
	}

	got, err := users.FindByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if got.Username == nil || *got.Username != "alice_renamed" {
		t.Errorf("username not refreshed: %v", got.Username)
	}
	if got.PhotoURL == nil || *got.PhotoURL != "https://cdn/photo.jpg" {
		t.Errorf("photo should survive an empty update: %v", got.PhotoURL)
	}
	if got.UpdatedAt == nil {
		t.Error("updated_at should be set after refresh")
	}

	// A non-empty photo does overwrite.
	if err := users.RefreshProfile(ctx, created.ID, models.Profile{Username: "alice_renamed", PhotoURL: "https://cdn/new.jpg"}); err != nil {
		t.Fatalf("RefreshProfile failed: %v", err)
	}
	got, err = users.FindByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if got.PhotoURL == nil || *got.PhotoURL != "https://cdn/new.jpg" {
		t.Errorf("photo not overwritten: %v", got.PhotoURL)
	}
}

func TestRefreshProfileMissingUser(t *testing.T) {
	database := openTestDB(t)
	users := NewUserRepository(database)

	if err := users.RefreshProfile(context.Background(), "usr_missing", models.Profile{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
