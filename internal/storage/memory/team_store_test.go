package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"crypto-price-bot/internal/domain"
	"crypto-price-bot/internal/storage"
)

func TestTeamStore_UpsertAndGetByID(t *testing.T) {
	store := NewTeamStore()
	ctx := context.Background()

	team := &domain.Team{
		SlackID:        "T123",
		Name:           "Acme",
		AccessToken:    "xoxp-1",
		BotAccessToken: "xoxb-1",
		Auth:           []byte(`{"ok":true}`),
	}

	if err := store.Upsert(ctx, team); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	result, err := store.GetByID(ctx, "T123")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}

	if result.BotAccessToken != "xoxb-1" {
		t.Errorf("BotAccessToken mismatch: got %s, want xoxb-1", result.BotAccessToken)
	}
	if string(result.Auth) != `{"ok":true}` {
		t.Errorf("Auth mismatch: got %s", result.Auth)
	}
}

func TestTeamStore_UpsertReplacesTokens(t *testing.T) {
	store := NewTeamStore()
	ctx := context.Background()

	calls := 0
	store.now = func() time.Time {
		calls++
		return time.UnixMilli(int64(calls) * 1000)
	}

	if err := store.Upsert(ctx, &domain.Team{SlackID: "T1", Name: "Old", BotAccessToken: "b1"}); err != nil {
		t.Fatalf("first Upsert failed: %v", err)
	}
	if err := store.Upsert(ctx, &domain.Team{SlackID: "T1", Name: "New", BotAccessToken: "b2"}); err != nil {
		t.Fatalf("second Upsert failed: %v", err)
	}

	if store.Count() != 1 {
		t.Fatalf("expected 1 team, got %d", store.Count())
	}

	result, err := store.GetByID(ctx, "T1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if result.BotAccessToken != "b2" || result.Name != "New" {
		t.Errorf("expected second call's values, got %+v", result)
	}
	if result.CreatedAt != 1000 {
		t.Errorf("CreatedAt should be kept: got %d, want 1000", result.CreatedAt)
	}
	if result.UpdatedAt != 2000 {
		t.Errorf("UpdatedAt mismatch: got %d, want 2000", result.UpdatedAt)
	}
}

func TestTeamStore_GetByID_NotFound(t *testing.T) {
	store := NewTeamStore()

	_, err := store.GetByID(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestTeamStore_InvalidInput(t *testing.T) {
	store := NewTeamStore()
	ctx := context.Background()

	if err := store.Upsert(ctx, nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("nil team: expected ErrInvalidInput, got %v", err)
	}
	if err := store.Upsert(ctx, &domain.Team{}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("empty id: expected ErrInvalidInput, got %v", err)
	}
}

func TestTeamStore_ReturnsCopy(t *testing.T) {
	store := NewTeamStore()
	ctx := context.Background()

	if err := store.Upsert(ctx, &domain.Team{SlackID: "T1", BotAccessToken: "b1"}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	got, _ := store.GetByID(ctx, "T1")
	got.BotAccessToken = "mutated"

	again, _ := store.GetByID(ctx, "T1")
	if again.BotAccessToken != "b1" {
		t.Errorf("store was mutated through returned value: %s", again.BotAccessToken)
	}
}
