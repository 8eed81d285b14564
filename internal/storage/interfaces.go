package storage

import (
	"context"
	"time"

	"crypto-price-bot/internal/domain"
)

// TeamStore provides access to team storage.
type TeamStore interface {
	// Upsert creates the team or replaces its tokens, name and auth payload.
	// Keyed by SlackID; never creates a second row for the same id.
	Upsert(ctx context.Context, t *domain.Team) error

	// GetByID retrieves a team by its Slack id. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, slackID string) (*domain.Team, error)
}

// CacheStore is a key/value store with native expiry.
type CacheStore interface {
	// Get returns the stored bytes and true, or nil and false when the key
	// is absent or expired.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key, expiring after ttl.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// PriceQueryStore provides access to the append-only price query log.
type PriceQueryStore interface {
	// Insert appends a query record.
	Insert(ctx context.Context, q *domain.PriceQuery) error

	// GetByTeam retrieves queries for a team within [start, end] (ms, inclusive),
	// ordered by created_at ASC.
	GetByTeam(ctx context.Context, teamID string, start, end int64) ([]*domain.PriceQuery, error)
}
