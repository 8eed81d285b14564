package memory

import (
	"bytes"
	"context"
	"sync"
	"time"

	"crypto-price-bot/internal/domain"
	"crypto-price-bot/internal/storage"
)

// TeamStore is an in-memory implementation of storage.TeamStore.
type TeamStore struct {
	mu    sync.RWMutex
	teams map[string]*domain.Team // keyed by slack_id
	now   func() time.Time
}

// NewTeamStore creates a new in-memory team store.
func NewTeamStore() *TeamStore {
	return &TeamStore{
		teams: make(map[string]*domain.Team),
		now:   time.Now,
	}
}

// Upsert creates the team or replaces its tokens. CreatedAt of an existing row is kept.
func (s *TeamStore) Upsert(_ context.Context, t *domain.Team) error {
	if t == nil || t.SlackID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	nowMs := s.now().UnixMilli()
	teamCopy := copyTeam(t)
	teamCopy.UpdatedAt = nowMs
	if existing, ok := s.teams[t.SlackID]; ok {
		teamCopy.CreatedAt = existing.CreatedAt
	} else {
		teamCopy.CreatedAt = nowMs
	}
	s.teams[t.SlackID] = teamCopy
	return nil
}

// GetByID retrieves a team by Slack id. Returns ErrNotFound if not exists.
func (s *TeamStore) GetByID(_ context.Context, slackID string) (*domain.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.teams[slackID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copyTeam(t), nil
}

// Count returns the number of stored teams.
func (s *TeamStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.teams)
}

func copyTeam(t *domain.Team) *domain.Team {
	c := *t
	c.Auth = bytes.Clone(t.Auth)
	return &c
}

// Compile-time interface check
var _ storage.TeamStore = (*TeamStore)(nil)
