package memory

import (
	"context"
	"slices"
	"sort"
	"sync"

	"crypto-price-bot/internal/domain"
	"crypto-price-bot/internal/storage"
)

// PriceQueryStore is an in-memory implementation of storage.PriceQueryStore.
type PriceQueryStore struct {
	mu      sync.RWMutex
	queries []*domain.PriceQuery
}

// NewPriceQueryStore creates a new in-memory price query store.
func NewPriceQueryStore() *PriceQueryStore {
	return &PriceQueryStore{}
}

// Insert appends a query record.
func (s *PriceQueryStore) Insert(_ context.Context, q *domain.PriceQuery) error {
	if q == nil || q.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.queries = append(s.queries, copyQuery(q))
	return nil
}

// GetByTeam retrieves queries for a team within [start, end], ordered by created_at ASC.
func (s *PriceQueryStore) GetByTeam(_ context.Context, teamID string, start, end int64) ([]*domain.PriceQuery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PriceQuery
	for _, q := range s.queries {
		if q.TeamID == teamID && q.CreatedAt >= start && q.CreatedAt <= end {
			result = append(result, copyQuery(q))
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt < result[j].CreatedAt
	})
	return result, nil
}

func copyQuery(q *domain.PriceQuery) *domain.PriceQuery {
	c := *q
	c.Symbols = slices.Clone(q.Symbols)
	return &c
}

// Compile-time interface check
var _ storage.PriceQueryStore = (*PriceQueryStore)(nil)
