package clickhouse

import (
	"context"
	"fmt"

	"crypto-price-bot/internal/domain"
	"crypto-price-bot/internal/storage"
)

// PriceQueryStore implements storage.PriceQueryStore using ClickHouse.
type PriceQueryStore struct {
	conn *Conn
}

// NewPriceQueryStore creates a new PriceQueryStore.
func NewPriceQueryStore(conn *Conn) *PriceQueryStore {
	return &PriceQueryStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PriceQueryStore = (*PriceQueryStore)(nil)

// Insert appends a query record as a single-row batch.
func (s *PriceQueryStore) Insert(ctx context.Context, q *domain.PriceQuery) error {
	if q == nil || q.ID == "" {
		return storage.ErrInvalidInput
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO price_queries (
			id, team_id, channel, user, text, symbols, delivered, created_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	symbols := q.Symbols
	if symbols == nil {
		symbols = []string{}
	}

	var delivered uint8
	if q.Delivered {
		delivered = 1
	}

	err = batch.Append(
		q.ID, q.TeamID, q.Channel, q.User, q.Text,
		symbols, delivered, q.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append to batch: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByTeam retrieves queries for a team within [start, end] (inclusive), ordered by created_at ASC.
func (s *PriceQueryStore) GetByTeam(ctx context.Context, teamID string, start, end int64) ([]*domain.PriceQuery, error) {
	query := `
		SELECT id, team_id, channel, user, text, symbols, delivered, created_at
		FROM price_queries
		WHERE team_id = ? AND created_at >= ? AND created_at <= ?
		ORDER BY created_at ASC, id ASC
	`

	rows, err := s.conn.Query(ctx, query, teamID, start, end)
	if err != nil {
		return nil, fmt.Errorf("query by team: %w", err)
	}
	defer rows.Close()

	return scanPriceQueries(rows)
}

// scanPriceQueries scans multiple rows.
func scanPriceQueries(rows chRows) ([]*domain.PriceQuery, error) {
	var queries []*domain.PriceQuery

	for rows.Next() {
		var q domain.PriceQuery
		var delivered uint8

		err := rows.Scan(
			&q.ID, &q.TeamID, &q.Channel, &q.User, &q.Text,
			&q.Symbols, &delivered, &q.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan price query row: %w", err)
		}

		q.Delivered = delivered == 1
		queries = append(queries, &q)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price query rows: %w", err)
	}

	return queries, nil
}
