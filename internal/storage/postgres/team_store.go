package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"crypto-price-bot/internal/domain"
	"crypto-price-bot/internal/observability"
	"crypto-price-bot/internal/storage"
)

// TeamStore implements storage.TeamStore using PostgreSQL.
type TeamStore struct {
	pool *Pool
}

// NewTeamStore creates a new TeamStore.
func NewTeamStore(pool *Pool) *TeamStore {
	return &TeamStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TeamStore = (*TeamStore)(nil)

// Upsert inserts the team or replaces tokens, name, scope and auth on conflict.
// created_at of an existing row is preserved.
func (s *TeamStore) Upsert(ctx context.Context, t *domain.Team) (err error) {
	if t == nil || t.SlackID == "" {
		return storage.ErrInvalidInput
	}

	start := time.Now()
	defer func() { observability.RecordDBQuery("postgres", "team_upsert", time.Since(start), err) }()

	query := `
		INSERT INTO team (
			slack_id, name, access_token, bot_access_token, bot_user_id, scope, auth, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		ON CONFLICT (slack_id) DO UPDATE SET
			name = EXCLUDED.name,
			access_token = EXCLUDED.access_token,
			bot_access_token = EXCLUDED.bot_access_token,
			bot_user_id = EXCLUDED.bot_user_id,
			scope = EXCLUDED.scope,
			auth = EXCLUDED.auth,
			updated_at = EXCLUDED.updated_at
	`

	auth := t.Auth
	if len(auth) == 0 {
		auth = []byte("{}")
	}

	_, err = s.pool.Exec(ctx, query,
		t.SlackID,
		t.Name,
		t.AccessToken,
		t.BotAccessToken,
		t.BotUserID,
		t.Scope,
		string(auth),
		time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("upsert team: %w", err)
	}
	return nil
}

// GetByID retrieves a team by Slack id. Returns ErrNotFound if not exists.
func (s *TeamStore) GetByID(ctx context.Context, slackID string) (*domain.Team, error) {
	start := time.Now()

	query := `
		SELECT slack_id, name, access_token, bot_access_token, bot_user_id, scope, auth, created_at, updated_at
		FROM team
		WHERE slack_id = $1
	`

	row := s.pool.QueryRow(ctx, query, slackID)
	t, err := scanTeam(row)
	queryErr := err
	if isNotFoundError(err) {
		queryErr = nil
	}
	observability.RecordDBQuery("postgres", "team_get", time.Since(start), queryErr)

	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get team by id: %w", err)
	}
	return t, nil
}

// scanTeam scans a single row into Team.
func scanTeam(row pgx.Row) (*domain.Team, error) {
	var t domain.Team
	var auth []byte

	err := row.Scan(
		&t.SlackID,
		&t.Name,
		&t.AccessToken,
		&t.BotAccessToken,
		&t.BotUserID,
		&t.Scope,
		&auth,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Auth = auth

	return &t, nil
}
