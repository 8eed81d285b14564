package migrations

import (
	"context"
	"fmt"

	"crypto-price-bot/internal/storage/postgres"
)

// RunPostgresMigrations applies the embedded Postgres migrations in order.
// Every file must be idempotent.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool) error {
	migrations, err := Load(Postgres)
	if err != nil {
		return err
	}
	for _, m := range migrations {
		// Without arguments pgx uses the simple protocol, so a file may hold several statements.
		if _, err := pool.Exec(ctx, m.SQL); err != nil {
			return fmt.Errorf("apply migration %s: %w", m.Name, err)
		}
	}
	return nil
}
