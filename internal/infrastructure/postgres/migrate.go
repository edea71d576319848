package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Migrate creates the schema when it is missing. Safe to run on every
// startup.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS events (
			id              UUID PRIMARY KEY,
			name            TEXT NOT NULL,
			starts_at       TIMESTAMPTZ NOT NULL,
			capacity        INT NOT NULL CHECK (capacity >= 0),
			purchased       INT NOT NULL DEFAULT 0 CHECK (purchased >= 0 AND purchased <= capacity),
			max_per_request INT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS tickets (
			id           UUID PRIMARY KEY,
			event_id     UUID NOT NULL REFERENCES events (id),
			user_id      TEXT NOT NULL,
			purchased_at TIMESTAMPTZ NOT NULL,
			status       TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS tickets_user_id_idx ON tickets (user_id)`,
		`CREATE INDEX IF NOT EXISTS tickets_status_idx ON tickets (status)`,
		`CREATE TABLE IF NOT EXISTS processed_messages (
			message_id   TEXT NOT NULL,
			handler_name TEXT NOT NULL,
			processed_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (message_id, handler_name)
		)`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
