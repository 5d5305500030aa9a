package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Migrate creates the schema used by the persistence-sync mirror.
// The table is a flat snapshot of the in-memory store; the local store
// stays authoritative and writes here are version-gated.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS patients (
			pid          UUID PRIMARY KEY,
			name         TEXT NOT NULL,
			status       TEXT NOT NULL,
			color        TEXT NOT NULL,
			bed_number   INT,
			esi_score    INT,
			is_simulated BOOLEAN NOT NULL DEFAULT TRUE,
			version      BIGINT NOT NULL DEFAULT 0,
			payload      JSONB NOT NULL,
			updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_patients_status ON patients (status)`,
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}
