package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/opositaprep/checkout-service/pkg/logger"
)

// CounterFamilyPacks is the sold counter bumped on family-pack purchases.
const CounterFamilyPacks = "family_packs"

// postgresCounterRepo implements CounterRepository for PostgreSQL.
type postgresCounterRepo struct {
	db  *sqlx.DB
	log *logger.Logger
}

// NewPostgresCounterRepository creates a counter repository.
func NewPostgresCounterRepository(db *sqlx.DB, log *logger.Logger) CounterRepository {
	return &postgresCounterRepo{db: db, log: log}
}

// IncrementTx upserts the named counter row and adds delta.
func (r *postgresCounterRepo) IncrementTx(ctx context.Context, tx *sqlx.Tx, name string, delta int64) error {
	query := `
        INSERT INTO counters (name, value, updated_at)
        VALUES ($1, $2, $3)
        ON CONFLICT (name) DO UPDATE SET
            value = counters.value + EXCLUDED.value,
            updated_at = EXCLUDED.updated_at`

	if _, err := tx.ExecContext(ctx, query, name, delta, time.Now()); err != nil {
		r.log.Errorw("Failed to increment counter", "error", err, "counter", name)
		return fmt.Errorf("repository: failed to increment counter %s: %w", name, err)
	}

	return nil
}
