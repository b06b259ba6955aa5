package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/opositaprep/checkout-service/internal/domain"
	"github.com/opositaprep/checkout-service/pkg/logger"
)

// postgresUserRepo implements UserRepository for PostgreSQL.
type postgresUserRepo struct {
	db  *sqlx.DB
	log *logger.Logger
}

// NewPostgresUserRepository creates a user repository.
func NewPostgresUserRepository(db *sqlx.DB, log *logger.Logger) UserRepository {
	return &postgresUserRepo{db: db, log: log}
}

const userColumns = `
    id, email, role, plan, tier, slot_count, billing_cycle, plan_status,
    entitlement_end_at, referral_count, referral_revenue_cents,
    created_at, updated_at`

// GetByID returns a user by id.
func (r *postgresUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	var u domain.User
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	err := r.db.GetContext(ctx, &u, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.log.Debugw("User not found", "userID", id)
			return nil, ErrNotFound
		}
		r.log.Errorw("Failed to get user from DB", "error", err, "userID", id)
		return nil, fmt.Errorf("repository: failed to get user: %w", err)
	}

	return &u, nil
}

// ApplyPurchaseTx updates the buyer's plan fields from a committed
// subscription inside tx.
func (r *postgresUserRepo) ApplyPurchaseTx(ctx context.Context, tx *sqlx.Tx, userID string, sub *domain.Subscription) error {
	query := `
        UPDATE users SET
            plan = $2,
            tier = $3,
            slot_count = $4,
            billing_cycle = $5,
            plan_status = $6,
            updated_at = $7
        WHERE id = $1`

	res, err := tx.ExecContext(ctx, query, userID,
		sub.PlanType, sub.Tier, sub.SlotCount, sub.BillingCycle, sub.Status, time.Now())
	if err != nil {
		r.log.Errorw("Failed to apply purchase to user", "error", err, "userID", userID)
		return fmt.Errorf("repository: failed to apply purchase: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("repository: failed to get affected rows: %w", err)
	}
	if rows == 0 {
		r.log.Warnw("Purchase applied to unknown user", "userID", userID)
		return ErrNotFound
	}

	return nil
}

// GetEntitlementEndForUpdateTx locks the referrer row for the duration of
// the reward transaction.
func (r *postgresUserRepo) GetEntitlementEndForUpdateTx(ctx context.Context, tx *sqlx.Tx, userID string) (*domain.User, error) {
	var u domain.User
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 FOR UPDATE`

	err := tx.GetContext(ctx, &u, query, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.log.Errorw("Failed to lock user row", "error", err, "userID", userID)
		return nil, fmt.Errorf("repository: failed to lock user: %w", err)
	}

	return &u, nil
}

// ApplyRewardTx writes the new entitlement end and referral aggregates.
func (r *postgresUserRepo) ApplyRewardTx(ctx context.Context, tx *sqlx.Tx, userID string, reward *domain.ReferralReward, amountCents int64) error {
	query := `
        UPDATE users SET
            entitlement_end_at = $2,
            referral_count = referral_count + 1,
            referral_revenue_cents = referral_revenue_cents + $3,
            updated_at = $4
        WHERE id = $1`

	res, err := tx.ExecContext(ctx, query, userID, reward.EndsAt, amountCents, time.Now())
	if err != nil {
		r.log.Errorw("Failed to apply reward to user", "error", err, "userID", userID)
		return fmt.Errorf("repository: failed to apply reward: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("repository: failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}
