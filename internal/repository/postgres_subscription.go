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

// postgresSubscriptionRepo implements SubscriptionRepository for PostgreSQL.
type postgresSubscriptionRepo struct {
	db  *sqlx.DB
	log *logger.Logger
}

// NewPostgresSubscriptionRepository creates a subscription repository.
func NewPostgresSubscriptionRepository(db *sqlx.DB, log *logger.Logger) SubscriptionRepository {
	return &postgresSubscriptionRepo{db: db, log: log}
}

// CreateTx inserts the subscription with the session id as conflict key.
// ON CONFLICT DO NOTHING makes the existence check and the insert one
// atomic statement, so a racing duplicate delivery cannot slip between
// a read and a write.
func (r *postgresSubscriptionRepo) CreateTx(ctx context.Context, tx *sqlx.Tx, sub *domain.Subscription) (bool, error) {
	now := time.Now()
	sub.CreatedAt = now
	sub.UpdatedAt = now

	query := `
        INSERT INTO subscriptions (
            id, user_id, plan_type, tier, slot_count, billing_cycle, status,
            session_id, provider_subscription_id, amount_cents, currency,
            current_period_end, created_at, updated_at
        ) VALUES (
            :id, :user_id, :plan_type, :tier, :slot_count, :billing_cycle, :status,
            :session_id, :provider_subscription_id, :amount_cents, :currency,
            :current_period_end, :created_at, :updated_at
        )
        ON CONFLICT (session_id) DO NOTHING`

	res, err := tx.NamedExecContext(ctx, query, sub)
	if err != nil {
		r.log.Errorw("Failed to create subscription in DB", "error", err, "sessionID", sub.SessionID, "userID", sub.UserID)
		return false, fmt.Errorf("repository: failed to create subscription: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("repository: failed to get affected rows: %w", err)
	}
	if rows == 0 {
		r.log.Infow("Subscription already exists for session, skipping", "sessionID", sub.SessionID)
		return false, nil
	}

	r.log.Debugw("Subscription created", "sessionID", sub.SessionID, "userID", sub.UserID)
	return true, nil
}

const subscriptionColumns = `
    id, user_id, plan_type, tier, slot_count, billing_cycle, status,
    session_id, provider_subscription_id, amount_cents, currency,
    current_period_end, created_at, updated_at`

// GetBySessionID returns the subscription committed for a session.
func (r *postgresSubscriptionRepo) GetBySessionID(ctx context.Context, sessionID string) (*domain.Subscription, error) {
	var sub domain.Subscription
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE session_id = $1`

	err := r.db.GetContext(ctx, &sub, query, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.log.Errorw("Failed to get subscription by session ID", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("repository: failed to get subscription by session ID: %w", err)
	}

	return &sub, nil
}

// GetByProviderSubscriptionID returns the subscription a recurring
// invoice belongs to.
func (r *postgresSubscriptionRepo) GetByProviderSubscriptionID(ctx context.Context, providerSubID string) (*domain.Subscription, error) {
	var sub domain.Subscription
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE provider_subscription_id = $1`

	err := r.db.GetContext(ctx, &sub, query, providerSubID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.log.Errorw("Failed to get subscription by provider ID", "error", err, "providerSubID", providerSubID)
		return nil, fmt.Errorf("repository: failed to get subscription by provider ID: %w", err)
	}

	return &sub, nil
}

// UpdatePeriodEnd extends a recurring subscription's billing period.
func (r *postgresSubscriptionRepo) UpdatePeriodEnd(ctx context.Context, id string, periodEndUnix int64) error {
	query := `
        UPDATE subscriptions SET
            current_period_end = $2,
            updated_at = $3
        WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id, time.Unix(periodEndUnix, 0), time.Now())
	if err != nil {
		r.log.Errorw("Failed to update subscription period", "error", err, "subscriptionID", id)
		return fmt.Errorf("repository: failed to update subscription period: %w", err)
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
