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

// postgresReferralRepo implements ReferralRepository for PostgreSQL.
type postgresReferralRepo struct {
	db  *sqlx.DB
	log *logger.Logger
}

// NewPostgresReferralRepository creates a referral ledger repository.
func NewPostgresReferralRepository(db *sqlx.DB, log *logger.Logger) ReferralRepository {
	return &postgresReferralRepo{db: db, log: log}
}

// CreateTx inserts the ledger entry with the session id as conflict key,
// mirroring the subscription insert: duplicate deliveries collapse to a
// single atomic no-op.
func (r *postgresReferralRepo) CreateTx(ctx context.Context, tx *sqlx.Tx, ref *domain.Referral) (bool, error) {
	now := time.Now()
	ref.CreatedAt = now
	ref.UpdatedAt = now

	query := `
        INSERT INTO referrals (
            id, referrer_user_id, referrer_role, referral_code,
            buyer_user_id, buyer_email, buyer_role,
            amount_cents, currency, session_id, status, created_at, updated_at
        ) VALUES (
            :id, :referrer_user_id, :referrer_role, :referral_code,
            :buyer_user_id, :buyer_email, :buyer_role,
            :amount_cents, :currency, :session_id, :status, :created_at, :updated_at
        )
        ON CONFLICT (session_id) DO NOTHING`

	res, err := tx.NamedExecContext(ctx, query, ref)
	if err != nil {
		r.log.Errorw("Failed to create referral in DB", "error", err, "sessionID", ref.SessionID)
		return false, fmt.Errorf("repository: failed to create referral: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("repository: failed to get affected rows: %w", err)
	}
	if rows == 0 {
		r.log.Infow("Referral already exists for session, skipping", "sessionID", ref.SessionID)
		return false, nil
	}

	return true, nil
}

// CreateRewardTx records a granted reward inside tx.
func (r *postgresReferralRepo) CreateRewardTx(ctx context.Context, tx *sqlx.Tx, reward *domain.ReferralReward) error {
	query := `
        INSERT INTO referral_rewards (
            id, user_id, referral_id, type, months,
            applied_at, starts_at, ends_at, status
        ) VALUES (
            :id, :user_id, :referral_id, :type, :months,
            :applied_at, :starts_at, :ends_at, :status
        )`

	if _, err := tx.NamedExecContext(ctx, query, reward); err != nil {
		r.log.Errorw("Failed to create referral reward in DB", "error", err, "referralID", reward.ReferralID)
		return fmt.Errorf("repository: failed to create referral reward: %w", err)
	}

	return nil
}

// GetBySessionID returns the ledger entry for a session.
func (r *postgresReferralRepo) GetBySessionID(ctx context.Context, sessionID string) (*domain.Referral, error) {
	var ref domain.Referral
	query := `
        SELECT id, referrer_user_id, referrer_role, referral_code,
               buyer_user_id, buyer_email, buyer_role,
               amount_cents, currency, session_id, status, created_at, updated_at
        FROM referrals
        WHERE session_id = $1`

	err := r.db.GetContext(ctx, &ref, query, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.log.Errorw("Failed to get referral by session ID", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("repository: failed to get referral by session ID: %w", err)
	}

	return &ref, nil
}
