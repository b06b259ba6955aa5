package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/opositaprep/checkout-service/internal/domain"
	"github.com/opositaprep/checkout-service/pkg/logger"
)

// postgresReferralCodeRepo implements ReferralCodeRepository for PostgreSQL.
type postgresReferralCodeRepo struct {
	db  *sqlx.DB
	log *logger.Logger
}

// NewPostgresReferralCodeRepository creates a referral-code repository.
func NewPostgresReferralCodeRepository(db *sqlx.DB, log *logger.Logger) ReferralCodeRepository {
	return &postgresReferralCodeRepo{db: db, log: log}
}

// GetByCode returns the record for an already-normalized code.
func (r *postgresReferralCodeRepo) GetByCode(ctx context.Context, code string) (*domain.ReferralCode, error) {
	var rc domain.ReferralCode
	query := `
        SELECT code, owner_user_id, owner_role, status, created_at
        FROM referral_codes
        WHERE code = $1`

	err := r.db.GetContext(ctx, &rc, query, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.log.Debugw("Referral code not found", "code", code)
			return nil, ErrNotFound
		}
		r.log.Errorw("Failed to get referral code from DB", "error", err, "code", code)
		return nil, fmt.Errorf("repository: failed to get referral code: %w", err)
	}

	return &rc, nil
}
