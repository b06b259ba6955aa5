package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/opositaprep/checkout-service/internal/domain"
)

// ReferralCodeRepository is read-only for the checkout flow.
type ReferralCodeRepository interface {
	// GetByCode returns the record for a normalized code, or ErrNotFound.
	GetByCode(ctx context.Context, code string) (*domain.ReferralCode, error)
}

// UserRepository reads and mutates user records.
type UserRepository interface {
	// GetByID returns a user by id, or ErrNotFound.
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// ApplyPurchaseTx updates the buyer's plan fields inside tx.
	ApplyPurchaseTx(ctx context.Context, tx *sqlx.Tx, userID string, sub *domain.Subscription) error

	// GetEntitlementEndForUpdateTx reads a user's entitlement end with a
	// row lock so concurrent reward grants serialize.
	GetEntitlementEndForUpdateTx(ctx context.Context, tx *sqlx.Tx, userID string) (*domain.User, error)

	// ApplyRewardTx sets the new entitlement end and bumps the referral
	// aggregates inside tx.
	ApplyRewardTx(ctx context.Context, tx *sqlx.Tx, userID string, reward *domain.ReferralReward, amountCents int64) error
}

// SubscriptionRepository persists subscriptions keyed by session id.
type SubscriptionRepository interface {
	// CreateTx inserts the subscription unless one already exists for the
	// same session id. Returns false when the insert was a no-op, which is
	// the idempotency signal for duplicate webhook deliveries.
	CreateTx(ctx context.Context, tx *sqlx.Tx, sub *domain.Subscription) (bool, error)

	// GetBySessionID returns the subscription for a session, or ErrNotFound.
	GetBySessionID(ctx context.Context, sessionID string) (*domain.Subscription, error)

	// GetByProviderSubscriptionID returns the subscription a recurring
	// invoice belongs to, or ErrNotFound.
	GetByProviderSubscriptionID(ctx context.Context, providerSubID string) (*domain.Subscription, error)

	// UpdatePeriodEnd extends a recurring subscription's current period.
	UpdatePeriodEnd(ctx context.Context, id string, periodEndUnix int64) error
}

// ReferralRepository persists the referral ledger and reward history.
type ReferralRepository interface {
	// CreateTx inserts the ledger entry unless one already exists for the
	// same session id. Returns false on the duplicate no-op.
	CreateTx(ctx context.Context, tx *sqlx.Tx, ref *domain.Referral) (bool, error)

	// CreateRewardTx records a granted reward inside tx.
	CreateRewardTx(ctx context.Context, tx *sqlx.Tx, reward *domain.ReferralReward) error

	// GetBySessionID returns the ledger entry for a session, or ErrNotFound.
	GetBySessionID(ctx context.Context, sessionID string) (*domain.Referral, error)
}

// CounterRepository maintains named sold counters.
type CounterRepository interface {
	// IncrementTx adds delta to the named counter inside tx, creating the
	// row on first use.
	IncrementTx(ctx context.Context, tx *sqlx.Tx, name string, delta int64) error
}

// PricingConfigRepository serves pricing overrides. An empty table means
// no overrides and the caller falls back to the hardcoded defaults.
type PricingConfigRepository interface {
	// GetTable returns the stored pricing table, or ErrNotFound when no
	// overrides exist.
	GetTable(ctx context.Context) (*domain.PricingTable, error)
}
