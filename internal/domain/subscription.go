package domain

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionStatus status of a subscription
type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
)

// Subscription is the entitlement record committed by the webhook
// processor. SessionID is the idempotency key: exactly one Subscription
// exists per provider session id.
type Subscription struct {
	ID               uuid.UUID          `json:"id" db:"id"`
	UserID           string             `json:"user_id" db:"user_id"`
	PlanType         PlanType           `json:"plan_type" db:"plan_type"`
	Tier             int                `json:"tier" db:"tier"`
	SlotCount        int                `json:"slot_count" db:"slot_count"`
	BillingCycle     BillingCycle       `json:"billing_cycle" db:"billing_cycle"`
	Status           SubscriptionStatus `json:"status" db:"status"`
	SessionID        string             `json:"session_id" db:"session_id"`
	ProviderSubID    string             `json:"provider_subscription_id,omitempty" db:"provider_subscription_id"`
	AmountCents      int64              `json:"amount_cents" db:"amount_cents"`
	Currency         string             `json:"currency" db:"currency"`
	CurrentPeriodEnd *time.Time         `json:"current_period_end,omitempty" db:"current_period_end"`
	CreatedAt        time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at" db:"updated_at"`
}
