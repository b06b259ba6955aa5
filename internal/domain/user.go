package domain

import "time"

// User is the buyer/referrer record. The checkout flow updates plan
// fields on purchase and entitlement/counter fields on reward grants.
type User struct {
	ID           string   `json:"id" db:"id"`
	Email        string   `json:"email" db:"email"`
	Role         UserRole `json:"role" db:"role"`
	Plan         PlanType `json:"plan" db:"plan"`
	Tier         int      `json:"tier" db:"tier"`
	SlotCount    int      `json:"slot_count" db:"slot_count"`
	BillingCycle string   `json:"billing_cycle" db:"billing_cycle"`
	PlanStatus   string   `json:"plan_status" db:"plan_status"`

	// EntitlementEndAt is monotonically non-decreasing: each reward pushes
	// it forward from max(now, current end). Nil means no earned window.
	EntitlementEndAt     *time.Time `json:"entitlement_end_at,omitempty" db:"entitlement_end_at"`
	ReferralCount        int        `json:"referral_count" db:"referral_count"`
	ReferralRevenueCents int64      `json:"referral_revenue_cents" db:"referral_revenue_cents"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
