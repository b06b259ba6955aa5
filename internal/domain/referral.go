package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// UserRole is the platform role of a user
type UserRole string

const (
	UserRoleAlumno   UserRole = "alumno"
	UserRoleAcademia UserRole = "academia"
)

// ReferralCodeStatus status of a referral code
type ReferralCodeStatus string

const (
	ReferralCodeStatusActive   ReferralCodeStatus = "active"
	ReferralCodeStatusInactive ReferralCodeStatus = "inactive"
)

// ReferralCode is a capability token tying a purchase to a referring user.
// The checkout flow only reads these records.
type ReferralCode struct {
	Code        string             `json:"code" db:"code"`
	OwnerUserID string             `json:"owner_user_id" db:"owner_user_id"`
	OwnerRole   UserRole           `json:"owner_role" db:"owner_role"`
	Status      ReferralCodeStatus `json:"status" db:"status"`
	CreatedAt   time.Time          `json:"created_at" db:"created_at"`
}

// NormalizeReferralCode trims and uppercases a raw code string.
func NormalizeReferralCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ReferralValidation is the outcome of validating a referral code for a
// buyer. Invalid codes are reported as a value, not a thrown error, so
// checkout can surface a 400 instead of crashing.
type ReferralValidation struct {
	Valid          bool     `json:"valid"`
	ReferrerUserID string   `json:"referrer_user_id,omitempty"`
	ReferrerRole   UserRole `json:"referrer_role,omitempty"`
	Err            error    `json:"-"`
}

// ReferralStatus status of a referral ledger entry
type ReferralStatus string

const (
	ReferralStatusApproved ReferralStatus = "approved"
	// pending/rejected exist for manually created referrals elsewhere in
	// the platform; the checkout flow only writes approved entries.
	ReferralStatusPending  ReferralStatus = "pending"
	ReferralStatusRejected ReferralStatus = "rejected"
)

// Referral is a ledger entry attributing a purchase to a referrer.
// SessionID is the idempotency key: at most one Referral per session.
type Referral struct {
	ID             uuid.UUID      `json:"id" db:"id"`
	ReferrerUserID string         `json:"referrer_user_id" db:"referrer_user_id"`
	ReferrerRole   UserRole       `json:"referrer_role" db:"referrer_role"`
	ReferralCode   string         `json:"referral_code" db:"referral_code"`
	BuyerUserID    string         `json:"buyer_user_id" db:"buyer_user_id"`
	BuyerEmail     string         `json:"buyer_email" db:"buyer_email"`
	BuyerRole      UserRole       `json:"buyer_role" db:"buyer_role"`
	AmountCents    int64          `json:"amount_cents" db:"amount_cents"`
	Currency       string         `json:"currency" db:"currency"`
	SessionID      string         `json:"session_id" db:"session_id"`
	Status         ReferralStatus `json:"status" db:"status"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at" db:"updated_at"`
}

// RewardType kind of reward granted to a referrer
type RewardType string

const (
	RewardTypeMonthsFree RewardType = "months_free"
	RewardTypeYearFree   RewardType = "year_free"
)

// RewardStatus status of a granted reward
type RewardStatus string

const RewardStatusGranted RewardStatus = "granted"

// ReferralReward records one entitlement extension granted to a referrer.
// It spans [StartsAt, EndsAt] for audit/history.
type ReferralReward struct {
	ID         uuid.UUID    `json:"id" db:"id"`
	UserID     string       `json:"user_id" db:"user_id"`
	ReferralID uuid.UUID    `json:"referral_id" db:"referral_id"`
	Type       RewardType   `json:"type" db:"type"`
	Months     int          `json:"months" db:"months"`
	AppliedAt  time.Time    `json:"applied_at" db:"applied_at"`
	StartsAt   time.Time    `json:"starts_at" db:"starts_at"`
	EndsAt     time.Time    `json:"ends_at" db:"ends_at"`
	Status     RewardStatus `json:"status" db:"status"`
}

// RewardRule maps a referrer/buyer role pair to a reward.
type RewardRule struct {
	Type   RewardType
	Months int
}

// RewardRuleFor looks up the reward rule for a role pair. The table is a
// lookup of exact pairs, not a formula; an unmatched pair is a no-op for
// the caller, not an error.
func RewardRuleFor(referrerRole, buyerRole UserRole) (RewardRule, bool) {
	switch {
	case referrerRole == UserRoleAlumno && buyerRole == UserRoleAcademia:
		return RewardRule{Type: RewardTypeYearFree, Months: 12}, true
	case referrerRole == UserRoleAlumno && buyerRole == UserRoleAlumno:
		return RewardRule{Type: RewardTypeMonthsFree, Months: 1}, true
	default:
		return RewardRule{}, false
	}
}

// RewardGrant carries everything the reward applier needs for one grant.
type RewardGrant struct {
	ReferrerUserID string
	ReferrerRole   UserRole
	BuyerUserID    string
	BuyerEmail     string
	BuyerRole      UserRole
	ReferralCode   string
	AmountCents    int64
	Currency       string
	SessionID      string
}
