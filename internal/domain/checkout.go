package domain

import "strconv"

// PlanType identifies the product being purchased
type PlanType string

const (
	PlanTypeFamilyPack PlanType = "family_pack"
	PlanTypeAssistant  PlanType = "assistant"
)

// CheckoutMode selects the provider session mode: one-time payment for
// family-pack/assistant purchases, subscription for recurring plans.
type CheckoutMode string

const (
	CheckoutModePayment      CheckoutMode = "payment"
	CheckoutModeSubscription CheckoutMode = "subscription"
)

// Session metadata keys. These round-trip through the payment provider
// exactly so the webhook can reconstruct intent without re-querying the
// pricing tables.
const (
	MetaPlan             = "plan"
	MetaTier             = "tier"
	MetaBillingCycle     = "billingCycle"
	MetaAddonPublicCount = "addonPublicCount"
	MetaSlotCount        = "slotCount"
	MetaBuyerUserID      = "buyerUserId"
	MetaBuyerEmail       = "buyerEmail"
	MetaBuyerRole        = "buyerRole"
	MetaReferralCode     = "referralCode"
	MetaReferrerUserID   = "referrerUserId"
	MetaReferrerRole     = "referrerRole"
)

// SessionMetadata is the metadata bag attached to a checkout session.
type SessionMetadata struct {
	Plan             PlanType
	Tier             Tier
	BillingCycle     BillingCycle
	AddonPublicCount int
	SlotCount        int
	BuyerUserID      string
	BuyerEmail       string
	BuyerRole        UserRole
	ReferralCode     string
	ReferrerUserID   string
	ReferrerRole     UserRole
}

// ToMap encodes the metadata bag as the string map the provider stores.
// Referral keys are omitted when no referral is attached.
func (m SessionMetadata) ToMap() map[string]string {
	out := map[string]string{
		MetaPlan:             string(m.Plan),
		MetaTier:             strconv.Itoa(int(m.Tier)),
		MetaBillingCycle:     string(m.BillingCycle),
		MetaAddonPublicCount: strconv.Itoa(m.AddonPublicCount),
		MetaSlotCount:        strconv.Itoa(m.SlotCount),
		MetaBuyerUserID:      m.BuyerUserID,
		MetaBuyerEmail:       m.BuyerEmail,
		MetaBuyerRole:        string(m.BuyerRole),
	}
	if m.ReferralCode != "" {
		out[MetaReferralCode] = m.ReferralCode
		out[MetaReferrerUserID] = m.ReferrerUserID
		out[MetaReferrerRole] = string(m.ReferrerRole)
	}
	return out
}

// SessionMetadataFromMap decodes a provider metadata map. Unparsable
// numeric fields decode as zero; the webhook treats a zero tier on a
// family-pack session as malformed metadata.
func SessionMetadataFromMap(in map[string]string) SessionMetadata {
	tier, _ := strconv.Atoi(in[MetaTier])
	addons, _ := strconv.Atoi(in[MetaAddonPublicCount])
	slots, _ := strconv.Atoi(in[MetaSlotCount])
	return SessionMetadata{
		Plan:             PlanType(in[MetaPlan]),
		Tier:             Tier(tier),
		BillingCycle:     BillingCycle(in[MetaBillingCycle]),
		AddonPublicCount: addons,
		SlotCount:        slots,
		BuyerUserID:      in[MetaBuyerUserID],
		BuyerEmail:       in[MetaBuyerEmail],
		BuyerRole:        UserRole(in[MetaBuyerRole]),
		ReferralCode:     in[MetaReferralCode],
		ReferrerUserID:   in[MetaReferrerUserID],
		ReferrerRole:     UserRole(in[MetaReferrerRole]),
	}
}

// HasReferral reports whether a referral is attached to the session.
func (m SessionMetadata) HasReferral() bool {
	return m.ReferralCode != "" && m.ReferrerUserID != ""
}

// FamilyPackCheckoutRequest is the validated input for a family-pack checkout.
type FamilyPackCheckoutRequest struct {
	Tier             Tier
	BillingCycle     BillingCycle
	AddonPublicCount int
	ReferralCode     string
	UserID           string
	UserEmail        string
	UserRole         UserRole
}

// AssistantCheckoutRequest is the validated input for a single-assistant
// purchase. Price comes from the assistant catalog, caller-supplied.
type AssistantCheckoutRequest struct {
	AssistantID   string
	AssistantName string
	PriceCents    int64
	BillingCycle  BillingCycle
	Recurring     bool
	ReferralCode  string
	UserID        string
	UserEmail     string
	UserRole      UserRole
}

// CheckoutResult is what the UI needs to redirect into hosted checkout.
type CheckoutResult struct {
	URL       string `json:"url"`
	SessionID string `json:"sessionId"`
	Fallback  bool   `json:"fallback,omitempty"`
	Message   string `json:"message,omitempty"`
}

// CheckoutCompletedEvent is a verified checkout.session.completed event
// translated out of the provider's wire format.
type CheckoutCompletedEvent struct {
	SessionID string
	Mode      CheckoutMode
	// ProviderSubscriptionID is set for subscription-mode sessions and
	// links later invoice renewals back to this purchase.
	ProviderSubscriptionID string
	AmountCents            int64
	Currency               string
	Metadata               SessionMetadata
}

// InvoicePaidEvent is a verified invoice.payment_succeeded event for a
// recurring subscription renewal.
type InvoicePaidEvent struct {
	InvoiceID      string
	SubscriptionID string
	AmountCents    int64
	Currency       string
	PeriodEnd      int64 // unix seconds
}
