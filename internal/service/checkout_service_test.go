package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opositaprep/checkout-service/internal/config"
	"github.com/opositaprep/checkout-service/internal/domain"
)

func checkoutConfig() *config.Config {
	cfg := &config.Config{}
	cfg.App.Env = "development"
	cfg.Stripe.SuccessURL = "https://app.example.com/success"
	cfg.Stripe.CancelURL = "https://app.example.com/cancel"
	cfg.Stripe.TimeoutSeconds = 2
	return cfg
}

func newCheckoutFixture(provider *fakeProvider, validator ReferralValidator, cfg *config.Config) CheckoutService {
	pricing := NewPricingService(&fakePricingConfigRepo{}, testLogger())
	return NewCheckoutService(pricing, validator, provider, noopMetrics{}, cfg, testLogger())
}

func familyPackRequest() domain.FamilyPackCheckoutRequest {
	return domain.FamilyPackCheckoutRequest{
		Tier:             domain.Tier5,
		BillingCycle:     domain.BillingCycleMonthly,
		AddonPublicCount: 2,
		UserID:           "user-buyer",
		UserEmail:        "buyer@example.com",
		UserRole:         domain.UserRoleAlumno,
	}
}

func TestFamilyPackCheckoutBuildsSession(t *testing.T) {
	provider := &fakeProvider{}
	svc := newCheckoutFixture(provider, &fakeValidator{}, checkoutConfig())

	result, err := svc.CreateFamilyPackCheckout(context.Background(), familyPackRequest())
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.example.com/cs_test_123", result.URL)
	assert.Equal(t, "cs_test_123", result.SessionID)
	assert.False(t, result.Fallback)

	require.Len(t, provider.calls, 1)
	call := provider.calls[0]
	assert.Equal(t, domain.CheckoutModePayment, call.Mode)
	assert.Equal(t, int64(6000), call.AmountCents)
	assert.Equal(t, "eur", call.Currency)
	assert.Equal(t, "buyer@example.com", call.CustomerEmail)
	assert.NotEmpty(t, call.IdempotencyKey)

	// Metadata wears everything the webhook needs to reconstruct intent.
	assert.Equal(t, "family_pack", call.Metadata[domain.MetaPlan])
	assert.Equal(t, "5", call.Metadata[domain.MetaTier])
	assert.Equal(t, "monthly", call.Metadata[domain.MetaBillingCycle])
	assert.Equal(t, "2", call.Metadata[domain.MetaAddonPublicCount])
	assert.Equal(t, "7", call.Metadata[domain.MetaSlotCount])
	assert.Equal(t, "user-buyer", call.Metadata[domain.MetaBuyerUserID])
	assert.NotContains(t, call.Metadata, domain.MetaReferralCode)
}

func TestFamilyPackCheckoutMissingIdentity(t *testing.T) {
	provider := &fakeProvider{}
	svc := newCheckoutFixture(provider, &fakeValidator{}, checkoutConfig())

	req := familyPackRequest()
	req.UserID = ""
	_, err := svc.CreateFamilyPackCheckout(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrMissingFields)

	req = familyPackRequest()
	req.UserEmail = ""
	_, err = svc.CreateFamilyPackCheckout(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrMissingFields)

	assert.Empty(t, provider.calls)
}

func TestFamilyPackCheckoutInvalidTier(t *testing.T) {
	provider := &fakeProvider{}
	svc := newCheckoutFixture(provider, &fakeValidator{}, checkoutConfig())

	req := familyPackRequest()
	req.Tier = domain.Tier(4)
	_, err := svc.CreateFamilyPackCheckout(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrInvalidTier)
	assert.Empty(t, provider.calls)
}

func TestFamilyPackCheckoutValidReferralStampsMetadata(t *testing.T) {
	provider := &fakeProvider{}
	validator := &fakeValidator{result: domain.ReferralValidation{
		Valid:          true,
		ReferrerUserID: "user-maria",
		ReferrerRole:   domain.UserRoleAlumno,
	}}
	svc := newCheckoutFixture(provider, validator, checkoutConfig())

	req := familyPackRequest()
	req.ReferralCode = " maria2024 "
	_, err := svc.CreateFamilyPackCheckout(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, provider.calls, 1)
	meta := provider.calls[0].Metadata
	assert.Equal(t, "MARIA2024", meta[domain.MetaReferralCode])
	assert.Equal(t, "user-maria", meta[domain.MetaReferrerUserID])
	assert.Equal(t, "alumno", meta[domain.MetaReferrerRole])
}

func TestFamilyPackCheckoutBadReferralAbortsBeforeProvider(t *testing.T) {
	provider := &fakeProvider{}
	validator := &fakeValidator{result: domain.ReferralValidation{
		Valid: false,
		Err:   domain.ErrReferralInactive,
	}}
	svc := newCheckoutFixture(provider, validator, checkoutConfig())

	req := familyPackRequest()
	req.ReferralCode = "OLDCODE"
	_, err := svc.CreateFamilyPackCheckout(context.Background(), req)

	assert.ErrorIs(t, err, domain.ErrReferralInactive)
	assert.Empty(t, provider.calls)
}

func TestCheckoutProviderFailureWithoutFallback(t *testing.T) {
	provider := &fakeProvider{err: errFakeDB}
	svc := newCheckoutFixture(provider, &fakeValidator{}, checkoutConfig())

	_, err := svc.CreateFamilyPackCheckout(context.Background(), familyPackRequest())
	assert.Error(t, err)
}

func TestCheckoutProviderFailureServesFallbackWhenEnabled(t *testing.T) {
	provider := &fakeProvider{err: errFakeDB}
	cfg := checkoutConfig()
	cfg.Checkout.FallbackEnabled = true
	cfg.Checkout.FallbackURL = "https://buy.example.com/static-link"
	svc := newCheckoutFixture(provider, &fakeValidator{}, cfg)

	result, err := svc.CreateFamilyPackCheckout(context.Background(), familyPackRequest())
	require.NoError(t, err)
	assert.True(t, result.Fallback)
	assert.Equal(t, "https://buy.example.com/static-link", result.URL)
	assert.Empty(t, result.SessionID)
	assert.NotEmpty(t, result.Message)
}

func TestAssistantCheckoutOneTime(t *testing.T) {
	provider := &fakeProvider{}
	svc := newCheckoutFixture(provider, &fakeValidator{}, checkoutConfig())

	result, err := svc.CreateAssistantCheckout(context.Background(), domain.AssistantCheckoutRequest{
		AssistantID:   "asst-constitucional",
		AssistantName: "Asistente Derecho Constitucional",
		PriceCents:    1500,
		UserID:        "user-buyer",
		UserEmail:     "buyer@example.com",
		UserRole:      domain.UserRoleAlumno,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result.URL)

	require.Len(t, provider.calls, 1)
	call := provider.calls[0]
	assert.Equal(t, domain.CheckoutModePayment, call.Mode)
	assert.Equal(t, int64(1500), call.AmountCents)
	assert.Equal(t, "assistant", call.Metadata[domain.MetaPlan])
	assert.Equal(t, "1", call.Metadata[domain.MetaSlotCount])
	assert.Empty(t, call.RecurringInterval)
}

func TestAssistantCheckoutRecurring(t *testing.T) {
	provider := &fakeProvider{}
	svc := newCheckoutFixture(provider, &fakeValidator{}, checkoutConfig())

	_, err := svc.CreateAssistantCheckout(context.Background(), domain.AssistantCheckoutRequest{
		AssistantID:   "asst-constitucional",
		AssistantName: "Asistente Derecho Constitucional",
		PriceCents:    1500,
		BillingCycle:  domain.BillingCycleAnnual,
		Recurring:     true,
		UserID:        "user-buyer",
		UserEmail:     "buyer@example.com",
	})
	require.NoError(t, err)

	require.Len(t, provider.calls, 1)
	call := provider.calls[0]
	assert.Equal(t, domain.CheckoutModeSubscription, call.Mode)
	assert.Equal(t, "year", call.RecurringInterval)
}

func TestAssistantCheckoutRejectsBadInput(t *testing.T) {
	provider := &fakeProvider{}
	svc := newCheckoutFixture(provider, &fakeValidator{}, checkoutConfig())

	_, err := svc.CreateAssistantCheckout(context.Background(), domain.AssistantCheckoutRequest{
		AssistantID: "asst-x",
		PriceCents:  1500,
		UserID:      "user-buyer",
	})
	assert.ErrorIs(t, err, domain.ErrMissingFields)

	_, err = svc.CreateAssistantCheckout(context.Background(), domain.AssistantCheckoutRequest{
		AssistantID:   "asst-x",
		AssistantName: "X",
		PriceCents:    0,
		UserID:        "user-buyer",
		UserEmail:     "buyer@example.com",
	})
	assert.ErrorIs(t, err, domain.ErrMissingFields)

	_, err = svc.CreateAssistantCheckout(context.Background(), domain.AssistantCheckoutRequest{
		AssistantID:   "asst-x",
		AssistantName: "X",
		PriceCents:    1500,
		BillingCycle:  domain.BillingCycle("weekly"),
		UserID:        "user-buyer",
		UserEmail:     "buyer@example.com",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidCycle)

	assert.Empty(t, provider.calls)
}
