package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/opositaprep/checkout-service/internal/config"
	"github.com/opositaprep/checkout-service/internal/domain"
	stripeintegration "github.com/opositaprep/checkout-service/internal/integration/stripe"
	"github.com/opositaprep/checkout-service/internal/metrics"
	"github.com/opositaprep/checkout-service/pkg/logger"
)

// CheckoutService builds hosted checkout sessions for family packs and
// single assistants.
type CheckoutService interface {
	CreateFamilyPackCheckout(ctx context.Context, req domain.FamilyPackCheckoutRequest) (*domain.CheckoutResult, error)
	CreateAssistantCheckout(ctx context.Context, req domain.AssistantCheckoutRequest) (*domain.CheckoutResult, error)
}

type checkoutService struct {
	pricing   PricingService
	referrals ReferralValidator
	provider  stripeintegration.Client
	metrics   metrics.CheckoutMetrics
	cfg       *config.Config
	log       *logger.Logger
}

// NewCheckoutService creates the checkout session builder.
func NewCheckoutService(
	pricing PricingService,
	referrals ReferralValidator,
	provider stripeintegration.Client,
	checkoutMetrics metrics.CheckoutMetrics,
	cfg *config.Config,
	log *logger.Logger,
) CheckoutService {
	return &checkoutService{
		pricing:   pricing,
		referrals: referrals,
		provider:  provider,
		metrics:   checkoutMetrics,
		cfg:       cfg,
		log:       log,
	}
}

func (s *checkoutService) CreateFamilyPackCheckout(ctx context.Context, req domain.FamilyPackCheckoutRequest) (*domain.CheckoutResult, error) {
	if req.UserID == "" || req.UserEmail == "" {
		return nil, domain.ErrMissingFields
	}

	quote, err := s.pricing.Quote(ctx, req.Tier, req.BillingCycle, req.AddonPublicCount)
	if err != nil {
		s.metrics.IncCheckoutFailed(string(domain.PlanTypeFamilyPack), "pricing")
		return nil, err
	}

	meta := domain.SessionMetadata{
		Plan:             domain.PlanTypeFamilyPack,
		Tier:             quote.Tier,
		BillingCycle:     quote.Cycle,
		AddonPublicCount: quote.AddonCount,
		SlotCount:        quote.Slots,
		BuyerUserID:      req.UserID,
		BuyerEmail:       req.UserEmail,
		BuyerRole:        req.UserRole,
	}

	// The referral gate runs before any provider call: a bad code must
	// abort checkout rather than create an unattributed session.
	if req.ReferralCode != "" {
		validation := s.referrals.Validate(ctx, req.ReferralCode, req.UserID)
		if !validation.Valid {
			s.metrics.IncCheckoutFailed(string(domain.PlanTypeFamilyPack), "referral")
			return nil, validation.Err
		}
		meta.ReferralCode = domain.NormalizeReferralCode(req.ReferralCode)
		meta.ReferrerUserID = validation.ReferrerUserID
		meta.ReferrerRole = validation.ReferrerRole
	}

	productName := fmt.Sprintf("Pack Familiar %d asistentes (%s)", quote.Slots, quote.Cycle)

	return s.createSession(ctx, domain.PlanTypeFamilyPack, stripeintegration.CheckoutSessionParams{
		Mode:           domain.CheckoutModePayment,
		AmountCents:    quote.TotalCents,
		Currency:       quote.Currency,
		ProductName:    productName,
		SuccessURL:     s.cfg.Stripe.SuccessURL,
		CancelURL:      s.cfg.Stripe.CancelURL,
		CustomerEmail:  req.UserEmail,
		IdempotencyKey: uuid.New().String(),
		Metadata:       meta.ToMap(),
	})
}

func (s *checkoutService) CreateAssistantCheckout(ctx context.Context, req domain.AssistantCheckoutRequest) (*domain.CheckoutResult, error) {
	if req.UserID == "" || req.UserEmail == "" || req.AssistantID == "" {
		return nil, domain.ErrMissingFields
	}
	if req.PriceCents <= 0 {
		return nil, domain.ErrMissingFields
	}

	cycle := req.BillingCycle
	if cycle == "" {
		cycle = domain.BillingCycleMonthly
	}
	if cycle != domain.BillingCycleMonthly && cycle != domain.BillingCycleAnnual {
		return nil, domain.ErrInvalidCycle
	}

	meta := domain.SessionMetadata{
		Plan:         domain.PlanTypeAssistant,
		BillingCycle: cycle,
		SlotCount:    1,
		BuyerUserID:  req.UserID,
		BuyerEmail:   req.UserEmail,
		BuyerRole:    req.UserRole,
	}

	if req.ReferralCode != "" {
		validation := s.referrals.Validate(ctx, req.ReferralCode, req.UserID)
		if !validation.Valid {
			s.metrics.IncCheckoutFailed(string(domain.PlanTypeAssistant), "referral")
			return nil, validation.Err
		}
		meta.ReferralCode = domain.NormalizeReferralCode(req.ReferralCode)
		meta.ReferrerUserID = validation.ReferrerUserID
		meta.ReferrerRole = validation.ReferrerRole
	}

	params := stripeintegration.CheckoutSessionParams{
		Mode:           domain.CheckoutModePayment,
		AmountCents:    req.PriceCents,
		Currency:       "eur",
		ProductName:    req.AssistantName,
		SuccessURL:     s.cfg.Stripe.SuccessURL,
		CancelURL:      s.cfg.Stripe.CancelURL,
		CustomerEmail:  req.UserEmail,
		IdempotencyKey: uuid.New().String(),
		Metadata:       meta.ToMap(),
	}
	if req.Recurring {
		params.Mode = domain.CheckoutModeSubscription
		params.RecurringInterval = "month"
		if cycle == domain.BillingCycleAnnual {
			params.RecurringInterval = "year"
		}
	}

	return s.createSession(ctx, domain.PlanTypeAssistant, params)
}

// createSession calls the provider with retry and a hard deadline, and
// falls back to the static payment link when enabled.
func (s *checkoutService) createSession(ctx context.Context, plan domain.PlanType, params stripeintegration.CheckoutSessionParams) (*domain.CheckoutResult, error) {
	timeout := time.Duration(s.cfg.Stripe.TimeoutSeconds) * time.Second
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var session *stripeintegration.CheckoutSession
	operation := func() error {
		var err error
		session, err = s.provider.CreateCheckoutSession(callCtx, params)
		if err != nil {
			if !stripeintegration.IsRetryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		return nil
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 500 * time.Millisecond
	expBackoff.MaxInterval = 3 * time.Second

	err := backoff.Retry(operation, backoff.WithContext(expBackoff, callCtx))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			err = domain.ErrProviderTimeout
		}
		s.log.Errorw("Failed to create checkout session", "plan", string(plan), "error", err)

		if s.cfg.Checkout.FallbackEnabled && s.cfg.Checkout.FallbackURL != "" {
			s.metrics.IncCheckoutFallback(string(plan))
			s.log.Warnw("Serving fallback payment link", "plan", string(plan))
			return &domain.CheckoutResult{
				URL:      s.cfg.Checkout.FallbackURL,
				Fallback: true,
				Message:  "checkout degraded, using fallback payment link",
			}, nil
		}

		s.metrics.IncCheckoutFailed(string(plan), "provider")
		return nil, err
	}

	s.metrics.IncCheckoutCreated(string(plan))
	s.metrics.ObserveCheckoutAmount(params.AmountCents, string(plan))
	s.log.Infow("Checkout session created",
		"plan", string(plan),
		"session_id", session.ID,
		"amount_cents", params.AmountCents,
		"mode", string(params.Mode),
	)

	return &domain.CheckoutResult{
		URL:       session.URL,
		SessionID: session.ID,
	}, nil
}
