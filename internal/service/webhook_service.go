package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/opositaprep/checkout-service/internal/db"
	"github.com/opositaprep/checkout-service/internal/domain"
	"github.com/opositaprep/checkout-service/internal/kafka"
	"github.com/opositaprep/checkout-service/internal/metrics"
	"github.com/opositaprep/checkout-service/internal/repository"
	"github.com/opositaprep/checkout-service/pkg/logger"
)

// WebhookService commits verified provider events. Processing is
// idempotent on the session id: a replayed event is acknowledged
// without a second commit.
type WebhookService interface {
	ProcessCheckoutCompleted(ctx context.Context, event domain.CheckoutCompletedEvent) error
	ProcessInvoicePaid(ctx context.Context, event domain.InvoicePaidEvent) error
}

type webhookService struct {
	db       db.TxManager
	subs     repository.SubscriptionRepository
	users    repository.UserRepository
	counters repository.CounterRepository
	rewards  RewardService
	producer kafka.Producer // nil when kafka is disabled
	metrics  metrics.CheckoutMetrics
	log      *logger.Logger
}

// NewWebhookService creates the webhook event processor.
func NewWebhookService(
	dbClient db.TxManager,
	subs repository.SubscriptionRepository,
	users repository.UserRepository,
	counters repository.CounterRepository,
	rewards RewardService,
	producer kafka.Producer,
	checkoutMetrics metrics.CheckoutMetrics,
	log *logger.Logger,
) WebhookService {
	return &webhookService{
		db:       dbClient,
		subs:     subs,
		users:    users,
		counters: counters,
		rewards:  rewards,
		producer: producer,
		metrics:  checkoutMetrics,
		log:      log,
	}
}

func (s *webhookService) ProcessCheckoutCompleted(ctx context.Context, event domain.CheckoutCompletedEvent) error {
	meta := event.Metadata

	if meta.BuyerUserID == "" {
		s.log.Warnw("Checkout event without buyer metadata, ignoring",
			"session_id", event.SessionID)
		return nil
	}
	if meta.Plan == domain.PlanTypeFamilyPack && meta.Tier == 0 {
		s.log.Warnw("Family-pack checkout event with malformed metadata, ignoring",
			"session_id", event.SessionID)
		return nil
	}

	now := time.Now().UTC()
	sub := &domain.Subscription{
		ID:           uuid.New(),
		UserID:       meta.BuyerUserID,
		PlanType:     meta.Plan,
		Tier:         int(meta.Tier),
		SlotCount:    meta.SlotCount,
		BillingCycle: meta.BillingCycle,
		Status:       domain.SubscriptionStatusActive,
		SessionID:    event.SessionID,
		ProviderSubID: event.ProviderSubscriptionID,
		AmountCents:  event.AmountCents,
		Currency:     event.Currency,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("webhook: begin tx: %w", err)
	}
	defer s.db.RollbackTx(tx)

	created, err := s.subs.CreateTx(ctx, tx, sub)
	if err != nil {
		return fmt.Errorf("webhook: create subscription: %w", err)
	}
	if !created {
		s.metrics.IncWebhookDuplicate()
		s.log.Infow("Duplicate checkout event, already processed",
			"session_id", event.SessionID)
		return nil
	}

	if err := s.users.ApplyPurchaseTx(ctx, tx, meta.BuyerUserID, sub); err != nil {
		return fmt.Errorf("webhook: apply purchase: %w", err)
	}

	if meta.Plan == domain.PlanTypeFamilyPack {
		if err := s.counters.IncrementTx(ctx, tx, repository.CounterFamilyPacks, 1); err != nil {
			return fmt.Errorf("webhook: bump counter: %w", err)
		}
	}

	if err := s.db.CommitTx(tx); err != nil {
		return fmt.Errorf("webhook: commit: %w", err)
	}

	s.metrics.IncWebhookProcessed("checkout_completed")
	s.log.Infow("Checkout committed",
		"session_id", event.SessionID,
		"user_id", meta.BuyerUserID,
		"plan", string(meta.Plan),
		"amount_cents", event.AmountCents)

	s.publish(ctx, kafka.TopicSubscriptionActivated, event.SessionID, sub)

	// The purchase is committed; a reward failure must not fail the
	// webhook, it is reported for reconciliation instead.
	if meta.HasReferral() {
		s.applyReward(ctx, event)
	}

	return nil
}

// applyReward runs the referral branch after the purchase commit.
func (s *webhookService) applyReward(ctx context.Context, event domain.CheckoutCompletedEvent) {
	meta := event.Metadata
	grant := domain.RewardGrant{
		ReferrerUserID: meta.ReferrerUserID,
		ReferrerRole:   meta.ReferrerRole,
		BuyerUserID:    meta.BuyerUserID,
		BuyerEmail:     meta.BuyerEmail,
		BuyerRole:      meta.BuyerRole,
		ReferralCode:   meta.ReferralCode,
		AmountCents:    event.AmountCents,
		Currency:       event.Currency,
		SessionID:      event.SessionID,
	}

	reward, err := s.rewards.Apply(ctx, grant)
	if err != nil {
		s.metrics.IncRewardFailed()
		s.log.Errorw("Referral reward failed after committed purchase",
			"session_id", event.SessionID,
			"referrer_user_id", meta.ReferrerUserID,
			"error", err)
		s.publish(ctx, kafka.TopicReferralRewardFailed, event.SessionID, grant)
		return
	}
	if reward == nil {
		return
	}

	s.metrics.IncRewardGranted(string(reward.Type))
	s.publish(ctx, kafka.TopicReferralRewardGranted, event.SessionID, reward)
}

func (s *webhookService) ProcessInvoicePaid(ctx context.Context, event domain.InvoicePaidEvent) error {
	if event.SubscriptionID == "" {
		s.log.Warnw("Invoice event without subscription id, ignoring",
			"invoice_id", event.InvoiceID)
		return nil
	}

	sub, err := s.subs.GetByProviderSubscriptionID(ctx, event.SubscriptionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Renewal for a subscription this service never committed,
			// likely created before the cutover. Acknowledge it.
			s.log.Warnw("Invoice for unknown subscription, ignoring",
				"provider_subscription_id", event.SubscriptionID)
			return nil
		}
		return fmt.Errorf("webhook: load subscription: %w", err)
	}

	if err := s.subs.UpdatePeriodEnd(ctx, sub.ID.String(), event.PeriodEnd); err != nil {
		return fmt.Errorf("webhook: update period end: %w", err)
	}

	s.metrics.IncWebhookProcessed("invoice_paid")
	s.log.Infow("Subscription period extended",
		"subscription_id", sub.ID.String(),
		"provider_subscription_id", event.SubscriptionID,
		"period_end", event.PeriodEnd)
	return nil
}

func (s *webhookService) publish(ctx context.Context, topic, key string, payload any) {
	if s.producer == nil {
		return
	}
	if err := s.producer.Publish(ctx, topic, key, payload); err != nil {
		s.log.Warnw("Failed to publish event", "topic", topic, "key", key, "error", err)
	}
}
