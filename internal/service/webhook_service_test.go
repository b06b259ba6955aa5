package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opositaprep/checkout-service/internal/domain"
	"github.com/opositaprep/checkout-service/internal/kafka"
	"github.com/opositaprep/checkout-service/internal/repository"
)

type webhookFixture struct {
	svc      WebhookService
	tx       *fakeTxManager
	subs     *fakeSubscriptionRepo
	users    *fakeUserRepo
	counters *fakeCounterRepo
	rewards  *fakeRewardService
	producer *fakeProducer
}

func newWebhookFixture() *webhookFixture {
	f := &webhookFixture{
		tx:       &fakeTxManager{},
		subs:     newFakeSubscriptionRepo(),
		users:    &fakeUserRepo{users: map[string]*domain.User{"user-buyer": {ID: "user-buyer", Email: "buyer@example.com"}}},
		counters: newFakeCounterRepo(),
		rewards:  &fakeRewardService{},
		producer: newFakeProducer(),
	}
	f.svc = NewWebhookService(f.tx, f.subs, f.users, f.counters, f.rewards, f.producer, noopMetrics{}, testLogger())
	return f
}

func familyPackEvent(sessionID string) domain.CheckoutCompletedEvent {
	return domain.CheckoutCompletedEvent{
		SessionID:   sessionID,
		Mode:        domain.CheckoutModePayment,
		AmountCents: 6000,
		Currency:    "eur",
		Metadata: domain.SessionMetadata{
			Plan:             domain.PlanTypeFamilyPack,
			Tier:             domain.Tier5,
			BillingCycle:     domain.BillingCycleMonthly,
			AddonPublicCount: 2,
			SlotCount:        7,
			BuyerUserID:      "user-buyer",
			BuyerEmail:       "buyer@example.com",
			BuyerRole:        domain.UserRoleAlumno,
		},
	}
}

func TestProcessCheckoutCommitsPurchase(t *testing.T) {
	f := newWebhookFixture()

	err := f.svc.ProcessCheckoutCompleted(context.Background(), familyPackEvent("cs_1"))
	require.NoError(t, err)

	sub, err := f.subs.GetBySessionID(context.Background(), "cs_1")
	require.NoError(t, err)
	assert.Equal(t, "user-buyer", sub.UserID)
	assert.Equal(t, 5, sub.Tier)
	assert.Equal(t, int64(6000), sub.AmountCents)
	assert.Equal(t, domain.SubscriptionStatusActive, sub.Status)

	assert.Equal(t, []string{"user-buyer"}, f.users.purchases)
	assert.Equal(t, int64(1), f.counters.counts[repository.CounterFamilyPacks])
	assert.Equal(t, 1, f.tx.commits)
	assert.Equal(t, []string{"cs_1"}, f.producer.messages[kafka.TopicSubscriptionActivated])
}

func TestProcessCheckoutReplayIsNoOp(t *testing.T) {
	f := newWebhookFixture()
	event := familyPackEvent("cs_2")
	event.Metadata.ReferralCode = "MARIA2024"
	event.Metadata.ReferrerUserID = "user-maria"
	event.Metadata.ReferrerRole = domain.UserRoleAlumno

	require.NoError(t, f.svc.ProcessCheckoutCompleted(context.Background(), event))
	require.NoError(t, f.svc.ProcessCheckoutCompleted(context.Background(), event))
	require.NoError(t, f.svc.ProcessCheckoutCompleted(context.Background(), event))

	// Exactly one commit, one purchase, one counter bump, one reward grant.
	assert.Equal(t, 1, f.tx.commits)
	assert.Len(t, f.users.purchases, 1)
	assert.Equal(t, int64(1), f.counters.counts[repository.CounterFamilyPacks])
	assert.Len(t, f.rewards.grants, 1)
}

func TestProcessCheckoutReferralBranchRunsAfterCommit(t *testing.T) {
	f := newWebhookFixture()
	f.rewards.reward = &domain.ReferralReward{Type: domain.RewardTypeMonthsFree, Months: 1}

	event := familyPackEvent("cs_3")
	event.Metadata.ReferralCode = "MARIA2024"
	event.Metadata.ReferrerUserID = "user-maria"
	event.Metadata.ReferrerRole = domain.UserRoleAlumno

	require.NoError(t, f.svc.ProcessCheckoutCompleted(context.Background(), event))

	require.Len(t, f.rewards.grants, 1)
	grant := f.rewards.grants[0]
	assert.Equal(t, "user-maria", grant.ReferrerUserID)
	assert.Equal(t, "user-buyer", grant.BuyerUserID)
	assert.Equal(t, int64(6000), grant.AmountCents)
	assert.Equal(t, "cs_3", grant.SessionID)

	assert.Len(t, f.producer.messages[kafka.TopicReferralRewardGranted], 1)
}

func TestProcessCheckoutRewardFailureIsNonFatal(t *testing.T) {
	f := newWebhookFixture()
	f.rewards.err = errFakeDB

	event := familyPackEvent("cs_4")
	event.Metadata.ReferralCode = "MARIA2024"
	event.Metadata.ReferrerUserID = "user-maria"
	event.Metadata.ReferrerRole = domain.UserRoleAlumno

	// The purchase must still be acknowledged.
	require.NoError(t, f.svc.ProcessCheckoutCompleted(context.Background(), event))

	assert.Equal(t, 1, f.tx.commits)
	assert.Len(t, f.producer.messages[kafka.TopicReferralRewardFailed], 1)
}

func TestProcessCheckoutWithoutReferralSkipsRewards(t *testing.T) {
	f := newWebhookFixture()

	require.NoError(t, f.svc.ProcessCheckoutCompleted(context.Background(), familyPackEvent("cs_5")))
	assert.Empty(t, f.rewards.grants)
}

func TestProcessCheckoutMalformedMetadataIsAcknowledged(t *testing.T) {
	f := newWebhookFixture()

	noBuyer := familyPackEvent("cs_6")
	noBuyer.Metadata.BuyerUserID = ""
	require.NoError(t, f.svc.ProcessCheckoutCompleted(context.Background(), noBuyer))

	noTier := familyPackEvent("cs_7")
	noTier.Metadata.Tier = 0
	require.NoError(t, f.svc.ProcessCheckoutCompleted(context.Background(), noTier))

	assert.Zero(t, f.tx.commits)
	assert.Empty(t, f.users.purchases)
}

func TestProcessCheckoutAssistantSkipsFamilyPackCounter(t *testing.T) {
	f := newWebhookFixture()

	event := familyPackEvent("cs_8")
	event.Metadata.Plan = domain.PlanTypeAssistant
	event.Metadata.Tier = 0
	event.Metadata.SlotCount = 1

	require.NoError(t, f.svc.ProcessCheckoutCompleted(context.Background(), event))
	assert.Zero(t, f.counters.counts[repository.CounterFamilyPacks])
	assert.Len(t, f.users.purchases, 1)
}

func TestProcessCheckoutCommitFailurePropagates(t *testing.T) {
	f := newWebhookFixture()
	f.tx.commitErr = errFakeDB

	err := f.svc.ProcessCheckoutCompleted(context.Background(), familyPackEvent("cs_9"))
	assert.Error(t, err)
	assert.Empty(t, f.rewards.grants)
}

func TestProcessInvoicePaidExtendsPeriod(t *testing.T) {
	f := newWebhookFixture()

	event := familyPackEvent("cs_10")
	event.Mode = domain.CheckoutModeSubscription
	event.ProviderSubscriptionID = "sub_abc"
	require.NoError(t, f.svc.ProcessCheckoutCompleted(context.Background(), event))

	periodEnd := time.Now().AddDate(0, 1, 0).Unix()
	err := f.svc.ProcessInvoicePaid(context.Background(), domain.InvoicePaidEvent{
		InvoiceID:      "in_1",
		SubscriptionID: "sub_abc",
		AmountCents:    4400,
		Currency:       "eur",
		PeriodEnd:      periodEnd,
	})
	require.NoError(t, err)

	sub, err := f.subs.GetBySessionID(context.Background(), "cs_10")
	require.NoError(t, err)
	assert.Equal(t, periodEnd, f.subs.periodUpdates[sub.ID.String()])
}

func TestProcessInvoicePaidUnknownSubscriptionIsAcknowledged(t *testing.T) {
	f := newWebhookFixture()

	err := f.svc.ProcessInvoicePaid(context.Background(), domain.InvoicePaidEvent{
		InvoiceID:      "in_2",
		SubscriptionID: "sub_unknown",
		PeriodEnd:      time.Now().Unix(),
	})
	assert.NoError(t, err)
	assert.Empty(t, f.subs.periodUpdates)
}
