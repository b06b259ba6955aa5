package service

import (
	"context"
	"errors"
	"sync"

	"github.com/jmoiron/sqlx"

	"github.com/opositaprep/checkout-service/internal/domain"
	stripeintegration "github.com/opositaprep/checkout-service/internal/integration/stripe"
	"github.com/opositaprep/checkout-service/internal/repository"
	"github.com/opositaprep/checkout-service/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.ERROR)
}

// fakeTxManager hands out nil transactions; the repository fakes below
// never touch them.
type fakeTxManager struct {
	mu        sync.Mutex
	commits   int
	rollbacks int
	beginErr  error
	commitErr error
}

func (f *fakeTxManager) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	if f.beginErr != nil {
		return nil, f.beginErr
	}
	return &sqlx.Tx{}, nil
}

func (f *fakeTxManager) CommitTx(tx *sqlx.Tx) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.commitErr != nil {
		return f.commitErr
	}
	f.commits++
	return nil
}

func (f *fakeTxManager) RollbackTx(tx *sqlx.Tx) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rollbacks++
}

type fakePricingConfigRepo struct {
	table *domain.PricingTable
	err   error
}

func (f *fakePricingConfigRepo) GetTable(ctx context.Context) (*domain.PricingTable, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.table == nil {
		return nil, repository.ErrNotFound
	}
	return f.table, nil
}

type fakeReferralCodeRepo struct {
	codes map[string]*domain.ReferralCode
}

func (f *fakeReferralCodeRepo) GetByCode(ctx context.Context, code string) (*domain.ReferralCode, error) {
	if rc, ok := f.codes[code]; ok {
		return rc, nil
	}
	return nil, repository.ErrNotFound
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User

	purchases []string // user ids that received ApplyPurchaseTx
	rewards   []*domain.ReferralReward

	applyRewardErr error
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if u, ok := f.users[id]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUserRepo) ApplyPurchaseTx(ctx context.Context, tx *sqlx.Tx, userID string, sub *domain.Subscription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[userID]; !ok {
		return repository.ErrNotFound
	}
	f.purchases = append(f.purchases, userID)
	return nil
}

func (f *fakeUserRepo) GetEntitlementEndForUpdateTx(ctx context.Context, tx *sqlx.Tx, userID string) (*domain.User, error) {
	return f.GetByID(ctx, userID)
}

func (f *fakeUserRepo) ApplyRewardTx(ctx context.Context, tx *sqlx.Tx, userID string, reward *domain.ReferralReward, amountCents int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.applyRewardErr != nil {
		return f.applyRewardErr
	}
	u, ok := f.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	end := reward.EndsAt
	u.EntitlementEndAt = &end
	u.ReferralCount++
	u.ReferralRevenueCents += amountCents
	f.rewards = append(f.rewards, reward)
	return nil
}

type fakeSubscriptionRepo struct {
	mu   sync.Mutex
	subs map[string]*domain.Subscription // keyed by session id

	periodUpdates map[string]int64
	createErr     error
}

func newFakeSubscriptionRepo() *fakeSubscriptionRepo {
	return &fakeSubscriptionRepo{
		subs:          make(map[string]*domain.Subscription),
		periodUpdates: make(map[string]int64),
	}
}

func (f *fakeSubscriptionRepo) CreateTx(ctx context.Context, tx *sqlx.Tx, sub *domain.Subscription) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return false, f.createErr
	}
	if _, ok := f.subs[sub.SessionID]; ok {
		return false, nil
	}
	copied := *sub
	f.subs[sub.SessionID] = &copied
	return true, nil
}

func (f *fakeSubscriptionRepo) GetBySessionID(ctx context.Context, sessionID string) (*domain.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if sub, ok := f.subs[sessionID]; ok {
		copied := *sub
		return &copied, nil
	}
	return nil, repository.ErrNotFound
}

func (f *fakeSubscriptionRepo) GetByProviderSubscriptionID(ctx context.Context, providerSubID string) (*domain.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, sub := range f.subs {
		if sub.ProviderSubID == providerSubID {
			copied := *sub
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeSubscriptionRepo) UpdatePeriodEnd(ctx context.Context, id string, periodEndUnix int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.periodUpdates[id] = periodEndUnix
	return nil
}

type fakeReferralRepo struct {
	mu        sync.Mutex
	referrals map[string]*domain.Referral // keyed by session id
	rewards   []*domain.ReferralReward
}

func newFakeReferralRepo() *fakeReferralRepo {
	return &fakeReferralRepo{referrals: make(map[string]*domain.Referral)}
}

func (f *fakeReferralRepo) CreateTx(ctx context.Context, tx *sqlx.Tx, ref *domain.Referral) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.referrals[ref.SessionID]; ok {
		return false, nil
	}
	copied := *ref
	f.referrals[ref.SessionID] = &copied
	return true, nil
}

func (f *fakeReferralRepo) CreateRewardTx(ctx context.Context, tx *sqlx.Tx, reward *domain.ReferralReward) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rewards = append(f.rewards, reward)
	return nil
}

func (f *fakeReferralRepo) GetBySessionID(ctx context.Context, sessionID string) (*domain.Referral, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ref, ok := f.referrals[sessionID]; ok {
		copied := *ref
		return &copied, nil
	}
	return nil, repository.ErrNotFound
}

type fakeCounterRepo struct {
	mu     sync.Mutex
	counts map[string]int64
}

func newFakeCounterRepo() *fakeCounterRepo {
	return &fakeCounterRepo{counts: make(map[string]int64)}
}

func (f *fakeCounterRepo) IncrementTx(ctx context.Context, tx *sqlx.Tx, name string, delta int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[name] += delta
	return nil
}

// fakeProvider records the params of every CreateCheckoutSession call.
type fakeProvider struct {
	mu      sync.Mutex
	calls   []stripeintegration.CheckoutSessionParams
	session *stripeintegration.CheckoutSession
	err     error
}

func (f *fakeProvider) CreateCheckoutSession(ctx context.Context, params stripeintegration.CheckoutSessionParams) (*stripeintegration.CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, params)
	if f.err != nil {
		return nil, f.err
	}
	if f.session != nil {
		return f.session, nil
	}
	return &stripeintegration.CheckoutSession{
		ID:  "cs_test_123",
		URL: "https://checkout.example.com/cs_test_123",
	}, nil
}

type fakeValidator struct {
	result domain.ReferralValidation
}

func (f *fakeValidator) Validate(ctx context.Context, rawCode, buyerUserID string) domain.ReferralValidation {
	return f.result
}

// fakeRewardService records grants and can be told to fail.
type fakeRewardService struct {
	mu     sync.Mutex
	grants []domain.RewardGrant
	reward *domain.ReferralReward
	err    error
}

func (f *fakeRewardService) Apply(ctx context.Context, grant domain.RewardGrant) (*domain.ReferralReward, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.grants = append(f.grants, grant)
	if f.err != nil {
		return nil, f.err
	}
	return f.reward, nil
}

type fakeProducer struct {
	mu       sync.Mutex
	messages map[string][]string // topic -> keys
}

func newFakeProducer() *fakeProducer {
	return &fakeProducer{messages: make(map[string][]string)}
}

func (f *fakeProducer) Publish(ctx context.Context, topic, key string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[topic] = append(f.messages[topic], key)
	return nil
}

func (f *fakeProducer) Close() error { return nil }

// noopMetrics satisfies metrics.CheckoutMetrics without a registry.
type noopMetrics struct{}

func (noopMetrics) IncCheckoutCreated(plan string)                 {}
func (noopMetrics) IncCheckoutFailed(plan, reason string)          {}
func (noopMetrics) IncCheckoutFallback(plan string)                {}
func (noopMetrics) ObserveCheckoutAmount(cents int64, plan string) {}
func (noopMetrics) IncWebhookProcessed(eventType string)           {}
func (noopMetrics) IncWebhookDuplicate()                           {}
func (noopMetrics) IncWebhookInvalidSignature()                    {}
func (noopMetrics) IncRewardGranted(rewardType string)             {}
func (noopMetrics) IncRewardFailed()                               {}

var errFakeDB = errors.New("database unavailable")
