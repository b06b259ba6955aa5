package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/opositaprep/checkout-service/internal/db"
	"github.com/opositaprep/checkout-service/internal/domain"
	"github.com/opositaprep/checkout-service/internal/repository"
	"github.com/opositaprep/checkout-service/pkg/logger"
)

// RewardService applies the referral reward for a completed purchase.
// Apply is idempotent on the session id: replaying the same grant
// returns (nil, nil) without touching the referrer again.
type RewardService interface {
	Apply(ctx context.Context, grant domain.RewardGrant) (*domain.ReferralReward, error)
}

type rewardService struct {
	db        db.TxManager
	referrals repository.ReferralRepository
	users     repository.UserRepository
	log       *logger.Logger
}

// NewRewardService creates the reward applier.
func NewRewardService(dbClient db.TxManager, referrals repository.ReferralRepository, users repository.UserRepository, log *logger.Logger) RewardService {
	return &rewardService{
		db:        dbClient,
		referrals: referrals,
		users:     users,
		log:       log,
	}
}

func (s *rewardService) Apply(ctx context.Context, grant domain.RewardGrant) (*domain.ReferralReward, error) {
	rule, ok := domain.RewardRuleFor(grant.ReferrerRole, grant.BuyerRole)
	if !ok {
		// Role pairs without a rule leave no trace: no ledger entry, no
		// reward, no error.
		s.log.Infow("No reward rule for role pair, skipping",
			"referrer_role", string(grant.ReferrerRole),
			"buyer_role", string(grant.BuyerRole),
			"session_id", grant.SessionID)
		return nil, nil
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("reward: begin tx: %w", err)
	}
	defer s.db.RollbackTx(tx)

	now := time.Now().UTC()
	referral := &domain.Referral{
		ID:             uuid.New(),
		ReferrerUserID: grant.ReferrerUserID,
		ReferrerRole:   grant.ReferrerRole,
		ReferralCode:   grant.ReferralCode,
		BuyerUserID:    grant.BuyerUserID,
		BuyerEmail:     grant.BuyerEmail,
		BuyerRole:      grant.BuyerRole,
		AmountCents:    grant.AmountCents,
		Currency:       grant.Currency,
		SessionID:      grant.SessionID,
		Status:         domain.ReferralStatusApproved,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	// The ledger insert is the idempotency gate: the unique session id
	// makes exactly one transaction win for a given session.
	created, err := s.referrals.CreateTx(ctx, tx, referral)
	if err != nil {
		return nil, fmt.Errorf("reward: create referral: %w", err)
	}
	if !created {
		s.log.Debugw("Referral already recorded for session, skipping reward",
			"session_id", grant.SessionID)
		return nil, nil
	}

	referrer, err := s.users.GetEntitlementEndForUpdateTx(ctx, tx, grant.ReferrerUserID)
	if err != nil {
		return nil, fmt.Errorf("reward: lock referrer: %w", err)
	}

	// Extensions stack from whichever is later, the current end or now,
	// so the entitlement end never moves backwards and concurrent grants
	// sum their months regardless of order.
	start := now
	if referrer.EntitlementEndAt != nil && referrer.EntitlementEndAt.After(now) {
		start = *referrer.EntitlementEndAt
	}
	endsAt := start.AddDate(0, rule.Months, 0)

	reward := &domain.ReferralReward{
		ID:         uuid.New(),
		UserID:     grant.ReferrerUserID,
		ReferralID: referral.ID,
		Type:       rule.Type,
		Months:     rule.Months,
		AppliedAt:  now,
		StartsAt:   start,
		EndsAt:     endsAt,
		Status:     domain.RewardStatusGranted,
	}

	if err := s.users.ApplyRewardTx(ctx, tx, grant.ReferrerUserID, reward, grant.AmountCents); err != nil {
		return nil, fmt.Errorf("reward: apply to referrer: %w", err)
	}
	if err := s.referrals.CreateRewardTx(ctx, tx, reward); err != nil {
		return nil, fmt.Errorf("reward: record reward: %w", err)
	}

	if err := s.db.CommitTx(tx); err != nil {
		return nil, fmt.Errorf("reward: commit: %w", err)
	}

	s.log.Infow("Referral reward granted",
		"referrer_user_id", grant.ReferrerUserID,
		"type", string(rule.Type),
		"months", rule.Months,
		"ends_at", endsAt,
		"session_id", grant.SessionID)

	return reward, nil
}
