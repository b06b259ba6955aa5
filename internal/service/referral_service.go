package service

import (
	"context"
	"errors"

	"github.com/opositaprep/checkout-service/internal/domain"
	"github.com/opositaprep/checkout-service/internal/repository"
	"github.com/opositaprep/checkout-service/pkg/logger"
)

// ReferralValidator checks a referral code against the buyer before the
// provider session is created. An invalid code aborts checkout, it is
// never silently dropped.
type ReferralValidator interface {
	Validate(ctx context.Context, rawCode, buyerUserID string) domain.ReferralValidation
}

type referralValidator struct {
	codes repository.ReferralCodeRepository
	users repository.UserRepository
	log   *logger.Logger
}

// NewReferralValidator creates the referral code validator.
func NewReferralValidator(codes repository.ReferralCodeRepository, users repository.UserRepository, log *logger.Logger) ReferralValidator {
	return &referralValidator{
		codes: codes,
		users: users,
		log:   log,
	}
}

func (v *referralValidator) Validate(ctx context.Context, rawCode, buyerUserID string) domain.ReferralValidation {
	code := domain.NormalizeReferralCode(rawCode)
	if code == "" {
		return domain.ReferralValidation{Valid: false, Err: domain.ErrReferralNotFound}
	}

	record, err := v.codes.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			v.log.Debugw("Referral code not found", "code", code)
			return domain.ReferralValidation{Valid: false, Err: domain.ErrReferralNotFound}
		}
		v.log.Errorw("Failed to look up referral code", "code", code, "error", err)
		return domain.ReferralValidation{Valid: false, Err: err}
	}

	if record.Status != domain.ReferralCodeStatusActive {
		return domain.ReferralValidation{Valid: false, Err: domain.ErrReferralInactive}
	}

	if record.OwnerUserID == buyerUserID {
		return domain.ReferralValidation{Valid: false, Err: domain.ErrSelfReferral}
	}

	// The user record is the source of truth for the referrer's current
	// role; the role stamped on the code can go stale.
	referrerRole := record.OwnerRole
	owner, err := v.users.GetByID(ctx, record.OwnerUserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.ReferralValidation{Valid: false, Err: domain.ErrReferrerMissing}
		}
		v.log.Errorw("Failed to load referrer user", "user_id", record.OwnerUserID, "error", err)
		return domain.ReferralValidation{Valid: false, Err: err}
	}
	if owner.Role != "" {
		referrerRole = owner.Role
	}

	return domain.ReferralValidation{
		Valid:          true,
		ReferrerUserID: record.OwnerUserID,
		ReferrerRole:   referrerRole,
	}
}
