package service

import (
	"context"
	"errors"

	"github.com/opositaprep/checkout-service/internal/domain"
	"github.com/opositaprep/checkout-service/internal/repository"
	"github.com/opositaprep/checkout-service/pkg/logger"
)

// PricingService computes family-pack quotes. Calculate is pure so the
// same table always yields the same quote; Quote resolves the table
// first (stored overrides, falling back to the hardcoded defaults).
type PricingService interface {
	Calculate(table *domain.PricingTable, tier domain.Tier, cycle domain.BillingCycle, addonCount int) (*domain.PriceQuote, error)
	Quote(ctx context.Context, tier domain.Tier, cycle domain.BillingCycle, addonCount int) (*domain.PriceQuote, error)
}

type pricingService struct {
	repo repository.PricingConfigRepository
	log  *logger.Logger
}

// NewPricingService creates the pricing service.
func NewPricingService(repo repository.PricingConfigRepository, log *logger.Logger) PricingService {
	return &pricingService{
		repo: repo,
		log:  log,
	}
}

func (s *pricingService) Calculate(table *domain.PricingTable, tier domain.Tier, cycle domain.BillingCycle, addonCount int) (*domain.PriceQuote, error) {
	if addonCount < 0 {
		return nil, domain.ErrInvalidAddon
	}

	cycles, ok := table.Base[tier]
	if !ok {
		return nil, domain.ErrInvalidTier
	}
	base, ok := cycles[cycle]
	if !ok {
		return nil, domain.ErrInvalidCycle
	}
	addonUnit, ok := table.Addon[cycle]
	if !ok {
		return nil, domain.ErrInvalidCycle
	}

	return &domain.PriceQuote{
		Tier:           tier,
		Cycle:          cycle,
		AddonCount:     addonCount,
		BaseCents:      base.Cents,
		AddonUnitCents: addonUnit,
		TotalCents:     base.Cents + addonUnit*int64(addonCount),
		Slots:          base.Slots + addonCount,
		Currency:       table.Currency,
	}, nil
}

func (s *pricingService) Quote(ctx context.Context, tier domain.Tier, cycle domain.BillingCycle, addonCount int) (*domain.PriceQuote, error) {
	table, err := s.repo.GetTable(ctx)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			// A broken override store must not block checkout.
			s.log.Warnw("Pricing overrides unavailable, using defaults", "error", err)
		}
		table = domain.DefaultPricingTable()
	}

	return s.Calculate(table, tier, cycle, addonCount)
}
