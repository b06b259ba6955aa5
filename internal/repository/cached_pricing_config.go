package repository

import (
	"context"

	"github.com/opositaprep/checkout-service/internal/domain"
	"github.com/opositaprep/checkout-service/pkg/logger"
)

// CachedPricingConfigRepository implements PricingConfigRepository with a
// Redis cache in front of the Postgres source. Cache failures degrade to
// the source, never fail the lookup.
type CachedPricingConfigRepository struct {
	repo  PricingConfigRepository
	cache *RedisCacheRepository
	log   *logger.Logger
}

// NewCachedPricingConfigRepository creates the caching decorator.
func NewCachedPricingConfigRepository(
	repo PricingConfigRepository,
	cache *RedisCacheRepository,
	log *logger.Logger,
) PricingConfigRepository {
	return &CachedPricingConfigRepository{
		repo:  repo,
		cache: cache,
		log:   log,
	}
}

// GetTable returns the pricing table, cache first.
func (r *CachedPricingConfigRepository) GetTable(ctx context.Context) (*domain.PricingTable, error) {
	cached, err := r.cache.GetCachedPricingTable(ctx)
	if err != nil {
		r.log.Warnw("Error reading pricing table from cache", "error", err)
	}
	if cached != nil {
		return cached, nil
	}

	table, err := r.repo.GetTable(ctx)
	if err != nil {
		return nil, err
	}

	if err := r.cache.CachePricingTable(ctx, table); err != nil {
		r.log.Warnw("Failed to cache pricing table after fetch", "error", err)
	}

	return table, nil
}
