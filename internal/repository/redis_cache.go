package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/opositaprep/checkout-service/internal/domain"
	"github.com/opositaprep/checkout-service/pkg/logger"
)

const (
	pricingTableKey = "pricing:table"

	defaultCacheTTL = 15 * time.Minute
)

// RedisCacheRepository provides Redis caching for the pricing table, the
// one read on the checkout path that is both remote-overridable and slow
// to change. Referral codes are deliberately not cached: a code can be
// deactivated elsewhere in the platform and must take effect immediately.
type RedisCacheRepository struct {
	client *redis.Client
	log    *logger.Logger
}

// NewRedisCacheRepository connects to Redis and verifies the connection.
func NewRedisCacheRepository(redisAddr, redisPassword string, redisDB int, log *logger.Logger) (*RedisCacheRepository, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: redisPassword,
		DB:       redisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Errorw("Failed to connect to Redis", "error", err)
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Infow("Connected to Redis successfully", "addr", redisAddr)
	return &RedisCacheRepository{client: client, log: log}, nil
}

// Close closes the Redis connection.
func (r *RedisCacheRepository) Close() error {
	return r.client.Close()
}

// CachePricingTable stores the assembled pricing table.
func (r *RedisCacheRepository) CachePricingTable(ctx context.Context, table *domain.PricingTable) error {
	data, err := json.Marshal(table)
	if err != nil {
		return fmt.Errorf("failed to marshal pricing table: %w", err)
	}

	if err := r.client.Set(ctx, pricingTableKey, data, defaultCacheTTL).Err(); err != nil {
		r.log.Errorw("Failed to cache pricing table", "error", err)
		return fmt.Errorf("failed to cache pricing table: %w", err)
	}

	return nil
}

// GetCachedPricingTable returns the cached pricing table, or nil on a miss.
func (r *RedisCacheRepository) GetCachedPricingTable(ctx context.Context) (*domain.PricingTable, error) {
	data, err := r.client.Get(ctx, pricingTableKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		r.log.Errorw("Error getting pricing table from Redis", "error", err)
		return nil, fmt.Errorf("failed to get pricing table from cache: %w", err)
	}

	var table domain.PricingTable
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached pricing table: %w", err)
	}

	return &table, nil
}
