package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/opositaprep/checkout-service/internal/domain"
	"github.com/opositaprep/checkout-service/pkg/logger"
)

// pricingConfigRow is one row of the pricing_config table. item is either
// "tier" (with a tier number) or "addon" (tier 0).
type pricingConfigRow struct {
	Item     string `db:"item"`
	Tier     int    `db:"tier"`
	Cycle    string `db:"cycle"`
	Cents    int64  `db:"cents"`
	Slots    int    `db:"slots"`
	Currency string `db:"currency"`
}

// postgresPricingConfigRepo implements PricingConfigRepository for PostgreSQL.
type postgresPricingConfigRepo struct {
	db  *sqlx.DB
	log *logger.Logger
}

// NewPostgresPricingConfigRepository creates a pricing-config repository.
func NewPostgresPricingConfigRepository(db *sqlx.DB, log *logger.Logger) PricingConfigRepository {
	return &postgresPricingConfigRepo{db: db, log: log}
}

// GetTable assembles the stored pricing table. A table is only returned
// when every tier/cycle pair and both addon rows are present; partial
// overrides fall back to the defaults wholesale rather than mixing the
// two sources.
func (r *postgresPricingConfigRepo) GetTable(ctx context.Context) (*domain.PricingTable, error) {
	var rows []pricingConfigRow
	query := `SELECT item, tier, cycle, cents, slots, currency FROM pricing_config`

	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		r.log.Errorw("Failed to load pricing config", "error", err)
		return nil, fmt.Errorf("repository: failed to load pricing config: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}

	table := &domain.PricingTable{
		Base:     make(map[domain.Tier]map[domain.BillingCycle]domain.TierPrice),
		Addon:    make(map[domain.BillingCycle]int64),
		Currency: "eur",
	}
	for _, row := range rows {
		cycle := domain.BillingCycle(row.Cycle)
		switch row.Item {
		case "tier":
			tier := domain.Tier(row.Tier)
			if table.Base[tier] == nil {
				table.Base[tier] = make(map[domain.BillingCycle]domain.TierPrice)
			}
			table.Base[tier][cycle] = domain.TierPrice{Cents: row.Cents, Slots: row.Slots}
		case "addon":
			table.Addon[cycle] = row.Cents
		default:
			r.log.Warnw("Unknown pricing config item, skipping", "item", row.Item)
			continue
		}
		if row.Currency != "" {
			table.Currency = row.Currency
		}
	}

	if !pricingTableComplete(table) {
		r.log.Warnw("Pricing config table is incomplete, falling back to defaults")
		return nil, ErrNotFound
	}

	return table, nil
}

func pricingTableComplete(t *domain.PricingTable) bool {
	for _, tier := range []domain.Tier{domain.Tier3, domain.Tier5, domain.Tier8} {
		for _, cycle := range []domain.BillingCycle{domain.BillingCycleMonthly, domain.BillingCycleAnnual} {
			if _, ok := t.Base[tier][cycle]; !ok {
				return false
			}
		}
	}
	for _, cycle := range []domain.BillingCycle{domain.BillingCycleMonthly, domain.BillingCycleAnnual} {
		if _, ok := t.Addon[cycle]; !ok {
			return false
		}
	}
	return true
}
