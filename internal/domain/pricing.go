package domain

// Tier is a family-pack size bucket (number of assistant slots).
type Tier int

const (
	Tier3 Tier = 3
	Tier5 Tier = 5
	Tier8 Tier = 8
)

// BillingCycle is the billing period of a plan
type BillingCycle string

const (
	BillingCycleMonthly BillingCycle = "monthly"
	BillingCycleAnnual  BillingCycle = "annual"
)

// TierPrice is the base price and slot count for one tier/cycle pair
type TierPrice struct {
	Cents int64
	Slots int
}

// PricingTable holds base prices per tier/cycle and per-unit add-on prices.
// Amounts are euro cents.
type PricingTable struct {
	Base     map[Tier]map[BillingCycle]TierPrice
	Addon    map[BillingCycle]int64
	Currency string
}

// DefaultPricingTable returns the hardcoded pricing defaults used when
// the pricing_config table is empty or unreachable.
func DefaultPricingTable() *PricingTable {
	return &PricingTable{
		Base: map[Tier]map[BillingCycle]TierPrice{
			Tier3: {
				BillingCycleMonthly: {Cents: 2900, Slots: 3},
				BillingCycleAnnual:  {Cents: 29000, Slots: 3},
			},
			Tier5: {
				BillingCycleMonthly: {Cents: 4400, Slots: 5},
				BillingCycleAnnual:  {Cents: 44000, Slots: 5},
			},
			Tier8: {
				BillingCycleMonthly: {Cents: 5900, Slots: 8},
				BillingCycleAnnual:  {Cents: 59000, Slots: 8},
			},
		},
		Addon: map[BillingCycle]int64{
			BillingCycleMonthly: 800,
			BillingCycleAnnual:  8000,
		},
		Currency: "eur",
	}
}

// PriceQuote is the result of a pricing calculation
type PriceQuote struct {
	Tier           Tier         `json:"tier"`
	Cycle          BillingCycle `json:"billing_cycle"`
	AddonCount     int          `json:"addon_count"`
	BaseCents      int64        `json:"base_cents"`
	AddonUnitCents int64        `json:"addon_unit_cents"`
	TotalCents     int64        `json:"total_cents"`
	Slots          int          `json:"slots"`
	Currency       string       `json:"currency"`
}
