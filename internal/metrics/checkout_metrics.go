package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/opositaprep/checkout-service/pkg/logger"
)

// CheckoutMetrics counts the checkout and webhook flow.
type CheckoutMetrics interface {
	IncCheckoutCreated(plan string)
	IncCheckoutFailed(plan, reason string)
	IncCheckoutFallback(plan string)
	ObserveCheckoutAmount(cents int64, plan string)
	IncWebhookProcessed(eventType string)
	IncWebhookDuplicate()
	IncWebhookInvalidSignature()
	IncRewardGranted(rewardType string)
	IncRewardFailed()
}

type checkoutMetrics struct {
	log              *logger.Logger
	checkoutsCreated *prometheus.CounterVec
	checkoutsFailed  *prometheus.CounterVec
	checkoutFallback *prometheus.CounterVec
	checkoutAmounts  *prometheus.HistogramVec
	webhooksTotal    *prometheus.CounterVec
	rewardsTotal     *prometheus.CounterVec
}

// NewCheckoutMetrics registers the checkout flow metrics.
func NewCheckoutMetrics(registry *prometheus.Registry, log *logger.Logger) CheckoutMetrics {
	checkoutsCreated := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_sessions_created_total",
			Help: "The total number of created checkout sessions",
		},
		[]string{"plan"},
	)

	checkoutsFailed := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_sessions_failed_total",
			Help: "The total number of failed checkout attempts by reason",
		},
		[]string{"plan", "reason"},
	)

	checkoutFallback := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_fallback_total",
			Help: "The total number of checkouts served by the degraded fallback link",
		},
		[]string{"plan"},
	)

	checkoutAmounts := promauto.With(registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "checkout_amount_cents",
			Help:    "Checkout amounts distribution in euro cents",
			Buckets: prometheus.ExponentialBuckets(500, 4, 6), // 5, 20, 80, 320, 1280, 5120 euros
		},
		[]string{"plan"},
	)

	webhooksTotal := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "The total number of webhook events by outcome",
		},
		[]string{"outcome"},
	)

	rewardsTotal := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "referral_rewards_total",
			Help: "The total number of referral reward grants by outcome",
		},
		[]string{"outcome"},
	)

	return &checkoutMetrics{
		log:              log,
		checkoutsCreated: checkoutsCreated,
		checkoutsFailed:  checkoutsFailed,
		checkoutFallback: checkoutFallback,
		checkoutAmounts:  checkoutAmounts,
		webhooksTotal:    webhooksTotal,
		rewardsTotal:     rewardsTotal,
	}
}

func (m *checkoutMetrics) IncCheckoutCreated(plan string) {
	m.checkoutsCreated.WithLabelValues(plan).Inc()
}

func (m *checkoutMetrics) IncCheckoutFailed(plan, reason string) {
	m.checkoutsFailed.WithLabelValues(plan, reason).Inc()
}

func (m *checkoutMetrics) IncCheckoutFallback(plan string) {
	m.checkoutFallback.WithLabelValues(plan).Inc()
}

func (m *checkoutMetrics) ObserveCheckoutAmount(cents int64, plan string) {
	m.checkoutAmounts.WithLabelValues(plan).Observe(float64(cents))
}

func (m *checkoutMetrics) IncWebhookProcessed(eventType string) {
	m.webhooksTotal.WithLabelValues("processed_" + eventType).Inc()
}

func (m *checkoutMetrics) IncWebhookDuplicate() {
	m.webhooksTotal.WithLabelValues("duplicate").Inc()
}

func (m *checkoutMetrics) IncWebhookInvalidSignature() {
	m.webhooksTotal.WithLabelValues("invalid_signature").Inc()
}

func (m *checkoutMetrics) IncRewardGranted(rewardType string) {
	m.rewardsTotal.WithLabelValues("granted_" + rewardType).Inc()
}

func (m *checkoutMetrics) IncRewardFailed() {
	m.rewardsTotal.WithLabelValues("failed").Inc()
}
