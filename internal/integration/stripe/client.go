package stripe

import (
	"context"
	"errors"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"

	"github.com/opositaprep/checkout-service/internal/domain"
	"github.com/opositaprep/checkout-service/pkg/logger"
)

// CheckoutSessionParams is the provider-agnostic input for creating a
// hosted checkout session.
type CheckoutSessionParams struct {
	Mode              domain.CheckoutMode
	AmountCents       int64
	Currency          string
	ProductName       string
	SuccessURL        string
	CancelURL         string
	CustomerEmail     string
	RecurringInterval string // "month" or "year"; only for subscription mode
	IdempotencyKey    string
	Metadata          map[string]string
}

// CheckoutSession is the provider session handed back to the caller.
type CheckoutSession struct {
	ID  string
	URL string
}

// Client defines the payment-provider operations the checkout flow needs.
type Client interface {
	// CreateCheckoutSession creates a hosted checkout session.
	CreateCheckoutSession(ctx context.Context, params CheckoutSessionParams) (*CheckoutSession, error)
}

// stripeClient implements Client over the Stripe SDK.
type stripeClient struct {
	client *client.API
	log    *logger.Logger
}

// NewClient creates a Stripe-backed payment client.
func NewClient(apiKey string, log *logger.Logger) Client {
	sc := &client.API{}
	sc.Init(apiKey, nil)
	return &stripeClient{
		client: sc,
		log:    log,
	}
}

// logStripeError logs the structured detail of a Stripe API error.
func logStripeError(log *logger.Logger, operation string, err error) {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		log.Errorw("Stripe API error",
			"operation", operation,
			"type", string(stripeErr.Type),
			"code", string(stripeErr.Code),
			"param", stripeErr.Param,
			"message", stripeErr.Msg,
			"request_id", stripeErr.RequestID,
			"status_code", stripeErr.HTTPStatusCode,
		)
	} else {
		log.Errorw("Non-Stripe error during Stripe operation",
			"operation", operation,
			"error", err,
		)
	}
}

// IsRetryable reports whether a Stripe error is transient: connection
// failures, server-side errors and rate limits. Card and invalid-request
// errors are permanent.
func IsRetryable(err error) bool {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return false
	}
	switch stripeErr.Type {
	case stripe.ErrorTypeAPI:
		return true
	}
	if stripeErr.HTTPStatusCode == 429 || stripeErr.HTTPStatusCode >= 500 {
		return true
	}
	return false
}
