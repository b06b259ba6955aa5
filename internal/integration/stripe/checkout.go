package stripe

import (
	"context"
	"fmt"
	"net/url"

	"github.com/stripe/stripe-go/v78"

	"github.com/opositaprep/checkout-service/internal/domain"
)

// CreateCheckoutSession creates a hosted Stripe Checkout session with a
// single line item at the computed total and the full metadata bag.
func (sc *stripeClient) CreateCheckoutSession(ctx context.Context, p CheckoutSessionParams) (*CheckoutSession, error) {
	priceData := &stripe.CheckoutSessionLineItemPriceDataParams{
		Currency:   stripe.String(p.Currency),
		UnitAmount: stripe.Int64(p.AmountCents),
		ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(p.ProductName),
		},
	}

	mode := stripe.CheckoutSessionModePayment
	if p.Mode == domain.CheckoutModeSubscription {
		mode = stripe.CheckoutSessionModeSubscription
		priceData.Recurring = &stripe.CheckoutSessionLineItemPriceDataRecurringParams{
			Interval: stripe.String(p.RecurringInterval),
		}
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(mode)),
		SuccessURL: stripe.String(p.SuccessURL),
		CancelURL:  stripe.String(p.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: priceData,
				Quantity:  stripe.Int64(1),
			},
		},
		Params: stripe.Params{
			Context:        ctx,
			IdempotencyKey: stripe.String(p.IdempotencyKey),
			Metadata:       p.Metadata,
		},
	}
	if p.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(p.CustomerEmail)
	}

	sess, err := sc.client.CheckoutSessions.New(params)
	if err != nil {
		logStripeError(sc.log, "CreateCheckoutSession", err)
		return nil, fmt.Errorf("stripe: failed to create checkout session: %w", err)
	}

	// A malformed URL must never reach the client: it would render a
	// blank checkout page with no error.
	if !validHostedURL(sess.URL) {
		sc.log.Errorw("Stripe returned a session without a usable hosted URL",
			"sessionID", sess.ID, "url", sess.URL)
		return nil, domain.ErrInvalidSessionResponse
	}

	sc.log.Infow("Stripe checkout session created", "sessionID", sess.ID, "mode", string(mode))
	return &CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

func validHostedURL(raw string) bool {
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "https" || u.Scheme == "http") && u.Host != ""
}
