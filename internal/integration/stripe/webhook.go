package stripe

import (
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"

	"github.com/opositaprep/checkout-service/internal/domain"
	"github.com/opositaprep/checkout-service/pkg/logger"
)

// Event types the webhook processor acts on. Everything else is
// acknowledged and ignored.
const (
	EventCheckoutSessionCompleted = "checkout.session.completed"
	EventInvoicePaymentSucceeded  = "invoice.payment_succeeded"
)

// Verifier checks webhook signatures and parses events.
type Verifier struct {
	secret        string
	allowUnsigned bool
	log           *logger.Logger
}

// NewVerifier creates a webhook verifier. allowUnsigned permits events
// without a valid signature and is only for development mode; the config
// layer refuses an empty secret in production.
func NewVerifier(secret string, allowUnsigned bool, log *logger.Logger) *Verifier {
	return &Verifier{
		secret:        secret,
		allowUnsigned: allowUnsigned,
		log:           log,
	}
}

// VerifyAndParse verifies the Stripe-Signature header against the payload
// and returns the parsed event. Signature failures map to
// domain.ErrSignatureInvalid so the handler can answer 400.
func (v *Verifier) VerifyAndParse(payload []byte, sigHeader string) (stripe.Event, error) {
	if v.secret == "" && v.allowUnsigned {
		v.log.Warnw("Processing unsigned webhook event (development mode)")
		var event stripe.Event
		if err := json.Unmarshal(payload, &event); err != nil {
			return stripe.Event{}, fmt.Errorf("%w: unparsable event payload: %v", domain.ErrSignatureInvalid, err)
		}
		return event, nil
	}

	event, err := webhook.ConstructEvent(payload, sigHeader, v.secret)
	if err != nil {
		v.log.Errorw("Webhook signature verification failed", "error", err)
		return stripe.Event{}, fmt.Errorf("%w: %v", domain.ErrSignatureInvalid, err)
	}
	return event, nil
}

// ParseCheckoutCompleted translates a verified checkout.session.completed
// event into the domain representation.
func ParseCheckoutCompleted(event stripe.Event) (domain.CheckoutCompletedEvent, error) {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return domain.CheckoutCompletedEvent{}, fmt.Errorf("stripe: failed to parse checkout session: %w", err)
	}
	if session.ID == "" {
		return domain.CheckoutCompletedEvent{}, fmt.Errorf("stripe: checkout session event without session id")
	}

	mode := domain.CheckoutModePayment
	if session.Mode == stripe.CheckoutSessionModeSubscription {
		mode = domain.CheckoutModeSubscription
	}

	ev := domain.CheckoutCompletedEvent{
		SessionID:   session.ID,
		Mode:        mode,
		AmountCents: session.AmountTotal,
		Currency:    string(session.Currency),
		Metadata:    domain.SessionMetadataFromMap(session.Metadata),
	}
	if session.Subscription != nil {
		ev.ProviderSubscriptionID = session.Subscription.ID
	}
	return ev, nil
}

// ParseInvoicePaid translates a verified invoice.payment_succeeded event
// into the domain representation.
func ParseInvoicePaid(event stripe.Event) (domain.InvoicePaidEvent, error) {
	var invoice stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		return domain.InvoicePaidEvent{}, fmt.Errorf("stripe: failed to parse invoice: %w", err)
	}
	if invoice.ID == "" {
		return domain.InvoicePaidEvent{}, fmt.Errorf("stripe: invoice event without invoice id")
	}

	ev := domain.InvoicePaidEvent{
		InvoiceID:   invoice.ID,
		AmountCents: invoice.AmountPaid,
		Currency:    string(invoice.Currency),
		PeriodEnd:   invoice.PeriodEnd,
	}
	if invoice.Subscription != nil {
		ev.SubscriptionID = invoice.Subscription.ID
	}
	return ev, nil
}
