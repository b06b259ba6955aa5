package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/opositaprep/checkout-service/internal/domain"
	stripeintegration "github.com/opositaprep/checkout-service/internal/integration/stripe"
	"github.com/opositaprep/checkout-service/internal/metrics"
	"github.com/opositaprep/checkout-service/internal/service"
	"github.com/opositaprep/checkout-service/pkg/logger"
)

// maxWebhookBodyBytes caps the webhook payload size.
const maxWebhookBodyBytes = 65536

// WebhookHandler serves the payment provider webhook endpoint.
type WebhookHandler struct {
	verifier *stripeintegration.Verifier
	webhooks service.WebhookService
	metrics  metrics.CheckoutMetrics
	log      *logger.Logger
}

// NewWebhookHandler creates the webhook handler.
func NewWebhookHandler(
	verifier *stripeintegration.Verifier,
	webhooks service.WebhookService,
	checkoutMetrics metrics.CheckoutMetrics,
	log *logger.Logger,
) *WebhookHandler {
	return &WebhookHandler{
		verifier: verifier,
		webhooks: webhooks,
		metrics:  checkoutMetrics,
		log:      log,
	}
}

// HandleStripeWebhook verifies and processes a provider event. Any
// successfully handled or deliberately ignored event answers 200 so the
// provider stops retrying; only commit failures answer 500.
func (h *WebhookHandler) HandleStripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		h.log.Errorw("Failed to read webhook body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read webhook body"})
		return
	}

	event, err := h.verifier.VerifyAndParse(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, domain.ErrSignatureInvalid) {
			h.metrics.IncWebhookInvalidSignature()
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Webhook verification failed"})
		return
	}

	switch string(event.Type) {
	case stripeintegration.EventCheckoutSessionCompleted:
		completed, err := stripeintegration.ParseCheckoutCompleted(event)
		if err != nil {
			h.log.Errorw("Unparsable checkout event", "event_id", event.ID, "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "Malformed event payload"})
			return
		}
		if err := h.webhooks.ProcessCheckoutCompleted(c.Request.Context(), completed); err != nil {
			h.log.Errorw("Failed to process checkout event",
				"event_id", event.ID,
				"session_id", completed.SessionID,
				"error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process event"})
			return
		}

	case stripeintegration.EventInvoicePaymentSucceeded:
		invoice, err := stripeintegration.ParseInvoicePaid(event)
		if err != nil {
			h.log.Errorw("Unparsable invoice event", "event_id", event.ID, "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "Malformed event payload"})
			return
		}
		if err := h.webhooks.ProcessInvoicePaid(c.Request.Context(), invoice); err != nil {
			h.log.Errorw("Failed to process invoice event",
				"event_id", event.ID,
				"invoice_id", invoice.InvoiceID,
				"error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process event"})
			return
		}

	default:
		h.log.Debugw("Ignoring unhandled event type", "type", string(event.Type), "event_id", event.ID)
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
