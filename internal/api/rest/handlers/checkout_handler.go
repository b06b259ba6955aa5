package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/opositaprep/checkout-service/internal/api/rest/middleware"
	"github.com/opositaprep/checkout-service/internal/domain"
	"github.com/opositaprep/checkout-service/internal/service"
	"github.com/opositaprep/checkout-service/pkg/logger"
	"github.com/opositaprep/checkout-service/pkg/req"
	"github.com/opositaprep/checkout-service/pkg/res"
)

// FamilyPackCheckoutRequest is the request body for a family-pack checkout.
type FamilyPackCheckoutRequest struct {
	Tier             int    `json:"tier" validate:"required,oneof=3 5 8"`
	BillingCycle     string `json:"billingCycle" validate:"required,oneof=monthly annual"`
	AddonPublicCount int    `json:"addonPublicCount" validate:"gte=0"`
	ReferralCode     string `json:"referralCode"`
	UserID           string `json:"userId"`
	UserEmail        string `json:"userEmail" validate:"omitempty,email"`
	UserRole         string `json:"userRole" validate:"omitempty,oneof=alumno academia"`
}

// AssistantCheckoutRequest is the request body for a single-assistant checkout.
type AssistantCheckoutRequest struct {
	AssistantID   string `json:"assistantId" validate:"required"`
	AssistantName string `json:"assistantName" validate:"required"`
	PriceCents    int64  `json:"priceCents" validate:"required,gt=0"`
	BillingCycle  string `json:"billingCycle" validate:"omitempty,oneof=monthly annual"`
	Recurring     bool   `json:"recurring"`
	ReferralCode  string `json:"referralCode"`
	UserID        string `json:"userId"`
	UserEmail     string `json:"userEmail" validate:"omitempty,email"`
	UserRole      string `json:"userRole" validate:"omitempty,oneof=alumno academia"`
}

// AssistantCheckoutResponse is the assistant-checkout envelope.
type AssistantCheckoutResponse struct {
	Success   bool   `json:"success"`
	URL       string `json:"url"`
	SessionID string `json:"sessionId"`
	Fallback  bool   `json:"fallback,omitempty"`
	Message   string `json:"message,omitempty"`
}

func newAssistantCheckoutResponse(result *domain.CheckoutResult) AssistantCheckoutResponse {
	return AssistantCheckoutResponse{
		Success:   true,
		URL:       result.URL,
		SessionID: result.SessionID,
		Fallback:  result.Fallback,
		Message:   result.Message,
	}
}

// CheckoutHandler serves the checkout session endpoints.
type CheckoutHandler struct {
	checkout service.CheckoutService
	log      *logger.Logger
}

// NewCheckoutHandler creates the checkout handler.
func NewCheckoutHandler(checkout service.CheckoutService, log *logger.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		checkout: checkout,
		log:      log,
	}
}

// CreateFamilyPackCheckout handles a family-pack checkout request.
func (h *CheckoutHandler) CreateFamilyPackCheckout(c *gin.Context) {
	body, err := req.HandleBody[FamilyPackCheckoutRequest](c.Writer, c.Request, h.log)
	if err != nil {
		return
	}

	userID, userEmail, userRole := h.resolveIdentity(c, body.UserID, body.UserEmail, body.UserRole)

	result, err := h.checkout.CreateFamilyPackCheckout(c.Request.Context(), domain.FamilyPackCheckoutRequest{
		Tier:             domain.Tier(body.Tier),
		BillingCycle:     domain.BillingCycle(body.BillingCycle),
		AddonPublicCount: body.AddonPublicCount,
		ReferralCode:     body.ReferralCode,
		UserID:           userID,
		UserEmail:        userEmail,
		UserRole:         domain.UserRole(userRole),
	})
	if err != nil {
		h.writeCheckoutError(c, err)
		return
	}

	res.JsonResponse(c.Writer, result, http.StatusOK)
}

// CreateAssistantCheckout handles a single-assistant checkout request.
func (h *CheckoutHandler) CreateAssistantCheckout(c *gin.Context) {
	body, err := req.HandleBody[AssistantCheckoutRequest](c.Writer, c.Request, h.log)
	if err != nil {
		return
	}

	userID, userEmail, userRole := h.resolveIdentity(c, body.UserID, body.UserEmail, body.UserRole)

	result, err := h.checkout.CreateAssistantCheckout(c.Request.Context(), domain.AssistantCheckoutRequest{
		AssistantID:   body.AssistantID,
		AssistantName: body.AssistantName,
		PriceCents:    body.PriceCents,
		BillingCycle:  domain.BillingCycle(body.BillingCycle),
		Recurring:     body.Recurring,
		ReferralCode:  body.ReferralCode,
		UserID:        userID,
		UserEmail:     userEmail,
		UserRole:      domain.UserRole(userRole),
	})
	if err != nil {
		h.writeCheckoutError(c, err)
		return
	}

	res.JsonResponse(c.Writer, newAssistantCheckoutResponse(result), http.StatusOK)
}

// CreateSubscriptionCheckout handles the recurring per-assistant variant:
// same body as the assistant checkout, always subscription mode.
func (h *CheckoutHandler) CreateSubscriptionCheckout(c *gin.Context) {
	body, err := req.HandleBody[AssistantCheckoutRequest](c.Writer, c.Request, h.log)
	if err != nil {
		return
	}

	userID, userEmail, userRole := h.resolveIdentity(c, body.UserID, body.UserEmail, body.UserRole)

	result, err := h.checkout.CreateAssistantCheckout(c.Request.Context(), domain.AssistantCheckoutRequest{
		AssistantID:   body.AssistantID,
		AssistantName: body.AssistantName,
		PriceCents:    body.PriceCents,
		BillingCycle:  domain.BillingCycle(body.BillingCycle),
		Recurring:     true,
		ReferralCode:  body.ReferralCode,
		UserID:        userID,
		UserEmail:     userEmail,
		UserRole:      domain.UserRole(userRole),
	})
	if err != nil {
		h.writeCheckoutError(c, err)
		return
	}

	res.JsonResponse(c.Writer, newAssistantCheckoutResponse(result), http.StatusOK)
}

// resolveIdentity prefers the authenticated token identity over body
// fields, so a caller cannot buy on behalf of another user.
func (h *CheckoutHandler) resolveIdentity(c *gin.Context, bodyUserID, bodyEmail, bodyRole string) (string, string, string) {
	userID := bodyUserID
	if v, ok := c.Get(string(middleware.ContextUserIDKey)); ok {
		if s, ok := v.(string); ok && s != "" {
			userID = s
		}
	}
	email := bodyEmail
	if v, ok := c.Get(string(middleware.ContextUserEmailKey)); ok {
		if s, ok := v.(string); ok && s != "" {
			email = s
		}
	}
	role := bodyRole
	if v, ok := c.Get(string(middleware.ContextUserRoleKey)); ok {
		if s, ok := v.(string); ok && s != "" {
			role = s
		}
	}
	return userID, email, role
}

func (h *CheckoutHandler) writeCheckoutError(c *gin.Context, err error) {
	if domain.IsInputError(err) {
		res.JsonResponse(c.Writer, res.ErrorResponse{
			Error:     err.Error(),
			ErrorCode: http.StatusBadRequest,
		}, http.StatusBadRequest)
		return
	}

	res.JsonErrorResponse(c.Writer, res.ErrorResponse{
		Error:     "Failed to create checkout session",
		ErrorCode: http.StatusInternalServerError,
	}, http.StatusInternalServerError, h.log)
}
