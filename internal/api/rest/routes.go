package rest

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/opositaprep/checkout-service/internal/api/rest/handlers"
	"github.com/opositaprep/checkout-service/internal/api/rest/middleware"
	"github.com/opositaprep/checkout-service/internal/config"
	"github.com/opositaprep/checkout-service/pkg/logger"
)

// Deps are the collaborators the router wires into handlers.
type Deps struct {
	Checkout *handlers.CheckoutHandler
	Webhook  *handlers.WebhookHandler
}

// SetupRouter configures the gin router with routes and middleware.
func SetupRouter(deps Deps, cfg *config.Config, registry *prometheus.Registry, log *logger.Logger) *gin.Engine {
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middleware.LoggerMiddleware(log))
	r.Use(gin.Recovery())

	r.GET("/health", handlers.HealthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	api := r.Group("/api")

	// Checkout endpoints require a caller identity when a JWT secret is
	// configured; webhooks authenticate with their signature instead.
	checkout := api.Group("")
	if cfg.Auth.JWTSecret != "" {
		jwtMiddleware := middleware.NewJWTMiddleware(
			&middleware.DefaultTokenValidator{Secret: []byte(cfg.Auth.JWTSecret)},
			log,
		)
		checkout.Use(jwtMiddleware.RequireAuth())
	}

	checkout.POST("/checkout/family-pack", deps.Checkout.CreateFamilyPackCheckout)
	checkout.POST("/assistant/checkout", deps.Checkout.CreateAssistantCheckout)
	checkout.POST("/stripe/create-checkout-with-referral", deps.Checkout.CreateSubscriptionCheckout)

	api.POST("/webhook/family-pack", deps.Webhook.HandleStripeWebhook)
	api.POST("/stripe/webhook-with-referrals", deps.Webhook.HandleStripeWebhook)

	return r
}
