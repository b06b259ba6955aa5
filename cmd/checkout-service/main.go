package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/opositaprep/checkout-service/internal/api/rest"
	"github.com/opositaprep/checkout-service/internal/api/rest/handlers"
	"github.com/opositaprep/checkout-service/internal/config"
	"github.com/opositaprep/checkout-service/internal/db"
	stripeintegration "github.com/opositaprep/checkout-service/internal/integration/stripe"
	"github.com/opositaprep/checkout-service/internal/kafka"
	"github.com/opositaprep/checkout-service/internal/metrics"
	"github.com/opositaprep/checkout-service/internal/repository"
	"github.com/opositaprep/checkout-service/internal/service"
	"github.com/opositaprep/checkout-service/pkg/logger"
)

func main() {
	cfg, err := config.LoadConfig(".env")
	if err != nil {
		bootLog := logger.New(logger.INFO)
		bootLog.Fatal("Failed to load configuration: %v", err)
	}

	log := logger.New(logger.ParseLevel(cfg.Logging.Level))
	defer log.Sync()

	// Prometheus
	promRegistry := prometheus.NewRegistry()
	checkoutMetrics := metrics.NewCheckoutMetrics(promRegistry, log)

	// Database
	dbClient, err := db.NewDBClient(cfg.Database.DSN, log)
	if err != nil {
		log.Fatal("Failed to connect to database: %v", err)
	}
	defer dbClient.Close()

	// Repositories
	codeRepo := repository.NewPostgresReferralCodeRepository(dbClient.DB(), log)
	userRepo := repository.NewPostgresUserRepository(dbClient.DB(), log)
	subRepo := repository.NewPostgresSubscriptionRepository(dbClient.DB(), log)
	referralRepo := repository.NewPostgresReferralRepository(dbClient.DB(), log)
	counterRepo := repository.NewPostgresCounterRepository(dbClient.DB(), log)

	var pricingRepo repository.PricingConfigRepository = repository.NewPostgresPricingConfigRepository(dbClient.DB(), log)
	if cfg.Redis.Addr != "" {
		cache, err := repository.NewRedisCacheRepository(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, log)
		if err != nil {
			log.Warn("Redis unavailable, pricing cache disabled: %v", err)
		} else {
			defer cache.Close()
			pricingRepo = repository.NewCachedPricingConfigRepository(pricingRepo, cache, log)
		}
	}

	// Kafka producer is optional; the checkout flow works without it.
	var producer kafka.Producer
	if cfg.Kafka.Enabled {
		if err := kafka.EnsureKafkaTopics(cfg.Kafka.Brokers, log); err != nil {
			log.Warn("Failed to ensure Kafka topics: %v", err)
		}
		producer, err = kafka.NewKafkaProducer(cfg.Kafka.Brokers, log)
		if err != nil {
			log.Fatal("Failed to create Kafka producer: %v", err)
		}
		defer producer.Close()
	}

	// Payment provider
	providerClient := stripeintegration.NewClient(cfg.Stripe.APIKey, log)
	verifier := stripeintegration.NewVerifier(cfg.Stripe.WebhookSecret, cfg.IsDevelopment(), log)

	// Services
	pricingService := service.NewPricingService(pricingRepo, log)
	referralValidator := service.NewReferralValidator(codeRepo, userRepo, log)
	checkoutService := service.NewCheckoutService(pricingService, referralValidator, providerClient, checkoutMetrics, cfg, log)
	rewardService := service.NewRewardService(dbClient, referralRepo, userRepo, log)
	webhookService := service.NewWebhookService(dbClient, subRepo, userRepo, counterRepo, rewardService, producer, checkoutMetrics, log)

	// HTTP
	router := rest.SetupRouter(rest.Deps{
		Checkout: handlers.NewCheckoutHandler(checkoutService, log),
		Webhook:  handlers.NewWebhookHandler(verifier, webhookService, checkoutMetrics, log),
	}, cfg, promRegistry, log)

	server := rest.NewServer(router, cfg, log)

	go func() {
		if err := server.Start(); err != nil {
			log.Fatal("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Fatal("Server forced to shutdown: %v", err)
	}

	log.Info("Server stopped gracefully")
}
