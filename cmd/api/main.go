package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/daviskamau/learnhub-backend/api/routes"
	"github.com/daviskamau/learnhub-backend/internal/checkout"
	"github.com/daviskamau/learnhub-backend/internal/commission"
	"github.com/daviskamau/learnhub-backend/internal/courses"
	"github.com/daviskamau/learnhub-backend/internal/enrollments"
	"github.com/daviskamau/learnhub-backend/internal/gateway"
	"github.com/daviskamau/learnhub-backend/internal/purchases"
	"github.com/daviskamau/learnhub-backend/internal/reconcile"
	"github.com/daviskamau/learnhub-backend/internal/referrals"
	"github.com/daviskamau/learnhub-backend/internal/users"
	"github.com/daviskamau/learnhub-backend/internal/webhooks"
	"github.com/daviskamau/learnhub-backend/pkg/config"
	"github.com/daviskamau/learnhub-backend/pkg/db"
	"github.com/daviskamau/learnhub-backend/pkg/logger"
	"github.com/daviskamau/learnhub-backend/pkg/metrics"
	"github.com/daviskamau/learnhub-backend/pkg/paystack"
	"github.com/daviskamau/learnhub-backend/pkg/redis"
	"github.com/daviskamau/learnhub-backend/pkg/stripe"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	paystackClient, err := paystack.NewClient(context.Background(), cfg.Paystack, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create paystack client", err)
		os.Exit(1)
	}

	stripeClient, err := stripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create stripe client", err)
		os.Exit(1)
	}

	userRepo := users.NewRepository(dbClient.DB())
	courseRepo := courses.NewRepository(dbClient.DB())
	purchaseRepo := purchases.NewRepository(dbClient.DB())
	enrollmentRepo := enrollments.NewRepository(dbClient.DB())
	commissionRepo := commission.NewRepository(dbClient.DB())

	commissionSvc, err := commission.NewService(commission.ServiceParams{
		Repo:     commissionRepo,
		UserRepo: userRepo,
		Rate:     cfg.Payments.CommissionRate,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create commission engine", err)
		os.Exit(1)
	}

	reconcileSvc, err := reconcile.NewService(reconcile.ServiceParams{
		PurchaseRepo:      purchaseRepo,
		EnrollmentRepo:    enrollmentRepo,
		Commission:        commissionSvc,
		TransactionRunner: dbClient,
		Logger:            logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reconciler", err)
		os.Exit(1)
	}

	enrollmentSvc, err := enrollments.NewService(enrollments.ServiceParams{
		Repo:              enrollmentRepo,
		CourseRepo:        courseRepo,
		PurchaseRepo:      purchaseRepo,
		TransactionRunner: dbClient,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create enrollment service", err)
		os.Exit(1)
	}

	referralSvc, err := referrals.NewService(referrals.ServiceParams{
		UserRepo:       userRepo,
		CommissionRepo: commissionRepo,
		EnrollmentRepo: enrollmentRepo,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create referral service", err)
		os.Exit(1)
	}

	checkoutSvc, err := checkout.NewService(checkout.ServiceParams{
		CourseRepo:     courseRepo,
		EnrollmentRepo: enrollmentRepo,
		PurchaseRepo:   purchaseRepo,
		UserRepo:       userRepo,
		Paystack:       paystackClient,
		Stripe:         stripeClient,
		Reconciler:     reconcileSvc,
		Payments:       cfg.Payments,
		BaseURL:        cfg.App.BaseURL,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	paystackGuard, err := webhooks.NewIdempotencyGuard(redisClient, cfg.Webhooks.IdempotencyTTL, "paystack-webhook")
	if err != nil {
		logg.Error(context.Background(), "failed to create paystack guard", err)
		os.Exit(1)
	}
	stripeGuard, err := webhooks.NewIdempotencyGuard(redisClient, cfg.Webhooks.IdempotencyTTL, "stripe-webhook")
	if err != nil {
		logg.Error(context.Background(), "failed to create stripe guard", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	webhookMetrics := metrics.NewWebhookMetrics(registry)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:   cfg,
			Logger:   logg,
			DB:       dbClient,
			Redis:    redisClient,
			Registry: registry,

			PaystackAdapter: gateway.NewPaystackAdapter(paystackClient.SigningSecret()),
			StripeAdapter:   gateway.NewStripeAdapter(stripeClient.SigningSecret()),
			Reconciler:      reconcileSvc,
			PaystackGuard:   paystackGuard,
			StripeGuard:     stripeGuard,
			WebhookMetrics:  webhookMetrics,

			CourseRepo:        courseRepo,
			PurchaseRepo:      purchaseRepo,
			EnrollmentService: enrollmentSvc,
			ReferralService:   referralSvc,
			CheckoutService:   checkoutSvc,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
