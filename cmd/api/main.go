package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/anupamdas/zevar-backend/api/routes"
	cartsvc "github.com/anupamdas/zevar-backend/internal/cart"
	checkoutsvc "github.com/anupamdas/zevar-backend/internal/checkout"
	ordersvc "github.com/anupamdas/zevar-backend/internal/orders"
	"github.com/anupamdas/zevar-backend/internal/payments"
	"github.com/anupamdas/zevar-backend/internal/products"
	"github.com/anupamdas/zevar-backend/pkg/config"
	"github.com/anupamdas/zevar-backend/pkg/db"
	"github.com/anupamdas/zevar-backend/pkg/logger"
	"github.com/anupamdas/zevar-backend/pkg/migrate"
	"github.com/anupamdas/zevar-backend/pkg/outbox"
	"github.com/anupamdas/zevar-backend/pkg/outbox/idempotency"
	"github.com/anupamdas/zevar-backend/pkg/razorpay"
	"github.com/anupamdas/zevar-backend/pkg/redis"
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

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

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

	razorpayClient, err := razorpay.NewClient(context.Background(), cfg.Razorpay, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create razorpay client", err)
		os.Exit(1)
	}

	gormDB := dbClient.DB()
	outboxService := outbox.NewService(outbox.NewRepository(gormDB), logg)
	productsRepo := products.NewRepository(gormDB)
	cartRepo := cartsvc.NewRepository(gormDB)
	ordersRepo := ordersvc.NewRepository(gormDB)
	keysRepo := checkoutsvc.NewKeyRepository(gormDB)

	cartService, err := cartsvc.NewService(cartRepo, productsRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}

	checkoutService, err := checkoutsvc.NewService(dbClient, cartRepo, ordersRepo, productsRepo, keysRepo, razorpayClient, outboxService)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	paymentsService, err := payments.NewService(ordersRepo, dbClient, razorpayClient, outboxService, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
	}

	ordersService, err := ordersvc.NewService(ordersRepo, dbClient, outboxService)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	webhookGuard, err := idempotency.NewManager(redisClient, cfg.Eventing.WebhookIdempotencyTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook guard", err)
		os.Exit(1)
	}

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
		Handler: routes.NewRouter(routes.Deps{
			Config:          cfg,
			Logger:          logg,
			DB:              dbClient,
			Redis:           redisClient,
			CheckoutService: checkoutService,
			PaymentsService: paymentsService,
			CartService:     cartService,
			OrdersService:   ordersService,
			ProductsRepo:    productsRepo,
			RazorpayClient:  razorpayClient,
			WebhookGuard:    webhookGuard,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
