package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"

	"github.com/arzanfood/api/internal/gateway"
	"github.com/arzanfood/api/internal/handlers"
	"github.com/arzanfood/api/internal/platform/config"
	pfirestore "github.com/arzanfood/api/internal/platform/firestore"
	"github.com/arzanfood/api/internal/platform/jobs"
	"github.com/arzanfood/api/internal/platform/observability"
	"github.com/arzanfood/api/internal/platform/secrets"
	firestoreRepo "github.com/arzanfood/api/internal/repositories/firestore"
	"github.com/arzanfood/api/internal/services"
)

func main() {
	ctx := context.Background()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	fetcher, err := secrets.NewFetcher(ctx,
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithDefaultProject(os.Getenv("API_FIRESTORE_PROJECT_ID")),
	)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	// A missing gateway purse or shared secret aborts startup: the service must
	// never run with callback verification disabled.
	cfg, err := config.Load(ctx,
		config.WithSecretResolver(config.SecretResolverFunc(fetcher.Resolve)),
	)
	if err != nil {
		var validation *config.ValidationError
		if errors.As(err, &validation) {
			logger.Fatal("configuration invalid", zap.Strings("fields", validation.Fields()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore)
	if _, err := firestoreProvider.Client(ctx); err != nil {
		logger.Fatal("failed to initialise firestore client", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := firestoreProvider.Close(closeCtx); err != nil {
			logger.Warn("firestore close error", zap.Error(err))
		}
	}()

	pubsubClient, err := pubsub.NewClient(ctx, cfg.Firestore.ProjectID)
	if err != nil {
		logger.Fatal("failed to initialise pubsub client", zap.Error(err))
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logger.Warn("pubsub close error", zap.Error(err))
		}
	}()
	eventsTopic := pubsubClient.Topic(cfg.Events.Topic)
	defer eventsTopic.Stop()

	eventPublisher, err := jobs.NewPubSubOrderEventPublisher(eventsTopic)
	if err != nil {
		logger.Fatal("failed to initialise order event publisher", zap.Error(err))
	}

	orderRepo, err := firestoreRepo.NewOrderRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise order repository", zap.Error(err))
	}
	catalogRepo, err := firestoreRepo.NewCatalogRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise catalog repository", zap.Error(err))
	}

	webmoney, err := gateway.NewWebMoney(cfg.Gateway)
	if err != nil {
		logger.Fatal("failed to initialise payment gateway", zap.Error(err))
	}
	gatewayManager, err := gateway.NewManager(webmoney)
	if err != nil {
		logger.Fatal("failed to initialise gateway manager", zap.Error(err))
	}

	paymentMetrics, err := observability.NewPaymentMetrics()
	if err != nil {
		logger.Warn("payment metrics init failed", zap.Error(err))
	}

	cartService, err := services.NewCartService(services.CartServiceDeps{
		Catalog: catalogRepo,
	})
	if err != nil {
		logger.Fatal("failed to initialise cart service", zap.Error(err))
	}

	orderService, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:      orderRepo,
		Carts:       cartService,
		Events:      eventPublisher,
		IDGenerator: services.NewULIDOrderIDGenerator(time.Now),
		Clock:       time.Now,
		DeliveryFee: cfg.Delivery.Fee,
	})
	if err != nil {
		logger.Fatal("failed to initialise order service", zap.Error(err))
	}

	paymentService, err := services.NewPaymentService(services.PaymentServiceDeps{
		Orders:   orderRepo,
		Gateways: gatewayManager,
		Events:   eventPublisher,
		Metrics:  paymentMetrics,
		Clock:    time.Now,
	})
	if err != nil {
		logger.Fatal("failed to initialise payment service", zap.Error(err))
	}

	orderHandlers, err := handlers.NewOrderHandlers(orderService, paymentService, cfg.Orders)
	if err != nil {
		logger.Fatal("failed to initialise order handlers", zap.Error(err))
	}
	webhookHandlers, err := handlers.NewPaymentWebhookHandlers(paymentService)
	if err != nil {
		logger.Fatal("failed to initialise webhook handlers", zap.Error(err))
	}

	healthHandlers := handlers.NewHealthHandlers(func(ctx context.Context) error {
		_, err := firestoreProvider.Client(ctx)
		return err
	})

	projectID := cfg.Firestore.ProjectID
	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(projectID),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(projectID),
	}

	router := handlers.NewRouter(
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithOrderRoutes(orderHandlers.Routes),
		handlers.WithAdminRoutes(orderHandlers.AdminRoutes),
		handlers.WithInternalRoutes(orderHandlers.InternalRoutes),
		handlers.WithWebhookRoutes(webhookHandlers.Routes),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("arzanfood api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
