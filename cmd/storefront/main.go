package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"storefront/internal/app/checkout"
	"storefront/internal/app/orders"
	"storefront/internal/app/reconcile"
	"storefront/internal/config"
	checkout_http "storefront/internal/handler/http/checkout"
	orders_http "storefront/internal/handler/http/orders"
	webhooks_http "storefront/internal/handler/http/webhooks"
	"storefront/internal/infrastructure/database"
	kafka_infra "storefront/internal/infrastructure/kafka"
	"storefront/internal/outbox"
	"storefront/internal/provider/daraja"
	"storefront/internal/provider/stripe"
	postgres_order_repo "storefront/internal/repository/order_repo/postgres"
	postgres_outbox_repo "storefront/internal/repository/outbox_repo/postgres"
	postgres_payment_repo "storefront/internal/repository/payment_repo/postgres"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	zapConfig := zap.NewProductionConfig()
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapConfig.EncoderConfig.TimeKey = "timestamp"

	appLogger, err := zapConfig.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create zap logger: %v\n", err)
		os.Exit(1)
	}
	appLogger.Info("Storefront service starting...")

	appLogger.Info("Waiting for database to be available...")
	dbConfig := database.DBConfig{
		Host:     cfg.DBConfig.Host,
		Port:     cfg.DBConfig.Port,
		User:     cfg.DBConfig.User,
		Password: cfg.DBConfig.Password,
		DBName:   cfg.DBConfig.Name,
		SSLMode:  cfg.DBConfig.SSLMode,
	}

	var db *sql.DB
	maxRetries := 10
	retryDelay := 5 * time.Second

	for i := 0; i < maxRetries; i++ {
		db, err = database.NewPostgresDB(dbConfig)
		if err == nil {
			appLogger.Info("Successfully connected to PostgreSQL database!")
			break
		}
		appLogger.Warn(fmt.Sprintf("Failed to connect to database (attempt %d/%d): %v. Retrying in %s...", i+1, maxRetries, err, retryDelay))
		time.Sleep(retryDelay)
	}

	if db == nil {
		appLogger.Fatal("Could not connect to database after multiple retries. Exiting.", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			appLogger.Error("Error closing database connection", zap.Error(err))
		}
	}()

	appLogger.Info("Running database migrations...")
	m, err := migrate.New(cfg.MigrationsURL, cfg.GetDBMigrationConnectionString())
	if err != nil {
		appLogger.Fatal("Failed to create migrate instance", zap.Error(err))
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		appLogger.Fatal("Failed to run database migrations", zap.Error(err))
	}
	appLogger.Info("Database migrations completed successfully (or no new migrations).")

	orderRepository := postgres_order_repo.NewOrderRepository(db, appLogger.With(zap.String("component", "OrderRepository")))
	paymentRepository := postgres_payment_repo.NewPaymentRepository(db, appLogger.With(zap.String("component", "PaymentRepository")))
	outboxRepository := postgres_outbox_repo.NewOutboxRepository(db, appLogger.With(zap.String("component", "OutboxRepository")))

	cardClient := stripe.NewClient(
		cfg.Stripe.SecretKey,
		cfg.Stripe.APIBase,
		cfg.Stripe.WebhookSecret,
		cfg.SiteBaseURL,
		appLogger.With(zap.String("component", "CardProvider")),
	)
	pushClient := daraja.NewClient(
		cfg.Daraja.ConsumerKey,
		cfg.Daraja.ConsumerSecret,
		cfg.Daraja.ShortCode,
		cfg.Daraja.PassKey,
		cfg.Daraja.APIBase,
		cfg.Daraja.CallbackURL,
		appLogger.With(zap.String("component", "PushProvider")),
	)

	orderService := orders.NewOrderService(orderRepository, db, appLogger.With(zap.String("component", "OrderService")))
	checkoutService := checkout.NewCheckoutService(db, paymentRepository, cardClient, pushClient, appLogger.With(zap.String("component", "CheckoutService")))
	reconcileService := reconcile.NewReconcileService(
		db,
		orderRepository,
		paymentRepository,
		outboxRepository,
		cardClient,
		cfg.OrderStatusTopic,
		cfg.AllowTerminalOverride,
		appLogger.With(zap.String("component", "ReconcileService")),
	)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(30 * time.Second))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.SiteBaseURL},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Storefront service is healthy!"))
	})

	orders_http.RegisterRoutes(router, orderService, appLogger)
	checkout_http.RegisterRoutes(router, checkoutService, appLogger)
	webhooks_http.RegisterRoutes(router, reconcileService, cfg.Daraja.CallbackToken, appLogger)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: router,
	}

	kafkaProducer := kafka_infra.NewProducer(cfg.GetKafkaBrokers(), appLogger.With(zap.String("component", "KafkaProducer")))
	defer func() {
		if err := kafkaProducer.Close(); err != nil {
			appLogger.Error("Error closing Kafka producer", zap.Error(err))
		}
	}()

	outboxProcessor := outbox.NewProcessor(
		outboxRepository,
		kafkaProducer,
		cfg.OutboxPollInterval,
		cfg.OutboxPollTimeout,
		appLogger.With(zap.String("component", "OutboxProcessor")),
	)

	ctxMain, cancelMain := context.WithCancel(context.Background())

	go func() {
		appLogger.Info("Starting HTTP server", zap.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	go func() {
		outboxProcessor.Start(ctxMain)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	appLogger.Info("Shutting down application...")

	cancelMain()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("HTTP server graceful shutdown failed", zap.Error(err))
	} else {
		appLogger.Info("HTTP server gracefully shut down.")
	}

	appLogger.Info("Application gracefully shut down.")
}
