package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"cabride/internal/app"
	"cabride/internal/auth"
	"cabride/internal/config"
	"cabride/internal/events"
	"cabride/internal/geo"
	"cabride/internal/handler"
	"cabride/internal/logging"
	"cabride/internal/payment"
	"cabride/internal/realtime"
	internalRedis "cabride/internal/redis"
	"cabride/internal/repository/postgres"
	"cabride/internal/service"
)

const eventBuffer = 1024

func main() {
	// A missing .env file is fine; the environment may already be set.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration:\n%v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg.Log.Level)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize New Relic FIRST (before database so we can instrument DB).
	var nrApp *newrelic.Application
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		var err error
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			logger.Warn("New Relic disabled", "error", err)
			nrApp = nil
		} else {
			logger.Info("New Relic enabled", "app", cfg.NewRelic.AppName)
			defer nrApp.Shutdown(5 * time.Second)
		}
	}

	db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()
	logger.Info("connected to PostgreSQL", "migrated", cfg.Database.Migrate)

	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer redisClient.Close()
	logger.Info("connected to Redis", "addr", cfg.Redis.Addr)

	sink, err := newEventSink(cfg.Events)
	if err != nil {
		return fmt.Errorf("event sink: %w", err)
	}
	dispatcher := events.NewDispatcher(sink, eventBuffer, logger)
	defer func() {
		if err := dispatcher.Close(); err != nil {
			logger.Error("close event sink", "error", err)
		}
	}()
	logger.Info("event sink ready", "sink", sink.Name())

	server, err := wireServer(db, redisClient, nrApp, dispatcher, cfg, logger)
	if err != nil {
		return err
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		logger.Info("shutting down server", "signal", sig.String())
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server exited")
	return nil
}

// wireServer wires all dependencies and returns the HTTP server.
func wireServer(
	db *sql.DB,
	redisClient *redis.Client,
	nrApp *newrelic.Application,
	emitter service.EventEmitter,
	cfg *config.Config,
	logger *slog.Logger,
) (*http.Server, error) {
	// Initialize Redis stores.
	locationStore := internalRedis.NewLocationStore(redisClient)
	lockStore := internalRedis.NewLockStore(redisClient)
	cacheStore := internalRedis.NewCacheStore(redisClient)

	// Initialize repositories.
	transactor := postgres.NewTransactor(db)
	userRepo := postgres.NewUserRepository(db)
	driverRepo := postgres.NewDriverRepository(db)
	rideRepo := postgres.NewRideRepository(db)
	chatRepo := postgres.NewChatRepository(db)
	reportRepo := postgres.NewReportRepository(db)
	paymentRepo := postgres.NewPaymentRepository(db)

	estimator, err := newEstimator(cfg.Routing, logger)
	if err != nil {
		return nil, err
	}

	policy := service.Policy{
		FreshnessWindow:    cfg.Policy.FreshnessWindow,
		CancelGracePeriod:  cfg.Policy.CancelGracePeriod,
		CustomerCancelFine: cfg.Policy.CustomerCancelFine,
		DriverCancelFine:   cfg.Policy.DriverCancelFine,
		NearbyRadiusKm:     cfg.Policy.NearbyRadiusKm,
		FarePerKm:          cfg.Policy.FarePerKm,
	}

	// The hub is the fanout bus every service publishes to.
	hub := realtime.NewHub(logger)
	issuer := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	// Initialize services.
	notificationService := service.NewNotificationService(hub, emitter, logger)
	accountService := service.NewAccountService(transactor, userRepo, issuer, cfg.Auth.AdminUsernames)
	rideService := service.NewRideService(service.RideServiceDeps{
		Transactor:   transactor,
		RideRepo:     rideRepo,
		UserRepo:     userRepo,
		DriverRepo:   driverRepo,
		LockStore:    lockStore,
		Estimator:    estimator,
		Notification: notificationService,
		Policy:       policy,
		Logger:       logger,
	})
	driverService := service.NewDriverService(locationStore, cacheStore, driverRepo, rideRepo, notificationService, policy, logger)
	chatService := service.NewChatService(chatRepo, rideRepo, userRepo, notificationService)
	reportService := service.NewReportService(reportRepo, rideRepo)
	adminService := service.NewAdminService(transactor, userRepo, driverRepo, reportRepo, cacheStore, logger)
	receiptService := service.NewReceiptService(rideRepo, driverRepo, service.Payee{
		UPIID: cfg.Payments.UPIPayeeID,
		Name:  cfg.Payments.UPIPayeeName,
	})
	paymentService := service.NewPaymentService(
		transactor, paymentRepo, userRepo, driverRepo,
		newPaymentProvider(cfg.Payments), cfg.Payments.Currency,
		notificationService, logger,
	)

	// Create router.
	router := app.NewRouter(app.RouterDeps{
		UserHandler:    handler.NewUserHandler(accountService),
		RideHandler:    handler.NewRideHandler(rideService, receiptService),
		DriverHandler:  handler.NewDriverHandler(driverService),
		ChatHandler:    handler.NewChatHandler(chatService),
		ReportHandler:  handler.NewReportHandler(reportService),
		AdminHandler:   handler.NewAdminHandler(adminService),
		PaymentHandler: handler.NewPaymentHandler(paymentService),
		RealtimeHandler: handler.NewRealtimeHandler(handler.RealtimeDeps{
			Hub:            hub,
			Verifier:       issuer,
			AccountService: accountService,
			RideService:    rideService,
			DriverService:  driverService,
			ChatService:    chatService,
			PushInterval:   cfg.Policy.LocationPushInterval,
			AllowedOrigins: cfg.Server.AllowedOrigins,
			Logger:         logger,
		}),
		Verifier:       issuer,
		RedisClient:    redisClient,
		NewRelicApp:    nrApp,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         logger,
	})

	// Create HTTP server.
	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, nil
}

func newEventSink(cfg config.EventsConfig) (events.Sink, error) {
	switch cfg.Sink {
	case "kafka":
		return events.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic), nil
	case "amqp":
		return events.NewAMQPSink(cfg.AMQPURL, cfg.AMQPExchange)
	default:
		return events.NopSink{}, nil
	}
}

func newEstimator(cfg config.RoutingConfig, logger *slog.Logger) (*geo.Estimator, error) {
	routers := []geo.Router{geo.NewOSRMRouter(cfg.OSRMURL, cfg.Timeout)}
	if cfg.GoogleMapsAPIKey != "" {
		google, err := geo.NewGoogleRouter(cfg.GoogleMapsAPIKey)
		if err != nil {
			return nil, fmt.Errorf("google maps client: %w", err)
		}
		routers = append(routers, google)
	}
	return geo.NewEstimator(logger, routers...), nil
}

func newPaymentProvider(cfg config.PaymentsConfig) payment.Provider {
	if cfg.Provider == "stripe" {
		return payment.NewStripe(cfg.StripeAPIKey, "")
	}
	return payment.NewSimulated()
}
