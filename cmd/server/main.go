package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"ridecore/internal/app"
	"ridecore/internal/config"
	"ridecore/internal/handler"
	"ridecore/internal/logger"
	"ridecore/internal/middleware"
	"ridecore/internal/rabbitmq"
	internalRedis "ridecore/internal/redis"
	"ridecore/internal/service"
)

func main() {
	// Load configuration.
	cfg := config.Load()

	log, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	if cfg.Auth.JWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET must be set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Initialize New Relic FIRST (before database so we can instrument DB).
	var nrApp *newrelic.Application
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			log.Warn("failed to initialize New Relic", zap.Error(err))
		} else {
			log.Info("New Relic enabled", zap.String("app", cfg.NewRelic.AppName))
		}
	}

	var repos app.Repositories
	switch cfg.Storage.Driver {
	case config.StorageDriverMemory:
		repos = app.NewMemoryRepositories()
		log.Info("using in-memory storage")
	case config.StorageDriverPostgres:
		db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
		if err != nil {
			log.Fatal("failed to connect to database", zap.Error(err))
		}
		defer db.Close()
		repos = app.NewPostgresRepositories(db)
		log.Info("connected to PostgreSQL")
	default:
		log.Fatal("unknown storage driver", zap.String("driver", cfg.Storage.Driver))
	}

	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	if redisClient != nil {
		defer redisClient.Close()
		log.Info("connected to Redis", zap.String("addr", cfg.Redis.Addr))
	}

	var publisher *rabbitmq.Publisher
	if cfg.RabbitMQ.Enabled {
		publisher, err = rabbitmq.NewPublisher(ctx, cfg.RabbitMQ, log)
		if err != nil {
			log.Fatal("failed to connect to rabbitmq", zap.Error(err))
		}
		defer func() {
			if err := publisher.Close(); err != nil {
				log.Warn("failed to close rabbitmq publisher", zap.Error(err))
			}
		}()
	}

	// Wire dependencies.
	server := wireServer(cfg, repos, redisClient, publisher, nrApp, log)

	// Start server in goroutine.
	go func() {
		log.Info("starting server", zap.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server exited")
}

// wireServer wires all dependencies and returns the HTTP server.
// redisClient and publisher may be nil.
func wireServer(
	cfg *config.Config,
	repos app.Repositories,
	redisClient *redis.Client,
	publisher *rabbitmq.Publisher,
	nrApp *newrelic.Application,
	log *zap.Logger,
) *http.Server {
	var (
		rideCache        service.RideCache
		driverCache      service.DriverCache
		idempotencyStore middleware.IdempotencyStore
	)
	if redisClient != nil {
		cacheStore := internalRedis.NewCacheStore(redisClient)
		rideCache, driverCache = cacheStore, cacheStore
		idempotencyStore = internalRedis.NewIdempotencyStore(redisClient)
	}

	var eventPublisher service.Publisher
	if publisher != nil {
		eventPublisher = publisher
	}

	// Initialize services.
	notificationService := service.NewNotificationService(eventPublisher, log)
	rideService := service.NewRideService(
		repos.Rides, repos.Users, repos.Drivers,
		service.NewFlatRateFare(cfg.Fare.RatePerUnit),
		rideCache,
		notificationService,
		log,
	)
	driverService := service.NewDriverService(repos.Drivers, repos.Users, driverCache, log)
	userService := service.NewUserService(repos.Users, log)

	// Create router.
	router := app.NewRouter(app.RouterDeps{
		RideHandler:      handler.NewRideHandler(rideService),
		DriverHandler:    handler.NewDriverHandler(driverService),
		UserHandler:      handler.NewUserHandler(userService),
		TokenVerifier:    middleware.NewTokenVerifier(cfg.Auth.JWTSecret),
		IdempotencyStore: idempotencyStore,
		NewRelicApp:      nrApp,
		Logger:           log,
	})

	// Create HTTP server.
	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}
