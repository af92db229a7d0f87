package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/angelmondragon/carrental-backend/api/controllers"
	"github.com/angelmondragon/carrental-backend/api/routes"
	"github.com/angelmondragon/carrental-backend/internal/availability"
	"github.com/angelmondragon/carrental-backend/internal/checkout"
	"github.com/angelmondragon/carrental-backend/internal/customers"
	"github.com/angelmondragon/carrental-backend/internal/payments"
	"github.com/angelmondragon/carrental-backend/internal/pricing"
	"github.com/angelmondragon/carrental-backend/internal/proofs"
	"github.com/angelmondragon/carrental-backend/internal/rentals"
	"github.com/angelmondragon/carrental-backend/internal/vehicles"
	"github.com/angelmondragon/carrental-backend/internal/verification"
	"github.com/angelmondragon/carrental-backend/pkg/config"
	"github.com/angelmondragon/carrental-backend/pkg/db"
	"github.com/angelmondragon/carrental-backend/pkg/logger"
	"github.com/angelmondragon/carrental-backend/pkg/metrics"
	"github.com/angelmondragon/carrental-backend/pkg/migrate"
	"github.com/angelmondragon/carrental-backend/pkg/outbox"
	"github.com/angelmondragon/carrental-backend/pkg/redis"
	"github.com/angelmondragon/carrental-backend/pkg/storage"
)

const shutdownTimeout = 15 * time.Second

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
		FilePath:    cfg.App.LogFile,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, redisClient.Close()) }()

	objects, err := storage.New(ctx, cfg, logg)
	if err != nil {
		return err
	}
	proofStore, err := proofs.NewStore(objects)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	rentalMetrics := metrics.NewRentalMetrics(registry)

	calculator, err := pricing.NewCalculator(cfg.Pricing)
	if err != nil {
		return err
	}

	conn := dbClient.DB()
	rentalRepo := rentals.NewRepository(conn)
	vehicleRepo := vehicles.NewRepository(conn)
	customerRepo := customers.NewRepository(conn)
	paymentRepo := payments.NewRepository(conn)
	outboxService := outbox.NewService(outbox.NewRepository(conn), logg)

	store, bind := rentals.AvailabilityStore(rentalRepo)
	checker, err := availability.NewChecker(store, bind)
	if err != nil {
		return err
	}
	controller, err := rentals.NewController(rentalRepo, vehicleRepo, checker, outboxService, rentalMetrics, logg, nil)
	if err != nil {
		return err
	}

	rentalService, err := rentals.NewService(rentals.ServiceParams{
		Repo:       rentalRepo,
		Payments:   paymentRepo,
		Controller: controller,
		Tx:         dbClient,
		Outbox:     outboxService,
		History:    outboxService,
		Proofs:     proofStore,
		Logger:     logg,
	})
	if err != nil {
		return err
	}

	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		Rentals:    rentalRepo,
		Vehicles:   vehicleRepo,
		Customers:  customerRepo,
		Payments:   paymentRepo,
		Controller: controller,
		Pricing:    calculator,
		Inspector:  proofs.NewInspector(cfg.Payments.MaxProofBytes()),
		Proofs:     proofStore,
		Tx:         dbClient,
		Outbox:     outboxService,
		Metrics:    rentalMetrics,
		Config:     cfg.Payments,
		Logger:     logg,
	})
	if err != nil {
		return err
	}

	verificationService, err := verification.NewService(verification.ServiceParams{
		Queue:      verification.NewQueueReader(conn),
		Rentals:    rentalRepo,
		Payments:   paymentRepo,
		Controller: controller,
		Tx:         dbClient,
		Outbox:     outboxService,
		Proofs:     proofStore,
		Metrics:    rentalMetrics,
		Logger:     logg,
	})
	if err != nil {
		return err
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	logCtx := logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
		"storage":  cfg.Storage.Backend,
	})

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			registry,
			map[string]controllers.Pinger{
				"database": dbClient,
				"redis":    redisClient,
				"storage":  objects,
			},
			redisClient,
			redisClient,
			vehicleRepo,
			checker,
			rentalService,
			checkoutService,
			verificationService,
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(logCtx, "starting api server")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logg.Info(logCtx, "shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
