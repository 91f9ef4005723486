package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ecommercefs/storefront/api/internal/app"
	"github.com/ecommercefs/storefront/api/internal/cache"
	"github.com/ecommercefs/storefront/api/internal/clock"
	"github.com/ecommercefs/storefront/api/internal/config"
	"github.com/ecommercefs/storefront/api/internal/logging"
	"github.com/ecommercefs/storefront/api/internal/messaging/kafka"
	"github.com/ecommercefs/storefront/api/internal/payment"
	"github.com/ecommercefs/storefront/api/internal/storage/postgres"
	transporthttp "github.com/ecommercefs/storefront/api/internal/transport/http"
	"github.com/ecommercefs/storefront/api/migrations"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

func main() {
	boot := logging.New("api", logging.Options{})
	config.LoadEnvFile(boot)

	cfg, err := config.Load()
	if err != nil {
		boot.Fatal().Err(err).Msg("load config")
	}

	logger := logging.New("api", logging.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("api exited")
	}
	logger.Info().Msg("server stopped")
}

func run(cfg config.Config, logger zerolog.Logger) error {
	startupCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return err
	}
	if cfg.Database.MaxConns > 0 {
		poolCfg.MaxConns = cfg.Database.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(startupCtx, poolCfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pool.Ping(startupCtx); err != nil {
		return err
	}
	if err := migrations.Apply(startupCtx, pool, logger); err != nil {
		return err
	}

	clk := clock.NewSystem()
	events, closeEvents := newEventPublisher(cfg, logger)
	defer closeEvents()

	variantRepo := postgres.NewVariantRepository(pool)
	reservationRepo := postgres.NewReservationRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)
	adminRepo := postgres.NewAdminRepository(pool)

	ledger := app.NewInventoryLedger(variantRepo, logger.With().Str("module", "ledger").Logger())
	reservations := app.NewReservationManager(reservationRepo, ledger, clk,
		app.WithReservationTTL(cfg.Checkout.ReservationTTL),
		app.WithSweepBatchSize(cfg.Checkout.SweepBatchSize),
		app.WithReservationEvents(events),
		app.WithReservationLogger(logger.With().Str("module", "reservations").Logger()),
	)
	pricing := app.NewPricingService(variantRepo, clk)
	orders := app.NewOrderService(orderRepo, reservations, pricing, clk,
		app.WithCurrency(cfg.Checkout.Currency),
		app.WithOrderEvents(events),
		app.WithOrderLogger(logger.With().Str("module", "orders").Logger()),
	)

	paymentOpts := []app.PaymentServiceOption{
		app.WithPaymentLogger(logger.With().Str("module", "payments").Logger()),
	}
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(startupCtx).Err(); err != nil {
			return err
		}
		paymentOpts = append(paymentOpts, app.WithPaymentLock(cache.NewPaymentLock(rdb, cfg.Payment.LockTTL, logger)))
	} else {
		logger.Warn().Msg("redis not configured, payment lock disabled")
	}
	payments := app.NewPaymentService(orders, newGateway(cfg, logger), paymentOpts...)
	admin := app.NewAdminService(adminRepo, ledger, reservations, clk, logger.With().Str("module", "admin").Logger())

	svc := transporthttp.Services{
		Orders:   orders,
		Payments: payments,
		Pricing:  pricing,
		Admin:    admin,
		DB:       pool,
	}
	if cfg.Auth.JWTSecret != "" {
		svc.Authz = transporthttp.NewAuthz(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	}

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      transporthttp.NewRouter(svc, cfg.HTTP.CORSOrigins, logger.With().Str("module", "http").Logger()),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}
	sweeper := app.NewSweeper(reservations, clk, cfg.Checkout.SweepInterval, logger.With().Str("module", "sweeper").Logger())

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(stopCtx)
	g.Go(func() error {
		logger.Info().Str("addr", server.Addr).Msg("api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return sweeper.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutdown signal received, stopping server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("server shutdown error")
		}
		return nil
	})

	return g.Wait()
}

func newGateway(cfg config.Config, logger zerolog.Logger) app.PaymentGateway {
	switch cfg.Payment.Provider {
	case config.PaymentProviderMercadoPago:
		return payment.NewMercadoPago(payment.MercadoPagoConfig{
			BaseURL:     cfg.Payment.MercadoPago.BaseURL,
			AccessToken: cfg.Payment.MercadoPago.AccessToken,
			Timeout:     cfg.Payment.Timeout,
		}, logger.With().Str("module", "mercadopago").Logger())
	default:
		logger.Warn().Msg("using sandbox payment gateway")
		return payment.NewSandbox()
	}
}

func newEventPublisher(cfg config.Config, logger zerolog.Logger) (app.EventPublisher, func()) {
	if len(cfg.Kafka.Brokers) == 0 {
		logger.Info().Msg("kafka not configured, lifecycle events disabled")
		return nil, func() {}
	}
	pub := kafka.NewPublisher(kafka.Config{
		Brokers:      cfg.Kafka.Brokers,
		Topic:        cfg.Kafka.Topic,
		WriteTimeout: 5 * time.Second,
		BatchTimeout: cfg.Kafka.BatchTimeout,
	}, logger.With().Str("module", "kafka").Logger())
	return pub, func() {
		if err := pub.Close(); err != nil {
			logger.Warn().Err(err).Msg("close kafka publisher")
		}
	}
}
