package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/urolovforever/Brand-Store/internal/client"
	"github.com/urolovforever/Brand-Store/internal/config"
	"github.com/urolovforever/Brand-Store/internal/gateway/click"
	"github.com/urolovforever/Brand-Store/internal/gateway/cod"
	"github.com/urolovforever/Brand-Store/internal/gateway/payme"
	"github.com/urolovforever/Brand-Store/internal/lock"
	"github.com/urolovforever/Brand-Store/internal/logging"
	"github.com/urolovforever/Brand-Store/internal/middleware"
	"github.com/urolovforever/Brand-Store/internal/outbox"
	"github.com/urolovforever/Brand-Store/internal/repository"
	"github.com/urolovforever/Brand-Store/internal/server"
	"github.com/urolovforever/Brand-Store/internal/service"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the outbox relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			db, err := client.OpenDatabase(cfg.Database)
			if err != nil {
				return err
			}
			if err := client.Migrate(db); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Println("schema is up to date")
			return nil
		},
	}
}

func serve(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	logger := logging.New(cfg.Log)
	slog.SetDefault(logger)

	epsilon, err := decimal.NewFromString(cfg.Reconcile.AmountEpsilon)
	if err != nil {
		return fmt.Errorf("parse RECONCILE_AMOUNT_EPSILON: %w", err)
	}

	db := client.InitDatabase(cfg.Database)
	if cfg.Environment.IsDevelopment() {
		if err := client.Migrate(db); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	var locker lock.Locker = lock.NewLocal()
	if cfg.Redis.Addr != "" {
		rdb, err := client.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer rdb.Close()
		locker = lock.NewRedis(rdb, cfg.Redis.LockTTL)
	}

	orderRepo := repository.NewOrderRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	productRepo := repository.NewProductRepository(db)
	promoRepo := repository.NewPromoCodeRepository(db)
	outboxRepo := repository.NewOutboxRepository(db)

	reconciler := service.NewReconciler(
		db, locker, logger, epsilon,
		orderRepo,
		paymentRepo,
		productRepo,
		outboxRepo,
	)

	clickAdapter := click.NewAdapter(cfg.Click, reconciler, logger)
	paymeAdapter := payme.NewAdapter(cfg.Payme, reconciler, logger)

	checkoutService := service.NewCheckoutService(
		logger,
		orderRepo,
		paymentRepo,
		clickAdapter, paymeAdapter, cod.New(),
	)
	orderService := service.NewOrderService(
		db, logger,
		orderRepo,
		productRepo,
		promoRepo,
		paymentRepo,
		outboxRepo,
	)

	if len(cfg.Kafka.Brokers) > 0 {
		writer := client.NewKafkaWriter(cfg.Kafka)
		defer writer.Close()

		relay := outbox.NewRelay(logger, outboxRepo, outbox.NewDispatcher(logger, writer))
		go func() {
			if err := relay.Run(ctx); err != nil {
				logger.Error("outbox relay stopped", "err", err)
			}
		}()
	}

	auth := middleware.AuthMiddleware(cfg.Auth.JWTSecret, cfg.Environment.IsDevelopment())
	srv := server.NewServer(logger, auth, clickAdapter, paymeAdapter, checkoutService, orderService)

	serverAddr := cfg.HTTP.Host + ":" + cfg.HTTP.Port
	logger.Info("starting HTTP server", "addr", serverAddr)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}
	logger.Info("signal received, starting graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}
