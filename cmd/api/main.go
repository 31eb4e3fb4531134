package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/WossMusic/woss-royalties/internal/config"
	"github.com/WossMusic/woss-royalties/internal/handler"
	"github.com/WossMusic/woss-royalties/internal/logging"
	"github.com/WossMusic/woss-royalties/internal/metrics"
	"github.com/WossMusic/woss-royalties/internal/middleware"
	"github.com/WossMusic/woss-royalties/internal/notify"
	"github.com/WossMusic/woss-royalties/internal/render"
	"github.com/WossMusic/woss-royalties/internal/repository"
	"github.com/WossMusic/woss-royalties/internal/service"
	"github.com/WossMusic/woss-royalties/internal/service/settlement"
	"github.com/WossMusic/woss-royalties/internal/service/split"
)

const idempotencyCleanupInterval = time.Hour

func main() {
	if err := run(); err != nil {
		slog.Error("api exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.Init("royalties-api", cfg.LogLevel, cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := repository.NewPostgresDB(ctx, cfg.DatabaseURL, repository.PoolConfig{
		MaxOpenConns:     cfg.DBMaxOpenConns,
		MaxIdleConns:     cfg.DBMaxIdleConns,
		ConnMaxLifetimeS: cfg.DBConnMaxLifetimeS,
		ConnMaxIdleTimeS: cfg.DBConnMaxIdleTimeS,
		ConnectAttempts:  cfg.DBConnectAttempts,
	})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	db := repository.NewDB(pool)

	minWithdrawal, err := cfg.MinWithdrawalAmount()
	if err != nil {
		return err
	}

	store, err := render.NewFileStore(cfg.ArtifactDir)
	if err != nil {
		return fmt.Errorf("artifact store: %w", err)
	}
	renderer, err := render.NewRenderer(store, cfg.DocumentSealSecret)
	if err != nil {
		return fmt.Errorf("renderer: %w", err)
	}

	users := repository.NewUserRepository(pool)
	accounts := repository.NewLedgerAccountRepository(pool)
	movements := repository.NewLedgerMovementRepository(pool)
	profiles := repository.NewPayoutProfileRepository(pool)
	withdrawals := repository.NewWithdrawalRepository(pool)
	deliveryEvents := repository.NewDeliveryEventRepository(pool)
	idempotency := repository.NewIdempotencyRepository(pool)

	notifier := newNotifier(cfg, repository.NewNotificationPreferenceRepository(pool))
	m := metrics.New()

	sequences := service.NewSequenceAllocator(repository.NewSequenceRepository(pool), db)
	invites := service.NewInviteService(users, repository.NewInvitationRepository())
	ledgerSvc := service.NewLedgerService(accounts, movements, users, db)
	deliverer := service.NewDeliverer(withdrawals, renderer, notifier, deliveryEvents, m)

	splitSvc := split.NewService(
		repository.NewSplitRepository(pool),
		repository.NewTrackRepository(pool),
		users,
		invites,
		notifier,
		db,
		m,
	)
	settlementSvc := settlement.NewService(
		withdrawals,
		accounts,
		movements,
		profiles,
		sequences,
		renderer,
		deliverer,
		notifier,
		db,
		m,
		minWithdrawal,
	)

	processor := service.NewDeliveryProcessor(
		deliveryEvents,
		withdrawals,
		deliverer,
		db,
		m,
		logger.With("component", "delivery"),
		cfg.DeliveryPollInterval(),
		cfg.DeliveryMaxAttempts,
	)
	go processor.Start(ctx)
	go cleanIdempotencyCache(ctx, idempotency, logger)

	authMW := middleware.Auth(cfg.JWTSecret)
	idemMW := middleware.Idempotency(idempotency)
	protected := func(h http.HandlerFunc) http.Handler {
		return authMW(middleware.Logging(h))
	}
	idempotent := func(h http.HandlerFunc) http.Handler {
		return authMW(middleware.Logging(idemMW(h)))
	}
	admin := func(h http.HandlerFunc) http.Handler {
		return authMW(middleware.Logging(middleware.RequireAdmin(idemMW(h))))
	}

	health := handler.NewHealthHandler(pool, store)
	authH := handler.NewAuthHandler(users, cfg.JWTSecret, cfg.JWTExpiry())
	userH := handler.NewUserHandler(users, profiles)
	ledgerH := handler.NewLedgerHandler(ledgerSvc)
	splitH := handler.NewSplitHandler(splitSvc)
	settlementH := handler.NewSettlementHandler(settlementSvc, renderer)
	adminH := handler.NewAdminHandler(settlementSvc, ledgerSvc)

	root := http.NewServeMux()
	root.HandleFunc("GET /health/live", health.Liveness)
	root.HandleFunc("GET /health/ready", health.Readiness)
	root.Handle("GET /metrics", m.Handler())
	root.HandleFunc("GET /docs", handler.ServeDocs)
	root.HandleFunc("GET /docs/openapi.yaml", handler.ServeSpec)

	mux := http.NewServeMux()
	root.Handle("/api/v1/", http.StripPrefix("/api/v1", mux))

	mux.Handle("POST /auth/login", middleware.Logging(http.HandlerFunc(authH.Login)))

	mux.Handle("GET /users/{id}", protected(userH.GetByID))
	mux.Handle("GET /users/{id}/payout-profile", protected(userH.GetPayoutProfile))
	mux.Handle("PUT /users/{id}/payout-profile", protected(userH.PutPayoutProfile))
	mux.Handle("GET /users/{id}/ledger", protected(ledgerH.GetAccount))
	mux.Handle("GET /users/{id}/ledger/movements", protected(ledgerH.ListMovements))

	mux.Handle("POST /splits", idempotent(splitH.Create))
	mux.Handle("GET /splits", protected(splitH.List))
	mux.Handle("POST /splits/{id}/respond", idempotent(splitH.Respond))
	mux.Handle("DELETE /splits/{id}", protected(splitH.Cancel))

	mux.Handle("GET /settlements/preview", protected(settlementH.Preview))
	mux.Handle("POST /settlements", idempotent(settlementH.Generate))
	mux.Handle("GET /settlements", protected(settlementH.List))
	mux.Handle("GET /settlements/{id}", protected(settlementH.Get))
	mux.Handle("GET /settlements/{id}/document", protected(settlementH.Document))

	mux.Handle("POST /admin/settlements/{id}/revert", admin(adminH.RevertSettlement))
	mux.Handle("POST /admin/ledger/{userId}/deposits", admin(adminH.Deposit))

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           middleware.Tracing(middleware.Recovery(root)),
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server started", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	slog.Info("server stopped")
	return nil
}

func newNotifier(cfg *config.Config, prefs notify.CapabilityChecker) *notify.Notifier {
	if cfg.NotifierURL == "" {
		slog.Warn("NOTIFIER_URL not set, notifications will only be logged")
		return notify.New(notify.LogTransport{}, prefs)
	}
	return notify.New(notify.NewHTTPTransport(cfg.NotifierURL, cfg.NotifierTimeout()), prefs)
}

func cleanIdempotencyCache(ctx context.Context, repo *repository.IdempotencyRepository, logger *slog.Logger) {
	ticker := time.NewTicker(idempotencyCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := repo.CleanExpired(ctx)
			if err != nil {
				logger.Error("idempotency cleanup failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("idempotency cache cleaned", "removed", n)
			}
		}
	}
}
