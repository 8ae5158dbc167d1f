package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/salonova/payments/internal/config"
	"github.com/salonova/payments/internal/domain"
	"github.com/salonova/payments/internal/events"
	"github.com/salonova/payments/internal/gateway"
	"github.com/salonova/payments/internal/handler"
	"github.com/salonova/payments/internal/logging"
	"github.com/salonova/payments/internal/middleware"
	"github.com/salonova/payments/internal/repository"
	"github.com/salonova/payments/internal/service"
	"github.com/salonova/payments/internal/service/payment"
	"github.com/salonova/payments/internal/service/payout"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.Init("payments-api", cfg.LogLevel, cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := repository.NewPostgresDB(ctx, cfg.DatabaseURL, repository.PoolConfig{
		MaxOpenConns:     cfg.DBMaxOpenConns,
		MaxIdleConns:     cfg.DBMaxIdleConns,
		ConnMaxLifetimeS: cfg.DBConnMaxLifetimeS,
		ConnMaxIdleTimeS: cfg.DBConnMaxIdleTimeS,
	})
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	hub := events.NewHub()
	subscribeEventLog(hub, logger)

	gw := gateway.NewRetrying(
		gateway.NewHTTPGateway(cfg.GatewayBaseURL, cfg.GatewayTimeout),
		uint64(cfg.GatewayMaxRetries),
		200*time.Millisecond,
	)

	paymentRepo := repository.NewPaymentRepository(db)
	payoutRepo := repository.NewPayoutRepository(db)
	idempotencyRepo := repository.NewIdempotencyRepository(db)

	paymentSvc := payment.NewService(paymentRepo, gw, hub, db, cfg)
	payoutSvc := payout.NewService(payoutRepo, paymentRepo, gw, hub, db)
	earningsSvc := service.NewEarningsService(paymentRepo, cfg.DefaultCommissionPct)
	reconciler := service.NewReconciler(paymentRepo, gw, db, logger, cfg.ReconcileInterval, cfg.AutoReverseAfter)
	go reconciler.Start(ctx)

	paymentHandler := handler.NewPaymentHandler(paymentSvc)
	payoutHandler := handler.NewPayoutHandler(payoutSvc)
	financialHandler := handler.NewFinancialHandler(earningsSvc)
	healthHandler := handler.NewHealthHandler(db)

	authMW := middleware.Auth(cfg.JWTSecret)
	idempotencyMW := middleware.Idempotency(idempotencyRepo)

	protected := func(h http.HandlerFunc) http.Handler { return authMW(h) }
	idempotent := func(h http.HandlerFunc) http.Handler { return authMW(idempotencyMW(h)) }

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler.Liveness)
	mux.HandleFunc("GET /health/ready", healthHandler.Readiness)

	// Gateway callback must stay open: the customer arrives here from the
	// gateway's redirect without a bearer token.
	mux.HandleFunc("GET /api/v1/payments/callback", paymentHandler.Callback)

	mux.Handle("POST /api/v1/payments", idempotent(paymentHandler.Create))
	mux.Handle("GET /api/v1/payments", protected(paymentHandler.List))
	mux.Handle("GET /api/v1/payments/{id}", protected(paymentHandler.Get))
	mux.Handle("POST /api/v1/payments/{id}/redirect", protected(paymentHandler.Redirect))
	mux.Handle("POST /api/v1/payments/{id}/authorize", idempotent(paymentHandler.Authorize))
	mux.Handle("POST /api/v1/payments/{id}/charge", idempotent(paymentHandler.Charge))
	mux.Handle("POST /api/v1/payments/{id}/capture", idempotent(paymentHandler.Capture))
	mux.Handle("POST /api/v1/payments/{id}/refund", idempotent(paymentHandler.Refund))
	mux.Handle("POST /api/v1/payments/{id}/fail", protected(paymentHandler.Fail))
	mux.Handle("POST /api/v1/payments/{id}/settle", protected(paymentHandler.Settle))
	mux.Handle("POST /api/v1/payments/{id}/reverse", protected(paymentHandler.Reverse))

	mux.Handle("POST /api/v1/payouts", idempotent(payoutHandler.Create))
	mux.Handle("GET /api/v1/payouts", protected(payoutHandler.ListPending))
	mux.Handle("GET /api/v1/payouts/{id}", protected(payoutHandler.Get))
	mux.Handle("POST /api/v1/payouts/{id}/execute", idempotent(payoutHandler.Execute))
	mux.Handle("POST /api/v1/payouts/{id}/paid", protected(payoutHandler.MarkPaid))
	mux.Handle("POST /api/v1/payouts/{id}/failed", protected(payoutHandler.MarkFailed))
	mux.Handle("POST /api/v1/payouts/{id}/hold", protected(payoutHandler.Hold))
	mux.Handle("POST /api/v1/payouts/{id}/release", protected(payoutHandler.Release))
	mux.Handle("POST /api/v1/payouts/{id}/cancel", protected(payoutHandler.Cancel))

	mux.Handle("POST /api/v1/pricing/calculate", protected(financialHandler.CalculatePricing))
	mux.Handle("GET /api/v1/providers/{id}/earnings", protected(financialHandler.Earnings))
	mux.Handle("GET /api/v1/providers/{id}/payouts", protected(payoutHandler.ListByProvider))

	root := middleware.Tracing(middleware.Logging(middleware.Recovery(mux)))

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           root,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("server started", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// subscribeEventLog attaches an audit log sink to every domain event topic.
func subscribeEventLog(hub *events.Hub, logger *slog.Logger) {
	hub.Subscribe(events.TopicPaymentCreated, func(_ string, event any) {
		if e, ok := event.(domain.PaymentCreated); ok {
			logger.Info("event: payment created",
				"payment_id", e.PaymentID,
				"provider_id", e.ProviderID,
				"amount", e.Amount.Format(),
			)
		}
	})
	hub.Subscribe(events.TopicPaymentStatusChanged, func(_ string, event any) {
		if e, ok := event.(domain.PaymentStatusChanged); ok {
			logger.Info("event: payment status changed",
				"payment_id", e.PaymentID,
				"from", e.From,
				"to", e.To,
			)
		}
	})
	hub.Subscribe(events.TopicPaymentRefunded, func(_ string, event any) {
		if e, ok := event.(domain.PaymentRefunded); ok {
			logger.Info("event: payment refunded",
				"payment_id", e.PaymentID,
				"amount", e.Amount.Format(),
				"fully_refunded", e.FullyRefunded,
			)
		}
	})
	hub.Subscribe(events.TopicPayoutStatusChanged, func(_ string, event any) {
		if e, ok := event.(domain.PayoutStatusChanged); ok {
			logger.Info("event: payout status changed",
				"payout_id", e.PayoutID,
				"from", e.From,
				"to", e.To,
				"net_amount", e.NetAmount.Format(),
			)
		}
	})
}
