package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/salonova/payments/internal/domain"
	"github.com/salonova/payments/internal/gateway"
)

type reconcilerPaymentRepo interface {
	ListUnsettledBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.Payment, error)
	Update(ctx context.Context, tx *sql.Tx, p *domain.Payment) error
}

const sweepBatchSize = 50

// Reconciler sweeps captured payments that were never settled with the
// gateway. Each sweep asks the gateway which side of the fence a payment
// landed on: confirmed ones are settled locally, the rest are reversed
// before the gateway's own auto-reversal window expires.
type Reconciler struct {
	payments     reconcilerPaymentRepo
	gateway      gateway.Adapter
	db           *sql.DB
	logger       *slog.Logger
	interval     time.Duration
	reverseAfter time.Duration
}

func NewReconciler(
	payments reconcilerPaymentRepo,
	gw gateway.Adapter,
	db *sql.DB,
	logger *slog.Logger,
	interval time.Duration,
	reverseAfter time.Duration,
) *Reconciler {
	return &Reconciler{
		payments:     payments,
		gateway:      gw,
		db:           db,
		logger:       logger,
		interval:     interval,
		reverseAfter: reverseAfter,
	}
}

func (r *Reconciler) Start(ctx context.Context) {
	r.logger.Info("reconciler started", "interval", r.interval, "reverse_after", r.reverseAfter)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reconciler stopped")
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *Reconciler) sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-r.reverseAfter)
	payments, err := r.payments.ListUnsettledBefore(ctx, cutoff, sweepBatchSize)
	if err != nil {
		r.logger.Error("failed to list unsettled payments", "error", err)
		return
	}

	for i := range payments {
		p := &payments[i]
		if err := r.reconcile(ctx, p); err != nil {
			r.logger.Error("failed to reconcile payment",
				"payment_id", p.ID,
				"error", err,
			)
		}
	}
}

func (r *Reconciler) reconcile(ctx context.Context, p *domain.Payment) error {
	status, err := r.gateway.Inquiry(ctx, *p.Authority)
	if err != nil {
		return fmt.Errorf("reconcile: inquiry: %w", err)
	}

	now := time.Now().UTC()
	switch status {
	case gateway.InquiryStatusSettled:
		already, err := p.Settle(now)
		if err != nil {
			return fmt.Errorf("reconcile: %w", err)
		}
		if already {
			return nil
		}
		if err := r.persist(ctx, p); err != nil {
			return fmt.Errorf("reconcile: %w", err)
		}
		r.logger.Info("payment settled by reconciler", "payment_id", p.ID)
		return nil

	case gateway.InquiryStatusReversed:
		// The gateway already returned the funds; record it locally.
		already, err := p.Reverse("reversed at gateway", now)
		if err != nil {
			return fmt.Errorf("reconcile: %w", err)
		}
		if already {
			return nil
		}
		if err := r.persist(ctx, p); err != nil {
			return fmt.Errorf("reconcile: %w", err)
		}
		r.logger.Warn("payment reversed at gateway, recorded locally", "payment_id", p.ID)
		return nil

	default:
		ok, err := r.gateway.Reverse(ctx, *p.Authority)
		if err != nil {
			return fmt.Errorf("reconcile: reverse: %w", err)
		}
		if !ok {
			return fmt.Errorf("reconcile: gateway rejected reversal: %w", domain.ErrGateway)
		}
		already, err := p.Reverse("unsettled past reversal window", now)
		if err != nil {
			return fmt.Errorf("reconcile: %w", err)
		}
		if already {
			return nil
		}
		if err := r.persist(ctx, p); err != nil {
			return fmt.Errorf("reconcile: %w", err)
		}
		r.logger.Warn("payment auto-reversed by reconciler",
			"payment_id", p.ID,
			"authority", *p.Authority,
		)
		return nil
	}
}

func (r *Reconciler) persist(ctx context.Context, p *domain.Payment) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("persist: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := r.payments.Update(ctx, tx, p); err != nil {
		return fmt.Errorf("persist: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("persist: commit: %w", err)
	}
	return nil
}
