package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/salonova/payments/internal/domain"
	"github.com/salonova/payments/internal/events"
	"github.com/salonova/payments/internal/logging"
)

type RefundRequest struct {
	PaymentID uuid.UUID
	Amount    int64
	Reason    string
	Notes     string
}

// Refund returns part or all of a captured payment to the customer.
func (s *Service) Refund(ctx context.Context, req RefundRequest) (*domain.Payment, error) {
	p, err := s.payments.GetByID(ctx, req.PaymentID)
	if err != nil {
		return nil, fmt.Errorf("Refund: %w", err)
	}

	amount, err := domain.NewMoney(req.Amount, p.Amount.Currency)
	if err != nil {
		return nil, fmt.Errorf("Refund: %w", err)
	}

	now := time.Now().UTC()
	from := p.Status
	txn, err := p.Refund(amount, req.Reason, req.Notes, now)
	if err != nil {
		return nil, fmt.Errorf("Refund: %w", err)
	}
	if err := s.persist(ctx, p, txn); err != nil {
		return nil, fmt.Errorf("Refund: %w", err)
	}

	s.publishStatusChange(p, from, req.Reason, now)
	s.publish(events.TopicPaymentRefunded, domain.PaymentRefunded{
		PaymentID:     p.ID,
		ProviderID:    p.ProviderID,
		Amount:        amount,
		RefundedTotal: p.RefundedAmount,
		Reason:        req.Reason,
		FullyRefunded: p.Status == domain.PaymentStatusRefunded,
		OccurredAt:    now,
	})

	logging.FromContext(ctx).Info("payment refunded",
		"payment_id", p.ID,
		"amount", amount.Format(),
		"refunded_total", p.RefundedAmount.Format(),
		"status", p.Status,
	)
	return p, nil
}

type SettlementResult struct {
	Payment          *domain.Payment
	AlreadyProcessed bool
}

// Settle confirms final posting of a captured payment with the gateway.
// Repeated settlement of an already-settled payment reports
// AlreadyProcessed without another gateway round-trip.
func (s *Service) Settle(ctx context.Context, id uuid.UUID) (*SettlementResult, error) {
	p, err := s.payments.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("Settle: %w", err)
	}
	if p.SettledAt != nil {
		return &SettlementResult{Payment: p, AlreadyProcessed: true}, nil
	}
	if p.Authority == nil {
		return nil, fmt.Errorf("Settle: payment has no gateway handle: %w", domain.ErrInvalidStateTransition)
	}

	ok, err := s.gateway.Settle(ctx, *p.Authority)
	if err != nil {
		return nil, fmt.Errorf("Settle: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("Settle: gateway rejected settlement: %w", domain.ErrGateway)
	}

	now := time.Now().UTC()
	already, err := p.Settle(now)
	if err != nil {
		return nil, fmt.Errorf("Settle: %w", err)
	}
	if !already {
		if err := s.persist(ctx, p); err != nil {
			return nil, fmt.Errorf("Settle: %w", err)
		}
	}

	logging.FromContext(ctx).Info("payment settled", "payment_id", p.ID)
	return &SettlementResult{Payment: p, AlreadyProcessed: already}, nil
}

// Reverse cancels a captured-but-unsettled payment at the gateway and
// auto-reverses the aggregate. Safe to re-invoke.
func (s *Service) Reverse(ctx context.Context, id uuid.UUID, reason string) (*SettlementResult, error) {
	p, err := s.payments.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("Reverse: %w", err)
	}
	if p.Status == domain.PaymentStatusAutoReversed {
		return &SettlementResult{Payment: p, AlreadyProcessed: true}, nil
	}
	if p.Authority == nil {
		return nil, fmt.Errorf("Reverse: payment has no gateway handle: %w", domain.ErrInvalidStateTransition)
	}

	ok, err := s.gateway.Reverse(ctx, *p.Authority)
	if err != nil {
		return nil, fmt.Errorf("Reverse: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("Reverse: gateway rejected reversal: %w", domain.ErrGateway)
	}

	now := time.Now().UTC()
	from := p.Status
	already, err := p.Reverse(reason, now)
	if err != nil {
		return nil, fmt.Errorf("Reverse: %w", err)
	}
	if !already {
		if err := s.persist(ctx, p); err != nil {
			return nil, fmt.Errorf("Reverse: %w", err)
		}
		s.publishStatusChange(p, from, reason, now)
	}

	logging.FromContext(ctx).Info("payment reversed", "payment_id", p.ID, "reason", reason)
	return &SettlementResult{Payment: p, AlreadyProcessed: already}, nil
}
