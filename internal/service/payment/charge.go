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

type CreateRequest struct {
	BookingID  *uuid.UUID
	CustomerID uuid.UUID
	ProviderID uuid.UUID
	Amount     int64
	Currency   domain.Currency
	Method     domain.PaymentMethod
	Metadata   map[string]string
}

// Create produces a Pending payment, standalone or tied to a booking.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*domain.Payment, error) {
	amount, err := domain.NewMoney(req.Amount, req.Currency)
	if err != nil {
		return nil, fmt.Errorf("Create: %w", err)
	}

	now := time.Now().UTC()
	var p *domain.Payment
	if req.BookingID != nil {
		p, err = domain.NewBookingPayment(*req.BookingID, req.CustomerID, req.ProviderID, amount, req.Method, now)
	} else {
		p, err = domain.NewPayment(req.CustomerID, req.ProviderID, amount, req.Method, now)
	}
	if err != nil {
		return nil, fmt.Errorf("Create: %w", err)
	}
	for k, v := range req.Metadata {
		p.Metadata[k] = v
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("Create: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := s.payments.Create(ctx, tx, p); err != nil {
		return nil, fmt.Errorf("Create: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("Create: commit: %w", err)
	}

	s.publish(events.TopicPaymentCreated, domain.PaymentCreated{
		PaymentID:  p.ID,
		BookingID:  p.BookingID,
		ProviderID: p.ProviderID,
		Amount:     p.Amount,
		Method:     p.Method,
		OccurredAt: now,
	})

	logging.FromContext(ctx).Info("payment created",
		"payment_id", p.ID,
		"provider_id", p.ProviderID,
		"amount", p.Amount.Format(),
		"method", p.Method,
	)
	return p, nil
}

// Authorize applies a client-side two-phase authorization result.
func (s *Service) Authorize(ctx context.Context, id uuid.UUID, externalRef, paymentMethodID string) (*domain.Payment, error) {
	p, err := s.payments.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("Authorize: %w", err)
	}

	now := time.Now().UTC()
	from := p.Status
	txn, err := p.Authorize(externalRef, paymentMethodID, now)
	if err != nil {
		return nil, fmt.Errorf("Authorize: %w", err)
	}
	if err := s.persist(ctx, p, txn); err != nil {
		return nil, fmt.Errorf("Authorize: %w", err)
	}

	s.publishStatusChange(p, from, externalRef, now)
	return p, nil
}

// ProcessCharge captures a payment directly, without a prior authorization.
func (s *Service) ProcessCharge(ctx context.Context, id uuid.UUID, externalRef, paymentMethodID string) (*domain.Payment, error) {
	p, err := s.payments.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ProcessCharge: %w", err)
	}

	now := time.Now().UTC()
	from := p.Status
	txn, err := p.ProcessCharge(externalRef, paymentMethodID, now)
	if err != nil {
		return nil, fmt.Errorf("ProcessCharge: %w", err)
	}
	if err := s.persist(ctx, p, txn); err != nil {
		return nil, fmt.Errorf("ProcessCharge: %w", err)
	}

	s.publishStatusChange(p, from, externalRef, now)
	logging.FromContext(ctx).Info("payment charged",
		"payment_id", p.ID,
		"amount", p.Amount.Format(),
		"external_ref", externalRef,
	)
	return p, nil
}

// Capture posts an authorized payment. A nil amount captures in full.
func (s *Service) Capture(ctx context.Context, id uuid.UUID, amount *int64) (*domain.Payment, error) {
	p, err := s.payments.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("Capture: %w", err)
	}

	var captureAmount *domain.Money
	if amount != nil {
		m, err := domain.NewMoney(*amount, p.Amount.Currency)
		if err != nil {
			return nil, fmt.Errorf("Capture: %w", err)
		}
		captureAmount = &m
	}

	now := time.Now().UTC()
	from := p.Status
	txn, err := p.Capture(captureAmount, now)
	if err != nil {
		return nil, fmt.Errorf("Capture: %w", err)
	}
	if err := s.persist(ctx, p, txn); err != nil {
		return nil, fmt.Errorf("Capture: %w", err)
	}

	s.publishStatusChange(p, from, "", now)
	return p, nil
}

// MarkFailed moves a non-terminal payment to Failed with an operator
// visible reason.
func (s *Service) MarkFailed(ctx context.Context, id uuid.UUID, reason string) (*domain.Payment, error) {
	p, err := s.payments.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("MarkFailed: %w", err)
	}

	now := time.Now().UTC()
	from := p.Status
	txn, err := p.MarkFailed(reason, now)
	if err != nil {
		return nil, fmt.Errorf("MarkFailed: %w", err)
	}
	if err := s.persist(ctx, p, txn); err != nil {
		return nil, fmt.Errorf("MarkFailed: %w", err)
	}

	s.publishStatusChange(p, from, reason, now)
	logging.FromContext(ctx).Warn("payment failed",
		"payment_id", p.ID,
		"reason", reason,
	)
	return p, nil
}
