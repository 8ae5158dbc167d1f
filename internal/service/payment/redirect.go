package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/salonova/payments/internal/domain"
	"github.com/salonova/payments/internal/gateway"
	"github.com/salonova/payments/internal/logging"
)

type InitiateRedirectRequest struct {
	PaymentID uuid.UUID
	Mobile    string
	Email     string
}

// InitiateRedirect asks the gateway for a payment handle and records it on
// the aggregate. The returned URL is where the customer completes payment.
func (s *Service) InitiateRedirect(ctx context.Context, req InitiateRedirectRequest) (*domain.Payment, error) {
	p, err := s.payments.GetByID(ctx, req.PaymentID)
	if err != nil {
		return nil, fmt.Errorf("InitiateRedirect: %w", err)
	}
	if p.Status != domain.PaymentStatusPending {
		return nil, fmt.Errorf("InitiateRedirect: from %s: %w", p.Status, domain.ErrInvalidStateTransition)
	}

	result, err := s.gateway.CreatePaymentRequest(ctx, gateway.PaymentRequest{
		Amount:      p.Amount,
		CallbackURL: s.config.GatewayCallbackURL,
		Mobile:      req.Mobile,
		Email:       req.Email,
		Description: fmt.Sprintf("payment %s", p.ID),
	})
	if err != nil {
		return nil, fmt.Errorf("InitiateRedirect: %w", err)
	}

	now := time.Now().UTC()
	txn, err := p.RecordPaymentRequest(result.Authority, result.PaymentURL, now)
	if err != nil {
		return nil, fmt.Errorf("InitiateRedirect: %w", err)
	}
	if err := s.persist(ctx, p, txn); err != nil {
		return nil, fmt.Errorf("InitiateRedirect: %w", err)
	}

	logging.FromContext(ctx).Info("payment request recorded",
		"payment_id", p.ID,
		"authority", result.Authority,
	)
	return p, nil
}

type VerifyResult struct {
	Payment         *domain.Payment
	AlreadyVerified bool
}

// Verify completes a redirect flow after the gateway calls back. Gateways
// redeliver callbacks, so a payment that is already Paid is returned as-is
// without a second gateway round-trip or a second ledger entry. A gateway
// rejection marks the payment Failed; a transport failure leaves it in its
// prior state for the reconciler to re-drive.
func (s *Service) Verify(ctx context.Context, paymentID uuid.UUID) (*VerifyResult, error) {
	log := logging.FromContext(ctx)

	p, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("Verify: %w", err)
	}
	if p.Status == domain.PaymentStatusPaid {
		log.Info("verification replayed, payment already paid", "payment_id", p.ID)
		return &VerifyResult{Payment: p, AlreadyVerified: true}, nil
	}
	if p.Authority == nil {
		return nil, fmt.Errorf("Verify: payment has no gateway handle: %w", domain.ErrInvalidStateTransition)
	}

	result, err := s.gateway.VerifyPayment(ctx, *p.Authority, p.Amount)
	if err != nil {
		return nil, fmt.Errorf("Verify: %w", err)
	}

	now := time.Now().UTC()
	from := p.Status

	if !result.Success {
		txn, err := p.MarkFailed("gateway rejected verification", now)
		if err != nil {
			return nil, fmt.Errorf("Verify: %w", err)
		}
		if err := s.persist(ctx, p, txn); err != nil {
			return nil, fmt.Errorf("Verify: %w", err)
		}
		s.publishStatusChange(p, from, *p.Authority, now)
		log.Warn("payment verification rejected", "payment_id", p.ID, "authority", *p.Authority)
		return &VerifyResult{Payment: p}, nil
	}

	txn, err := p.VerifyPayment(result.RefNumber, result.CardPan, now)
	if err != nil {
		return nil, fmt.Errorf("Verify: %w", err)
	}
	if result.Fee != nil {
		p.Fee = result.Fee
	}
	if err := s.persist(ctx, p, txn); err != nil {
		return nil, fmt.Errorf("Verify: %w", err)
	}

	s.publishStatusChange(p, from, result.RefNumber, now)
	log.Info("payment verified",
		"payment_id", p.ID,
		"ref_number", result.RefNumber,
		"amount", p.Amount.Format(),
	)
	return &VerifyResult{Payment: p}, nil
}

// VerifyByAuthority resolves the gateway callback's authority to a payment
// and verifies it.
func (s *Service) VerifyByAuthority(ctx context.Context, authority string) (*VerifyResult, error) {
	p, err := s.payments.GetByAuthority(ctx, authority)
	if err != nil {
		return nil, fmt.Errorf("VerifyByAuthority: %w", err)
	}
	return s.Verify(ctx, p.ID)
}
