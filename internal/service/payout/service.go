package payout

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/salonova/payments/internal/domain"
	"github.com/salonova/payments/internal/events"
	"github.com/salonova/payments/internal/gateway"
	"github.com/salonova/payments/internal/logging"
)

type payoutRepo interface {
	Create(ctx context.Context, tx *sql.Tx, p *domain.Payout) error
	Update(ctx context.Context, tx *sql.Tx, p *domain.Payout) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Payout, error)
	ListPending(ctx context.Context) ([]domain.Payout, error)
	ListByProvider(ctx context.Context, providerID uuid.UUID, limit, offset int) ([]domain.Payout, error)
	PaymentsAlreadyBatched(ctx context.Context, paymentIDs []uuid.UUID) ([]uuid.UUID, error)
}

type paymentRepo interface {
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Payment, error)
}

// Service drives the Payout aggregate from creation through settlement. A
// payout references its member payments by id only and never mutates them.
type Service struct {
	payouts  payoutRepo
	payments paymentRepo
	gateway  gateway.Adapter
	hub      events.Publisher
	db       *sql.DB
}

func NewService(payouts payoutRepo, payments paymentRepo, gw gateway.Adapter, hub events.Publisher, db *sql.DB) *Service {
	return &Service{
		payouts:  payouts,
		payments: payments,
		gateway:  gw,
		hub:      hub,
		db:       db,
	}
}

type CreateRequest struct {
	ProviderID       uuid.UUID
	GrossAmount      int64
	CommissionAmount int64
	Currency         domain.Currency
	PeriodStart      time.Time
	PeriodEnd        time.Time
	PaymentIDs       []uuid.UUID
	Notes            string
}

// Create validates the aggregation and produces a Pending payout. Every
// member payment must belong to the provider, be in a post-capture,
// payable status, and not already be batched into another payout.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*domain.Payout, error) {
	gross, err := domain.NewMoney(req.GrossAmount, req.Currency)
	if err != nil {
		return nil, fmt.Errorf("Create: gross: %w", err)
	}
	commission, err := domain.NewMoney(req.CommissionAmount, req.Currency)
	if err != nil {
		return nil, fmt.Errorf("Create: commission: %w", err)
	}

	now := time.Now().UTC()
	p, err := domain.NewPayout(req.ProviderID, gross, commission, req.PeriodStart, req.PeriodEnd, req.PaymentIDs, req.Notes, now)
	if err != nil {
		return nil, fmt.Errorf("Create: %w", err)
	}

	if err := s.validateMemberPayments(ctx, req); err != nil {
		return nil, fmt.Errorf("Create: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("Create: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := s.payouts.Create(ctx, tx, p); err != nil {
		return nil, fmt.Errorf("Create: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("Create: commit: %w", err)
	}

	logging.FromContext(ctx).Info("payout created",
		"payout_id", p.ID,
		"provider_id", p.ProviderID,
		"net_amount", p.NetAmount.Format(),
		"payments", len(p.PaymentIDs),
	)
	return p, nil
}

func (s *Service) validateMemberPayments(ctx context.Context, req CreateRequest) error {
	payments, err := s.payments.ListByIDs(ctx, req.PaymentIDs)
	if err != nil {
		return fmt.Errorf("validateMemberPayments: %w", err)
	}
	if len(payments) != len(req.PaymentIDs) {
		return fmt.Errorf("validateMemberPayments: %d of %d payments found: %w",
			len(payments), len(req.PaymentIDs), domain.ErrPaymentNotEligible)
	}

	for _, p := range payments {
		if p.ProviderID != req.ProviderID {
			return fmt.Errorf("validateMemberPayments: payment %s belongs to another provider: %w",
				p.ID, domain.ErrPaymentNotEligible)
		}
		if p.Status != domain.PaymentStatusPaid && p.Status != domain.PaymentStatusPartiallyRefunded {
			return fmt.Errorf("validateMemberPayments: payment %s in status %s: %w",
				p.ID, p.Status, domain.ErrPaymentNotEligible)
		}
		if p.Amount.Currency != req.Currency {
			return fmt.Errorf("validateMemberPayments: payment %s: %w", p.ID, domain.ErrCurrencyMismatch)
		}
	}

	batched, err := s.payouts.PaymentsAlreadyBatched(ctx, req.PaymentIDs)
	if err != nil {
		return fmt.Errorf("validateMemberPayments: %w", err)
	}
	if len(batched) > 0 {
		return fmt.Errorf("validateMemberPayments: payment %s already in a payout: %w",
			batched[0], domain.ErrPaymentNotEligible)
	}
	return nil
}

// Execute dispatches the payout to the gateway's transfer API. On
// acceptance the payout moves to Processing and stores the gateway's
// payout id.
func (s *Service) Execute(ctx context.Context, id uuid.UUID, connectedAccountID, description string) (*domain.Payout, error) {
	if connectedAccountID == "" {
		return nil, fmt.Errorf("Execute: %w", domain.ErrMissingPayoutDestination)
	}

	p, err := s.payouts.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("Execute: %w", err)
	}
	if p.Status != domain.PayoutStatusPending {
		return nil, fmt.Errorf("Execute: from %s: %w", p.Status, domain.ErrInvalidStateTransition)
	}

	if description == "" {
		description = fmt.Sprintf("payout %s", p.ID)
	}
	result, err := s.gateway.Transfer(ctx, gateway.TransferRequest{
		ConnectedAccountID: connectedAccountID,
		Amount:             p.NetAmount,
		Description:        description,
	})
	if err != nil {
		return nil, fmt.Errorf("Execute: %w", err)
	}
	if !result.Accepted {
		return nil, fmt.Errorf("Execute: transfer not accepted: %w", domain.ErrGateway)
	}

	now := time.Now().UTC()
	from := p.Status
	if err := p.MarkProcessing(result.ExternalPayoutID, now); err != nil {
		return nil, fmt.Errorf("Execute: %w", err)
	}
	if err := s.persist(ctx, p); err != nil {
		return nil, fmt.Errorf("Execute: %w", err)
	}

	s.publishStatusChange(p, from, now)
	logging.FromContext(ctx).Info("payout executing",
		"payout_id", p.ID,
		"external_payout_id", result.ExternalPayoutID,
		"net_amount", p.NetAmount.Format(),
	)
	return p, nil
}

type SettlementResult struct {
	Payout           *domain.Payout
	AlreadyProcessed bool
}

// MarkAsPaid applies a gateway settlement notification. Duplicate
// notifications on an already-terminal payout succeed without side
// effects.
func (s *Service) MarkAsPaid(ctx context.Context, id uuid.UUID, bankReference, bankName string) (*SettlementResult, error) {
	p, err := s.payouts.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("MarkAsPaid: %w", err)
	}

	now := time.Now().UTC()
	from := p.Status
	already, err := p.MarkPaid(bankReference, bankName, now)
	if err != nil {
		return nil, fmt.Errorf("MarkAsPaid: %w", err)
	}
	if !already {
		if err := s.persist(ctx, p); err != nil {
			return nil, fmt.Errorf("MarkAsPaid: %w", err)
		}
		s.publishStatusChange(p, from, now)
		logging.FromContext(ctx).Info("payout paid",
			"payout_id", p.ID,
			"bank_reference", bankReference,
		)
	}
	return &SettlementResult{Payout: p, AlreadyProcessed: already}, nil
}

// MarkAsFailed applies a gateway failure notification, idempotently.
func (s *Service) MarkAsFailed(ctx context.Context, id uuid.UUID, reason string) (*SettlementResult, error) {
	p, err := s.payouts.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("MarkAsFailed: %w", err)
	}

	now := time.Now().UTC()
	from := p.Status
	already, err := p.MarkFailed(reason, now)
	if err != nil {
		return nil, fmt.Errorf("MarkAsFailed: %w", err)
	}
	if !already {
		if err := s.persist(ctx, p); err != nil {
			return nil, fmt.Errorf("MarkAsFailed: %w", err)
		}
		s.publishStatusChange(p, from, now)
		logging.FromContext(ctx).Warn("payout failed",
			"payout_id", p.ID,
			"reason", reason,
		)
	}
	return &SettlementResult{Payout: p, AlreadyProcessed: already}, nil
}

func (s *Service) PlaceOnHold(ctx context.Context, id uuid.UUID, reason string) (*domain.Payout, error) {
	p, err := s.payouts.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("PlaceOnHold: %w", err)
	}

	now := time.Now().UTC()
	from := p.Status
	if err := p.PlaceOnHold(reason, now); err != nil {
		return nil, fmt.Errorf("PlaceOnHold: %w", err)
	}
	if err := s.persist(ctx, p); err != nil {
		return nil, fmt.Errorf("PlaceOnHold: %w", err)
	}
	s.publishStatusChange(p, from, now)
	return p, nil
}

func (s *Service) ReleaseFromHold(ctx context.Context, id uuid.UUID) (*domain.Payout, error) {
	p, err := s.payouts.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ReleaseFromHold: %w", err)
	}

	now := time.Now().UTC()
	from := p.Status
	if err := p.ReleaseFromHold(now); err != nil {
		return nil, fmt.Errorf("ReleaseFromHold: %w", err)
	}
	if err := s.persist(ctx, p); err != nil {
		return nil, fmt.Errorf("ReleaseFromHold: %w", err)
	}
	s.publishStatusChange(p, from, now)
	return p, nil
}

func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason string) (*domain.Payout, error) {
	p, err := s.payouts.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("Cancel: %w", err)
	}

	now := time.Now().UTC()
	from := p.Status
	if err := p.Cancel(reason, now); err != nil {
		return nil, fmt.Errorf("Cancel: %w", err)
	}
	if err := s.persist(ctx, p); err != nil {
		return nil, fmt.Errorf("Cancel: %w", err)
	}
	s.publishStatusChange(p, from, now)
	return p, nil
}

func (s *Service) GetPayout(ctx context.Context, id uuid.UUID) (*domain.Payout, error) {
	p, err := s.payouts.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("GetPayout: %w", err)
	}
	return p, nil
}

func (s *Service) ListPending(ctx context.Context) ([]domain.Payout, error) {
	payouts, err := s.payouts.ListPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListPending: %w", err)
	}
	return payouts, nil
}

func (s *Service) ListByProvider(ctx context.Context, providerID uuid.UUID, limit, offset int) ([]domain.Payout, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	payouts, err := s.payouts.ListByProvider(ctx, providerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("ListByProvider: %w", err)
	}
	return payouts, nil
}

func (s *Service) persist(ctx context.Context, p *domain.Payout) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("persist: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := s.payouts.Update(ctx, tx, p); err != nil {
		return fmt.Errorf("persist: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("persist: commit: %w", err)
	}
	return nil
}

func (s *Service) publishStatusChange(p *domain.Payout, from domain.PayoutStatus, now time.Time) {
	if s.hub == nil || from == p.Status {
		return
	}
	s.hub.Publish(events.TopicPayoutStatusChanged, domain.PayoutStatusChanged{
		PayoutID:   p.ID,
		ProviderID: p.ProviderID,
		From:       from,
		To:         p.Status,
		NetAmount:  p.NetAmount,
		OccurredAt: now,
	})
}
