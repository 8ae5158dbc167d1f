package payment

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/salonova/payments/internal/config"
	"github.com/salonova/payments/internal/domain"
	"github.com/salonova/payments/internal/events"
	"github.com/salonova/payments/internal/gateway"
)

type paymentRepo interface {
	Create(ctx context.Context, tx *sql.Tx, p *domain.Payment) error
	Update(ctx context.Context, tx *sql.Tx, p *domain.Payment) error
	InsertTransaction(ctx context.Context, tx *sql.Tx, txn *domain.Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
	GetByAuthority(ctx context.Context, authority string) (*domain.Payment, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]domain.Payment, error)
}

// Service drives the Payment aggregate: it loads, applies one state
// transition, and persists the aggregate together with the appended ledger
// transaction in a single database transaction.
type Service struct {
	payments paymentRepo
	gateway  gateway.Adapter
	hub      events.Publisher
	db       *sql.DB
	config   *config.Config
}

func NewService(payments paymentRepo, gw gateway.Adapter, hub events.Publisher, db *sql.DB, cfg *config.Config) *Service {
	return &Service{
		payments: payments,
		gateway:  gw,
		hub:      hub,
		db:       db,
		config:   cfg,
	}
}

func (s *Service) GetPayment(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	p, err := s.payments.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("GetPayment: %w", err)
	}
	return p, nil
}

func (s *Service) ListByCustomer(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]domain.Payment, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	payments, err := s.payments.ListByCustomer(ctx, customerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("ListByCustomer: %w", err)
	}
	return payments, nil
}

// persist writes the mutated aggregate and any appended transactions
// atomically. A nil transaction (idempotent no-op transition) is skipped.
func (s *Service) persist(ctx context.Context, p *domain.Payment, txns ...*domain.Transaction) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("persist: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := s.payments.Update(ctx, tx, p); err != nil {
		return fmt.Errorf("persist: %w", err)
	}
	for _, txn := range txns {
		if txn == nil {
			continue
		}
		if err := s.payments.InsertTransaction(ctx, tx, txn); err != nil {
			return fmt.Errorf("persist: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("persist: commit: %w", err)
	}
	return nil
}

func (s *Service) publish(topic string, event any) {
	if s.hub == nil {
		return
	}
	s.hub.Publish(topic, event)
}

func (s *Service) publishStatusChange(p *domain.Payment, from domain.PaymentStatus, ref string, now time.Time) {
	if from == p.Status {
		return
	}
	s.publish(events.TopicPaymentStatusChanged, domain.PaymentStatusChanged{
		PaymentID:  p.ID,
		ProviderID: p.ProviderID,
		From:       from,
		To:         p.Status,
		Reference:  ref,
		OccurredAt: now,
	})
}
