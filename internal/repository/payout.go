package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/salonova/payments/internal/domain"
)

const payoutColumns = `id, provider_id, gross_amount, commission_amount, net_amount,
	currency, period_start, period_end, status, external_payout_id, bank_reference,
	bank_name, notes, failure_reason, hold_reason, version, created_at, updated_at,
	completed_at`

type PayoutRepository struct {
	db *sql.DB
}

func NewPayoutRepository(db *sql.DB) *PayoutRepository {
	return &PayoutRepository{db: db}
}

func (r *PayoutRepository) Create(ctx context.Context, tx *sql.Tx, p *domain.Payout) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO payouts (
			id, provider_id, gross_amount, commission_amount, net_amount, currency,
			period_start, period_end, status, external_payout_id, bank_reference,
			bank_name, notes, failure_reason, hold_reason, version, created_at,
			updated_at, completed_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19
		)`,
		p.ID, p.ProviderID, p.GrossAmount.Amount, p.CommissionAmount.Amount, p.NetAmount.Amount,
		p.GrossAmount.Currency, p.PeriodStart, p.PeriodEnd, p.Status, p.ExternalPayoutID,
		p.BankReference, p.BankName, p.Notes, p.FailureReason, p.HoldReason, p.Version,
		p.CreatedAt, p.UpdatedAt, p.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}

	for _, paymentID := range p.PaymentIDs {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO payout_payments (payout_id, payment_id) VALUES ($1, $2)`,
			p.ID, paymentID,
		)
		if err != nil {
			return fmt.Errorf("Create: member payment %s: %w", paymentID, err)
		}
	}
	return nil
}

// Update persists the payout's mutable columns under the same optimistic
// version discipline as payments. Member payment ids are immutable after
// creation.
func (r *PayoutRepository) Update(ctx context.Context, tx *sql.Tx, p *domain.Payout) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE payouts SET
			status = $1, external_payout_id = $2, bank_reference = $3, bank_name = $4,
			notes = $5, failure_reason = $6, hold_reason = $7, updated_at = $8,
			completed_at = $9, version = version + 1
		WHERE id = $10 AND version = $11`,
		p.Status, p.ExternalPayoutID, p.BankReference, p.BankName,
		p.Notes, p.FailureReason, p.HoldReason, p.UpdatedAt,
		p.CompletedAt, p.ID, p.Version,
	)
	if err != nil {
		return fmt.Errorf("Update: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("Update: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("Update: payout %s version %d: %w", p.ID, p.Version, domain.ErrVersionConflict)
	}
	p.Version++
	return nil
}

func (r *PayoutRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Payout, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+payoutColumns+` FROM payouts WHERE id = $1`, id,
	)
	p, err := scanPayout(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	if err := r.loadPaymentIDs(ctx, p); err != nil {
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return p, nil
}

func (r *PayoutRepository) ListPending(ctx context.Context) ([]domain.Payout, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+payoutColumns+` FROM payouts
		WHERE status = 'pending' ORDER BY created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("ListPending: %w", err)
	}
	defer rows.Close()
	return collectPayouts(rows, "ListPending")
}

func (r *PayoutRepository) ListByProvider(ctx context.Context, providerID uuid.UUID, limit, offset int) ([]domain.Payout, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+payoutColumns+` FROM payouts
		WHERE provider_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		providerID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("ListByProvider: %w", err)
	}
	defer rows.Close()
	return collectPayouts(rows, "ListByProvider")
}

// PaymentsAlreadyBatched reports which of the given payments are already
// referenced by a non-cancelled payout.
func (r *PayoutRepository) PaymentsAlreadyBatched(ctx context.Context, paymentIDs []uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT pp.payment_id FROM payout_payments pp
		JOIN payouts p ON p.id = pp.payout_id
		WHERE pp.payment_id = ANY($1) AND p.status <> 'cancelled'`,
		pq.Array(paymentIDs),
	)
	if err != nil {
		return nil, fmt.Errorf("PaymentsAlreadyBatched: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("PaymentsAlreadyBatched: scan: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("PaymentsAlreadyBatched: rows: %w", err)
	}
	return ids, nil
}

func (r *PayoutRepository) loadPaymentIDs(ctx context.Context, p *domain.Payout) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT payment_id FROM payout_payments WHERE payout_id = $1`, p.ID,
	)
	if err != nil {
		return fmt.Errorf("loadPaymentIDs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("loadPaymentIDs: scan: %w", err)
		}
		p.PaymentIDs = append(p.PaymentIDs, id)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("loadPaymentIDs: rows: %w", err)
	}
	return nil
}

func collectPayouts(rows *sql.Rows, op string) ([]domain.Payout, error) {
	var payouts []domain.Payout
	for rows.Next() {
		p, err := scanPayout(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		payouts = append(payouts, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", op, err)
	}
	return payouts, nil
}

func scanPayout(s scanner) (*domain.Payout, error) {
	var p domain.Payout
	var currency string
	var gross, commission, net int64

	err := s.Scan(
		&p.ID, &p.ProviderID, &gross, &commission, &net,
		&currency, &p.PeriodStart, &p.PeriodEnd, &p.Status, &p.ExternalPayoutID,
		&p.BankReference, &p.BankName, &p.Notes, &p.FailureReason, &p.HoldReason,
		&p.Version, &p.CreatedAt, &p.UpdatedAt, &p.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	c := domain.Currency(currency)
	p.GrossAmount = domain.Money{Amount: gross, Currency: c}
	p.CommissionAmount = domain.Money{Amount: commission, Currency: c}
	p.NetAmount = domain.Money{Amount: net, Currency: c}
	return &p, nil
}
