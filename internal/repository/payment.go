package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/salonova/payments/internal/domain"
)

const paymentColumns = `id, booking_id, customer_id, provider_id, amount, currency,
	refunded_amount, fee_amount, method, status, card_pan, ref_number, authority,
	payment_url, failure_reason, metadata, version, settled_at, created_at,
	updated_at, completed_at`

const transactionColumns = `id, payment_id, type, amount, currency, external_reference, created_at`

type PaymentRepository struct {
	db *sql.DB
}

func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Create(ctx context.Context, tx *sql.Tx, p *domain.Payment) error {
	metadata, err := json.Marshal(p.Metadata)
	if err != nil {
		return fmt.Errorf("Create: marshal metadata: %w", err)
	}

	var fee *int64
	if p.Fee != nil {
		fee = &p.Fee.Amount
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO payments (
			id, booking_id, customer_id, provider_id, amount, currency,
			refunded_amount, fee_amount, method, status, card_pan, ref_number,
			authority, payment_url, failure_reason, metadata, version, settled_at,
			created_at, updated_at, completed_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21
		)`,
		p.ID, p.BookingID, p.CustomerID, p.ProviderID, p.Amount.Amount, p.Amount.Currency,
		p.RefundedAmount.Amount, fee, p.Method, p.Status, p.CardPan, p.RefNumber,
		p.Authority, p.PaymentURL, p.FailureReason, metadata, p.Version, p.SettledAt,
		p.CreatedAt, p.UpdatedAt, p.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

// Update persists the aggregate's mutable columns under optimistic
// concurrency: the write only lands if the stored version still matches the
// version the caller read. On success the in-memory version is advanced.
func (r *PaymentRepository) Update(ctx context.Context, tx *sql.Tx, p *domain.Payment) error {
	metadata, err := json.Marshal(p.Metadata)
	if err != nil {
		return fmt.Errorf("Update: marshal metadata: %w", err)
	}

	var fee *int64
	if p.Fee != nil {
		fee = &p.Fee.Amount
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE payments SET
			amount = $1, refunded_amount = $2, fee_amount = $3, status = $4,
			card_pan = $5, ref_number = $6, authority = $7, payment_url = $8,
			failure_reason = $9, metadata = $10, settled_at = $11,
			updated_at = $12, completed_at = $13, version = version + 1
		WHERE id = $14 AND version = $15`,
		p.Amount.Amount, p.RefundedAmount.Amount, fee, p.Status,
		p.CardPan, p.RefNumber, p.Authority, p.PaymentURL,
		p.FailureReason, metadata, p.SettledAt,
		p.UpdatedAt, p.CompletedAt, p.ID, p.Version,
	)
	if err != nil {
		return fmt.Errorf("Update: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("Update: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("Update: payment %s version %d: %w", p.ID, p.Version, domain.ErrVersionConflict)
	}
	p.Version++
	return nil
}

func (r *PaymentRepository) InsertTransaction(ctx context.Context, tx *sql.Tx, txn *domain.Transaction) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO payment_transactions (id, payment_id, type, amount, currency, external_reference, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		txn.ID, txn.PaymentID, txn.Type, txn.Amount.Amount, txn.Amount.Currency,
		txn.ExternalReference, txn.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("InsertTransaction: %w", err)
	}
	return nil
}

func (r *PaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id,
	)
	p, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	if err := r.loadTransactions(ctx, p); err != nil {
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return p, nil
}

func (r *PaymentRepository) GetByAuthority(ctx context.Context, authority string) (*domain.Payment, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE authority = $1`, authority,
	)
	p, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByAuthority: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByAuthority: %w", err)
	}
	if err := r.loadTransactions(ctx, p); err != nil {
		return nil, fmt.Errorf("GetByAuthority: %w", err)
	}
	return p, nil
}

func (r *PaymentRepository) ListByCustomer(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]domain.Payment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+paymentColumns+` FROM payments
		WHERE customer_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		customerID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("ListByCustomer: %w", err)
	}
	defer rows.Close()
	return collectPayments(rows, "ListByCustomer")
}

func (r *PaymentRepository) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Payment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = ANY($1)`,
		pq.Array(ids),
	)
	if err != nil {
		return nil, fmt.Errorf("ListByIDs: %w", err)
	}
	defer rows.Close()
	return collectPayments(rows, "ListByIDs")
}

// ListCapturedInWindow returns the provider's payments captured inside the
// half-open UTC window, in every post-capture status the earnings
// aggregation counts. Single query so the aggregator reads one consistent
// snapshot.
func (r *PaymentRepository) ListCapturedInWindow(ctx context.Context, providerID uuid.UUID, start, end time.Time) ([]domain.Payment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+paymentColumns+` FROM payments
		WHERE provider_id = $1
		  AND status IN ('paid', 'partially_refunded', 'refunded')
		  AND completed_at >= $2 AND completed_at < $3
		ORDER BY completed_at`,
		providerID, start, end,
	)
	if err != nil {
		return nil, fmt.Errorf("ListCapturedInWindow: %w", err)
	}
	defer rows.Close()
	return collectPayments(rows, "ListCapturedInWindow")
}

// ListUnsettledBefore returns Paid payments that were captured before the
// cutoff but never settled; the reconciliation job re-drives these.
func (r *PaymentRepository) ListUnsettledBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.Payment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+paymentColumns+` FROM payments
		WHERE status = 'paid' AND settled_at IS NULL AND authority IS NOT NULL
		  AND completed_at < $1
		ORDER BY completed_at LIMIT $2`,
		cutoff, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("ListUnsettledBefore: %w", err)
	}
	defer rows.Close()
	return collectPayments(rows, "ListUnsettledBefore")
}

func (r *PaymentRepository) loadTransactions(ctx context.Context, p *domain.Payment) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM payment_transactions
		WHERE payment_id = $1 ORDER BY created_at, id`, p.ID,
	)
	if err != nil {
		return fmt.Errorf("loadTransactions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return fmt.Errorf("loadTransactions: scan: %w", err)
		}
		p.Transactions = append(p.Transactions, *txn)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("loadTransactions: rows: %w", err)
	}
	return nil
}

func collectPayments(rows *sql.Rows, op string) ([]domain.Payment, error) {
	var payments []domain.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		payments = append(payments, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", op, err)
	}
	return payments, nil
}

func scanPayment(s scanner) (*domain.Payment, error) {
	var p domain.Payment
	var bookingID uuid.NullUUID
	var currency string
	var refunded int64
	var fee *int64
	var metadata []byte

	err := s.Scan(
		&p.ID, &bookingID, &p.CustomerID, &p.ProviderID, &p.Amount.Amount, &currency,
		&refunded, &fee, &p.Method, &p.Status, &p.CardPan, &p.RefNumber, &p.Authority,
		&p.PaymentURL, &p.FailureReason, &metadata, &p.Version, &p.SettledAt,
		&p.CreatedAt, &p.UpdatedAt, &p.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	c := domain.Currency(currency)
	p.Amount.Currency = c
	p.RefundedAmount = domain.Money{Amount: refunded, Currency: c}
	if bookingID.Valid {
		p.BookingID = &bookingID.UUID
	}
	if fee != nil {
		f := domain.Money{Amount: *fee, Currency: c}
		p.Fee = &f
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &p.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	if p.Metadata == nil {
		p.Metadata = map[string]string{}
	}

	return &p, nil
}

func scanTransaction(s scanner) (*domain.Transaction, error) {
	var txn domain.Transaction
	var currency string
	err := s.Scan(
		&txn.ID, &txn.PaymentID, &txn.Type, &txn.Amount.Amount, &currency,
		&txn.ExternalReference, &txn.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	txn.Amount.Currency = domain.Currency(currency)
	return &txn, nil
}
