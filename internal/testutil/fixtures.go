package testutil

import (
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/salonova/payments/internal/domain"
)

// SeedPayment inserts a payment row directly, bypassing the aggregate, so
// integration tests can stage arbitrary starting states.
func SeedPayment(t *testing.T, db *sql.DB, p *domain.Payment) {
	t.Helper()

	var fee *int64
	if p.Fee != nil {
		fee = &p.Fee.Amount
	}

	_, err := db.Exec(
		`INSERT INTO payments (
			id, booking_id, customer_id, provider_id, amount, currency,
			refunded_amount, fee_amount, method, status, card_pan, ref_number,
			authority, payment_url, failure_reason, metadata, version, settled_at,
			created_at, updated_at, completed_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, '{}', $16, $17, $18, $19, $20
		)`,
		p.ID, p.BookingID, p.CustomerID, p.ProviderID, p.Amount.Amount, p.Amount.Currency,
		p.RefundedAmount.Amount, fee, p.Method, p.Status, p.CardPan, p.RefNumber,
		p.Authority, p.PaymentURL, p.FailureReason, p.Version, p.SettledAt,
		p.CreatedAt, p.UpdatedAt, p.CompletedAt,
	)
	if err != nil {
		t.Fatalf("seed payment %s: %v", p.ID, err)
	}
}

// SeedPaidPayment stages a captured payment for a provider, completed at
// the given instant.
func SeedPaidPayment(t *testing.T, db *sql.DB, customerID, providerID uuid.UUID, amount int64, currency domain.Currency, completedAt time.Time) *domain.Payment {
	t.Helper()

	authority := "A-" + uuid.NewString()
	ref := "REF-" + uuid.NewString()
	p := &domain.Payment{
		ID:             uuid.New(),
		CustomerID:     customerID,
		ProviderID:     providerID,
		Amount:         domain.Money{Amount: amount, Currency: currency},
		RefundedAmount: domain.ZeroMoney(currency),
		Method:         domain.PaymentMethodZarinPal,
		Status:         domain.PaymentStatusPaid,
		Authority:      &authority,
		RefNumber:      &ref,
		Metadata:       map[string]string{},
		CreatedAt:      completedAt.Add(-time.Minute),
		UpdatedAt:      completedAt,
		CompletedAt:    &completedAt,
	}
	SeedPayment(t, db, p)
	return p
}

func GetPaymentStatus(t *testing.T, db *sql.DB, paymentID uuid.UUID) string {
	t.Helper()

	var status string
	err := db.QueryRow(`SELECT status FROM payments WHERE id = $1`, paymentID).Scan(&status)
	if err != nil {
		t.Fatalf("get payment status %s: %v", paymentID, err)
	}
	return status
}

func CountTransactions(t *testing.T, db *sql.DB, paymentID uuid.UUID) int {
	t.Helper()

	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM payment_transactions WHERE payment_id = $1`, paymentID).Scan(&count)
	if err != nil {
		t.Fatalf("count transactions for payment %s: %v", paymentID, err)
	}
	return count
}
