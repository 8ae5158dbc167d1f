package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/salonova/payments/internal/domain"
)

type stubEarningsRepo struct {
	payments []domain.Payment
	err      error
}

func (s *stubEarningsRepo) ListCapturedInWindow(_ context.Context, _ uuid.UUID, _, _ time.Time) ([]domain.Payment, error) {
	return s.payments, s.err
}

func capturedPayment(providerID uuid.UUID, amount, refunded int64, completedAt time.Time) domain.Payment {
	return domain.Payment{
		ID:             uuid.New(),
		CustomerID:     uuid.New(),
		ProviderID:     providerID,
		Amount:         domain.Money{Amount: amount, Currency: domain.CurrencyUSD},
		RefundedAmount: domain.Money{Amount: refunded, Currency: domain.CurrencyUSD},
		Status:         domain.PaymentStatusPaid,
		CompletedAt:    &completedAt,
	}
}

func TestProviderEarnings(t *testing.T) {
	providerID := uuid.New()
	day := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)

	repo := &stubEarningsRepo{}
	for i := range 5 {
		repo.payments = append(repo.payments,
			capturedPayment(providerID, 10000, 0, day.Add(time.Duration(i)*time.Hour)))
	}

	svc := NewEarningsService(repo, 15)
	report, err := svc.ProviderEarnings(context.Background(), EarningsQuery{
		ProviderID: providerID,
		StartDate:  day,
		EndDate:    day.Add(7 * 24 * time.Hour),
	})
	require.NoError(t, err)

	assert.Equal(t, int64(50000), report.GrossEarnings.Amount)
	assert.Equal(t, int64(7500), report.CommissionAmount.Amount)
	assert.Equal(t, int64(0), report.TotalRefunded.Amount)
	assert.Equal(t, int64(42500), report.NetEarnings.Amount)
	assert.Equal(t, 5, report.TotalPayments)
	assert.Equal(t, domain.CurrencyUSD, report.Currency)
}

func TestProviderEarnings_RefundsReduceNet(t *testing.T) {
	providerID := uuid.New()
	day := time.Date(2026, 8, 10, 9, 0, 0, 0, time.UTC)

	repo := &stubEarningsRepo{payments: []domain.Payment{
		capturedPayment(providerID, 20000, 5000, day),
		capturedPayment(providerID, 10000, 10000, day.Add(time.Hour)),
	}}

	svc := NewEarningsService(repo, 10)
	report, err := svc.ProviderEarnings(context.Background(), EarningsQuery{
		ProviderID: providerID,
		StartDate:  day.Add(-time.Hour),
		EndDate:    day.Add(24 * time.Hour),
	})
	require.NoError(t, err)

	// gross 30000, commission 3000, refunded 15000 -> net 12000
	assert.Equal(t, int64(30000), report.GrossEarnings.Amount)
	assert.Equal(t, int64(3000), report.CommissionAmount.Amount)
	assert.Equal(t, int64(15000), report.TotalRefunded.Amount)
	assert.Equal(t, int64(12000), report.NetEarnings.Amount)
}

func TestProviderEarnings_NetGoesNegativeWhenFullyRefunded(t *testing.T) {
	providerID := uuid.New()
	day := time.Date(2026, 8, 10, 9, 0, 0, 0, time.UTC)

	// One 100.00 USD payment fully refunded: commission was already taken,
	// so the window's net is -15.00, not zero.
	repo := &stubEarningsRepo{payments: []domain.Payment{
		capturedPayment(providerID, 10000, 10000, day),
	}}

	svc := NewEarningsService(repo, 15)
	report, err := svc.ProviderEarnings(context.Background(), EarningsQuery{
		ProviderID: providerID,
		StartDate:  day.Add(-time.Hour),
		EndDate:    day.Add(time.Hour),
	})
	require.NoError(t, err)

	assert.Equal(t, int64(10000), report.GrossEarnings.Amount)
	assert.Equal(t, int64(1500), report.CommissionAmount.Amount)
	assert.Equal(t, int64(10000), report.TotalRefunded.Amount)
	assert.Equal(t, int64(-1500), report.NetEarnings.Amount)
	assert.Equal(t, domain.CurrencyUSD, report.NetEarnings.Currency)

	// gross - commission - refunded must hold for any window.
	assert.Equal(t,
		report.GrossEarnings.Amount-report.CommissionAmount.Amount-report.TotalRefunded.Amount,
		report.NetEarnings.Amount)
}

func TestProviderEarnings_SkipsPaymentsWithoutCompletionTime(t *testing.T) {
	providerID := uuid.New()
	day := time.Date(2026, 8, 10, 9, 0, 0, 0, time.UTC)

	repo := &stubEarningsRepo{payments: []domain.Payment{
		capturedPayment(providerID, 10000, 0, day),
		{
			ID:             uuid.New(),
			CustomerID:     uuid.New(),
			ProviderID:     providerID,
			Amount:         domain.Money{Amount: 99999, Currency: domain.CurrencyUSD},
			RefundedAmount: domain.Money{Amount: 0, Currency: domain.CurrencyUSD},
			Status:         domain.PaymentStatusPaid,
			CompletedAt:    nil,
		},
	}}

	svc := NewEarningsService(repo, 15)
	report, err := svc.ProviderEarnings(context.Background(), EarningsQuery{
		ProviderID: providerID,
		StartDate:  day.Add(-time.Hour),
		EndDate:    day.Add(time.Hour),
	})
	require.NoError(t, err)

	assert.Equal(t, int64(10000), report.GrossEarnings.Amount)
	assert.Equal(t, 1, report.TotalPayments)
	require.Len(t, report.ByDate, 1)
	assert.Equal(t, 1, report.ByDate[0].PaymentCount)
}

func TestProviderEarnings_DailyBuckets(t *testing.T) {
	providerID := uuid.New()
	day1 := time.Date(2026, 8, 10, 23, 30, 0, 0, time.UTC)
	day2 := time.Date(2026, 8, 11, 0, 30, 0, 0, time.UTC)

	repo := &stubEarningsRepo{payments: []domain.Payment{
		capturedPayment(providerID, 10000, 0, day1),
		capturedPayment(providerID, 5000, 0, day2),
		capturedPayment(providerID, 2500, 0, day2.Add(time.Hour)),
	}}

	svc := NewEarningsService(repo, 0)
	report, err := svc.ProviderEarnings(context.Background(), EarningsQuery{
		ProviderID: providerID,
		StartDate:  day1.Add(-time.Hour),
		EndDate:    day2.Add(24 * time.Hour),
	})
	require.NoError(t, err)

	require.Len(t, report.ByDate, 2)
	assert.Equal(t, time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC), report.ByDate[0].Date)
	assert.Equal(t, int64(10000), report.ByDate[0].GrossAmount.Amount)
	assert.Equal(t, 1, report.ByDate[0].PaymentCount)
	assert.Equal(t, time.Date(2026, 8, 11, 0, 0, 0, 0, time.UTC), report.ByDate[1].Date)
	assert.Equal(t, int64(7500), report.ByDate[1].GrossAmount.Amount)
	assert.Equal(t, 2, report.ByDate[1].PaymentCount)
}

func TestProviderEarnings_EmptyWindow(t *testing.T) {
	svc := NewEarningsService(&stubEarningsRepo{}, 15)
	report, err := svc.ProviderEarnings(context.Background(), EarningsQuery{
		ProviderID: uuid.New(),
		StartDate:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:    time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	assert.Equal(t, int64(0), report.GrossEarnings.Amount)
	assert.Equal(t, int64(0), report.NetEarnings.Amount)
	assert.Equal(t, 0, report.TotalPayments)
	assert.Empty(t, report.ByDate)
}

func TestProviderEarnings_CommissionOverride(t *testing.T) {
	providerID := uuid.New()
	day := time.Date(2026, 8, 10, 12, 0, 0, 0, time.UTC)
	repo := &stubEarningsRepo{payments: []domain.Payment{
		capturedPayment(providerID, 10000, 0, day),
	}}

	override := 25.0
	svc := NewEarningsService(repo, 15)
	report, err := svc.ProviderEarnings(context.Background(), EarningsQuery{
		ProviderID:           providerID,
		StartDate:            day.Add(-time.Hour),
		EndDate:              day.Add(time.Hour),
		CommissionPercentage: &override,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2500), report.CommissionAmount.Amount)
}

func TestProviderEarnings_Validation(t *testing.T) {
	svc := NewEarningsService(&stubEarningsRepo{}, 15)
	now := time.Now().UTC()

	_, err := svc.ProviderEarnings(context.Background(), EarningsQuery{
		ProviderID: uuid.New(),
		StartDate:  now,
		EndDate:    now,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidDateRange)

	bad := 101.0
	_, err = svc.ProviderEarnings(context.Background(), EarningsQuery{
		ProviderID:           uuid.New(),
		StartDate:            now.Add(-time.Hour),
		EndDate:              now,
		CommissionPercentage: &bad,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidPercentage)
}
