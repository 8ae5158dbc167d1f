package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/salonova/payments/internal/domain"
)

type earningsPaymentRepo interface {
	ListCapturedInWindow(ctx context.Context, providerID uuid.UUID, start, end time.Time) ([]domain.Payment, error)
}

// EarningsService is the read-only aggregator over a provider's captured
// and refunded payments. It takes no locks; the repository serves one
// window-scoped query as a consistent snapshot.
type EarningsService struct {
	payments          earningsPaymentRepo
	defaultCommission float64
}

func NewEarningsService(payments earningsPaymentRepo, defaultCommissionPct float64) *EarningsService {
	return &EarningsService{payments: payments, defaultCommission: defaultCommissionPct}
}

type EarningsQuery struct {
	ProviderID uuid.UUID
	StartDate  time.Time
	EndDate    time.Time
	// CommissionPercentage overrides the provider-tier default when set.
	CommissionPercentage *float64
}

// ProviderEarnings summarizes the window into gross/commission/net totals
// and UTC calendar-date buckets. An empty window produces zero totals, not
// an error.
func (s *EarningsService) ProviderEarnings(ctx context.Context, q EarningsQuery) (*domain.EarningsReport, error) {
	if !q.StartDate.Before(q.EndDate) {
		return nil, fmt.Errorf("ProviderEarnings: %w", domain.ErrInvalidDateRange)
	}
	commissionPct := s.defaultCommission
	if q.CommissionPercentage != nil {
		commissionPct = *q.CommissionPercentage
	}
	if commissionPct < 0 || commissionPct > 100 {
		return nil, fmt.Errorf("ProviderEarnings: %w", domain.ErrInvalidPercentage)
	}

	payments, err := s.payments.ListCapturedInWindow(ctx, q.ProviderID, q.StartDate.UTC(), q.EndDate.UTC())
	if err != nil {
		return nil, fmt.Errorf("ProviderEarnings: %w", err)
	}

	currency := domain.CurrencyUSD
	if len(payments) > 0 {
		currency = payments[0].Amount.Currency
	}

	gross := domain.ZeroMoney(currency)
	refunded := domain.ZeroMoney(currency)
	buckets := map[time.Time]*domain.DailyEarnings{}
	counted := 0

	for i := range payments {
		p := &payments[i]
		// Captured payments always carry a completion time; guard against
		// a repository returning rows that don't.
		if p.CompletedAt == nil {
			continue
		}
		gross, err = gross.Add(p.Amount)
		if err != nil {
			return nil, fmt.Errorf("ProviderEarnings: payment %s: %w", p.ID, err)
		}
		refunded, err = refunded.Add(p.RefundedAmount)
		if err != nil {
			return nil, fmt.Errorf("ProviderEarnings: payment %s: %w", p.ID, err)
		}

		day := p.CompletedAt.UTC().Truncate(24 * time.Hour)
		bucket, ok := buckets[day]
		if !ok {
			bucket = &domain.DailyEarnings{Date: day, GrossAmount: domain.ZeroMoney(currency)}
			buckets[day] = bucket
		}
		bucket.GrossAmount, err = bucket.GrossAmount.Add(p.Amount)
		if err != nil {
			return nil, fmt.Errorf("ProviderEarnings: payment %s: %w", p.ID, err)
		}
		bucket.PaymentCount++
		counted++
	}

	commission, err := gross.MultiplyByPercentage(decimal.NewFromFloat(commissionPct))
	if err != nil {
		return nil, fmt.Errorf("ProviderEarnings: %w", err)
	}

	afterCommission, err := gross.Sub(commission)
	if err != nil {
		return nil, fmt.Errorf("ProviderEarnings: %w", err)
	}
	// Net is a signed delta: fully refunded payments stay in the window,
	// so refunds can exceed gross minus commission.
	net, err := afterCommission.Diff(refunded)
	if err != nil {
		return nil, fmt.Errorf("ProviderEarnings: %w", err)
	}

	byDate := make([]domain.DailyEarnings, 0, len(buckets))
	for _, bucket := range buckets {
		byDate = append(byDate, *bucket)
	}
	sort.Slice(byDate, func(i, j int) bool { return byDate[i].Date.Before(byDate[j].Date) })

	return &domain.EarningsReport{
		ProviderID:       q.ProviderID,
		StartDate:        q.StartDate,
		EndDate:          q.EndDate,
		Currency:         currency,
		GrossEarnings:    gross,
		CommissionAmount: commission,
		TotalRefunded:    refunded,
		NetEarnings:      net,
		TotalPayments:    counted,
		ByDate:           byDate,
	}, nil
}
