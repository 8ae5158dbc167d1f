package domain

import (
	"time"

	"github.com/google/uuid"
)

// DailyEarnings is one calendar-date bucket (UTC) of captured payments.
type DailyEarnings struct {
	Date         time.Time
	GrossAmount  Money
	PaymentCount int
}

// EarningsReport summarizes a provider's captured and refunded payments
// over a half-open date window. NetEarnings = Gross - Commission - Refunded
// and is signed: a refund-heavy window can owe the provider less than the
// commission already taken.
type EarningsReport struct {
	ProviderID       uuid.UUID
	StartDate        time.Time
	EndDate          time.Time
	Currency         Currency
	GrossEarnings    Money
	CommissionAmount Money
	TotalRefunded    Money
	NetEarnings      PriceDifference
	TotalPayments    int
	ByDate           []DailyEarnings
}
