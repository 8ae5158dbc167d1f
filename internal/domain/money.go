package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
	CurrencyGBP Currency = "GBP"
	CurrencyIRR Currency = "IRR"
)

func (c Currency) IsValid() bool {
	switch c {
	case CurrencyUSD, CurrencyEUR, CurrencyGBP, CurrencyIRR:
		return true
	}
	return false
}

// Exponent is the number of minor-unit digits for the currency.
// IRR is a zero-decimal currency; everything else uses two.
func (c Currency) Exponent() int32 {
	if c == CurrencyIRR {
		return 0
	}
	return 2
}

// Money is a fixed-point monetary value stored in integer minor units
// (cents for USD, whole rials for IRR). Amounts are never negative; signed
// differences are expressed as PriceDifference.
type Money struct {
	Amount   int64
	Currency Currency
}

// PriceDifference is a signed delta between two Money values of the same
// currency, in minor units.
type PriceDifference struct {
	Amount   int64
	Currency Currency
}

func NewMoney(amount int64, currency Currency) (Money, error) {
	if !currency.IsValid() {
		return Money{}, fmt.Errorf("NewMoney: %q: %w", currency, ErrInvalidCurrency)
	}
	if amount < 0 {
		return Money{}, fmt.Errorf("NewMoney: %d: %w", amount, ErrInvalidAmount)
	}
	return Money{Amount: amount, Currency: currency}, nil
}

func ZeroMoney(currency Currency) Money {
	return Money{Amount: 0, Currency: currency}
}

func (m Money) IsZero() bool {
	return m.Amount == 0
}

func (m Money) Add(o Money) (Money, error) {
	if m.Currency != o.Currency {
		return Money{}, fmt.Errorf("Add: %s + %s: %w", m.Currency, o.Currency, ErrCurrencyMismatch)
	}
	return Money{Amount: m.Amount + o.Amount, Currency: m.Currency}, nil
}

// Sub returns m - o. A negative result is rejected; use Diff for signed
// deltas.
func (m Money) Sub(o Money) (Money, error) {
	if m.Currency != o.Currency {
		return Money{}, fmt.Errorf("Sub: %s - %s: %w", m.Currency, o.Currency, ErrCurrencyMismatch)
	}
	if o.Amount > m.Amount {
		return Money{}, fmt.Errorf("Sub: result would be negative: %w", ErrInvalidAmount)
	}
	return Money{Amount: m.Amount - o.Amount, Currency: m.Currency}, nil
}

func (m Money) Diff(o Money) (PriceDifference, error) {
	if m.Currency != o.Currency {
		return PriceDifference{}, fmt.Errorf("Diff: %s - %s: %w", m.Currency, o.Currency, ErrCurrencyMismatch)
	}
	return PriceDifference{Amount: m.Amount - o.Amount, Currency: m.Currency}, nil
}

// Compare returns -1, 0, or 1 as m is less than, equal to, or greater
// than o.
func (m Money) Compare(o Money) (int, error) {
	if m.Currency != o.Currency {
		return 0, fmt.Errorf("Compare: %s vs %s: %w", m.Currency, o.Currency, ErrCurrencyMismatch)
	}
	switch {
	case m.Amount < o.Amount:
		return -1, nil
	case m.Amount > o.Amount:
		return 1, nil
	}
	return 0, nil
}

// MultiplyByPercentage returns m * pct / 100, rounded half-up to the
// currency's minor unit.
func (m Money) MultiplyByPercentage(pct decimal.Decimal) (Money, error) {
	if pct.IsNegative() || pct.GreaterThan(decimal.NewFromInt(100)) {
		return Money{}, fmt.Errorf("MultiplyByPercentage: %s: %w", pct, ErrInvalidPercentage)
	}
	amount := decimal.NewFromInt(m.Amount).
		Mul(pct).
		Div(decimal.NewFromInt(100)).
		Round(0)
	return Money{Amount: amount.IntPart(), Currency: m.Currency}, nil
}

// Format renders the amount in major units with the currency's precision,
// e.g. "100.00 USD" or "250000 IRR".
func (m Money) Format() string {
	major := decimal.New(m.Amount, -m.Currency.Exponent())
	return fmt.Sprintf("%s %s", major.StringFixed(m.Currency.Exponent()), m.Currency)
}
