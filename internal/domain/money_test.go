package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMoney(t *testing.T) {
	tests := []struct {
		name     string
		amount   int64
		currency Currency
		wantErr  error
	}{
		{"valid USD", 10000, CurrencyUSD, nil},
		{"zero amount", 0, CurrencyEUR, nil},
		{"zero-decimal currency", 250000, CurrencyIRR, nil},
		{"negative amount", -1, CurrencyUSD, ErrInvalidAmount},
		{"unknown currency", 100, Currency("XYZ"), ErrInvalidCurrency},
		{"empty currency", 100, Currency(""), ErrInvalidCurrency},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewMoney(tt.amount, tt.currency)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.amount, m.Amount)
			assert.Equal(t, tt.currency, m.Currency)
		})
	}
}

func TestMoney_Arithmetic(t *testing.T) {
	a := Money{Amount: 3000, Currency: CurrencyUSD}
	b := Money{Amount: 1250, Currency: CurrencyUSD}

	sum, err := a.Add(b)
	require.NoError(t, err)
	assert.Equal(t, int64(4250), sum.Amount)

	diff, err := a.Sub(b)
	require.NoError(t, err)
	assert.Equal(t, int64(1750), diff.Amount)

	_, err = b.Sub(a)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	delta, err := b.Diff(a)
	require.NoError(t, err)
	assert.Equal(t, int64(-1750), delta.Amount)

	cmp, err := a.Compare(b)
	require.NoError(t, err)
	assert.Equal(t, 1, cmp)
}

func TestMoney_CurrencyMismatch(t *testing.T) {
	usd := Money{Amount: 100, Currency: CurrencyUSD}
	eur := Money{Amount: 100, Currency: CurrencyEUR}

	_, err := usd.Add(eur)
	assert.ErrorIs(t, err, ErrCurrencyMismatch)
	_, err = usd.Sub(eur)
	assert.ErrorIs(t, err, ErrCurrencyMismatch)
	_, err = usd.Diff(eur)
	assert.ErrorIs(t, err, ErrCurrencyMismatch)
	_, err = usd.Compare(eur)
	assert.ErrorIs(t, err, ErrCurrencyMismatch)
}

func TestMoney_MultiplyByPercentage(t *testing.T) {
	tests := []struct {
		name   string
		amount int64
		pct    string
		want   int64
	}{
		{"whole result", 10000, "15", 1500},
		{"rounds half up", 333, "50", 167},
		{"rounds down below half", 10001, "15", 1500},
		{"zero percent", 10000, "0", 0},
		{"hundred percent", 10000, "100", 10000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Money{Amount: tt.amount, Currency: CurrencyUSD}
			got, err := m.MultiplyByPercentage(decimal.RequireFromString(tt.pct))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Amount)
		})
	}

	m := Money{Amount: 10000, Currency: CurrencyUSD}
	_, err := m.MultiplyByPercentage(decimal.NewFromInt(-1))
	assert.ErrorIs(t, err, ErrInvalidPercentage)
	_, err = m.MultiplyByPercentage(decimal.NewFromInt(101))
	assert.ErrorIs(t, err, ErrInvalidPercentage)
}

func TestMoney_Format(t *testing.T) {
	assert.Equal(t, "100.00 USD", Money{Amount: 10000, Currency: CurrencyUSD}.Format())
	assert.Equal(t, "0.05 EUR", Money{Amount: 5, Currency: CurrencyEUR}.Format())
	assert.Equal(t, "250000 IRR", Money{Amount: 250000, Currency: CurrencyIRR}.Format())
}
