package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculatePricing_TaxInclusive(t *testing.T) {
	// 20% tax already inside a 120.00 gross: the tax share is 20.00.
	b, err := CalculatePricing(PricingInput{
		BaseAmount:    12000,
		Currency:      CurrencyUSD,
		TaxPercentage: 20,
		TaxInclusive:  true,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(12000), b.BaseAmount.Amount)
	assert.Equal(t, int64(0), b.DiscountAmount.Amount)
	assert.Equal(t, int64(2000), b.TaxAmount.Amount)
	assert.Equal(t, int64(12000), b.TotalAmount.Amount)
}

func TestCalculatePricing_TaxExclusive(t *testing.T) {
	b, err := CalculatePricing(PricingInput{
		BaseAmount:    10000,
		Currency:      CurrencyUSD,
		TaxPercentage: 9,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(900), b.TaxAmount.Amount)
	assert.Equal(t, int64(10900), b.TotalAmount.Amount)
}

func TestCalculatePricing_DiscountAppliedBeforeTax(t *testing.T) {
	b, err := CalculatePricing(PricingInput{
		BaseAmount:         10000,
		Currency:           CurrencyUSD,
		TaxPercentage:      20,
		TaxInclusive:       true,
		DiscountPercentage: 10,
	})
	require.NoError(t, err)

	// Tax is extracted from the discounted gross, not the original base.
	assert.Equal(t, int64(1000), b.DiscountAmount.Amount)
	assert.Equal(t, int64(1500), b.TaxAmount.Amount)
	assert.Equal(t, int64(9000), b.TotalAmount.Amount)
}

func TestCalculatePricing_FeeAndDepositOnNetOfTax(t *testing.T) {
	b, err := CalculatePricing(PricingInput{
		BaseAmount:            10000,
		Currency:              CurrencyUSD,
		TaxPercentage:         20,
		TaxInclusive:          true,
		DiscountPercentage:    10,
		PlatformFeePercentage: 10,
		DepositPercentage:     20,
	})
	require.NoError(t, err)

	// Net of tax is 7500 after the 10% discount and extracted tax.
	assert.Equal(t, int64(750), b.PlatformFee.Amount)
	assert.Equal(t, int64(1500), b.DepositAmount.Amount)
}

func TestCalculatePricing_RoundsHalfUp(t *testing.T) {
	b, err := CalculatePricing(PricingInput{
		BaseAmount:         1001,
		Currency:           CurrencyUSD,
		DiscountPercentage: 2.5, // 25.025 -> 25
	})
	require.NoError(t, err)
	assert.Equal(t, int64(25), b.DiscountAmount.Amount)
	assert.Equal(t, int64(976), b.TotalAmount.Amount)

	b, err = CalculatePricing(PricingInput{
		BaseAmount:         1000,
		Currency:           CurrencyUSD,
		DiscountPercentage: 2.55, // 25.5 -> 26
	})
	require.NoError(t, err)
	assert.Equal(t, int64(26), b.DiscountAmount.Amount)
}

func TestCalculatePricing_ZeroBase(t *testing.T) {
	b, err := CalculatePricing(PricingInput{
		BaseAmount:            0,
		Currency:              CurrencyUSD,
		TaxPercentage:         20,
		DiscountPercentage:    10,
		PlatformFeePercentage: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), b.TotalAmount.Amount)
	assert.Equal(t, int64(0), b.TaxAmount.Amount)
}

func TestCalculatePricing_Validation(t *testing.T) {
	_, err := CalculatePricing(PricingInput{BaseAmount: -1, Currency: CurrencyUSD})
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = CalculatePricing(PricingInput{BaseAmount: 100, Currency: Currency("XYZ")})
	assert.ErrorIs(t, err, ErrInvalidCurrency)

	_, err = CalculatePricing(PricingInput{BaseAmount: 100, Currency: CurrencyUSD, TaxPercentage: 101})
	assert.ErrorIs(t, err, ErrInvalidPercentage)

	_, err = CalculatePricing(PricingInput{BaseAmount: 100, Currency: CurrencyUSD, DiscountPercentage: -0.1})
	assert.ErrorIs(t, err, ErrInvalidPercentage)
}
