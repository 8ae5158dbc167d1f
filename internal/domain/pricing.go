package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// PricingInput names the percentage options applied to a base amount.
// All percentages default to zero when absent.
type PricingInput struct {
	BaseAmount            int64
	Currency              Currency
	TaxPercentage         float64
	TaxInclusive          bool
	DiscountPercentage    float64
	PlatformFeePercentage float64
	DepositPercentage     float64
}

// PricingBreakdown is the computed price decomposition. It is a value, not
// a persisted record.
type PricingBreakdown struct {
	BaseAmount     Money
	DiscountAmount Money
	TaxAmount      Money
	PlatformFee    Money
	DepositAmount  Money
	TotalAmount    Money
}

func validPercentage(p float64) bool {
	return p >= 0 && p <= 100
}

// CalculatePricing applies discount first, then tax (extracted from the
// discounted gross when tax-inclusive, added on top otherwise), then
// computes platform fee and deposit on the net-of-tax amount. All rounding
// is half-up to the currency's minor unit.
func CalculatePricing(in PricingInput) (*PricingBreakdown, error) {
	if in.BaseAmount < 0 {
		return nil, fmt.Errorf("CalculatePricing: base amount: %w", ErrInvalidAmount)
	}
	if !in.Currency.IsValid() {
		return nil, fmt.Errorf("CalculatePricing: %w", ErrInvalidCurrency)
	}
	for _, pct := range []float64{in.TaxPercentage, in.DiscountPercentage, in.PlatformFeePercentage, in.DepositPercentage} {
		if !validPercentage(pct) {
			return nil, fmt.Errorf("CalculatePricing: %w", ErrInvalidPercentage)
		}
	}

	hundred := decimal.NewFromInt(100)
	base := decimal.NewFromInt(in.BaseAmount)

	discount := base.Mul(decimal.NewFromFloat(in.DiscountPercentage)).Div(hundred).Round(0)
	discountedBase := base.Sub(discount)

	taxPct := decimal.NewFromFloat(in.TaxPercentage)
	var tax, netOfTax decimal.Decimal
	if in.TaxInclusive {
		tax = discountedBase.Mul(taxPct).Div(hundred.Add(taxPct)).Round(0)
		netOfTax = discountedBase.Sub(tax)
	} else {
		tax = discountedBase.Mul(taxPct).Div(hundred).Round(0)
		netOfTax = discountedBase
	}

	platformFee := netOfTax.Mul(decimal.NewFromFloat(in.PlatformFeePercentage)).Div(hundred).Round(0)
	deposit := netOfTax.Mul(decimal.NewFromFloat(in.DepositPercentage)).Div(hundred).Round(0)

	total := discountedBase
	if !in.TaxInclusive {
		total = discountedBase.Add(tax)
	}

	return &PricingBreakdown{
		BaseAmount:     Money{Amount: in.BaseAmount, Currency: in.Currency},
		DiscountAmount: Money{Amount: discount.IntPart(), Currency: in.Currency},
		TaxAmount:      Money{Amount: tax.IntPart(), Currency: in.Currency},
		PlatformFee:    Money{Amount: platformFee.IntPart(), Currency: in.Currency},
		DepositAmount:  Money{Amount: deposit.IntPart(), Currency: in.Currency},
		TotalAmount:    Money{Amount: total.IntPart(), Currency: in.Currency},
	}, nil
}
