package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/salonova/payments/internal/domain"
)

type flakyAdapter struct {
	failures int
	calls    int
}

func (f *flakyAdapter) attempt() error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("connection reset")
	}
	return nil
}

func (f *flakyAdapter) CreatePaymentRequest(context.Context, PaymentRequest) (*PaymentRequestResult, error) {
	if err := f.attempt(); err != nil {
		return nil, err
	}
	return &PaymentRequestResult{Authority: "A100", PaymentURL: "https://gw/pay/A100"}, nil
}

func (f *flakyAdapter) VerifyPayment(context.Context, string, domain.Money) (*VerificationResult, error) {
	if err := f.attempt(); err != nil {
		return nil, err
	}
	return &VerificationResult{Success: true, RefNumber: "RN1"}, nil
}

func (f *flakyAdapter) Settle(context.Context, string) (bool, error) {
	if err := f.attempt(); err != nil {
		return false, err
	}
	return true, nil
}

func (f *flakyAdapter) Reverse(context.Context, string) (bool, error) {
	if err := f.attempt(); err != nil {
		return false, err
	}
	return true, nil
}

func (f *flakyAdapter) Inquiry(context.Context, string) (InquiryStatus, error) {
	if err := f.attempt(); err != nil {
		return InquiryStatusUnknown, err
	}
	return InquiryStatusSettled, nil
}

func (f *flakyAdapter) Transfer(context.Context, TransferRequest) (*TransferResult, error) {
	if err := f.attempt(); err != nil {
		return nil, err
	}
	return &TransferResult{ExternalPayoutID: "PO1", Accepted: true}, nil
}

func TestRetrying_RecoversFromTransientFailures(t *testing.T) {
	inner := &flakyAdapter{failures: 2}
	r := NewRetrying(inner, 3, time.Millisecond)

	result, err := r.CreatePaymentRequest(context.Background(), PaymentRequest{
		Amount: domain.Money{Amount: 10000, Currency: domain.CurrencyUSD},
	})
	require.NoError(t, err)
	assert.Equal(t, "A100", result.Authority)
	assert.Equal(t, 3, inner.calls)
}

func TestRetrying_ExhaustionSurfacesGatewayError(t *testing.T) {
	inner := &flakyAdapter{failures: 10}
	r := NewRetrying(inner, 2, time.Millisecond)

	_, err := r.VerifyPayment(context.Background(), "A100", domain.Money{Amount: 100, Currency: domain.CurrencyUSD})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrGateway)
	assert.Equal(t, 3, inner.calls) // initial attempt plus two retries
}

func TestRetrying_ContextCancellation(t *testing.T) {
	inner := &flakyAdapter{failures: 100}
	r := NewRetrying(inner, 50, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 25*time.Millisecond)
	defer cancel()

	_, err := r.Transfer(ctx, TransferRequest{
		ConnectedAccountID: "acct_1",
		Amount:             domain.Money{Amount: 100, Currency: domain.CurrencyUSD},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrGateway)
	assert.Less(t, inner.calls, 10)
}
