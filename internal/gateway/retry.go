package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/salonova/payments/internal/domain"
)

// Retrying decorates an Adapter with bounded exponential backoff. When the
// retry budget is exhausted the error surfaces as domain.ErrGateway and the
// caller's aggregate stays in its prior state.
type Retrying struct {
	inner           Adapter
	maxRetries      uint64
	initialInterval time.Duration
}

func NewRetrying(inner Adapter, maxRetries uint64, initialInterval time.Duration) *Retrying {
	return &Retrying{inner: inner, maxRetries: maxRetries, initialInterval: initialInterval}
}

func retry[T any](ctx context.Context, r *Retrying, op string, fn func() (T, error)) (T, error) {
	var result T
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.initialInterval

	err := backoff.Retry(func() error {
		var err error
		result, err = fn()
		return err
	}, backoff.WithMaxRetries(backoff.WithContext(b, ctx), r.maxRetries))
	if err != nil {
		var zero T
		return zero, fmt.Errorf("%s: %v: %w", op, err, domain.ErrGateway)
	}
	return result, nil
}

func (r *Retrying) CreatePaymentRequest(ctx context.Context, req PaymentRequest) (*PaymentRequestResult, error) {
	return retry(ctx, r, "CreatePaymentRequest", func() (*PaymentRequestResult, error) {
		return r.inner.CreatePaymentRequest(ctx, req)
	})
}

func (r *Retrying) VerifyPayment(ctx context.Context, authority string, amount domain.Money) (*VerificationResult, error) {
	return retry(ctx, r, "VerifyPayment", func() (*VerificationResult, error) {
		return r.inner.VerifyPayment(ctx, authority, amount)
	})
}

func (r *Retrying) Settle(ctx context.Context, authority string) (bool, error) {
	return retry(ctx, r, "Settle", func() (bool, error) {
		return r.inner.Settle(ctx, authority)
	})
}

func (r *Retrying) Reverse(ctx context.Context, authority string) (bool, error) {
	return retry(ctx, r, "Reverse", func() (bool, error) {
		return r.inner.Reverse(ctx, authority)
	})
}

func (r *Retrying) Inquiry(ctx context.Context, authority string) (InquiryStatus, error) {
	return retry(ctx, r, "Inquiry", func() (InquiryStatus, error) {
		return r.inner.Inquiry(ctx, authority)
	})
}

func (r *Retrying) Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	return retry(ctx, r, "Transfer", func() (*TransferResult, error) {
		return r.inner.Transfer(ctx, req)
	})
}
