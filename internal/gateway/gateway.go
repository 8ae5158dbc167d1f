package gateway

import (
	"context"

	"github.com/salonova/payments/internal/domain"
)

// InquiryStatus is the gateway-side view of a payment.
type InquiryStatus string

const (
	InquiryStatusPending  InquiryStatus = "pending"
	InquiryStatusSettled  InquiryStatus = "settled"
	InquiryStatusReversed InquiryStatus = "reversed"
	InquiryStatusUnknown  InquiryStatus = "unknown"
)

type PaymentRequest struct {
	Amount      domain.Money
	CallbackURL string
	Mobile      string
	Email       string
	Description string
}

// PaymentRequestResult carries the opaque handle (authority) issued by the
// gateway and the URL the customer is redirected to.
type PaymentRequestResult struct {
	Authority  string
	PaymentURL string
}

type VerificationResult struct {
	Success   bool
	RefNumber string
	CardPan   string
	Fee       *domain.Money
}

type TransferRequest struct {
	ConnectedAccountID string
	Amount             domain.Money
	Description        string
}

type TransferResult struct {
	ExternalPayoutID string
	Accepted         bool
}

// Adapter is the abstract contract every payment gateway implementation
// satisfies. Concrete PSP wire protocols live behind it; the engine only
// ever sees this surface.
type Adapter interface {
	CreatePaymentRequest(ctx context.Context, req PaymentRequest) (*PaymentRequestResult, error)
	VerifyPayment(ctx context.Context, authority string, amount domain.Money) (*VerificationResult, error)
	Settle(ctx context.Context, authority string) (bool, error)
	Reverse(ctx context.Context, authority string) (bool, error)
	Inquiry(ctx context.Context, authority string) (InquiryStatus, error)
	Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error)
}
