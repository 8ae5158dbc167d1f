package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/salonova/payments/internal/domain"
	"github.com/salonova/payments/internal/logging"
)

// HTTPGateway speaks to a redirect-style payment gateway over HTTP. The
// bundled mock gateway implements the same surface for local development.
type HTTPGateway struct {
	baseURL    string
	httpClient *http.Client
}

func NewHTTPGateway(baseURL string, timeout time.Duration) *HTTPGateway {
	return &HTTPGateway{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type requestPayload struct {
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	CallbackURL string `json:"callback_url"`
	Mobile      string `json:"mobile,omitempty"`
	Email       string `json:"email,omitempty"`
	Description string `json:"description,omitempty"`
}

type requestResponse struct {
	Authority  string `json:"authority"`
	PaymentURL string `json:"payment_url"`
}

type verifyPayload struct {
	Authority string `json:"authority"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
}

type verifyResponse struct {
	Success   bool   `json:"success"`
	RefNumber string `json:"ref_number"`
	CardPan   string `json:"card_pan,omitempty"`
	Fee       *int64 `json:"fee,omitempty"`
}

type actionPayload struct {
	Authority string `json:"authority"`
}

type actionResponse struct {
	Success bool `json:"success"`
}

type inquiryResponse struct {
	Status string `json:"status"`
}

type transferPayload struct {
	ConnectedAccountID string `json:"connected_account_id"`
	Amount             int64  `json:"amount"`
	Currency           string `json:"currency"`
	Description        string `json:"description,omitempty"`
}

type transferResponse struct {
	PayoutID string `json:"payout_id"`
	Accepted bool   `json:"accepted"`
}

func (g *HTTPGateway) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("post %s: marshal: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("post %s: build request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: send: %w", path, err)
	}
	defer resp.Body.Close()

	logging.FromContext(ctx).Debug("gateway request",
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("post %s: unexpected status %d: %s", path, resp.StatusCode, string(respBody))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("post %s: decode: %w", path, err)
	}
	return nil
}

func (g *HTTPGateway) CreatePaymentRequest(ctx context.Context, req PaymentRequest) (*PaymentRequestResult, error) {
	var out requestResponse
	err := g.post(ctx, "/request", requestPayload{
		Amount:      req.Amount.Amount,
		Currency:    string(req.Amount.Currency),
		CallbackURL: req.CallbackURL,
		Mobile:      req.Mobile,
		Email:       req.Email,
		Description: req.Description,
	}, &out)
	if err != nil {
		return nil, fmt.Errorf("CreatePaymentRequest: %w", err)
	}
	return &PaymentRequestResult{Authority: out.Authority, PaymentURL: out.PaymentURL}, nil
}

func (g *HTTPGateway) VerifyPayment(ctx context.Context, authority string, amount domain.Money) (*VerificationResult, error) {
	var out verifyResponse
	err := g.post(ctx, "/verify", verifyPayload{
		Authority: authority,
		Amount:    amount.Amount,
		Currency:  string(amount.Currency),
	}, &out)
	if err != nil {
		return nil, fmt.Errorf("VerifyPayment: %w", err)
	}

	result := &VerificationResult{
		Success:   out.Success,
		RefNumber: out.RefNumber,
		CardPan:   out.CardPan,
	}
	if out.Fee != nil {
		fee := domain.Money{Amount: *out.Fee, Currency: amount.Currency}
		result.Fee = &fee
	}
	return result, nil
}

func (g *HTTPGateway) Settle(ctx context.Context, authority string) (bool, error) {
	var out actionResponse
	if err := g.post(ctx, "/settle", actionPayload{Authority: authority}, &out); err != nil {
		return false, fmt.Errorf("Settle: %w", err)
	}
	return out.Success, nil
}

func (g *HTTPGateway) Reverse(ctx context.Context, authority string) (bool, error) {
	var out actionResponse
	if err := g.post(ctx, "/reverse", actionPayload{Authority: authority}, &out); err != nil {
		return false, fmt.Errorf("Reverse: %w", err)
	}
	return out.Success, nil
}

func (g *HTTPGateway) Inquiry(ctx context.Context, authority string) (InquiryStatus, error) {
	var out inquiryResponse
	if err := g.post(ctx, "/inquiry", actionPayload{Authority: authority}, &out); err != nil {
		return InquiryStatusUnknown, fmt.Errorf("Inquiry: %w", err)
	}
	switch out.Status {
	case "pending":
		return InquiryStatusPending, nil
	case "settled":
		return InquiryStatusSettled, nil
	case "reversed":
		return InquiryStatusReversed, nil
	}
	return InquiryStatusUnknown, nil
}

func (g *HTTPGateway) Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	var out transferResponse
	err := g.post(ctx, "/transfer", transferPayload{
		ConnectedAccountID: req.ConnectedAccountID,
		Amount:             req.Amount.Amount,
		Currency:           string(req.Amount.Currency),
		Description:        req.Description,
	}, &out)
	if err != nil {
		return nil, fmt.Errorf("Transfer: %w", err)
	}
	return &TransferResult{ExternalPayoutID: out.PayoutID, Accepted: out.Accepted}, nil
}
