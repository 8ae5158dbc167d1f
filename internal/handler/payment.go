package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/salonova/payments/internal/auth"
	"github.com/salonova/payments/internal/domain"
	"github.com/salonova/payments/internal/logging"
	"github.com/salonova/payments/internal/service/payment"
)

type paymentService interface {
	Create(ctx context.Context, req payment.CreateRequest) (*domain.Payment, error)
	GetPayment(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]domain.Payment, error)
	Authorize(ctx context.Context, id uuid.UUID, externalRef, paymentMethodID string) (*domain.Payment, error)
	ProcessCharge(ctx context.Context, id uuid.UUID, externalRef, paymentMethodID string) (*domain.Payment, error)
	Capture(ctx context.Context, id uuid.UUID, amount *int64) (*domain.Payment, error)
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) (*domain.Payment, error)
	InitiateRedirect(ctx context.Context, req payment.InitiateRedirectRequest) (*domain.Payment, error)
	VerifyByAuthority(ctx context.Context, authority string) (*payment.VerifyResult, error)
	Refund(ctx context.Context, req payment.RefundRequest) (*domain.Payment, error)
	Settle(ctx context.Context, id uuid.UUID) (*payment.SettlementResult, error)
	Reverse(ctx context.Context, id uuid.UUID, reason string) (*payment.SettlementResult, error)
}

type PaymentHandler struct {
	payments paymentService
}

func NewPaymentHandler(payments paymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

type createPaymentRequest struct {
	BookingID  *uuid.UUID        `json:"booking_id,omitempty"`
	ProviderID uuid.UUID         `json:"provider_id"`
	Amount     int64             `json:"amount"`
	Currency   string            `json:"currency"`
	Method     string            `json:"method"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

func (r createPaymentRequest) Validate() []FieldError {
	var errs []FieldError

	if r.ProviderID == uuid.Nil {
		errs = append(errs, FieldError{Field: "provider_id", Message: "required"})
	}
	if r.Amount <= 0 {
		errs = append(errs, FieldError{Field: "amount", Message: "must be greater than 0"})
	}
	if r.Currency == "" {
		errs = append(errs, FieldError{Field: "currency", Message: "required"})
	} else if !domain.Currency(r.Currency).IsValid() {
		errs = append(errs, FieldError{Field: "currency", Message: "must be USD, EUR, GBP, or IRR"})
	}
	if r.Method == "" {
		errs = append(errs, FieldError{Field: "method", Message: "required"})
	} else if !domain.PaymentMethod(r.Method).IsValid() {
		errs = append(errs, FieldError{Field: "method", Message: "unknown payment method"})
	}

	return errs
}

type transactionDTO struct {
	ID                uuid.UUID `json:"id"`
	Type              string    `json:"type"`
	Amount            int64     `json:"amount"`
	Currency          string    `json:"currency"`
	ExternalReference string    `json:"external_reference,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

type paymentDTO struct {
	ID             uuid.UUID         `json:"id"`
	BookingID      *uuid.UUID        `json:"booking_id,omitempty"`
	CustomerID     uuid.UUID         `json:"customer_id"`
	ProviderID     uuid.UUID         `json:"provider_id"`
	Amount         int64             `json:"amount"`
	RefundedAmount int64             `json:"refunded_amount"`
	Currency       string            `json:"currency"`
	Fee            *int64            `json:"fee,omitempty"`
	Method         string            `json:"method"`
	Status         string            `json:"status"`
	CardPan        *string           `json:"card_pan,omitempty"`
	RefNumber      *string           `json:"ref_number,omitempty"`
	PaymentURL     *string           `json:"payment_url,omitempty"`
	FailureReason  *string           `json:"failure_reason,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	Transactions   []transactionDTO  `json:"transactions,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	CompletedAt    *time.Time        `json:"completed_at,omitempty"`
	SettledAt      *time.Time        `json:"settled_at,omitempty"`
}

func toPaymentDTO(p *domain.Payment) paymentDTO {
	dto := paymentDTO{
		ID:             p.ID,
		BookingID:      p.BookingID,
		CustomerID:     p.CustomerID,
		ProviderID:     p.ProviderID,
		Amount:         p.Amount.Amount,
		RefundedAmount: p.RefundedAmount.Amount,
		Currency:       string(p.Amount.Currency),
		Method:         string(p.Method),
		Status:         string(p.Status),
		CardPan:        p.CardPan,
		RefNumber:      p.RefNumber,
		PaymentURL:     p.PaymentURL,
		FailureReason:  p.FailureReason,
		Metadata:       p.Metadata,
		CreatedAt:      p.CreatedAt,
		CompletedAt:    p.CompletedAt,
		SettledAt:      p.SettledAt,
	}
	if p.Fee != nil {
		dto.Fee = &p.Fee.Amount
	}
	for _, txn := range p.Transactions {
		dto.Transactions = append(dto.Transactions, transactionDTO{
			ID:                txn.ID,
			Type:              string(txn.Type),
			Amount:            txn.Amount.Amount,
			Currency:          string(txn.Amount.Currency),
			ExternalReference: txn.ExternalReference,
			CreatedAt:         txn.CreatedAt,
		})
	}
	return dto
}

func (h *PaymentHandler) Create(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	customerID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	var req createPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	p, err := h.payments.Create(r.Context(), payment.CreateRequest{
		BookingID:  req.BookingID,
		CustomerID: customerID,
		ProviderID: req.ProviderID,
		Amount:     req.Amount,
		Currency:   domain.Currency(req.Currency),
		Method:     domain.PaymentMethod(req.Method),
		Metadata:   req.Metadata,
	})
	if err != nil {
		log.Warn("payment creation failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/v1/payments/%s", p.ID))
	RespondSuccess(w, http.StatusCreated, toPaymentDTO(p))
}

func (h *PaymentHandler) Get(w http.ResponseWriter, r *http.Request) {
	paymentID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	p, err := h.payments.GetPayment(r.Context(), paymentID)
	if err != nil {
		logging.FromContext(r.Context()).Warn("payment lookup failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toPaymentDTO(p))
}

func (h *PaymentHandler) List(w http.ResponseWriter, r *http.Request) {
	customerID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	payments, err := h.payments.ListByCustomer(r.Context(), customerID, limit, offset)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	dtos := make([]paymentDTO, 0, len(payments))
	for i := range payments {
		dtos = append(dtos, toPaymentDTO(&payments[i]))
	}
	RespondSuccess(w, http.StatusOK, dtos)
}

type authorizeRequest struct {
	ExternalReference string `json:"external_reference"`
	PaymentMethodID   string `json:"payment_method_id,omitempty"`
}

func (h *PaymentHandler) Authorize(w http.ResponseWriter, r *http.Request) {
	paymentID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	var req authorizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if req.ExternalReference == "" {
		RespondValidationError(w, []FieldError{{Field: "external_reference", Message: "required"}})
		return
	}

	p, err := h.payments.Authorize(r.Context(), paymentID, req.ExternalReference, req.PaymentMethodID)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toPaymentDTO(p))
}

func (h *PaymentHandler) Charge(w http.ResponseWriter, r *http.Request) {
	paymentID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	var req authorizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if req.ExternalReference == "" {
		RespondValidationError(w, []FieldError{{Field: "external_reference", Message: "required"}})
		return
	}

	p, err := h.payments.ProcessCharge(r.Context(), paymentID, req.ExternalReference, req.PaymentMethodID)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toPaymentDTO(p))
}

type captureRequest struct {
	Amount *int64 `json:"amount,omitempty"`
}

func (h *PaymentHandler) Capture(w http.ResponseWriter, r *http.Request) {
	paymentID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	var req captureRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			RespondAppError(w, ErrInvalidRequest, nil)
			return
		}
	}

	p, err := h.payments.Capture(r.Context(), paymentID, req.Amount)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toPaymentDTO(p))
}

type failRequest struct {
	Reason string `json:"reason"`
}

func (h *PaymentHandler) Fail(w http.ResponseWriter, r *http.Request) {
	paymentID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	var req failRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if req.Reason == "" {
		RespondValidationError(w, []FieldError{{Field: "reason", Message: "required"}})
		return
	}

	p, err := h.payments.MarkFailed(r.Context(), paymentID, req.Reason)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toPaymentDTO(p))
}

type redirectRequest struct {
	Mobile string `json:"mobile,omitempty"`
	Email  string `json:"email,omitempty"`
}

// Redirect starts a gateway redirect flow and returns the URL the customer
// completes payment at.
func (h *PaymentHandler) Redirect(w http.ResponseWriter, r *http.Request) {
	paymentID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	var req redirectRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			RespondAppError(w, ErrInvalidRequest, nil)
			return
		}
	}

	p, err := h.payments.InitiateRedirect(r.Context(), payment.InitiateRedirectRequest{
		PaymentID: paymentID,
		Mobile:    req.Mobile,
		Email:     req.Email,
	})
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toPaymentDTO(p))
}

// Callback is where the gateway redirects the customer after payment. The
// gateway passes its authority handle in the query string; verification is
// idempotent against redelivery.
func (h *PaymentHandler) Callback(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	authority := r.URL.Query().Get("Authority")
	if authority == "" {
		authority = r.URL.Query().Get("authority")
	}
	if authority == "" {
		RespondValidationError(w, []FieldError{{Field: "authority", Message: "required"}})
		return
	}

	result, err := h.payments.VerifyByAuthority(r.Context(), authority)
	if err != nil {
		log.Warn("payment verification failed", "authority", authority, "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, map[string]any{
		"payment":          toPaymentDTO(result.Payment),
		"already_verified": result.AlreadyVerified,
	})
}

type refundRequest struct {
	Amount int64  `json:"amount"`
	Reason string `json:"reason"`
	Notes  string `json:"notes,omitempty"`
}

func (r refundRequest) Validate() []FieldError {
	var errs []FieldError
	if r.Amount <= 0 {
		errs = append(errs, FieldError{Field: "amount", Message: "must be greater than 0"})
	}
	if r.Reason == "" {
		errs = append(errs, FieldError{Field: "reason", Message: "required"})
	}
	return errs
}

func (h *PaymentHandler) Refund(w http.ResponseWriter, r *http.Request) {
	paymentID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	var req refundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	p, err := h.payments.Refund(r.Context(), payment.RefundRequest{
		PaymentID: paymentID,
		Amount:    req.Amount,
		Reason:    req.Reason,
		Notes:     req.Notes,
	})
	if err != nil {
		logging.FromContext(r.Context()).Warn("refund failed", "payment_id", paymentID, "error", err)
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toPaymentDTO(p))
}

func (h *PaymentHandler) Settle(w http.ResponseWriter, r *http.Request) {
	paymentID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	result, err := h.payments.Settle(r.Context(), paymentID)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, map[string]any{
		"payment":           toPaymentDTO(result.Payment),
		"already_processed": result.AlreadyProcessed,
	})
}

func (h *PaymentHandler) Reverse(w http.ResponseWriter, r *http.Request) {
	paymentID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	var req failRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			RespondAppError(w, ErrInvalidRequest, nil)
			return
		}
	}
	if req.Reason == "" {
		req.Reason = "manual reversal"
	}

	result, err := h.payments.Reverse(r.Context(), paymentID, req.Reason)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, map[string]any{
		"payment":           toPaymentDTO(result.Payment),
		"already_processed": result.AlreadyProcessed,
	})
}
