package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/salonova/payments/internal/domain"
	"github.com/salonova/payments/internal/logging"
	"github.com/salonova/payments/internal/service/payout"
)

type payoutService interface {
	Create(ctx context.Context, req payout.CreateRequest) (*domain.Payout, error)
	Execute(ctx context.Context, id uuid.UUID, connectedAccountID, description string) (*domain.Payout, error)
	MarkAsPaid(ctx context.Context, id uuid.UUID, bankReference, bankName string) (*payout.SettlementResult, error)
	MarkAsFailed(ctx context.Context, id uuid.UUID, reason string) (*payout.SettlementResult, error)
	PlaceOnHold(ctx context.Context, id uuid.UUID, reason string) (*domain.Payout, error)
	ReleaseFromHold(ctx context.Context, id uuid.UUID) (*domain.Payout, error)
	Cancel(ctx context.Context, id uuid.UUID, reason string) (*domain.Payout, error)
	GetPayout(ctx context.Context, id uuid.UUID) (*domain.Payout, error)
	ListPending(ctx context.Context) ([]domain.Payout, error)
	ListByProvider(ctx context.Context, providerID uuid.UUID, limit, offset int) ([]domain.Payout, error)
}

type PayoutHandler struct {
	payouts payoutService
}

func NewPayoutHandler(payouts payoutService) *PayoutHandler {
	return &PayoutHandler{payouts: payouts}
}

type createPayoutRequest struct {
	ProviderID       uuid.UUID   `json:"provider_id"`
	GrossAmount      int64       `json:"gross_amount"`
	CommissionAmount int64       `json:"commission_amount"`
	Currency         string      `json:"currency"`
	PeriodStart      time.Time   `json:"period_start"`
	PeriodEnd        time.Time   `json:"period_end"`
	PaymentIDs       []uuid.UUID `json:"payment_ids"`
	Notes            string      `json:"notes,omitempty"`
}

func (r createPayoutRequest) Validate() []FieldError {
	var errs []FieldError

	if r.ProviderID == uuid.Nil {
		errs = append(errs, FieldError{Field: "provider_id", Message: "required"})
	}
	if r.GrossAmount <= 0 {
		errs = append(errs, FieldError{Field: "gross_amount", Message: "must be greater than 0"})
	}
	if r.CommissionAmount < 0 {
		errs = append(errs, FieldError{Field: "commission_amount", Message: "must not be negative"})
	}
	if r.Currency == "" {
		errs = append(errs, FieldError{Field: "currency", Message: "required"})
	} else if !domain.Currency(r.Currency).IsValid() {
		errs = append(errs, FieldError{Field: "currency", Message: "must be USD, EUR, GBP, or IRR"})
	}
	if r.PeriodStart.IsZero() {
		errs = append(errs, FieldError{Field: "period_start", Message: "required"})
	}
	if r.PeriodEnd.IsZero() {
		errs = append(errs, FieldError{Field: "period_end", Message: "required"})
	}
	if len(r.PaymentIDs) == 0 {
		errs = append(errs, FieldError{Field: "payment_ids", Message: "at least one payment required"})
	}

	return errs
}

type payoutDTO struct {
	ID               uuid.UUID   `json:"id"`
	ProviderID       uuid.UUID   `json:"provider_id"`
	GrossAmount      int64       `json:"gross_amount"`
	CommissionAmount int64       `json:"commission_amount"`
	NetAmount        int64       `json:"net_amount"`
	Currency         string      `json:"currency"`
	PeriodStart      time.Time   `json:"period_start"`
	PeriodEnd        time.Time   `json:"period_end"`
	PaymentIDs       []uuid.UUID `json:"payment_ids"`
	Status           string      `json:"status"`
	ExternalPayoutID *string     `json:"external_payout_id,omitempty"`
	BankReference    *string     `json:"bank_reference,omitempty"`
	BankName         *string     `json:"bank_name,omitempty"`
	Notes            *string     `json:"notes,omitempty"`
	FailureReason    *string     `json:"failure_reason,omitempty"`
	HoldReason       *string     `json:"hold_reason,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
	CompletedAt      *time.Time  `json:"completed_at,omitempty"`
}

func toPayoutDTO(p *domain.Payout) payoutDTO {
	return payoutDTO{
		ID:               p.ID,
		ProviderID:       p.ProviderID,
		GrossAmount:      p.GrossAmount.Amount,
		CommissionAmount: p.CommissionAmount.Amount,
		NetAmount:        p.NetAmount.Amount,
		Currency:         string(p.NetAmount.Currency),
		PeriodStart:      p.PeriodStart,
		PeriodEnd:        p.PeriodEnd,
		PaymentIDs:       p.PaymentIDs,
		Status:           string(p.Status),
		ExternalPayoutID: p.ExternalPayoutID,
		BankReference:    p.BankReference,
		BankName:         p.BankName,
		Notes:            p.Notes,
		FailureReason:    p.FailureReason,
		HoldReason:       p.HoldReason,
		CreatedAt:        p.CreatedAt,
		CompletedAt:      p.CompletedAt,
	}
}

func (h *PayoutHandler) Create(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req createPayoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	p, err := h.payouts.Create(r.Context(), payout.CreateRequest{
		ProviderID:       req.ProviderID,
		GrossAmount:      req.GrossAmount,
		CommissionAmount: req.CommissionAmount,
		Currency:         domain.Currency(req.Currency),
		PeriodStart:      req.PeriodStart,
		PeriodEnd:        req.PeriodEnd,
		PaymentIDs:       req.PaymentIDs,
		Notes:            req.Notes,
	})
	if err != nil {
		log.Warn("payout creation failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/v1/payouts/%s", p.ID))
	RespondSuccess(w, http.StatusCreated, toPayoutDTO(p))
}

type executePayoutRequest struct {
	ConnectedAccountID string `json:"connected_account_id"`
	Description        string `json:"description,omitempty"`
}

func (h *PayoutHandler) Execute(w http.ResponseWriter, r *http.Request) {
	payoutID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	var req executePayoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	p, err := h.payouts.Execute(r.Context(), payoutID, req.ConnectedAccountID, req.Description)
	if err != nil {
		logging.FromContext(r.Context()).Warn("payout execution failed", "payout_id", payoutID, "error", err)
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusAccepted, toPayoutDTO(p))
}

type payoutPaidRequest struct {
	BankReference string `json:"bank_reference,omitempty"`
	BankName      string `json:"bank_name,omitempty"`
}

func (h *PayoutHandler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	payoutID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	var req payoutPaidRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			RespondAppError(w, ErrInvalidRequest, nil)
			return
		}
	}

	result, err := h.payouts.MarkAsPaid(r.Context(), payoutID, req.BankReference, req.BankName)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, map[string]any{
		"payout":            toPayoutDTO(result.Payout),
		"already_processed": result.AlreadyProcessed,
	})
}

type payoutReasonRequest struct {
	Reason string `json:"reason"`
}

func (h *PayoutHandler) MarkFailed(w http.ResponseWriter, r *http.Request) {
	payoutID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	var req payoutReasonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if req.Reason == "" {
		RespondValidationError(w, []FieldError{{Field: "reason", Message: "required"}})
		return
	}

	result, err := h.payouts.MarkAsFailed(r.Context(), payoutID, req.Reason)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, map[string]any{
		"payout":            toPayoutDTO(result.Payout),
		"already_processed": result.AlreadyProcessed,
	})
}

func (h *PayoutHandler) Hold(w http.ResponseWriter, r *http.Request) {
	payoutID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	var req payoutReasonRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			RespondAppError(w, ErrInvalidRequest, nil)
			return
		}
	}

	p, err := h.payouts.PlaceOnHold(r.Context(), payoutID, req.Reason)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toPayoutDTO(p))
}

func (h *PayoutHandler) Release(w http.ResponseWriter, r *http.Request) {
	payoutID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	p, err := h.payouts.ReleaseFromHold(r.Context(), payoutID)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toPayoutDTO(p))
}

func (h *PayoutHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	payoutID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	var req payoutReasonRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			RespondAppError(w, ErrInvalidRequest, nil)
			return
		}
	}

	p, err := h.payouts.Cancel(r.Context(), payoutID, req.Reason)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toPayoutDTO(p))
}

func (h *PayoutHandler) Get(w http.ResponseWriter, r *http.Request) {
	payoutID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	p, err := h.payouts.GetPayout(r.Context(), payoutID)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toPayoutDTO(p))
}

func (h *PayoutHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	payouts, err := h.payouts.ListPending(r.Context())
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	dtos := make([]payoutDTO, 0, len(payouts))
	for i := range payouts {
		dtos = append(dtos, toPayoutDTO(&payouts[i]))
	}
	RespondSuccess(w, http.StatusOK, dtos)
}

func (h *PayoutHandler) ListByProvider(w http.ResponseWriter, r *http.Request) {
	providerID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	payouts, err := h.payouts.ListByProvider(r.Context(), providerID, limit, offset)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	dtos := make([]payoutDTO, 0, len(payouts))
	for i := range payouts {
		dtos = append(dtos, toPayoutDTO(&payouts[i]))
	}
	RespondSuccess(w, http.StatusOK, dtos)
}
