package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/salonova/payments/internal/domain"
	"github.com/salonova/payments/internal/logging"
	"github.com/salonova/payments/internal/service"
)

type earningsService interface {
	ProviderEarnings(ctx context.Context, q service.EarningsQuery) (*domain.EarningsReport, error)
}

// FinancialHandler serves the stateless pricing calculator and the
// provider earnings report.
type FinancialHandler struct {
	earnings earningsService
}

func NewFinancialHandler(earnings earningsService) *FinancialHandler {
	return &FinancialHandler{earnings: earnings}
}

type pricingRequest struct {
	BaseAmount            int64   `json:"base_amount"`
	Currency              string  `json:"currency"`
	TaxPercentage         float64 `json:"tax_percentage,omitempty"`
	TaxInclusive          bool    `json:"tax_inclusive,omitempty"`
	DiscountPercentage    float64 `json:"discount_percentage,omitempty"`
	PlatformFeePercentage float64 `json:"platform_fee_percentage,omitempty"`
	DepositPercentage     float64 `json:"deposit_percentage,omitempty"`
}

type pricingDTO struct {
	BaseAmount     int64  `json:"base_amount"`
	DiscountAmount int64  `json:"discount_amount"`
	TaxAmount      int64  `json:"tax_amount"`
	PlatformFee    int64  `json:"platform_fee"`
	DepositAmount  int64  `json:"deposit_amount"`
	TotalAmount    int64  `json:"total_amount"`
	Currency       string `json:"currency"`
}

func (h *FinancialHandler) CalculatePricing(w http.ResponseWriter, r *http.Request) {
	var req pricingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	breakdown, err := domain.CalculatePricing(domain.PricingInput{
		BaseAmount:            req.BaseAmount,
		Currency:              domain.Currency(req.Currency),
		TaxPercentage:         req.TaxPercentage,
		TaxInclusive:          req.TaxInclusive,
		DiscountPercentage:    req.DiscountPercentage,
		PlatformFeePercentage: req.PlatformFeePercentage,
		DepositPercentage:     req.DepositPercentage,
	})
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, pricingDTO{
		BaseAmount:     breakdown.BaseAmount.Amount,
		DiscountAmount: breakdown.DiscountAmount.Amount,
		TaxAmount:      breakdown.TaxAmount.Amount,
		PlatformFee:    breakdown.PlatformFee.Amount,
		DepositAmount:  breakdown.DepositAmount.Amount,
		TotalAmount:    breakdown.TotalAmount.Amount,
		Currency:       string(breakdown.TotalAmount.Currency),
	})
}

type dailyEarningsDTO struct {
	Date         string `json:"date"`
	GrossAmount  int64  `json:"gross_amount"`
	PaymentCount int    `json:"payment_count"`
}

type earningsDTO struct {
	ProviderID       uuid.UUID          `json:"provider_id"`
	StartDate        time.Time          `json:"start_date"`
	EndDate          time.Time          `json:"end_date"`
	Currency         string             `json:"currency"`
	GrossEarnings    int64              `json:"gross_earnings"`
	CommissionAmount int64              `json:"commission_amount"`
	TotalRefunded    int64              `json:"total_refunded"`
	NetEarnings      int64              `json:"net_earnings"`
	TotalPayments    int                `json:"total_payments"`
	ByDate           []dailyEarningsDTO `json:"by_date"`
}

// Earnings reports a provider's gross, commission, refunded, and net
// totals over a half-open [start, end) window, bucketed by UTC day.
func (h *FinancialHandler) Earnings(w http.ResponseWriter, r *http.Request) {
	providerID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	q := r.URL.Query()
	startDate, err := time.Parse(time.RFC3339, q.Get("start_date"))
	if err != nil {
		RespondValidationError(w, []FieldError{{Field: "start_date", Message: "must be RFC 3339"}})
		return
	}
	endDate, err := time.Parse(time.RFC3339, q.Get("end_date"))
	if err != nil {
		RespondValidationError(w, []FieldError{{Field: "end_date", Message: "must be RFC 3339"}})
		return
	}

	query := service.EarningsQuery{
		ProviderID: providerID,
		StartDate:  startDate,
		EndDate:    endDate,
	}
	if raw := q.Get("commission_percentage"); raw != "" {
		var pct float64
		if err := json.Unmarshal([]byte(raw), &pct); err != nil {
			RespondValidationError(w, []FieldError{{Field: "commission_percentage", Message: "must be a number"}})
			return
		}
		query.CommissionPercentage = &pct
	}

	report, err := h.earnings.ProviderEarnings(r.Context(), query)
	if err != nil {
		logging.FromContext(r.Context()).Warn("earnings report failed", "provider_id", providerID, "error", err)
		RespondDomainError(w, err)
		return
	}

	dto := earningsDTO{
		ProviderID:       report.ProviderID,
		StartDate:        report.StartDate,
		EndDate:          report.EndDate,
		Currency:         string(report.Currency),
		GrossEarnings:    report.GrossEarnings.Amount,
		CommissionAmount: report.CommissionAmount.Amount,
		TotalRefunded:    report.TotalRefunded.Amount,
		NetEarnings:      report.NetEarnings.Amount,
		TotalPayments:    report.TotalPayments,
		ByDate:           make([]dailyEarningsDTO, 0, len(report.ByDate)),
	}
	for _, day := range report.ByDate {
		dto.ByDate = append(dto.ByDate, dailyEarningsDTO{
			Date:         day.Date.Format("2006-01-02"),
			GrossAmount:  day.GrossAmount.Amount,
			PaymentCount: day.PaymentCount,
		})
	}
	RespondSuccess(w, http.StatusOK, dto)
}
