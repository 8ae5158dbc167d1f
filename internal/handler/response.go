package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/salonova/payments/internal/domain"
)

type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data"`
	Error   *APIError `json:"error"`
}

type APIError struct {
	Code            string `json:"code"`
	Message         string `json:"message"`
	Severity        string `json:"severity,omitempty"`
	SuggestedAction string `json:"suggested_action,omitempty"`
	Details         any    `json:"details,omitempty"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func RespondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func RespondSuccess(w http.ResponseWriter, status int, data any) {
	RespondJSON(w, status, APIResponse{
		Success: true,
		Data:    data,
		Error:   nil,
	})
}

func RespondAppError(w http.ResponseWriter, appErr *AppError, details any) {
	RespondJSON(w, appErr.Status, APIResponse{
		Success: false,
		Data:    nil,
		Error: &APIError{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: details,
		},
	})
}

func RespondValidationError(w http.ResponseWriter, fields []FieldError) {
	RespondAppError(w, ErrValidationFailed, fields)
}

// RespondDomainError maps a service error to its HTTP shape and annotates
// it with the domain's severity and operator guidance.
func RespondDomainError(w http.ResponseWriter, err error) {
	var appErr *AppError

	switch {
	case errors.Is(err, domain.ErrNotFound):
		appErr = ErrResourceNotFound
	case errors.Is(err, domain.ErrInvalidAmount):
		appErr = ErrInvalidAmount
	case errors.Is(err, domain.ErrInvalidCurrency):
		appErr = ErrInvalidCurrency
	case errors.Is(err, domain.ErrCurrencyMismatch):
		appErr = ErrCurrencyMismatch
	case errors.Is(err, domain.ErrInvalidPercentage):
		appErr = ErrInvalidPercentage
	case errors.Is(err, domain.ErrInvalidDateRange):
		appErr = ErrInvalidDateRange
	case errors.Is(err, domain.ErrPaymentTerminal):
		appErr = ErrPaymentTerminal
	case errors.Is(err, domain.ErrRefundExceedsAvailable):
		appErr = ErrRefundExceedsAvailable
	case errors.Is(err, domain.ErrReferenceMismatch):
		appErr = ErrReferenceMismatch
	case errors.Is(err, domain.ErrPayoutTerminal):
		appErr = ErrPayoutTerminal
	case errors.Is(err, domain.ErrMissingPayoutDestination):
		appErr = ErrMissingDestination
	case errors.Is(err, domain.ErrEmptyPayoutPayments):
		appErr = ErrEmptyPayoutPayments
	case errors.Is(err, domain.ErrPaymentNotEligible):
		appErr = ErrPaymentNotEligible
	case errors.Is(err, domain.ErrCommissionExceedsGross):
		appErr = ErrCommissionExceedsGross
	case errors.Is(err, domain.ErrPeriodEndInFuture):
		appErr = ErrPeriodEndInFuture
	case errors.Is(err, domain.ErrInvalidStateTransition):
		appErr = ErrInvalidStateTransition
	case errors.Is(err, domain.ErrVersionConflict):
		appErr = ErrVersionConflict
	case errors.Is(err, domain.ErrDuplicateIdempotencyKey):
		appErr = ErrIdempotencyConflict
	case errors.Is(err, domain.ErrGateway):
		appErr = ErrGatewayUnavailable
	case errors.Is(err, domain.ErrInvalidRequest):
		appErr = ErrInvalidRequest
	default:
		slog.Error("unhandled domain error", "error", err)
		appErr = ErrInternalError
	}

	RespondJSON(w, appErr.Status, APIResponse{
		Success: false,
		Data:    nil,
		Error: &APIError{
			Code:            appErr.Code,
			Message:         appErr.Message,
			Severity:        string(domain.ErrorSeverity(err)),
			SuggestedAction: domain.SuggestedAction(err),
		},
	})
}
