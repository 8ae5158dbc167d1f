package handler

import "net/http"

type AppError struct {
	Status  int
	Code    string
	Message string
}

func (e *AppError) Error() string { return e.Message }

var (
	ErrMissingToken     = &AppError{http.StatusUnauthorized, "MISSING_TOKEN", "Authorization header required"}
	ErrInvalidToken     = &AppError{http.StatusUnauthorized, "INVALID_TOKEN", "Token is invalid or expired"}
	ErrInvalidRequest   = &AppError{http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body"}
	ErrValidationFailed = &AppError{http.StatusBadRequest, "VALIDATION_FAILED", "Validation failed"}
	ErrResourceNotFound = &AppError{http.StatusNotFound, "RESOURCE_NOT_FOUND", "Resource not found"}
	ErrInternalError    = &AppError{http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred"}

	ErrInvalidAmount          = &AppError{http.StatusBadRequest, "INVALID_AMOUNT", "Amount must be greater than zero"}
	ErrInvalidCurrency        = &AppError{http.StatusBadRequest, "INVALID_CURRENCY", "Invalid currency"}
	ErrCurrencyMismatch       = &AppError{http.StatusUnprocessableEntity, "CURRENCY_MISMATCH", "Currency mismatch"}
	ErrInvalidPercentage      = &AppError{http.StatusBadRequest, "INVALID_PERCENTAGE", "Percentage must be between 0 and 100"}
	ErrInvalidDateRange       = &AppError{http.StatusBadRequest, "INVALID_DATE_RANGE", "Start date must be before end date"}
	ErrInvalidStateTransition = &AppError{http.StatusConflict, "INVALID_STATE_TRANSITION", "Operation not allowed in the current state"}
	ErrPaymentTerminal        = &AppError{http.StatusConflict, "PAYMENT_TERMINAL", "Payment is already in a terminal state"}
	ErrRefundExceedsAvailable = &AppError{http.StatusUnprocessableEntity, "REFUND_EXCEEDS_AVAILABLE", "Refund exceeds the refundable amount"}
	ErrReferenceMismatch      = &AppError{http.StatusConflict, "REFERENCE_MISMATCH", "External reference does not match the recorded reference"}
	ErrPayoutTerminal         = &AppError{http.StatusConflict, "PAYOUT_TERMINAL", "Payout is already in a terminal state"}
	ErrMissingDestination     = &AppError{http.StatusBadRequest, "MISSING_PAYOUT_DESTINATION", "Payout destination account required"}
	ErrEmptyPayoutPayments    = &AppError{http.StatusBadRequest, "EMPTY_PAYOUT_PAYMENTS", "Payout requires at least one payment"}
	ErrPaymentNotEligible     = &AppError{http.StatusUnprocessableEntity, "PAYMENT_NOT_ELIGIBLE", "Payment not eligible for payout"}
	ErrCommissionExceedsGross = &AppError{http.StatusUnprocessableEntity, "COMMISSION_EXCEEDS_GROSS", "Commission exceeds gross amount"}
	ErrPeriodEndInFuture      = &AppError{http.StatusUnprocessableEntity, "PERIOD_NOT_CLOSED", "Payout period must be closed"}
	ErrVersionConflict        = &AppError{http.StatusConflict, "VERSION_CONFLICT", "Resource was modified concurrently, please retry"}
	ErrMissingIdempotencyKey  = &AppError{http.StatusBadRequest, "MISSING_IDEMPOTENCY_KEY", "Idempotency-Key header is required"}
	ErrIdempotencyConflict    = &AppError{http.StatusConflict, "IDEMPOTENCY_CONFLICT", "Idempotency key already used with a different request"}
	ErrGatewayUnavailable     = &AppError{http.StatusBadGateway, "GATEWAY_ERROR", "Payment gateway is unavailable"}
)
