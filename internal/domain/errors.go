package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidAmount     = errors.New("amount must not be negative")
	ErrInvalidCurrency   = errors.New("invalid currency")
	ErrCurrencyMismatch  = errors.New("currency mismatch")
	ErrInvalidPercentage = errors.New("percentage must be between 0 and 100")
	ErrInvalidDateRange  = errors.New("start date must be before end date")
	ErrInvalidRequest    = errors.New("invalid request")

	ErrInvalidStateTransition   = errors.New("invalid state transition")
	ErrPaymentTerminal          = errors.New("payment already in terminal state")
	ErrRefundExceedsAvailable   = errors.New("refund exceeds available amount")
	ErrReferenceMismatch        = errors.New("external reference does not match recorded reference")
	ErrPayoutTerminal           = errors.New("payout already in terminal state")
	ErrMissingPayoutDestination = errors.New("payout destination account required")
	ErrEmptyPayoutPayments      = errors.New("payout requires at least one payment")
	ErrPaymentNotEligible       = errors.New("payment not eligible for payout")
	ErrCommissionExceedsGross   = errors.New("commission exceeds gross amount")
	ErrPeriodEndInFuture        = errors.New("payout period must be closed")
	ErrDuplicateIdempotencyKey  = errors.New("duplicate idempotency key")

	ErrVersionConflict = errors.New("optimistic lock conflict")
	ErrGateway         = errors.New("gateway error")
)

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// ErrorSeverity classifies an error for operator dashboards. Severity is a
// property of the error kind, not state carried on the error value.
func ErrorSeverity(err error) Severity {
	switch {
	case errors.Is(err, ErrGateway), errors.Is(err, ErrVersionConflict):
		return SeverityCritical
	case errors.Is(err, ErrRefundExceedsAvailable),
		errors.Is(err, ErrInvalidStateTransition),
		errors.Is(err, ErrPaymentTerminal),
		errors.Is(err, ErrPayoutTerminal),
		errors.Is(err, ErrPaymentNotEligible):
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

// SuggestedAction returns the operator guidance for an error kind.
func SuggestedAction(err error) string {
	switch {
	case errors.Is(err, ErrGateway):
		return "check gateway connectivity and re-drive the operation"
	case errors.Is(err, ErrVersionConflict):
		return "re-read the aggregate and retry the operation"
	case errors.Is(err, ErrRefundExceedsAvailable):
		return "verify the refund amount against the captured amount"
	case errors.Is(err, ErrMissingPayoutDestination):
		return "configure the provider's connected account before executing"
	case errors.Is(err, ErrNotFound):
		return "verify the identifier"
	default:
		return "correct the request and retry"
	}
}
