package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type PayoutStatus string

const (
	PayoutStatusPending    PayoutStatus = "pending"
	PayoutStatusOnHold     PayoutStatus = "on_hold"
	PayoutStatusProcessing PayoutStatus = "processing"
	PayoutStatusPaid       PayoutStatus = "paid"
	PayoutStatusFailed     PayoutStatus = "failed"
	PayoutStatusCancelled  PayoutStatus = "cancelled"
)

func (s PayoutStatus) IsTerminal() bool {
	return s == PayoutStatusPaid || s == PayoutStatusCancelled
}

// Payout is a batched settlement of a provider's net earnings for a closed
// period, dispatched to an external connected account. It references member
// payments by id only and never mutates them.
type Payout struct {
	ID               uuid.UUID
	ProviderID       uuid.UUID
	GrossAmount      Money
	CommissionAmount Money
	NetAmount        Money
	PeriodStart      time.Time
	PeriodEnd        time.Time
	PaymentIDs       []uuid.UUID
	Status           PayoutStatus
	ExternalPayoutID *string
	BankReference    *string
	BankName         *string
	Notes            *string
	FailureReason    *string
	HoldReason       *string
	Version          int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
	CompletedAt      *time.Time
}

// NewPayout validates the aggregation inputs and produces a Pending payout.
// The period is half-open and must be closed (periodEnd not in the future).
func NewPayout(providerID uuid.UUID, gross, commission Money, periodStart, periodEnd time.Time, paymentIDs []uuid.UUID, notes string, now time.Time) (*Payout, error) {
	if !periodStart.Before(periodEnd) {
		return nil, fmt.Errorf("NewPayout: %w", ErrInvalidDateRange)
	}
	if periodEnd.After(now) {
		return nil, fmt.Errorf("NewPayout: %w", ErrPeriodEndInFuture)
	}
	if len(paymentIDs) == 0 {
		return nil, fmt.Errorf("NewPayout: %w", ErrEmptyPayoutPayments)
	}
	cmp, err := commission.Compare(gross)
	if err != nil {
		return nil, fmt.Errorf("NewPayout: %w", err)
	}
	if cmp > 0 {
		return nil, fmt.Errorf("NewPayout: %w", ErrCommissionExceedsGross)
	}
	net, err := gross.Sub(commission)
	if err != nil {
		return nil, fmt.Errorf("NewPayout: %w", err)
	}

	p := &Payout{
		ID:               uuid.New(),
		ProviderID:       providerID,
		GrossAmount:      gross,
		CommissionAmount: commission,
		NetAmount:        net,
		PeriodStart:      periodStart,
		PeriodEnd:        periodEnd,
		PaymentIDs:       paymentIDs,
		Status:           PayoutStatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if notes != "" {
		p.Notes = &notes
	}
	return p, nil
}

// MarkProcessing records acceptance by the gateway's transfer API.
func (p *Payout) MarkProcessing(externalPayoutID string, now time.Time) error {
	if p.Status != PayoutStatusPending {
		return fmt.Errorf("MarkProcessing: from %s: %w", p.Status, ErrInvalidStateTransition)
	}
	if externalPayoutID == "" {
		return fmt.Errorf("MarkProcessing: empty external payout id: %w", ErrInvalidRequest)
	}
	p.Status = PayoutStatusProcessing
	p.ExternalPayoutID = &externalPayoutID
	p.UpdatedAt = now
	return nil
}

// MarkPaid records gateway-confirmed settlement. Duplicate notifications on
// an already-terminal payout succeed without side effects.
func (p *Payout) MarkPaid(bankReference, bankName string, now time.Time) (alreadyProcessed bool, err error) {
	if p.Status.IsTerminal() || p.Status == PayoutStatusFailed {
		return true, nil
	}
	if p.Status != PayoutStatusProcessing {
		return false, fmt.Errorf("MarkPaid: from %s: %w", p.Status, ErrInvalidStateTransition)
	}
	p.Status = PayoutStatusPaid
	if bankReference != "" {
		p.BankReference = &bankReference
	}
	if bankName != "" {
		p.BankName = &bankName
	}
	p.CompletedAt = &now
	p.UpdatedAt = now
	return false, nil
}

// MarkFailed records a gateway-reported failure. Idempotent against
// redelivered notifications.
func (p *Payout) MarkFailed(reason string, now time.Time) (alreadyProcessed bool, err error) {
	if p.Status.IsTerminal() || p.Status == PayoutStatusFailed {
		return true, nil
	}
	if p.Status != PayoutStatusProcessing {
		return false, fmt.Errorf("MarkFailed: from %s: %w", p.Status, ErrInvalidStateTransition)
	}
	p.Status = PayoutStatusFailed
	p.FailureReason = &reason
	p.UpdatedAt = now
	return false, nil
}

func (p *Payout) PlaceOnHold(reason string, now time.Time) error {
	if p.Status != PayoutStatusPending {
		return fmt.Errorf("PlaceOnHold: from %s: %w", p.Status, ErrInvalidStateTransition)
	}
	p.Status = PayoutStatusOnHold
	if reason != "" {
		p.HoldReason = &reason
	}
	p.UpdatedAt = now
	return nil
}

func (p *Payout) ReleaseFromHold(now time.Time) error {
	if p.Status != PayoutStatusOnHold {
		return fmt.Errorf("ReleaseFromHold: from %s: %w", p.Status, ErrInvalidStateTransition)
	}
	p.Status = PayoutStatusPending
	p.HoldReason = nil
	p.UpdatedAt = now
	return nil
}

func (p *Payout) Cancel(reason string, now time.Time) error {
	if p.Status != PayoutStatusPending {
		return fmt.Errorf("Cancel: from %s: %w", p.Status, ErrInvalidStateTransition)
	}
	p.Status = PayoutStatusCancelled
	if reason != "" {
		p.Notes = &reason
	}
	p.UpdatedAt = now
	return nil
}
