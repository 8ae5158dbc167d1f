package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type PaymentMethod string

const (
	PaymentMethodCreditCard   PaymentMethod = "credit_card"
	PaymentMethodZarinPal     PaymentMethod = "zarinpal"
	PaymentMethodBehpardakht  PaymentMethod = "behpardakht"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
)

func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCreditCard, PaymentMethodZarinPal, PaymentMethodBehpardakht, PaymentMethodBankTransfer:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentStatusPending           PaymentStatus = "pending"
	PaymentStatusAuthorized        PaymentStatus = "authorized"
	PaymentStatusPaid              PaymentStatus = "paid"
	PaymentStatusPartiallyRefunded PaymentStatus = "partially_refunded"
	PaymentStatusRefunded          PaymentStatus = "refunded"
	PaymentStatusFailed            PaymentStatus = "failed"
	PaymentStatusAutoReversed      PaymentStatus = "auto_reversed"
)

func (s PaymentStatus) IsTerminal() bool {
	switch s {
	case PaymentStatusRefunded, PaymentStatusFailed, PaymentStatusAutoReversed:
		return true
	}
	return false
}

type TransactionType string

const (
	TransactionTypePaymentRequest TransactionType = "payment_request"
	TransactionTypeAuthorization  TransactionType = "authorization"
	TransactionTypeCapture        TransactionType = "capture"
	TransactionTypeVerification   TransactionType = "verification"
	TransactionTypeRefund         TransactionType = "refund"
	TransactionTypeFailed         TransactionType = "failed"
)

// Transaction is one immutable entry in a payment's ledger. The ledger is
// the source of truth for whether an external callback has already been
// applied.
type Transaction struct {
	ID                uuid.UUID
	PaymentID         uuid.UUID
	Type              TransactionType
	Amount            Money
	ExternalReference string
	CreatedAt         time.Time
}

// Payment is the aggregate for one charge attempt against a booking. All
// mutation goes through its transition methods; each successful transition
// appends exactly one Transaction, and a failed precondition leaves the
// aggregate untouched.
type Payment struct {
	ID             uuid.UUID
	BookingID      *uuid.UUID
	CustomerID     uuid.UUID
	ProviderID     uuid.UUID
	Amount         Money
	RefundedAmount Money
	Fee            *Money
	Method         PaymentMethod
	Status         PaymentStatus
	CardPan        *string
	RefNumber      *string
	Authority      *string
	PaymentURL     *string
	FailureReason  *string
	Metadata       map[string]string
	Transactions   []Transaction
	Version        int64
	SettledAt      *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
	CompletedAt    *time.Time
}

// NewPayment creates a standalone Pending payment not tied to a booking.
func NewPayment(customerID, providerID uuid.UUID, amount Money, method PaymentMethod, now time.Time) (*Payment, error) {
	if amount.Amount <= 0 {
		return nil, fmt.Errorf("NewPayment: %w", ErrInvalidAmount)
	}
	if !amount.Currency.IsValid() {
		return nil, fmt.Errorf("NewPayment: %w", ErrInvalidCurrency)
	}
	if !method.IsValid() {
		return nil, fmt.Errorf("NewPayment: method %q: %w", method, ErrInvalidRequest)
	}
	return &Payment{
		ID:             uuid.New(),
		CustomerID:     customerID,
		ProviderID:     providerID,
		Amount:         amount,
		RefundedAmount: ZeroMoney(amount.Currency),
		Method:         method,
		Status:         PaymentStatusPending,
		Metadata:       map[string]string{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// NewBookingPayment creates a Pending payment charged against a booking.
func NewBookingPayment(bookingID, customerID, providerID uuid.UUID, amount Money, method PaymentMethod, now time.Time) (*Payment, error) {
	p, err := NewPayment(customerID, providerID, amount, method, now)
	if err != nil {
		return nil, err
	}
	p.BookingID = &bookingID
	return p, nil
}

func (p *Payment) appendTransaction(t TransactionType, amount Money, ref string, now time.Time) *Transaction {
	txn := Transaction{
		ID:                uuid.New(),
		PaymentID:         p.ID,
		Type:              t,
		Amount:            amount,
		ExternalReference: ref,
		CreatedAt:         now,
	}
	p.Transactions = append(p.Transactions, txn)
	p.UpdatedAt = now
	return &p.Transactions[len(p.Transactions)-1]
}

// RecordPaymentRequest stores the gateway handle issued for a redirect flow.
// The payment stays Pending. Re-recording the same authority is a no-op.
func (p *Payment) RecordPaymentRequest(authority, paymentURL string, now time.Time) (*Transaction, error) {
	if p.Status != PaymentStatusPending {
		return nil, fmt.Errorf("RecordPaymentRequest: from %s: %w", p.Status, ErrInvalidStateTransition)
	}
	if authority == "" {
		return nil, fmt.Errorf("RecordPaymentRequest: empty authority: %w", ErrInvalidRequest)
	}
	if p.Authority != nil && *p.Authority == authority {
		return nil, nil
	}
	p.Authority = &authority
	if paymentURL != "" {
		p.PaymentURL = &paymentURL
	}
	return p.appendTransaction(TransactionTypePaymentRequest, p.Amount, authority, now), nil
}

// Authorize records a successful two-phase authorization.
func (p *Payment) Authorize(externalRef, paymentMethodID string, now time.Time) (*Transaction, error) {
	if p.Status != PaymentStatusPending {
		return nil, fmt.Errorf("Authorize: from %s: %w", p.Status, ErrInvalidStateTransition)
	}
	p.Status = PaymentStatusAuthorized
	p.RefNumber = &externalRef
	if paymentMethodID != "" {
		p.Metadata["payment_method_id"] = paymentMethodID
	}
	return p.appendTransaction(TransactionTypeAuthorization, p.Amount, externalRef, now), nil
}

// ProcessCharge captures directly without a separate authorization step.
func (p *Payment) ProcessCharge(externalRef, paymentMethodID string, now time.Time) (*Transaction, error) {
	if p.Status != PaymentStatusPending {
		return nil, fmt.Errorf("ProcessCharge: from %s: %w", p.Status, ErrInvalidStateTransition)
	}
	p.Status = PaymentStatusPaid
	p.RefNumber = &externalRef
	if paymentMethodID != "" {
		p.Metadata["payment_method_id"] = paymentMethodID
	}
	p.CompletedAt = &now
	return p.appendTransaction(TransactionTypeCapture, p.Amount, externalRef, now), nil
}

// VerifyPayment completes a redirect flow. Gateways redeliver callbacks, so
// re-verifying an already-Paid payment with the same reference succeeds
// without appending a second Verification; a different reference on a Paid
// payment is rejected.
func (p *Payment) VerifyPayment(refNumber, cardPan string, now time.Time) (*Transaction, error) {
	if p.Status == PaymentStatusPaid {
		if p.RefNumber != nil && *p.RefNumber == refNumber {
			return nil, nil
		}
		return nil, fmt.Errorf("VerifyPayment: %w", ErrReferenceMismatch)
	}
	if p.Status != PaymentStatusPending && p.Status != PaymentStatusAuthorized {
		return nil, fmt.Errorf("VerifyPayment: from %s: %w", p.Status, ErrInvalidStateTransition)
	}
	p.Status = PaymentStatusPaid
	p.RefNumber = &refNumber
	if cardPan != "" {
		p.CardPan = &cardPan
	}
	p.CompletedAt = &now
	return p.appendTransaction(TransactionTypeVerification, p.Amount, refNumber, now), nil
}

// Capture posts an authorized charge. A nil amount means full capture; a
// partial capture re-points Amount at the captured value so the refund
// invariant tracks captured funds.
func (p *Payment) Capture(amount *Money, now time.Time) (*Transaction, error) {
	if p.Status != PaymentStatusAuthorized {
		return nil, fmt.Errorf("Capture: from %s: %w", p.Status, ErrInvalidStateTransition)
	}
	captured := p.Amount
	if amount != nil {
		cmp, err := amount.Compare(p.Amount)
		if err != nil {
			return nil, fmt.Errorf("Capture: %w", err)
		}
		if amount.Amount <= 0 || cmp > 0 {
			return nil, fmt.Errorf("Capture: %w", ErrInvalidAmount)
		}
		captured = *amount
	}
	p.Status = PaymentStatusPaid
	p.Amount = captured
	p.CompletedAt = &now
	ref := ""
	if p.RefNumber != nil {
		ref = *p.RefNumber
	}
	return p.appendTransaction(TransactionTypeCapture, captured, ref, now), nil
}

// Refund returns part or all of the captured amount. The running refunded
// total can never exceed the captured amount.
func (p *Payment) Refund(amount Money, reason, notes string, now time.Time) (*Transaction, error) {
	if p.Status != PaymentStatusPaid && p.Status != PaymentStatusPartiallyRefunded {
		return nil, fmt.Errorf("Refund: from %s: %w", p.Status, ErrInvalidStateTransition)
	}
	if amount.Amount <= 0 {
		return nil, fmt.Errorf("Refund: %w", ErrInvalidAmount)
	}
	newTotal, err := p.RefundedAmount.Add(amount)
	if err != nil {
		return nil, fmt.Errorf("Refund: %w", err)
	}
	cmp, err := newTotal.Compare(p.Amount)
	if err != nil {
		return nil, fmt.Errorf("Refund: %w", err)
	}
	if cmp > 0 {
		return nil, fmt.Errorf("Refund: %w", ErrRefundExceedsAvailable)
	}
	p.RefundedAmount = newTotal
	if cmp == 0 {
		p.Status = PaymentStatusRefunded
	} else {
		p.Status = PaymentStatusPartiallyRefunded
	}
	if reason != "" {
		p.Metadata["refund_reason"] = reason
	}
	if notes != "" {
		p.Metadata["refund_notes"] = notes
	}
	return p.appendTransaction(TransactionTypeRefund, amount, reason, now), nil
}

// MarkFailed moves any non-terminal payment to Failed.
func (p *Payment) MarkFailed(reason string, now time.Time) (*Transaction, error) {
	if p.Status.IsTerminal() {
		return nil, fmt.Errorf("MarkFailed: %w", ErrPaymentTerminal)
	}
	p.Status = PaymentStatusFailed
	p.FailureReason = &reason
	return p.appendTransaction(TransactionTypeFailed, p.Amount, reason, now), nil
}

// Settle confirms a captured charge is finally posted at the gateway.
// Settling an already-settled payment reports alreadyProcessed and changes
// nothing.
func (p *Payment) Settle(now time.Time) (alreadyProcessed bool, err error) {
	if p.SettledAt != nil {
		return true, nil
	}
	if p.Status != PaymentStatusPaid && p.Status != PaymentStatusPartiallyRefunded {
		return false, fmt.Errorf("Settle: from %s: %w", p.Status, ErrInvalidStateTransition)
	}
	p.SettledAt = &now
	p.UpdatedAt = now
	return false, nil
}

// Reverse cancels a captured-but-unsettled charge. Reversing an
// already-reversed payment reports alreadyProcessed and changes nothing.
func (p *Payment) Reverse(reason string, now time.Time) (alreadyProcessed bool, err error) {
	if p.Status == PaymentStatusAutoReversed {
		return true, nil
	}
	if p.Status != PaymentStatusPaid {
		return false, fmt.Errorf("Reverse: from %s: %w", p.Status, ErrInvalidStateTransition)
	}
	if p.SettledAt != nil {
		return false, fmt.Errorf("Reverse: payment already settled: %w", ErrInvalidStateTransition)
	}
	p.Status = PaymentStatusAutoReversed
	if reason != "" {
		p.FailureReason = &reason
	}
	p.UpdatedAt = now
	return false, nil
}

// HasTransaction reports whether the ledger already holds an entry of the
// given type with the given external reference.
func (p *Payment) HasTransaction(t TransactionType, ref string) bool {
	for _, txn := range p.Transactions {
		if txn.Type == t && txn.ExternalReference == ref {
			return true
		}
	}
	return false
}
