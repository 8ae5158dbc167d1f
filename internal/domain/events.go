package domain

import (
	"time"

	"github.com/google/uuid"
)

// Domain events are immutable announcements of state change. Payloads are
// plain data; producers do not know their subscribers.

type PaymentCreated struct {
	PaymentID  uuid.UUID
	BookingID  *uuid.UUID
	ProviderID uuid.UUID
	Amount     Money
	Method     PaymentMethod
	OccurredAt time.Time
}

type PaymentStatusChanged struct {
	PaymentID  uuid.UUID
	ProviderID uuid.UUID
	From       PaymentStatus
	To         PaymentStatus
	Reference  string
	OccurredAt time.Time
}

type PaymentRefunded struct {
	PaymentID     uuid.UUID
	ProviderID    uuid.UUID
	Amount        Money
	RefundedTotal Money
	Reason        string
	FullyRefunded bool
	OccurredAt    time.Time
}

type PayoutStatusChanged struct {
	PayoutID   uuid.UUID
	ProviderID uuid.UUID
	From       PayoutStatus
	To         PayoutStatus
	NetAmount  Money
	OccurredAt time.Time
}
