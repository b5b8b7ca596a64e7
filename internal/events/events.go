package events

import (
	"time"

	"github.com/google/uuid"
)

// Topics.
const (
	TopicBookingEvents = "booking.events"
	TopicPaymentEvents = "payment.events"
)

// Event types on booking.events.
const (
	BookingCreated         = "booking.created"
	BookingStatusChanged   = "booking.status_changed"
	BookingDisputeRaised   = "booking.dispute_raised"
	BookingDisputeResolved = "booking.dispute_resolved"
)

// Event types on payment.events, produced by the external settlement system.
const (
	PaymentPayoutSettled = "payment.payout_settled"
	PaymentRefundSettled = "payment.refund_settled"
)

// BookingCreatedEvent is emitted when a new booking is persisted.
type BookingCreatedEvent struct {
	BookingID   uuid.UUID `json:"booking_id"`
	CustomerID  uuid.UUID `json:"customer_id"`
	VendorID    uuid.UUID `json:"vendor_id"`
	ServiceID   uuid.UUID `json:"service_id"`
	AmountCents int64     `json:"amount_cents"`
	Currency    string    `json:"currency"`
	ScheduledAt time.Time `json:"scheduled_at"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// BookingStatusChangedEvent is emitted for every committed status transition.
type BookingStatusChangedEvent struct {
	BookingID     uuid.UUID `json:"booking_id"`
	From          string    `json:"from"`
	To            string    `json:"to"`
	ChangedByRole string    `json:"changed_by_role"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// DisputeRaisedEvent is emitted when a participant raises a dispute.
type DisputeRaisedEvent struct {
	BookingID  uuid.UUID `json:"booking_id"`
	RaisedBy   uuid.UUID `json:"raised_by"`
	RaisedRole string    `json:"raised_role"`
	Reason     string    `json:"reason"`
	OccurredAt time.Time `json:"occurred_at"`
}

// DisputeResolvedEvent is emitted when an administrator settles a dispute.
type DisputeResolvedEvent struct {
	BookingID   uuid.UUID `json:"booking_id"`
	ResolvedBy  uuid.UUID `json:"resolved_by"`
	FinalStatus string    `json:"final_status"`
	Resolution  string    `json:"resolution"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// PayoutSettledEvent reports that the captured amount was paid out to the vendor.
type PayoutSettledEvent struct {
	BookingID   uuid.UUID `json:"booking_id"`
	PayoutID    string    `json:"payout_id"`
	AmountCents int64     `json:"amount_cents"`
	Currency    string    `json:"currency"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// RefundSettledEvent reports that the captured amount was refunded to the customer.
type RefundSettledEvent struct {
	BookingID   uuid.UUID `json:"booking_id"`
	RefundID    string    `json:"refund_id"`
	AmountCents int64     `json:"amount_cents"`
	Currency    string    `json:"currency"`
	OccurredAt  time.Time `json:"occurred_at"`
}
