package booking

import (
	"fmt"
	"time"
)

// PaymentStatus represents the bookkeeping state of a booking's payment.
// It is derived from lifecycle transitions and never set directly by a
// client request.
type PaymentStatus string

const (
	PaymentPending        PaymentStatus = "pending"
	PaymentPaidToPlatform PaymentStatus = "paid_to_platform"
	PaymentPayoutPending  PaymentStatus = "payout_pending"
	PaymentPaidToVendor   PaymentStatus = "paid_to_vendor"
	PaymentRefundPending  PaymentStatus = "refund_pending"
	PaymentRefunded       PaymentStatus = "refunded"
)

// validPaymentTransitions is the authoritative payment state machine. The
// status never moves backward; a queued payout may still be redirected into
// a refund while unsettled, which is how a dispute on a completed booking
// resolves in the customer's favor. Settled statuses are immutable.
var validPaymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending:        {PaymentPaidToPlatform},
	PaymentPaidToPlatform: {PaymentPayoutPending, PaymentRefundPending},
	PaymentPayoutPending:  {PaymentPaidToVendor, PaymentRefundPending},
	PaymentPaidToVendor:   {},
	PaymentRefundPending:  {PaymentRefunded},
	PaymentRefunded:       {},
}

// IsValid returns true if the status is a recognized payment status.
func (s PaymentStatus) IsValid() bool {
	_, exists := validPaymentTransitions[s]
	return exists
}

// CanTransitionTo returns true if a transition from this status to the target is allowed.
func (s PaymentStatus) CanTransitionTo(target PaymentStatus) bool {
	allowed, exists := validPaymentTransitions[s]
	if !exists {
		return false
	}
	for _, t := range allowed {
		if t == target {
			return true
		}
	}
	return false
}

// String returns the string representation of the status.
func (s PaymentStatus) String() string {
	return string(s)
}

// ParsePaymentStatus converts a string to a PaymentStatus, returning an error if invalid.
func ParsePaymentStatus(s string) (PaymentStatus, error) {
	status := PaymentStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid payment status: %s", s)
	}
	return status, nil
}

// Payment is the embedded payment bookkeeping sub-record of a booking.
type Payment struct {
	Status        PaymentStatus `json:"status"`
	TransactionID string        `json:"transaction_id,omitempty"`
	PayoutID      string        `json:"payout_id,omitempty"`
	PaidAt        *time.Time    `json:"paid_at,omitempty"`
	SettledAt     *time.Time    `json:"settled_at,omitempty"`
}

// transition moves the payment to target, enforcing the payment state machine.
func (p *Payment) transition(target PaymentStatus) error {
	if !p.Status.CanTransitionTo(target) {
		return fmt.Errorf("payment cannot move from %s to %s", p.Status, target)
	}
	p.Status = target
	return nil
}

// deriveForBookingStatus applies the payment side effect of a booking status
// change. Completion releases the captured amount toward payout; any terminal
// cancellation or rejection after upfront capture queues a refund. The
// derivation is a no-op when the payment already reached the derived stop or
// its settled successor, so re-entering completed through dispute resolution
// does not re-queue anything. Statuses with no payment effect leave the
// record untouched.
func (p *Payment) deriveForBookingStatus(target BookingStatus) error {
	var derived PaymentStatus
	switch target {
	case StatusCompleted:
		derived = PaymentPayoutPending
	case StatusCancelled, StatusRejected:
		derived = PaymentRefundPending
	default:
		return nil
	}

	switch {
	case p.Status == derived:
		return nil
	case derived == PaymentPayoutPending && p.Status == PaymentPaidToVendor:
		return nil
	case derived == PaymentRefundPending && p.Status == PaymentRefunded:
		return nil
	}
	return p.transition(derived)
}
