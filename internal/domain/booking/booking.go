package booking

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/localserve/service-booking/internal/domain"
)

const transactionIDChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// Price is the amount charged for the booked service, fixed at creation.
type Price struct {
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
}

// Rating is the customer's one-time review of a completed booking.
type Rating struct {
	Score   int       `json:"score"`
	Review  string    `json:"review,omitempty"`
	RatedAt time.Time `json:"rated_at"`
}

// TimelineEntry is one element of the append-only audit trail. Every status
// change appends exactly one entry; entries are never mutated or removed.
type TimelineEntry struct {
	Status BookingStatus `json:"status"`
	Note   string        `json:"note,omitempty"`
	At     time.Time     `json:"at"`
}

// Booking is the aggregate root for the booking domain. All lifecycle state,
// including the payment and dispute sub-records, the completion code and the
// timeline, lives on this single record and is guarded by its write path.
type Booking struct {
	id         uuid.UUID
	customerID uuid.UUID
	vendorID   uuid.UUID
	serviceID  uuid.UUID

	serviceTitle    string
	serviceCategory string
	customerPhone   string
	vendorPhone     string

	status        BookingStatus
	scheduledDate time.Time
	address       string
	customerNotes string
	vendorNotes   string

	price   Price
	payment Payment

	completionCode        string
	completionCodeExpires *time.Time

	rating   *Rating
	dispute  *Dispute
	timeline []TimelineEntry

	version   int64
	createdAt time.Time
	updatedAt time.Time
}

// generateTransactionID creates a capture reference in the format "TXN-XXXXXXXXXX".
func generateTransactionID() (string, error) {
	result := make([]byte, 10)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(transactionIDChars))))
		if err != nil {
			return "", fmt.Errorf("failed to generate transaction ID: %w", err)
		}
		result[i] = transactionIDChars[n.Int64()]
	}
	return "TXN-" + string(result), nil
}

// NewBooking creates a new Booking aggregate with status=pending and the
// payment captured to the platform (simulated upfront capture).
func NewBooking(
	customerID uuid.UUID,
	vendorID uuid.UUID,
	serviceID uuid.UUID,
	serviceTitle string,
	serviceCategory string,
	customerPhone string,
	vendorPhone string,
	scheduledDate time.Time,
	price Price,
	address string,
	customerNotes string,
) (*Booking, error) {
	if customerID == uuid.Nil {
		return nil, domain.NewValidationError("customer ID is required")
	}
	if vendorID == uuid.Nil {
		return nil, domain.NewValidationError("vendor ID is required")
	}
	if serviceID == uuid.Nil {
		return nil, domain.NewValidationError("service ID is required")
	}
	if serviceTitle == "" {
		return nil, domain.NewValidationError("service title is required")
	}
	if address == "" {
		return nil, domain.NewValidationError("address is required")
	}
	if price.AmountCents <= 0 {
		return nil, domain.NewValidationError("price must be positive")
	}
	if price.Currency == "" {
		return nil, domain.NewValidationError("currency is required")
	}

	now := time.Now().UTC()
	if scheduledDate.Before(now) {
		return nil, domain.NewValidationError("scheduled date cannot be in the past")
	}

	txnID, err := generateTransactionID()
	if err != nil {
		return nil, err
	}

	paidAt := now
	return &Booking{
		id:              uuid.New(),
		customerID:      customerID,
		vendorID:        vendorID,
		serviceID:       serviceID,
		serviceTitle:    serviceTitle,
		serviceCategory: serviceCategory,
		customerPhone:   customerPhone,
		vendorPhone:     vendorPhone,
		status:          StatusPending,
		scheduledDate:   scheduledDate,
		address:         address,
		customerNotes:   customerNotes,
		price:           price,
		payment: Payment{
			Status:        PaymentPaidToPlatform,
			TransactionID: txnID,
			PaidAt:        &paidAt,
		},
		timeline: []TimelineEntry{
			{Status: StatusPending, Note: "booking created", At: now},
		},
		version:   1,
		createdAt: now,
		updatedAt: now,
	}, nil
}

// ReconstructBooking rebuilds a Booking from persistence data (no validation).
func ReconstructBooking(
	id uuid.UUID,
	customerID uuid.UUID,
	vendorID uuid.UUID,
	serviceID uuid.UUID,
	serviceTitle string,
	serviceCategory string,
	customerPhone string,
	vendorPhone string,
	status BookingStatus,
	scheduledDate time.Time,
	address string,
	customerNotes string,
	vendorNotes string,
	price Price,
	payment Payment,
	completionCode string,
	completionCodeExpires *time.Time,
	rating *Rating,
	dispute *Dispute,
	timeline []TimelineEntry,
	version int64,
	createdAt time.Time,
	updatedAt time.Time,
) *Booking {
	return &Booking{
		id:                    id,
		customerID:            customerID,
		vendorID:              vendorID,
		serviceID:             serviceID,
		serviceTitle:          serviceTitle,
		serviceCategory:       serviceCategory,
		customerPhone:         customerPhone,
		vendorPhone:           vendorPhone,
		status:                status,
		scheduledDate:         scheduledDate,
		address:               address,
		customerNotes:         customerNotes,
		vendorNotes:           vendorNotes,
		price:                 price,
		payment:               payment,
		completionCode:        completionCode,
		completionCodeExpires: completionCodeExpires,
		rating:                rating,
		dispute:               dispute,
		timeline:              timeline,
		version:               version,
		createdAt:             createdAt,
		updatedAt:             updatedAt,
	}
}

// --- Getters ---

// ID returns the booking's unique identifier.
func (b *Booking) ID() uuid.UUID { return b.id }

// CustomerID returns the customer's user ID.
func (b *Booking) CustomerID() uuid.UUID { return b.customerID }

// VendorID returns the assigned vendor's user ID.
func (b *Booking) VendorID() uuid.UUID { return b.vendorID }

// ServiceID returns the booked service's catalog ID.
func (b *Booking) ServiceID() uuid.UUID { return b.serviceID }

// ServiceTitle returns the catalog title snapshot taken at creation.
func (b *Booking) ServiceTitle() string { return b.serviceTitle }

// ServiceCategory returns the catalog category snapshot taken at creation.
func (b *Booking) ServiceCategory() string { return b.serviceCategory }

// CustomerPhone returns the customer's contact number snapshot.
func (b *Booking) CustomerPhone() string { return b.customerPhone }

// VendorPhone returns the vendor's contact number snapshot.
func (b *Booking) VendorPhone() string { return b.vendorPhone }

// Status returns the current booking status.
func (b *Booking) Status() BookingStatus { return b.status }

// ScheduledDate returns the scheduled service time.
func (b *Booking) ScheduledDate() time.Time { return b.scheduledDate }

// Address returns the service address.
func (b *Booking) Address() string { return b.address }

// CustomerNotes returns the customer's free-text notes.
func (b *Booking) CustomerNotes() string { return b.customerNotes }

// VendorNotes returns the vendor's free-text notes.
func (b *Booking) VendorNotes() string { return b.vendorNotes }

// Price returns the price fixed at creation.
func (b *Booking) Price() Price { return b.price }

// Payment returns the payment bookkeeping sub-record.
func (b *Booking) Payment() Payment { return b.payment }

// CompletionCode returns the pending verification code, or "" if none.
func (b *Booking) CompletionCode() string { return b.completionCode }

// CompletionCodeExpires returns the code's expiry, or nil if no code is pending.
func (b *Booking) CompletionCodeExpires() *time.Time { return b.completionCodeExpires }

// Rating returns the customer review, or nil if not yet reviewed.
func (b *Booking) Rating() *Rating { return b.rating }

// Dispute returns the dispute sub-record, or nil if never disputed.
func (b *Booking) Dispute() *Dispute { return b.dispute }

// Timeline returns the append-only audit trail.
func (b *Booking) Timeline() []TimelineEntry { return b.timeline }

// Version returns the entity version for optimistic locking.
func (b *Booking) Version() int64 { return b.version }

// CreatedAt returns the creation timestamp.
func (b *Booking) CreatedAt() time.Time { return b.createdAt }

// UpdatedAt returns the last-updated timestamp.
func (b *Booking) UpdatedAt() time.Time { return b.updatedAt }

// IsParticipant returns true if the actor is the customer, the assigned
// vendor, or an administrator.
func (b *Booking) IsParticipant(actor Actor) bool {
	if actor.Role == RoleAdmin {
		return true
	}
	return actor.ID == b.customerID || actor.ID == b.vendorID
}

// CounterpartyIDs returns the participants to notify about a change made by
// the given actor: the other side of the booking, or both sides for an admin.
func (b *Booking) CounterpartyIDs(actor Actor) []uuid.UUID {
	switch {
	case actor.Role == RoleAdmin:
		return []uuid.UUID{b.customerID, b.vendorID}
	case actor.ID == b.customerID:
		return []uuid.UUID{b.vendorID}
	default:
		return []uuid.UUID{b.customerID}
	}
}

// --- Behavior ---

// EditChanges carries the optional fields of an edit command. Nil means
// "leave unchanged".
type EditChanges struct {
	ScheduledDate *time.Time
	Address       *string
	CustomerNotes *string
	VendorNotes   *string
}

// ApplyEdit updates schedule, address and notes. Only allowed while the
// booking is pending or confirmed.
func (b *Booking) ApplyEdit(changes EditChanges) error {
	if !b.status.IsEditable() {
		return domain.NewInvalidStateErrorf("cannot edit a booking that is %s", b.status)
	}
	now := time.Now().UTC()
	if changes.ScheduledDate != nil {
		if changes.ScheduledDate.Before(now) {
			return domain.NewValidationError("scheduled date cannot be in the past")
		}
		b.scheduledDate = *changes.ScheduledDate
	}
	if changes.Address != nil {
		if *changes.Address == "" {
			return domain.NewValidationError("address cannot be empty")
		}
		b.address = *changes.Address
	}
	if changes.CustomerNotes != nil {
		b.customerNotes = *changes.CustomerNotes
	}
	if changes.VendorNotes != nil {
		b.vendorNotes = *changes.VendorNotes
	}
	b.updatedAt = now
	return nil
}

// ApplyStatusChange is the single authoritative transition function. It
// validates the actor's role rights and the reachability of the target from
// the current status, runs the completion-verification protocol where it
// applies, derives the payment side effect, and appends the timeline entry.
// Any failure leaves the aggregate untouched.
func (b *Booking) ApplyStatusChange(actor Actor, target BookingStatus, code string) error {
	if !target.IsValid() {
		return domain.NewValidationError(fmt.Sprintf("invalid target status: %s", target))
	}
	if target == StatusReported {
		return domain.NewValidationError("disputes are raised through the dispute operation")
	}
	if b.status == StatusReported {
		return domain.NewInvalidStateErrorf("booking is under dispute and must be settled through dispute resolution")
	}
	if !RoleMayTarget(actor.Role, target) {
		return domain.NewForbiddenError(fmt.Sprintf("role %s may not set status %s", actor.Role, target))
	}
	if !b.status.CanTransitionTo(target) {
		return domain.NewInvalidStateErrorf("cannot move a booking that is %s to %s", b.status, target)
	}

	now := time.Now().UTC()
	note := fmt.Sprintf("status set to %s by %s", target, actor.Role)

	switch target {
	case StatusVerificationPending:
		generated, err := GenerateCompletionCode()
		if err != nil {
			return err
		}
		expires := now.Add(CompletionCodeTTL)
		b.completionCode = generated
		b.completionCodeExpires = &expires
		note = "completion verification requested"

	case StatusCompleted:
		if actor.Role == RoleAdmin && code == "" {
			note = "completed by administrator; bypassed verification"
		} else {
			if code == "" {
				return domain.NewValidationError("verification code is required to complete this booking")
			}
			if b.completionCode == "" || b.completionCodeExpires == nil || now.After(*b.completionCodeExpires) {
				return domain.NewValidationError("verification code has expired")
			}
			if code != b.completionCode {
				return domain.NewValidationError("invalid verification code")
			}
			note = "completed with verification code"
		}
	}

	pay := b.payment
	if err := pay.deriveForBookingStatus(target); err != nil {
		return domain.NewInvalidStateErrorf("%v", err)
	}
	b.payment = pay

	b.setStatus(target, note, now)
	return nil
}

// RefreshCompletionCode returns the pending verification code for the
// customer, regenerating it (and re-extending the validity window) if the
// stored one is missing or expired. The second return value reports whether
// a new code was issued.
func (b *Booking) RefreshCompletionCode() (string, bool, error) {
	if b.status != StatusVerificationPending {
		return "", false, domain.NewInvalidStateErrorf("no completion verification is pending for a %s booking", b.status)
	}
	now := time.Now().UTC()
	if b.completionCode != "" && b.completionCodeExpires != nil && now.Before(*b.completionCodeExpires) {
		return b.completionCode, false, nil
	}
	generated, err := GenerateCompletionCode()
	if err != nil {
		return "", false, err
	}
	expires := now.Add(CompletionCodeTTL)
	b.completionCode = generated
	b.completionCodeExpires = &expires
	b.updatedAt = now
	return generated, true, nil
}

// RaiseDispute flags the booking as disputed. Only the customer or vendor may
// raise a dispute, only from in-progress, verification-pending or completed,
// and only once per booking.
func (b *Booking) RaiseDispute(actor Actor, reason, description string) error {
	if actor.Role != RoleCustomer && actor.Role != RoleVendor {
		return domain.NewForbiddenError("only the customer or vendor may raise a dispute")
	}
	if reason == "" {
		return domain.NewValidationError("dispute reason is required")
	}
	if b.dispute != nil {
		if b.dispute.Status.IsUnresolved() {
			return domain.NewInvalidStateErrorf("a dispute is already open on this booking")
		}
		return domain.NewInvalidStateErrorf("this booking's dispute has already been resolved")
	}
	if !b.status.IsDisputable() {
		return domain.NewInvalidStateErrorf("cannot raise a dispute on a %s booking", b.status)
	}

	now := time.Now().UTC()
	b.dispute = &Dispute{
		RaisedBy:    actor.ID,
		RaisedRole:  actor.Role,
		Reason:      reason,
		Description: description,
		Status:      DisputeOpen,
		RaisedAt:    now,
	}
	b.setStatus(StatusReported, fmt.Sprintf("dispute raised by %s: %s", actor.Role, reason), now)
	return nil
}

// MarkDisputeUnderReview records that an administrator has started looking at
// the dispute. Optional step between open and resolved.
func (b *Booking) MarkDisputeUnderReview() error {
	if b.dispute == nil {
		return domain.NewNotFoundError("dispute", b.id.String())
	}
	if b.dispute.Status != DisputeOpen {
		return domain.NewInvalidStateErrorf("dispute is %s, not open", b.dispute.Status)
	}
	b.dispute.Status = DisputeUnderReview
	b.updatedAt = time.Now().UTC()
	return nil
}

// ResolveDispute settles the dispute into a terminal booking status and
// derives the matching payment status. A dispute resolves exactly once.
func (b *Booking) ResolveDispute(resolvedBy uuid.UUID, resolution string, finalStatus BookingStatus) error {
	if resolution == "" {
		return domain.NewValidationError("resolution text is required")
	}
	if finalStatus != StatusCompleted && finalStatus != StatusCancelled {
		return domain.NewValidationError(fmt.Sprintf("final status must be %s or %s", StatusCompleted, StatusCancelled))
	}
	if b.dispute == nil {
		return domain.NewNotFoundError("dispute", b.id.String())
	}
	if !b.dispute.Status.IsUnresolved() {
		return domain.NewInvalidStateErrorf("dispute has already been resolved")
	}
	if b.status != StatusReported {
		return domain.NewInvalidStateErrorf("booking is %s, not reported", b.status)
	}

	pay := b.payment
	if err := pay.deriveForBookingStatus(finalStatus); err != nil {
		return domain.NewInvalidStateErrorf("%v", err)
	}
	b.payment = pay

	now := time.Now().UTC()
	b.dispute.Status = DisputeResolved
	b.dispute.Resolution = resolution
	b.dispute.ResolvedBy = &resolvedBy
	b.dispute.ResolvedAt = &now
	b.setStatus(finalStatus, "dispute resolved: "+resolution, now)
	return nil
}

// SubmitReview records the customer's one-time rating of a completed booking.
func (b *Booking) SubmitReview(actor Actor, score int, review string) error {
	if actor.Role != RoleCustomer || actor.ID != b.customerID {
		return domain.NewForbiddenError("only the booking's customer may submit a review")
	}
	if b.status != StatusCompleted {
		return domain.NewInvalidStateErrorf("cannot review a booking that is %s", b.status)
	}
	if b.rating != nil {
		return domain.NewInvalidStateErrorf("booking has already been reviewed")
	}
	if score < 1 || score > 5 {
		return domain.NewValidationError("score must be between 1 and 5")
	}
	now := time.Now().UTC()
	b.rating = &Rating{Score: score, Review: review, RatedAt: now}
	b.updatedAt = now
	return nil
}

// ApplySettlement records an out-of-band payment settlement: payout to the
// vendor or refund to the customer. Driven by external settlement events,
// never by client requests.
func (b *Booking) ApplySettlement(target PaymentStatus, payoutID string) error {
	if target != PaymentPaidToVendor && target != PaymentRefunded {
		return domain.NewValidationError(fmt.Sprintf("invalid settlement status: %s", target))
	}
	pay := b.payment
	if err := pay.transition(target); err != nil {
		return domain.NewInvalidStateErrorf("%v", err)
	}
	now := time.Now().UTC()
	pay.SettledAt = &now
	if payoutID != "" {
		pay.PayoutID = payoutID
	}
	b.payment = pay
	b.updatedAt = now
	return nil
}

// IncrementVersion bumps the version for optimistic locking.
func (b *Booking) IncrementVersion() {
	b.version++
	b.updatedAt = time.Now().UTC()
}

// setStatus applies the status, appends the timeline entry, and clears the
// completion code when leaving verification-pending.
func (b *Booking) setStatus(target BookingStatus, note string, now time.Time) {
	if b.status == StatusVerificationPending && target != StatusVerificationPending {
		b.completionCode = ""
		b.completionCodeExpires = nil
	}
	b.status = target
	b.timeline = append(b.timeline, TimelineEntry{Status: target, Note: note, At: now})
	b.updatedAt = now
}
