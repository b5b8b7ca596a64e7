package booking

import "fmt"

// BookingStatus represents the current state of a booking in its lifecycle.
type BookingStatus string

const (
	StatusPending             BookingStatus = "pending"
	StatusConfirmed           BookingStatus = "confirmed"
	StatusInProgress          BookingStatus = "in-progress"
	StatusVerificationPending BookingStatus = "verification-pending"
	StatusCompleted           BookingStatus = "completed"
	StatusCancelled           BookingStatus = "cancelled"
	StatusRejected            BookingStatus = "rejected"
	StatusReported            BookingStatus = "reported"
)

// validTransitions defines the state machine for booking status transitions.
// Transitions into and out of "reported" run exclusively through the dispute
// workflow; reported appears as a source here for dispute resolution only.
var validTransitions = map[BookingStatus][]BookingStatus{
	StatusPending:             {StatusConfirmed, StatusCancelled, StatusRejected},
	StatusConfirmed:           {StatusInProgress, StatusCancelled},
	StatusInProgress:          {StatusVerificationPending, StatusCancelled, StatusReported},
	StatusVerificationPending: {StatusCompleted, StatusCancelled, StatusReported},
	StatusCompleted:           {StatusReported},
	StatusReported:            {StatusCompleted, StatusCancelled},
	StatusCancelled:           {},
	StatusRejected:            {},
}

// roleTargets defines which target statuses each role may request through a
// direct status change. Admin additionally bypasses the verification code
// when forcing completion; that is handled by the aggregate, not here.
var roleTargets = map[Role][]BookingStatus{
	RoleCustomer: {StatusCancelled},
	RoleVendor: {
		StatusConfirmed,
		StatusRejected,
		StatusInProgress,
		StatusVerificationPending,
		StatusCancelled,
		StatusCompleted,
	},
	RoleAdmin: {
		StatusPending,
		StatusConfirmed,
		StatusRejected,
		StatusInProgress,
		StatusVerificationPending,
		StatusCancelled,
		StatusCompleted,
	},
}

// IsValid returns true if the status is a recognized booking status.
func (s BookingStatus) IsValid() bool {
	_, exists := validTransitions[s]
	return exists
}

// CanTransitionTo returns true if a transition from this status to the target is allowed.
func (s BookingStatus) CanTransitionTo(target BookingStatus) bool {
	allowed, exists := validTransitions[s]
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

// IsTerminal returns true if no further transitions are possible from this status.
func (s BookingStatus) IsTerminal() bool {
	return s == StatusCancelled || s == StatusRejected
}

// IsEditable returns true if schedule, address and notes may still be changed.
func (s BookingStatus) IsEditable() bool {
	return s == StatusPending || s == StatusConfirmed
}

// IsDisputable returns true if a dispute may be raised from this status.
func (s BookingStatus) IsDisputable() bool {
	switch s {
	case StatusInProgress, StatusVerificationPending, StatusCompleted:
		return true
	}
	return false
}

// RevealsContact returns true if counter-party contact details may be shown
// to participants while the booking is in this status.
func (s BookingStatus) RevealsContact() bool {
	switch s {
	case StatusConfirmed, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// RoleMayTarget returns true if the given role is ever permitted to request
// a direct status change to target, independent of the current status.
func RoleMayTarget(role Role, target BookingStatus) bool {
	for _, t := range roleTargets[role] {
		if t == target {
			return true
		}
	}
	return false
}

// String returns the string representation of the status.
func (s BookingStatus) String() string {
	return string(s)
}

// ParseBookingStatus converts a string to a BookingStatus, returning an error if invalid.
func ParseBookingStatus(s string) (BookingStatus, error) {
	status := BookingStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid booking status: %s", s)
	}
	return status, nil
}
