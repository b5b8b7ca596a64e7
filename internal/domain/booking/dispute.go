package booking

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DisputeStatus represents the state of a dispute sub-record.
type DisputeStatus string

const (
	DisputeOpen        DisputeStatus = "open"
	DisputeUnderReview DisputeStatus = "under_review"
	DisputeResolved    DisputeStatus = "resolved"
)

// IsValid returns true if the status is a recognized dispute status.
func (s DisputeStatus) IsValid() bool {
	switch s {
	case DisputeOpen, DisputeUnderReview, DisputeResolved:
		return true
	}
	return false
}

// IsUnresolved returns true while the dispute still awaits an administrator.
func (s DisputeStatus) IsUnresolved() bool {
	return s == DisputeOpen || s == DisputeUnderReview
}

// String returns the string representation of the status.
func (s DisputeStatus) String() string {
	return string(s)
}

// ParseDisputeStatus converts a string to a DisputeStatus, returning an error if invalid.
func ParseDisputeStatus(s string) (DisputeStatus, error) {
	status := DisputeStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid dispute status: %s", s)
	}
	return status, nil
}

// Dispute is the embedded dispute sub-record of a booking. At most one
// dispute ever exists per booking.
type Dispute struct {
	RaisedBy    uuid.UUID     `json:"raised_by"`
	RaisedRole  Role          `json:"raised_role"`
	Reason      string        `json:"reason"`
	Description string        `json:"description"`
	Status      DisputeStatus `json:"status"`
	Resolution  string        `json:"resolution,omitempty"`
	ResolvedBy  *uuid.UUID    `json:"resolved_by,omitempty"`
	RaisedAt    time.Time     `json:"raised_at"`
	ResolvedAt  *time.Time    `json:"resolved_at,omitempty"`
}
