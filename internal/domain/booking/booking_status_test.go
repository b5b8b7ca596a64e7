package booking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBookingStatusTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    BookingStatus
		to      BookingStatus
		allowed bool
	}{
		{"pending to confirmed", StatusPending, StatusConfirmed, true},
		{"pending to cancelled", StatusPending, StatusCancelled, true},
		{"pending to rejected", StatusPending, StatusRejected, true},
		{"pending to in-progress skips confirmation", StatusPending, StatusInProgress, false},
		{"pending to completed skips lifecycle", StatusPending, StatusCompleted, false},
		{"confirmed to in-progress", StatusConfirmed, StatusInProgress, true},
		{"confirmed to cancelled", StatusConfirmed, StatusCancelled, true},
		{"confirmed to rejected after acceptance", StatusConfirmed, StatusRejected, false},
		{"in-progress to verification-pending", StatusInProgress, StatusVerificationPending, true},
		{"in-progress to completed skips verification", StatusInProgress, StatusCompleted, false},
		{"in-progress to reported", StatusInProgress, StatusReported, true},
		{"verification-pending to completed", StatusVerificationPending, StatusCompleted, true},
		{"verification-pending to cancelled", StatusVerificationPending, StatusCancelled, true},
		{"verification-pending to reported", StatusVerificationPending, StatusReported, true},
		{"completed to reported", StatusCompleted, StatusReported, true},
		{"completed back to in-progress", StatusCompleted, StatusInProgress, false},
		{"reported to completed", StatusReported, StatusCompleted, true},
		{"reported to cancelled", StatusReported, StatusCancelled, true},
		{"cancelled is terminal", StatusCancelled, StatusPending, false},
		{"rejected is terminal", StatusRejected, StatusConfirmed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestBookingStatusPredicates(t *testing.T) {
	assert.True(t, StatusCancelled.IsTerminal())
	assert.True(t, StatusRejected.IsTerminal())
	assert.False(t, StatusCompleted.IsTerminal())
	assert.False(t, StatusReported.IsTerminal())

	assert.True(t, StatusPending.IsEditable())
	assert.True(t, StatusConfirmed.IsEditable())
	assert.False(t, StatusInProgress.IsEditable())
	assert.False(t, StatusCancelled.IsEditable())

	assert.True(t, StatusInProgress.IsDisputable())
	assert.True(t, StatusVerificationPending.IsDisputable())
	assert.True(t, StatusCompleted.IsDisputable())
	assert.False(t, StatusPending.IsDisputable())
	assert.False(t, StatusReported.IsDisputable())

	assert.True(t, StatusConfirmed.RevealsContact())
	assert.True(t, StatusInProgress.RevealsContact())
	assert.True(t, StatusCompleted.RevealsContact())
	assert.False(t, StatusPending.RevealsContact())
	assert.False(t, StatusCancelled.RevealsContact())
}

func TestRoleMayTarget(t *testing.T) {
	// Customers may only cancel through the direct status path.
	assert.True(t, RoleMayTarget(RoleCustomer, StatusCancelled))
	assert.False(t, RoleMayTarget(RoleCustomer, StatusConfirmed))
	assert.False(t, RoleMayTarget(RoleCustomer, StatusCompleted))

	assert.True(t, RoleMayTarget(RoleVendor, StatusConfirmed))
	assert.True(t, RoleMayTarget(RoleVendor, StatusRejected))
	assert.True(t, RoleMayTarget(RoleVendor, StatusInProgress))
	assert.True(t, RoleMayTarget(RoleVendor, StatusVerificationPending))
	assert.True(t, RoleMayTarget(RoleVendor, StatusCompleted))

	assert.True(t, RoleMayTarget(RoleAdmin, StatusCancelled))
	assert.True(t, RoleMayTarget(RoleAdmin, StatusCompleted))

	// Nobody targets reported directly; it belongs to the dispute workflow.
	assert.False(t, RoleMayTarget(RoleCustomer, StatusReported))
	assert.False(t, RoleMayTarget(RoleVendor, StatusReported))
	assert.False(t, RoleMayTarget(RoleAdmin, StatusReported))
}

func TestParseBookingStatus(t *testing.T) {
	status, err := ParseBookingStatus("verification-pending")
	require.NoError(t, err)
	assert.Equal(t, StatusVerificationPending, status)

	_, err = ParseBookingStatus("shipped")
	assert.Error(t, err)
}
