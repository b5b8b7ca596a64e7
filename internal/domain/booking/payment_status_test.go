package booking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentStatusTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    PaymentStatus
		to      PaymentStatus
		allowed bool
	}{
		{"pending to captured", PaymentPending, PaymentPaidToPlatform, true},
		{"captured to payout pending", PaymentPaidToPlatform, PaymentPayoutPending, true},
		{"captured to refund pending", PaymentPaidToPlatform, PaymentRefundPending, true},
		{"payout pending to paid out", PaymentPayoutPending, PaymentPaidToVendor, true},
		{"refund pending to refunded", PaymentRefundPending, PaymentRefunded, true},
		{"queued payout may be redirected to refund", PaymentPayoutPending, PaymentRefundPending, true},
		{"refund branch cannot cross to payout", PaymentRefundPending, PaymentPayoutPending, false},
		{"paid out is terminal", PaymentPaidToVendor, PaymentRefundPending, false},
		{"refunded is terminal", PaymentRefunded, PaymentPayoutPending, false},
		{"no backward move", PaymentPayoutPending, PaymentPaidToPlatform, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestPaymentDeriveForBookingStatus(t *testing.T) {
	t.Run("completion queues payout", func(t *testing.T) {
		pay := Payment{Status: PaymentPaidToPlatform}
		require.NoError(t, pay.deriveForBookingStatus(StatusCompleted))
		assert.Equal(t, PaymentPayoutPending, pay.Status)
	})

	t.Run("cancellation queues refund", func(t *testing.T) {
		pay := Payment{Status: PaymentPaidToPlatform}
		require.NoError(t, pay.deriveForBookingStatus(StatusCancelled))
		assert.Equal(t, PaymentRefundPending, pay.Status)
	})

	t.Run("rejection queues refund", func(t *testing.T) {
		pay := Payment{Status: PaymentPaidToPlatform}
		require.NoError(t, pay.deriveForBookingStatus(StatusRejected))
		assert.Equal(t, PaymentRefundPending, pay.Status)
	})

	t.Run("non-terminal statuses leave payment untouched", func(t *testing.T) {
		pay := Payment{Status: PaymentPaidToPlatform}
		require.NoError(t, pay.deriveForBookingStatus(StatusConfirmed))
		require.NoError(t, pay.deriveForBookingStatus(StatusInProgress))
		require.NoError(t, pay.deriveForBookingStatus(StatusVerificationPending))
		assert.Equal(t, PaymentPaidToPlatform, pay.Status)
	})

	t.Run("cancellation redirects a queued payout to refund", func(t *testing.T) {
		pay := Payment{Status: PaymentPayoutPending}
		require.NoError(t, pay.deriveForBookingStatus(StatusCancelled))
		assert.Equal(t, PaymentRefundPending, pay.Status)
	})

	t.Run("no-op when the payout is already queued", func(t *testing.T) {
		pay := Payment{Status: PaymentPayoutPending}
		require.NoError(t, pay.deriveForBookingStatus(StatusCompleted))
		assert.Equal(t, PaymentPayoutPending, pay.Status)
	})

	t.Run("no-op when the payout is already settled", func(t *testing.T) {
		pay := Payment{Status: PaymentPaidToVendor}
		require.NoError(t, pay.deriveForBookingStatus(StatusCompleted))
		assert.Equal(t, PaymentPaidToVendor, pay.Status)
	})

	t.Run("no-op when the refund is already settled", func(t *testing.T) {
		pay := Payment{Status: PaymentRefunded}
		require.NoError(t, pay.deriveForBookingStatus(StatusCancelled))
		assert.Equal(t, PaymentRefunded, pay.Status)
	})

	t.Run("settled payout cannot be clawed back", func(t *testing.T) {
		pay := Payment{Status: PaymentPaidToVendor}
		assert.Error(t, pay.deriveForBookingStatus(StatusCancelled))
	})
}

func TestParsePaymentStatus(t *testing.T) {
	status, err := ParsePaymentStatus("payout_pending")
	require.NoError(t, err)
	assert.Equal(t, PaymentPayoutPending, status)

	_, err = ParsePaymentStatus("escrowed")
	assert.Error(t, err)
}
