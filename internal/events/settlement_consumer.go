package events

import (
	"context"
	"errors"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/localserve/service-booking/internal/domain"
	bookingDomain "github.com/localserve/service-booking/internal/domain/booking"
	"github.com/localserve/service-booking/internal/platform/kafka"
)

// PaymentSettler applies a settlement outcome to a booking.
type PaymentSettler interface {
	SettlePayment(ctx context.Context, bookingID uuid.UUID, target bookingDomain.PaymentStatus, referenceID string) error
}

// SettlementConsumer subscribes to payment.events and applies payout and
// refund settlements reported by the payment system.
type SettlementConsumer struct {
	consumer *kafka.Consumer
	settler  PaymentSettler
	logger   *zap.Logger
}

// NewSettlementConsumer creates a SettlementConsumer for the given brokers.
func NewSettlementConsumer(brokers []string, groupID string, settler PaymentSettler, logger *zap.Logger) *SettlementConsumer {
	return &SettlementConsumer{
		consumer: kafka.NewConsumer(brokers, groupID, TopicPaymentEvents, logger),
		settler:  settler,
		logger:   logger,
	}
}

// Run consumes settlement events until the context is cancelled.
func (c *SettlementConsumer) Run(ctx context.Context) error {
	return c.consumer.Consume(ctx, c.handle)
}

// Close closes the underlying consumer.
func (c *SettlementConsumer) Close() error {
	return c.consumer.Close()
}

func (c *SettlementConsumer) handle(ctx context.Context, msg kafkago.Message) error {
	event, err := kafka.ParseCloudEvent(msg.Value)
	if err != nil {
		// A malformed envelope never becomes parseable; commit and move on.
		c.logger.Warn("skipping malformed settlement event",
			zap.Int64("offset", msg.Offset),
			zap.Error(err),
		)
		return nil
	}

	switch event.Type {
	case PaymentPayoutSettled:
		var payload PayoutSettledEvent
		if err := event.ParseData(&payload); err != nil {
			c.logger.Warn("skipping malformed payout payload", zap.String("event_id", event.ID), zap.Error(err))
			return nil
		}
		return c.settle(ctx, payload.BookingID, bookingDomain.PaymentPaidToVendor, payload.PayoutID)

	case PaymentRefundSettled:
		var payload RefundSettledEvent
		if err := event.ParseData(&payload); err != nil {
			c.logger.Warn("skipping malformed refund payload", zap.String("event_id", event.ID), zap.Error(err))
			return nil
		}
		return c.settle(ctx, payload.BookingID, bookingDomain.PaymentRefunded, payload.RefundID)

	default:
		// Other payment events are not ours to handle.
		return nil
	}
}

func (c *SettlementConsumer) settle(ctx context.Context, bookingID uuid.UUID, target bookingDomain.PaymentStatus, referenceID string) error {
	err := c.settler.SettlePayment(ctx, bookingID, target, referenceID)
	if err == nil {
		c.logger.Info("applied payment settlement",
			zap.String("booking_id", bookingID.String()),
			zap.String("payment_status", string(target)),
		)
		return nil
	}

	// Unknown bookings and replayed settlements are terminal for this
	// message; only transient failures are left uncommitted for retry.
	var notFound *domain.NotFoundError
	var invalidState *domain.InvalidStateError
	if errors.As(err, &notFound) || errors.As(err, &invalidState) {
		c.logger.Warn("dropping unapplicable settlement",
			zap.String("booking_id", bookingID.String()),
			zap.String("payment_status", string(target)),
			zap.Error(err),
		)
		return nil
	}
	return err
}
