//go:build integration

package main_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkamodule "github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/localserve/service-booking/internal/application"
	"github.com/localserve/service-booking/internal/catalog"
	bookingDomain "github.com/localserve/service-booking/internal/domain/booking"
	bookingEvents "github.com/localserve/service-booking/internal/events"
	"github.com/localserve/service-booking/internal/notify"
	"github.com/localserve/service-booking/internal/platform/kafka"
	"github.com/localserve/service-booking/internal/repository"
)

// testInfra holds shared test infrastructure.
type testInfra struct {
	DB           *gorm.DB
	KafkaBrokers []string
	Cleanup      func()
}

// bookingStack holds wired-up booking service components.
type bookingStack struct {
	Service         *application.BookingService
	Consumer        *bookingEvents.SettlementConsumer
	CleanupProducer func()
}

// staticCatalog resolves every service to one fixed entry.
type staticCatalog struct{}

func (staticCatalog) GetService(context.Context, uuid.UUID) (*catalog.Entry, error) {
	return &catalog.Entry{Title: "Window cleaning", Category: "cleaning", PriceCents: 9900, Currency: "EUR"}, nil
}

// staticDirectory resolves every user to one fixed profile.
type staticDirectory struct{}

func (staticDirectory) GetProfile(context.Context, uuid.UUID) (*catalog.Profile, error) {
	return &catalog.Profile{Phone: "+31600000000"}, nil
}

// setupContainers starts PostgreSQL and Kafka testcontainers and returns a connected GORM DB.
func setupContainers(t *testing.T) *testInfra {
	t.Helper()
	ctx := context.Background()

	pgReq := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "test_booking",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: pgReq,
		Started:          true,
	})
	require.NoError(t, err, "failed to start PostgreSQL container")

	pgHost, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	pgPort, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("host=%s port=%s user=test password=test dbname=test_booking sslmode=disable", pgHost, pgPort.Port())

	// Poll until GORM can actually connect and ping.
	var db *gorm.DB
	require.Eventually(t, func() bool {
		var err error
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
		if err != nil {
			return false
		}
		sqlDB, err := db.DB()
		if err != nil {
			return false
		}
		return sqlDB.Ping() == nil
	}, 30*time.Second, 1*time.Second, "PostgreSQL not ready for connections")

	require.NoError(t, db.AutoMigrate(&repository.BookingModel{}))

	kafkaContainer, err := kafkamodule.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err, "failed to start Kafka container")

	kafkaBrokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err, "failed to get Kafka brokers")

	createTopics(t, kafkaBrokers, bookingEvents.TopicBookingEvents, bookingEvents.TopicPaymentEvents)

	cleanup := func() {
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate Kafka container: %v", err)
		}
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate PostgreSQL container: %v", err)
		}
	}

	return &testInfra{
		DB:           db,
		KafkaBrokers: kafkaBrokers,
		Cleanup:      cleanup,
	}
}

// setupBookingStack wires up the full booking service stack.
func setupBookingStack(t *testing.T, db *gorm.DB, brokers []string) *bookingStack {
	t.Helper()
	logger, _ := zap.NewDevelopment()

	bookingRepo := repository.NewGormBookingRepository(db)
	producer := kafka.NewProducer(brokers, logger)
	hub := notify.NewHub(logger)
	bookingSvc := application.NewBookingService(
		bookingRepo, staticCatalog{}, staticDirectory{}, hub, nil, producer, logger, "")

	groupID := fmt.Sprintf("test-booking-%s", uuid.New().String()[:8])
	consumer := bookingEvents.NewSettlementConsumer(brokers, groupID, bookingSvc, logger)

	return &bookingStack{
		Service:         bookingSvc,
		Consumer:        consumer,
		CleanupProducer: func() { _ = producer.Close() },
	}
}

// seedCompletedBooking inserts a completed booking whose payment awaits payout.
func seedCompletedBooking(t *testing.T, db *gorm.DB, bookingID, customerID, vendorID uuid.UUID) {
	t.Helper()
	now := time.Now().UTC()
	paidAt := now.Add(-2 * time.Hour)

	price, _ := json.Marshal(bookingDomain.Price{AmountCents: 9900, Currency: "EUR"})
	payment, _ := json.Marshal(bookingDomain.Payment{
		Status:        bookingDomain.PaymentPayoutPending,
		TransactionID: "TXN-INTEG00001",
		PaidAt:        &paidAt,
	})
	timeline, _ := json.Marshal([]bookingDomain.TimelineEntry{
		{Status: bookingDomain.StatusPending, Note: "booking created", At: paidAt},
		{Status: bookingDomain.StatusCompleted, Note: "completed with verification code", At: now},
	})

	model := repository.BookingModel{
		ID:            bookingID,
		CustomerID:    customerID,
		VendorID:      vendorID,
		ServiceID:     uuid.New(),
		ServiceTitle:  "Window cleaning",
		Status:        string(bookingDomain.StatusCompleted),
		ScheduledDate: now.Add(-time.Hour),
		Address:       "Damrak 1, Amsterdam",
		Price:         price,
		Payment:       payment,
		Timeline:      timeline,
		Version:       5,
		CreatedAt:     paidAt,
		UpdatedAt:     now,
	}
	require.NoError(t, db.Create(&model).Error, "failed to seed booking")
}

// createRequest builds a valid booking creation request for the given vendor.
func createRequest(vendorID uuid.UUID) application.CreateBookingRequest {
	return application.CreateBookingRequest{
		VendorID:      vendorID,
		ServiceID:     uuid.New(),
		ScheduledDate: time.Now().UTC().Add(24 * time.Hour),
		Address:       "Damrak 1, Amsterdam",
		Notes:         "integration test",
	}
}

// publishTestEvent publishes a CloudEvent to Kafka.
func publishTestEvent(t *testing.T, brokers []string, topic, source, eventType string, data interface{}) {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	producer := kafka.NewProducer(brokers, logger)
	defer func() { _ = producer.Close() }()

	ce, err := kafka.NewCloudEvent(source, eventType, data)
	require.NoError(t, err, "failed to create cloud event")

	err = producer.PublishEvent(context.Background(), topic, ce)
	require.NoError(t, err, "failed to publish event")
}

// waitForPaymentStatus polls the bookings table until the payment status matches.
func waitForPaymentStatus(t *testing.T, db *gorm.DB, bookingID uuid.UUID, expected bookingDomain.PaymentStatus, timeout time.Duration) bookingDomain.Payment {
	t.Helper()
	var result bookingDomain.Payment
	require.Eventually(t, func() bool {
		var model repository.BookingModel
		if err := db.Where("id = ?", bookingID).First(&model).Error; err != nil {
			return false
		}
		var payment bookingDomain.Payment
		if err := json.Unmarshal(model.Payment, &payment); err != nil {
			return false
		}
		if payment.Status == expected {
			result = payment
			return true
		}
		return false
	}, timeout, 200*time.Millisecond, "payment did not reach %s", expected)
	return result
}

// consumeOneEvent reads from a Kafka topic until it finds an event of the expected type.
func consumeOneEvent(t *testing.T, brokers []string, topic, expectedType string, timeout time.Duration) kafka.CloudEvent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	groupID := fmt.Sprintf("test-assert-%s", uuid.New().String()[:8])
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     brokers,
		GroupID:     groupID,
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafkago.FirstOffset,
	})
	defer func() { _ = reader.Close() }()

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				t.Fatalf("timed out waiting for event type %q on topic %q", expectedType, topic)
			}
			continue
		}
		ce, err := kafka.ParseCloudEvent(msg.Value)
		if err != nil {
			continue
		}
		if ce.Type == expectedType {
			return ce
		}
	}
}

// createTopics pre-creates Kafka topics so producers don't fail with "Unknown Topic".
func createTopics(t *testing.T, brokers []string, topics ...string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", brokers[0])
	require.NoError(t, err, "failed to dial Kafka for topic creation")
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err, "failed to get Kafka controller")

	controllerConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, fmt.Sprintf("%d", controller.Port)))
	require.NoError(t, err, "failed to connect to Kafka controller")
	defer controllerConn.Close()

	topicConfigs := make([]kafkago.TopicConfig, len(topics))
	for i, topic := range topics {
		topicConfigs[i] = kafkago.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		}
	}
	err = controllerConn.CreateTopics(topicConfigs...)
	require.NoError(t, err, "failed to create Kafka topics")

	// Give Kafka a moment to propagate topic metadata.
	time.Sleep(1 * time.Second)
}
