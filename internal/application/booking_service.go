package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/localserve/service-booking/internal/catalog"
	"github.com/localserve/service-booking/internal/domain"
	bookingDomain "github.com/localserve/service-booking/internal/domain/booking"
	"github.com/localserve/service-booking/internal/events"
	"github.com/localserve/service-booking/internal/mailer"
	"github.com/localserve/service-booking/internal/notify"
	"github.com/localserve/service-booking/internal/platform/kafka"
)

// Websocket event names pushed into participant rooms.
const (
	NotifyBookingCreated  = "booking.created"
	NotifyBookingUpdated  = "booking.updated"
	NotifyStatusChanged   = "booking.status_changed"
	NotifyDisputeRaised   = "booking.dispute_raised"
	NotifyDisputeResolved = "booking.dispute_resolved"
	NotifyReviewSubmitted = "booking.review_submitted"
	NotifyPaymentSettled  = "booking.payment_settled"
)

// CreateBookingRequest holds the data needed to create a new booking.
// CustomerID is only honored for administrators booking on a customer's
// behalf; for customers the authenticated identity wins.
type CreateBookingRequest struct {
	CustomerID    *uuid.UUID `json:"customer_id"`
	VendorID      uuid.UUID  `json:"vendor_id" binding:"required"`
	ServiceID     uuid.UUID  `json:"service_id" binding:"required"`
	ScheduledDate time.Time  `json:"scheduled_date" binding:"required"`
	Address       string     `json:"address" binding:"required"`
	Notes         string     `json:"notes"`
}

// EditBookingRequest carries the optional edit fields; nil means unchanged.
type EditBookingRequest struct {
	ScheduledDate *time.Time `json:"scheduled_date"`
	Address       *string    `json:"address"`
	CustomerNotes *string    `json:"customer_notes"`
	VendorNotes   *string    `json:"vendor_notes"`
}

// PaymentDTO is the response representation of the payment sub-record.
type PaymentDTO struct {
	Status        string     `json:"status"`
	TransactionID string     `json:"transaction_id,omitempty"`
	PayoutID      string     `json:"payout_id,omitempty"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
	SettledAt     *time.Time `json:"settled_at,omitempty"`
}

// DisputeDTO is the response representation of the dispute sub-record.
type DisputeDTO struct {
	RaisedBy    uuid.UUID  `json:"raised_by"`
	RaisedRole  string     `json:"raised_role"`
	Reason      string     `json:"reason"`
	Description string     `json:"description,omitempty"`
	Status      string     `json:"status"`
	Resolution  string     `json:"resolution,omitempty"`
	ResolvedBy  *uuid.UUID `json:"resolved_by,omitempty"`
	RaisedAt    time.Time  `json:"raised_at"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
}

// BookingDTO is the response representation of a booking. The completion
// code is never part of it; the customer pulls the code through FetchOtp.
type BookingDTO struct {
	ID              uuid.UUID                    `json:"id"`
	CustomerID      uuid.UUID                    `json:"customer_id"`
	VendorID        uuid.UUID                    `json:"vendor_id"`
	ServiceID       uuid.UUID                    `json:"service_id"`
	ServiceTitle    string                       `json:"service_title"`
	ServiceCategory string                       `json:"service_category,omitempty"`
	CustomerPhone   string                       `json:"customer_phone,omitempty"`
	VendorPhone     string                       `json:"vendor_phone,omitempty"`
	Status          string                       `json:"status"`
	ScheduledDate   time.Time                    `json:"scheduled_date"`
	Address         string                       `json:"address"`
	CustomerNotes   string                       `json:"customer_notes,omitempty"`
	VendorNotes     string                       `json:"vendor_notes,omitempty"`
	Price           bookingDomain.Price          `json:"price"`
	Payment         PaymentDTO                   `json:"payment"`
	Rating          *bookingDomain.Rating        `json:"rating,omitempty"`
	Dispute         *DisputeDTO                  `json:"dispute,omitempty"`
	Timeline        []bookingDomain.TimelineEntry `json:"timeline"`
	Version         int64                        `json:"version"`
	CreatedAt       time.Time                    `json:"created_at"`
	UpdatedAt       time.Time                    `json:"updated_at"`
}

// BookingService is the booking lifecycle engine. It owns every state
// transition, the completion-verification protocol, the dispute workflow and
// the payment-status bookkeeping. It is request-scoped and stateless; the
// only shared mutable resource is the booking record behind the repository,
// guarded by its optimistic write path.
type BookingService struct {
	repo      bookingDomain.BookingRepository
	catalog   catalog.ServiceCatalog
	directory catalog.Directory
	notifier  notify.Notifier
	mail      mailer.Mailer
	producer  *kafka.Producer
	logger    *zap.Logger
	opsEmail  string
}

// NewBookingService creates a new BookingService.
func NewBookingService(
	repo bookingDomain.BookingRepository,
	svcCatalog catalog.ServiceCatalog,
	directory catalog.Directory,
	notifier notify.Notifier,
	mail mailer.Mailer,
	producer *kafka.Producer,
	logger *zap.Logger,
	opsEmail string,
) *BookingService {
	return &BookingService{
		repo:      repo,
		catalog:   svcCatalog,
		directory: directory,
		notifier:  notifier,
		mail:      mail,
		producer:  producer,
		logger:    logger,
		opsEmail:  opsEmail,
	}
}

// CreateBooking creates a new booking with a catalog price/title snapshot
// and contact snapshots for both participants.
func (s *BookingService) CreateBooking(ctx context.Context, actor bookingDomain.Actor, req CreateBookingRequest) (*BookingDTO, error) {
	var customerID uuid.UUID
	switch actor.Role {
	case bookingDomain.RoleCustomer:
		customerID = actor.ID
	case bookingDomain.RoleAdmin:
		if req.CustomerID == nil || *req.CustomerID == uuid.Nil {
			return nil, domain.NewValidationError("customer_id is required when an administrator creates a booking")
		}
		customerID = *req.CustomerID
	default:
		return nil, domain.NewForbiddenError("only a customer or administrator may create a booking")
	}

	entry, err := s.catalog.GetService(ctx, req.ServiceID)
	if err != nil {
		return nil, err
	}

	customerPhone := s.lookupPhone(ctx, customerID)
	vendorPhone := s.lookupPhone(ctx, req.VendorID)

	bk, err := bookingDomain.NewBooking(
		customerID,
		req.VendorID,
		req.ServiceID,
		entry.Title,
		entry.Category,
		customerPhone,
		vendorPhone,
		req.ScheduledDate,
		bookingDomain.Price{AmountCents: entry.PriceCents, Currency: entry.Currency},
		req.Address,
		req.Notes,
	)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, bk); err != nil {
		return nil, fmt.Errorf("failed to save booking: %w", err)
	}

	s.notifier.Publish(bk.VendorID().String(), NotifyBookingCreated, statusPayload(bk))
	s.publishEvent(ctx, events.TopicBookingEvents, events.BookingCreated, events.BookingCreatedEvent{
		BookingID:   bk.ID(),
		CustomerID:  bk.CustomerID(),
		VendorID:    bk.VendorID(),
		ServiceID:   bk.ServiceID(),
		AmountCents: bk.Price().AmountCents,
		Currency:    bk.Price().Currency,
		ScheduledAt: bk.ScheduledDate(),
		OccurredAt:  time.Now().UTC(),
	})

	result := s.toDTOFor(actor, bk)
	return &result, nil
}

// EditBooking updates schedule, address or notes while the booking is still
// pending or confirmed. Only the owning customer or an administrator may edit.
func (s *BookingService) EditBooking(ctx context.Context, actor bookingDomain.Actor, bookingID uuid.UUID, req EditBookingRequest) (*BookingDTO, error) {
	bk, err := s.loadForParticipant(ctx, actor, bookingID)
	if err != nil {
		return nil, err
	}
	switch {
	case actor.Role == bookingDomain.RoleAdmin:
	case actor.ID == bk.CustomerID():
	case actor.ID == bk.VendorID():
		// Vendors may only annotate; schedule, address and customer notes
		// belong to the customer side.
		if req.ScheduledDate != nil || req.Address != nil || req.CustomerNotes != nil {
			return nil, domain.NewForbiddenError("vendors may only edit their own notes")
		}
	default:
		return nil, domain.NewForbiddenError("only the booking's customer or an administrator may edit it")
	}

	changes := bookingDomain.EditChanges{
		ScheduledDate: req.ScheduledDate,
		Address:       req.Address,
		CustomerNotes: req.CustomerNotes,
		VendorNotes:   req.VendorNotes,
	}
	if err := bk.ApplyEdit(changes); err != nil {
		return nil, err
	}

	if err := s.persist(ctx, bk); err != nil {
		return nil, err
	}

	s.notifyCounterparties(bk, actor, NotifyBookingUpdated, statusPayload(bk))

	result := s.toDTOFor(actor, bk)
	return &result, nil
}

// ChangeStatus applies a lifecycle transition on behalf of the actor,
// including the completion-verification protocol. The aggregate validates
// role rights and reachability; a failed validation leaves the record
// untouched and a lost optimistic write surfaces as a Conflict.
func (s *BookingService) ChangeStatus(ctx context.Context, actor bookingDomain.Actor, bookingID uuid.UUID, target bookingDomain.BookingStatus, code string) (*BookingDTO, error) {
	bk, err := s.loadForParticipant(ctx, actor, bookingID)
	if err != nil {
		return nil, err
	}

	from := bk.Status()
	if err := bk.ApplyStatusChange(actor, target, code); err != nil {
		return nil, err
	}

	if err := s.persist(ctx, bk); err != nil {
		return nil, err
	}

	// Notifications carry the status only, never the verification code; the
	// customer pulls the code through the authenticated FetchOtp path.
	s.notifyCounterparties(bk, actor, NotifyStatusChanged, statusPayload(bk))
	if target == bookingDomain.StatusVerificationPending {
		s.sendCodeBackupMail(bk)
	}

	s.publishEvent(ctx, events.TopicBookingEvents, events.BookingStatusChanged, events.BookingStatusChangedEvent{
		BookingID:     bk.ID(),
		From:          string(from),
		To:            string(bk.Status()),
		ChangedByRole: string(actor.Role),
		OccurredAt:    time.Now().UTC(),
	})

	result := s.toDTOFor(actor, bk)
	return &result, nil
}

// FetchOtp returns the pending completion code to the booking's customer,
// regenerating it if the stored one is missing or expired.
func (s *BookingService) FetchOtp(ctx context.Context, actor bookingDomain.Actor, bookingID uuid.UUID) (string, error) {
	bk, err := s.loadForParticipant(ctx, actor, bookingID)
	if err != nil {
		return "", err
	}
	if actor.Role != bookingDomain.RoleCustomer || actor.ID != bk.CustomerID() {
		return "", domain.NewForbiddenError("only the booking's customer may fetch the verification code")
	}

	otpCode, regenerated, err := bk.RefreshCompletionCode()
	if err != nil {
		return "", err
	}

	if regenerated {
		if err := s.persist(ctx, bk); err != nil {
			return "", err
		}
		s.sendCodeBackupMail(bk)
	}
	return otpCode, nil
}

// RaiseDispute flags the booking as disputed and broadcasts to the admin set.
func (s *BookingService) RaiseDispute(ctx context.Context, actor bookingDomain.Actor, bookingID uuid.UUID, reason, description string) (*BookingDTO, error) {
	bk, err := s.loadForParticipant(ctx, actor, bookingID)
	if err != nil {
		return nil, err
	}

	if err := bk.RaiseDispute(actor, reason, description); err != nil {
		return nil, err
	}

	if err := s.persist(ctx, bk); err != nil {
		return nil, err
	}

	s.notifier.Publish(notify.AdminRoom, NotifyDisputeRaised, map[string]interface{}{
		"booking_id": bk.ID(),
		"reason":     reason,
		"raised_by":  string(actor.Role),
	})
	s.notifyCounterparties(bk, actor, NotifyStatusChanged, statusPayload(bk))

	s.publishEvent(ctx, events.TopicBookingEvents, events.BookingDisputeRaised, events.DisputeRaisedEvent{
		BookingID:  bk.ID(),
		RaisedBy:   actor.ID,
		RaisedRole: string(actor.Role),
		Reason:     reason,
		OccurredAt: time.Now().UTC(),
	})

	result := s.toDTOFor(actor, bk)
	return &result, nil
}

// ReviewDispute marks an open dispute as under review (admin).
func (s *BookingService) ReviewDispute(ctx context.Context, actor bookingDomain.Actor, bookingID uuid.UUID) (*BookingDTO, error) {
	if actor.Role != bookingDomain.RoleAdmin {
		return nil, domain.NewForbiddenError("access denied")
	}

	bk, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := bk.MarkDisputeUnderReview(); err != nil {
		return nil, err
	}
	if err := s.persist(ctx, bk); err != nil {
		return nil, err
	}

	result := s.toDTOFor(actor, bk)
	return &result, nil
}

// ResolveDispute settles a dispute into a terminal status (admin only) and
// notifies both participants.
func (s *BookingService) ResolveDispute(ctx context.Context, actor bookingDomain.Actor, bookingID uuid.UUID, resolution string, finalStatus bookingDomain.BookingStatus) (*BookingDTO, error) {
	if actor.Role != bookingDomain.RoleAdmin {
		return nil, domain.NewForbiddenError("access denied")
	}

	bk, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := bk.ResolveDispute(actor.ID, resolution, finalStatus); err != nil {
		return nil, err
	}
	if err := s.persist(ctx, bk); err != nil {
		return nil, err
	}

	payload := map[string]interface{}{
		"booking_id": bk.ID(),
		"status":     string(bk.Status()),
		"resolution": resolution,
	}
	s.notifier.Publish(bk.CustomerID().String(), NotifyDisputeResolved, payload)
	s.notifier.Publish(bk.VendorID().String(), NotifyDisputeResolved, payload)

	s.publishEvent(ctx, events.TopicBookingEvents, events.BookingDisputeResolved, events.DisputeResolvedEvent{
		BookingID:   bk.ID(),
		ResolvedBy:  actor.ID,
		FinalStatus: string(finalStatus),
		Resolution:  resolution,
		OccurredAt:  time.Now().UTC(),
	})

	result := s.toDTOFor(actor, bk)
	return &result, nil
}

// SubmitReview records the customer's one-time rating of a completed booking.
func (s *BookingService) SubmitReview(ctx context.Context, actor bookingDomain.Actor, bookingID uuid.UUID, score int, review string) (*BookingDTO, error) {
	bk, err := s.loadForParticipant(ctx, actor, bookingID)
	if err != nil {
		return nil, err
	}

	if err := bk.SubmitReview(actor, score, review); err != nil {
		return nil, err
	}
	if err := s.persist(ctx, bk); err != nil {
		return nil, err
	}

	s.notifier.Publish(bk.VendorID().String(), NotifyReviewSubmitted, map[string]interface{}{
		"booking_id": bk.ID(),
		"score":      score,
	})

	result := s.toDTOFor(actor, bk)
	return &result, nil
}

// SettlePayment applies an out-of-band settlement reported by the payment
// system: payout to the vendor or refund to the customer. Not exposed to
// clients; driven by the settlement event consumer.
func (s *BookingService) SettlePayment(ctx context.Context, bookingID uuid.UUID, target bookingDomain.PaymentStatus, referenceID string) error {
	bk, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		return err
	}
	if err := bk.ApplySettlement(target, referenceID); err != nil {
		return err
	}
	if err := s.persist(ctx, bk); err != nil {
		return err
	}

	payload := map[string]interface{}{
		"booking_id":     bk.ID(),
		"payment_status": string(bk.Payment().Status),
	}
	s.notifier.Publish(bk.CustomerID().String(), NotifyPaymentSettled, payload)
	s.notifier.Publish(bk.VendorID().String(), NotifyPaymentSettled, payload)
	return nil
}

// GetBooking retrieves a single booking for a participant, applying the
// contact-privacy rules.
func (s *BookingService) GetBooking(ctx context.Context, actor bookingDomain.Actor, bookingID uuid.UUID) (*BookingDTO, error) {
	bk, err := s.loadForParticipant(ctx, actor, bookingID)
	if err != nil {
		return nil, err
	}
	result := s.toDTOFor(actor, bk)
	return &result, nil
}

// ListBookings retrieves the actor's own bookings: a customer sees bookings
// they placed, a vendor sees bookings assigned to them, an admin sees all.
func (s *BookingService) ListBookings(ctx context.Context, actor bookingDomain.Actor, page, limit int) (*domain.PaginatedResult[BookingDTO], error) {
	var (
		bookings []*bookingDomain.Booking
		total    int64
		err      error
	)
	switch actor.Role {
	case bookingDomain.RoleCustomer:
		bookings, total, err = s.repo.FindByCustomerID(ctx, actor.ID, page, limit)
	case bookingDomain.RoleVendor:
		bookings, total, err = s.repo.FindByVendorID(ctx, actor.ID, page, limit)
	default:
		bookings, total, err = s.repo.ListAll(ctx, page, limit)
	}
	if err != nil {
		return nil, err
	}

	dtos := make([]BookingDTO, len(bookings))
	for i, bk := range bookings {
		dtos[i] = s.toDTOFor(actor, bk)
	}
	result := domain.NewPaginatedResult(dtos, total, page, limit)
	return &result, nil
}

// --- Admin methods ---

// BookingStatsDTO holds booking statistics for the admin dashboard.
type BookingStatsDTO struct {
	TotalBookings int64            `json:"total_bookings"`
	ByStatus      map[string]int64 `json:"by_status"`
}

// ListDisputedBookings returns bookings with an unresolved dispute (admin).
func (s *BookingService) ListDisputedBookings(ctx context.Context, actor bookingDomain.Actor, page, limit int) (*domain.PaginatedResult[BookingDTO], error) {
	if actor.Role != bookingDomain.RoleAdmin {
		return nil, domain.NewForbiddenError("access denied")
	}

	bookings, total, err := s.repo.ListDisputed(ctx, page, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list disputed bookings: %w", err)
	}

	dtos := make([]BookingDTO, len(bookings))
	for i, bk := range bookings {
		dtos[i] = s.toDTOFor(actor, bk)
	}
	result := domain.NewPaginatedResult(dtos, total, page, limit)
	return &result, nil
}

// GetBookingStats returns aggregate booking statistics (admin).
func (s *BookingService) GetBookingStats(ctx context.Context) (*BookingStatsDTO, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get booking stats: %w", err)
	}

	var total int64
	for _, c := range counts {
		total += c
	}
	return &BookingStatsDTO{TotalBookings: total, ByStatus: counts}, nil
}

// --- Helpers ---

// loadForParticipant loads the booking and runs the participant gate. A
// non-participant gets the same uniform "access denied" regardless of the
// underlying reason, so booking existence and ownership never leak.
func (s *BookingService) loadForParticipant(ctx context.Context, actor bookingDomain.Actor, bookingID uuid.UUID) (*bookingDomain.Booking, error) {
	bk, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !bk.IsParticipant(actor) {
		return nil, domain.NewForbiddenError("access denied")
	}
	return bk, nil
}

// persist bumps the version and writes through the optimistic update path.
func (s *BookingService) persist(ctx context.Context, bk *bookingDomain.Booking) error {
	bk.IncrementVersion()
	return s.repo.Update(ctx, bk)
}

func (s *BookingService) notifyCounterparties(bk *bookingDomain.Booking, actor bookingDomain.Actor, event string, payload interface{}) {
	for _, id := range bk.CounterpartyIDs(actor) {
		s.notifier.Publish(id.String(), event, payload)
	}
}

func (s *BookingService) sendCodeBackupMail(bk *bookingDomain.Booking) {
	if s.mail == nil || s.opsEmail == "" {
		return
	}
	subject := fmt.Sprintf("Completion code for booking %s", bk.ID())
	body := fmt.Sprintf("Booking %s (%s) completion code: %s", bk.ID(), bk.ServiceTitle(), bk.CompletionCode())
	if err := s.mail.Send(s.opsEmail, subject, body); err != nil {
		s.logger.Warn("failed to send completion code backup mail",
			zap.String("booking_id", bk.ID().String()),
			zap.Error(err),
		)
	}
}

func (s *BookingService) lookupPhone(ctx context.Context, userID uuid.UUID) string {
	if s.directory == nil {
		return ""
	}
	profile, err := s.directory.GetProfile(ctx, userID)
	if err != nil {
		s.logger.Warn("failed to look up contact profile",
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
		return ""
	}
	return profile.Phone
}

func (s *BookingService) publishEvent(ctx context.Context, topic, eventType string, data interface{}) {
	if s.producer == nil {
		return
	}
	cloudEvent, err := kafka.NewCloudEvent("service-booking", eventType, data)
	if err != nil {
		s.logger.Error("failed to create cloud event",
			zap.String("event_type", eventType),
			zap.Error(err),
		)
		return
	}
	if err := s.producer.PublishEvent(ctx, topic, cloudEvent); err != nil {
		s.logger.Error("failed to publish event",
			zap.String("topic", topic),
			zap.String("event_type", eventType),
			zap.Error(err),
		)
	}
}

func statusPayload(bk *bookingDomain.Booking) map[string]interface{} {
	return map[string]interface{}{
		"booking_id": bk.ID(),
		"status":     string(bk.Status()),
	}
}

// toDTOFor maps the aggregate to its response shape for a given viewer,
// withholding the counter-party's phone number outside confirmed,
// in-progress and completed. Admins see everything.
func (s *BookingService) toDTOFor(actor bookingDomain.Actor, bk *bookingDomain.Booking) BookingDTO {
	payment := bk.Payment()
	dto := BookingDTO{
		ID:              bk.ID(),
		CustomerID:      bk.CustomerID(),
		VendorID:        bk.VendorID(),
		ServiceID:       bk.ServiceID(),
		ServiceTitle:    bk.ServiceTitle(),
		ServiceCategory: bk.ServiceCategory(),
		CustomerPhone:   bk.CustomerPhone(),
		VendorPhone:     bk.VendorPhone(),
		Status:          string(bk.Status()),
		ScheduledDate:   bk.ScheduledDate(),
		Address:         bk.Address(),
		CustomerNotes:   bk.CustomerNotes(),
		VendorNotes:     bk.VendorNotes(),
		Price:           bk.Price(),
		Payment: PaymentDTO{
			Status:        string(payment.Status),
			TransactionID: payment.TransactionID,
			PayoutID:      payment.PayoutID,
			PaidAt:        payment.PaidAt,
			SettledAt:     payment.SettledAt,
		},
		Rating:    bk.Rating(),
		Timeline:  bk.Timeline(),
		Version:   bk.Version(),
		CreatedAt: bk.CreatedAt(),
		UpdatedAt: bk.UpdatedAt(),
	}

	if dp := bk.Dispute(); dp != nil {
		dto.Dispute = &DisputeDTO{
			RaisedBy:    dp.RaisedBy,
			RaisedRole:  string(dp.RaisedRole),
			Reason:      dp.Reason,
			Description: dp.Description,
			Status:      string(dp.Status),
			Resolution:  dp.Resolution,
			ResolvedBy:  dp.ResolvedBy,
			RaisedAt:    dp.RaisedAt,
			ResolvedAt:  dp.ResolvedAt,
		}
	}

	if actor.Role != bookingDomain.RoleAdmin && !bk.Status().RevealsContact() {
		if actor.ID == bk.CustomerID() {
			dto.VendorPhone = ""
		} else {
			dto.CustomerPhone = ""
		}
	}
	return dto
}
