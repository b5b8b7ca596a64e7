package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/localserve/service-booking/internal/domain"
	bookingDomain "github.com/localserve/service-booking/internal/domain/booking"
)

// BookingModel is the GORM model for the bookings table. The payment,
// dispute, rating and timeline sub-records live in jsonb columns; the
// dispute status is additionally denormalized for the open-dispute listing.
type BookingModel struct {
	ID                    uuid.UUID       `gorm:"type:uuid;primaryKey"`
	CustomerID            uuid.UUID       `gorm:"type:uuid;index;not null"`
	VendorID              uuid.UUID       `gorm:"type:uuid;index;not null"`
	ServiceID             uuid.UUID       `gorm:"type:uuid;index;not null"`
	ServiceTitle          string          `gorm:"not null;size:200"`
	ServiceCategory       string          `gorm:"size:100"`
	CustomerPhone         string          `gorm:"size:32"`
	VendorPhone           string          `gorm:"size:32"`
	Status                string          `gorm:"not null;size:30;index"`
	ScheduledDate         time.Time       `gorm:"not null"`
	Address               string          `gorm:"not null;size:500"`
	CustomerNotes         string          `gorm:"size:1000"`
	VendorNotes           string          `gorm:"size:1000"`
	Price                 json.RawMessage `gorm:"type:jsonb;not null"`
	Payment               json.RawMessage `gorm:"type:jsonb;not null"`
	CompletionCode        string          `gorm:"size:12"`
	CompletionCodeExpires *time.Time      `gorm:""`
	Rating                json.RawMessage `gorm:"type:jsonb"`
	Dispute               json.RawMessage `gorm:"type:jsonb"`
	DisputeStatus         *string         `gorm:"size:20;index"`
	Timeline              json.RawMessage `gorm:"type:jsonb;not null"`
	Version               int64           `gorm:"not null;default:1"`
	CreatedAt             time.Time       `gorm:"not null"`
	UpdatedAt             time.Time       `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (BookingModel) TableName() string {
	return "bookings"
}

// GormBookingRepository is the GORM-based implementation of BookingRepository.
type GormBookingRepository struct {
	db *gorm.DB
}

// NewGormBookingRepository creates a new GormBookingRepository.
func NewGormBookingRepository(db *gorm.DB) *GormBookingRepository {
	return &GormBookingRepository{db: db}
}

// FindByID retrieves a booking by its unique identifier.
func (r *GormBookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*bookingDomain.Booking, error) {
	var model BookingModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("booking", id.String())
		}
		return nil, fmt.Errorf("failed to find booking by ID: %w", err)
	}
	return toDomainBooking(&model)
}

// FindByCustomerID retrieves bookings for a specific customer with pagination.
func (r *GormBookingRepository) FindByCustomerID(ctx context.Context, customerID uuid.UUID, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	return r.findPage(ctx, "customer_id = ?", []interface{}{customerID}, page, limit)
}

// FindByVendorID retrieves bookings for a specific vendor with pagination.
func (r *GormBookingRepository) FindByVendorID(ctx context.Context, vendorID uuid.UUID, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	return r.findPage(ctx, "vendor_id = ?", []interface{}{vendorID}, page, limit)
}

// ListAll retrieves all bookings with pagination (admin).
func (r *GormBookingRepository) ListAll(ctx context.Context, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	return r.findPage(ctx, "", nil, page, limit)
}

// ListDisputed retrieves bookings whose dispute still awaits resolution (admin).
func (r *GormBookingRepository) ListDisputed(ctx context.Context, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	return r.findPage(ctx, "dispute_status IN ?",
		[]interface{}{[]string{string(bookingDomain.DisputeOpen), string(bookingDomain.DisputeUnderReview)}},
		page, limit)
}

func (r *GormBookingRepository) findPage(ctx context.Context, cond string, args []interface{}, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	query := r.db.WithContext(ctx).Model(&BookingModel{})
	if cond != "" {
		query = query.Where(cond, args...)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count bookings: %w", err)
	}

	var models []BookingModel
	offset := (page - 1) * limit
	if err := query.
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to find bookings: %w", err)
	}

	bookings := make([]*bookingDomain.Booking, len(models))
	for i, m := range models {
		bk, err := toDomainBooking(&m)
		if err != nil {
			return nil, 0, err
		}
		bookings[i] = bk
	}
	return bookings, total, nil
}

// Save persists a new booking.
func (r *GormBookingRepository) Save(ctx context.Context, bk *bookingDomain.Booking) error {
	model, err := toBookingModel(bk)
	if err != nil {
		return fmt.Errorf("failed to convert booking to model: %w", err)
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to save booking: %w", err)
	}
	return nil
}

// Update persists changes to an existing booking with optimistic locking. The
// write only applies if the stored version still matches the version the
// aggregate was loaded at; a stale writer gets a ConflictError.
func (r *GormBookingRepository) Update(ctx context.Context, bk *bookingDomain.Booking) error {
	model, err := toBookingModel(bk)
	if err != nil {
		return fmt.Errorf("failed to convert booking to model: %w", err)
	}

	expectedVersion := bk.Version() - 1
	result := r.db.WithContext(ctx).
		Model(&BookingModel{}).
		Where("id = ? AND version = ?", model.ID, expectedVersion).
		Updates(map[string]interface{}{
			"status":                  model.Status,
			"scheduled_date":          model.ScheduledDate,
			"address":                 model.Address,
			"customer_notes":          model.CustomerNotes,
			"vendor_notes":            model.VendorNotes,
			"payment":                 model.Payment,
			"completion_code":         model.CompletionCode,
			"completion_code_expires": model.CompletionCodeExpires,
			"rating":                  model.Rating,
			"dispute":                 model.Dispute,
			"dispute_status":          model.DisputeStatus,
			"timeline":                model.Timeline,
			"version":                 model.Version,
			"updated_at":              model.UpdatedAt,
		})

	if result.Error != nil {
		return fmt.Errorf("failed to update booking: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewConflictError("booking was modified by another transaction")
	}
	return nil
}

// CountByStatus returns booking counts grouped by status (admin).
func (r *GormBookingRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	type statusCount struct {
		Status string
		Count  int64
	}
	var results []statusCount
	if err := r.db.WithContext(ctx).Model(&BookingModel{}).
		Select("status, count(*) as count").
		Group("status").
		Find(&results).Error; err != nil {
		return nil, fmt.Errorf("failed to count by status: %w", err)
	}

	counts := make(map[string]int64)
	for _, sc := range results {
		counts[sc.Status] = sc.Count
	}
	return counts, nil
}

// --- Conversion Helpers ---

func toBookingModel(bk *bookingDomain.Booking) (*BookingModel, error) {
	priceJSON, err := json.Marshal(bk.Price())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal price: %w", err)
	}

	paymentJSON, err := json.Marshal(bk.Payment())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payment: %w", err)
	}

	timelineJSON, err := json.Marshal(bk.Timeline())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal timeline: %w", err)
	}

	var ratingJSON json.RawMessage
	if bk.Rating() != nil {
		data, err := json.Marshal(bk.Rating())
		if err != nil {
			return nil, fmt.Errorf("failed to marshal rating: %w", err)
		}
		ratingJSON = data
	}

	var disputeJSON json.RawMessage
	var disputeStatus *string
	if bk.Dispute() != nil {
		data, err := json.Marshal(bk.Dispute())
		if err != nil {
			return nil, fmt.Errorf("failed to marshal dispute: %w", err)
		}
		disputeJSON = data
		s := string(bk.Dispute().Status)
		disputeStatus = &s
	}

	return &BookingModel{
		ID:                    bk.ID(),
		CustomerID:            bk.CustomerID(),
		VendorID:              bk.VendorID(),
		ServiceID:             bk.ServiceID(),
		ServiceTitle:          bk.ServiceTitle(),
		ServiceCategory:       bk.ServiceCategory(),
		CustomerPhone:         bk.CustomerPhone(),
		VendorPhone:           bk.VendorPhone(),
		Status:                string(bk.Status()),
		ScheduledDate:         bk.ScheduledDate(),
		Address:               bk.Address(),
		CustomerNotes:         bk.CustomerNotes(),
		VendorNotes:           bk.VendorNotes(),
		Price:                 priceJSON,
		Payment:               paymentJSON,
		CompletionCode:        bk.CompletionCode(),
		CompletionCodeExpires: bk.CompletionCodeExpires(),
		Rating:                ratingJSON,
		Dispute:               disputeJSON,
		DisputeStatus:         disputeStatus,
		Timeline:              timelineJSON,
		Version:               bk.Version(),
		CreatedAt:             bk.CreatedAt(),
		UpdatedAt:             bk.UpdatedAt(),
	}, nil
}

func toDomainBooking(m *BookingModel) (*bookingDomain.Booking, error) {
	var price bookingDomain.Price
	if err := json.Unmarshal(m.Price, &price); err != nil {
		return nil, fmt.Errorf("failed to unmarshal price: %w", err)
	}

	var payment bookingDomain.Payment
	if err := json.Unmarshal(m.Payment, &payment); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payment: %w", err)
	}

	var timeline []bookingDomain.TimelineEntry
	if err := json.Unmarshal(m.Timeline, &timeline); err != nil {
		return nil, fmt.Errorf("failed to unmarshal timeline: %w", err)
	}

	var rating *bookingDomain.Rating
	if len(m.Rating) > 0 {
		var rt bookingDomain.Rating
		if err := json.Unmarshal(m.Rating, &rt); err != nil {
			return nil, fmt.Errorf("failed to unmarshal rating: %w", err)
		}
		rating = &rt
	}

	var dispute *bookingDomain.Dispute
	if len(m.Dispute) > 0 {
		var dp bookingDomain.Dispute
		if err := json.Unmarshal(m.Dispute, &dp); err != nil {
			return nil, fmt.Errorf("failed to unmarshal dispute: %w", err)
		}
		dispute = &dp
	}

	status, err := bookingDomain.ParseBookingStatus(m.Status)
	if err != nil {
		return nil, err
	}

	return bookingDomain.ReconstructBooking(
		m.ID,
		m.CustomerID,
		m.VendorID,
		m.ServiceID,
		m.ServiceTitle,
		m.ServiceCategory,
		m.CustomerPhone,
		m.VendorPhone,
		status,
		m.ScheduledDate,
		m.Address,
		m.CustomerNotes,
		m.VendorNotes,
		price,
		payment,
		m.CompletionCode,
		m.CompletionCodeExpires,
		rating,
		dispute,
		timeline,
		m.Version,
		m.CreatedAt,
		m.UpdatedAt,
	), nil
}
