package booking

import (
	"context"

	"github.com/google/uuid"
)

// BookingRepository is the persistence port for the booking aggregate.
// Update must be a conditional write on (id, version) and return a
// ConflictError when the stored version no longer matches, so concurrent
// transitions against the same booking cannot both apply.
type BookingRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Booking, error)
	FindByCustomerID(ctx context.Context, customerID uuid.UUID, page, limit int) ([]*Booking, int64, error)
	FindByVendorID(ctx context.Context, vendorID uuid.UUID, page, limit int) ([]*Booking, int64, error)
	Save(ctx context.Context, bk *Booking) error
	Update(ctx context.Context, bk *Booking) error
	ListAll(ctx context.Context, page, limit int) ([]*Booking, int64, error)
	ListDisputed(ctx context.Context, page, limit int) ([]*Booking, int64, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)
}
