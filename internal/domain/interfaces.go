package domain

import (
	"context"
	"time"

	"venuebook/internal/models"
)

// Store is the set of queries available both on the pool and inside a transaction.
type Store interface {
	GetVenue(ctx context.Context, id int64) (*models.Venue, error)
	ListVenues(ctx context.Context) ([]*models.Venue, error)
	CreateVenue(ctx context.Context, venue *models.Venue) error
	UpdateVenue(ctx context.Context, venue *models.Venue) error
	DeleteVenue(ctx context.Context, id int64) (bool, error)
	CountActiveBookingsByVenue(ctx context.Context, venueID int64) (int, error)

	GetSlot(ctx context.Context, id int64) (*models.VenueSlot, error)
	ListSlots(ctx context.Context, venueID int64, date string) ([]*models.VenueSlot, error)
	ListOpenSlotDates(ctx context.Context, venueID int64) ([]string, error)
	CreateSlot(ctx context.Context, slot *models.VenueSlot) error
	UpdateSlot(ctx context.Context, slot *models.VenueSlot) error
	DeleteSlot(ctx context.Context, id int64) (bool, error)
	CountActiveBookingsBySlot(ctx context.Context, slotID int64) (int, error)

	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	CreateBooking(ctx context.Context, booking *models.Booking) error
	ListBookingsBySlot(ctx context.Context, slotID int64, statuses []string) ([]*models.Booking, error)
	ListBookingsByVenueDate(ctx context.Context, venueID int64, date string, statuses []string) ([]*models.Booking, error)
	ListBookings(ctx context.Context, requesterID string, all bool) ([]*models.Booking, error)
	GetBookingsByDateRange(ctx context.Context, start, end string) ([]*models.Booking, error)
	UpdateBookingStatusWithVersion(ctx context.Context, id int64, version int64, status string) error

	CreateOutboxMessage(ctx context.Context, msg *models.OutboxMessage) error
}

// Repository is the store plus transaction and lifecycle control.
type Repository interface {
	Store
	WithTx(ctx context.Context, fn func(tx Store) error) error
	Ping(ctx context.Context) error
}

// OutboxStore is what the outbox worker needs from the database.
type OutboxStore interface {
	GetPendingOutbox(ctx context.Context, limit int) ([]models.OutboxMessage, error)
	UpdateOutboxStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error
	GetFailedOutbox(ctx context.Context) ([]models.OutboxMessage, error)
}

// VenueCache keeps the venue list between writes.
type VenueCache interface {
	GetVenues(ctx context.Context) ([]*models.Venue, bool, error)
	SetVenues(ctx context.Context, venues []*models.Venue) error
	Invalidate(ctx context.Context) error
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// OutboxNotifier wakes the relay after a commit that wrote outbox rows.
type OutboxNotifier interface {
	Wake()
}

type VenueService interface {
	ListVenues(ctx context.Context) ([]*models.Venue, error)
	CreateVenue(ctx context.Context, venue *models.Venue) (*models.Venue, error)
	UpdateVenue(ctx context.Context, id int64, patch models.VenuePatch) (*models.Venue, error)
	DeleteVenue(ctx context.Context, id int64) error
}

type SlotService interface {
	ListSlots(ctx context.Context, venueID int64, date string) ([]*models.VenueSlot, error)
	ListSlotDates(ctx context.Context, venueID int64) ([]string, error)
	CreateSlot(ctx context.Context, slot *models.VenueSlot) (*models.VenueSlot, error)
	UpdateSlot(ctx context.Context, id int64, patch models.SlotPatch) (*models.VenueSlot, error)
	DeleteSlot(ctx context.Context, id int64) error
}

type BookingService interface {
	RequestBooking(ctx context.Context, req *models.BookingRequest) (*models.BookingResult, error)
	ListBookings(ctx context.Context, requesterID string, asAdmin bool) ([]*models.Booking, error)
	AuditBooking(ctx context.Context, id int64, target string) (*models.Booking, error)
	CancelBooking(ctx context.Context, id int64, requesterID string) (*models.Booking, error)
	GetBookingsByDateRange(ctx context.Context, start, end string) ([]*models.Booking, error)
}

// RateLimiter counts calls per key in a fixed window.
type RateLimiter interface {
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
