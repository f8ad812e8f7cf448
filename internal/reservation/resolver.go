// Package reservation decides whether a booking request may take a venue time window.
// It only reads; the caller persists the outcome inside the same transaction.
package reservation

import (
	"context"
	"fmt"
	"strings"

	"venuebook/internal/models"
)

// Reader is the part of the store the resolver consults.
type Reader interface {
	GetVenue(ctx context.Context, id int64) (*models.Venue, error)
	GetSlot(ctx context.Context, id int64) (*models.VenueSlot, error)
	ListBookingsBySlot(ctx context.Context, slotID int64, statuses []string) ([]*models.Booking, error)
	ListBookingsByVenueDate(ctx context.Context, venueID int64, date string, statuses []string) ([]*models.Booking, error)
}

// Decision is a non-error outcome. For OutcomeCreated Booking is an unsaved draft,
// for OutcomeExisting it is the active booking already held by the requester.
type Decision struct {
	Outcome string
	Booking *models.Booking
}

func (d *Decision) Created() bool {
	return d.Outcome == models.OutcomeCreated
}

// Resolve loads what the request touches and runs the slot or manual decision.
func Resolve(ctx context.Context, r Reader, req *models.BookingRequest) (*Decision, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	venue, err := r.GetVenue(ctx, req.VenueID)
	if err != nil {
		return nil, fmt.Errorf("venue %d: %w", req.VenueID, err)
	}
	if venue.Status != models.VenueStatusOpen {
		return nil, fmt.Errorf("%w: venue %d is %s", models.ErrInvalidState, venue.ID, venue.Status)
	}

	if req.IsSlotMode() {
		return resolveSlot(ctx, r, req)
	}
	return resolveManual(ctx, r, req)
}

func resolveSlot(ctx context.Context, r Reader, req *models.BookingRequest) (*Decision, error) {
	slot, err := r.GetSlot(ctx, *req.SlotID)
	if err != nil {
		return nil, fmt.Errorf("slot %d: %w", *req.SlotID, err)
	}
	if slot.VenueID != req.VenueID {
		return nil, fmt.Errorf("%w: slot %d does not belong to venue %d", models.ErrNotFound, slot.ID, req.VenueID)
	}
	// blocked slot is rejected before any booking lookups
	if slot.Status != models.SlotStatusOpen {
		return nil, fmt.Errorf("%w: slot %d is %s", models.ErrInvalidState, slot.ID, slot.Status)
	}

	slotBookings, err := r.ListBookingsBySlot(ctx, slot.ID, models.ActiveStatuses)
	if err != nil {
		return nil, err
	}
	dayBookings, err := r.ListBookingsByVenueDate(ctx, slot.VenueID, slot.Date, models.ActiveStatuses)
	if err != nil {
		return nil, err
	}

	return DecideSlot(req, slot, slotBookings, dayBookings)
}

func resolveManual(ctx context.Context, r Reader, req *models.BookingRequest) (*Decision, error) {
	window, err := models.NewWindow(req.StartTime, req.EndTime)
	if err != nil {
		return nil, err
	}

	dayBookings, err := r.ListBookingsByVenueDate(ctx, req.VenueID, req.Date, models.ActiveStatuses)
	if err != nil {
		return nil, err
	}

	return DecideManual(req, window, dayBookings)
}

// DecideSlot applies the slot-mode rules to an already loaded open slot.
// slotBookings are active bookings referencing the slot, dayBookings are all
// active bookings of the venue on the slot date.
func DecideSlot(req *models.BookingRequest, slot *models.VenueSlot, slotBookings, dayBookings []*models.Booking) (*Decision, error) {
	window, err := slot.Window()
	if err != nil {
		return nil, err
	}

	for _, b := range slotBookings {
		if b.IsActive() && sameRequester(b.RequesterID, req.RequesterID) {
			return &Decision{Outcome: models.OutcomeExisting, Booking: b}, nil
		}
	}
	for _, b := range slotBookings {
		if b.IsActive() {
			return nil, &models.ConflictError{BookingID: b.ID, Window: window}
		}
	}

	// ручные брони на ту же дату делят с слотом одну ось времени
	for _, b := range dayBookings {
		if b.SlotID != nil || !b.IsActive() {
			continue
		}
		held, err := b.Window()
		if err != nil {
			return nil, fmt.Errorf("%w: booking %d has malformed window: %v", models.ErrStoreFailure, b.ID, err)
		}
		if held.Overlaps(window) {
			return nil, &models.ConflictError{BookingID: b.ID, Window: held}
		}
	}

	slotID := slot.ID
	return &Decision{
		Outcome: models.OutcomeCreated,
		Booking: draft(req, &slotID, slot.Date, window),
	}, nil
}

// DecideManual applies the manual-mode rules. The first overlapping active booking wins:
// the same requester gets it back, anyone else gets a conflict.
func DecideManual(req *models.BookingRequest, window models.Window, dayBookings []*models.Booking) (*Decision, error) {
	for _, b := range dayBookings {
		if !b.IsActive() {
			continue
		}
		held, err := b.Window()
		if err != nil {
			return nil, fmt.Errorf("%w: booking %d has malformed window: %v", models.ErrStoreFailure, b.ID, err)
		}
		if !held.Overlaps(window) {
			continue
		}
		if sameRequester(b.RequesterID, req.RequesterID) {
			return &Decision{Outcome: models.OutcomeExisting, Booking: b}, nil
		}
		return nil, &models.ConflictError{BookingID: b.ID, Window: held}
	}

	return &Decision{
		Outcome: models.OutcomeCreated,
		Booking: draft(req, nil, req.Date, window),
	}, nil
}

// SlotAvailable reports whether an open slot is free of every active booking
// on its venue and date, whatever their mode.
func SlotAvailable(slot *models.VenueSlot, dayBookings []*models.Booking) bool {
	if slot.Status != models.SlotStatusOpen {
		return false
	}
	window, err := slot.Window()
	if err != nil {
		return false
	}
	for _, b := range dayBookings {
		if !b.IsActive() || b.Date != slot.Date {
			continue
		}
		if b.SlotID != nil && *b.SlotID == slot.ID {
			return false
		}
		held, err := b.Window()
		if err != nil {
			continue
		}
		if held.Overlaps(window) {
			return false
		}
	}
	return true
}

func draft(req *models.BookingRequest, slotID *int64, date string, window models.Window) *models.Booking {
	return &models.Booking{
		VenueID:      req.VenueID,
		SlotID:       slotID,
		RequesterID:  strings.TrimSpace(req.RequesterID),
		ContactName:  strings.TrimSpace(req.ContactName),
		ContactPhone: strings.TrimSpace(req.ContactPhone),
		Date:         date,
		StartTime:    window.Start.String(),
		EndTime:      window.End.String(),
		Reason:       req.Reason,
		Status:       models.StatusPending,
	}
}

func sameRequester(a, b string) bool {
	return strings.TrimSpace(a) == strings.TrimSpace(b)
}
