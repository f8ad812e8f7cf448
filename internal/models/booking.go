package models

import (
	"fmt"
	"strings"
	"time"
)

// Booking is a single reservation of a venue time window.
// Date, StartTime and EndTime are copied from the slot for slot-mode bookings.
type Booking struct {
	ID           int64     `json:"id"`
	VenueID      int64     `json:"venue_id"`
	SlotID       *int64    `json:"slot_id,omitempty"`
	RequesterID  string    `json:"requester_id"`
	ContactName  string    `json:"contact_name"`
	ContactPhone string    `json:"contact_phone"`
	Date         string    `json:"date"`
	StartTime    string    `json:"start_time"`
	EndTime      string    `json:"end_time"`
	Reason       string    `json:"reason"`
	Status       string    `json:"status"` // pending, approved, rejected, cancelled
	Version      int64     `json:"version"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	// Заполняются только в выборках списка бронирований
	VenueName     string `json:"venue_name,omitempty"`
	VenueLocation string `json:"venue_location,omitempty"`
}

func (b *Booking) Mode() string {
	if b.SlotID != nil {
		return ModeSlot
	}
	return ModeManual
}

func (b *Booking) Window() (Window, error) {
	return NewWindow(b.StartTime, b.EndTime)
}

func (b *Booking) IsActive() bool {
	return IsActiveStatus(b.Status)
}

// BookingRequest is a reservation request in either slot or manual mode.
type BookingRequest struct {
	VenueID      int64  `json:"venue_id"`
	RequesterID  string `json:"requester_id"`
	SlotID       *int64 `json:"slot_id,omitempty"`
	Date         string `json:"date,omitempty"`
	StartTime    string `json:"start_time,omitempty"`
	EndTime      string `json:"end_time,omitempty"`
	ContactName  string `json:"contact_name"`
	ContactPhone string `json:"contact_phone"`
	Reason       string `json:"reason"`
}

func (r *BookingRequest) IsSlotMode() bool {
	return r.SlotID != nil
}

func (r *BookingRequest) Mode() string {
	if r.IsSlotMode() {
		return ModeSlot
	}
	return ModeManual
}

// Validate checks the fields required by the chosen mode and rewrites a manual date in canonical form.
// Window ordering for manual requests is checked by the resolver.
func (r *BookingRequest) Validate() error {
	if r.VenueID <= 0 {
		return fmt.Errorf("%w: venue id is required", ErrInvalidArgument)
	}
	if strings.TrimSpace(r.RequesterID) == "" {
		return fmt.Errorf("%w: requester id is required", ErrInvalidArgument)
	}
	if r.IsSlotMode() {
		if *r.SlotID <= 0 {
			return fmt.Errorf("%w: slot id must be positive", ErrInvalidArgument)
		}
		return nil
	}
	if r.Date == "" || r.StartTime == "" || r.EndTime == "" {
		return fmt.Errorf("%w: date, start_time and end_time are required without slot_id", ErrInvalidArgument)
	}
	date, err := CanonicalDate(r.Date)
	if err != nil {
		return err
	}
	r.Date = date
	return nil
}

// BookingResult is the successful outcome of a request: a new booking or an idempotent hit.
type BookingResult struct {
	Booking *Booking `json:"booking"`
	Outcome string   `json:"outcome"` // created, existing
}

func (r *BookingResult) Created() bool {
	return r.Outcome == OutcomeCreated
}
