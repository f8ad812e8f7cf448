package models

import (
	"fmt"
	"time"
)

// VenueSlot is a pre-published bookable window. Available is derived at read time.
type VenueSlot struct {
	ID        int64     `json:"id"`
	VenueID   int64     `json:"venue_id"`
	Date      string    `json:"date"`
	StartTime string    `json:"start_time"`
	EndTime   string    `json:"end_time"`
	Status    string    `json:"status"` // open, blocked
	Available bool      `json:"available"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *VenueSlot) Window() (Window, error) {
	return NewWindow(s.StartTime, s.EndTime)
}

// Validate checks the slot and rewrites its date in canonical form.
func (s *VenueSlot) Validate() error {
	if s.VenueID <= 0 {
		return fmt.Errorf("%w: venue id is required", ErrInvalidArgument)
	}
	date, err := CanonicalDate(s.Date)
	if err != nil {
		return err
	}
	s.Date = date
	if _, err := s.Window(); err != nil {
		return err
	}
	if !IsSlotStatus(s.Status) {
		return fmt.Errorf("%w: unknown slot status %q", ErrInvalidArgument, s.Status)
	}
	return nil
}

type SlotPatch struct {
	Date      *string `json:"date"`
	StartTime *string `json:"start_time"`
	EndTime   *string `json:"end_time"`
	Status    *string `json:"status"`
}

// MovesWindow reports whether the patch changes when the slot takes place.
// "9:00" and "09:00" are the same time.
func (p SlotPatch) MovesWindow(s *VenueSlot) bool {
	return (p.Date != nil && !sameDate(*p.Date, s.Date)) ||
		(p.StartTime != nil && !sameClock(*p.StartTime, s.StartTime)) ||
		(p.EndTime != nil && !sameClock(*p.EndTime, s.EndTime))
}

func (p SlotPatch) Apply(s *VenueSlot) {
	if p.Date != nil {
		s.Date = *p.Date
	}
	if p.StartTime != nil {
		s.StartTime = *p.StartTime
	}
	if p.EndTime != nil {
		s.EndTime = *p.EndTime
	}
	if p.Status != nil {
		s.Status = *p.Status
	}
}
