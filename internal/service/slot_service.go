package service

import (
	"context"
	"errors"
	"fmt"

	"venuebook/internal/domain"
	"venuebook/internal/models"
	"venuebook/internal/reservation"

	"github.com/rs/zerolog"
)

type SlotService struct {
	repo   domain.Repository
	logger *zerolog.Logger
}

var _ domain.SlotService = (*SlotService)(nil)

func NewSlotService(repo domain.Repository, logger *zerolog.Logger) *SlotService {
	return &SlotService{repo: repo, logger: logger}
}

// normalizeSlot rewrites times as HH:MM and the date as YYYY-MM-DD so they compare and sort as text.
func normalizeSlot(slot *models.VenueSlot) error {
	if slot.Status == "" {
		slot.Status = models.SlotStatusOpen
	}
	window, err := slot.Window()
	if err != nil {
		return err
	}
	slot.StartTime = window.Start.String()
	slot.EndTime = window.End.String()
	return slot.Validate()
}

func (s *SlotService) CreateSlot(ctx context.Context, slot *models.VenueSlot) (*models.VenueSlot, error) {
	if err := normalizeSlot(slot); err != nil {
		return nil, err
	}

	err := s.repo.WithTx(ctx, func(tx domain.Store) error {
		if _, err := tx.GetVenue(ctx, slot.VenueID); err != nil {
			return err
		}
		return tx.CreateSlot(ctx, slot)
	})
	if err != nil {
		return nil, classify(err)
	}
	return slot, nil
}

// ListSlots annotates every slot with availability computed from the current ledger.
func (s *SlotService) ListSlots(ctx context.Context, venueID int64, date string) ([]*models.VenueSlot, error) {
	if date != "" {
		canonical, err := models.CanonicalDate(date)
		if err != nil {
			return nil, err
		}
		date = canonical
	}
	if _, err := s.repo.GetVenue(ctx, venueID); err != nil {
		return nil, classify(err)
	}

	slots, err := s.repo.ListSlots(ctx, venueID, date)
	if err != nil {
		return nil, classify(err)
	}

	byDate := make(map[string][]*models.Booking)
	for _, slot := range slots {
		bookings, ok := byDate[slot.Date]
		if !ok {
			bookings, err = s.repo.ListBookingsByVenueDate(ctx, venueID, slot.Date, models.ActiveStatuses)
			if err != nil {
				return nil, classify(err)
			}
			byDate[slot.Date] = bookings
		}
		slot.Available = reservation.SlotAvailable(slot, bookings)
	}
	return slots, nil
}

func (s *SlotService) ListSlotDates(ctx context.Context, venueID int64) ([]string, error) {
	if _, err := s.repo.GetVenue(ctx, venueID); err != nil {
		return nil, classify(err)
	}
	dates, err := s.repo.ListOpenSlotDates(ctx, venueID)
	if err != nil {
		return nil, classify(err)
	}
	return dates, nil
}

// UpdateSlot may always change status; date and times are frozen while an active booking holds the slot.
func (s *SlotService) UpdateSlot(ctx context.Context, id int64, patch models.SlotPatch) (*models.VenueSlot, error) {
	var updated *models.VenueSlot
	err := s.repo.WithTx(ctx, func(tx domain.Store) error {
		slot, err := tx.GetSlot(ctx, id)
		if err != nil {
			return err
		}

		next := *slot
		patch.Apply(&next)
		if err := normalizeSlot(&next); err != nil {
			return err
		}

		if patch.MovesWindow(slot) {
			active, err := tx.CountActiveBookingsBySlot(ctx, id)
			if err != nil {
				return err
			}
			if active > 0 {
				return fmt.Errorf("%w: slot %d is referenced by %d active bookings", models.ErrInvalidState, id, active)
			}
		}

		if err := tx.UpdateSlot(ctx, &next); err != nil {
			return err
		}
		updated = &next
		return nil
	})
	if err != nil {
		return nil, classify(err)
	}
	return updated, nil
}

func (s *SlotService) DeleteSlot(ctx context.Context, id int64) error {
	err := s.repo.WithTx(ctx, func(tx domain.Store) error {
		if _, err := tx.GetSlot(ctx, id); err != nil {
			if errors.Is(err, models.ErrNotFound) {
				return nil
			}
			return err
		}

		active, err := tx.CountActiveBookingsBySlot(ctx, id)
		if err != nil {
			return err
		}
		if active > 0 {
			return fmt.Errorf("%w: slot %d is referenced by %d active bookings", models.ErrInvalidState, id, active)
		}

		_, err = tx.DeleteSlot(ctx, id)
		return err
	})
	return classify(err)
}
