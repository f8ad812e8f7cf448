package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"venuebook/internal/domain"
	"venuebook/internal/events"
	"venuebook/internal/metrics"
	"venuebook/internal/models"
	"venuebook/internal/reservation"

	"github.com/rs/zerolog"
)

type BookingService struct {
	repo     domain.Repository
	eventBus domain.EventPublisher
	outbox   domain.OutboxNotifier
	logger   *zerolog.Logger
}

var _ domain.BookingService = (*BookingService)(nil)

// NewBookingService creates the booking service. eventBus and outbox may be nil.
func NewBookingService(
	repo domain.Repository,
	eventBus domain.EventPublisher,
	outbox domain.OutboxNotifier,
	logger *zerolog.Logger,
) *BookingService {
	return &BookingService{
		repo:     repo,
		eventBus: eventBus,
		outbox:   outbox,
		logger:   logger,
	}
}

// RequestBooking decides and persists a request in one immediate transaction,
// so two requests for overlapping windows are serialized by the store.
func (s *BookingService) RequestBooking(ctx context.Context, req *models.BookingRequest) (*models.BookingResult, error) {
	started := time.Now()
	mode := req.Mode()

	var decision *reservation.Decision
	err := s.repo.WithTx(ctx, func(tx domain.Store) error {
		d, err := reservation.Resolve(ctx, tx, req)
		if err != nil {
			return err
		}
		if !d.Created() {
			decision = d
			return nil
		}

		if err := tx.CreateBooking(ctx, d.Booking); err != nil {
			if errors.Is(err, models.ErrConflict) {
				if _, ok := models.OccupyingWindow(err); !ok {
					window, _ := d.Booking.Window()
					return &models.ConflictError{Window: window}
				}
			}
			return err
		}
		if err := enqueueEvent(ctx, tx, events.EventBookingCreated, d.Booking, d.Booking.RequesterID); err != nil {
			return err
		}
		decision = d
		return nil
	})

	if err != nil {
		err = classify(err)
		metrics.ObserveBookingDecision(mode, outcomeLabel("", err), time.Since(started))
		if errors.Is(err, models.ErrStoreFailure) {
			s.logger.Error().Err(err).Int64("venue_id", req.VenueID).Msg("Booking request failed")
		} else {
			s.logger.Debug().Err(err).Int64("venue_id", req.VenueID).Str("requester_id", req.RequesterID).Msg("Booking request refused")
		}
		return nil, err
	}

	metrics.ObserveBookingDecision(mode, decision.Outcome, time.Since(started))
	result := &models.BookingResult{Booking: decision.Booking, Outcome: decision.Outcome}
	if result.Created() {
		s.afterCommit(events.EventBookingCreated, decision.Booking, decision.Booking.RequesterID)
		s.logger.Info().
			Int64("booking_id", decision.Booking.ID).
			Int64("venue_id", decision.Booking.VenueID).
			Str("mode", mode).
			Str("window", decision.Booking.Date+" "+decision.Booking.StartTime+"-"+decision.Booking.EndTime).
			Msg("Booking created")
	}
	return result, nil
}

// ListBookings returns the requester's own bookings, or everything for an admin.
func (s *BookingService) ListBookings(ctx context.Context, requesterID string, asAdmin bool) ([]*models.Booking, error) {
	if !asAdmin && requesterID == "" {
		return nil, fmt.Errorf("%w: requester id is required", models.ErrInvalidArgument)
	}
	bookings, err := s.repo.ListBookings(ctx, requesterID, asAdmin)
	if err != nil {
		return nil, classify(err)
	}
	return bookings, nil
}

// AuditBooking approves or rejects a booking. Repeating the current status is a no-op.
func (s *BookingService) AuditBooking(ctx context.Context, id int64, target string) (*models.Booking, error) {
	if target != models.StatusApproved && target != models.StatusRejected {
		return nil, fmt.Errorf("%w: audit status must be approved or rejected, got %q", models.ErrInvalidArgument, target)
	}
	return s.transition(ctx, id, target, "admin", nil)
}

// CancelBooking lets the requester withdraw a pending or approved booking.
// Bookings of other requesters are reported as not found.
func (s *BookingService) CancelBooking(ctx context.Context, id int64, requesterID string) (*models.Booking, error) {
	if requesterID == "" {
		return nil, fmt.Errorf("%w: requester id is required", models.ErrInvalidArgument)
	}
	return s.transition(ctx, id, models.StatusCancelled, requesterID, func(b *models.Booking) error {
		if b.RequesterID != requesterID {
			return fmt.Errorf("%w: booking %d", models.ErrNotFound, id)
		}
		return nil
	})
}

func (s *BookingService) transition(
	ctx context.Context,
	id int64,
	target, changedBy string,
	check func(b *models.Booking) error,
) (*models.Booking, error) {
	var (
		booking *models.Booking
		changed bool
	)
	err := s.repo.WithTx(ctx, func(tx domain.Store) error {
		b, err := tx.GetBooking(ctx, id)
		if err != nil {
			return err
		}
		if check != nil {
			if err := check(b); err != nil {
				return err
			}
		}
		booking = b
		if b.Status == target {
			return nil
		}
		if !models.CanTransition(b.Status, target) {
			return fmt.Errorf("%w: booking %d cannot move from %s to %s", models.ErrInvalidState, id, b.Status, target)
		}

		if err := tx.UpdateBookingStatusWithVersion(ctx, id, b.Version, target); err != nil {
			return err
		}
		b.Status = target
		b.Version++
		b.UpdatedAt = time.Now()
		changed = true

		return enqueueEvent(ctx, tx, events.EventForStatus(target), b, changedBy)
	})
	if err != nil {
		return nil, classify(err)
	}

	if changed {
		metrics.IncStatusTransition(target)
		s.afterCommit(events.EventForStatus(target), booking, changedBy)
		s.logger.Info().
			Int64("booking_id", id).
			Str("status", target).
			Str("changed_by", changedBy).
			Msg("Booking status changed")
	}
	return booking, nil
}

// GetBookingsByDateRange returns bookings with dates in [start, end], used by exports.
func (s *BookingService) GetBookingsByDateRange(ctx context.Context, start, end string) ([]*models.Booking, error) {
	from, err := models.ParseDate(start)
	if err != nil {
		return nil, err
	}
	to, err := models.ParseDate(end)
	if err != nil {
		return nil, err
	}
	if to.Before(from) {
		return nil, fmt.Errorf("%w: end date %s is before start date %s", models.ErrInvalidArgument, end, start)
	}

	bookings, err := s.repo.GetBookingsByDateRange(ctx, from.Format(models.DateLayout), to.Format(models.DateLayout))
	if err != nil {
		return nil, classify(err)
	}
	return bookings, nil
}

func enqueueEvent(ctx context.Context, tx domain.Store, eventType string, b *models.Booking, changedBy string) error {
	payload, err := json.Marshal(events.NewBookingPayload(b, changedBy))
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return tx.CreateOutboxMessage(ctx, &models.OutboxMessage{
		EventType: eventType,
		BookingID: b.ID,
		Payload:   string(payload),
	})
}

// afterCommit notifies in-process subscribers and wakes the outbox relay.
func (s *BookingService) afterCommit(eventType string, b *models.Booking, changedBy string) {
	if s.eventBus != nil {
		if err := s.eventBus.PublishJSON(eventType, events.NewBookingPayload(b, changedBy)); err != nil {
			s.logger.Error().Err(err).Str("event", eventType).Int64("booking_id", b.ID).Msg("Failed to publish event")
		}
	}
	if s.outbox != nil {
		s.outbox.Wake()
	}
}
