package service

import (
	"context"
	"errors"
	"fmt"

	"venuebook/internal/domain"
	"venuebook/internal/models"

	"github.com/rs/zerolog"
)

type VenueService struct {
	repo   domain.Repository
	cache  domain.VenueCache
	logger *zerolog.Logger
}

var _ domain.VenueService = (*VenueService)(nil)

func NewVenueService(repo domain.Repository, cache domain.VenueCache, logger *zerolog.Logger) *VenueService {
	return &VenueService{repo: repo, cache: cache, logger: logger}
}

func (s *VenueService) ListVenues(ctx context.Context) ([]*models.Venue, error) {
	if s.cache != nil {
		venues, ok, err := s.cache.GetVenues(ctx)
		if err != nil {
			s.logger.Warn().Err(err).Msg("Venue cache read failed")
		} else if ok {
			return venues, nil
		}
	}

	venues, err := s.repo.ListVenues(ctx)
	if err != nil {
		return nil, classify(err)
	}

	if s.cache != nil {
		if err := s.cache.SetVenues(ctx, venues); err != nil {
			s.logger.Warn().Err(err).Msg("Venue cache write failed")
		}
	}
	return venues, nil
}

func (s *VenueService) CreateVenue(ctx context.Context, venue *models.Venue) (*models.Venue, error) {
	venue.ApplyDefaults()
	if err := venue.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.CreateVenue(ctx, venue); err != nil {
		return nil, classify(err)
	}
	s.invalidate(ctx)

	s.logger.Info().Int64("venue_id", venue.ID).Str("name", venue.Name).Msg("Venue created")
	return venue, nil
}

// UpdateVenue merges the supplied fields into the stored venue.
func (s *VenueService) UpdateVenue(ctx context.Context, id int64, patch models.VenuePatch) (*models.Venue, error) {
	var updated *models.Venue
	err := s.repo.WithTx(ctx, func(tx domain.Store) error {
		venue, err := tx.GetVenue(ctx, id)
		if err != nil {
			return err
		}
		patch.Apply(venue)
		if err := venue.Validate(); err != nil {
			return err
		}
		if err := tx.UpdateVenue(ctx, venue); err != nil {
			return err
		}
		updated = venue
		return nil
	})
	if err != nil {
		return nil, classify(err)
	}
	s.invalidate(ctx)
	return updated, nil
}

// DeleteVenue is a no-op for an unknown id and refuses while active bookings reference the venue.
func (s *VenueService) DeleteVenue(ctx context.Context, id int64) error {
	deleted := false
	err := s.repo.WithTx(ctx, func(tx domain.Store) error {
		if _, err := tx.GetVenue(ctx, id); err != nil {
			if errors.Is(err, models.ErrNotFound) {
				return nil
			}
			return err
		}

		active, err := tx.CountActiveBookingsByVenue(ctx, id)
		if err != nil {
			return err
		}
		if active > 0 {
			return fmt.Errorf("%w: venue %d has %d active bookings", models.ErrInvalidState, id, active)
		}

		deleted, err = tx.DeleteVenue(ctx, id)
		return err
	})
	if err != nil {
		return classify(err)
	}
	if deleted {
		s.invalidate(ctx)
		s.logger.Info().Int64("venue_id", id).Msg("Venue deleted")
	}
	return nil
}

func (s *VenueService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Venue cache invalidation failed")
	}
}
