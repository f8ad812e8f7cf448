package database

import (
	"context"
	"fmt"
	"time"

	"venuebook/internal/models"
)

const venueColumns = `id, name, category, location, capacity, status, open_hours, image_url, description, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanVenue(row rowScanner) (*models.Venue, error) {
	v := &models.Venue{}
	err := row.Scan(
		&v.ID, &v.Name, &v.Category, &v.Location, &v.Capacity, &v.Status,
		&v.OpenHours, &v.ImageURL, &v.Description, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (s *store) GetVenue(ctx context.Context, id int64) (*models.Venue, error) {
	query := `SELECT ` + venueColumns + ` FROM venues WHERE id = ?`
	v, err := scanVenue(s.q.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(err, "venue", id)
	}
	return v, nil
}

func (s *store) ListVenues(ctx context.Context) ([]*models.Venue, error) {
	query := `SELECT ` + venueColumns + ` FROM venues ORDER BY id ASC`
	rows, err := s.q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list venues: %w", err)
	}
	defer rows.Close()

	venues := make([]*models.Venue, 0)
	for rows.Next() {
		v, err := scanVenue(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan venue: %w", err)
		}
		venues = append(venues, v)
	}
	return venues, rows.Err()
}

func (s *store) CreateVenue(ctx context.Context, venue *models.Venue) error {
	query := `INSERT INTO venues (
				name, category, location, capacity, status, open_hours,
				image_url, description, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := s.q.ExecContext(ctx, query,
		venue.Name,
		venue.Category,
		venue.Location,
		venue.Capacity,
		venue.Status,
		venue.OpenHours,
		venue.ImageURL,
		venue.Description,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create venue: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	venue.ID = id
	venue.CreatedAt = now
	venue.UpdatedAt = now
	return nil
}

func (s *store) UpdateVenue(ctx context.Context, venue *models.Venue) error {
	query := `UPDATE venues SET name = ?, category = ?, location = ?, capacity = ?, status = ?,
				open_hours = ?, image_url = ?, description = ?, updated_at = ?
			WHERE id = ?`
	now := time.Now()
	result, err := s.q.ExecContext(ctx, query,
		venue.Name,
		venue.Category,
		venue.Location,
		venue.Capacity,
		venue.Status,
		venue.OpenHours,
		venue.ImageURL,
		venue.Description,
		now,
		venue.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update venue: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("%w: venue %d", models.ErrNotFound, venue.ID)
	}
	venue.UpdatedAt = now
	return nil
}

// DeleteVenue reports whether a row was removed.
func (s *store) DeleteVenue(ctx context.Context, id int64) (bool, error) {
	result, err := s.q.ExecContext(ctx, `DELETE FROM venues WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete venue: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

func (s *store) CountActiveBookingsByVenue(ctx context.Context, venueID int64) (int, error) {
	in, args := statusArgs(models.ActiveStatuses)
	query := `SELECT COUNT(*) FROM venue_bookings WHERE venue_id = ? AND status IN (` + in + `)`
	var count int
	err := s.q.QueryRowContext(ctx, query, append([]interface{}{venueID}, args...)...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count venue bookings: %w", err)
	}
	return count, nil
}

// SeedVenues inserts every venue whose name is not registered yet and returns how many were added.
func (db *DB) SeedVenues(ctx context.Context, venues []models.Venue) (int, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	ts := &store{q: tx}
	created := 0
	for i := range venues {
		v := venues[i]
		v.ApplyDefaults()
		if err := v.Validate(); err != nil {
			return 0, fmt.Errorf("seed venue %q: %w", v.Name, err)
		}

		var exists int
		err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM venues WHERE name = ?`, v.Name).Scan(&exists)
		if err != nil {
			return 0, fmt.Errorf("failed to check venue %q: %w", v.Name, err)
		}
		if exists > 0 {
			continue
		}
		if err := ts.CreateVenue(ctx, &v); err != nil {
			return 0, err
		}
		created++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit seed: %w", err)
	}
	if created > 0 {
		db.logger.Info().Int("count", created).Msg("Venues seeded")
	}
	return created, nil
}
