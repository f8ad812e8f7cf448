package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"venuebook/internal/models"
)

const bookingColumns = `b.id, b.venue_id, b.slot_id, b.requester_id, b.contact_name, b.contact_phone,
	b.book_date, b.start_time, b.end_time, b.reason, b.status, b.version, b.created_at, b.updated_at`

func scanBooking(row rowScanner, withVenue bool) (*models.Booking, error) {
	b := &models.Booking{}
	var slotID sql.NullInt64
	dest := []interface{}{
		&b.ID, &b.VenueID, &slotID, &b.RequesterID, &b.ContactName, &b.ContactPhone,
		&b.Date, &b.StartTime, &b.EndTime, &b.Reason, &b.Status, &b.Version, &b.CreatedAt, &b.UpdatedAt,
	}
	var venueName, venueLocation sql.NullString
	if withVenue {
		dest = append(dest, &venueName, &venueLocation)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	if slotID.Valid {
		id := slotID.Int64
		b.SlotID = &id
	}
	b.VenueName = venueName.String
	b.VenueLocation = venueLocation.String
	return b, nil
}

func (s *store) queryBookings(ctx context.Context, withVenue bool, query string, args ...interface{}) ([]*models.Booking, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bookings := make([]*models.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows, withVenue)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

func (s *store) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM venue_bookings b WHERE b.id = ?`
	b, err := scanBooking(s.q.QueryRowContext(ctx, query, id), false)
	if err != nil {
		return nil, notFound(err, "booking", id)
	}
	return b, nil
}

// CreateBooking inserts the booking at version 1. A second active booking
// for the same slot fails with ErrSlotTaken.
func (s *store) CreateBooking(ctx context.Context, booking *models.Booking) error {
	query := `INSERT INTO venue_bookings (
				venue_id, slot_id, requester_id, contact_name, contact_phone,
				book_date, start_time, end_time, reason, status, version, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()

	var slotID sql.NullInt64
	if booking.SlotID != nil {
		slotID = sql.NullInt64{Int64: *booking.SlotID, Valid: true}
	}

	result, err := s.q.ExecContext(ctx, query,
		booking.VenueID,
		slotID,
		booking.RequesterID,
		booking.ContactName,
		booking.ContactPhone,
		booking.Date,
		booking.StartTime,
		booking.EndTime,
		booking.Reason,
		booking.Status,
		1,
		now,
		now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrSlotTaken
		}
		return fmt.Errorf("failed to create booking: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	booking.ID = id
	booking.CreatedAt = now
	booking.UpdatedAt = now
	booking.Version = 1
	return nil
}

func (s *store) ListBookingsBySlot(ctx context.Context, slotID int64, statuses []string) ([]*models.Booking, error) {
	in, args := statusArgs(statuses)
	query := `SELECT ` + bookingColumns + ` FROM venue_bookings b
			WHERE b.slot_id = ? AND b.status IN (` + in + `)
			ORDER BY b.id ASC`
	bookings, err := s.queryBookings(ctx, false, query, append([]interface{}{slotID}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to list slot bookings: %w", err)
	}
	return bookings, nil
}

// ListBookingsByVenueDate returns bookings in start order, so the first overlap is the earliest one.
func (s *store) ListBookingsByVenueDate(ctx context.Context, venueID int64, date string, statuses []string) ([]*models.Booking, error) {
	in, args := statusArgs(statuses)
	query := `SELECT ` + bookingColumns + ` FROM venue_bookings b
			WHERE b.venue_id = ? AND b.book_date = ? AND b.status IN (` + in + `)
			ORDER BY b.start_time ASC, b.id ASC`
	bookings, err := s.queryBookings(ctx, false, query, append([]interface{}{venueID, date}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to list venue bookings: %w", err)
	}
	return bookings, nil
}

// ListBookings joins venue name and location; all=false scopes to one requester.
func (s *store) ListBookings(ctx context.Context, requesterID string, all bool) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + `, v.name, v.location
			FROM venue_bookings b
			LEFT JOIN venues v ON v.id = b.venue_id`
	var args []interface{}
	if !all {
		query += ` WHERE b.requester_id = ?`
		args = append(args, requesterID)
	}
	query += ` ORDER BY b.book_date DESC, b.start_time ASC, b.id ASC`

	bookings, err := s.queryBookings(ctx, true, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return bookings, nil
}

func (s *store) GetBookingsByDateRange(ctx context.Context, start, end string) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + `, v.name, v.location
			FROM venue_bookings b
			LEFT JOIN venues v ON v.id = b.venue_id
			WHERE b.book_date >= ? AND b.book_date <= ?
			ORDER BY b.book_date ASC, b.start_time ASC, b.id ASC`
	bookings, err := s.queryBookings(ctx, true, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to get bookings by date range: %w", err)
	}
	return bookings, nil
}

func (s *store) UpdateBookingStatusWithVersion(ctx context.Context, id, fromVersion int64, status string) error {
	query := `UPDATE venue_bookings SET status = ?, version = version + 1, updated_at = ? WHERE id = ? AND version = ?`
	result, err := s.q.ExecContext(ctx, query, status, time.Now(), id, fromVersion)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrSlotTaken
		}
		return fmt.Errorf("failed to update booking status: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrConcurrentModification
	}
	return nil
}
