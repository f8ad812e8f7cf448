package database

import (
	"context"
	"fmt"
	"time"

	"venuebook/internal/models"
)

const slotColumns = `id, venue_id, slot_date, start_time, end_time, status, created_at, updated_at`

func scanSlot(row rowScanner) (*models.VenueSlot, error) {
	s := &models.VenueSlot{}
	err := row.Scan(&s.ID, &s.VenueID, &s.Date, &s.StartTime, &s.EndTime, &s.Status, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *store) GetSlot(ctx context.Context, id int64) (*models.VenueSlot, error) {
	query := `SELECT ` + slotColumns + ` FROM venue_slots WHERE id = ?`
	slot, err := scanSlot(s.q.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(err, "slot", id)
	}
	return slot, nil
}

// ListSlots returns venue slots ordered by date and start; an empty date means all dates.
func (s *store) ListSlots(ctx context.Context, venueID int64, date string) ([]*models.VenueSlot, error) {
	query := `SELECT ` + slotColumns + ` FROM venue_slots WHERE venue_id = ?`
	args := []interface{}{venueID}
	if date != "" {
		query += ` AND slot_date = ?`
		args = append(args, date)
	}
	query += ` ORDER BY slot_date ASC, start_time ASC, id ASC`

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list slots: %w", err)
	}
	defer rows.Close()

	slots := make([]*models.VenueSlot, 0)
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan slot: %w", err)
		}
		slots = append(slots, slot)
	}
	return slots, rows.Err()
}

func (s *store) ListOpenSlotDates(ctx context.Context, venueID int64) ([]string, error) {
	query := `SELECT DISTINCT slot_date FROM venue_slots WHERE venue_id = ? AND status = ? ORDER BY slot_date ASC`
	rows, err := s.q.QueryContext(ctx, query, venueID, models.SlotStatusOpen)
	if err != nil {
		return nil, fmt.Errorf("failed to list slot dates: %w", err)
	}
	defer rows.Close()

	dates := make([]string, 0)
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("failed to scan slot date: %w", err)
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

func (s *store) CreateSlot(ctx context.Context, slot *models.VenueSlot) error {
	query := `INSERT INTO venue_slots (venue_id, slot_date, start_time, end_time, status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := s.q.ExecContext(ctx, query,
		slot.VenueID, slot.Date, slot.StartTime, slot.EndTime, slot.Status, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create slot: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	slot.ID = id
	slot.CreatedAt = now
	slot.UpdatedAt = now
	return nil
}

func (s *store) UpdateSlot(ctx context.Context, slot *models.VenueSlot) error {
	query := `UPDATE venue_slots SET slot_date = ?, start_time = ?, end_time = ?, status = ?, updated_at = ? WHERE id = ?`
	now := time.Now()
	result, err := s.q.ExecContext(ctx, query, slot.Date, slot.StartTime, slot.EndTime, slot.Status, now, slot.ID)
	if err != nil {
		return fmt.Errorf("failed to update slot: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("%w: slot %d", models.ErrNotFound, slot.ID)
	}
	slot.UpdatedAt = now
	return nil
}

func (s *store) DeleteSlot(ctx context.Context, id int64) (bool, error) {
	result, err := s.q.ExecContext(ctx, `DELETE FROM venue_slots WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete slot: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

func (s *store) CountActiveBookingsBySlot(ctx context.Context, slotID int64) (int, error) {
	in, args := statusArgs(models.ActiveStatuses)
	query := `SELECT COUNT(*) FROM venue_bookings WHERE slot_id = ? AND status IN (` + in + `)`
	var count int
	err := s.q.QueryRowContext(ctx, query, append([]interface{}{slotID}, args...)...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count slot bookings: %w", err)
	}
	return count, nil
}
