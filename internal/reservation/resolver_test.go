package reservation

import (
	"context"
	"testing"

	"venuebook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLedger хранит площадки, слоты и брони в памяти и сам сохраняет принятые решения
type fakeLedger struct {
	venues   map[int64]*models.Venue
	slots    map[int64]*models.VenueSlot
	bookings []*models.Booking
	nextID   int64
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		venues: map[int64]*models.Venue{
			1: {ID: 1, Name: "Hall", Status: models.VenueStatusOpen},
			2: {ID: 2, Name: "Court", Status: models.VenueStatusMaintenance},
		},
		slots: map[int64]*models.VenueSlot{
			10: {ID: 10, VenueID: 1, Date: "2024-03-01", StartTime: "09:00", EndTime: "10:00", Status: models.SlotStatusOpen},
			11: {ID: 11, VenueID: 1, Date: "2024-03-01", StartTime: "10:00", EndTime: "11:00", Status: models.SlotStatusBlocked},
			12: {ID: 12, VenueID: 1, Date: "2024-03-01", StartTime: "12:00", EndTime: "13:00", Status: models.SlotStatusOpen},
		},
	}
}

func (f *fakeLedger) GetVenue(_ context.Context, id int64) (*models.Venue, error) {
	v, ok := f.venues[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return v, nil
}

func (f *fakeLedger) GetSlot(_ context.Context, id int64) (*models.VenueSlot, error) {
	s, ok := f.slots[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return s, nil
}

func (f *fakeLedger) ListBookingsBySlot(_ context.Context, slotID int64, statuses []string) ([]*models.Booking, error) {
	var out []*models.Booking
	for _, b := range f.bookings {
		if b.SlotID != nil && *b.SlotID == slotID && contains(statuses, b.Status) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeLedger) ListBookingsByVenueDate(_ context.Context, venueID int64, date string, statuses []string) ([]*models.Booking, error) {
	var out []*models.Booking
	for _, b := range f.bookings {
		if b.VenueID == venueID && b.Date == date && contains(statuses, b.Status) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeLedger) request(t *testing.T, req *models.BookingRequest) (*Decision, error) {
	t.Helper()
	d, err := Resolve(context.Background(), f, req)
	if err != nil {
		return nil, err
	}
	if d.Created() {
		f.nextID++
		d.Booking.ID = f.nextID
		f.bookings = append(f.bookings, d.Booking)
	}
	return d, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func slotReq(requester string, slotID int64) *models.BookingRequest {
	return &models.BookingRequest{VenueID: 1, RequesterID: requester, SlotID: &slotID}
}

func manualReq(requester, start, end string) *models.BookingRequest {
	return &models.BookingRequest{VenueID: 1, RequesterID: requester, Date: "2024-03-01", StartTime: start, EndTime: end}
}

func TestSlotBookingScenario(t *testing.T) {
	ledger := newFakeLedger()

	first, err := ledger.request(t, slotReq("A", 10))
	require.NoError(t, err)
	require.True(t, first.Created())
	assert.Equal(t, models.StatusPending, first.Booking.Status)
	assert.Equal(t, "2024-03-01", first.Booking.Date)
	assert.Equal(t, "09:00", first.Booking.StartTime)
	assert.Equal(t, "10:00", first.Booking.EndTime)

	_, err = ledger.request(t, slotReq("B", 10))
	require.ErrorIs(t, err, models.ErrConflict)
	window, ok := models.OccupyingWindow(err)
	require.True(t, ok)
	assert.Equal(t, "09:00-10:00", window.String())

	again, err := ledger.request(t, slotReq("A", 10))
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeExisting, again.Outcome)
	assert.Equal(t, first.Booking.ID, again.Booking.ID)
	assert.Len(t, ledger.bookings, 1)
}

func TestSlotBookingAfterRejectionIsFree(t *testing.T) {
	ledger := newFakeLedger()

	first, err := ledger.request(t, slotReq("A", 10))
	require.NoError(t, err)
	first.Booking.Status = models.StatusRejected

	second, err := ledger.request(t, slotReq("B", 10))
	require.NoError(t, err)
	assert.True(t, second.Created())
	assert.NotEqual(t, first.Booking.ID, second.Booking.ID)
}

func TestBlockedSlotAlwaysInvalidState(t *testing.T) {
	ledger := newFakeLedger()

	_, err := ledger.request(t, slotReq("A", 11))
	assert.ErrorIs(t, err, models.ErrInvalidState)

	// даже если у заявителя уже есть бронь на этот слот
	slotID := int64(11)
	ledger.bookings = append(ledger.bookings, &models.Booking{
		ID: 99, VenueID: 1, SlotID: &slotID, RequesterID: "A",
		Date: "2024-03-01", StartTime: "10:00", EndTime: "11:00", Status: models.StatusApproved,
	})
	_, err = ledger.request(t, slotReq("A", 11))
	assert.ErrorIs(t, err, models.ErrInvalidState)
}

func TestSlotNotFound(t *testing.T) {
	ledger := newFakeLedger()

	_, err := ledger.request(t, slotReq("A", 404))
	assert.ErrorIs(t, err, models.ErrNotFound)

	ledger.venues[3] = &models.Venue{ID: 3, Name: "Other", Status: models.VenueStatusOpen}
	slotID := int64(10)
	_, err = ledger.request(t, &models.BookingRequest{VenueID: 3, RequesterID: "A", SlotID: &slotID})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestVenueChecks(t *testing.T) {
	ledger := newFakeLedger()

	_, err := ledger.request(t, &models.BookingRequest{VenueID: 42, RequesterID: "A", Date: "2024-03-01", StartTime: "09:00", EndTime: "10:00"})
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = ledger.request(t, &models.BookingRequest{VenueID: 2, RequesterID: "A", Date: "2024-03-01", StartTime: "09:00", EndTime: "10:00"})
	assert.ErrorIs(t, err, models.ErrInvalidState)
}

func TestManualBookingScenario(t *testing.T) {
	ledger := newFakeLedger()
	delete(ledger.slots, 10)

	a, err := ledger.request(t, manualReq("A", "09:00", "10:30"))
	require.NoError(t, err)
	require.True(t, a.Created())
	assert.Nil(t, a.Booking.SlotID)

	_, err = ledger.request(t, manualReq("B", "10:00", "11:00"))
	require.ErrorIs(t, err, models.ErrConflict)
	window, _ := models.OccupyingWindow(err)
	assert.Equal(t, "09:00-10:30", window.String())

	touching, err := ledger.request(t, manualReq("B", "10:30", "11:00"))
	require.NoError(t, err)
	assert.True(t, touching.Created())
	assert.Len(t, ledger.bookings, 2)
}

func TestManualIdempotentHit(t *testing.T) {
	ledger := newFakeLedger()

	a, err := ledger.request(t, manualReq("A", "14:00", "15:00"))
	require.NoError(t, err)
	a.Booking.Status = models.StatusApproved

	again, err := ledger.request(t, manualReq("A", "14:00", "15:00"))
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeExisting, again.Outcome)
	assert.Equal(t, a.Booking.ID, again.Booking.ID)

	partial, err := ledger.request(t, manualReq("A", "14:30", "15:30"))
	require.NoError(t, err)
	assert.Equal(t, a.Booking.ID, partial.Booking.ID)
	assert.Len(t, ledger.bookings, 1)
}

func TestManualInvalidWindow(t *testing.T) {
	ledger := newFakeLedger()

	_, err := ledger.request(t, manualReq("A", "10:00", "09:00"))
	assert.ErrorIs(t, err, models.ErrInvalidArgument)

	_, err = ledger.request(t, manualReq("A", "10:00", "10:00"))
	assert.ErrorIs(t, err, models.ErrInvalidArgument)
}

func TestCrossModeConflicts(t *testing.T) {
	ledger := newFakeLedger()

	// ручная бронь перекрывает слот 10
	_, err := ledger.request(t, manualReq("A", "09:30", "09:45"))
	require.NoError(t, err)

	_, err = ledger.request(t, slotReq("B", 10))
	require.ErrorIs(t, err, models.ErrConflict)
	window, _ := models.OccupyingWindow(err)
	assert.Equal(t, "09:30-09:45", window.String())

	// ручная бронь того же заявителя тоже мешает слоту
	_, err = ledger.request(t, slotReq("A", 10))
	assert.ErrorIs(t, err, models.ErrConflict)

	// слотовая бронь блокирует ручную на пересекающееся время
	_, err = ledger.request(t, slotReq("B", 12))
	require.NoError(t, err)
	_, err = ledger.request(t, manualReq("C", "12:30", "13:30"))
	require.ErrorIs(t, err, models.ErrConflict)
	window, _ = models.OccupyingWindow(err)
	assert.Equal(t, "12:00-13:00", window.String())
}

func TestActiveBookingsNeverOverlap(t *testing.T) {
	ledger := newFakeLedger()
	requesters := []string{"A", "B", "C"}
	windows := [][2]string{
		{"08:00", "09:00"}, {"08:30", "09:30"}, {"09:00", "10:00"}, {"09:15", "09:45"},
		{"10:00", "12:00"}, {"11:59", "12:01"}, {"12:00", "12:30"}, {"07:00", "23:00"},
	}

	for i, w := range windows {
		for _, r := range requesters {
			_, _ = ledger.request(t, manualReq(r, w[0], w[1]))
		}
		_, _ = ledger.request(t, slotReq(requesters[i%len(requesters)], 10))
		_, _ = ledger.request(t, slotReq(requesters[(i+1)%len(requesters)], 12))
	}

	for i, a := range ledger.bookings {
		for _, b := range ledger.bookings[i+1:] {
			if a.RequesterID == b.RequesterID {
				continue
			}
			wa, err := a.Window()
			require.NoError(t, err)
			wb, err := b.Window()
			require.NoError(t, err)
			assert.False(t, wa.Overlaps(wb), "bookings %d and %d overlap", a.ID, b.ID)
		}
	}
}

func TestSlotAvailable(t *testing.T) {
	slot := &models.VenueSlot{ID: 10, VenueID: 1, Date: "2024-03-01", StartTime: "09:00", EndTime: "10:00", Status: models.SlotStatusOpen}

	assert.True(t, SlotAvailable(slot, nil))

	cancelled := &models.Booking{ID: 1, Date: "2024-03-01", StartTime: "09:00", EndTime: "10:00", Status: models.StatusCancelled}
	assert.True(t, SlotAvailable(slot, []*models.Booking{cancelled}))

	touching := &models.Booking{ID: 2, Date: "2024-03-01", StartTime: "10:00", EndTime: "11:00", Status: models.StatusPending}
	assert.True(t, SlotAvailable(slot, []*models.Booking{touching}))

	manual := &models.Booking{ID: 3, Date: "2024-03-01", StartTime: "09:45", EndTime: "10:15", Status: models.StatusApproved}
	assert.False(t, SlotAvailable(slot, []*models.Booking{manual}))

	blocked := *slot
	blocked.Status = models.SlotStatusBlocked
	assert.False(t, SlotAvailable(&blocked, nil))
}
