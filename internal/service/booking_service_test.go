package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"venuebook/internal/events"
	"venuebook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func slotRequest(venueID, slotID int64, requester string) *models.BookingRequest {
	return &models.BookingRequest{VenueID: venueID, SlotID: ptr(slotID), RequesterID: requester, ContactName: "Anna", ContactPhone: "+70000000000"}
}

func manualRequest(venueID int64, requester, date, start, end string) *models.BookingRequest {
	return &models.BookingRequest{VenueID: venueID, RequesterID: requester, Date: date, StartTime: start, EndTime: end}
}

func TestRequestBookingSlotScenario(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	bus := &mockPublisher{}
	bus.On("PublishJSON", events.EventBookingCreated, mock.Anything).Return(nil).Once()
	wake := &wakeCounter{}
	svc := NewBookingService(db, bus, wake, testLogger())

	venue := seedVenue(t, db, "Hall")
	slot := seedSlot(t, db, venue.ID, "2024-03-01", "09:00", "10:00")

	first, err := svc.RequestBooking(ctx, slotRequest(venue.ID, slot.ID, "A"))
	require.NoError(t, err)
	assert.True(t, first.Created())
	assert.Equal(t, models.StatusPending, first.Booking.Status)
	assert.Equal(t, "09:00", first.Booking.StartTime)

	_, err = svc.RequestBooking(ctx, slotRequest(venue.ID, slot.ID, "B"))
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrConflict)
	window, ok := models.OccupyingWindow(err)
	require.True(t, ok)
	assert.Equal(t, "09:00-10:00", window.String())

	again, err := svc.RequestBooking(ctx, slotRequest(venue.ID, slot.ID, "A"))
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeExisting, again.Outcome)
	assert.Equal(t, first.Booking.ID, again.Booking.ID)

	bus.AssertExpectations(t)
	assert.Equal(t, 1, wake.n)

	pending, err := db.GetPendingOutbox(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, events.EventBookingCreated, pending[0].EventType)
	assert.Equal(t, first.Booking.ID, pending[0].BookingID)
}

func TestRequestBookingManualScenario(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewBookingService(db, nil, nil, testLogger())
	venue := seedVenue(t, db, "Studio")

	_, err := svc.RequestBooking(ctx, manualRequest(venue.ID, "A", "2024-03-01", "09:00", "10:30"))
	require.NoError(t, err)

	_, err = svc.RequestBooking(ctx, manualRequest(venue.ID, "B", "2024-03-01", "10:00", "11:00"))
	require.Error(t, err)
	window, ok := models.OccupyingWindow(err)
	require.True(t, ok)
	assert.Equal(t, "09:00-10:30", window.String())

	touching, err := svc.RequestBooking(ctx, manualRequest(venue.ID, "B", "2024-03-01", "10:30", "11:00"))
	require.NoError(t, err)
	assert.True(t, touching.Created())
}

func TestRequestBookingPaddedDateSharesDay(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewBookingService(db, nil, nil, testLogger())
	venue := seedVenue(t, db, "Studio")

	first, err := svc.RequestBooking(ctx, manualRequest(venue.ID, "A", " 2024-03-01", "09:00", "10:30"))
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01", first.Booking.Date)

	_, err = svc.RequestBooking(ctx, manualRequest(venue.ID, "B", "2024-03-01", "10:00", "11:00"))
	assert.ErrorIs(t, err, models.ErrConflict)

	again, err := svc.RequestBooking(ctx, manualRequest(venue.ID, "A", "2024-03-01 ", "09:00", "10:30"))
	require.NoError(t, err)
	assert.Equal(t, first.Booking.ID, again.Booking.ID)

	stored, err := db.GetBooking(ctx, first.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01", stored.Date)
}

func TestRequestBookingValidation(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewBookingService(db, nil, nil, testLogger())
	venue := seedVenue(t, db, "Hall")

	tests := []struct {
		name string
		req  *models.BookingRequest
		want error
	}{
		{"missing requester", manualRequest(venue.ID, "", "2024-03-01", "09:00", "10:00"), models.ErrInvalidArgument},
		{"reversed window", manualRequest(venue.ID, "A", "2024-03-01", "11:00", "10:00"), models.ErrInvalidArgument},
		{"empty window", manualRequest(venue.ID, "A", "2024-03-01", "10:00", "10:00"), models.ErrInvalidArgument},
		{"bad date", manualRequest(venue.ID, "A", "01.03.2024", "09:00", "10:00"), models.ErrInvalidArgument},
		{"unknown venue", manualRequest(venue.ID+100, "A", "2024-03-01", "09:00", "10:00"), models.ErrNotFound},
		{"unknown slot", slotRequest(venue.ID, 999, "A"), models.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.RequestBooking(ctx, tt.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRequestBookingBlockedSlot(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewBookingService(db, nil, nil, testLogger())
	venue := seedVenue(t, db, "Hall")
	slot := seedSlot(t, db, venue.ID, "2024-03-01", "09:00", "10:00")
	slot.Status = models.SlotStatusBlocked
	require.NoError(t, db.UpdateSlot(ctx, slot))

	_, err := svc.RequestBooking(ctx, slotRequest(venue.ID, slot.ID, "A"))
	assert.ErrorIs(t, err, models.ErrInvalidState)
}

func TestRequestBookingConcurrentManual(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewBookingService(db, nil, nil, testLogger())
	venue := seedVenue(t, db, "Hall")

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		created   int
		conflicts int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			requester := string(rune('A' + i))
			res, err := svc.RequestBooking(ctx, manualRequest(venue.ID, requester, "2024-03-01", "09:00", "10:00"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil && res.Created():
				created++
			case errors.Is(err, models.ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected result: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, workers-1, conflicts)
}

func TestAuditBooking(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	bus := &mockPublisher{}
	bus.On("PublishJSON", mock.Anything, mock.Anything).Return(nil)
	wake := &wakeCounter{}
	svc := NewBookingService(db, bus, wake, testLogger())
	venue := seedVenue(t, db, "Hall")

	res, err := svc.RequestBooking(ctx, manualRequest(venue.ID, "A", "2024-03-01", "09:00", "10:00"))
	require.NoError(t, err)

	approved, err := svc.AuditBooking(ctx, res.Booking.ID, models.StatusApproved)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, approved.Status)
	assert.Equal(t, res.Booking.Version+1, approved.Version)
	bus.AssertCalled(t, "PublishJSON", events.EventBookingApproved, mock.Anything)

	// повторное одобрение ничего не меняет
	again, err := svc.AuditBooking(ctx, res.Booking.ID, models.StatusApproved)
	require.NoError(t, err)
	assert.Equal(t, approved.Version, again.Version)
	assert.Equal(t, 2, wake.n)

	_, err = svc.AuditBooking(ctx, res.Booking.ID, models.StatusRejected)
	assert.ErrorIs(t, err, models.ErrInvalidState)

	_, err = svc.AuditBooking(ctx, res.Booking.ID, models.StatusCancelled)
	assert.ErrorIs(t, err, models.ErrInvalidArgument)

	before, err := db.GetPendingOutbox(ctx, 100)
	require.NoError(t, err)

	_, err = svc.AuditBooking(ctx, 9999, models.StatusApproved)
	assert.ErrorIs(t, err, models.ErrNotFound)

	after, err := db.GetPendingOutbox(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, after, len(before), "missing booking writes no event")
	assert.Equal(t, 2, wake.n)
}

func TestRejectedBookingFreesWindow(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewBookingService(db, nil, nil, testLogger())
	venue := seedVenue(t, db, "Hall")
	slot := seedSlot(t, db, venue.ID, "2024-03-01", "09:00", "10:00")

	res, err := svc.RequestBooking(ctx, slotRequest(venue.ID, slot.ID, "A"))
	require.NoError(t, err)

	_, err = svc.AuditBooking(ctx, res.Booking.ID, models.StatusRejected)
	require.NoError(t, err)

	other, err := svc.RequestBooking(ctx, slotRequest(venue.ID, slot.ID, "B"))
	require.NoError(t, err)
	assert.True(t, other.Created())
	assert.NotEqual(t, res.Booking.ID, other.Booking.ID)
}

func TestCancelBooking(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewBookingService(db, nil, nil, testLogger())
	venue := seedVenue(t, db, "Hall")

	res, err := svc.RequestBooking(ctx, manualRequest(venue.ID, "A", "2024-03-01", "09:00", "10:00"))
	require.NoError(t, err)

	_, err = svc.CancelBooking(ctx, res.Booking.ID, "B")
	assert.ErrorIs(t, err, models.ErrNotFound)

	cancelled, err := svc.CancelBooking(ctx, res.Booking.ID, "A")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, cancelled.Status)

	_, err = svc.AuditBooking(ctx, res.Booking.ID, models.StatusApproved)
	assert.ErrorIs(t, err, models.ErrInvalidState)

	// окно снова свободно
	next, err := svc.RequestBooking(ctx, manualRequest(venue.ID, "B", "2024-03-01", "09:30", "10:30"))
	require.NoError(t, err)
	assert.True(t, next.Created())
}

func TestListBookings(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewBookingService(db, nil, nil, testLogger())
	venue := seedVenue(t, db, "Hall")

	_, err := svc.RequestBooking(ctx, manualRequest(venue.ID, "A", "2024-03-01", "09:00", "10:00"))
	require.NoError(t, err)
	_, err = svc.RequestBooking(ctx, manualRequest(venue.ID, "B", "2024-03-02", "09:00", "10:00"))
	require.NoError(t, err)

	own, err := svc.ListBookings(ctx, "A", false)
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, "Hall", own[0].VenueName)

	all, err := svc.ListBookings(ctx, "", true)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = svc.ListBookings(ctx, "", false)
	assert.ErrorIs(t, err, models.ErrInvalidArgument)
}

func TestGetBookingsByDateRange(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewBookingService(db, nil, nil, testLogger())
	venue := seedVenue(t, db, "Hall")

	for _, date := range []string{"2024-03-01", "2024-03-05", "2024-03-10"} {
		_, err := svc.RequestBooking(ctx, manualRequest(venue.ID, "A", date, "09:00", "10:00"))
		require.NoError(t, err)
	}

	bookings, err := svc.GetBookingsByDateRange(ctx, "2024-03-01", "2024-03-05")
	require.NoError(t, err)
	assert.Len(t, bookings, 2)

	_, err = svc.GetBookingsByDateRange(ctx, "2024-03-05", "2024-03-01")
	assert.ErrorIs(t, err, models.ErrInvalidArgument)
}

func TestClassify(t *testing.T) {
	assert.NoError(t, classify(nil))
	assert.ErrorIs(t, classify(errors.New("disk I/O error")), models.ErrStoreFailure)

	conflict := &models.ConflictError{}
	assert.Same(t, conflict, classify(conflict))

	wrapped := classify(context.Canceled)
	assert.ErrorIs(t, wrapped, models.ErrStoreFailure)
	assert.ErrorIs(t, wrapped, context.Canceled)
}
