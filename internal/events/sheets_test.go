package events

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

func setupSheetsMock(t *testing.T) (*http.ServeMux, *SheetsSink) {
	t.Helper()
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	srv, err := sheets.NewService(context.Background(), option.WithEndpoint(server.URL), option.WithoutAuthentication())
	require.NoError(t, err)

	sink := newSheetsSink(srv, "bookings_tid", "")
	sink.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	return mux, sink
}

func bookingPayload(t *testing.T, id int64, status string) []byte {
	t.Helper()
	slotID := int64(3)
	raw, err := json.Marshal(BookingEventPayload{
		BookingID:   id,
		VenueID:     1,
		SlotID:      &slotID,
		Mode:        "slot",
		RequesterID: "A",
		Date:        "2024-03-01",
		StartTime:   "09:00",
		EndTime:     "10:00",
		Status:      status,
		Version:     1,
	})
	require.NoError(t, err)
	return raw
}

func TestSheetsSinkAppendsNewBooking(t *testing.T) {
	mux, sink := setupSheetsMock(t)

	mux.HandleFunc("/v4/spreadsheets/bookings_tid/values/Bookings!A:A", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.ValueRange{Values: [][]interface{}{{"booking_id"}}})
	})

	var appended sheets.ValueRange
	mux.HandleFunc("/v4/spreadsheets/bookings_tid/values/Bookings!A:A:append", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "RAW", r.URL.Query().Get("valueInputOption"))
		_ = json.NewDecoder(r.Body).Decode(&appended)
		_ = json.NewEncoder(w).Encode(sheets.AppendValuesResponse{})
	})

	require.NoError(t, sink.Deliver(context.Background(), EventBookingCreated, bookingPayload(t, 7, "pending")))

	require.Len(t, appended.Values, 1)
	row := appended.Values[0]
	require.Len(t, row, 11)
	assert.Equal(t, float64(7), row[0])
	assert.Equal(t, float64(3), row[2])
	assert.Equal(t, "09:00-10:00", row[6])
	assert.Equal(t, "pending", row[7])
	assert.Equal(t, "2024-03-01 12:00:00", row[10])
}

func TestSheetsSinkUpdatesExistingRow(t *testing.T) {
	mux, sink := setupSheetsMock(t)

	var mu sync.Mutex
	gets := 0
	mux.HandleFunc("/v4/spreadsheets/bookings_tid/values/Bookings!A:A", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		gets++
		mu.Unlock()
		_ = json.NewEncoder(w).Encode(sheets.ValueRange{Values: [][]interface{}{{"booking_id"}, {"5"}}})
	})

	var statuses []interface{}
	mux.HandleFunc("/v4/spreadsheets/bookings_tid/values/Bookings!A2:K2", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		var body sheets.ValueRange
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		statuses = append(statuses, body.Values[0][7])
		mu.Unlock()
		_ = json.NewEncoder(w).Encode(sheets.UpdateValuesResponse{})
	})

	ctx := context.Background()
	require.NoError(t, sink.Deliver(ctx, EventBookingApproved, bookingPayload(t, 5, "approved")))
	require.NoError(t, sink.Deliver(ctx, EventBookingCancelled, bookingPayload(t, 5, "cancelled")))

	assert.Equal(t, []interface{}{"approved", "cancelled"}, statuses)
	assert.Equal(t, 1, gets, "row index is cached after the first lookup")
}

func TestSheetsSinkErrors(t *testing.T) {
	mux, sink := setupSheetsMock(t)
	mux.HandleFunc("/v4/spreadsheets/bookings_tid/values/Bookings!A:A", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":403,"message":"forbidden"}}`, http.StatusForbidden)
	})

	ctx := context.Background()
	assert.Error(t, sink.Deliver(ctx, EventBookingCreated, bookingPayload(t, 1, "pending")))
	assert.Error(t, sink.Deliver(ctx, EventBookingCreated, []byte(`not json`)))
	assert.Error(t, sink.Deliver(ctx, EventBookingCreated, []byte(`{}`)))
}

func TestSheetsSinkTestConnection(t *testing.T) {
	mux, sink := setupSheetsMock(t)
	mux.HandleFunc("/v4/spreadsheets/bookings_tid/values/Bookings!A1", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.ValueRange{Values: [][]interface{}{{"booking_id"}}})
	})
	assert.NoError(t, sink.TestConnection(context.Background()))
}

func TestCellID(t *testing.T) {
	assert.Equal(t, int64(12), cellID(float64(12)))
	assert.Equal(t, int64(12), cellID("12"))
	assert.Equal(t, int64(0), cellID("booking_id"))
	assert.Equal(t, int64(0), cellID(nil))
}

func TestNewSheetsSinkMissingCredentials(t *testing.T) {
	_, err := NewSheetsSink(context.Background(), "/nonexistent/credentials.json", "tid", "Bookings")
	assert.Error(t, err)
}
