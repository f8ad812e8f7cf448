package service

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"venuebook/internal/config"
	"venuebook/internal/database"
	"venuebook/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.NewDB(config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "service.db")}, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func seedVenue(t *testing.T, db *database.DB, name string) *models.Venue {
	t.Helper()
	v := &models.Venue{Name: name}
	v.ApplyDefaults()
	require.NoError(t, db.CreateVenue(context.Background(), v))
	return v
}

func seedSlot(t *testing.T, db *database.DB, venueID int64, date, start, end string) *models.VenueSlot {
	t.Helper()
	s := &models.VenueSlot{VenueID: venueID, Date: date, StartTime: start, EndTime: end, Status: models.SlotStatusOpen}
	require.NoError(t, db.CreateSlot(context.Background(), s))
	return s
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishJSON(eventType string, payload interface{}) error {
	args := m.Called(eventType, payload)
	return args.Error(0)
}

type wakeCounter struct {
	n int
}

func (w *wakeCounter) Wake() { w.n++ }

type mockCache struct {
	mock.Mock
}

func (m *mockCache) GetVenues(ctx context.Context) ([]*models.Venue, bool, error) {
	args := m.Called(ctx)
	venues, _ := args.Get(0).([]*models.Venue)
	return venues, args.Bool(1), args.Error(2)
}

func (m *mockCache) SetVenues(ctx context.Context, venues []*models.Venue) error {
	args := m.Called(ctx, venues)
	return args.Error(0)
}

func (m *mockCache) Invalidate(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func ptr[T any](v T) *T { return &v }
