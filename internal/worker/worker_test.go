package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"venuebook/internal/config"
	"venuebook/internal/database"
	"venuebook/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	mu        sync.Mutex
	err       error
	delivered []string
}

func (f *fakeSink) Deliver(_ context.Context, eventType string, _ []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.delivered = append(f.delivered, eventType)
	return nil
}

func (f *fakeSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.delivered)
}

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := database.NewDB(config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "worker.db")}, &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func enqueue(t *testing.T, db *database.DB, eventType, payload string) *models.OutboxMessage {
	t.Helper()
	msg := &models.OutboxMessage{EventType: eventType, BookingID: 1, Payload: payload}
	require.NoError(t, db.CreateOutboxMessage(context.Background(), msg))
	return msg
}

func loadStatus(t *testing.T, db *database.DB, id int64) (string, int) {
	t.Helper()
	var status string
	var retries int
	err := db.QueryRow(`SELECT status, retry_count FROM outbox WHERE id = ?`, id).Scan(&status, &retries)
	require.NoError(t, err)
	return status, retries
}

func TestProcessBatchSuccess(t *testing.T) {
	db := newTestDB(t)
	sink := &fakeSink{}
	w := NewOutboxWorker(db, sink, Options{}, nil)

	msg := enqueue(t, db, "booking.created", `{"booking_id":1}`)

	n, err := w.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, sink.count())

	status, retries := loadStatus(t, db, msg.ID)
	assert.Equal(t, models.OutboxCompleted, status)
	assert.Zero(t, retries)
}

func TestProcessBatchRetry(t *testing.T) {
	db := newTestDB(t)
	sink := &fakeSink{err: errors.New("broker down")}
	w := NewOutboxWorker(db, sink, Options{Retry: RetryPolicy{MaxRetries: 3, InitialDelay: time.Hour}}, nil)

	msg := enqueue(t, db, "booking.approved", `{"booking_id":1}`)

	_, err := w.ProcessBatch(context.Background())
	require.NoError(t, err)

	status, retries := loadStatus(t, db, msg.ID)
	assert.Equal(t, models.OutboxRetry, status)
	assert.Equal(t, 1, retries)

	// следующая попытка ещё не наступила
	n, err := w.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestProcessBatchFailToDeadLetter(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	db := newTestDB(t)
	sink := &fakeSink{err: errors.New("fatal")}
	w := NewOutboxWorker(db, sink, Options{Retry: RetryPolicy{MaxRetries: 1}, Redis: client}, nil)

	msg := enqueue(t, db, "booking.rejected", `{"booking_id":1}`)
	bad := enqueue(t, db, "booking.created", `not json`)

	_, err = w.ProcessBatch(context.Background())
	require.NoError(t, err)

	status, _ := loadStatus(t, db, msg.ID)
	assert.Equal(t, models.OutboxFailed, status)
	status, _ = loadStatus(t, db, bad.ID)
	assert.Equal(t, models.OutboxFailed, status)

	items, err := client.LRange(context.Background(), defaultDeadLetterKey, 0, -1).Result()
	require.NoError(t, err)
	require.Len(t, items, 2)

	var dead models.OutboxMessage
	require.NoError(t, json.Unmarshal([]byte(items[1]), &dead))
	assert.Equal(t, msg.ID, dead.ID)

	assert.Equal(t, 2, w.reportFailed(context.Background()))
}

func TestStartDeliversOnWake(t *testing.T) {
	db := newTestDB(t)
	sink := &fakeSink{}
	w := NewOutboxWorker(db, sink, Options{PollInterval: time.Hour}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	enqueue(t, db, "booking.cancelled", `{"booking_id":1}`)
	w.Wake()

	assert.Eventually(t, func() bool { return sink.count() == 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestWakeNeverBlocks(t *testing.T) {
	w := NewOutboxWorker(nil, &fakeSink{}, Options{}, nil)
	for i := 0; i < 10; i++ {
		w.Wake()
	}
}

func TestRetryPolicyNextDelay(t *testing.T) {
	policy := RetryPolicy{InitialDelay: time.Second, BackoffFactor: 2, MaxDelay: 5 * time.Second}
	d1 := policy.NextDelay(1)
	d2 := policy.NextDelay(2)
	d3 := policy.NextDelay(5)

	if d1 != time.Second {
		t.Fatalf("attempt1 expected 1s, got %s", d1)
	}
	if d2 != 2*time.Second {
		t.Fatalf("attempt2 expected 2s, got %s", d2)
	}
	if d3 != 5*time.Second {
		t.Fatalf("attempt5 expected capped 5s, got %s", d3)
	}
}

func TestRetryFromConfigJitterBounds(t *testing.T) {
	policy := RetryFromConfig(config.OutboxConfig{MaxRetries: 4, BaseDelay: time.Second, MaxDelay: time.Minute})
	assert.Equal(t, 4, policy.MaxRetries)

	for i := 0; i < 20; i++ {
		d := policy.NextDelay(2)
		assert.GreaterOrEqual(t, d, 2*time.Second)
		assert.LessOrEqual(t, d, 2200*time.Millisecond)
	}
}

func TestRetryPolicyExhausted(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 3}
	assert.False(t, policy.Exhausted(1))
	assert.False(t, policy.Exhausted(2))
	assert.True(t, policy.Exhausted(3))
	assert.Equal(t, defaultRetryDelay, RetryPolicy{}.NextDelay(0))
}
