package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"venuebook/internal/domain"
	"venuebook/internal/events"
	"venuebook/internal/metrics"
	"venuebook/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	defaultDeadLetterKey = "venuebook:outbox:deadletter"
	maxBatchesPerTick    = 10
)

// OutboxWorker relays committed outbox rows to an external sink.
type OutboxWorker struct {
	store         domain.OutboxStore
	sink          events.Sink
	redis         *redis.Client
	retryPolicy   RetryPolicy
	wake          chan struct{}
	deadLetterKey string
	pollInterval  time.Duration
	batchSize     int
	logger        *zerolog.Logger
}

type Options struct {
	Retry         RetryPolicy
	PollInterval  time.Duration
	BatchSize     int
	DeadLetterKey string
	// Redis receives failed messages; nil disables the dead letter list.
	Redis *redis.Client
}

// NewOutboxWorker builds a worker with sane defaults.
func NewOutboxWorker(store domain.OutboxStore, sink events.Sink, opts Options, logger *zerolog.Logger) *OutboxWorker {
	retry := opts.Retry
	if retry.MaxRetries == 0 {
		retry.MaxRetries = 5
	}
	if retry.InitialDelay == 0 {
		retry.InitialDelay = 2 * time.Second
	}
	if retry.MaxDelay == 0 {
		retry.MaxDelay = time.Minute
	}
	if retry.BackoffFactor == 0 {
		retry.BackoffFactor = 2
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = models.DefaultOutboxBatchSize
	}
	if opts.DeadLetterKey == "" {
		opts.DeadLetterKey = defaultDeadLetterKey
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &OutboxWorker{
		store:         store,
		sink:          sink,
		redis:         opts.Redis,
		retryPolicy:   retry,
		wake:          make(chan struct{}, 1),
		deadLetterKey: opts.DeadLetterKey,
		pollInterval:  opts.PollInterval,
		batchSize:     opts.BatchSize,
		logger:        logger,
	}
}

// Wake asks the loop to poll now instead of waiting for the ticker. Never blocks.
func (w *OutboxWorker) Wake() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Start runs until ctx is done.
func (w *OutboxWorker) Start(ctx context.Context) {
	w.logger.Info().Dur("poll_interval", w.pollInterval).Msg("Outbox worker started")
	defer w.logger.Info().Msg("Outbox worker stopped")

	w.reportFailed(ctx)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		// выгребаем накопившееся, но не больше maxBatchesPerTick за раз
		for i := 0; i < maxBatchesPerTick; i++ {
			n, err := w.ProcessBatch(ctx)
			if err != nil {
				w.logger.Error().Err(err).Msg("Outbox fetch failed")
				break
			}
			if n < w.batchSize {
				break
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-w.wake:
		case <-ticker.C:
		}
	}
}

// reportFailed warns about messages that ran out of retries in earlier runs.
func (w *OutboxWorker) reportFailed(ctx context.Context) int {
	failed, err := w.store.GetFailedOutbox(ctx)
	if err != nil {
		w.logger.Error().Err(err).Msg("Load failed outbox messages")
		return 0
	}
	if len(failed) > 0 {
		w.logger.Warn().
			Int("count", len(failed)).
			Int64("latest_id", failed[0].ID).
			Msg("Outbox has undelivered events that need manual replay")
	}
	return len(failed)
}

// ProcessBatch delivers one batch of due messages and returns how many were handled.
func (w *OutboxWorker) ProcessBatch(ctx context.Context) (int, error) {
	msgs, err := w.store.GetPendingOutbox(ctx, w.batchSize)
	if err != nil {
		return 0, err
	}
	for i := range msgs {
		if ctx.Err() != nil {
			return i, ctx.Err()
		}
		w.process(ctx, &msgs[i])
	}
	return len(msgs), nil
}

func (w *OutboxWorker) process(ctx context.Context, msg *models.OutboxMessage) {
	if !json.Valid([]byte(msg.Payload)) {
		w.fail(ctx, msg, errors.New("payload is not valid json"))
		return
	}

	if err := w.sink.Deliver(ctx, msg.EventType, []byte(msg.Payload)); err != nil {
		w.retryOrFail(ctx, msg, err)
		return
	}

	if err := w.store.UpdateOutboxStatus(ctx, msg.ID, models.OutboxCompleted, "", nil); err != nil {
		w.logger.Error().Err(err).Int64("outbox_id", msg.ID).Msg("Mark outbox completed")
	}
	metrics.IncOutbox(models.OutboxCompleted)
}

func (w *OutboxWorker) retryOrFail(ctx context.Context, msg *models.OutboxMessage, cause error) {
	attempt := msg.RetryCount + 1
	if w.retryPolicy.Exhausted(attempt) {
		w.fail(ctx, msg, cause)
		return
	}

	nextTime := time.Now().Add(w.retryPolicy.NextDelay(attempt))
	if err := w.store.UpdateOutboxStatus(ctx, msg.ID, models.OutboxRetry, cause.Error(), &nextTime); err != nil {
		w.logger.Error().Err(err).Int64("outbox_id", msg.ID).Msg("Mark outbox retry")
	}
	w.logger.Warn().Err(cause).Int64("outbox_id", msg.ID).Int("attempt", attempt).Time("next_retry_at", nextTime).Msg("Outbox delivery failed, will retry")
	metrics.IncOutbox(models.OutboxRetry)
}

func (w *OutboxWorker) fail(ctx context.Context, msg *models.OutboxMessage, cause error) {
	if err := w.store.UpdateOutboxStatus(ctx, msg.ID, models.OutboxFailed, cause.Error(), nil); err != nil {
		w.logger.Error().Err(err).Int64("outbox_id", msg.ID).Msg("Mark outbox failed")
	}
	w.logger.Error().Err(cause).Int64("outbox_id", msg.ID).Str("event", msg.EventType).Msg("Outbox message moved to failed")
	metrics.IncOutbox(models.OutboxFailed)
	w.pushDeadLetter(ctx, msg)
}

func (w *OutboxWorker) pushDeadLetter(ctx context.Context, msg *models.OutboxMessage) {
	if w.redis == nil {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		w.logger.Error().Err(err).Int64("outbox_id", msg.ID).Msg("Encode dead letter")
		return
	}
	if err := w.redis.LPush(ctx, w.deadLetterKey, data).Err(); err != nil {
		w.logger.Error().Err(err).Int64("outbox_id", msg.ID).Msg("Dead letter push")
	}
}
