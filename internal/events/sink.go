package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Sink delivers a serialized booking event outside the process.
type Sink interface {
	Deliver(ctx context.Context, eventType string, payload []byte) error
}

// MultiSink delivers to every sink and fails if any of them failed.
// A retried message reaches the sinks that already accepted it again.
type MultiSink []Sink

func (m MultiSink) Deliver(ctx context.Context, eventType string, payload []byte) error {
	var errs []error
	for _, s := range m {
		if err := s.Deliver(ctx, eventType, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogSink only logs; used when no broker is configured.
type LogSink struct {
	Logger *zerolog.Logger
}

func (s LogSink) Deliver(_ context.Context, eventType string, payload []byte) error {
	if s.Logger != nil {
		s.Logger.Debug().Str("event", eventType).RawJSON("payload", payload).Msg("Booking event")
	}
	return nil
}

// RedisSink pushes events onto a list for consumers and publishes them on a channel.
type RedisSink struct {
	client  *redis.Client
	list    string
	channel string
}

type redisEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func NewRedisSink(client *redis.Client, list, channel string) *RedisSink {
	return &RedisSink{client: client, list: list, channel: channel}
}

func (s *RedisSink) Deliver(ctx context.Context, eventType string, payload []byte) error {
	envelope, err := json.Marshal(redisEnvelope{Type: eventType, Payload: payload})
	if err != nil {
		return fmt.Errorf("encode %s envelope: %w", eventType, err)
	}

	pipe := s.client.Pipeline()
	if s.list != "" {
		pipe.LPush(ctx, s.list, envelope)
	}
	if s.channel != "" {
		pipe.Publish(ctx, s.channel, envelope)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis deliver %s: %w", eventType, err)
	}
	return nil
}
