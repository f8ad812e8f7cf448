package models

import "time"

// OutboxMessage is a booking event stored in the same transaction as the booking change.
type OutboxMessage struct {
	ID          int64     `json:"id"`
	EventType   string    `json:"event_type"`
	BookingID   int64     `json:"booking_id"`
	Payload     string    `json:"payload"`
	Status      string    `json:"status"` // pending, retry, completed, failed
	RetryCount  int       `json:"retry_count"`
	LastError   string    `json:"last_error,omitempty"`
	NextRetryAt time.Time `json:"next_retry_at"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
