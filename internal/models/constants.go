package models

// Booking statuses.
const (
	StatusPending   = "pending"
	StatusApproved  = "approved"
	StatusRejected  = "rejected"
	StatusCancelled = "cancelled"
)

// Venue lifecycle statuses.
const (
	VenueStatusOpen        = "open"
	VenueStatusClosed      = "closed"
	VenueStatusMaintenance = "maintenance"
)

// Slot statuses.
const (
	SlotStatusOpen    = "open"
	SlotStatusBlocked = "blocked"
)

// Booking modes.
const (
	ModeSlot   = "slot"
	ModeManual = "manual"
)

// Outcomes of a booking request that did not fail.
const (
	OutcomeCreated  = "created"
	OutcomeExisting = "existing"
)

// Outbox message statuses.
const (
	OutboxPending   = "pending"
	OutboxRetry     = "retry"
	OutboxCompleted = "completed"
	OutboxFailed    = "failed"
)

const (
	// DateLayout формат даты бронирования и слота
	DateLayout = "2006-01-02"

	// DefaultVenueCategory категория площадки по умолчанию
	DefaultVenueCategory = "general"

	// DefaultOpenHours часы работы площадки по умолчанию
	DefaultOpenHours = "08:00-22:00"

	// DefaultVenueCacheTTL время жизни кэша списка площадок
	DefaultVenueCacheTTL = 5 * 60 // 5 минут в секундах

	// OutboxQueueSize размер очереди пробуждения воркера
	OutboxQueueSize = 128

	// DefaultOutboxBatchSize сколько сообщений outbox обрабатывается за проход
	DefaultOutboxBatchSize = 20
)

// ActiveStatuses are the booking statuses that hold a time window.
var ActiveStatuses = []string{StatusPending, StatusApproved}

// IsActiveStatus reports whether a booking in this status counts toward conflicts.
func IsActiveStatus(status string) bool {
	return status == StatusPending || status == StatusApproved
}

func IsVenueStatus(status string) bool {
	switch status {
	case VenueStatusOpen, VenueStatusClosed, VenueStatusMaintenance:
		return true
	}
	return false
}

func IsSlotStatus(status string) bool {
	return status == SlotStatusOpen || status == SlotStatusBlocked
}

// CanTransition reports whether a booking may move from one status to another.
// pending -> approved | rejected | cancelled, approved -> cancelled.
func CanTransition(from, to string) bool {
	switch from {
	case StatusPending:
		return to == StatusApproved || to == StatusRejected || to == StatusCancelled
	case StatusApproved:
		return to == StatusCancelled
	}
	return false
}
