package service

import (
	"errors"
	"fmt"

	"venuebook/internal/models"
)

var domainErrors = []error{
	models.ErrInvalidArgument,
	models.ErrNotFound,
	models.ErrInvalidState,
	models.ErrConflict,
	models.ErrConcurrentModification,
	models.ErrStoreFailure,
}

// classify keeps typed domain errors and marks everything else as a store failure.
func classify(err error) error {
	if err == nil {
		return nil
	}
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", models.ErrStoreFailure, err)
}

// outcomeLabel names a booking request result for metrics.
func outcomeLabel(outcome string, err error) string {
	switch {
	case err == nil:
		return outcome
	case errors.Is(err, models.ErrConflict):
		return "conflict"
	case errors.Is(err, models.ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, models.ErrNotFound):
		return "not_found"
	case errors.Is(err, models.ErrInvalidState):
		return "invalid_state"
	default:
		return "error"
	}
}
