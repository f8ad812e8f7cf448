package models

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidArgument        = errors.New("invalid argument")
	ErrNotFound               = errors.New("not found")
	ErrInvalidState           = errors.New("invalid state")
	ErrConflict               = errors.New("time window already reserved")
	ErrStoreFailure           = errors.New("store failure")
	ErrConcurrentModification = errors.New("concurrent modification")
)

// ConflictError carries the window held by the booking that blocked a request.
type ConflictError struct {
	BookingID int64
	Window    Window
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: %s is occupied", ErrConflict, e.Window)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// OccupyingWindow returns the blocking window when err is a conflict.
func OccupyingWindow(err error) (Window, bool) {
	var conflict *ConflictError
	if errors.As(err, &conflict) {
		return conflict.Window, true
	}
	return Window{}, false
}
