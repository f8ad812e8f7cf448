package api

import (
	"context"
	"errors"
	"net/http"

	"venuebook/internal/models"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const occupyingWindowKey = "x-occupying-window"

// httpStatus maps domain errors onto response codes. Unknown errors are internal.
func httpStatus(err error) (int, string) {
	switch {
	case errors.Is(err, models.ErrInvalidArgument):
		return http.StatusBadRequest, "invalid_argument"
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, models.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, models.ErrConcurrentModification):
		return http.StatusConflict, "concurrent_modification"
	case errors.Is(err, models.ErrInvalidState):
		return http.StatusUnprocessableEntity, "invalid_state"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeDomainError(w http.ResponseWriter, err error) {
	code, kind := httpStatus(err)
	body := map[string]any{"error": err.Error(), "code": kind}
	if code == http.StatusInternalServerError {
		// детали ошибки хранилища наружу не отдаем
		body["error"] = "internal error"
	}
	var conflict *models.ConflictError
	if errors.As(err, &conflict) {
		body["occupying_window"] = conflict.Window.String()
		if conflict.BookingID > 0 {
			body["booking_id"] = conflict.BookingID
		}
	}
	writeJSON(w, code, body)
}

// grpcError converts a domain error into a status; the blocking window travels in a trailer.
func grpcError(ctx context.Context, err error) error {
	if window, ok := models.OccupyingWindow(err); ok {
		_ = grpc.SetTrailer(ctx, metadata.Pairs(occupyingWindowKey, window.String()))
	}

	switch {
	case errors.Is(err, models.ErrInvalidArgument):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, models.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, models.ErrConflict):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, models.ErrConcurrentModification):
		return status.Error(codes.Aborted, err.Error())
	case errors.Is(err, models.ErrInvalidState):
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		return status.Error(codes.Internal, "internal error")
	}
}
