package api

import (
	"context"

	"venuebook/internal/domain"
	"venuebook/internal/models"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ReservationService serves the gRPC reservation API on top of the booking and slot services.
type ReservationService struct {
	bookings domain.BookingService
	slots    domain.SlotService
}

var _ ReservationServer = (*ReservationService)(nil)

func NewReservationService(bookings domain.BookingService, slots domain.SlotService) *ReservationService {
	return &ReservationService{bookings: bookings, slots: slots}
}

func (s *ReservationService) RequestBooking(ctx context.Context, req *models.BookingRequest) (*models.BookingResult, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	if p := PrincipalFrom(ctx); p.Requester != "" {
		req.RequesterID = p.Requester
	}

	result, err := s.bookings.RequestBooking(ctx, req)
	if err != nil {
		return nil, grpcError(ctx, err)
	}
	return result, nil
}

func (s *ReservationService) ListBookings(ctx context.Context, req *ListBookingsRequest) (*ListBookingsResponse, error) {
	p := PrincipalFrom(ctx)
	if req.All && !p.Admin {
		return nil, status.Error(codes.PermissionDenied, errPermissionDenied.Error())
	}

	bookings, err := s.bookings.ListBookings(ctx, p.Requester, req.All)
	if err != nil {
		return nil, grpcError(ctx, err)
	}
	return &ListBookingsResponse{Bookings: bookings}, nil
}

func (s *ReservationService) AuditBooking(ctx context.Context, req *AuditBookingRequest) (*models.Booking, error) {
	if !PrincipalFrom(ctx).Admin {
		return nil, status.Error(codes.PermissionDenied, errPermissionDenied.Error())
	}
	if req.BookingID <= 0 {
		return nil, status.Error(codes.InvalidArgument, "booking_id is required")
	}

	booking, err := s.bookings.AuditBooking(ctx, req.BookingID, req.Status)
	if err != nil {
		return nil, grpcError(ctx, err)
	}
	return booking, nil
}

func (s *ReservationService) ListSlots(ctx context.Context, req *ListSlotsRequest) (*ListSlotsResponse, error) {
	if req.VenueID <= 0 {
		return nil, status.Error(codes.InvalidArgument, "venue_id is required")
	}

	slots, err := s.slots.ListSlots(ctx, req.VenueID, req.Date)
	if err != nil {
		return nil, grpcError(ctx, err)
	}
	return &ListSlotsResponse{Slots: slots}, nil
}
