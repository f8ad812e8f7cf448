package api

import (
	"context"
	"encoding/json"

	"venuebook/internal/models"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

const (
	ReservationServiceName = "venuebook.reservation.v1.ReservationService"
	jsonCodecName          = "json"
)

// jsonCodec lets the reservation service speak plain JSON messages over gRPC.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return jsonCodecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type ListBookingsRequest struct {
	All bool `json:"all"`
}

type ListBookingsResponse struct {
	Bookings []*models.Booking `json:"bookings"`
}

type AuditBookingRequest struct {
	BookingID int64  `json:"booking_id"`
	Status    string `json:"status"`
}

type ListSlotsRequest struct {
	VenueID int64  `json:"venue_id"`
	Date    string `json:"date,omitempty"`
}

type ListSlotsResponse struct {
	Slots []*models.VenueSlot `json:"slots"`
}

type ReservationServer interface {
	RequestBooking(ctx context.Context, req *models.BookingRequest) (*models.BookingResult, error)
	ListBookings(ctx context.Context, req *ListBookingsRequest) (*ListBookingsResponse, error)
	AuditBooking(ctx context.Context, req *AuditBookingRequest) (*models.Booking, error)
	ListSlots(ctx context.Context, req *ListSlotsRequest) (*ListSlotsResponse, error)
}

func fullMethod(method string) string {
	return "/" + ReservationServiceName + "/" + method
}

func unaryMethod[Req any, Resp any](name string, call func(ReservationServer, context.Context, *Req) (Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			server := srv.(ReservationServer)
			if interceptor == nil {
				return call(server, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(server, ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var reservationServiceDesc = grpc.ServiceDesc{
	ServiceName: ReservationServiceName,
	HandlerType: (*ReservationServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("RequestBooking", ReservationServer.RequestBooking),
		unaryMethod("ListBookings", ReservationServer.ListBookings),
		unaryMethod("AuditBooking", ReservationServer.AuditBooking),
		unaryMethod("ListSlots", ReservationServer.ListSlots),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "venuebook/reservation/v1/reservation.json",
}

func RegisterReservationServer(s grpc.ServiceRegistrar, srv ReservationServer) {
	s.RegisterService(&reservationServiceDesc, srv)
}

// ReservationClient calls the reservation service with the JSON codec.
type ReservationClient struct {
	cc grpc.ClientConnInterface
}

func NewReservationClient(cc grpc.ClientConnInterface) *ReservationClient {
	return &ReservationClient{cc: cc}
}

func (c *ReservationClient) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(jsonCodecName)}, opts...)
	return c.cc.Invoke(ctx, fullMethod(method), in, out, opts...)
}

func (c *ReservationClient) RequestBooking(ctx context.Context, in *models.BookingRequest, opts ...grpc.CallOption) (*models.BookingResult, error) {
	out := new(models.BookingResult)
	if err := c.invoke(ctx, "RequestBooking", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ReservationClient) ListBookings(ctx context.Context, in *ListBookingsRequest, opts ...grpc.CallOption) (*ListBookingsResponse, error) {
	out := new(ListBookingsResponse)
	if err := c.invoke(ctx, "ListBookings", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ReservationClient) AuditBooking(ctx context.Context, in *AuditBookingRequest, opts ...grpc.CallOption) (*models.Booking, error) {
	out := new(models.Booking)
	if err := c.invoke(ctx, "AuditBooking", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ReservationClient) ListSlots(ctx context.Context, in *ListSlotsRequest, opts ...grpc.CallOption) (*ListSlotsResponse, error) {
	out := new(ListSlotsResponse)
	if err := c.invoke(ctx, "ListSlots", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}
