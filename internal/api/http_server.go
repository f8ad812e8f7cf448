package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"venuebook/internal/config"
	"venuebook/internal/domain"
	"venuebook/internal/metrics"
	"venuebook/internal/models"

	"github.com/google/uuid"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

const (
	maxBodyBytes      = 1 << 20
	requestIDHeader   = "X-Request-ID"
	xlsxContentType   = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	scopeAllBookings  = "all"
	routeNotMatched   = "unmatched"
	readinessDeadline = 2 * time.Second
)

// Services are the use cases the transports call into.
type Services struct {
	Venues   domain.VenueService
	Slots    domain.SlotService
	Bookings domain.BookingService
	Exporter *Exporter
	// Quota ограничивает число заявок одного requester, может быть nil
	Quota domain.RateLimiter
	Ready func(ctx context.Context) error
}

// HTTPServer exposes the JSON API.
type HTTPServer struct {
	cfg     config.APIConfig
	svc     Services
	auth    *Authenticator
	limiter *rateLimiter
	quota   *bookingQuota
	server  *http.Server
	logger  zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, svc Services, logger *zerolog.Logger) *HTTPServer {
	base := zerolog.Nop()
	if logger != nil {
		base = logger.With().Str("component", "http").Logger()
	}

	srv := &HTTPServer{
		cfg:     cfg,
		svc:     svc,
		auth:    NewAuthenticator(cfg.Auth),
		limiter: newRateLimiter(cfg.RateLimit),
		logger:  base,
	}
	srv.quota = newBookingQuota(svc.Quota, cfg.RateLimit.BookingsPerMinute, &srv.logger)

	api := http.NewServeMux()
	api.HandleFunc("GET /api/v1/venues", srv.handleListVenues)
	api.HandleFunc("POST /api/v1/venues", srv.adminOnly(srv.handleCreateVenue))
	api.HandleFunc("PUT /api/v1/venues/{id}", srv.adminOnly(srv.handleUpdateVenue))
	api.HandleFunc("DELETE /api/v1/venues/{id}", srv.adminOnly(srv.handleDeleteVenue))
	api.HandleFunc("GET /api/v1/venues/{id}/slots", srv.handleListSlots)
	api.HandleFunc("POST /api/v1/venues/{id}/slots", srv.adminOnly(srv.handleCreateSlot))
	api.HandleFunc("GET /api/v1/venues/{id}/slot-dates", srv.handleListSlotDates)
	api.HandleFunc("PUT /api/v1/slots/{id}", srv.adminOnly(srv.handleUpdateSlot))
	api.HandleFunc("DELETE /api/v1/slots/{id}", srv.adminOnly(srv.handleDeleteSlot))
	api.HandleFunc("GET /api/v1/bookings", srv.handleListBookings)
	api.HandleFunc("POST /api/v1/bookings", srv.handleRequestBooking)
	api.HandleFunc("GET /api/v1/bookings/export", srv.adminOnly(srv.handleExport))
	api.HandleFunc("POST /api/v1/bookings/{id}/audit", srv.adminOnly(srv.handleAudit))
	api.HandleFunc("POST /api/v1/bookings/{id}/cancel", srv.handleCancel)

	root := http.NewServeMux()
	root.Handle("/api/", srv.authMiddleware(metricsMiddleware(api)))
	root.HandleFunc("GET /healthz", srv.handleHealth)
	root.HandleFunc("GET /readyz", srv.handleReady)

	handler := requestIDMiddleware(srv.loggingMiddleware(srv.corsHandler(root)))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	return srv
}

func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) corsHandler(next http.Handler) http.Handler {
	origins := s.cfg.CORS.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{
			"Content-Type", "Authorization", requestIDHeader,
			s.auth.apiKeyHeader(), s.auth.extraHeader(), s.auth.requesterHeader(),
		},
		ExposedHeaders: []string{requestIDHeader},
		MaxAge:         s.cfg.CORS.MaxAge,
	}).Handler(next)
}

// ---- venues ----

func (s *HTTPServer) handleListVenues(w http.ResponseWriter, r *http.Request) {
	venues, err := s.svc.Venues.ListVenues(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"venues": venues})
}

func (s *HTTPServer) handleCreateVenue(w http.ResponseWriter, r *http.Request) {
	var venue models.Venue
	if !decodeJSON(w, r, &venue) {
		return
	}
	created, err := s.svc.Venues.CreateVenue(r.Context(), &venue)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *HTTPServer) handleUpdateVenue(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var patch models.VenuePatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	venue, err := s.svc.Venues.UpdateVenue(r.Context(), id, patch)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, venue)
}

func (s *HTTPServer) handleDeleteVenue(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.svc.Venues.DeleteVenue(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- slots ----

func (s *HTTPServer) handleListSlots(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	slots, err := s.svc.Slots.ListSlots(r.Context(), id, strings.TrimSpace(r.URL.Query().Get("date")))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"slots": slots})
}

func (s *HTTPServer) handleListSlotDates(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	dates, err := s.svc.Slots.ListSlotDates(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"dates": dates})
}

func (s *HTTPServer) handleCreateSlot(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var slot models.VenueSlot
	if !decodeJSON(w, r, &slot) {
		return
	}
	slot.VenueID = id
	created, err := s.svc.Slots.CreateSlot(r.Context(), &slot)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *HTTPServer) handleUpdateSlot(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var patch models.SlotPatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	slot, err := s.svc.Slots.UpdateSlot(r.Context(), id, patch)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, slot)
}

func (s *HTTPServer) handleDeleteSlot(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.svc.Slots.DeleteSlot(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- bookings ----

func (s *HTTPServer) handleRequestBooking(w http.ResponseWriter, r *http.Request) {
	var req models.BookingRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	// идентичность из аутентификации важнее поля в теле
	if p := PrincipalFrom(r.Context()); p.Requester != "" {
		req.RequesterID = p.Requester
	}

	if !s.quota.allow(r.Context(), req.RequesterID) {
		writeError(w, http.StatusTooManyRequests, "booking rate limit exceeded")
		return
	}

	result, err := s.svc.Bookings.RequestBooking(r.Context(), &req)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	code := http.StatusOK
	if result.Created() {
		code = http.StatusCreated
	}
	writeJSON(w, code, result)
}

func (s *HTTPServer) handleListBookings(w http.ResponseWriter, r *http.Request) {
	p := PrincipalFrom(r.Context())
	all := r.URL.Query().Get("scope") == scopeAllBookings
	if all && !p.Admin {
		writeError(w, http.StatusForbidden, errPermissionDenied.Error())
		return
	}

	bookings, err := s.svc.Bookings.ListBookings(r.Context(), p.Requester, all)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
}

func (s *HTTPServer) handleAudit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body struct {
		Status string `json:"status"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	booking, err := s.svc.Bookings.AuditBooking(r.Context(), id, strings.TrimSpace(body.Status))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleCancel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	booking, err := s.svc.Bookings.CancelBooking(r.Context(), id, PrincipalFrom(r.Context()).Requester)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	if s.svc.Exporter == nil {
		writeError(w, http.StatusNotFound, "export is not configured")
		return
	}
	q := r.URL.Query()
	path, err := s.svc.Exporter.Export(r.Context(), strings.TrimSpace(q.Get("start")), strings.TrimSpace(q.Get("end")))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(path)))
	http.ServeFile(w, r, path)
}

// ---- health ----

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.svc.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readinessDeadline)
		defer cancel()
		if err := s.svc.Ready(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("Readiness check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// ---- middleware ----

func (s *HTTPServer) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, err := s.auth.Authenticate(Credentials{
			APIKey:    strings.TrimSpace(r.Header.Get(s.auth.apiKeyHeader())),
			Extra:     strings.TrimSpace(r.Header.Get(s.auth.extraHeader())),
			Bearer:    bearerToken(r.Header.Get("Authorization")),
			Requester: strings.TrimSpace(r.Header.Get(s.auth.requesterHeader())),
		})
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}

		if !s.limiter.allow(s.clientKey(r)) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), principal)))
	})
}

func (s *HTTPServer) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !PrincipalFrom(r.Context()).Admin {
			writeError(w, http.StatusForbidden, errPermissionDenied.Error())
			return
		}
		next(w, r)
	}
}

func (s *HTTPServer) clientKey(r *http.Request) string {
	if apiKey := strings.TrimSpace(r.Header.Get(s.auth.apiKeyHeader())); apiKey != "" {
		return apiKey
	}
	if token := bearerToken(r.Header.Get("Authorization")); token != "" {
		return token
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return clientKeyUnknown
}

type requestIDKey struct{}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		s.logger.Info().
			Str("request_id", requestID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

// metricsMiddleware must sit right above the mux: ServeMux fills r.Pattern on the request it receives.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r)
		pattern := r.Pattern
		if pattern == "" {
			pattern = routeNotMatched
		}
		metrics.IncHTTP(pattern)
	})
}

// ---- helpers ----

func (s *HTTPServer) fail(w http.ResponseWriter, r *http.Request, err error) {
	if code, _ := httpStatus(err); code == http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("request_id", requestID(r.Context())).Str("path", r.URL.Path).Msg("Request failed")
	}
	writeDomainError(w, err)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
