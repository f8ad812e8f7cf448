package api

import (
	"context"
	"strings"
	"time"

	"venuebook/internal/config"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

const healthServicePrefix = "/grpc.health.v1.Health/"

type AuthInterceptor struct {
	auth    *Authenticator
	limiter *rateLimiter
}

func NewAuthInterceptor(cfg *config.APIConfig) *AuthInterceptor {
	return &AuthInterceptor{
		auth:    NewAuthenticator(cfg.Auth),
		limiter: newRateLimiter(cfg.RateLimit),
	}
}

// Unary authenticates every call except health checks and stores the principal in ctx.
func (a *AuthInterceptor) Unary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if strings.HasPrefix(info.FullMethod, healthServicePrefix) {
			return handler(ctx, req)
		}

		md, _ := metadata.FromIncomingContext(ctx)
		principal, err := a.auth.Authenticate(Credentials{
			APIKey:    first(md.Get(a.auth.apiKeyHeader())),
			Extra:     first(md.Get(a.auth.extraHeader())),
			Bearer:    bearerToken(first(md.Get("authorization"))),
			Requester: first(md.Get(a.auth.requesterHeader())),
		})
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, err.Error())
		}

		if !a.limiter.allow(a.clientKey(ctx, md)) {
			return nil, status.Error(codes.ResourceExhausted, "rate limit exceeded")
		}

		return handler(withPrincipal(ctx, principal), req)
	}
}

func (a *AuthInterceptor) clientKey(ctx context.Context, md metadata.MD) string {
	if apiKey := first(md.Get(a.auth.apiKeyHeader())); apiKey != "" {
		return apiKey
	}
	if token := bearerToken(first(md.Get("authorization"))); token != "" {
		return token
	}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		return p.Addr.String()
	}
	return clientKeyUnknown
}

func first(vals []string) string {
	if len(vals) == 0 {
		return ""
	}
	return strings.TrimSpace(vals[0])
}

const requestIDMetadataKey = "x-request-id"

// LoggingUnaryInterceptor tags every call with a request id, echoes it in the response header
// and writes one access line per call. Internal failures are logged at error level.
func LoggingUnaryInterceptor(logger *zerolog.Logger) grpc.UnaryServerInterceptor {
	log := zerolog.Nop()
	if logger != nil {
		log = logger.With().Str("component", "grpc").Logger()
	}

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		md, _ := metadata.FromIncomingContext(ctx)
		requestID := first(md.Get(requestIDMetadataKey))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		_ = grpc.SetHeader(ctx, metadata.Pairs(requestIDMetadataKey, requestID))

		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)

		event := log.Info()
		switch code {
		case codes.Internal, codes.Unknown:
			event = log.Error().Err(err)
		case codes.Unauthenticated, codes.ResourceExhausted:
			event = log.Warn()
		}

		remote := clientKeyUnknown
		if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
			remote = p.Addr.String()
		}

		event.
			Str("request_id", requestID).
			Str("method", info.FullMethod).
			Str("remote", remote).
			Str("code", code.String()).
			Dur("duration", time.Since(start)).
			Msg("grpc request")

		return resp, err
	}
}
