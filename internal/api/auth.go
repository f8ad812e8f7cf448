package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"venuebook/internal/config"

	"github.com/golang-jwt/jwt/v5"
)

const (
	apiKeyHeaderDefault    = "x-api-key"
	apiExtraHeaderDefault  = "x-api-extra"
	requesterHeaderDefault = "x-requester-id"
	permAdminBookings      = "admin:bookings"
	roleAdmin              = "admin"
	clientKeyUnknown       = "unknown"
)

var (
	errUnauthenticated  = errors.New("unauthenticated")
	errPermissionDenied = errors.New("permission denied")
)

// Principal is the caller identity attached to a request context.
type Principal struct {
	Client    string
	Requester string
	Admin     bool
}

type principalKey struct{}

func withPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the caller identity, or an empty non-admin principal.
func PrincipalFrom(ctx context.Context) *Principal {
	if p, ok := ctx.Value(principalKey{}).(*Principal); ok && p != nil {
		return p
	}
	return &Principal{}
}

// Claims are the bearer token claims. Subject is the requester id.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Credentials are the raw values a transport extracted from headers or metadata.
type Credentials struct {
	APIKey    string
	Extra     string
	Bearer    string
	Requester string
}

// Authenticator resolves credentials into a Principal for both HTTP and gRPC.
type Authenticator struct {
	cfg     config.APIAuthConfig
	clients map[string]config.APIClientKey
	secret  []byte
}

func NewAuthenticator(cfg config.APIAuthConfig) *Authenticator {
	m := make(map[string]config.APIClientKey, len(cfg.APIKeys))
	for _, k := range cfg.APIKeys {
		m[k.Key] = k
	}
	return &Authenticator{cfg: cfg, clients: m, secret: []byte(cfg.JWTSecret)}
}

func (a *Authenticator) apiKeyHeader() string {
	return headerOr(a.cfg.HeaderAPIKey, apiKeyHeaderDefault)
}

func (a *Authenticator) extraHeader() string {
	return headerOr(a.cfg.HeaderExtra, apiExtraHeaderDefault)
}

func (a *Authenticator) requesterHeader() string {
	return headerOr(a.cfg.RequesterHeader, requesterHeaderDefault)
}

func headerOr(v, def string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return def
	}
	return v
}

// Authenticate checks credentials. With auth disabled every caller is a trusted admin.
func (a *Authenticator) Authenticate(c Credentials) (*Principal, error) {
	if !a.cfg.Enabled {
		return &Principal{Client: "anonymous", Requester: c.Requester, Admin: true}, nil
	}

	if c.Bearer != "" && len(a.secret) > 0 {
		claims, err := a.ParseToken(c.Bearer)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid token", errUnauthenticated)
		}
		return &Principal{
			Client:    "jwt",
			Requester: claims.Subject,
			Admin:     claims.Role == roleAdmin,
		}, nil
	}

	if c.APIKey == "" || c.Extra == "" {
		return nil, fmt.Errorf("%w: missing api key headers", errUnauthenticated)
	}
	client, ok := a.clients[c.APIKey]
	if !ok {
		return nil, fmt.Errorf("%w: invalid api key", errUnauthenticated)
	}
	if subtle.ConstantTimeCompare([]byte(client.Extra), []byte(c.Extra)) != 1 {
		return nil, fmt.Errorf("%w: invalid extra header", errUnauthenticated)
	}

	return &Principal{
		Client:    client.Name,
		Requester: c.Requester,
		Admin:     hasPermission(client, permAdminBookings),
	}, nil
}

// Пустой список прав означает полный доступ
func hasPermission(client config.APIClientKey, required string) bool {
	if len(client.Permissions) == 0 {
		return true
	}
	for _, p := range client.Permissions {
		if strings.TrimSpace(p) == required {
			return true
		}
	}
	return false
}

func (a *Authenticator) ParseToken(raw string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// IssueToken signs a bearer token for a requester.
func (a *Authenticator) IssueToken(subject, role string, ttl time.Duration) (string, error) {
	if len(a.secret) == 0 {
		return "", errors.New("jwt secret is not configured")
	}
	now := time.Now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func bearerToken(header string) string {
	const prefix = "bearer "
	header = strings.TrimSpace(header)
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
