package web

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"payment-token-service/internal/infra/metrics"
)

// ===== Admin JWT primitives =====

var (
	errMissingToken = errors.New("missing token")
	errInvalidToken = errors.New("invalid token")
)

const adminRole = "admin"

type AdminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AdminAuth verifies HS256 bearer tokens for the debug endpoints.
// A zero-length secret disables them.
type AdminAuth struct {
	secret []byte
	now    func() time.Time
}

func NewAdminAuth(secret string) *AdminAuth {
	return &AdminAuth{secret: []byte(secret), now: time.Now}
}

func (a *AdminAuth) Enabled() bool { return a != nil && len(a.secret) > 0 }

// Mint signs an admin token valid for ttl. Operators use it via the -mint-admin-token flag.
func (a *AdminAuth) Mint(subject string, ttl time.Duration) (string, error) {
	if !a.Enabled() {
		return "", errors.New("admin secret is not configured")
	}
	now := a.now()
	claims := AdminClaims{
		Role: adminRole,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Subject:   subject,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func (a *AdminAuth) ParseFromRequest(r *http.Request) (*AdminClaims, error) {
	// Authorization: Bearer <jwt>
	hdr := r.Header.Get("Authorization")
	if len(hdr) < 7 || !strings.EqualFold(hdr[:7], "bearer ") {
		return nil, errMissingToken
	}
	return a.parse(strings.TrimSpace(hdr[7:]))
}

func (a *AdminAuth) parse(tok string) (*AdminClaims, error) {
	claims := &AdminClaims{}
	tkn, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(a.now))
	if err != nil || !tkn.Valid || claims.Role != adminRole {
		return nil, errInvalidToken
	}
	return claims, nil
}

// Guard answers 404 while disabled, 401 without a valid admin token.
func (a *AdminAuth) Guard(route string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !a.Enabled() {
				metrics.IncAdminRequest(route, "disabled")
				writeJSON(w, http.StatusNotFound, errorBody("not found"))
				return
			}
			if _, err := a.ParseFromRequest(r); err != nil {
				metrics.IncAdminRequest(route, "unauthorized")
				writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
				return
			}
			metrics.IncAdminRequest(route, "authorized")
			next.ServeHTTP(w, r)
		})
	}
}
