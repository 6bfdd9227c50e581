package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	id "veridoc/pkg/domain"
	dErrors "veridoc/pkg/domain-errors"
	"veridoc/pkg/platform/httputil"
)

// OfficerClaims are the JWT claims carried by an officer access token.
type OfficerClaims struct {
	OfficerID string `json:"officer_id"`
	TenantID  string `json:"tenant_id"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

// TokenService issues and validates officer access tokens.
type TokenService struct {
	signingKey []byte
	issuer     string
}

func NewTokenService(signingKey, issuer string) *TokenService {
	return &TokenService{signingKey: []byte(signingKey), issuer: issuer}
}

func (s *TokenService) Generate(officerID id.OfficerID, tenantID id.TenantID, role string, expiresIn time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, OfficerClaims{
		OfficerID: officerID.String(),
		TenantID:  tenantID.String(),
		Role:      role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    s.issuer,
			ID:        id.NewEventID().String(),
		},
	})
	return token.SignedString(s.signingKey)
}

func (s *TokenService) Validate(tokenString string) (*OfficerClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &OfficerClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	claims, ok := parsed.Claims.(*OfficerClaims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	return claims, nil
}

// OfficerValidator validates officer bearer tokens.
type OfficerValidator interface {
	Validate(tokenString string) (*OfficerClaims, error)
}

type contextKeyOfficerID struct{}
type contextKeyOfficerTenant struct{}

// OfficerFromContext returns the authenticated officer id, if any.
func OfficerFromContext(ctx context.Context) (id.OfficerID, bool) {
	officerID, ok := ctx.Value(contextKeyOfficerID{}).(id.OfficerID)
	return officerID, ok
}

// OfficerTenantFromContext returns the authenticated officer's tenant.
func OfficerTenantFromContext(ctx context.Context) (id.TenantID, bool) {
	tenantID, ok := ctx.Value(contextKeyOfficerTenant{}).(id.TenantID)
	return tenantID, ok
}

// WithOfficer injects an authenticated officer into a context. Useful for
// handler tests that skip the middleware chain.
func WithOfficer(ctx context.Context, officerID id.OfficerID, tenantID id.TenantID) context.Context {
	ctx = context.WithValue(ctx, contextKeyOfficerID{}, officerID)
	return context.WithValue(ctx, contextKeyOfficerTenant{}, tenantID)
}

// RequireOfficer gates review endpoints behind a valid officer bearer token.
func RequireOfficer(validator OfficerValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing bearer token"))
				return
			}

			claims, err := validator.Validate(token)
			if err != nil {
				logger.WarnContext(r.Context(), "officer token rejected", "error", err)
				httputil.WriteError(w, err)
				return
			}
			officerID, err := id.ParseOfficerID(claims.OfficerID)
			if err != nil {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid officer id in token"))
				return
			}
			tenantID, err := id.ParseTenantID(claims.TenantID)
			if err != nil {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid tenant id in token"))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithOfficer(r.Context(), officerID, tenantID)))
		})
	}
}
