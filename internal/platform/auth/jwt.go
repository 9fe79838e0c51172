package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

type contextKey string

const ClaimsKey contextKey = "auth_claims"

// Claims is the verified token payload. Token issuance lives in the external
// auth service; this server only verifies the shared-secret signature.
type Claims struct {
	jwt.RegisteredClaims
	UserID       int64    `json:"userId"`
	ClinicID     int64    `json:"clinicId"`
	Active       bool     `json:"active"`
	Superuser    bool     `json:"superuser"`
	ClinicMaster bool     `json:"clinicMaster"`
	Permissions  []string `json:"permissions"`
}

// JWTMiddleware verifies HS256 bearer tokens and stores the claims in the
// request context. Missing or invalid tokens map to 401.
func JWTMiddleware(secret []byte) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
			}

			claims, err := ParseToken(parts[1], secret)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			ctx := context.WithValue(c.Request().Context(), ClaimsKey, claims)
			c.SetRequest(c.Request().WithContext(ctx))
			c.Set("claims", claims)

			return next(c)
		}
	}
}

// ParseToken verifies an HS256 token string and returns its claims.
func ParseToken(tokenStr string, secret []byte) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenUnverifiable
	}
	return claims, nil
}

// ClaimsFromContext retrieves the verified claims from context, or nil.
func ClaimsFromContext(ctx context.Context) *Claims {
	claims, _ := ctx.Value(ClaimsKey).(*Claims)
	return claims
}
