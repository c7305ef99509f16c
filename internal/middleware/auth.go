// Package middleware holds the echo middleware shared by all routes.
package middleware

import (
	"errors"
	"strings"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	"authapi/internal/auth"
	apperrors "authapi/internal/errors"
	"authapi/internal/model"
)

const (
	identityKey = "identity"
	// AccessTokenCookie is checked when no Authorization header is sent.
	AccessTokenCookie = "accessToken"
)

var authSource = func(msg string) apperrors.FieldError {
	return apperrors.FieldError{Path: "authorization", Message: msg}
}

var (
	ErrMissingToken = apperrors.Unauthorized("Unauthorized", authSource("Missing Bearer token")).WithCode("MISSING_TOKEN")
	ErrTokenExpired = apperrors.Unauthorized("Token expired", authSource("Please login again")).WithCode("TOKEN_EXPIRED")
	ErrInvalidToken = apperrors.Unauthorized("Invalid token", authSource("Invalid or missing token")).WithCode("INVALID_TOKEN")
	ErrForbidden    = apperrors.Forbidden("Forbidden", authSource("You do not have permission to access this resource"))
)

// AccessVerifier validates access tokens.
type AccessVerifier interface {
	VerifyAccessToken(token string) (*auth.Claims, error)
}

// Authenticate resolves the caller from a bearer token or the access token cookie and
// stores an *auth.Identity on the context.
func Authenticate(v AccessVerifier) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		ContextKey:  identityKey,
		TokenLookup: "header:" + echo.HeaderAuthorization + ":Bearer ,cookie:" + AccessTokenCookie,
		ParseTokenFunc: func(c echo.Context, token string) (interface{}, error) {
			claims, err := v.VerifyAccessToken(token)
			if err != nil {
				return nil, err
			}
			return claims.Identity(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			switch {
			case errors.Is(err, auth.ErrTokenExpired):
				return ErrTokenExpired
			case errors.Is(err, auth.ErrTokenInvalid):
				return ErrInvalidToken
			default:
				return ErrMissingToken
			}
		},
	})
}

// IdentityFrom returns the identity stored by Authenticate.
func IdentityFrom(c echo.Context) (*auth.Identity, bool) {
	id, ok := c.Get(identityKey).(*auth.Identity)
	return id, ok && id != nil
}

// RequireRoles rejects identities outside roles. With no roles any authenticated
// caller passes. Must run after Authenticate.
func RequireRoles(roles ...model.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := IdentityFrom(c)
			if !ok {
				return ErrMissingToken
			}
			if !id.HasRole(roles...) {
				return ErrForbidden
			}
			return next(c)
		}
	}
}

// BearerToken returns the token from an "Authorization: Bearer <token>" header, or "".
func BearerToken(c echo.Context) string {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// RateLimitKey keys authenticated callers by user id and everyone else by address.
func RateLimitKey(c echo.Context) string {
	if id, ok := IdentityFrom(c); ok {
		return "uid:" + id.UserID.String()
	}
	return "ip:" + c.RealIP()
}
