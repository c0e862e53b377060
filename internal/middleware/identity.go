package middleware

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// OptionalJWT extracts the caller's identity when a valid Bearer token is
// present and continues as a guest otherwise.  Unlike JWTAuth it never
// rejects: the reservation endpoints are public, an access token merely
// attaches the reservation to an account (and its gateway customer).  A
// malformed or expired token is treated the same as no token.
func OptionalJWT(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return next(c)
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, echo.ErrUnauthorized
				}
				return []byte(secret), nil
			})
			if err != nil || !tok.Valid {
				return next(c)
			}
			if claims, ok := tok.Claims.(jwt.MapClaims); ok {
				c.Set("user_id", claims["sub"])
				c.Set("role", claims["role"])
			}
			return next(c)
		}
	}
}
