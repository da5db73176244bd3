package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"net/http" // HTTP status codes for responses

	"github.com/labstack/echo/v4" // Echo framework used for defining middleware and handlers

	"github.com/iliyamo/order-collab/internal/auth"
)

// JWTAuth returns an Echo middleware that validates a Bearer access token and
// injects the authenticated principal into the request context. The same
// verifier instance guards the websocket handshake, so a token accepted here
// is accepted there and vice versa. Handlers access the identity via
// c.Get("user_id") and c.Get("role").
func JWTAuth(v *auth.Verifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			principal, err := v.VerifyBearer(c.Request().Header.Get("Authorization"))
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			c.Set("user_id", principal.UserID)
			c.Set("role", principal.Role)
			return next(c)
		}
	}
}
