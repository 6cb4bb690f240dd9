package middleware // middleware provides shared request processing for handlers

import (
	"net/http" // http package defines standard HTTP status codes

	"github.com/labstack/echo/v4" // echo provides middleware chaining and context

	"github.com/iliyamo/ticket-gate/internal/access"
)

// RequirePermission returns a middleware that enforces that the
// authenticated actor may perform action according to the permission
// table.  It assumes JWTAuth ran before it.  Requests without an actor get
// 401; actors whose role lacks the action get 403.  Services check the
// same permission again, so this only saves a round trip into them.
func RequirePermission(action string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			actor := ActorFrom(c)
			if actor.Anonymous() {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
			}
			if !access.Allowed(actor.Role, action) {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden", "action": action})
			}
			return next(c)
		}
	}
}
