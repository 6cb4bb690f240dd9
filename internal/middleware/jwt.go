package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"context"  // request scoped context passed to the resolver
	"errors"   // matching resolver failures
	"net/http" // HTTP status codes for responses
	"strings"  // string utilities for prefix checking and trimming

	"github.com/labstack/echo/v4" // Echo framework used for defining middleware and handlers
	"github.com/rs/zerolog/log"

	"github.com/iliyamo/ticket-gate/internal/access"
	"github.com/iliyamo/ticket-gate/internal/model"
)

// ActorResolver turns a raw bearer token into the actor it names.  It must
// return access.ErrUnauthenticated for tokens that are invalid, expired or
// revoked.
type ActorResolver interface {
	ResolveActor(ctx context.Context, raw string) (model.Actor, error)
}

// JWTAuth returns an Echo middleware that validates a Bearer access token and
// injects the resolved actor into the request context.  Resolution checks
// the token signature and expiry and compares its version claim with the
// stored token_version, so revoked sessions are refused here.  Handlers
// read the actor with ActorFrom(c).
func JWTAuth(resolver ActorResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// Read the Authorization header.  A valid header should start
			// with "Bearer " followed by the JWT.
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))

			actor, err := resolver.ResolveActor(c.Request().Context(), raw)
			if errors.Is(err, access.ErrUnauthenticated) {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			if err != nil {
				log.Error().Err(err).Msg("resolve actor failed")
				return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "authentication unavailable"})
			}

			c.Set(actorKey, actor)
			c.Set("user_id", actor.ID)
			c.Set("role", actor.Role)
			return next(c)
		}
	}
}
