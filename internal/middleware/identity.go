package middleware

// identity.go defines helpers shared across middleware files and handlers
// for reading the actor that JWTAuth stored in the Echo context.

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ticket-gate/internal/model"
)

const actorKey = "actor"

// ActorFrom returns the actor stored by JWTAuth, or the zero (anonymous)
// actor when the request was not authenticated.
func ActorFrom(c echo.Context) model.Actor {
	if a, ok := c.Get(actorKey).(model.Actor); ok {
		return a
	}
	return model.Actor{}
}

// userID returns the actor id as a string, or "anon" when no actor is set.
func userID(c echo.Context) string {
	a := ActorFrom(c)
	if a.Anonymous() {
		return "anon"
	}
	return strconv.FormatUint(a.ID, 10)
}
