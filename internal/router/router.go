package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iliyamo/ticket-gate/internal/access"
	"github.com/iliyamo/ticket-gate/internal/handler"    // import the handlers that call into the services
	"github.com/iliyamo/ticket-gate/internal/middleware" // import middleware for JWT authentication and permission checks
)

// Handlers groups everything RegisterRoutes needs.
type Handlers struct {
	Auth    *handler.AuthHandler
	Users   *handler.UserHandler
	Tickets *handler.TicketHandler
	Scan    *handler.ScanHandler
	Events  *handler.EventHandler
}

// RegisterRoutes registers every route on e.  Public endpoints are the
// health check, the Prometheus scrape endpoint and login; everything under
// /v1 otherwise runs JWTAuth followed by a per-route permission check.
// scanLimit wraps the two scan endpoints.
func RegisterRoutes(e *echo.Echo, h Handlers, resolver middleware.ActorResolver, scanLimit echo.MiddlewareFunc) {
	// Map the GET request at path "/healthz" to the Health handler.  This
	// endpoint can be used by load balancers or monitoring systems to verify
	// that the service is up and running.
	e.GET("/healthz", handler.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	e.POST("/v1/auth/login", h.Auth.Login)

	if scanLimit == nil {
		scanLimit = func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}

	v1 := e.Group("/v1")
	v1.Use(middleware.JWTAuth(resolver))
	perm := middleware.RequirePermission

	v1.GET("/me", h.Auth.Me)

	v1.POST("/users", h.Users.Create, perm(access.CreateUser))
	v1.GET("/users", h.Users.List, perm(access.CreateUser))
	v1.DELETE("/users/:id", h.Users.Delete, perm(access.CreateUser))
	v1.POST("/users/:id/revoke", h.Users.Revoke, perm(access.CreateUser))

	v1.POST("/tickets", h.Tickets.Create, perm(access.CreateTicket))
	v1.GET("/tickets/:ticket_id", h.Tickets.Get, perm(access.Export))
	v1.PATCH("/tickets/:ticket_id", h.Tickets.Patch, perm(access.EditTicket))
	v1.DELETE("/tickets/:ticket_id", h.Tickets.Delete, perm(access.DeleteTicket))
	v1.DELETE("/tickets", h.Tickets.DeleteAll, perm(access.DeleteTicket))
	v1.GET("/export", h.Tickets.Export, perm(access.Export))

	// Scanner endpoints are rate limited per actor after the permission
	// check, so rejected callers do not consume tokens.
	v1.POST("/validate_ticket", h.Scan.Validate, perm(access.ScanTicket), scanLimit)
	v1.POST("/scan/:ticket_id", h.Scan.ScanByPath, perm(access.ScanTicket), scanLimit)

	v1.POST("/events", h.Events.Create, perm(access.CreateEvent))
	v1.GET("/events", h.Events.List, perm(access.ViewEvents))
	v1.DELETE("/events/:id", h.Events.Delete, perm(access.DeleteEvent))
}
