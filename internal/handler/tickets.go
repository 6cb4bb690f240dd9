package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ticket-gate/internal/middleware"
	"github.com/iliyamo/ticket-gate/internal/model"
	"github.com/iliyamo/ticket-gate/internal/service"
)

// TicketHandler exposes issuance, lookup, edit, deletion and export.
type TicketHandler struct {
	Registry *service.Registry
	Exporter *service.Exporter
}

func NewTicketHandler(r *service.Registry, e *service.Exporter) *TicketHandler {
	return &TicketHandler{Registry: r, Exporter: e}
}

// Create issues a ticket. The response is 201 even when the credential
// could not be rendered; qr is then empty and qr_error explains why.
func (h *TicketHandler) Create(c echo.Context) error {
	var req service.IssueRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	st, err := h.Registry.Issue(ctx, middleware.ActorFrom(c), req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, st)
}

func (h *TicketHandler) Get(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	st, err := h.Registry.Get(ctx, middleware.ActorFrom(c), c.Param("ticket_id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, st)
}

// Patch applies a correction. Unknown fields, including the check-in
// columns, are rejected.
func (h *TicketHandler) Patch(c echo.Context) error {
	var patch model.TicketPatch
	dec := jsonDecoder(c)
	if err := dec.Decode(&patch); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": fmt.Sprintf("invalid body: %v", err)})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	st, err := h.Registry.Edit(ctx, middleware.ActorFrom(c), c.Param("ticket_id"), patch)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, st)
}

func (h *TicketHandler) Delete(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	if err := h.Registry.Delete(ctx, middleware.ActorFrom(c), c.Param("ticket_id")); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// DeleteAll removes every ticket. Requires ?confirm=true.
func (h *TicketHandler) DeleteAll(c echo.Context) error {
	confirm, _ := strconv.ParseBool(c.QueryParam("confirm"))
	ctx, cancel := context.WithTimeout(c.Request().Context(), 30*time.Second)
	defer cancel()
	n, err := h.Registry.DeleteAll(ctx, middleware.ActorFrom(c), confirm)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"deleted": n})
}

// Export lists tickets. Query parameters: used (true|false), event,
// scanned_by (user id), scanned_from and scanned_to (RFC 3339 or
// YYYY-MM-DD, from inclusive and to exclusive).
func (h *TicketHandler) Export(c echo.Context) error {
	f, err := parseFilter(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 30*time.Second)
	defer cancel()
	rows, err := h.Exporter.List(ctx, middleware.ActorFrom(c), f)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"count": len(rows), "tickets": rows})
}

func parseFilter(c echo.Context) (model.TicketFilter, error) {
	var f model.TicketFilter
	if v := c.QueryParam("used"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, errors.New("used must be true or false")
		}
		f.Used = &b
	}
	f.Event = strings.TrimSpace(c.QueryParam("event"))
	if v := c.QueryParam("scanned_by"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return f, errors.New("scanned_by must be a user id")
		}
		f.ScannedBy = &id
	}
	for _, p := range []struct {
		name string
		dst  **time.Time
	}{{"scanned_from", &f.ScannedFrom}, {"scanned_to", &f.ScannedTo}} {
		v := c.QueryParam(p.name)
		if v == "" {
			continue
		}
		t, err := parseTime(v)
		if err != nil {
			return f, fmt.Errorf("%s must be RFC 3339 or YYYY-MM-DD", p.name)
		}
		*p.dst = &t
	}
	return f, nil
}

func parseTime(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC(), nil
	}
	return time.Parse("2006-01-02", v)
}
