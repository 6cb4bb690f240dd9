package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ticket-gate/internal/middleware"
	"github.com/iliyamo/ticket-gate/internal/service"
)

type EventHandler struct {
	Events *service.Events
}

func NewEventHandler(s *service.Events) *EventHandler { return &EventHandler{Events: s} }

func (h *EventHandler) Create(c echo.Context) error {
	var req service.NewEvent
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	e, err := h.Events.Create(ctx, middleware.ActorFrom(c), req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, e)
}

func (h *EventHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	events, err := h.Events.List(ctx, middleware.ActorFrom(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, events)
}

func (h *EventHandler) Delete(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	if err := h.Events.Delete(ctx, middleware.ActorFrom(c), c.Param("id")); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
