package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ticket-gate/internal/middleware"
	"github.com/iliyamo/ticket-gate/internal/service"
)

// ScanHandler serves the gate scanners.
type ScanHandler struct {
	CheckIn *service.CheckIn
}

func NewScanHandler(ci *service.CheckIn) *ScanHandler { return &ScanHandler{CheckIn: ci} }

type validateReq struct {
	Payload string `json:"payload"`
}

// Validate checks in the ticket named by the scanned payload. Both a
// first scan and a repeated scan answer 200; the status field tells them
// apart.
func (h *ScanHandler) Validate(c echo.Context) error {
	var req validateReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	return h.validate(c, req.Payload)
}

// ScanByPath is Validate with the ticket id taken from the URL.
func (h *ScanHandler) ScanByPath(c echo.Context) error {
	return h.validate(c, c.Param("ticket_id"))
}

func (h *ScanHandler) validate(c echo.Context, payload string) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	st, err := h.CheckIn.Validate(ctx, middleware.ActorFrom(c), payload)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, st)
}
