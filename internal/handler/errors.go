package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/iliyamo/ticket-gate/internal/access"
	"github.com/iliyamo/ticket-gate/internal/repository"
	"github.com/iliyamo/ticket-gate/internal/service"
)

// statusOf maps a service or repository error to an HTTP status code.
func statusOf(err error) int {
	switch {
	case errors.Is(err, access.ErrUnauthenticated), errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, access.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, service.ErrPreconditionRequired):
		return http.StatusPreconditionRequired
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, repository.ErrStoreUnavailable), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeError renders err in the {"error": "..."} envelope. Unexpected
// errors are logged and hidden behind a generic message.
func writeError(c echo.Context, err error) error {
	code := statusOf(err)
	msg := err.Error()
	switch code {
	case http.StatusInternalServerError:
		log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
		msg = "internal error"
	case http.StatusServiceUnavailable:
		log.Error().Err(err).Str("path", c.Path()).Msg("store unavailable")
		msg = "service temporarily unavailable, retry later"
	}
	return c.JSON(code, echo.Map{"error": msg})
}
