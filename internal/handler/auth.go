package handler

import (
	"context"  // provides context with cancellation for store calls
	"net/http" // HTTP status codes and primitives
	"time"     // timeouts for store calls

	"github.com/labstack/echo/v4" // Echo framework for HTTP routing

	"github.com/iliyamo/ticket-gate/internal/access"
	"github.com/iliyamo/ticket-gate/internal/middleware"
	"github.com/iliyamo/ticket-gate/internal/model"
	"github.com/iliyamo/ticket-gate/internal/service"
)

// requestTimeout bounds the store work of a single request.
const requestTimeout = 5 * time.Second

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Accounts *service.Accounts
}

func NewAuthHandler(a *service.Accounts) *AuthHandler { return &AuthHandler{Accounts: a} }

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login: verify credentials and return an access token.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	res, err := h.Accounts.Login(ctx, req.Email, req.Password)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Me returns the authenticated actor and the actions its role may perform.
func (h *AuthHandler) Me(c echo.Context) error {
	actor := middleware.ActorFrom(c)
	if actor.Anonymous() {
		return writeError(c, access.ErrUnauthenticated)
	}
	perms := access.Actions(actor.Role)
	return c.JSON(http.StatusOK, echo.Map{
		"user":        actor,
		"permissions": perms,
		"all_access":  actor.Role == model.RoleAdmin,
	})
}
