package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/ticket-gate/internal/encoder"
	"github.com/iliyamo/ticket-gate/internal/handler"
	"github.com/iliyamo/ticket-gate/internal/model"
	"github.com/iliyamo/ticket-gate/internal/repository"
	"github.com/iliyamo/ticket-gate/internal/service"
)

func TestMain(m *testing.M) {
	log.Logger = zerolog.Nop()
	os.Exit(m.Run())
}

type testServer struct {
	e        *echo.Echo
	accounts *service.Accounts
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	tickets := repository.NewMemTicketRepo()
	accounts := service.NewAccounts(repository.NewMemUserRepo(), service.AccountsConfig{JWTSecret: "router-test", BcryptCost: 4})
	enc := encoder.NewQR(64, "low")

	e := echo.New()
	RegisterRoutes(e, Handlers{
		Auth:    handler.NewAuthHandler(accounts),
		Users:   handler.NewUserHandler(accounts),
		Tickets: handler.NewTicketHandler(service.NewRegistry(tickets, tickets, enc, nil, service.RegistryConfig{}), service.NewExporter(tickets, enc)),
		Scan:    handler.NewScanHandler(service.NewCheckIn(tickets, enc, nil, 3)),
		Events:  handler.NewEventHandler(service.NewEvents(repository.NewMemEventRepo())),
	}, accounts, nil)

	for _, u := range []service.NewUser{
		{Email: "admin@example.com", Password: "adminpass", Role: model.RoleAdmin},
		{Email: "gate@example.com", Password: "gatepass1", Role: model.RoleScanner},
	} {
		_, err := accounts.Bootstrap(context.Background(), u)
		require.NoError(t, err)
	}
	return &testServer{e: e, accounts: accounts}
}

func (s *testServer) login(t *testing.T, email, password string) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/v1/auth/login", "", `{"email":"`+email+`","password":"`+password+`"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	return res.AccessToken
}

func (s *testServer) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m), rec.Body.String())
	return m
}

const t1 = `{"name":"Ann","id_card_number":"T1","date_of_birth":"1990-01-01","phone_number":"+1","event":"E1"}`

func TestTicketLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)
	adminTok := s.login(t, "admin@example.com", "adminpass")
	gateTok := s.login(t, "gate@example.com", "gatepass1")

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/healthz", "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/v1/me", "", "").Code)

	me := decode(t, s.do(t, http.MethodGet, "/v1/me", gateTok, ""))
	assert.Equal(t, []any{"scan_ticket"}, me["permissions"])

	rec := s.do(t, http.MethodPost, "/v1/tickets", adminTok, t1)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	issued := decode(t, rec)
	assert.Equal(t, "0001", issued["ticket_number"])
	assert.Equal(t, "valid", issued["status"])
	assert.True(t, strings.HasPrefix(issued["qr"].(string), "data:image/png;base64,"))
	id := issued["ticket_id"].(string)

	assert.Equal(t, http.StatusConflict, s.do(t, http.MethodPost, "/v1/tickets", adminTok, t1).Code)
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodPost, "/v1/tickets", gateTok, t1).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/v1/tickets", adminTok, `{"name":"x"}`).Code)

	first := decode(t, s.do(t, http.MethodPost, "/v1/validate_ticket", gateTok, `{"payload":" `+id+` "}`))
	assert.Equal(t, "valid", first["status"])
	second := decode(t, s.do(t, http.MethodPost, "/v1/scan/"+id, gateTok, ""))
	assert.Equal(t, "already_checked_in", second["status"])
	assert.Equal(t, first["scanned_at"], second["scanned_at"])

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodPost, "/v1/scan/nope", gateTok, "").Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/v1/validate_ticket", gateTok, `{"payload":"  "}`).Code)

	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, "/v1/export", gateTok, "").Code)
	exp := decode(t, s.do(t, http.MethodGet, "/v1/export?used=true&event=E1", adminTok, ""))
	assert.Equal(t, float64(1), exp["count"])
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/v1/export?used=maybe", adminTok, "").Code)

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPatch, "/v1/tickets/"+id, adminTok, `{"used":false}`).Code)
	patched := decode(t, s.do(t, http.MethodPatch, "/v1/tickets/"+id, adminTok, `{"name":"Anne"}`))
	assert.Equal(t, "Anne", patched["name"])
	assert.Equal(t, true, patched["used"])

	assert.Equal(t, http.StatusPreconditionRequired, s.do(t, http.MethodDelete, "/v1/tickets", adminTok, "").Code)
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodDelete, "/v1/tickets?confirm=true", gateTok, "").Code)
	del := decode(t, s.do(t, http.MethodDelete, "/v1/tickets?confirm=true", adminTok, ""))
	assert.Equal(t, float64(1), del["deleted"])
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/v1/tickets/"+id, adminTok, "").Code)
}

func TestRevokedTokenIsRejected(t *testing.T) {
	s := newTestServer(t)
	adminTok := s.login(t, "admin@example.com", "adminpass")
	gateTok := s.login(t, "gate@example.com", "gatepass1")

	users := s.do(t, http.MethodGet, "/v1/users", adminTok, "")
	require.Equal(t, http.StatusOK, users.Code)
	var list []model.User
	require.NoError(t, json.Unmarshal(users.Body.Bytes(), &list))
	require.Len(t, list, 2)
	assert.NotContains(t, users.Body.String(), "password")

	rec := s.do(t, http.MethodPost, "/v1/users/2/revoke", adminTok, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/v1/me", gateTok, "").Code)

	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodPost, "/v1/auth/login", "", `{"email":"gate@example.com","password":"nope"}`).Code)
}

func TestEventsOverHTTP(t *testing.T) {
	s := newTestServer(t)
	adminTok := s.login(t, "admin@example.com", "adminpass")
	gateTok := s.login(t, "gate@example.com", "gatepass1")

	body := `{"name":"Opening","date":"2025-09-06","location":"Main hall"}`
	rec := s.do(t, http.MethodPost, "/v1/events", adminTok, body)
	require.Equal(t, http.StatusCreated, rec.Code)
	ev := decode(t, rec)

	assert.Equal(t, http.StatusConflict, s.do(t, http.MethodPost, "/v1/events", adminTok, body).Code)
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, "/v1/events", gateTok, "").Code)
	assert.Equal(t, http.StatusNoContent, s.do(t, http.MethodDelete, "/v1/events/"+ev["id"].(string), adminTok, "").Code)
}
