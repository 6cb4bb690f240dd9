package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/ticket-gate/internal/access"
	"github.com/iliyamo/ticket-gate/internal/config"
	"github.com/iliyamo/ticket-gate/internal/model"
)

type stubResolver map[string]model.Actor

func (s stubResolver) ResolveActor(_ context.Context, raw string) (model.Actor, error) {
	if raw == "explode" {
		return model.Actor{}, errors.New("db down")
	}
	a, ok := s[raw]
	if !ok {
		return model.Actor{}, access.ErrUnauthenticated
	}
	return a, nil
}

var resolver = stubResolver{
	"scanner-token": {ID: 7, Role: model.RoleScanner, TokenVersion: 1},
	"admin-token":   {ID: 1, Role: model.RoleAdmin, TokenVersion: 1},
}

func serve(t *testing.T, mws []echo.MiddlewareFunc, token string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	e.GET("/x", func(c echo.Context) error {
		return c.JSON(http.StatusOK, ActorFrom(c))
	}, mws...)
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuth(t *testing.T) {
	mw := []echo.MiddlewareFunc{JWTAuth(resolver)}

	assert.Equal(t, http.StatusUnauthorized, serve(t, mw, "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(t, mw, "revoked").Code)
	assert.Equal(t, http.StatusServiceUnavailable, serve(t, mw, "explode").Code)

	rec := serve(t, mw, "scanner-token")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"role":"scanner"`)
}

func TestRequirePermission(t *testing.T) {
	export := []echo.MiddlewareFunc{JWTAuth(resolver), RequirePermission(access.Export)}
	scan := []echo.MiddlewareFunc{JWTAuth(resolver), RequirePermission(access.ScanTicket)}

	assert.Equal(t, http.StatusForbidden, serve(t, export, "scanner-token").Code)
	assert.Equal(t, http.StatusOK, serve(t, export, "admin-token").Code)
	assert.Equal(t, http.StatusOK, serve(t, scan, "scanner-token").Code)
	assert.Equal(t, http.StatusOK, serve(t, scan, "admin-token").Code)

	// Without JWTAuth in front there is no actor at all.
	assert.Equal(t, http.StatusUnauthorized, serve(t, []echo.MiddlewareFunc{RequirePermission(access.ScanTicket)}, "").Code)
}

func TestBuildRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/validate_ticket", nil)
	req.Header.Set("X-Real-IP", "10.0.0.9")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/validate_ticket")

	cfg := config.RateLimitConfig{Prefix: "rl:scan", KeyStrategy: "user"}
	assert.Equal(t, "rl:scan:user:anon", buildRateKey(cfg, c))

	c.Set(actorKey, model.Actor{ID: 7, Role: model.RoleScanner})
	assert.Equal(t, "rl:scan:user:7", buildRateKey(cfg, c))

	cfg.KeyStrategy = config.LimitByUserIP
	assert.Equal(t, "rl:scan:user:7:ip:10.0.0.9", buildRateKey(cfg, c))

	cfg.KeyStrategy = config.LimitByIP
	assert.Equal(t, "rl:scan:ip:10.0.0.9", buildRateKey(cfg, c))
}

func TestTokenBucket_FailsOpen(t *testing.T) {
	cfg := config.RateLimitConfig{Enabled: true, Capacity: 1, RefillTokens: 1, RefillInterval: time.Second, TTL: time.Minute, KeyStrategy: "user", Prefix: "rl"}

	// Disabled and nil-client limiters are pass-through.
	assert.Equal(t, http.StatusOK, serve(t, []echo.MiddlewareFunc{NewTokenBucket(config.RateLimitConfig{}, nil)}, "").Code)
	assert.Equal(t, http.StatusOK, serve(t, []echo.MiddlewareFunc{NewTokenBucket(cfg, nil)}, "").Code)

	// A mock with no expectations fails every command; the request still passes.
	db, _ := redismock.NewClientMock()
	assert.Equal(t, http.StatusOK, serve(t, []echo.MiddlewareFunc{NewTokenBucket(cfg, db)}, "").Code)
}

func TestScanLimiter_Take(t *testing.T) {
	cfg := config.RateLimitConfig{Capacity: 2, RefillTokens: 1, RefillInterval: time.Second, TTL: time.Minute}
	db, mock := redismock.NewClientMock()
	l := scanLimiter{cfg: cfg, rdb: db}
	now := time.UnixMilli(5000)

	mock.ExpectEvalSha(takeToken.Hash(), []string{"rl:scan:user:7"}, int64(5000), 2, 1, int64(1000), int64(60)).
		SetVal([]interface{}{int64(0), int64(0), int64(250)})

	res, err := l.take(context.Background(), "rl:scan:user:7", now)
	require.NoError(t, err)
	assert.False(t, res.taken)
	assert.Equal(t, 250*time.Millisecond, res.wait)
	assert.NoError(t, mock.ExpectationsWereMet())
}
