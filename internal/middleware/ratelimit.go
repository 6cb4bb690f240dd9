package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/iliyamo/ticket-gate/internal/config"
)

// takeToken refills the bucket at KEYS[1] for the whole intervals elapsed
// since the last refill, then takes one token if any is left.
// Returns {taken, tokens_left, wait_ms}.
var takeToken = redis.NewScript(`
local now = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local refill = tonumber(ARGV[3])
local interval = tonumber(ARGV[4])

local b = redis.call('HMGET', KEYS[1], 'tokens', 'refilled_at')
local tokens = tonumber(b[1]) or capacity
local refilled_at = tonumber(b[2]) or now

local steps = math.floor(math.max(0, now - refilled_at) / interval)
if steps > 0 then
  tokens = math.min(capacity, tokens + steps * refill)
  refilled_at = refilled_at + steps * interval
end

local taken, wait = 0, 0
if tokens > 0 then
  taken = 1
  tokens = tokens - 1
else
  wait = math.max(0, interval - (now - refilled_at))
end

redis.call('HSET', KEYS[1], 'tokens', tokens, 'refilled_at', refilled_at)
redis.call('EXPIRE', KEYS[1], ARGV[5])
return {taken, tokens, wait}
`)

type bucketResult struct {
	taken bool
	left  int64
	wait  time.Duration
}

type scanLimiter struct {
	cfg config.RateLimitConfig
	rdb *redis.Client
}

func (l scanLimiter) take(ctx context.Context, key string, now time.Time) (bucketResult, error) {
	raw, err := takeToken.Run(ctx, l.rdb, []string{key},
		now.UnixMilli(),
		l.cfg.Capacity,
		l.cfg.RefillTokens,
		l.cfg.RefillInterval.Milliseconds(),
		int64(l.cfg.TTL/time.Second),
	).Int64Slice()
	if err != nil {
		return bucketResult{}, err
	}
	if len(raw) != 3 {
		return bucketResult{}, fmt.Errorf("ratelimit: unexpected reply %v", raw)
	}
	return bucketResult{taken: raw[0] == 1, left: raw[1], wait: time.Duration(raw[2]) * time.Millisecond}, nil
}

// NewTokenBucket limits scans per key with a bucket shared by every server
// instance through Redis. Redis errors let the scan through. A disabled
// config or a nil client yields a pass-through middleware.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	l := scanLimiter{cfg: cfg, rdb: rdb}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := buildRateKey(cfg, c)
			res, err := l.take(c.Request().Context(), key, time.Now())
			if err != nil {
				log.Warn().Err(err).Str("key", key).Msg("ratelimit: redis unavailable, allowing scan")
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(res.left, 10))
			if cfg.Debug {
				h.Set("X-RateLimit-Key", key)
			}
			if res.taken {
				return next(c)
			}

			secs := int((res.wait + time.Second - 1) / time.Second)
			h.Set("Retry-After", strconv.Itoa(secs))
			log.Debug().Str("key", key).Dur("wait", res.wait).Msg("ratelimit: scan rejected")
			return c.JSON(http.StatusTooManyRequests, map[string]any{
				"error":       "too_many_requests",
				"retry_after": secs,
			})
		}
	}
}

func buildRateKey(cfg config.RateLimitConfig, c echo.Context) string {
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	parts := []string{cfg.Prefix}
	switch cfg.KeyStrategy {
	case config.LimitByIP:
		parts = append(parts, "ip", ip)
	case config.LimitByUserIP:
		parts = append(parts, "user", userID(c), "ip", ip)
	default:
		parts = append(parts, "user", userID(c))
	}
	return strings.Join(parts, ":")
}
