package config

import (
	"strings"
	"time"
)

// Key strategies for the scan limiter.
const (
	LimitByUser   = "user"
	LimitByIP     = "ip"
	LimitByUserIP = "user_ip"
)

// RateLimitConfig sizes the token bucket kept in Redis for every scanner.
// A bucket holds at most Capacity scans and regains RefillTokens each
// RefillInterval.
type RateLimitConfig struct {
	Enabled        bool
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	TTL            time.Duration
	KeyStrategy    string
	Prefix         string
	Debug          bool
}

// LoadRateLimitConfig reads RATE_LIMIT_*. RATE_LIMIT_BURST overrides the
// capacity and RATE_LIMIT_REFILL_EVERY switches to one token per period.
func LoadRateLimitConfig() RateLimitConfig {
	cfg := RateLimitConfig{
		Enabled:        envBool("RATE_LIMIT_ENABLED", true),
		Capacity:       envInt("RATE_LIMIT_CAPACITY", 30),
		RefillTokens:   envInt("RATE_LIMIT_REFILL_TOKENS", 5),
		RefillInterval: envDur("RATE_LIMIT_REFILL_INTERVAL", time.Second),
		TTL:            envDur("RATE_LIMIT_TTL", 10*time.Minute),
		KeyStrategy:    strings.ToLower(envStr("RATE_LIMIT_KEY_STRATEGY", LimitByUser)),
		Prefix:         envStr("RATE_LIMIT_PREFIX", "rl:scan"),
		Debug:          envBool("RATE_LIMIT_DEBUG", false),
	}
	if burst := envInt("RATE_LIMIT_BURST", 0); burst > 0 {
		cfg.Capacity = burst
	}
	if every := envDur("RATE_LIMIT_REFILL_EVERY", 0); every > 0 {
		cfg.RefillTokens, cfg.RefillInterval = 1, every
	}
	cfg.normalize()
	return cfg
}

func (c *RateLimitConfig) normalize() {
	c.Capacity = max(c.Capacity, 1)
	c.RefillTokens = max(c.RefillTokens, 1)
	if c.RefillInterval <= 0 {
		c.RefillInterval = time.Second
	}
	// An idle bucket must outlive the time it takes to refill it.
	c.TTL = max(c.TTL, 5*c.RefillInterval)
	switch c.KeyStrategy {
	case LimitByUser, LimitByIP, LimitByUserIP:
	default:
		c.KeyStrategy = LimitByUser
	}
}
