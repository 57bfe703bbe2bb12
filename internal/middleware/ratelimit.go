package middleware

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/meeting-room-reservation/internal/config"
)

// tokenBucket refills capacity-bounded tokens per interval and takes one
// per call.  It returns {allowed, remaining, retry_after_ms}.
var tokenBucket = redis.NewScript(`
local key = KEYS[1]
local now_ms = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local refill_tokens = tonumber(ARGV[3])
local interval_ms = tonumber(ARGV[4])
local ttl_seconds = tonumber(ARGV[5])

local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
local tokens = tonumber(state[1])
local last_refill = tonumber(state[2])
if tokens == nil or last_refill == nil then
	tokens = capacity
	last_refill = now_ms
end

local elapsed = math.max(0, now_ms - last_refill)
local intervals = math.floor(elapsed / interval_ms)
if intervals > 0 then
	tokens = math.min(capacity, tokens + intervals * refill_tokens)
	last_refill = last_refill + intervals * interval_ms
end

local allowed = 0
local retry_ms = 0
if tokens > 0 then
	allowed = 1
	tokens = tokens - 1
else
	retry_ms = math.max(0, interval_ms - (now_ms - last_refill))
end

redis.call('HSET', key, 'tokens', tokens, 'last_refill_ms', last_refill)
redis.call('EXPIRE', key, ttl_seconds)
return { allowed, tokens, retry_ms }
`)

// RateLimit applies a Redis token bucket per key (see
// config.RateLimitConfig.KeyStrategy).  It passes everything through when
// disabled, when rdb is nil, or when Redis fails.
func RateLimit(cfg config.RateLimitConfig, rdb *redis.Client, log *zap.Logger) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return passThrough
	}
	if log == nil {
		log = zap.NewNop()
	}
	ttlSecs := int64(cfg.TTL / time.Second)
	if ttlSecs < 1 {
		ttlSecs = 1
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := rateKey(cfg, c)
			vals, err := tokenBucket.Run(c.Request().Context(), rdb, []string{key},
				time.Now().UnixMilli(),
				cfg.Capacity,
				cfg.RefillTokens,
				cfg.RefillInterval.Milliseconds(),
				ttlSecs,
			).Int64Slice()
			if err != nil || len(vals) != 3 {
				log.Warn("rate limiter unavailable", zap.String("key", key), zap.Error(err))
				return next(c)
			}
			allowed, remaining, retryMs := vals[0] == 1, vals[1], vals[2]

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
			if !allowed {
				secs := int(math.Ceil(float64(retryMs) / 1000))
				h.Set("Retry-After", strconv.Itoa(secs))
				return c.JSON(http.StatusTooManyRequests, echo.Map{
					"error":       "too_many_requests",
					"message":     "rate limit exceeded",
					"retry_after": secs,
				})
			}
			return next(c)
		}
	}
}

func rateKey(cfg config.RateLimitConfig, c echo.Context) string {
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	user := subject(c)
	route := c.Request().Method + " " + c.Path()

	parts := []string{cfg.Prefix}
	switch strings.ToLower(cfg.KeyStrategy) {
	case "ip":
		parts = append(parts, "ip", ip)
	case "user":
		parts = append(parts, "user", user)
	case "ip_user":
		parts = append(parts, "ip", ip, "user", user)
	default:
		parts = append(parts, "ip", ip, "user", user, "route", route)
	}
	return strings.Join(parts, ":")
}

func passThrough(next echo.HandlerFunc) echo.HandlerFunc { return next }
