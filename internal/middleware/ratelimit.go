package middleware

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/movie-catalog/internal/config"
	"github.com/iliyamo/movie-catalog/internal/logging"
)

// takeScript refills the bucket continuously at refill/interval tokens per
// millisecond, then tries to take one token.  It returns
// {allowed, remaining, retry_after_ms}.
var takeScript = redis.NewScript(`
local key       = KEYS[1]
local now       = tonumber(ARGV[1])
local capacity  = tonumber(ARGV[2])
local rate      = tonumber(ARGV[3]) / tonumber(ARGV[4])
local ttl_ms    = tonumber(ARGV[5])

local tokens = tonumber(redis.call('HGET', key, 'tokens'))
local seen   = tonumber(redis.call('HGET', key, 'ts'))
if tokens == nil or seen == nil then
	tokens = capacity
	seen = now
end

tokens = math.min(capacity, tokens + math.max(0, now - seen) * rate)

local allowed = 0
local wait = 0
if tokens >= 1 then
	allowed = 1
	tokens = tokens - 1
else
	wait = math.ceil((1 - tokens) / rate)
end

redis.call('HSET', key, 'tokens', tokens, 'ts', now)
redis.call('PEXPIRE', key, ttl_ms)
return { allowed, math.floor(tokens), wait }
`)

// bucketResult is one decoded takeScript reply.
type bucketResult struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
}

type tokenBucket struct {
	cfg config.RateLimitConfig
	rdb *redis.Client
}

func (b tokenBucket) take(ctx context.Context, key string, now time.Time) (bucketResult, error) {
	reply, err := takeScript.Run(ctx, b.rdb, []string{key},
		now.UnixMilli(),
		b.cfg.Capacity,
		b.cfg.RefillTokens,
		b.cfg.RefillInterval.Milliseconds(),
		b.cfg.TTL.Milliseconds(),
	).Result()
	if err != nil {
		return bucketResult{}, err
	}
	return parseBucketReply(reply)
}

// parseBucketReply decodes the script's {allowed, remaining, retry_ms} array.
func parseBucketReply(reply any) (bucketResult, error) {
	arr, ok := reply.([]any)
	if !ok || len(arr) != 3 {
		return bucketResult{}, fmt.Errorf("ratelimit: unexpected reply %v", reply)
	}
	nums := make([]int64, 3)
	for i, v := range arr {
		n, ok := v.(int64)
		if !ok {
			return bucketResult{}, fmt.Errorf("ratelimit: reply element %d is %T", i, v)
		}
		nums[i] = n
	}
	return bucketResult{
		Allowed:    nums[0] == 1,
		Remaining:  nums[1],
		RetryAfter: time.Duration(nums[2]) * time.Millisecond,
	}, nil
}

// NewTokenBucket limits requests with a Redis-side token bucket keyed by
// cfg.KeyStrategy.  Redis errors fail open.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	bucket := tokenBucket{cfg: cfg, rdb: rdb}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			key := buildRateKey(cfg, c)

			res, err := bucket.take(ctx, key, time.Now())
			if err != nil {
				logging.Ctx(ctx).Debug().Err(err).Str("key", key).Msg("rate limiter unavailable")
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
			if cfg.Debug {
				h.Set("X-RateLimit-Key", key)
			}
			if res.Allowed {
				return next(c)
			}

			secs := int(math.Ceil(res.RetryAfter.Seconds()))
			h.Set("Retry-After", strconv.Itoa(secs))
			logging.Ctx(ctx).Info().Str("key", key).Dur("retry_after", res.RetryAfter).Msg("rate limited")
			return c.JSON(http.StatusTooManyRequests, echo.Map{
				"message":     "Too many requests",
				"error":       "rate limit exceeded",
				"retry_after": secs,
			})
		}
	}
}

// keyParts lists the request attributes each strategy combines.  Unknown
// strategies use all three.
var keyParts = map[string][]string{
	"ip":         {"ip"},
	"user":       {"user"},
	"route":      {"route"},
	"ip_user":    {"ip", "user"},
	"ip_route":   {"ip", "route"},
	"user_route": {"user", "route"},
}

func buildRateKey(cfg config.RateLimitConfig, c echo.Context) string {
	parts, ok := keyParts[strings.ToLower(cfg.KeyStrategy)]
	if !ok {
		parts = []string{"ip", "user", "route"}
	}
	key := []string{cfg.Prefix}
	for _, p := range parts {
		switch p {
		case "ip":
			ip := c.RealIP()
			if ip == "" {
				ip = "unknown"
			}
			key = append(key, "ip", ip)
		case "user":
			key = append(key, "user", userKey(c))
		case "route":
			key = append(key, "route", c.Request().Method+" "+c.Path())
		}
	}
	return strings.Join(key, ":")
}
