package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/oksasatya/go-user-auth-service/pkg/response"
)

// KeyFunc names the bucket a request is counted in.
type KeyFunc func(c *gin.Context) string

// AllowFunc returns true for requests that skip the check.
type AllowFunc func(*gin.Context) bool

func ipFromCtx(c *gin.Context) string {
	if ip := c.GetString("real_ip"); ip != "" {
		return ip
	}
	if ip := c.ClientIP(); ip != "" {
		return ip
	}
	return "unknown"
}

func routeOf(c *gin.Context) string {
	if fp := c.FullPath(); fp != "" {
		return fp
	}
	return c.Request.URL.Path
}

func KeyByIP() KeyFunc {
	return func(c *gin.Context) string { return "rl:ip:" + ipFromCtx(c) }
}

// KeyByIPAndPath gives every route its own budget per client.
func KeyByIPAndPath() KeyFunc {
	return func(c *gin.Context) string { return "rl:path:" + routeOf(c) + ":ip:" + ipFromCtx(c) }
}

// KeyByUserID counts per authenticated user. Mount it after Auth; anonymous
// requests fall back to the client IP.
func KeyByUserID() KeyFunc {
	return func(c *gin.Context) string {
		if uid := c.GetString(CtxUserIDKey); uid != "" {
			return "rl:user:" + uid
		}
		return "rl:user:anon:ip:" + ipFromCtx(c)
	}
}

// fixedWindow increments the bucket and starts its window on the first hit.
// It returns the hit count and the milliseconds left in the window.
var fixedWindow = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
return {n, ttl}
`)

type limiter struct {
	rdb    redis.Cmdable
	max    int
	window time.Duration
	key    KeyFunc
	allow  AllowFunc
}

// hit counts one request against its bucket.
func (l *limiter) hit(c *gin.Context) (count int, reset time.Duration, err error) {
	res, err := fixedWindow.Run(c.Request.Context(), l.rdb, []string{l.key(c)}, l.window.Milliseconds()).Int64Slice()
	if err != nil {
		return 0, 0, err
	}
	if len(res) < 2 {
		return 0, 0, redis.Nil
	}
	reset = time.Duration(res[1]) * time.Millisecond
	if reset < 0 {
		reset = l.window
	}
	return int(res[0]), reset, nil
}

// RateLimit is a Redis fixed-window limiter. It sets the X-RateLimit-*
// headers, answers 429 with Retry-After once limit is passed, lets OPTIONS and
// allowed requests through, and fails open when Redis is down.
func RateLimit(rdb redis.Cmdable, limit int, window time.Duration, keyFn KeyFunc, allow AllowFunc) gin.HandlerFunc {
	if rdb == nil || limit <= 0 || window <= 0 || keyFn == nil {
		return func(c *gin.Context) { c.Next() }
	}
	l := &limiter{rdb: rdb, max: limit, window: window, key: keyFn, allow: allow}
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions || (l.allow != nil && l.allow(c)) {
			c.Next()
			return
		}
		count, reset, err := l.hit(c)
		if err != nil {
			c.Next()
			return
		}

		resetSec := int((reset + time.Second - 1) / time.Second)
		c.Header("X-RateLimit-Limit", strconv.Itoa(l.max))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(max(l.max-count, 0)))
		c.Header("X-RateLimit-Reset", strconv.Itoa(resetSec))

		if count > l.max {
			c.Header("Retry-After", strconv.Itoa(resetSec))
			response.Abort(c, http.StatusTooManyRequests, "rate limit exceeded", response.ErrorBody{Code: "rate_limited"})
			return
		}
		c.Next()
	}
}
