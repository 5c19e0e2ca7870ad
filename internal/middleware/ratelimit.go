package middleware

import (
    "errors"
    "math"
    "net/http"
    "strconv"
    "strings"
    "sync"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"
    "github.com/sirupsen/logrus"
    "golang.org/x/time/rate"

    "github.com/iliyamo/book-store/internal/config"
)

// bucketScript refills the bucket stored at KEYS[1] in whole intervals and
// takes one token.  It returns {allowed, remaining, retry_after_ms}.
var bucketScript = redis.NewScript(`
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

    if interval_ms > 0 and refill_tokens > 0 then
        local elapsed = math.max(0, now_ms - last_refill)
        local intervals = math.floor(elapsed / interval_ms)
        if intervals > 0 then
            tokens = math.min(capacity, tokens + (intervals * refill_tokens))
            last_refill = last_refill + (intervals * interval_ms)
        end
    end

    local allowed = 0
    local retry_after_ms = 0
    if tokens > 0 then
        allowed = 1
        tokens = tokens - 1
    else
        retry_after_ms = math.max(0, interval_ms - (now_ms - last_refill))
    end

    redis.call('HSET', key, 'tokens', tokens, 'last_refill_ms', last_refill)
    redis.call('EXPIRE', key, ttl_seconds)
    return { allowed, tokens, retry_after_ms }
`)

// localLimiter is the per-process fallback used while Redis is absent or
// failing.  Limits are per key, like the Redis buckets, but not shared
// between replicas.
type localLimiter struct {
    mu       sync.Mutex
    limiters map[string]*rate.Limiter
    limit    rate.Limit
    burst    int
    max      int
}

func newLocalLimiter(cfg config.RateLimitConfig) *localLimiter {
    burst := cfg.LocalBurst
    if burst > cfg.Capacity {
        burst = cfg.Capacity
    }
    return &localLimiter{
        limiters: make(map[string]*rate.Limiter),
        limit:    rate.Limit(cfg.LocalRPS),
        burst:    burst,
        max:      10000,
    }
}

func (l *localLimiter) allow(key string) (bool, int64, time.Duration) {
    l.mu.Lock()
    lim, ok := l.limiters[key]
    if !ok {
        if len(l.limiters) >= l.max {
            l.limiters = make(map[string]*rate.Limiter)
        }
        lim = rate.NewLimiter(l.limit, l.burst)
        l.limiters[key] = lim
    }
    l.mu.Unlock()

    now := time.Now()
    r := lim.ReserveN(now, 1)
    if !r.OK() {
        return false, 0, time.Second
    }
    if d := r.DelayFrom(now); d > 0 {
        r.CancelAt(now)
        return false, 0, d
    }
    return true, int64(lim.TokensAt(now)), 0
}

// NewTokenBucket limits requests per key (see buildRateKey) with a token
// bucket held in Redis.  When rdb is nil, or a script call fails, the
// decision is taken by an in-process golang.org/x/time/rate limiter.
// Rejected requests get 429 with a Retry-After header.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client, log logrus.FieldLogger) echo.MiddlewareFunc {
    if !cfg.Enabled {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    local := newLocalLimiter(cfg)

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            key := buildRateKey(cfg, c)

            allowed, remaining, retry := true, int64(0), time.Duration(0)
            if rdb != nil {
                var err error
                allowed, remaining, retry, err = redisTake(c, rdb, cfg, key)
                if err != nil {
                    if cfg.Debug {
                        log.WithError(err).WithField("key", key).Warn("rate limit script failed; using local limiter")
                    }
                    allowed, remaining, retry = local.allow(key)
                }
            } else {
                allowed, remaining, retry = local.allow(key)
            }

            h := c.Response().Header()
            h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
            h.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
            if cfg.Debug {
                h.Set("X-RateLimit-Key", key)
            }
            if !allowed {
                secs := int(math.Ceil(retry.Seconds()))
                if secs < 1 {
                    secs = 1
                }
                h.Set("Retry-After", strconv.Itoa(secs))
                if cfg.Debug {
                    log.WithFields(logrus.Fields{"key": key, "retry_after": secs}).Info("rate limited")
                }
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

var errScriptResult = errors.New("unexpected rate limit script result")

func redisTake(c echo.Context, rdb *redis.Client, cfg config.RateLimitConfig, key string) (bool, int64, time.Duration, error) {
    args := []any{
        time.Now().UnixMilli(),
        cfg.Capacity,
        cfg.RefillTokens,
        cfg.RefillInterval.Milliseconds(),
        int64(cfg.TTL / time.Second),
    }
    vals, err := bucketScript.Run(c.Request().Context(), rdb, []string{key}, args...).Int64Slice()
    if err != nil {
        return false, 0, 0, err
    }
    if len(vals) != 3 {
        return false, 0, 0, errScriptResult
    }
    return vals[0] == 1, vals[1], time.Duration(vals[2]) * time.Millisecond, nil
}

func buildRateKey(cfg config.RateLimitConfig, c echo.Context) string {
    parts := []string{cfg.Prefix}
    ip := c.RealIP()
    if ip == "" {
        ip = "unknown"
    }
    uid := userKey(c)
    route := c.Request().Method + " " + c.Path()

    switch strings.ToLower(cfg.KeyStrategy) {
    case "ip":
        parts = append(parts, "ip", ip)
    case "user":
        parts = append(parts, "user", uid)
    case "route":
        parts = append(parts, "route", route)
    case "ip_user":
        parts = append(parts, "ip", ip, "user", uid)
    case "ip_route":
        parts = append(parts, "ip", ip, "route", route)
    case "user_route":
        parts = append(parts, "user", uid, "route", route)
    default:
        parts = append(parts, "ip", ip, "user", uid, "route", route)
    }
    return strings.Join(parts, ":")
}
