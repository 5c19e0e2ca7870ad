package config

import (
    "os"
    "strconv"
    "time"
)

// RateLimitConfig drives the token bucket middleware.  The Redis-backed
// bucket is shared by every replica; LocalRPS/LocalBurst configure the
// in-process limiter used when Redis cannot be reached.  AuthCapacity is a
// tighter bucket applied to login/register so credential stuffing is slowed
// down independently of catalog browsing.
type RateLimitConfig struct {
    Enabled        bool
    Capacity       int
    AuthCapacity   int
    RefillTokens   int
    RefillInterval time.Duration
    TTL            time.Duration
    KeyStrategy    string
    Prefix         string
    LocalRPS       float64
    LocalBurst     int
    Debug          bool
}

// LoadRateLimitConfig reads RATE_LIMIT_* variables and clamps them into a
// usable range.
func LoadRateLimitConfig() RateLimitConfig {
    def := RateLimitConfig{
        Enabled:        envBool("RATE_LIMIT_ENABLED", true),
        Capacity:       envInt("RATE_LIMIT_CAPACITY", 60),
        AuthCapacity:   envInt("RATE_LIMIT_AUTH_CAPACITY", 10),
        RefillTokens:   envInt("RATE_LIMIT_REFILL_TOKENS", 1),
        RefillInterval: envDur("RATE_LIMIT_REFILL_INTERVAL", time.Second),
        TTL:            envDur("RATE_LIMIT_TTL", 10*time.Minute),
        KeyStrategy:    envStr("RATE_LIMIT_KEY_STRATEGY", "ip_user_route"),
        Prefix:         envStr("RATE_LIMIT_PREFIX", "bookstore:rl"),
        LocalRPS:       envFloat("RATE_LIMIT_LOCAL_RPS", 5),
        LocalBurst:     envInt("RATE_LIMIT_LOCAL_BURST", 30),
        Debug:          envBool("RATE_LIMIT_DEBUG", false),
    }
    if b := envInt("RATE_LIMIT_BURST", -1); b > 0 {
        def.Capacity = b
    }
    if every := envDur("RATE_LIMIT_REFILL_EVERY", 0); every > 0 {
        def.RefillTokens = 1
        def.RefillInterval = every
    }
    if def.Capacity < 1 {
        def.Capacity = 1
    }
    if def.AuthCapacity < 1 || def.AuthCapacity > def.Capacity {
        def.AuthCapacity = def.Capacity
    }
    if def.RefillTokens < 1 {
        def.RefillTokens = 1
    }
    if def.RefillInterval <= 0 {
        def.RefillInterval = time.Second
    }
    if def.LocalRPS <= 0 {
        def.LocalRPS = 1
    }
    if def.LocalBurst < 1 {
        def.LocalBurst = 1
    }
    minTTL := 5 * def.RefillInterval
    if def.TTL < minTTL {
        def.TTL = minTTL
    }
    return def
}

// WithCapacity returns a copy of the config using a different bucket size
// and key prefix, so several buckets can coexist in Redis.
func (c RateLimitConfig) WithCapacity(capacity int, prefix string) RateLimitConfig {
    c.Capacity = capacity
    c.Prefix = c.Prefix + ":" + prefix
    return c
}

func envStr(k, d string) string {
    if v := os.Getenv(k); v != "" {
        return v
    }
    return d
}

func envBool(k string, d bool) bool {
    switch os.Getenv(k) {
    case "":
        return d
    case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
        return true
    case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
        return false
    }
    return d
}

func envInt(k string, d int) int {
    v := os.Getenv(k)
    if v == "" {
        return d
    }
    if n, err := strconv.Atoi(v); err == nil {
        return n
    }
    return d
}

func envFloat(k string, d float64) float64 {
    v := os.Getenv(k)
    if v == "" {
        return d
    }
    if f, err := strconv.ParseFloat(v, 64); err == nil {
        return f
    }
    return d
}

func envDur(k string, d time.Duration) time.Duration {
    v := os.Getenv(k)
    if v == "" {
        return d
    }
    if dur, err := time.ParseDuration(v); err == nil {
        return dur
    }
    return d
}
