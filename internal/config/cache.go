package config

import (
    "strings"
    "time"

    "github.com/samber/lo"
)

// CacheConfig controls the storefront response cache.
//
// Only responses to Methods are stored, for TTL, under keys starting with
// Prefix.  KeyStrategy picks the key parts: "route", "path",
// "method_route_query" or the default path plus query.  Bodies larger than MaxBodyBytes are served but never stored.  With
// PurgeOnWrite set, admin catalog writes drop every key under Prefix so
// shoppers see new prices and stock straight away.
type CacheConfig struct {
    Enabled      bool
    Methods      map[string]bool
    TTL          time.Duration
    KeyStrategy  string
    Prefix       string
    MaxBodyBytes int
    PurgeOnWrite bool
}

// LoadCacheConfig reads the CACHE_* variables.
func LoadCacheConfig() CacheConfig {
    return CacheConfig{
        Enabled:      envBool("CACHE_ENABLED", true),
        Methods:      methodSet(envStr("CACHE_METHODS", "GET")),
        TTL:          envDur("CACHE_TTL", 30*time.Second),
        KeyStrategy:  envStr("CACHE_KEY_STRATEGY", "route_query"),
        Prefix:       envStr("CACHE_PREFIX", "bookstore:cache"),
        MaxBodyBytes: envInt("CACHE_MAX_BODY_BYTES", 1<<20),
        PurgeOnWrite: envBool("CACHE_PURGE_ON_WRITE", true),
    }
}

// methodSet turns "get, head" into {"GET": true, "HEAD": true}.
func methodSet(s string) map[string]bool {
    names := lo.Compact(lo.Map(strings.Split(s, ","), func(p string, _ int) string {
        return strings.ToUpper(strings.TrimSpace(p))
    }))
    return lo.SliceToMap(names, func(n string) (string, bool) { return n, true })
}
