package config

// Redis backs three concerns: the catalog response cache, the distributed
// rate limiter and the shopping cart store.  When the server cannot be
// reached at startup the constructor returns nil and every consumer falls
// back to a process-local implementation.

import (
    "context"
    "crypto/tls"
    "os"
    "strconv"
    "strings"
    "time"

    "github.com/redis/go-redis/v9"
    "github.com/sirupsen/logrus"
)

// NewRedisClient instantiates a Redis client using environment variables.
// Supported variables are:
//   REDIS_HOST and REDIS_PORT – hostname and port of the Redis server
//   REDIS_ADDR – host:port shorthand (host/port win when both are set)
//   REDIS_PASSWORD – optional password
//   REDIS_DB – database number (default 0)
//   REDIS_TLS – enable TLS when "true" or "1"
// The returned client is nil if a connection cannot be established.
func NewRedisClient(log logrus.FieldLogger) *redis.Client {
    addr := os.Getenv("REDIS_ADDR")
    if host, port := os.Getenv("REDIS_HOST"), os.Getenv("REDIS_PORT"); host != "" && port != "" {
        addr = host + ":" + port
    }
    if addr == "" {
        addr = "localhost:6379"
    }
    dbNum := 0
    if n, err := strconv.Atoi(os.Getenv("REDIS_DB")); err == nil {
        dbNum = n
    }
    var tlsConf *tls.Config
    if v := os.Getenv("REDIS_TLS"); strings.EqualFold(v, "true") || v == "1" {
        tlsConf = &tls.Config{MinVersion: tls.VersionTLS12}
    }
    client := redis.NewClient(&redis.Options{
        Addr:      addr,
        Password:  os.Getenv("REDIS_PASSWORD"),
        DB:        dbNum,
        TLSConfig: tlsConf,
    })
    ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
    defer cancel()
    if err := client.Ping(ctx).Err(); err != nil {
        log.WithError(err).WithField("addr", addr).Warn("redis unavailable; cache, cart and rate limit fall back to memory")
        _ = client.Close()
        return nil
    }
    log.WithField("addr", addr).Info("redis connected")
    return client
}
