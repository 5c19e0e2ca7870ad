package middleware

import (
    "bytes"
    "context"
    "crypto/sha1"
    "encoding/binary"
    "encoding/json"
    "fmt"
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"
    "github.com/sirupsen/logrus"

    "github.com/iliyamo/book-store/internal/config"
)

// captureWriter tees the response body into buf (up to limit bytes) while
// still writing it to the client.
type captureWriter struct {
    http.ResponseWriter
    status    int
    buf       bytes.Buffer
    size      int64
    limit     int64
    truncated bool
}

func (cw *captureWriter) WriteHeader(code int) {
    cw.status = code
    cw.ResponseWriter.WriteHeader(code)
}

func (cw *captureWriter) Write(b []byte) (int, error) {
    cw.size += int64(len(b))
    switch {
    case cw.limit <= 0:
        cw.buf.Write(b)
    case cw.size <= cw.limit:
        cw.buf.Write(b)
    default:
        cw.truncated = true
    }
    return cw.ResponseWriter.Write(b)
}

// cacheKeyFrom hashes the parts of the request selected by KeyStrategy
// under the configured prefix.
func cacheKeyFrom(cfg config.CacheConfig, c echo.Context) string {
    r := c.Request()
    var parts []string
    switch strings.ToLower(cfg.KeyStrategy) {
    case "route":
        parts = []string{"route", c.Path()}
    case "path":
        parts = []string{"path", r.URL.Path}
    case "method_route_query":
        parts = []string{"method", r.Method, "route", r.URL.Path, "q", r.URL.RawQuery}
    default:
        parts = []string{"route", r.URL.Path, "q", r.URL.RawQuery}
    }
    sum := sha1.Sum([]byte(strings.Join(parts, ":")))
    return fmt.Sprintf("%s:%x", cfg.Prefix, sum[:])
}

// encodePayload packs [4 bytes status][4 bytes header length][header JSON][body].
func encodePayload(status int, header http.Header, body []byte) ([]byte, error) {
    hdrJSON, err := json.Marshal(header)
    if err != nil {
        return nil, err
    }
    out := make([]byte, 8+len(hdrJSON)+len(body))
    binary.BigEndian.PutUint32(out[0:4], uint32(status))
    binary.BigEndian.PutUint32(out[4:8], uint32(len(hdrJSON)))
    copy(out[8:], hdrJSON)
    copy(out[8+len(hdrJSON):], body)
    return out, nil
}

func decodePayload(bs []byte) (int, http.Header, []byte, bool) {
    if len(bs) < 8 {
        return 0, nil, nil, false
    }
    status := int(binary.BigEndian.Uint32(bs[0:4]))
    hlen := int(binary.BigEndian.Uint32(bs[4:8]))
    if hlen < 0 || 8+hlen > len(bs) {
        return 0, nil, nil, false
    }
    hdr := make(http.Header)
    if hlen > 0 {
        if err := json.Unmarshal(bs[8:8+hlen], &hdr); err != nil {
            return 0, nil, nil, false
        }
    }
    return status, hdr, bs[8+hlen:], true
}

// NewRedisCache serves repeated catalog reads from Redis.  Only 200
// responses to the configured methods are stored, with their headers, so a
// hit is byte-identical to the original.  Requests sending
// "Cache-Control: no-cache" bypass the lookup but still refresh the entry.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client, log logrus.FieldLogger) echo.MiddlewareFunc {
    if !cfg.Enabled || rdb == nil {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    ttl := cfg.TTL
    if ttl <= 0 {
        ttl = 30 * time.Second
    }
    maxBody := int64(cfg.MaxBodyBytes)

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            req := c.Request()
            if !cfg.Methods[strings.ToUpper(req.Method)] {
                return next(c)
            }
            key := cacheKeyFrom(cfg, c)

            if !strings.Contains(req.Header.Get("Cache-Control"), "no-cache") {
                if bs, err := rdb.Get(req.Context(), key).Bytes(); err == nil {
                    if status, hdr, body, ok := decodePayload(bs); ok {
                        for k, vals := range hdr {
                            if strings.EqualFold(k, "Content-Length") || strings.EqualFold(k, "X-Cache") {
                                continue
                            }
                            for _, v := range vals {
                                c.Response().Header().Add(k, v)
                            }
                        }
                        c.Response().Header().Set("X-Cache", "HIT")
                        c.Response().WriteHeader(status)
                        _, err := c.Response().Write(body)
                        return err
                    }
                } else if err != redis.Nil {
                    log.WithError(err).Debug("cache lookup failed")
                }
            }

            cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: maxBody}
            c.Response().Writer = cw
            c.Response().Header().Set("X-Cache", "MISS")

            if err := next(c); err != nil {
                return err
            }
            if cw.status != http.StatusOK || cw.truncated {
                return nil
            }
            hdr := c.Response().Header().Clone()
            hdr.Del("X-Cache")
            payload, err := encodePayload(cw.status, hdr, cw.buf.Bytes())
            if err != nil {
                return nil
            }
            if err := rdb.SetEx(context.WithoutCancel(req.Context()), key, payload, ttl).Err(); err != nil {
                log.WithError(err).Debug("cache store failed")
            }
            return nil
        }
    }
}

// PurgeCache drops every cached response under prefix.  Admin catalog
// writes call it after committing.  A nil client is a no-op.
func PurgeCache(ctx context.Context, rdb *redis.Client, prefix string) error {
    if rdb == nil {
        return nil
    }
    iter := rdb.Scan(ctx, 0, prefix+":*", 200).Iterator()
    var batch []string
    for iter.Next(ctx) {
        batch = append(batch, iter.Val())
        if len(batch) == 200 {
            if err := rdb.Del(ctx, batch...).Err(); err != nil {
                return err
            }
            batch = batch[:0]
        }
    }
    if err := iter.Err(); err != nil {
        return err
    }
    if len(batch) > 0 {
        return rdb.Del(ctx, batch...).Err()
    }
    return nil
}
