package handler

import (
    "context"
    "net/http"
    "time"

    "github.com/jmoiron/sqlx"
    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"
)

// Health is the liveness probe: it only proves the process serves HTTP.
func Health(c echo.Context) error {
    return c.String(http.StatusOK, "ok")
}

// ReadyHandler reports whether the backing stores answer.
type ReadyHandler struct {
    DB    *sqlx.DB
    Redis *redis.Client
}

// Ready pings MySQL (required) and Redis (optional, reported only).
func (h *ReadyHandler) Ready(c echo.Context) error {
    ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
    defer cancel()

    status := http.StatusOK
    body := echo.Map{"database": "ok", "redis": "disabled"}
    if err := h.DB.PingContext(ctx); err != nil {
        status = http.StatusServiceUnavailable
        body["database"] = err.Error()
    }
    if h.Redis != nil {
        body["redis"] = "ok"
        if err := h.Redis.Ping(ctx).Err(); err != nil {
            body["redis"] = err.Error()
        }
    }
    return c.JSON(status, body)
}
