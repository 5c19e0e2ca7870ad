package handler

import (
    "context"
    "errors"
    "net/http"
    "strconv"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/sirupsen/logrus"

    "github.com/iliyamo/book-store/internal/middleware"
    "github.com/iliyamo/book-store/internal/repository"
)

// dbTimeout bounds every request's database work.
const dbTimeout = 5 * time.Second

var errNoUser = errors.New("invalid user_id in context")

// getUserID returns the authenticated caller's id set by JWTAuth.
func getUserID(c echo.Context) (uint64, error) {
    if id, ok := middleware.UserID(c); ok {
        return id, nil
    }
    return 0, errNoUser
}

// parseID reads a positive integer path parameter.
func parseID(c echo.Context, name string) (uint64, bool) {
    id, err := strconv.ParseUint(c.Param(name), 10, 64)
    return id, err == nil && id != 0
}

// pageParams reads page (default 1) and page_size (default 20, max 100).
func pageParams(c echo.Context) (int, int) {
    page, _ := strconv.Atoi(c.QueryParam("page"))
    if page < 1 {
        page = 1
    }
    ps, _ := strconv.Atoi(c.QueryParam("page_size"))
    if ps < 1 {
        ps = 20
    }
    if ps > 100 {
        ps = 100
    }
    return page, ps
}

func pageBody(data any, total int64, page, ps int) echo.Map {
    return echo.Map{"data": data, "total": total, "page": page, "page_size": ps}
}

func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
    return context.WithTimeout(c.Request().Context(), dbTimeout)
}

// repoError maps repository sentinels onto a JSON error response.
// notFound is the message used for ErrNotFound.
func repoError(c echo.Context, log logrus.FieldLogger, err error, notFound string) error {
    switch {
    case errors.Is(err, repository.ErrNotFound):
        return c.JSON(http.StatusNotFound, echo.Map{"error": notFound})
    case errors.Is(err, repository.ErrConflict):
        return c.JSON(http.StatusConflict, echo.Map{"error": "conflict"})
    case errors.Is(err, repository.ErrInsufficientStock):
        return c.JSON(http.StatusConflict, echo.Map{"error": "insufficient stock"})
    case errors.Is(err, repository.ErrInvalidTransition):
        return c.JSON(http.StatusConflict, echo.Map{"error": "invalid status transition"})
    case errors.Is(err, context.DeadlineExceeded):
        return c.JSON(http.StatusGatewayTimeout, echo.Map{"error": "database timeout"})
    }
    if log != nil {
        log.WithError(err).WithField("path", c.Path()).Error("database error")
    }
    return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
}

// background runs fn detached from the request with its own timeout.
// Used for event publishing after the response-relevant work committed.
func background(log logrus.FieldLogger, what string, fn func(ctx context.Context) error) {
    go func() {
        ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
        defer cancel()
        if err := fn(ctx); err != nil && log != nil {
            log.WithError(err).Warn(what + " failed")
        }
    }()
}
