package middleware

// identity.go reads the caller identity JWTAuth left on the echo context.
// Handlers use UserID; the rate limiter and request logger use the string
// form, which is "guest" for anonymous requests.

import (
    "strconv"

    "github.com/labstack/echo/v4"
)

// UserID returns the authenticated user's id.  ok is false on routes that
// are not behind JWTAuth or when the stored value has an unexpected type.
func UserID(c echo.Context) (uint64, bool) {
    switch v := c.Get(CtxUserID).(type) {
    case uint64:
        return v, v != 0
    case int64:
        return uint64(v), v > 0
    case int:
        return uint64(v), v > 0
    case float64:
        return uint64(v), v > 0
    case string:
        n, err := strconv.ParseUint(v, 10, 64)
        return n, err == nil && n != 0
    }
    return 0, false
}

// Role returns the authenticated user's role or "".
func Role(c echo.Context) string {
    r, _ := c.Get(CtxRole).(string)
    return r
}

func userKey(c echo.Context) string {
    if id, ok := UserID(c); ok {
        return strconv.FormatUint(id, 10)
    }
    return "guest"
}
