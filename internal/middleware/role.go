package middleware

import (
    "net/http"

    "github.com/labstack/echo/v4"
)

// RequireRole lets the request through only when the role stored by
// JWTAuth is one of roles.  It must be mounted after JWTAuth; a request
// without any role is treated as unauthenticated.
func RequireRole(roles ...string) echo.MiddlewareFunc {
    allowed := make(map[string]struct{}, len(roles))
    for _, r := range roles {
        allowed[r] = struct{}{}
    }
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            role, ok := c.Get(CtxRole).(string)
            if !ok || role == "" {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
            }
            if _, ok := allowed[role]; !ok {
                return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
            }
            return next(c)
        }
    }
}
