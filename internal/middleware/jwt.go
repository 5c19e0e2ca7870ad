package middleware

import (
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/book-store/internal/utils"
)

// Context keys written by JWTAuth.
const (
    CtxUserID = "user_id"
    CtxRole   = "role"
)

// JWTAuth validates a Bearer access token and stores the caller's numeric
// id under CtxUserID (uint64) and role under CtxRole (string).  Tokens must
// be HS256 signed with secret and carry an expiry.
func JWTAuth(secret string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            auth := c.Request().Header.Get("Authorization")
            if !strings.HasPrefix(auth, "Bearer ") {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
            }
            raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))

            claims, err := utils.ParseAccessToken(secret, raw)
            if err != nil {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
            }
            uid, err := claims.UserID()
            if err != nil || claims.Role == "" {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
            }

            c.Set(CtxUserID, uid)
            c.Set(CtxRole, claims.Role)
            return next(c)
        }
    }
}
