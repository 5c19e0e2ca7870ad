package handler

import (
    "errors"
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/sirupsen/logrus"

    "github.com/iliyamo/book-store/internal/config"
    "github.com/iliyamo/book-store/internal/model"
    "github.com/iliyamo/book-store/internal/repository"
    "github.com/iliyamo/book-store/internal/utils"
    "github.com/iliyamo/book-store/internal/validation"
)

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
    Cfg    config.Config
    Users  *repository.UserRepo
    Tokens *repository.TokenRepo
    Log    logrus.FieldLogger
}

func NewAuthHandler(cfg config.Config, u *repository.UserRepo, t *repository.TokenRepo, log logrus.FieldLogger) *AuthHandler {
    return &AuthHandler{Cfg: cfg, Users: u, Tokens: t, Log: log}
}

// ----- DTOs -----

type registerReq struct {
    Email    string `json:"email" validate:"required,email,max=255"`
    Password string `json:"password" validate:"required,min=8,max=72"`
}
type loginReq struct {
    Email    string `json:"email" validate:"required,email"`
    Password string `json:"password" validate:"required"`
}
type refreshReq struct {
    RefreshToken string `json:"refresh_token"`
}

type tokenPart struct {
    Token   string    `json:"token"`
    Expires time.Time `json:"expires"`
}
type userPart struct {
    ID    uint64 `json:"id"`
    Email string `json:"email"`
    Role  string `json:"role"`
}
type authResp struct {
    User    userPart  `json:"user"`
    Access  tokenPart `json:"access"`
    Refresh tokenPart `json:"refresh"`
}

// issue creates an access/refresh pair for u and stores the refresh hash.
func (h *AuthHandler) issue(c echo.Context, u userPart, status int) error {
    ctx, cancel := reqCtx(c)
    defer cancel()

    access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Role, h.Cfg.AccessTTLMin)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue access failed"})
    }
    refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue refresh failed"})
    }
    if err := h.Tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
        h.Log.WithError(err).Error("store refresh token")
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "save refresh failed"})
    }
    return c.JSON(status, authResp{
        User:    u,
        Access:  tokenPart{Token: access.Token, Expires: access.Exp},
        Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp},
    })
}

// Register creates a CUSTOMER account and returns tokens immediately.
// Admin accounts cannot be self-registered.
func (h *AuthHandler) Register(c echo.Context) error {
    var req registerReq
    if ok, err := validation.BindAndValidate(c, &req); !ok {
        return err
    }
    req.Email = strings.ToLower(strings.TrimSpace(req.Email))

    ctx, cancel := reqCtx(c)
    defer cancel()
    uid, err := h.Users.Create(ctx, req.Email, req.Password, model.RoleCustomer, h.Cfg.BcryptCost)
    if err != nil {
        if errors.Is(err, repository.ErrEmailExists) {
            return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
        }
        h.Log.WithError(err).Error("create user")
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create user failed"})
    }
    return h.issue(c, userPart{ID: uid, Email: req.Email, Role: model.RoleCustomer}, http.StatusCreated)
}

// Login verifies credentials and returns a new token pair.
func (h *AuthHandler) Login(c echo.Context) error {
    var req loginReq
    if ok, err := validation.BindAndValidate(c, &req); !ok {
        return err
    }

    ctx, cancel := reqCtx(c)
    defer cancel()
    u, err := h.Users.GetByEmail(ctx, req.Email)
    if err != nil {
        if errors.Is(err, repository.ErrNotFound) {
            return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
    }
    if !utils.VerifyPassword(u.PasswordHash, req.Password) {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
    }
    if !u.IsActive {
        return c.JSON(http.StatusForbidden, echo.Map{"error": "account disabled"})
    }
    return h.issue(c, userPart{ID: u.ID, Email: u.Email, Role: u.Role}, http.StatusOK)
}

// Refresh validates a refresh token by hash, revokes it and issues a new pair.
func (h *AuthHandler) Refresh(c echo.Context) error {
    var req refreshReq
    if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
    }
    hash := utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))

    ctx, cancel := reqCtx(c)
    defer cancel()
    userID, err := h.Tokens.ValidateRefresh(ctx, hash)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
    }
    if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "revoke refresh failed"})
    }
    u, err := h.Users.GetByID(ctx, userID)
    if err != nil {
        if errors.Is(err, repository.ErrNotFound) {
            return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load user failed"})
    }
    return h.issue(c, userPart{ID: u.ID, Email: u.Email, Role: u.Role}, http.StatusOK)
}

// RefreshAccess returns a new access token without rotating the refresh token.
func (h *AuthHandler) RefreshAccess(c echo.Context) error {
    var req refreshReq
    if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
    }
    hash := utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))

    ctx, cancel := reqCtx(c)
    defer cancel()
    userID, err := h.Tokens.ValidateRefresh(ctx, hash)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
    }
    u, err := h.Users.GetByID(ctx, userID)
    if err != nil {
        if errors.Is(err, repository.ErrNotFound) {
            return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load user failed"})
    }
    access, err := utils.NewAccessToken(h.Cfg.JWTSecret, userID, u.Role, h.Cfg.AccessTTLMin)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue access failed"})
    }
    return c.JSON(http.StatusOK, echo.Map{
        "access": tokenPart{Token: access.Token, Expires: access.Exp},
    })
}

// Logout revokes one session when a refresh_token is posted, or every
// session of the caller when only a valid Bearer access token is sent.
func (h *AuthHandler) Logout(c echo.Context) error {
    var uid uint64
    if auth := c.Request().Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
        if claims, err := utils.ParseAccessToken(h.Cfg.JWTSecret, strings.TrimPrefix(auth, "Bearer ")); err == nil {
            uid, _ = claims.UserID()
        }
    }
    var req refreshReq
    _ = c.Bind(&req)
    refreshToken := strings.TrimSpace(req.RefreshToken)

    ctx, cancel := reqCtx(c)
    defer cancel()

    switch {
    case refreshToken != "":
        hash := utils.HashRefreshRaw(refreshToken)
        if _, err := h.Tokens.ValidateRefresh(ctx, hash); err != nil {
            return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token"})
        }
        if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
            return c.JSON(http.StatusInternalServerError, echo.Map{"error": "logout failed"})
        }
        return c.NoContent(http.StatusNoContent)
    case uid != 0:
        if err := h.Tokens.RevokeAllForUser(ctx, uid); err != nil {
            return c.JSON(http.StatusInternalServerError, echo.Map{"error": "logout failed"})
        }
        return c.NoContent(http.StatusNoContent)
    }
    return c.JSON(http.StatusBadRequest, echo.Map{"error": "provide Authorization header or refresh_token"})
}

// Me returns the caller's account.
func (h *AuthHandler) Me(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    ctx, cancel := reqCtx(c)
    defer cancel()
    u, err := h.Users.GetByID(ctx, uid)
    if err != nil {
        return repoError(c, h.Log, err, "user not found")
    }
    return c.JSON(http.StatusOK, u)
}
