package handler

import (
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"
    "github.com/sirupsen/logrus"

    "github.com/iliyamo/book-store/internal/model"
    "github.com/iliyamo/book-store/internal/repository"
    "github.com/iliyamo/book-store/internal/validation"
)

// ProfileHandler serves the caller's contact and default shipping details.
type ProfileHandler struct {
    Profiles *repository.ProfileRepo
    Log      logrus.FieldLogger
}

type profileReq struct {
    FullName    string `json:"full_name" validate:"max=120"`
    Phone       string `json:"phone" validate:"max=32"`
    AddressLine string `json:"address_line" validate:"max=255"`
    City        string `json:"city" validate:"max=100"`
    PostalCode  string `json:"postal_code" validate:"max=20"`
    Country     string `json:"country" validate:"max=64"`
}

// Get handles GET /v1/me/profile.
func (h *ProfileHandler) Get(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    ctx, cancel := reqCtx(c)
    defer cancel()
    p, err := h.Profiles.Get(ctx, uid)
    if err != nil {
        return repoError(c, h.Log, err, "profile not found")
    }
    return c.JSON(http.StatusOK, p)
}

// Put handles PUT /v1/me/profile, replacing every field.
func (h *ProfileHandler) Put(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    var req profileReq
    if ok, err := validation.BindAndValidate(c, &req); !ok {
        return err
    }
    p := model.Profile{
        UserID:      uid,
        FullName:    strings.TrimSpace(req.FullName),
        Phone:       strings.TrimSpace(req.Phone),
        AddressLine: strings.TrimSpace(req.AddressLine),
        City:        strings.TrimSpace(req.City),
        PostalCode:  strings.TrimSpace(req.PostalCode),
        Country:     strings.TrimSpace(req.Country),
    }
    ctx, cancel := reqCtx(c)
    defer cancel()
    if err := h.Profiles.Upsert(ctx, &p); err != nil {
        return repoError(c, h.Log, err, "profile not found")
    }
    saved, err := h.Profiles.Get(ctx, uid)
    if err != nil {
        return repoError(c, h.Log, err, "profile not found")
    }
    return c.JSON(http.StatusOK, saved)
}
