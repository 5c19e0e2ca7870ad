package handler

import (
    "context"
    "errors"
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/samber/lo"
    "github.com/sirupsen/logrus"

    "github.com/iliyamo/book-store/internal/audit"
    "github.com/iliyamo/book-store/internal/metrics"
    "github.com/iliyamo/book-store/internal/model"
    "github.com/iliyamo/book-store/internal/queue"
    "github.com/iliyamo/book-store/internal/repository"
    "github.com/iliyamo/book-store/internal/service"
    "github.com/iliyamo/book-store/internal/validation"
)

// AdminOrderHandler serves order management, dashboard stats and the
// audit trail to admins.
type AdminOrderHandler struct {
    Orders        *repository.OrderRepo
    Books         *repository.BookRepo
    Authors       *repository.AuthorRepo
    Users         *repository.UserRepo
    Publisher     service.Publisher
    Audit         audit.Logger
    Metrics       *metrics.Metrics
    LowStockLevel int
    Log           logrus.FieldLogger
}

// List handles GET /v1/admin/orders?status=&page=&page_size=.
func (h *AdminOrderHandler) List(c echo.Context) error {
    page, ps := pageParams(c)
    status := strings.ToUpper(strings.TrimSpace(c.QueryParam("status")))
    if status != "" && !lo.Contains(model.OrderStatuses(), status) {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid status", "allowed": model.OrderStatuses()})
    }
    q := repository.OrderListQuery{Status: status, Page: page, PageSize: ps}
    if raw := c.QueryParam("user_id"); raw != "" {
        uid, err := strconv.ParseUint(raw, 10, 64)
        if err != nil {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user_id"})
        }
        q.UserID = uid
    }
    ctx, cancel := reqCtx(c)
    defer cancel()
    items, total, err := h.Orders.List(ctx, q)
    if err != nil {
        return repoError(c, h.Log, err, "order not found")
    }
    return c.JSON(http.StatusOK, pageBody(items, total, page, ps))
}

// Get handles GET /v1/admin/orders/:id.
func (h *AdminOrderHandler) Get(c echo.Context) error {
    id, ok := parseID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
    }
    ctx, cancel := reqCtx(c)
    defer cancel()
    o, err := h.Orders.Get(ctx, id, 0)
    if err != nil {
        return repoError(c, h.Log, err, "order not found")
    }
    return c.JSON(http.StatusOK, o)
}

type statusReq struct {
    Status string `json:"status" validate:"required,oneof=PENDING PROCESSING SHIPPED DELIVERED CANCELLED"`
}

// UpdateStatus handles PATCH /v1/admin/orders/:id/status.  Moves follow
// the order lifecycle; anything else is 409.
func (h *AdminOrderHandler) UpdateStatus(c echo.Context) error {
    id, ok := parseID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
    }
    var req statusReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    req.Status = strings.ToUpper(strings.TrimSpace(req.Status))
    if err := c.Validate(&req); err != nil {
        fields, _ := validation.Fields(err)
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation failed", "fields": fields})
    }
    actor, _ := getUserID(c)

    ctx, cancel := reqCtx(c)
    defer cancel()
    prev, err := h.Orders.Transition(ctx, id, req.Status, 0)
    if err != nil {
        if errors.Is(err, repository.ErrInvalidTransition) {
            return c.JSON(http.StatusConflict, echo.Map{"error": "invalid status transition", "from": prev, "to": req.Status})
        }
        return repoError(c, h.Log, err, "order not found")
    }
    o, err := h.Orders.Get(ctx, id, 0)
    if err != nil {
        return repoError(c, h.Log, err, "order not found")
    }

    h.Metrics.OrderStatusChanged(req.Status)
    audit.Record(ctx, h.Audit, h.Log, audit.Entry{
        ActorID: actor, Entity: "order", EntityID: id, Action: "status",
        Data: echo.Map{"from": prev, "to": req.Status},
    })
    ev := queue.OrderStatusChangedEvent{
        OrderID: id, UserID: o.UserID, From: prev, To: req.Status, ActorID: actor,
        ChangedAt: time.Now().UTC().Format(time.RFC3339),
    }
    background(h.Log, "publish order.status_changed", func(ctx context.Context) error {
        return h.Publisher.OrderStatusChanged(ctx, ev)
    })
    return c.JSON(http.StatusOK, o)
}

type lowStockBook struct {
    ID    uint64 `json:"id"`
    Title string `json:"title"`
    Stock uint32 `json:"stock"`
}

// Stats handles GET /v1/admin/stats.
func (h *AdminOrderHandler) Stats(c echo.Context) error {
    ctx, cancel := reqCtx(c)
    defer cancel()

    books, err := h.Books.Count(ctx)
    if err != nil {
        return repoError(c, h.Log, err, "not found")
    }
    authors, err := h.Authors.Count(ctx)
    if err != nil {
        return repoError(c, h.Log, err, "not found")
    }
    customers, err := h.Users.CountByRole(ctx, model.RoleCustomer)
    if err != nil {
        return repoError(c, h.Log, err, "not found")
    }
    orders, err := h.Orders.Stats(ctx)
    if err != nil {
        return repoError(c, h.Log, err, "not found")
    }
    low, err := h.Books.LowStock(ctx, h.LowStockLevel)
    if err != nil {
        return repoError(c, h.Log, err, "not found")
    }
    h.Metrics.SetLowStock(len(low))

    return c.JSON(http.StatusOK, echo.Map{
        "books":           books,
        "authors":         authors,
        "customers":       customers,
        "orders":          orders.ByStatus,
        "revenue_cents":   orders.RevenueCents,
        "low_stock_level": h.LowStockLevel,
        "low_stock": lo.Map(low, func(b model.Book, _ int) lowStockBook {
            return lowStockBook{ID: b.ID, Title: b.Title, Stock: b.Stock}
        }),
    })
}

const maxAuditLimit = 200

// AuditLog handles GET /v1/admin/audit?limit= (default 50, at most 200).
func (h *AdminOrderHandler) AuditLog(c echo.Context) error {
    limit, _ := strconv.Atoi(c.QueryParam("limit"))
    if limit < 1 {
        limit = 50
    }
    if limit > maxAuditLimit {
        limit = maxAuditLimit
    }
    entries, err := h.Audit.Recent(c.Request().Context(), limit)
    if err != nil {
        h.Log.WithError(err).Error("read audit log")
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "audit log unavailable"})
    }
    return c.JSON(http.StatusOK, echo.Map{"items": entries})
}
