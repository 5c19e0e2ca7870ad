package handler

import (
    "context"
    "errors"
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/samber/lo"
    "github.com/sirupsen/logrus"

    "github.com/iliyamo/book-store/internal/audit"
    "github.com/iliyamo/book-store/internal/cart"
    "github.com/iliyamo/book-store/internal/metrics"
    "github.com/iliyamo/book-store/internal/model"
    "github.com/iliyamo/book-store/internal/queue"
    "github.com/iliyamo/book-store/internal/repository"
    "github.com/iliyamo/book-store/internal/service"
    "github.com/iliyamo/book-store/internal/validation"
)

// OrderHandler serves checkout and the customer's own orders.
type OrderHandler struct {
    Orders    *repository.OrderRepo
    Profiles  *repository.ProfileRepo
    Carts     cart.Store
    Publisher service.Publisher
    Audit     audit.Logger
    Metrics   *metrics.Metrics
    Log       logrus.FieldLogger
}

type checkoutItem struct {
    BookID   uint64 `json:"book_id" validate:"required"`
    Quantity uint32 `json:"quantity" validate:"required,min=1,max=100"`
}

type checkoutReq struct {
    Name       string         `json:"name" validate:"required,max=120"`
    Address    string         `json:"address" validate:"required,max=255"`
    City       string         `json:"city" validate:"required,max=100"`
    PostalCode string         `json:"postal_code" validate:"required,max=20"`
    Country    string         `json:"country" validate:"required,max=64"`
    Phone      string         `json:"phone" validate:"max=32"`
    Items      []checkoutItem `json:"items" validate:"max=100,dive"`
}

// withProfile fills blank shipping fields from the saved profile.
func (r *checkoutReq) withProfile(p model.Profile) {
    fill := func(dst *string, v string) {
        if strings.TrimSpace(*dst) == "" {
            *dst = v
        }
    }
    fill(&r.Name, p.FullName)
    fill(&r.Address, p.AddressLine)
    fill(&r.City, p.City)
    fill(&r.PostalCode, p.PostalCode)
    fill(&r.Country, p.Country)
    fill(&r.Phone, p.Phone)
}

// Checkout handles POST /v1/checkout.  Lines come from the body when
// present, otherwise from the cart named by X-Cart-ID.  The order is
// placed in one transaction; on success the cart is emptied and an
// order.placed event is published.
func (h *OrderHandler) Checkout(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    var req checkoutReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    ctx, cancel := reqCtx(c)
    defer cancel()

    if h.Profiles != nil {
        if p, err := h.Profiles.Get(ctx, uid); err == nil {
            req.withProfile(p)
        }
    }
    if err := c.Validate(&req); err != nil {
        fields, _ := validation.Fields(err)
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation failed", "fields": fields})
    }

    lines := lo.Map(req.Items, func(it checkoutItem, _ int) model.CartLine {
        return model.CartLine{BookID: it.BookID, Quantity: it.Quantity}
    })
    cartID := ""
    if len(lines) == 0 {
        id, ok := cart.ValidID(c.Request().Header.Get(CartHeader))
        if !ok {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "no items and no cart"})
        }
        cartID = id
        if lines, err = h.Carts.Lines(ctx, cartID); err != nil {
            return c.JSON(http.StatusInternalServerError, echo.Map{"error": "cart unavailable"})
        }
        if len(lines) == 0 {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "cart is empty"})
        }
    }

    ship := model.ShippingInfo{
        Name:       strings.TrimSpace(req.Name),
        Address:    strings.TrimSpace(req.Address),
        City:       strings.TrimSpace(req.City),
        PostalCode: strings.TrimSpace(req.PostalCode),
        Country:    strings.TrimSpace(req.Country),
        Phone:      strings.TrimSpace(req.Phone),
    }
    order, err := h.Orders.PlaceOrder(ctx, uid, lines, ship)
    if err != nil {
        var le *repository.LineError
        switch {
        case errors.As(err, &le) && errors.Is(err, repository.ErrNotFound):
            h.Metrics.CheckoutRejected("unknown_book")
            return c.JSON(http.StatusNotFound, echo.Map{"error": "book not found", "book_ids": le.BookIDs})
        case errors.As(err, &le) && errors.Is(err, repository.ErrInsufficientStock):
            h.Metrics.CheckoutRejected("insufficient_stock")
            return c.JSON(http.StatusConflict, echo.Map{"error": "insufficient stock", "unavailable": le.BookIDs})
        }
        return repoError(c, h.Log, err, "order not found")
    }

    if cartID != "" {
        if err := h.Carts.Clear(ctx, cartID); err != nil {
            h.Log.WithError(err).WithField("cart_id", cartID).Warn("clear cart after checkout")
        }
    }
    h.Metrics.OrderPlaced(order.TotalCents)
    audit.Record(ctx, h.Audit, h.Log, audit.Entry{
        ActorID: uid, Entity: "order", EntityID: order.ID, Action: "place",
        Data: echo.Map{"order_number": order.OrderNumber, "total_cents": order.TotalCents},
    })
    ev := queue.OrderPlacedEvent{
        OrderID:     order.ID,
        OrderNumber: order.OrderNumber,
        UserID:      uid,
        TotalCents:  order.TotalCents,
        Country:     ship.Country,
        PlacedAt:    time.Now().UTC().Format(time.RFC3339),
        Items: lo.Map(order.Items, func(it model.OrderItem, _ int) queue.OrderLine {
            return queue.OrderLine{BookID: it.BookID, Title: it.Title, Quantity: it.Quantity, UnitPriceCents: it.UnitPriceCents}
        }),
    }
    background(h.Log, "publish order.placed", func(ctx context.Context) error {
        return h.Publisher.OrderPlaced(ctx, ev)
    })

    return c.JSON(http.StatusCreated, echo.Map{
        "order_id":     order.ID,
        "order_number": order.OrderNumber,
        "total_cents":  order.TotalCents,
        "status":       order.Status,
    })
}

// ListMine handles GET /v1/orders.
func (h *OrderHandler) ListMine(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    page, ps := pageParams(c)
    ctx, cancel := reqCtx(c)
    defer cancel()
    items, total, err := h.Orders.List(ctx, repository.OrderListQuery{UserID: uid, Page: page, PageSize: ps})
    if err != nil {
        return repoError(c, h.Log, err, "order not found")
    }
    return c.JSON(http.StatusOK, pageBody(items, total, page, ps))
}

// GetMine handles GET /v1/orders/:id.  Other customers' orders are 404.
func (h *OrderHandler) GetMine(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    id, ok := parseID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
    }
    ctx, cancel := reqCtx(c)
    defer cancel()
    o, err := h.Orders.Get(ctx, id, uid)
    if err != nil {
        return repoError(c, h.Log, err, "order not found")
    }
    return c.JSON(http.StatusOK, o)
}

// Cancel handles POST /v1/orders/:id/cancel.  Customers may only cancel
// orders that are still PENDING; stock is returned in the same transaction.
func (h *OrderHandler) Cancel(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    id, ok := parseID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
    }
    ctx, cancel := reqCtx(c)
    defer cancel()
    prev, err := h.Orders.Transition(ctx, id, model.OrderCancelled, uid, model.OrderPending)
    if err != nil {
        if errors.Is(err, repository.ErrInvalidTransition) {
            return c.JSON(http.StatusConflict, echo.Map{"error": "only pending orders can be cancelled", "status": prev})
        }
        return repoError(c, h.Log, err, "order not found")
    }
    h.Metrics.OrderStatusChanged(model.OrderCancelled)
    audit.Record(ctx, h.Audit, h.Log, audit.Entry{ActorID: uid, Entity: "order", EntityID: id, Action: "cancel"})
    ev := queue.OrderStatusChangedEvent{
        OrderID: id, UserID: uid, From: prev, To: model.OrderCancelled, ActorID: uid,
        ChangedAt: time.Now().UTC().Format(time.RFC3339),
    }
    background(h.Log, "publish order.status_changed", func(ctx context.Context) error {
        return h.Publisher.OrderStatusChanged(ctx, ev)
    })
    return c.JSON(http.StatusOK, echo.Map{"id": id, "status": model.OrderCancelled})
}
