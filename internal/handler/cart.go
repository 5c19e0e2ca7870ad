package handler

import (
    "net/http"

    "github.com/labstack/echo/v4"
    "github.com/sirupsen/logrus"

    "github.com/iliyamo/book-store/internal/cart"
    "github.com/iliyamo/book-store/internal/repository"
    "github.com/iliyamo/book-store/internal/validation"
)

// CartHeader carries the client's cart id in both directions.
const CartHeader = "X-Cart-ID"

// CartHandler serves the anonymous shopping cart.
type CartHandler struct {
    Store cart.Store
    Books *repository.BookRepo
    Log   logrus.FieldLogger
}

type addItemReq struct {
    BookID   uint64 `json:"book_id" validate:"required"`
    Quantity uint32 `json:"quantity" validate:"required,min=1,max=100"`
}

type setItemReq struct {
    Quantity uint32 `json:"quantity" validate:"max=100"`
}

// cartID returns the caller's cart id, minting a new one when the header
// is missing or not a uuid.  The id is always echoed in the response.
func cartID(c echo.Context) string {
    id, ok := cart.ValidID(c.Request().Header.Get(CartHeader))
    if !ok {
        id = cart.NewID()
    }
    c.Response().Header().Set(CartHeader, id)
    return id
}

// render writes the current cart, dropping lines whose book was deleted.
func (h *CartHandler) render(c echo.Context, id string) error {
    ctx, cancel := reqCtx(c)
    defer cancel()
    lines, err := h.Store.Lines(ctx, id)
    if err != nil {
        h.Log.WithError(err).Error("cart read failed")
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "cart unavailable"})
    }
    books, err := h.Books.GetByIDs(ctx, cart.BookIDs(lines))
    if err != nil {
        return repoError(c, h.Log, err, "book not found")
    }
    view, stale := cart.BuildView(id, lines, books)
    if len(stale) > 0 {
        if err := h.Store.Remove(ctx, id, stale...); err != nil {
            h.Log.WithError(err).Warn("drop stale cart lines")
        }
    }
    return c.JSON(http.StatusOK, view)
}

// Get handles GET /v1/cart.
func (h *CartHandler) Get(c echo.Context) error {
    return h.render(c, cartID(c))
}

// AddItem handles POST /v1/cart/items.  Quantities accumulate; the result
// may not exceed the book's stock.
func (h *CartHandler) AddItem(c echo.Context) error {
    var req addItemReq
    if ok, err := validation.BindAndValidate(c, &req); !ok {
        return err
    }
    id := cartID(c)
    ctx, cancel := reqCtx(c)
    defer cancel()

    book, err := h.Books.GetByID(ctx, req.BookID)
    if err != nil {
        return repoError(c, h.Log, err, "book not found")
    }
    have, err := h.Store.Quantity(ctx, id, req.BookID)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "cart unavailable"})
    }
    if !book.InStock(have + req.Quantity) {
        return c.JSON(http.StatusConflict, echo.Map{"error": "insufficient stock", "available": book.Stock, "in_cart": have})
    }
    if _, err := h.Store.Add(ctx, id, req.BookID, req.Quantity); err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "cart unavailable"})
    }
    return h.render(c, id)
}

// SetItem handles PUT /v1/cart/items/:book_id.  Quantity 0 removes the line.
func (h *CartHandler) SetItem(c echo.Context) error {
    bookID, ok := parseID(c, "book_id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid book id"})
    }
    var req setItemReq
    if ok, err := validation.BindAndValidate(c, &req); !ok {
        return err
    }
    id := cartID(c)
    ctx, cancel := reqCtx(c)
    defer cancel()

    if req.Quantity > 0 {
        book, err := h.Books.GetByID(ctx, bookID)
        if err != nil {
            return repoError(c, h.Log, err, "book not found")
        }
        if !book.InStock(req.Quantity) {
            return c.JSON(http.StatusConflict, echo.Map{"error": "insufficient stock", "available": book.Stock})
        }
    }
    if err := h.Store.Set(ctx, id, bookID, req.Quantity); err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "cart unavailable"})
    }
    return h.render(c, id)
}

// RemoveItem handles DELETE /v1/cart/items/:book_id.
func (h *CartHandler) RemoveItem(c echo.Context) error {
    bookID, ok := parseID(c, "book_id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid book id"})
    }
    id := cartID(c)
    ctx, cancel := reqCtx(c)
    defer cancel()
    if err := h.Store.Remove(ctx, id, bookID); err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "cart unavailable"})
    }
    return h.render(c, id)
}

// Clear handles DELETE /v1/cart.
func (h *CartHandler) Clear(c echo.Context) error {
    id := cartID(c)
    ctx, cancel := reqCtx(c)
    defer cancel()
    if err := h.Store.Clear(ctx, id); err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "cart unavailable"})
    }
    return c.NoContent(http.StatusNoContent)
}
