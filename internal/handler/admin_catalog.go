package handler

import (
    "context"
    "errors"
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"
    "github.com/sirupsen/logrus"

    "github.com/iliyamo/book-store/internal/audit"
    "github.com/iliyamo/book-store/internal/model"
    "github.com/iliyamo/book-store/internal/repository"
    "github.com/iliyamo/book-store/internal/storage"
    "github.com/iliyamo/book-store/internal/utils"
    "github.com/iliyamo/book-store/internal/validation"
)

// AdminCatalogHandler lets admins maintain authors, books, stock and
// covers.  Every successful mutation is audited and purges the catalog
// response cache.
type AdminCatalogHandler struct {
    Authors *repository.AuthorRepo
    Books   *repository.BookRepo
    Covers  *storage.CoverStore
    Audit   audit.Logger
    Purge   func(ctx context.Context) error
    Log     logrus.FieldLogger
}

type authorReq struct {
    Name     *string `json:"name" validate:"omitempty,min=1,max=200"`
    Bio      *string `json:"bio" validate:"omitempty,max=5000"`
    PhotoURL *string `json:"photo_url" validate:"omitempty,url,max=512"`
}

type bookReq struct {
    ISBN          *string `json:"isbn" validate:"omitempty,isbn"`
    Title         *string `json:"title" validate:"omitempty,min=1,max=255"`
    AuthorID      *uint64 `json:"author_id" validate:"omitempty,gt=0"`
    Genre         *string `json:"genre" validate:"omitempty,min=1,max=64"`
    Description   *string `json:"description" validate:"omitempty,max=5000"`
    PriceCents    *uint32 `json:"price_cents" validate:"omitempty,lte=10000000"`
    Stock         *uint32 `json:"stock" validate:"omitempty,lte=1000000"`
    PublishedYear *int    `json:"published_year" validate:"omitempty,gte=1000,lte=2100"`
}

// missing lists the fields a full write (POST/PUT) must carry.
func (r bookReq) missing() []string {
    var out []string
    if r.ISBN == nil {
        out = append(out, "isbn")
    }
    if r.Title == nil {
        out = append(out, "title")
    }
    if r.AuthorID == nil {
        out = append(out, "author_id")
    }
    if r.Genre == nil {
        out = append(out, "genre")
    }
    if r.PriceCents == nil {
        out = append(out, "price_cents")
    }
    return out
}

func (r bookReq) apply(b *model.Book) {
    if r.ISBN != nil {
        b.ISBN = utils.NormalizeISBN(*r.ISBN)
    }
    if r.Title != nil {
        b.Title = strings.TrimSpace(*r.Title)
    }
    if r.AuthorID != nil {
        b.AuthorID = *r.AuthorID
    }
    if r.Genre != nil {
        b.Genre = strings.ToLower(strings.TrimSpace(*r.Genre))
    }
    if r.Description != nil {
        b.Description = r.Description
    }
    if r.PriceCents != nil {
        b.PriceCents = *r.PriceCents
    }
    if r.PublishedYear != nil {
        b.PublishedYear = r.PublishedYear
    }
}

func missingFields(c echo.Context, names []string) error {
    fields := make(map[string]string, len(names))
    for _, n := range names {
        fields[n] = "required"
    }
    return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation failed", "fields": fields})
}

// changed records an audit entry and drops cached catalog responses.
func (h *AdminCatalogHandler) changed(c echo.Context, entity string, id uint64, action string, data any) {
    ctx := c.Request().Context()
    actor, _ := getUserID(c)
    audit.Record(ctx, h.Audit, h.Log, audit.Entry{ActorID: actor, Entity: entity, EntityID: id, Action: action, Data: data})
    if h.Purge != nil {
        if err := h.Purge(ctx); err != nil {
            h.Log.WithError(err).Warn("purge catalog cache")
        }
    }
}

// ---- authors ----

// CreateAuthor handles POST /v1/admin/authors.
func (h *AdminCatalogHandler) CreateAuthor(c echo.Context) error {
    var req authorReq
    if ok, err := validation.BindAndValidate(c, &req); !ok {
        return err
    }
    if req.Name == nil || strings.TrimSpace(*req.Name) == "" {
        return missingFields(c, []string{"name"})
    }
    a := model.Author{Name: strings.TrimSpace(*req.Name), Bio: req.Bio, PhotoURL: req.PhotoURL}
    a.Slug = utils.Slugify(a.Name)
    if a.Slug == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "name has no usable characters"})
    }
    ctx, cancel := reqCtx(c)
    defer cancel()
    if err := h.Authors.Create(ctx, &a); err != nil {
        if errors.Is(err, repository.ErrConflict) {
            return c.JSON(http.StatusConflict, echo.Map{"error": "author slug already exists", "slug": a.Slug})
        }
        return repoError(c, h.Log, err, "author not found")
    }
    h.changed(c, "author", a.ID, "create", a)
    return c.JSON(http.StatusCreated, a)
}

// UpdateAuthor handles PUT and PATCH /v1/admin/authors/:id.  PUT needs the
// name; PATCH changes only the fields sent.
func (h *AdminCatalogHandler) UpdateAuthor(c echo.Context) error {
    id, ok := parseID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
    }
    var req authorReq
    if ok, err := validation.BindAndValidate(c, &req); !ok {
        return err
    }
    if c.Request().Method == http.MethodPut && req.Name == nil {
        return missingFields(c, []string{"name"})
    }
    ctx, cancel := reqCtx(c)
    defer cancel()
    a, err := h.Authors.GetByID(ctx, id)
    if err != nil {
        return repoError(c, h.Log, err, "author not found")
    }
    if req.Name != nil {
        a.Name = strings.TrimSpace(*req.Name)
        a.Slug = utils.Slugify(a.Name)
        if a.Slug == "" {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "name has no usable characters"})
        }
    }
    if req.Bio != nil || c.Request().Method == http.MethodPut {
        a.Bio = req.Bio
    }
    if req.PhotoURL != nil || c.Request().Method == http.MethodPut {
        a.PhotoURL = req.PhotoURL
    }
    if err := h.Authors.Update(ctx, a); err != nil {
        if errors.Is(err, repository.ErrConflict) {
            return c.JSON(http.StatusConflict, echo.Map{"error": "author slug already exists", "slug": a.Slug})
        }
        return repoError(c, h.Log, err, "author not found")
    }
    h.changed(c, "author", a.ID, "update", a)
    return c.JSON(http.StatusOK, a)
}

// DeleteAuthor handles DELETE /v1/admin/authors/:id.
func (h *AdminCatalogHandler) DeleteAuthor(c echo.Context) error {
    id, ok := parseID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
    }
    ctx, cancel := reqCtx(c)
    defer cancel()
    if err := h.Authors.Delete(ctx, id); err != nil {
        if errors.Is(err, repository.ErrConflict) {
            return c.JSON(http.StatusConflict, echo.Map{"error": "author still has books"})
        }
        return repoError(c, h.Log, err, "author not found")
    }
    h.changed(c, "author", id, "delete", nil)
    return c.NoContent(http.StatusNoContent)
}

// ---- books ----

func (h *AdminCatalogHandler) bookWriteError(c echo.Context, err error) error {
    switch {
    case errors.Is(err, repository.ErrConflict):
        return c.JSON(http.StatusConflict, echo.Map{"error": "isbn already exists"})
    case errors.Is(err, repository.ErrNotFound):
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown author"})
    }
    return repoError(c, h.Log, err, "book not found")
}

// CreateBook handles POST /v1/admin/books.
func (h *AdminCatalogHandler) CreateBook(c echo.Context) error {
    var req bookReq
    if ok, err := validation.BindAndValidate(c, &req); !ok {
        return err
    }
    if miss := req.missing(); len(miss) > 0 {
        return missingFields(c, miss)
    }
    var b model.Book
    req.apply(&b)
    if req.Stock != nil {
        b.Stock = *req.Stock
    }
    ctx, cancel := reqCtx(c)
    defer cancel()
    if err := h.Books.Create(ctx, &b); err != nil {
        return h.bookWriteError(c, err)
    }
    h.changed(c, "book", b.ID, "create", b)
    return c.JSON(http.StatusCreated, b)
}

// UpdateBook handles PUT and PATCH /v1/admin/books/:id.  Stock and cover
// have their own endpoints and are ignored here.
func (h *AdminCatalogHandler) UpdateBook(c echo.Context) error {
    id, ok := parseID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
    }
    var req bookReq
    if ok, err := validation.BindAndValidate(c, &req); !ok {
        return err
    }
    if c.Request().Method == http.MethodPut {
        if miss := req.missing(); len(miss) > 0 {
            return missingFields(c, miss)
        }
    }
    ctx, cancel := reqCtx(c)
    defer cancel()
    b, err := h.Books.GetByID(ctx, id)
    if err != nil {
        return repoError(c, h.Log, err, "book not found")
    }
    if c.Request().Method == http.MethodPut {
        b.Description, b.PublishedYear = nil, nil
    }
    req.apply(b)
    if err := h.Books.Update(ctx, b); err != nil {
        return h.bookWriteError(c, err)
    }
    h.changed(c, "book", b.ID, "update", b)
    return c.JSON(http.StatusOK, b)
}

// DeleteBook handles DELETE /v1/admin/books/:id.  Books that were ordered
// stay for the order history.
func (h *AdminCatalogHandler) DeleteBook(c echo.Context) error {
    id, ok := parseID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
    }
    ctx, cancel := reqCtx(c)
    defer cancel()
    b, err := h.Books.GetByID(ctx, id)
    if err != nil {
        return repoError(c, h.Log, err, "book not found")
    }
    if err := h.Books.Delete(ctx, id); err != nil {
        if errors.Is(err, repository.ErrConflict) {
            return c.JSON(http.StatusConflict, echo.Map{"error": "book has orders"})
        }
        return repoError(c, h.Log, err, "book not found")
    }
    if b.CoverURL != nil && h.Covers != nil {
        if err := h.Covers.Remove(*b.CoverURL); err != nil {
            h.Log.WithError(err).Warn("remove cover file")
        }
    }
    h.changed(c, "book", id, "delete", nil)
    return c.NoContent(http.StatusNoContent)
}

type stockReq struct {
    Delta int `json:"delta" validate:"required,gte=-1000000,lte=1000000"`
}

// AdjustStock handles PATCH /v1/admin/books/:id/stock.
func (h *AdminCatalogHandler) AdjustStock(c echo.Context) error {
    id, ok := parseID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
    }
    var req stockReq
    if ok, err := validation.BindAndValidate(c, &req); !ok {
        return err
    }
    ctx, cancel := reqCtx(c)
    defer cancel()
    stock, err := h.Books.AdjustStock(ctx, id, req.Delta)
    if err != nil {
        if errors.Is(err, repository.ErrInsufficientStock) {
            return c.JSON(http.StatusConflict, echo.Map{"error": "stock cannot go below zero", "stock": stock})
        }
        return repoError(c, h.Log, err, "book not found")
    }
    h.changed(c, "book", id, "stock", echo.Map{"delta": req.Delta, "stock": stock})
    return c.JSON(http.StatusOK, echo.Map{"id": id, "stock": stock})
}

// UploadCover handles POST /v1/admin/books/:id/cover with a multipart
// "file" field.
func (h *AdminCatalogHandler) UploadCover(c echo.Context) error {
    id, ok := parseID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
    }
    fh, err := c.FormFile("file")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "file is required"})
    }
    if fh.Size > h.Covers.MaxBytes {
        return c.JSON(http.StatusRequestEntityTooLarge, echo.Map{"error": "file too large", "max_bytes": h.Covers.MaxBytes})
    }
    ctx, cancel := reqCtx(c)
    defer cancel()
    b, err := h.Books.GetByID(ctx, id)
    if err != nil {
        return repoError(c, h.Log, err, "book not found")
    }

    f, err := fh.Open()
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "unreadable file"})
    }
    defer f.Close()
    url, err := h.Covers.Save(id, f)
    switch {
    case errors.Is(err, storage.ErrTooLarge):
        return c.JSON(http.StatusRequestEntityTooLarge, echo.Map{"error": "file too large", "max_bytes": h.Covers.MaxBytes})
    case errors.Is(err, storage.ErrUnsupportedType):
        return c.JSON(http.StatusUnsupportedMediaType, echo.Map{"error": "cover must be jpeg, png or webp"})
    case err != nil:
        h.Log.WithError(err).Error("save cover")
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "store cover failed"})
    }
    if err := h.Books.SetCover(ctx, id, url); err != nil {
        _ = h.Covers.Remove(url)
        return repoError(c, h.Log, err, "book not found")
    }
    if b.CoverURL != nil && *b.CoverURL != url {
        if err := h.Covers.Remove(*b.CoverURL); err != nil {
            h.Log.WithError(err).Warn("remove old cover")
        }
    }
    h.changed(c, "book", id, "cover", echo.Map{"cover_url": url})
    return c.JSON(http.StatusOK, echo.Map{"id": id, "cover_url": url})
}
