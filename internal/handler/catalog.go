package handler

// catalog.go serves the public storefront: book listing and detail, the
// genre facet and authors.  None of these routes need authentication and
// all of them sit behind the response cache.

import (
    "net/http"
    "strconv"
    "strings"

    "github.com/labstack/echo/v4"
    "github.com/sirupsen/logrus"

    "github.com/iliyamo/book-store/internal/model"
    "github.com/iliyamo/book-store/internal/repository"
)

// CatalogHandler aggregates the repositories needed for browsing.
type CatalogHandler struct {
    Books   *repository.BookRepo
    Authors *repository.AuthorRepo
    Log     logrus.FieldLogger
}

// ListBooks handles GET /v1/books.
//
//	genre      exact genre, case-insensitive
//	author_id  only this author's books
//	q          substring of title, ISBN or author name
//	in_stock   "true" hides sold out books
//	sort       newest (default) | price_asc | price_desc | title
func (h *CatalogHandler) ListBooks(c echo.Context) error {
    page, ps := pageParams(c)
    q := repository.BookSearchQuery{
        Genre:    strings.TrimSpace(c.QueryParam("genre")),
        Q:        strings.TrimSpace(c.QueryParam("q")),
        Sort:     strings.TrimSpace(c.QueryParam("sort")),
        Page:     page,
        PageSize: ps,
    }
    if raw := c.QueryParam("author_id"); raw != "" {
        id, err := strconv.ParseUint(raw, 10, 64)
        if err != nil || id == 0 {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid author_id"})
        }
        q.AuthorID = id
    }
    if raw := c.QueryParam("in_stock"); raw != "" {
        v, err := strconv.ParseBool(raw)
        if err != nil {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid in_stock"})
        }
        q.InStock = v
    }

    ctx, cancel := reqCtx(c)
    defer cancel()
    items, total, err := h.Books.Search(ctx, q)
    if err != nil {
        return repoError(c, h.Log, err, "not found")
    }
    return c.JSON(http.StatusOK, pageBody(items, total, page, ps))
}

// GetBook handles GET /v1/books/:id.
func (h *CatalogHandler) GetBook(c echo.Context) error {
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
    return c.JSON(http.StatusOK, b)
}

// Genres handles GET /v1/genres.
func (h *CatalogHandler) Genres(c echo.Context) error {
    ctx, cancel := reqCtx(c)
    defer cancel()
    genres, err := h.Books.Genres(ctx)
    if err != nil {
        return repoError(c, h.Log, err, "not found")
    }
    return c.JSON(http.StatusOK, echo.Map{"items": genres})
}

// ListAuthors handles GET /v1/authors.
func (h *CatalogHandler) ListAuthors(c echo.Context) error {
    ctx, cancel := reqCtx(c)
    defer cancel()
    authors, err := h.Authors.List(ctx)
    if err != nil {
        return repoError(c, h.Log, err, "not found")
    }
    return c.JSON(http.StatusOK, echo.Map{"items": authors})
}

type authorDetail struct {
    *model.Author
    Books []model.Book `json:"books"`
}

// GetAuthor handles GET /v1/authors/:id and embeds the author's books.
func (h *CatalogHandler) GetAuthor(c echo.Context) error {
    id, ok := parseID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
    }
    ctx, cancel := reqCtx(c)
    defer cancel()
    a, err := h.Authors.GetByID(ctx, id)
    if err != nil {
        return repoError(c, h.Log, err, "author not found")
    }
    books, err := h.Books.ListByAuthor(ctx, id)
    if err != nil {
        return repoError(c, h.Log, err, "author not found")
    }
    return c.JSON(http.StatusOK, authorDetail{Author: a, Books: books})
}
