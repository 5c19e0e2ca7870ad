// Package router wires handlers and middleware onto the echo instance.
package router

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/book-store/internal/handler"
	"github.com/iliyamo/book-store/internal/middleware"
	"github.com/iliyamo/book-store/internal/model"
)

// RegisterRoutes registers the unauthenticated operational endpoints.
func RegisterRoutes(e *echo.Echo, ready *handler.ReadyHandler, metricsHandler http.Handler) {
	e.GET("/healthz", handler.Health)
	if ready != nil {
		e.GET("/readyz", ready.Ready)
	}
	if metricsHandler != nil {
		e.GET("/metrics", echo.WrapHandler(metricsHandler))
	}
}

// RegisterAuth registers the token endpoints under /v1/auth and the
// account endpoints under /v1/me.  authLimit guards register and login.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, p *handler.ProfileHandler, jwtSecret string, authLimit echo.MiddlewareFunc) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register, authLimit)
	g.POST("/login", a.Login, authLimit)
	// rotates the refresh token
	g.POST("/refresh", a.Refresh)
	g.POST("/refresh-access", a.RefreshAccess)
	// accepts a refresh_token body, a Bearer token, or both
	g.POST("/logout", a.Logout)

	me := e.Group("/v1/me",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleCustomer, model.RoleAdmin),
	)
	me.GET("", a.Me)
	me.GET("/profile", p.Get)
	me.PUT("/profile", p.Put)
}

// RegisterPublic registers the storefront.  Catalog reads go through
// cache; the cart is keyed by the X-Cart-ID header and needs no login.
func RegisterPublic(e *echo.Echo, h *handler.CatalogHandler, cart *handler.CartHandler, cache echo.MiddlewareFunc) {
	e.GET("/v1/books", h.ListBooks, cache)
	e.GET("/v1/books/:id", h.GetBook, cache)
	e.GET("/v1/genres", h.Genres, cache)
	e.GET("/v1/authors", h.ListAuthors, cache)
	e.GET("/v1/authors/:id", h.GetAuthor, cache)

	e.GET("/v1/cart", cart.Get)
	e.DELETE("/v1/cart", cart.Clear)
	e.POST("/v1/cart/items", cart.AddItem)
	e.PUT("/v1/cart/items/:book_id", cart.SetItem)
	e.DELETE("/v1/cart/items/:book_id", cart.RemoveItem)
}
