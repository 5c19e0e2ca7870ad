package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/book-store/internal/handler"
	"github.com/iliyamo/book-store/internal/middleware"
	"github.com/iliyamo/book-store/internal/model"
)

// RegisterCustomer registers checkout and the caller's own orders.  All
// routes require a valid JWT and the CUSTOMER role.
func RegisterCustomer(e *echo.Echo, h *handler.OrderHandler, jwtSecret string) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleCustomer),
	)
	g.POST("/checkout", h.Checkout)
	g.GET("/orders", h.ListMine)
	g.GET("/orders/:id", h.GetMine)
	g.POST("/orders/:id/cancel", h.Cancel)
}
