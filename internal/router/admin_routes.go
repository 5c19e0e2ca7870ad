package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/book-store/internal/handler"
	"github.com/iliyamo/book-store/internal/middleware"
	"github.com/iliyamo/book-store/internal/model"
)

// RegisterAdmin registers the back office under /v1/admin.  All routes
// require a valid JWT and the ADMIN role.
func RegisterAdmin(e *echo.Echo, cat *handler.AdminCatalogHandler, ord *handler.AdminOrderHandler, jwtSecret string) {
	g := e.Group(
		"/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
	)

	// ---- Authors ----
	g.POST("/authors", cat.CreateAuthor)
	g.PUT("/authors/:id", cat.UpdateAuthor)
	g.PATCH("/authors/:id", cat.UpdateAuthor)
	g.DELETE("/authors/:id", cat.DeleteAuthor)

	// ---- Books ----
	g.POST("/books", cat.CreateBook)
	g.PUT("/books/:id", cat.UpdateBook)
	g.PATCH("/books/:id", cat.UpdateBook)
	g.DELETE("/books/:id", cat.DeleteBook)
	g.PATCH("/books/:id/stock", cat.AdjustStock)
	g.POST("/books/:id/cover", cat.UploadCover)

	// ---- Orders ----
	g.GET("/orders", ord.List)
	g.GET("/orders/:id", ord.Get)
	g.PATCH("/orders/:id/status", ord.UpdateStatus)

	g.GET("/stats", ord.Stats)
	g.GET("/audit", ord.AuditLog)
}
