package graph

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes registers graph entity routes
func RegisterRoutes(e *echo.Echo, h *Handler, sh *SchemaHandler) {
	e.GET("/api/schema", sh.Index)
	e.GET("/api/schema/:label", sh.Show)
	e.GET("/api/resolve", h.ResolveURI)

	e.POST("/api/:label", h.Create)
	e.GET("/api/:label", h.List)
	e.GET("/api/:label/:id", h.Get)
	e.PATCH("/api/:label/:id", h.Update)
	e.DELETE("/api/:label/:id", h.Delete)
}
