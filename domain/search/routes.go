package search

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes registers search routes
func RegisterRoutes(e *echo.Echo, h *Handler) {
	e.GET("/api/search", h.Search)
}
