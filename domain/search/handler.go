package search

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/richardhadden/pangloss/pkg/apperror"
)

// Handler handles HTTP requests for full-text search
type Handler struct {
	svc *Service
}

// NewHandler creates a new search handler
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Search handles GET /api/search?q=&scope=
func (h *Handler) Search(c echo.Context) error {
	q := c.QueryParam("q")
	if q == "" {
		return apperror.ErrBadRequest.WithMessage("q is required")
	}

	result, err := h.svc.Search(c.Request().Context(), q, c.QueryParam("scope"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}
