package graph

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/richardhadden/pangloss/pkg/apperror"
)

// Handler handles HTTP requests for graph entities
type Handler struct {
	svc *Service
}

// NewHandler creates a new graph handler
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Create handles POST /api/:label
func (h *Handler) Create(c echo.Context) error {
	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid request body")
	}
	req.Label = c.Param("label")

	view, err := h.svc.Create(c.Request().Context(), &req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, view)
}

// Get handles GET /api/:label/:id
func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid id")
	}
	depth := 0
	if d := c.QueryParam("depth"); d != "" {
		depth, _ = strconv.Atoi(d)
	}

	view, err := h.svc.Get(c.Request().Context(), id, depth)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, view)
}

// List handles GET /api/:label
func (h *Handler) List(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))

	result, err := h.svc.List(c.Request().Context(), c.Param("label"), limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// Update handles PATCH /api/:label/:id
func (h *Handler) Update(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid id")
	}
	var req UpdateRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid request body")
	}

	view, err := h.svc.Update(c.Request().Context(), c.Param("label"), id, &req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, view)
}

// Delete handles DELETE /api/:label/:id
func (h *Handler) Delete(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid id")
	}
	if err := h.svc.Delete(c.Request().Context(), c.Param("label"), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// ResolveURI handles GET /api/resolve?uri=
func (h *Handler) ResolveURI(c echo.Context) error {
	uri := c.QueryParam("uri")
	if uri == "" {
		return apperror.ErrBadRequest.WithMessage("uri is required")
	}
	view, err := h.svc.ResolveURI(c.Request().Context(), uri)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, view)
}
