package contact

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medichron/medichron/internal/platform/apperr"
	"github.com/medichron/medichron/internal/platform/auth"
	"github.com/medichron/medichron/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes wires the contact endpoints. Submission is the one
// unauthenticated write path in the service; the inbox is practitioner-only.
func (h *Handler) RegisterRoutes(public, authed *echo.Group) {
	public.POST("/contact", h.Submit)

	inbox := authed.Group("", auth.RequireRole(auth.RolePractitioner))
	inbox.GET("/contact", h.List)
	inbox.POST("/contact/:id/resolve", h.Resolve)
}

func (h *Handler) Submit(c echo.Context) error {
	var in SubmitInput
	if err := c.Bind(&in); err != nil {
		return apperr.Validationf("invalid request body")
	}
	msg, err := h.svc.Submit(c.Request().Context(), &in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, msg)
}

func (h *Handler) List(c echo.Context) error {
	pendingOnly := c.QueryParam("pending") == "true"
	pg := pagination.FromContext(c)
	msgs, total, err := h.svc.List(c.Request().Context(), pendingOnly, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(msgs, total, pg.Limit, pg.Offset))
}

func (h *Handler) Resolve(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.ErrNotFound
	}
	msg, err := h.svc.Resolve(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, msg)
}
