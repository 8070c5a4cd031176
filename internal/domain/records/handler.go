package records

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

// RegisterRoutes wires the visit-record endpoints onto the authenticated
// group. Creation is practitioner-only; reads and writes go through the
// service's ownership checks.
func (h *Handler) RegisterRoutes(authed *echo.Group) {
	authed.GET("/records", h.List)
	authed.GET("/records/:id", h.Get)
	authed.PUT("/records/:id", h.Update)
	authed.DELETE("/records/:id", h.Delete)

	practitionerGroup := authed.Group("", auth.RequireRole(auth.RolePractitioner))
	practitionerGroup.POST("/records", h.Create)
}

func (h *Handler) Create(c echo.Context) error {
	subject, role, err := caller(c)
	if err != nil {
		return err
	}
	var in CreateInput
	if err := c.Bind(&in); err != nil {
		return apperr.Validationf("invalid request body")
	}
	rec, err := h.svc.Create(c.Request().Context(), subject, role, &in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, rec)
}

func (h *Handler) Get(c echo.Context) error {
	subject, role, err := caller(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.ErrNotFound
	}
	rec, err := h.svc.Get(c.Request().Context(), subject, role, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) List(c echo.Context) error {
	subject, role, err := caller(c)
	if err != nil {
		return err
	}
	var patientID uuid.UUID
	if raw := c.QueryParam("patient_id"); raw != "" {
		patientID, err = uuid.Parse(raw)
		if err != nil {
			return apperr.Validationf("invalid patient_id")
		}
	}
	pg := pagination.FromContext(c)
	recs, total, err := h.svc.List(c.Request().Context(), subject, role, patientID, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(recs, total, pg.Limit, pg.Offset))
}

func (h *Handler) Update(c echo.Context) error {
	subject, role, err := caller(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.ErrNotFound
	}
	var in UpdateInput
	if err := c.Bind(&in); err != nil {
		return apperr.Validationf("invalid request body")
	}
	rec, err := h.svc.Update(c.Request().Context(), subject, role, id, &in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) Delete(c echo.Context) error {
	subject, role, err := caller(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.ErrNotFound
	}
	if err := h.svc.Delete(c.Request().Context(), subject, role, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func caller(c echo.Context) (uuid.UUID, string, error) {
	ctx := c.Request().Context()
	sub := auth.SubjectFromContext(ctx)
	role := auth.RoleFromContext(ctx)
	if sub == "" || role == "" {
		return uuid.Nil, "", apperr.ErrUnauthorized
	}
	id, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, "", apperr.ErrUnauthorized
	}
	return id, role, nil
}
