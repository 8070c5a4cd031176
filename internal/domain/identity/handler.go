package identity

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medichron/medichron/internal/platform/apperr"
	"github.com/medichron/medichron/internal/platform/auth"
	"github.com/medichron/medichron/internal/platform/qr"
	"github.com/medichron/medichron/pkg/pagination"
)

type Handler struct {
	svc     *Service
	revoked *auth.RevocationStore
}

func NewHandler(svc *Service, revoked *auth.RevocationStore) *Handler {
	return &Handler{svc: svc, revoked: revoked}
}

// RegisterRoutes wires the identity endpoints. Registration, login, and the
// QR-scan lookup are the public surface; everything else requires a bearer
// token.
func (h *Handler) RegisterRoutes(public, authed *echo.Group) {
	public.POST("/auth/register/patient", h.RegisterPatient)
	public.POST("/auth/register/practitioner", h.RegisterPractitioner)
	public.POST("/auth/login", h.Login)
	public.GET("/scan/:uid", h.Scan)

	authed.POST("/auth/logout", h.Logout)
	authed.GET("/me", h.Profile)
	authed.PUT("/me", h.UpdateProfile)
	authed.DELETE("/me", h.Deactivate)
	authed.GET("/practitioners", h.ListPractitioners)

	patientGroup := authed.Group("", auth.RequireRole(auth.RolePatient))
	patientGroup.GET("/me/qr", h.QRCode)
}

func (h *Handler) RegisterPatient(c echo.Context) error {
	return h.register(c, auth.RolePatient)
}

func (h *Handler) RegisterPractitioner(c echo.Context) error {
	return h.register(c, auth.RolePractitioner)
}

func (h *Handler) register(c echo.Context, role string) error {
	var reg Registration
	if err := c.Bind(&reg); err != nil {
		return apperr.Validationf("invalid request body")
	}

	ident, err := h.svc.Register(c.Request().Context(), role, &reg)
	if err != nil {
		return err
	}

	// The registration response is public identity data only; the
	// national-ID goes back to the caller exclusively via their own
	// authenticated profile.
	ident.NationalID = nil
	return c.JSON(http.StatusCreated, ident)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validationf("invalid request body")
	}

	token, _, err := h.svc.Login(c.Request().Context(), req.Role, req.Username, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, loginResponse{AccessToken: token, TokenType: "bearer"})
}

// Logout revokes the presented token's JTI until its natural expiry.
func (h *Handler) Logout(c echo.Context) error {
	claims := auth.ClaimsFromContext(c.Request().Context())
	if claims == nil {
		return apperr.ErrUnauthorized
	}
	h.revoked.Revoke(claims.ID, claims.ExpiresAt.Time)
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Profile(c echo.Context) error {
	subject, err := subjectID(c)
	if err != nil {
		return err
	}
	ident, err := h.svc.Profile(c.Request().Context(), subject)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ident)
}

func (h *Handler) UpdateProfile(c echo.Context) error {
	subject, err := subjectID(c)
	if err != nil {
		return err
	}
	var upd ProfileUpdate
	if err := c.Bind(&upd); err != nil {
		return apperr.Validationf("invalid request body")
	}
	ident, err := h.svc.UpdateProfile(c.Request().Context(), subject, &upd)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ident)
}

func (h *Handler) Deactivate(c echo.Context) error {
	subject, err := subjectID(c)
	if err != nil {
		return err
	}
	if err := h.svc.Deactivate(c.Request().Context(), subject); err != nil {
		return err
	}

	// The account no longer authenticates; drop the presented token too.
	if claims := auth.ClaimsFromContext(c.Request().Context()); claims != nil {
		h.revoked.Revoke(claims.ID, claims.ExpiresAt.Time)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) QRCode(c echo.Context) error {
	subject, err := subjectID(c)
	if err != nil {
		return err
	}
	png, err := h.svc.QRCode(c.Request().Context(), subject, qr.DefaultSize)
	if err != nil {
		return err
	}
	return c.Blob(http.StatusOK, "image/png", png)
}

func (h *Handler) Scan(c echo.Context) error {
	profile, err := h.svc.LookupByUID(c.Request().Context(), c.Param("uid"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, profile)
}

func (h *Handler) ListPractitioners(c echo.Context) error {
	pg := pagination.FromContext(c)
	idents, total, err := h.svc.ListPractitioners(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(idents, total, pg.Limit, pg.Offset))
}

// subjectID parses the authenticated subject from the request context.
func subjectID(c echo.Context) (uuid.UUID, error) {
	sub := auth.SubjectFromContext(c.Request().Context())
	if sub == "" {
		return uuid.Nil, apperr.ErrUnauthorized
	}
	id, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, apperr.ErrUnauthorized
	}
	return id, nil
}
