package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func performRequest(t *testing.T, mw echo.MiddlewareFunc, authHeader string) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := mw(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	return rec, handler(c)
}

func TestMiddlewareValidToken(t *testing.T) {
	issuer := testIssuer(time.Hour)
	revoked := NewRevocationStore()
	defer revoked.Close()

	subject := uuid.New()
	token, err := issuer.Issue(subject, RolePatient)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var gotSubject, gotRole string
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := Middleware(issuer, revoked)(func(c echo.Context) error {
		gotSubject = SubjectFromContext(c.Request().Context())
		gotRole = RoleFromContext(c.Request().Context())
		return c.NoContent(http.StatusOK)
	})
	if err := handler(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotSubject != subject.String() {
		t.Errorf("subject = %q, want %q", gotSubject, subject)
	}
	if gotRole != RolePatient {
		t.Errorf("role = %q, want patient", gotRole)
	}
}

func TestMiddlewareRejects(t *testing.T) {
	issuer := testIssuer(time.Hour)
	revoked := NewRevocationStore()
	defer revoked.Close()
	mw := Middleware(issuer, revoked)

	expiredToken, _ := testIssuer(-time.Minute).Issue(uuid.New(), RolePatient)
	revokedToken, _ := issuer.Issue(uuid.New(), RolePatient)
	claims, err := issuer.Validate(revokedToken)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	revoked.Revoke(claims.ID, claims.ExpiresAt.Time)

	cases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic abc"},
		{"garbage token", "Bearer nonsense"},
		{"expired token", "Bearer " + expiredToken},
		{"revoked token", "Bearer " + revokedToken},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := performRequest(t, mw, tc.header)
			he, ok := err.(*echo.HTTPError)
			if !ok || he.Code != http.StatusUnauthorized {
				t.Errorf("expected 401, got %v", err)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	e := echo.New()

	run := func(role string, required ...string) error {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if role != "" {
			ctx := req.Context()
			req = req.WithContext(contextWithRole(ctx, role))
		}
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		handler := RequireRole(required...)(func(c echo.Context) error {
			return c.NoContent(http.StatusOK)
		})
		return handler(c)
	}

	if err := run(RolePractitioner, RolePractitioner); err != nil {
		t.Errorf("matching role rejected: %v", err)
	}
	err := run(RolePatient, RolePractitioner)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusForbidden {
		t.Errorf("expected 403 for role mismatch, got %v", err)
	}
	err = run("", RolePatient)
	if he, ok = err.(*echo.HTTPError); !ok || he.Code != http.StatusForbidden {
		t.Errorf("expected 403 for missing role, got %v", err)
	}
}
