package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medichron/medichron/internal/platform/auth"
)

// Audit returns middleware that writes one structured log line per request to
// an authenticated route, capturing who touched what. Profile and visit
// record access is the sensitive surface; the audit trail is how a decryption
// failure or a misbehaving client gets traced back to a subject.
func Audit(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if !strings.HasPrefix(req.URL.Path, "/api/") {
				return next(c)
			}

			err := next(c)

			ctx := req.Context()
			subject := auth.SubjectFromContext(ctx)
			if subject == "" {
				// Unauthenticated routes (registration, login, contact,
				// QR scan) are covered by the request logger.
				return err
			}

			rid, _ := c.Get("request_id").(string)
			logger.Info().
				Str("request_id", rid).
				Str("subject", subject).
				Str("role", auth.RoleFromContext(ctx)).
				Str("action", methodToAction(req.Method)).
				Str("path", req.URL.Path).
				Int("status", c.Response().Status).
				Str("remote_ip", c.RealIP()).
				Msg("audit")

			return err
		}
	}
}

func methodToAction(method string) string {
	switch method {
	case "GET":
		return "read"
	case "POST":
		return "create"
	case "PUT", "PATCH":
		return "update"
	case "DELETE":
		return "delete"
	default:
		return strings.ToLower(method)
	}
}
