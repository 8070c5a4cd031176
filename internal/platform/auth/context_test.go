package auth

import "context"

// contextWithRole builds a request context the way Middleware does, for
// tests that exercise RequireRole directly.
func contextWithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, RoleKey, role)
}
