package middleware

import (
	"context"

	"github.com/srms-platform/srms-backend/pkg/enums"
)

type contextKey string

const (
	ctxSubject contextKey = "subject"
	ctxRoles   contextKey = "roles"
)

// SubjectFromContext returns the authenticated subject forwarded by the
// gateway, or "" for anonymous requests.
func SubjectFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxSubject).(string); ok {
		return v
	}
	return ""
}

func RolesFromContext(ctx context.Context) []enums.Role {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxRoles).([]enums.Role); ok {
		return v
	}
	return nil
}

// WithIdentity injects the caller identity into the context.
func WithIdentity(ctx context.Context, subject string, roles []enums.Role) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxSubject, subject)
	return context.WithValue(ctx, ctxRoles, roles)
}

// HasAnyRole reports whether the caller holds at least one of roles.
func HasAnyRole(ctx context.Context, roles ...enums.Role) bool {
	for _, held := range RolesFromContext(ctx) {
		for _, want := range roles {
			if held == want {
				return true
			}
		}
	}
	return false
}
