package middleware

import (
	"net/http"
	"strings"

	"github.com/srms-platform/srms-backend/pkg/enums"
	"github.com/srms-platform/srms-backend/pkg/logger"
)

// Identity headers set by the gateway after it validated the bearer token.
// The gateway strips inbound copies, so the api trusts them as is.
const (
	SubjectHeader = "X-Auth-Subject"
	RolesHeader   = "X-Auth-Roles"
)

// GatewayIdentity lifts the forwarded identity headers into the context.
// Requests without a subject continue anonymously; RequireRole rejects them
// where a role is needed.
func GatewayIdentity(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject := strings.TrimSpace(r.Header.Get(SubjectHeader))
			if subject == "" {
				next.ServeHTTP(w, r)
				return
			}
			roles := enums.ParseRoles(r.Header.Get(RolesHeader))
			ctx := WithIdentity(r.Context(), subject, roles)
			if logg != nil {
				ctx = logg.WithSubject(ctx, subject)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
