package middleware

import (
	"net/http"

	"github.com/srms-platform/srms-backend/api/responses"
	"github.com/srms-platform/srms-backend/pkg/enums"
	pkgerrors "github.com/srms-platform/srms-backend/pkg/errors"
	"github.com/srms-platform/srms-backend/pkg/logger"
	"github.com/srms-platform/srms-backend/pkg/messages"
)

// RequireRole admits callers holding any of roles. Anonymous callers get
// Unauthorized, authenticated ones without a matching role Forbidden.
func RequireRole(logg *logger.Logger, roles ...enums.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if SubjectFromContext(r.Context()) == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Newk(pkgerrors.CodeUnauthorized, messages.Unauthorized))
				return
			}
			if !HasAnyRole(r.Context(), roles...) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Newk(pkgerrors.CodeForbidden, messages.Forbidden))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
