package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/srms-platform/srms-backend/api/responses"
	pkgerrors "github.com/srms-platform/srms-backend/pkg/errors"
	"github.com/srms-platform/srms-backend/pkg/logger"
	"github.com/srms-platform/srms-backend/pkg/messages"
)

// Timeout bounds each request with a deadline. Handlers observe it through
// the context; a handler that returns after the deadline without writing a
// response gets a Timeout error written for it.
func Timeout(d time.Duration, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if d <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()

			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r.WithContext(ctx))

			if !rec.written() && errors.Is(ctx.Err(), context.DeadlineExceeded) {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrapk(pkgerrors.CodeTimeout, ctx.Err(), messages.RequestTimeout))
			}
		})
	}
}
