package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/srms-platform/srms-backend/api/responses"
	pkgerrors "github.com/srms-platform/srms-backend/pkg/errors"
	"github.com/srms-platform/srms-backend/pkg/logger"
	"github.com/srms-platform/srms-backend/pkg/messages"
)

// Recoverer turns a handler panic into a 500 envelope. When the handler had
// already started its response the envelope cannot be sent, so the panic is
// only logged. http.ErrAbortHandler is re-raised for net/http to handle.
func Recoverer(logg *logger.Logger) func(http.Handler) http.Handler {
	if logg == nil {
		logg = logger.Nop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w}
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if err, ok := v.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(v)
				}

				err := fmt.Errorf("panic: %v", v)
				ctx := logg.WithFields(r.Context(), map[string]any{
					"method":           r.Method,
					"path":             r.URL.Path,
					"response_started": rec.written(),
				})
				logg.Error(ctx, "request.panic", err)
				if rec.written() {
					return
				}
				responses.WriteError(ctx, nil, w, pkgerrors.Wrapk(pkgerrors.CodeInternal, err, messages.Internal))
			}()
			next.ServeHTTP(rec, r)
		})
	}
}
