package middleware

import (
	"net/http"

	"golang.org/x/text/language"

	"github.com/srms-platform/srms-backend/pkg/messages"
)

// Locale negotiates the response language from Accept-Language.
func Locale(fallback language.Tag) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tag := messages.Match(r.Header.Get("Accept-Language"), fallback)
			w.Header().Set("Content-Language", tag.String())
			next.ServeHTTP(w, r.WithContext(messages.WithLocale(r.Context(), tag)))
		})
	}
}
