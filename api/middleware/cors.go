package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

const corsMaxAge = 300

// CORS applies the browser origin policy at the edge. Without configured
// origins only the local frontend is allowed.
func CORS(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept", "Accept-Language", "Authorization", "Content-Type",
			IdempotencyHeader, RequestIDHeader,
		},
		ExposedHeaders:   []string{"Content-Language", "Retry-After", ReplayHeader, RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           corsMaxAge,
	}).Handler
}
