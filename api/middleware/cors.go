package middleware

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

const corsPreflightCache = 5 * time.Minute

// CORS admits the configured front-end origins. Browsers may read the
// request id and the idempotency replay marker.
func CORS(origins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", headerIdempotencyKey, chimw.RequestIDHeader},
		ExposedHeaders:   []string{chimw.RequestIDHeader, headerReplayed},
		AllowCredentials: true,
		MaxAge:           int(corsPreflightCache.Seconds()),
	})
}
