package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// Booking site, back office and local dev.
var defaultCORSOrigins = []string{
	"http://localhost:3000",
	"https://book.chiangmai-carrental.co.th",
	"https://ops.chiangmai-carrental.co.th",
}

// CORS applies the browser origin policy. An empty origins list uses the defaults.
func CORS(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = defaultCORSOrigins
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", idempotencyKeyHeader, requestIDHeader},
		// clients read these to correlate, retry and detect replays
		ExposedHeaders:   []string{requestIDHeader, replayedHeader, "Retry-After"},
		AllowCredentials: true,
		MaxAge:           600,
	})
}
