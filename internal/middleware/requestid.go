// Package middleware provides HTTP middleware for the mate control plane.
package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/matehq/mate/internal/logger"
)

const headerRequestID = "X-Request-ID"

// RequestID propagates the caller's X-Request-ID, or mints one when the
// request arrives without it. The ID rides the request context for log
// correlation and is echoed on the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerRequestID)
		if id == "" {
			id = uuid.New().String()
		}

		w.Header().Set(headerRequestID, id)
		next.ServeHTTP(w, r.WithContext(logger.WithRequestID(r.Context(), id)))
	})
}
