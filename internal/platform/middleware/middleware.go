// Package middleware provides the thin request plumbing the workflow service
// depends on. Authentication itself is an external collaborator; this package
// only moves already-established identity and request metadata into context.
package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	id "veranda/pkg/domain"
	"veranda/pkg/requestcontext"
)

// RequestID assigns a request ID when the caller did not supply one and makes
// it available via requestcontext.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", reqID)
		ctx := requestcontext.WithRequestID(r.Context(), reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ActingUser copies the authenticated user ID from the X-User-ID header into
// context. The gateway in front of this service terminates sessions and sets
// the header; an invalid or absent header simply leaves the context empty and
// handlers reject the request.
func ActingUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if raw := r.Header.Get("X-User-ID"); raw != "" {
			if userID, err := id.ParseUserID(raw); err == nil {
				r = r.WithContext(requestcontext.WithUserID(r.Context(), userID))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// GetRequestID returns the request ID from a context, or "" when unset.
// Kept as a convenience for services that log outside the handler layer.
func GetRequestID(ctx context.Context) string {
	return requestcontext.RequestID(ctx)
}
