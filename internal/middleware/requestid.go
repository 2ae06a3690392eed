package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// RequestIDHeader carries the correlation ID for a scoring request. Callers
// that already trace their traffic pass their own ID; it is kept as-is so a
// cache write or queue entry can be tied back to the originating request.
const RequestIDHeader = "X-Request-ID"

type ctxKeyRequestID struct{}

// RequestID ensures every request carries a correlation ID. An inbound
// X-Request-ID wins; otherwise a fresh UUID is minted. The ID is echoed on
// the response and stored in the request context for the logging middleware.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)

		ctx := context.WithValue(r.Context(), ctxKeyRequestID{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID reads the correlation ID stored by RequestID, or "" when the
// middleware did not run.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyRequestID{}).(string)
	return id
}
