package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/sjando/jolecule/pkg/logger"
)

type requestIDKey struct{}

// RequestID returns middleware that assigns each request a unique id,
// propagates it through the context and logger, and echoes it in the
// X-Request-ID response header. An id supplied by the client is reused.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		ctx = logger.WithRequestID(ctx, id)
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID returns the request id carried by ctx, or "" if none.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}
