package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// HeaderName is the correlation header honored on requests and echoed
// on every response.
const HeaderName = "X-Correlation-ID"

// ctxKey is unexported so the id can only enter a context through this
// package.
type ctxKey struct{}

// CorrelationID tags each request with an id, taking the client's
// X-Correlation-ID when present and minting one otherwise. The id
// rides the request context and is echoed back to the caller, and the
// request is logged on the way in and out.
func CorrelationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderName)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(HeaderName, id)
		ctx := WithCorrelationID(r.Context(), id)

		start := time.Now()
		slog.InfoContext(ctx, "request received", "method", r.Method, "path", r.URL.Path)

		next.ServeHTTP(w, r.WithContext(ctx))

		slog.InfoContext(ctx, "request completed",
			"method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

// WithCorrelationID returns a context carrying the given id. Workers
// use it to continue a correlation started by an HTTP request.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// CorrelationFrom reports the id on ctx, if any.
func CorrelationFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok && id != ""
}

// GetCorrelationID is CorrelationFrom with a placeholder for contexts
// that never passed through the middleware, for use in error payloads.
func GetCorrelationID(ctx context.Context) string {
	if id, ok := CorrelationFrom(ctx); ok {
		return id
	}
	return "unknown"
}
