package middleware

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/promarket/pkg/logger"
)

// RequestLogger stores a request-scoped logger in the context, enriched with
// the correlation id, the shopper's session id and the active span. Mount it
// after RequestLogging and Tracing. sessionID may be nil.
func RequestLogger(base *slog.Logger, sessionID func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if sessionID != nil && logger.SessionIDFromContext(ctx) == "" {
				if id := sessionID(r); id != "" {
					ctx = logger.WithSessionID(ctx, id)
				}
			}
			ctx = logger.NewContext(ctx, logger.WithContext(ctx, base))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
