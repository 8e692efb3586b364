package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/utafrali/promarket/internal/session"
	"github.com/utafrali/promarket/pkg/httputil"
	"github.com/utafrali/promarket/pkg/logger"
	"github.com/utafrali/promarket/pkg/middleware"
)

// contextKey is an unexported type for context keys to prevent collisions.
type contextKey string

const sessionKey contextKey = "session"

// SessionConfig controls the session cookie.
type SessionConfig struct {
	// MaxAge is the cookie lifetime; zero makes it a browser-session cookie.
	MaxAge time.Duration
	Secure bool
	// NewSessionLimit throttles, per client, requests that arrive without a
	// session and would start one. Nil disables it.
	NewSessionLimit *middleware.RateLimiter
}

// Sessions resolves the shopper's session from the cookie or X-Session-ID
// header, starting a new one when the request carries none, and stores it
// in the request context for the duration of the request. The id is always
// echoed in the cookie and header.
func Sessions(registry *session.Registry, cfg SessionConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := session.IDFromRequest(r)
			if id == "" {
				if ip := middleware.ClientIP(r); !cfg.NewSessionLimit.Allow(ip) {
					logger.FromContext(r.Context()).WarnContext(r.Context(), "new session rate limit exceeded",
						slog.String("ip", ip),
					)
					middleware.WriteRateLimited(w, r)
					return
				}
				id = session.NewID()
			}

			http.SetCookie(w, &http.Cookie{
				Name:     session.CookieName,
				Value:    id,
				Path:     "/",
				MaxAge:   int(cfg.MaxAge.Seconds()),
				HttpOnly: true,
				Secure:   cfg.Secure,
				SameSite: http.SameSiteLaxMode,
			})
			w.Header().Set(session.HeaderName, id)

			ctx := r.Context()
			if logger.SessionIDFromContext(ctx) == "" {
				ctx = logger.WithSessionID(ctx, id)
				ctx = logger.NewContext(ctx, logger.FromContext(ctx).With("session_id", id))
			}
			sess, release := registry.Acquire(ctx, id)
			defer release()
			ctx = context.WithValue(ctx, sessionKey, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// sessionFromContext returns the session stored by Sessions.
func sessionFromContext(ctx context.Context) *session.Session {
	s, _ := ctx.Value(sessionKey).(*session.Session)
	return s
}

// ContentTypeJSON rejects request bodies that are not declared as JSON.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut {
			ct := r.Header.Get("Content-Type")
			if ct != "" && !strings.HasPrefix(ct, "application/json") {
				httputil.WriteJSON(w, http.StatusUnsupportedMediaType, httputil.Response{
					Error: &httputil.ErrorResponse{
						Code:    "UNSUPPORTED_MEDIA_TYPE",
						Message: "Content-Type must be application/json",
					},
				})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
