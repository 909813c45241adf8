/**
 * @description
 * Custom middleware for the HTTP router: JWT authentication for MCP operators and
 * Redis-backed rate limiting for the money-moving wallet endpoints.
 *
 * @dependencies
 * - github.com/golang-jwt/jwt/v5 (through internal/auth): token validation.
 * - pkg/ratelimit: fixed-window counters in Redis.
 */

package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/ayerhssb/mcpSystem/internal/auth"
	"github.com/ayerhssb/mcpSystem/pkg/ratelimit"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UserIDContextKey is a custom type for the context key to avoid collisions.
type UserIDContextKey string

const (
	userIDKey UserIDContextKey = "mcpUserID"

	// SessionCookieName is the cookie set at login and read by AuthMiddleware.
	SessionCookieName = "jwt"
)

// AuthMiddleware accepts `Authorization: Bearer <jwt>` or the session cookie.
func AuthMiddleware(tokens *auth.Tokens) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := bearerToken(r)
			if tokenString == "" {
				writeError(w, http.StatusUnauthorized, "Not authorized, no token")
				return
			}

			userID, err := tokens.Parse(tokenString)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Not authorized, token failed")
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	if header := strings.TrimSpace(r.Header.Get("Authorization")); header != "" {
		if token := strings.TrimPrefix(header, "Bearer "); token != header {
			return strings.TrimSpace(token)
		}
	}
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		return strings.TrimSpace(cookie.Value)
	}
	return ""
}

// GetUserID retrieves the authenticated MCP id from the request context.
func GetUserID(ctx context.Context) (uuid.UUID, bool) {
	userID, ok := ctx.Value(userIDKey).(uuid.UUID)
	return userID, ok
}

// WalletRateLimit counts each wallet mutation per MCP under its own rule from
// policy. Limiter errors fail open.
func WalletRateLimit(limiter ratelimit.Limiter, policy ratelimit.WalletPolicy, op ratelimit.Operation, log *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil || policy[op].Limit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := GetUserID(r.Context())
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			decision, err := policy.Check(r.Context(), limiter, op, userID.String())
			if err != nil {
				log.Warnw("rate limiter unavailable; allowing request", "operation", string(op), "user_id", userID, "err", err)
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
			if !decision.Allowed {
				log.Infow("request rate limited", "operation", string(op), "user_id", userID, "retry_after", decision.RetryAfter)
				w.Header().Set("Retry-After", strconv.Itoa(decision.RetryAfter))
				writeError(w, http.StatusTooManyRequests, "Too many requests, please try again later")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
