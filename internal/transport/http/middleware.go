package httptransport

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/mssola/useragent"

	"custodia/pkg/domain"
	"custodia/pkg/requestcontext"
)

//go:generate mockgen -source=middleware.go -destination=mock_validator_test.go -package=httptransport

// TokenValidator resolves a bearer token to a principal.
type TokenValidator interface {
	ValidateToken(tokenString string) (domain.Principal, error)
}

// RequestID tags every request with an id, echoing one supplied by the
// caller so ids correlate across services.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)
		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestTime pins one clock reading for the whole request so every
// timestamp written during one mutation agrees.
func RequestTime(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), requestcontext.Now(r.Context()))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClientMetadata extracts the client IP and a parsed User-Agent summary and
// stores both in the context for audit details and logs.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithClientMetadata(r.Context(),
			clientIPFromRequest(r),
			summarizeUserAgent(r.Header.Get("User-Agent")),
		)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAuth validates the bearer token and stores the principal in the
// context. Requests without a valid token never reach a handler.
func RequireAuth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok {
				logger.WarnContext(ctx, "unauthorized: missing bearer token",
					"request_id", requestcontext.RequestID(ctx),
				)
				writeErrorBody(w, http.StatusUnauthorized, "unauthenticated", "missing or malformed Authorization header")
				return
			}
			p, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized: invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				writeErrorBody(w, http.StatusUnauthorized, "unauthenticated", "invalid or expired token")
				return
			}
			next.ServeHTTP(w, r.WithContext(requestcontext.WithPrincipal(ctx, p)))
		})
	}
}

// summarizeUserAgent reduces a raw User-Agent header to a short readable
// form for audit details, e.g. "Firefox 128.0 on Linux".
func summarizeUserAgent(raw string) string {
	if raw == "" {
		return ""
	}
	ua := useragent.New(raw)
	name, version := ua.Browser()
	if name == "" {
		return raw
	}
	if os := ua.OS(); os != "" {
		return fmt.Sprintf("%s %s on %s", name, version, os)
	}
	return fmt.Sprintf("%s %s", name, version)
}

// clientIPFromRequest extracts the real client IP, handling proxies and
// load balancers.
func clientIPFromRequest(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// First entry is the original client.
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	if addr := r.RemoteAddr; addr != "" {
		if idx := strings.LastIndex(addr, ":"); idx != -1 {
			return addr[:idx]
		}
		return addr
	}
	return "unknown"
}
