package httptransport

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"custodia/pkg/domain"
	dErrors "custodia/pkg/domainerrors"
	"custodia/pkg/requestcontext"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestRequestID(t *testing.T) {
	t.Run("echoes a supplied id", func(t *testing.T) {
		var seen string
		h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = requestcontext.RequestID(r.Context())
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "req-42")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, "req-42", seen)
		assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
	})

	t.Run("generates one when absent", func(t *testing.T) {
		var seen string
		h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = requestcontext.RequestID(r.Context())
		}))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.NotEmpty(t, seen)
		assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))
	})
}

func TestClientMetadata(t *testing.T) {
	run := func(t *testing.T, mutate func(*http.Request)) (ip, ua string) {
		t.Helper()
		h := ClientMetadata(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip = requestcontext.ClientIP(r.Context())
			ua = requestcontext.UserAgent(r.Context())
		}))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		mutate(req)
		h.ServeHTTP(httptest.NewRecorder(), req)
		return ip, ua
	}

	t.Run("forwarded-for wins and takes the first hop", func(t *testing.T) {
		ip, _ := run(t, func(r *http.Request) {
			r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
			r.Header.Set("X-Real-IP", "10.0.0.2")
		})
		assert.Equal(t, "203.0.113.7", ip)
	})

	t.Run("real-ip is the fallback", func(t *testing.T) {
		ip, _ := run(t, func(r *http.Request) {
			r.Header.Set("X-Real-IP", "198.51.100.9")
		})
		assert.Equal(t, "198.51.100.9", ip)
	})

	t.Run("remote addr loses its port", func(t *testing.T) {
		ip, _ := run(t, func(r *http.Request) {
			r.RemoteAddr = "192.0.2.4:51234"
		})
		assert.Equal(t, "192.0.2.4", ip)
	})

	t.Run("user agent is summarized", func(t *testing.T) {
		_, ua := run(t, func(r *http.Request) {
			r.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0")
		})
		assert.Contains(t, ua, "Firefox")
		assert.Contains(t, ua, "Linux")
	})
}

func TestRequireAuth(t *testing.T) {
	principal := domain.Principal{ID: domain.NewPrincipalID(), Role: domain.RoleInvestigator}

	newHandler := func(validator TokenValidator) http.Handler {
		inner := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
		return RequireAuth(validator, testLogger())(inner)
	}

	t.Run("missing header is rejected before the validator runs", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		validator := NewMockTokenValidator(ctrl)

		h := newHandler(validator)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cases", nil))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("non-bearer scheme is rejected", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		validator := NewMockTokenValidator(ctrl)

		h := newHandler(validator)
		req := httptest.NewRequest(http.MethodGet, "/cases", nil)
		req.Header.Set("Authorization", "Basic dXNlcjpwdw==")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("invalid token is rejected", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		validator := NewMockTokenValidator(ctrl)
		validator.EXPECT().ValidateToken("bad-token").
			Return(domain.Principal{}, dErrors.New(dErrors.CodeUnauthenticated, "invalid token"))

		h := newHandler(validator)
		req := httptest.NewRequest(http.MethodGet, "/cases", nil)
		req.Header.Set("Authorization", "Bearer bad-token")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid token reaches the handler with the principal set", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		validator := NewMockTokenValidator(ctrl)
		validator.EXPECT().ValidateToken("good-token").Return(principal, nil)

		var seen *domain.Principal
		inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := requestcontext.Principal(r.Context())
			require.True(t, ok)
			seen = &p
		})
		h := RequireAuth(validator, testLogger())(inner)

		req := httptest.NewRequest(http.MethodGet, "/cases", nil)
		req.Header.Set("Authorization", "Bearer good-token")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, seen)
		assert.Equal(t, principal.ID, seen.ID)
	})
}
