package app

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"experiences/api/internal/auth"
	"experiences/api/internal/metrics"
	"experiences/api/internal/rbac"
)

type requestIDKey struct{}
type claimsKey struct{}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func claimsFrom(ctx context.Context) (auth.Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(auth.Claims)
	return claims, ok
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Flush() {
	if flusher, ok := r.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// withRequestLog tags each request with an id, applies CORS headers and
// emits one structured log line and one metric sample per request.
func withRequestLog(logger *slog.Logger, m *metrics.Metrics, corsOrigin string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.NewString()
			}
			ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
			r = r.WithContext(ctx)

			started := time.Now()
			writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			setCORSHeaders(writer.Header(), corsOrigin)
			writer.Header().Set("X-Request-ID", requestID)

			if r.Method == http.MethodOptions {
				writer.WriteHeader(http.StatusNoContent)
			} else {
				next.ServeHTTP(writer, r)
			}

			m.ObserveHTTP(r.Method, writer.status)
			logger.InfoContext(ctx, "http request",
				"request_id", requestID,
				"method", r.Method,
				"path", r.URL.Path,
				"status", writer.status,
				"duration_ms", time.Since(started).Milliseconds(),
			)
		})
	}
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
}

// requireAuth rejects requests without a valid, unrevoked bearer token.
// allowQuery also accepts ?access_token= for clients such as EventSource
// that cannot set headers.
func (s *HTTPServer) requireAuth(allowQuery bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" && allowQuery {
				token = strings.TrimSpace(r.URL.Query().Get("access_token"))
			}
			if token == "" {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
				return
			}
			claims, err := s.service.Authenticate(r.Context(), token)
			if err != nil {
				s.fail(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
		})
	}
}

// requireAction lets a request through only when one of the caller's roles
// may perform action.
func (s *HTTPServer) requireAction(action rbac.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, _ := claimsFrom(r.Context())
			if !rbac.CanAny(claims.Roles, action) {
				s.logger.InfoContext(r.Context(), "access denied",
					"request_id", requestIDFrom(r.Context()),
					"user_id", claims.UserID,
					"action", action,
				)
				s.fail(w, r, ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}
