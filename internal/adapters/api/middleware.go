package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/poyrazK/sandboxAuth/internal/core/domain"
	"github.com/poyrazK/sandboxAuth/internal/core/ports"
	"github.com/poyrazK/sandboxAuth/internal/infrastructure/metrics"
)

type contextKey string

const CtxPrincipal contextKey = "principal"

// PrincipalFrom extracts the resolved principal placed by AuthMiddleware.
func PrincipalFrom(ctx context.Context) (*domain.Principal, bool) {
	p, ok := ctx.Value(CtxPrincipal).(*domain.Principal)
	return p, ok
}

// AuthMiddleware resolves the Authorization bearer (session token or sk- key)
// to a principal. Every resolution failure is the same 401: callers learn
// nothing about whether a credential exists, expired or was revoked.
func AuthMiddleware(access ports.AccessService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
				http.Error(w, "Unauthorized: missing or invalid authorization header", http.StatusUnauthorized)
				return
			}

			bearer := strings.TrimPrefix(authHeader, "Bearer ")
			principal, err := access.Resolve(r.Context(), bearer)
			if err != nil {
				http.Error(w, "Unauthorized: invalid credentials", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), CtxPrincipal, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// WithMetrics counts requests by method and response status.
func WithMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sr, r)
		metrics.HTTPRequests.WithLabelValues(r.Method, strconv.Itoa(sr.status)).Inc()
	})
}
