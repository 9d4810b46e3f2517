package api

import (
	"context"
	"net/http"
	"runtime/debug"
	"time"

	"kestrel-irp/core/auth"
)

type contextKey string

const principalContextKey contextKey = "kestrel.principal"

func PrincipalFromContext(ctx context.Context) *auth.Principal {
	p, _ := ctx.Value(principalContextKey).(*auth.Principal)
	return p
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if s.logger != nil {
					s.logger.Errorf("PANIC %s %s: %v\n%s", r.Method, r.URL.Path, rec, string(debug.Stack()))
				}
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		if s.logger != nil {
			s.logger.Infof("%s %s %d %s", r.Method, r.URL.Path, rec.status, time.Since(started).Round(time.Millisecond))
		}
	})
}

// authMiddleware resolves the X-API-Key header to a principal and
// enforces the role policy against the request path and method.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg != nil && !s.cfg.Auth.Enabled {
			next.ServeHTTP(w, r)
			return
		}
		principal := auth.Authenticate(s.cfg.Auth, r.Header.Get("X-API-Key"))
		if principal == nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if s.policy != nil && !s.policy.Allowed(principal.Role, r.URL.Path, r.Method) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		ctx := context.WithValue(r.Context(), principalContextKey, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
