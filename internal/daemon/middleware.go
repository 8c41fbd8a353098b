package daemon

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"familyboard/internal/auth"
	"familyboard/internal/logging"
)

const requestIDHeader = "X-Request-ID"

// requestID reuses a caller supplied correlation id or assigns a new one.
func (s *apiServer) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logging.WithRequestID(r.Context(), id)))
	})
}

// instrument records request metrics by route pattern and logs each request.
func (s *apiServer) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		done := s.svc.Metrics.TrackInFlight()
		defer done()

		wrapped := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(wrapped, r)

		status := wrapped.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		elapsed := time.Since(start)
		s.svc.Metrics.RecordRequest(r.Method, route, status, elapsed)
		logging.WithContext(r.Context(), s.logger).Debug("request completed",
			logging.String("method", r.Method),
			logging.String("route", route),
			logging.Int("status", status),
			logging.Duration("elapsed", elapsed),
		)
	})
}

// authenticate verifies the bearer token and stores the principal on the
// request context.
func (s *apiServer) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, err := s.svc.Verifier.VerifyRequest(r)
		if err != nil {
			logging.WarnWithContext(logging.WithContext(r.Context(), s.logger), "rejected request credential", "auth_failed",
				logging.String("path", r.URL.Path),
				logging.String(logging.FieldErrorHint, "request a fresh token from the auth service"),
				logging.Error(err),
			)
			s.writeError(w, r, err)
			return
		}
		ctx := auth.WithPrincipal(r.Context(), principal)
		ctx = logging.WithFamilyID(ctx, principal.FamilyID)
		ctx = logging.WithUserID(ctx, principal.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// principal returns the caller stored by authenticate. Handlers only run
// behind that middleware.
func principal(r *http.Request) auth.Principal {
	p, _ := auth.FromContext(r.Context())
	return p
}
