package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"coaching-subscription/internal/domain"
	"coaching-subscription/internal/domain/lifecycle"
	"coaching-subscription/internal/domain/model"
	"coaching-subscription/internal/infra/logging"
	"coaching-subscription/internal/infra/metrics"
)

const requestIDHeader = "X-Request-ID"

type Middleware func(http.Handler) http.Handler

// TraceID reuses a sane incoming X-Request-ID or mints one, and echoes it back.
func TraceID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tid := strings.TrimSpace(r.Header.Get(requestIDHeader))
			if tid == "" || len(tid) > 128 {
				tid = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, tid)
			ctx := logging.WithTraceID(r.Context(), tid)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestLog logs one line per request and records it under the chi route
// pattern so metric labels stay bounded.
func RequestLog(logger *zerolog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &respWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)

			route := ""
			if rc := chi.RouteContext(r.Context()); rc != nil {
				route = rc.RoutePattern()
			}
			took := time.Since(start)
			metrics.ObserveHTTP(route, r.Method, ww.status, took)

			l := logging.With(r.Context(), logger)
			ev := l.Info()
			if ww.status >= http.StatusInternalServerError {
				ev = l.Error()
			}
			ev.Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("route", route).
				Int("status", ww.status).
				Dur("duration", took).
				Msg("http_request")
		})
	}
}

type respWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *respWriter) WriteHeader(status int) {
	if !w.wroteHeader {
		w.status = status
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *respWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}

func Recover(logger *zerolog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					l := logging.With(r.Context(), logger)
					l.Error().Interface("panic", rec).Msg("panic recovered")
					writeJSON(w, http.StatusInternalServerError, errorBody{
						Message: "internal error",
						Code:    "INTERNAL",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func Timeout(d time.Duration) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Authenticate requires a valid bearer token and stores the principal in the
// request context.
func Authenticate(auth *Authenticator, logger *zerolog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := auth.ParseFromRequest(r)
			if err != nil {
				logging.With(r.Context(), logger).Debug().Err(err).Msg("authentication failed")
				writeError(w, r, logger, domain.ErrUnauthenticated)
				return
			}
			ctx := WithPrincipal(r.Context(), p)
			ctx = logging.WithUserID(ctx, p.UserID)
			if p.TenantID != "" {
				ctx = logging.WithTenantID(ctx, p.TenantID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole admits principals holding one of roles.
func RequireRole(logger *zerolog.Logger, roles ...model.Role) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFrom(r.Context())
			if !ok {
				writeError(w, r, logger, domain.ErrUnauthenticated)
				return
			}
			for _, role := range roles {
				if p.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, r, logger, domain.ErrForbidden.WithMsg("role %q not permitted", p.Role))
		})
	}
}

// RequireScope rejects non-super-admin principals without a coaching id.
func RequireScope(logger *zerolog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFrom(r.Context())
			if !ok {
				writeError(w, r, logger, domain.ErrUnauthenticated)
				return
			}
			if !p.IsSuperAdmin() && p.TenantID == "" {
				writeError(w, r, logger, domain.ErrScopeRequired)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AccessChecker is satisfied by usecase.SubscriptionUseCase.
type AccessChecker interface {
	CheckAccess(ctx context.Context, p model.Principal) (lifecycle.EffectiveStatus, error)
}

// RequireSubscription blocks tenants whose effective status does not allow
// access. Super-admins always pass.
func RequireSubscription(checker AccessChecker, logger *zerolog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFrom(r.Context())
			if !ok {
				writeError(w, r, logger, domain.ErrUnauthenticated)
				return
			}
			status, err := checker.CheckAccess(r.Context(), p)
			if err != nil {
				if domain.KindOf(err) == domain.KindPaymentRequired {
					err = domain.ErrSubscriptionRequired.WithMsg("%s (status: %s)", domain.ErrSubscriptionRequired.Msg, status)
				}
				writeError(w, r, logger, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p model.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFrom(ctx context.Context) (model.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(model.Principal)
	return p, ok
}

// mustPrincipal is for handlers mounted behind Authenticate.
func mustPrincipal(r *http.Request) model.Principal {
	p, ok := PrincipalFrom(r.Context())
	if !ok {
		panic(fmt.Sprintf("api: no principal on %s %s", r.Method, r.URL.Path))
	}
	return p
}
