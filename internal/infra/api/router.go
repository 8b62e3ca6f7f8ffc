package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"coaching-subscription/internal/domain/model"
)

type RouterConfig struct {
	Auth           *Authenticator
	RequestTimeout time.Duration
	// Ready reports dependency health for /health; nil means always ready.
	Ready func(ctx context.Context) error
}

// NewRouter mounts the subscription and coaching routes.
func NewRouter(s *Server, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID(), RequestLog(s.log), Recover(s.log))
	if cfg.RequestTimeout > 0 {
		r.Use(Timeout(cfg.RequestTimeout))
	}

	r.Get("/health", s.health(cfg.Ready))
	r.Handle("/metrics", promhttp.Handler())

	authn := Authenticate(cfg.Auth, s.log)
	superAdmin := RequireRole(s.log, model.RoleSuperAdmin)
	tenantAdmin := RequireRole(s.log, model.RoleAdmin)
	anyRole := RequireRole(s.log, model.RoleAdmin, model.RoleSuperAdmin)
	scoped := RequireScope(s.log)

	r.Route("/api/v1/subscriptions", func(r chi.Router) {
		r.Use(authn)
		r.With(tenantAdmin, scoped).Post("/upgrade-center", s.upgradeCenter)
		r.With(anyRole, scoped).Get("/my-status", s.myStatus)
		r.With(superAdmin).Get("/monitor-all", s.monitorAll)
		r.With(superAdmin).Get("/payments", s.listPayments)
		r.With(superAdmin).Put("/payments/{id}/verify", s.verifyPayment)
	})

	r.Route("/api/v1/coaching", func(r chi.Router) {
		r.Use(authn)
		r.With(superAdmin).Post("/register", s.registerCenter)
		r.With(tenantAdmin, scoped, RequireSubscription(s.subs, s.log)).Get("/me", s.coachingMe)
		r.With(superAdmin).Put("/{id}/license", s.updateLicense)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Message: "route not found", Code: "NOT_FOUND"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Message: "method not allowed", Code: "METHOD_NOT_ALLOWED"})
	})
	return r
}

func (s *Server) health(ready func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ready != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := ready(ctx); err != nil {
				s.log.Warn().Err(err).Msg("health check failed")
				writeJSON(w, http.StatusServiceUnavailable, errorBody{Message: "unavailable", Code: "UNAVAILABLE"})
				return
			}
		}
		writeOK(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
