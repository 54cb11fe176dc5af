package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/brechodofuturo/marketplace/internal/auth"
	"github.com/brechodofuturo/marketplace/internal/domain"
	"github.com/brechodofuturo/marketplace/pkg/logger"
	"github.com/go-chi/chi/v5/middleware"
)

type ctxKey int

const actorKey ctxKey = iota

func withActor(ctx context.Context, a domain.Actor) context.Context {
	return context.WithValue(ctx, actorKey, a)
}

func actorFromContext(ctx context.Context) (domain.Actor, bool) {
	a, ok := ctx.Value(actorKey).(domain.Actor)
	return a, ok
}

// Authenticate reads the bearer token when one is sent. Requests without a
// token pass through anonymously; a bad token is rejected.
func Authenticate(tokens *auth.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(raw) == "" {
				respondError(w, http.StatusUnauthorized, "invalid_token", "Token inválido ou expirado")
				return
			}
			actor, err := tokens.Parse(strings.TrimSpace(raw))
			if err != nil {
				respondError(w, http.StatusUnauthorized, "invalid_token", "Token inválido ou expirado")
				return
			}

			ctx := withActor(r.Context(), actor)
			ctx = logger.WithContext(ctx, logger.FromContext(ctx).With("user_id", actor.UserID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := actorFromContext(r.Context()); !ok {
			respondError(w, http.StatusUnauthorized, "unauthorized", "Autenticação necessária")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func RequireRole(role domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := actorFromContext(r.Context())
			if !ok {
				respondError(w, http.StatusUnauthorized, "unauthorized", "Autenticação necessária")
				return
			}
			if actor.Role != role {
				respondError(w, http.StatusForbidden, "forbidden", "Acesso negado")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestLogger stores a request scoped logger in the context and writes
// one access log line per request.
func RequestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqLog := log.With("request_id", middleware.GetReqID(r.Context()))
			ctx := logger.WithContext(r.Context(), reqLog)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			reqLog.InfoContext(ctx, "request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"remote_ip", r.RemoteAddr,
			)
		})
	}
}
