package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/Brandon-Online01/w-f-sub001/internal/auth"
	"github.com/Brandon-Online01/w-f-sub001/internal/metrics"
	"github.com/Brandon-Online01/w-f-sub001/internal/session"
)

type contextKey string

const ContextKeyFactory contextKey = "factory"

// SessionStore é o que os middlewares precisam do store de sessão.
type SessionStore interface {
	Load(ctx context.Context, id string) (session.Session, error)
	SignOut(ctx context.Context, id string) (session.Session, error)
	Factory(ctx context.Context, id string, user *session.User) (string, error)
}

// RequireSession protege rotas de API: sem token válido responde 401 e,
// quando havia um token inválido, encerra a sessão antes de responder.
func RequireSession(store SessionStore, validator *auth.Validator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, current, ok := session.FromContext(r.Context())
			if !ok || !current.Authenticated() {
				writeError(w, http.StatusUnauthorized, "AUTH", "sessão ausente")
				return
			}

			result := validator.Check(current.TokenValue())
			if result != auth.Valid {
				metrics.GuardSignOuts.WithLabelValues(result.String()).Inc()
				if _, err := store.SignOut(r.Context(), id); err != nil {
					log.Warn().Err(err).Msg("middleware: falha ao encerrar sessão expirada")
				}
				writeError(w, http.StatusUnauthorized, "AUTH", "sessão expirada")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GetToken devolve o token da sessão da requisição.
func GetToken(ctx context.Context) string {
	_, s, _ := session.FromContext(ctx)
	return s.TokenValue()
}

// GetUser devolve o usuário da sessão da requisição.
func GetUser(ctx context.Context) *session.User {
	_, s, _ := session.FromContext(ctx)
	return s.User
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"data": nil,
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}
