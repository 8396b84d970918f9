package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/Brandon-Online01/w-f-sub001/internal/session"
)

// FactoryScope resolve a fábrica da sessão antes de qualquer consulta ao backend.
// Sem fábrica selecionada nem padrão do usuário, a requisição não segue.
func FactoryScope(store SessionStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, current, _ := session.FromContext(r.Context())

			factory, err := store.Factory(r.Context(), id, current.User)
			if err != nil {
				if errors.Is(err, session.ErrFactoryUnresolved) {
					writeError(w, http.StatusConflict, "FACTORY", "Fábrica não selecionada")
					return
				}
				writeError(w, http.StatusServiceUnavailable, "SESSION", "sessão indisponível")
				return
			}

			ctx := SetFactory(r.Context(), factory)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SetFactory injeta a fábrica ativa no contexto.
func SetFactory(ctx context.Context, factory string) context.Context {
	return context.WithValue(ctx, ContextKeyFactory, factory)
}

// GetFactory retorna a fábrica ativa do contexto.
func GetFactory(ctx context.Context) string {
	val, _ := ctx.Value(ContextKeyFactory).(string)
	return val
}
