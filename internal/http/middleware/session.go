package middleware

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/Brandon-Online01/w-f-sub001/internal/session"
)

// Session garante o cookie de sessão e injeta a sessão carregada no contexto.
func Session(codec *session.CookieCodec, store SessionStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := codec.Ensure(w, r)
			if err != nil {
				log.Error().Err(err).Msg("middleware: falha ao emitir cookie de sessão")
				writeError(w, http.StatusInternalServerError, "INTERNAL", "erro interno")
				return
			}

			current, err := store.Load(r.Context(), id)
			if err != nil {
				log.Error().Err(err).Msg("middleware: falha ao carregar sessão")
				writeError(w, http.StatusServiceUnavailable, "SESSION", "sessão indisponível")
				return
			}

			ctx := session.WithContext(r.Context(), id, current)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
