package guard

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Brandon-Online01/w-f-sub001/internal/metrics"
	"github.com/Brandon-Online01/w-f-sub001/internal/session"
)

// SignOuter é a parte do store de sessão usada pela guarda.
type SignOuter interface {
	SignOut(ctx context.Context, id string) (session.Session, error)
}

type contextKey string

const contextKeyDecision contextKey = "guard_decision"

// DecisionFromContext recupera a decisão aplicada à requisição atual.
func DecisionFromContext(ctx context.Context) (Decision, bool) {
	d, ok := ctx.Value(contextKeyDecision).(Decision)
	return d, ok
}

// Middleware aplica a guarda em rotas de página. Depende do middleware de sessão
// ter injetado a sessão no contexto. O próximo handler só roda com Render verdadeiro.
func (g *Guard) Middleware(store SignOuter, minLoading time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tracker := NewTracker(minLoading)
			id, current, _ := session.FromContext(r.Context())

			d := g.Evaluate(current, r.URL.Path)
			metrics.GuardDecisions.WithLabelValues(d.State.String()).Inc()

			if d.SignOut {
				metrics.GuardSignOuts.WithLabelValues(d.Token.String()).Inc()
				cleared, err := store.SignOut(r.Context(), id)
				if err != nil {
					log.Warn().Err(err).Str("path", r.URL.Path).Msg("guard: falha ao encerrar sessão")
				} else {
					current = cleared
				}
			}

			tracker.Resolve(d)
			if err := tracker.Wait(r.Context()); err != nil {
				return
			}

			if !d.Render {
				http.Redirect(w, r, d.Redirect, http.StatusSeeOther)
				return
			}

			ctx := session.WithContext(r.Context(), id, current)
			ctx = context.WithValue(ctx, contextKeyDecision, d)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
