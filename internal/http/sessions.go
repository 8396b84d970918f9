package http

import (
	"context"

	httpmiddleware "github.com/Brandon-Online01/w-f-sub001/internal/http/middleware"
	"github.com/Brandon-Online01/w-f-sub001/internal/query"
	"github.com/Brandon-Online01/w-f-sub001/internal/session"
)

// sessionStore aplica os efeitos da troca de credencial em qualquer caminho que
// faça login ou logout: guarda, RequireSession, handlers e 401 do backend.
type sessionStore struct {
	*session.Store
	queries *query.Cache
	limiter *httpmiddleware.RateLimiter
}

// SignIn grava a sessão e encerra as consultas feitas com o token anterior.
func (s *sessionStore) SignIn(ctx context.Context, id string, data session.SignInData) (session.Session, error) {
	next, err := s.Store.SignIn(ctx, id, data)
	if err != nil {
		return next, err
	}
	s.queries.Forget(id)
	return next, nil
}

// SignOut limpa a sessão, as consultas do dono e o balde de requisições dela.
func (s *sessionStore) SignOut(ctx context.Context, id string) (session.Session, error) {
	next, err := s.Store.SignOut(ctx, id)
	if err != nil {
		return next, err
	}
	s.queries.Forget(id)
	s.limiter.ForgetSession(id)
	return next, nil
}
