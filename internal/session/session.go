package session

import "context"

// Status indica se a sessão possui credenciais ativas.
type Status string

const (
	StatusAuthenticated   Status = "authenticated"
	StatusUnauthenticated Status = "unauthenticated"
)

// User descreve o colaborador autenticado.
type User struct {
	UID                int64   `json:"uid"`
	Name               string  `json:"name"`
	Surname            string  `json:"surname"`
	Email              string  `json:"email"`
	Role               string  `json:"role"`
	FactoryReferenceID *string `json:"factoryReferenceID,omitempty"`
}

// Session é o registro mantido pelo painel para um navegador.
// status authenticated implica token não nulo.
type Session struct {
	User    *User   `json:"user"`
	Token   *string `json:"token"`
	Status  Status  `json:"status"`
	Message *string `json:"message"`
}

// Initial devolve a sessão vazia usada no primeiro acesso e após o logout.
func Initial() Session {
	return Session{Status: StatusUnauthenticated}
}

// Authenticated informa se há token e status autenticado.
func (s Session) Authenticated() bool {
	return s.Status == StatusAuthenticated && s.Token != nil
}

// TokenValue devolve o token ou string vazia.
func (s Session) TokenValue() string {
	if s.Token == nil {
		return ""
	}
	return *s.Token
}

// Equal compara por valor, inclusive campos apontados.
func (s Session) Equal(o Session) bool {
	if s.Status != o.Status || !equalString(s.Token, o.Token) || !equalString(s.Message, o.Message) {
		return false
	}
	if (s.User == nil) != (o.User == nil) {
		return false
	}
	if s.User == nil {
		return true
	}
	a, b := *s.User, *o.User
	if !equalString(a.FactoryReferenceID, b.FactoryReferenceID) {
		return false
	}
	a.FactoryReferenceID, b.FactoryReferenceID = nil, nil
	return a == b
}

func equalString(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// SignInData é o conteúdo devolvido pelo login que substitui a sessão.
type SignInData struct {
	User    *User
	Token   string
	Status  Status
	Message string
}

// ActionKind identifica as mutações aceitas pelo reducer.
type ActionKind int

const (
	ActionSignIn ActionKind = iota + 1
	ActionSignOut
)

// Action é a única forma de alterar uma Session.
type Action struct {
	Kind ActionKind
	Data SignInData
}

// SignIn monta a ação de login.
func SignIn(data SignInData) Action {
	return Action{Kind: ActionSignIn, Data: data}
}

// SignOut monta a ação de logout.
func SignOut() Action {
	return Action{Kind: ActionSignOut}
}

// Reduce aplica a ação sem efeitos colaterais.
func Reduce(state Session, action Action) Session {
	switch action.Kind {
	case ActionSignIn:
		data := action.Data
		next := Session{Status: data.Status}
		if data.User != nil {
			u := *data.User
			if u.FactoryReferenceID != nil {
				ref := *u.FactoryReferenceID
				u.FactoryReferenceID = &ref
			}
			next.User = &u
		}
		if data.Token != "" {
			token := data.Token
			next.Token = &token
		}
		if data.Message != "" {
			msg := data.Message
			next.Message = &msg
		}
		if next.Status != StatusAuthenticated || next.Token == nil {
			next.Status = StatusUnauthenticated
		}
		return next
	case ActionSignOut:
		return Initial()
	default:
		return state
	}
}

type contextKey string

const (
	contextKeyID      contextKey = "session_id"
	contextKeySession contextKey = "session"
)

// WithContext injeta id e sessão carregados no contexto da requisição.
func WithContext(ctx context.Context, id string, s Session) context.Context {
	ctx = context.WithValue(ctx, contextKeyID, id)
	return context.WithValue(ctx, contextKeySession, s)
}

// FromContext recupera a sessão; ok falso quando o middleware não rodou.
func FromContext(ctx context.Context) (id string, s Session, ok bool) {
	id, _ = ctx.Value(contextKeyID).(string)
	s, ok = ctx.Value(contextKeySession).(Session)
	if !ok {
		return id, Initial(), false
	}
	return id, s, true
}
