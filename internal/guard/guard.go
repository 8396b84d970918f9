package guard

import (
	"strings"

	"github.com/Brandon-Online01/w-f-sub001/internal/auth"
	"github.com/Brandon-Online01/w-f-sub001/internal/session"
)

const (
	DefaultSignInPath  = "/sign-in"
	DefaultLandingPath = "/dashboard"
)

// State é o estado da máquina de guarda de rotas.
type State int

const (
	StateLoading State = iota
	StateAuthenticatedOnProtectedRoute
	StateAuthenticatedOnAuthRoute
	StateUnauthenticatedOnProtectedRoute
	StateUnauthenticatedOnAuthRoute
)

func (s State) String() string {
	switch s {
	case StateAuthenticatedOnProtectedRoute:
		return "authenticated_protected"
	case StateAuthenticatedOnAuthRoute:
		return "authenticated_auth"
	case StateUnauthenticatedOnProtectedRoute:
		return "unauthenticated_protected"
	case StateUnauthenticatedOnAuthRoute:
		return "unauthenticated_auth"
	default:
		return "loading"
	}
}

// Decision descreve o que fazer com a navegação avaliada.
// Render verdadeiro é o único caso em que o conteúdo da rota pode ser entregue.
type Decision struct {
	State    State       `json:"-"`
	Redirect string      `json:"redirect,omitempty"`
	SignOut  bool        `json:"signOut"`
	Render   bool        `json:"render"`
	Token    auth.Result `json:"-"`
}

// Config define as rotas conhecidas pela guarda.
type Config struct {
	SignInPath  string
	LandingPath string
}

// Guard avalia sessão e rota a cada navegação.
type Guard struct {
	cfg       Config
	validator *auth.Validator
}

// New cria a guarda com defaults para rotas não informadas.
func New(cfg Config, validator *auth.Validator) *Guard {
	if cfg.SignInPath == "" {
		cfg.SignInPath = DefaultSignInPath
	}
	if cfg.LandingPath == "" {
		cfg.LandingPath = DefaultLandingPath
	}
	if validator == nil {
		validator = auth.NewValidator()
	}
	return &Guard{cfg: cfg, validator: validator}
}

// SignInPath devolve a rota de login.
func (g *Guard) SignInPath() string { return g.cfg.SignInPath }

// LandingPath devolve a rota inicial após login.
func (g *Guard) LandingPath() string { return g.cfg.LandingPath }

// IsAuthRoute informa se o caminho é a rota de login.
func (g *Guard) IsAuthRoute(path string) bool {
	return strings.TrimRight(path, "/") == strings.TrimRight(g.cfg.SignInPath, "/")
}

// Evaluate é pura: mesma sessão, caminho e relógio geram a mesma decisão.
func (g *Guard) Evaluate(s session.Session, path string) Decision {
	onAuth := g.IsAuthRoute(path)

	if s.Token == nil || s.Status != session.StatusAuthenticated {
		if onAuth {
			return Decision{State: StateUnauthenticatedOnAuthRoute, Render: true, Token: auth.Malformed}
		}
		return Decision{State: StateUnauthenticatedOnProtectedRoute, Redirect: g.cfg.SignInPath, Token: auth.Malformed}
	}

	result := g.validator.Check(*s.Token)
	if result != auth.Valid {
		if onAuth {
			return Decision{State: StateUnauthenticatedOnAuthRoute, SignOut: true, Render: true, Token: result}
		}
		return Decision{State: StateUnauthenticatedOnProtectedRoute, SignOut: true, Redirect: g.cfg.SignInPath, Token: result}
	}

	if onAuth {
		return Decision{State: StateAuthenticatedOnAuthRoute, Redirect: g.cfg.LandingPath, Token: result}
	}
	return Decision{State: StateAuthenticatedOnProtectedRoute, Render: true, Token: result}
}
